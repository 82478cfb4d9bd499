package ledger

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/dmitrijs2005/farekeeper/internal/dbx"
	"github.com/dmitrijs2005/farekeeper/internal/logging"
	"github.com/dmitrijs2005/farekeeper/internal/server/models"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/cards"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/terminals"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/txns"
	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type fakeCardRepo struct {
	m map[string]*models.Card
}

func (r *fakeCardRepo) Get(ctx context.Context, id string) (*models.Card, error) {
	card, ok := r.m[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *card
	return &copied, nil
}

func (r *fakeCardRepo) GetForUpdate(ctx context.Context, id string) (*models.Card, error) {
	return r.Get(ctx, id)
}

func (r *fakeCardRepo) CreateIfAbsent(ctx context.Context, id string, balance int64) error {
	if _, ok := r.m[id]; !ok {
		r.m[id] = &models.Card{ID: id, Balance: balance, Version: 1, UpdatedAt: time.Now()}
	}
	return nil
}

func (r *fakeCardRepo) UpdateBalance(ctx context.Context, id string, balance, version int64) error {
	card, ok := r.m[id]
	if !ok {
		return common.ErrNotFound
	}
	card.Balance = balance
	card.Version = version
	card.UpdatedAt = time.Now()
	return nil
}

type fakeTxnRepo struct {
	m     map[string]*models.Transaction
	order []string
}

func (r *fakeTxnRepo) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	txn, ok := r.m[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *txn
	return &copied, nil
}

func (r *fakeTxnRepo) Insert(ctx context.Context, txn *models.Transaction) error {
	copied := *txn
	r.m[txn.ID] = &copied
	r.order = append(r.order, txn.ID)
	return nil
}

func (r *fakeTxnRepo) ListByCard(ctx context.Context, cardID string) ([]*models.Transaction, error) {
	var result []*models.Transaction
	for _, id := range r.order {
		if r.m[id].CardID == cardID {
			copied := *r.m[id]
			result = append(result, &copied)
		}
	}
	return result, nil
}

type fakeTerminalRepo struct {
	m map[string]*models.Terminal
}

func (r *fakeTerminalRepo) Touch(ctx context.Context, id string, pending int) error {
	r.m[id] = &models.Terminal{ID: id, LastHeartbeat: time.Now(), State: "online", Pending: pending}
	return nil
}

func (r *fakeTerminalRepo) Get(ctx context.Context, id string) (*models.Terminal, error) {
	t, ok := r.m[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTerminalRepo) List(ctx context.Context) ([]*models.Terminal, error) {
	var result []*models.Terminal
	for _, t := range r.m {
		copied := *t
		result = append(result, &copied)
	}
	return result, nil
}

// fakeManager serves map-backed repositories over a throwaway in-memory
// database, which only exists so transactions have something to begin on.
type fakeManager struct {
	db    *sql.DB
	cards *fakeCardRepo
	txns  *fakeTxnRepo
	terms *fakeTerminalRepo
}

func newFakeManager(t *testing.T) *fakeManager {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	return &fakeManager{
		db:    db,
		cards: &fakeCardRepo{m: make(map[string]*models.Card)},
		txns:  &fakeTxnRepo{m: make(map[string]*models.Transaction)},
		terms: &fakeTerminalRepo{m: make(map[string]*models.Terminal)},
	}
}

func (m *fakeManager) Conn() *sql.DB { return m.db }

func (m *fakeManager) RunMigrations(ctx context.Context) error { return nil }

func (m *fakeManager) Cards(q dbx.DBTX) cards.Repository { return m.cards }

func (m *fakeManager) Transactions(q dbx.DBTX) txns.Repository { return m.txns }

func (m *fakeManager) Terminals(q dbx.DBTX) terminals.Repository { return m.terms }

func (m *fakeManager) Close() error { return m.db.Close() }

func newTestService(t *testing.T) (*Service, *fakeManager) {
	t.Helper()
	rm := newFakeManager(t)
	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	return New(rm, 5000, logger), rm
}

func debit(id, cardID string, amount, seq int64) syncapi.Transaction {
	return syncapi.Transaction{
		ID:         id,
		CardID:     cardID,
		TerminalID: "term-1",
		Amount:     amount,
		Seq:        seq,
		CreatedAt:  time.Now(),
	}
}

func TestApplyTransaction_ConfirmsAndCreatesCard(t *testing.T) {
	svc, rm := newTestService(t)
	ctx := context.Background()

	out, err := svc.ApplyTransaction(ctx, debit("tx-1", "CARD1", 250, 1))
	require.NoError(t, err)

	require.Equal(t, syncapi.StatusConfirmed, out.Result.Status)
	require.NotNil(t, out.Card)
	require.Equal(t, int64(4750), out.Card.Balance)
	require.Equal(t, int64(2), out.Card.Version)

	stored, err := rm.txns.GetByID(ctx, "tx-1")
	require.NoError(t, err)
	require.Equal(t, syncapi.StatusConfirmed, stored.Status)
	require.Equal(t, models.KindDebit, stored.Kind)
}

func TestApplyTransaction_IdempotentReplay(t *testing.T) {
	svc, rm := newTestService(t)
	ctx := context.Background()

	first, err := svc.ApplyTransaction(ctx, debit("tx-1", "CARD1", 250, 1))
	require.NoError(t, err)
	require.Equal(t, syncapi.StatusConfirmed, first.Result.Status)

	second, err := svc.ApplyTransaction(ctx, debit("tx-1", "CARD1", 250, 1))
	require.NoError(t, err)
	require.Equal(t, syncapi.StatusConfirmed, second.Result.Status)

	// balance debited exactly once
	card, err := svc.GetCard(ctx, "CARD1")
	require.NoError(t, err)
	require.Equal(t, int64(4750), card.Balance)
	require.Len(t, rm.txns.order, 1)
}

func TestApplyTransaction_ConflictingDuplicate(t *testing.T) {
	svc, rm := newTestService(t)
	ctx := context.Background()

	_, err := svc.ApplyTransaction(ctx, debit("tx-1", "CARD1", 250, 1))
	require.NoError(t, err)

	out, err := svc.ApplyTransaction(ctx, debit("tx-1", "CARD1", 999, 1))
	require.NoError(t, err)
	require.Equal(t, syncapi.StatusRejected, out.Result.Status)
	require.Equal(t, syncapi.ReasonConflictingDuplicate, out.Result.Reason)

	// the conflicting version is not stored and the balance is untouched
	require.Len(t, rm.txns.order, 1)
	card, err := svc.GetCard(ctx, "CARD1")
	require.NoError(t, err)
	require.Equal(t, int64(4750), card.Balance)
}

func TestApplyTransaction_InsufficientFunds(t *testing.T) {
	svc, rm := newTestService(t)
	ctx := context.Background()

	out, err := svc.ApplyTransaction(ctx, debit("tx-1", "CARD1", 9000, 1))
	require.NoError(t, err)
	require.Equal(t, syncapi.StatusRejected, out.Result.Status)
	require.Equal(t, syncapi.ReasonInsufficientFunds, out.Result.Reason)

	// the rejection is recorded so a retry replays the same verdict
	stored, err := rm.txns.GetByID(ctx, "tx-1")
	require.NoError(t, err)
	require.Equal(t, syncapi.StatusRejected, stored.Status)

	replay, err := svc.ApplyTransaction(ctx, debit("tx-1", "CARD1", 9000, 1))
	require.NoError(t, err)
	require.Equal(t, syncapi.StatusRejected, replay.Result.Status)
	require.Equal(t, syncapi.ReasonInsufficientFunds, replay.Result.Reason)

	card, err := svc.GetCard(ctx, "CARD1")
	require.NoError(t, err)
	require.Equal(t, int64(5000), card.Balance)
	require.Len(t, rm.txns.order, 1)
}

func TestApplyTransaction_TwoTerminalsSameCard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a := debit("tx-a", "CARD1", 3000, 1)
	a.TerminalID = "term-a"
	b := debit("tx-b", "CARD1", 3000, 1)
	b.TerminalID = "term-b"

	outA, err := svc.ApplyTransaction(ctx, a)
	require.NoError(t, err)
	require.Equal(t, syncapi.StatusConfirmed, outA.Result.Status)

	// the second terminal's debit exceeds what is left
	outB, err := svc.ApplyTransaction(ctx, b)
	require.NoError(t, err)
	require.Equal(t, syncapi.StatusRejected, outB.Result.Status)
	require.Equal(t, syncapi.ReasonInsufficientFunds, outB.Result.Reason)

	card, err := svc.GetCard(ctx, "CARD1")
	require.NoError(t, err)
	require.Equal(t, int64(2000), card.Balance)
}

func TestTopup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ApplyTransaction(ctx, debit("tx-1", "CARD1", 250, 1))
	require.NoError(t, err)

	card, err := svc.Topup(ctx, "CARD1", 1000)
	require.NoError(t, err)
	require.Equal(t, int64(5750), card.Balance)
	require.Equal(t, int64(3), card.Version)

	history, err := svc.Transactions(ctx, "CARD1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.KindTopup, history[1].Kind)
	require.Equal(t, syncapi.StatusConfirmed, history[1].Status)
}

func TestTopup_UnknownCard(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Topup(context.Background(), "NOPE", 1000)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestTopup_InvalidAmount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Topup(context.Background(), "CARD1", 0)
	require.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = svc.Topup(context.Background(), "CARD1", -5)
	require.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestGetCard_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetCard(context.Background(), "NOPE")
	require.ErrorIs(t, err, common.ErrNotFound)
}
