package syncer

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/dmitrijs2005/farekeeper/internal/cryptox"
	"github.com/dmitrijs2005/farekeeper/internal/logging"
	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// fakeAPI scripts server behavior per call.
type fakeAPI struct {
	heartbeatErr error
	syncErr      error
	syncFn       func(batch []syncapi.Transaction) *syncapi.SyncResponse

	heartbeats int
	syncs      int
	lastBatch  []syncapi.Transaction
}

func (f *fakeAPI) Heartbeat(ctx context.Context, pending int) (time.Time, error) {
	f.heartbeats++
	if f.heartbeatErr != nil {
		return time.Time{}, f.heartbeatErr
	}
	return time.Now(), nil
}

func (f *fakeAPI) Sync(ctx context.Context, batch []syncapi.Transaction) (*syncapi.SyncResponse, error) {
	f.syncs++
	f.lastBatch = batch
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return f.syncFn(batch), nil
}

func confirmAll(batch []syncapi.Transaction) *syncapi.SyncResponse {
	resp := &syncapi.SyncResponse{}
	for _, txn := range batch {
		resp.Results = append(resp.Results, syncapi.TxResult{TransactionID: txn.ID, Status: syncapi.StatusConfirmed})
	}
	return resp
}

func setupLedger(t *testing.T) *ledger.Service {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE cards (id TEXT PRIMARY KEY, payload BLOB NOT NULL, nonce BLOB NOT NULL);
CREATE TABLE transactions (
  id TEXT PRIMARY KEY, card_id TEXT NOT NULL, seq INTEGER NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'PENDING', reason TEXT NOT NULL DEFAULT '',
  payload BLOB NOT NULL, nonce BLOB NOT NULL
);
`)
	require.NoError(t, err)

	key := cryptox.DeriveKey([]byte("pass"), []byte("salt"))
	return ledger.New(db, key, "term-1", 1000, discard())
}

func discard() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func newEngine(api *fakeAPI, l Ledger) *Engine {
	return New(api, l, time.Minute, time.Second, discard())
}

func TestStep_HeartbeatFailureStaysOffline(t *testing.T) {
	api := &fakeAPI{heartbeatErr: common.ErrUnavailable}
	e := newEngine(api, setupLedger(t))

	e.Step(context.Background())

	assert.Equal(t, StateOffline, e.State())
	assert.Equal(t, 1, api.heartbeats, "a single probe per cycle, no retry storm")
	assert.Zero(t, api.syncs)
}

func TestStep_ConnectsAndIdles(t *testing.T) {
	api := &fakeAPI{syncFn: confirmAll}
	e := newEngine(api, setupLedger(t))

	e.Step(context.Background())

	assert.Equal(t, StateOnline, e.State())
	assert.Zero(t, api.syncs, "no pending transactions, nothing to submit")
}

func TestStep_SyncsPendingAndConfirms(t *testing.T) {
	lgr := setupLedger(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := lgr.RecordDebit(ctx, "04A224E9", 100)
		require.NoError(t, err)
	}

	api := &fakeAPI{syncFn: func(batch []syncapi.Transaction) *syncapi.SyncResponse {
		resp := confirmAll(batch)
		resp.Cards = []syncapi.CardSnapshot{{CardID: "04A224E9", Balance: 400, Version: 7}}
		return resp
	}}
	e := newEngine(api, lgr)

	e.Step(ctx)

	assert.Equal(t, StateOnline, e.State())
	require.Len(t, api.lastBatch, 6)
	assert.Equal(t, int64(1), api.lastBatch[0].Seq, "batch must be in sequence order")

	pending, err := lgr.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "all transactions confirmed")

	card, err := lgr.GetOrCreateCard(ctx, "04A224E9")
	require.NoError(t, err)
	assert.Equal(t, int64(400), card.Balance, "local and authoritative state agree after sync")
}

func TestStep_SyncFailureLeavesBatchPending(t *testing.T) {
	lgr := setupLedger(t)
	ctx := context.Background()

	_, err := lgr.RecordDebit(ctx, "04A224E9", 100)
	require.NoError(t, err)

	api := &fakeAPI{syncErr: common.ErrUnavailable}
	e := newEngine(api, lgr)

	e.Step(ctx)

	assert.Equal(t, StateOffline, e.State())

	pending, err := lgr.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, syncapi.StatusPending, pending[0].Status, "no partial marking on a failed sync")
}

func TestStep_RejectionAppliesCorrection(t *testing.T) {
	lgr := setupLedger(t)
	ctx := context.Background()

	txn, err := lgr.RecordDebit(ctx, "04A224E9", 100)
	require.NoError(t, err)

	api := &fakeAPI{syncFn: func(batch []syncapi.Transaction) *syncapi.SyncResponse {
		return &syncapi.SyncResponse{
			Results: []syncapi.TxResult{{
				TransactionID: txn.ID,
				Status:        syncapi.StatusRejected,
				Reason:        syncapi.ReasonInsufficientFunds,
			}},
			Cards: []syncapi.CardSnapshot{{CardID: "04A224E9", Balance: 50, Version: 9}},
		}
	}}
	e := newEngine(api, lgr)

	e.Step(ctx)

	assert.Equal(t, StateOnline, e.State())

	pending, err := lgr.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "rejected transactions are never re-sent")

	card, err := lgr.GetOrCreateCard(ctx, "04A224E9")
	require.NoError(t, err)
	assert.Equal(t, int64(50), card.Balance, "authoritative correction overwrites diverged balance")
}

func TestStep_RejectionCorrectionWithCollidingVersions(t *testing.T) {
	lgr := setupLedger(t)
	ctx := context.Background()

	// the offline debit bumps the local card to version 2; the server's
	// snapshot arrives carrying version 2 as well
	txn, err := lgr.RecordDebit(ctx, "04A224E9", 600)
	require.NoError(t, err) // local: balance 400

	api := &fakeAPI{syncFn: func(batch []syncapi.Transaction) *syncapi.SyncResponse {
		return &syncapi.SyncResponse{
			Results: []syncapi.TxResult{{
				TransactionID: txn.ID,
				Status:        syncapi.StatusRejected,
				Reason:        syncapi.ReasonInsufficientFunds,
			}},
			Cards: []syncapi.CardSnapshot{{CardID: "04A224E9", Balance: 300, Version: 2}},
		}
	}}
	e := newEngine(api, lgr)

	e.Step(ctx)

	assert.Equal(t, StateOnline, e.State())

	card, err := lgr.GetOrCreateCard(ctx, "04A224E9")
	require.NoError(t, err)
	assert.Equal(t, int64(300), card.Balance, "snapshot applies even when versions collide")
}

func TestStep_ResubmitAfterCrashSendsSyncedRows(t *testing.T) {
	lgr := setupLedger(t)
	ctx := context.Background()

	txn, err := lgr.RecordDebit(ctx, "04A224E9", 100)
	require.NoError(t, err)

	// simulate a crash after transmit but before result application
	require.NoError(t, lgr.MarkSynced(ctx, []string{txn.ID}))

	api := &fakeAPI{syncFn: confirmAll}
	e := newEngine(api, lgr)

	e.Step(ctx)

	require.Len(t, api.lastBatch, 1, "SYNCED rows are retransmitted; the server dedupes")
	pending, err := lgr.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestKick_Coalesces(t *testing.T) {
	e := newEngine(&fakeAPI{}, setupLedger(t))
	e.Kick()
	e.Kick()
	e.Kick()

	select {
	case <-e.kick:
	default:
		t.Fatal("expected a queued kick")
	}
	select {
	case <-e.kick:
		t.Fatal("kicks must coalesce into one")
	default:
	}
}
