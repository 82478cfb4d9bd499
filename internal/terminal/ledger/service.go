// Package ledger implements the terminal's local ledger: durable, encrypted,
// offline-first storage of card balances and the transaction queue. It is
// the source of truth while the terminal is disconnected.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/dmitrijs2005/farekeeper/internal/cryptox"
	"github.com/dmitrijs2005/farekeeper/internal/dbx"
	"github.com/dmitrijs2005/farekeeper/internal/logging"
	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/models"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/repositories/cards"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/repositories/txns"
)

// Service owns the local ledger. All financial fields are encrypted with the
// vault key before touching the database; repositories below only ever see
// ciphertext.
type Service struct {
	db             *sql.DB
	key            []byte
	terminalID     string
	defaultBalance int64
	logger         logging.Logger
	now            func() time.Time
}

func New(db *sql.DB, key []byte, terminalID string, defaultBalance int64, l logging.Logger) *Service {
	return &Service{
		db:             db,
		key:            key,
		terminalID:     terminalID,
		defaultBalance: defaultBalance,
		logger:         l.With("module", "local_ledger"),
		now:            time.Now,
	}
}

// TerminalID returns the identity this ledger records transactions under.
func (s *Service) TerminalID() string {
	return s.terminalID
}

func (s *Service) encodeCard(card *models.Card) (*models.CardRecord, error) {
	payload, nonce, err := cryptox.Encrypt(card, s.key)
	if err != nil {
		return nil, fmt.Errorf("encryption error: %w", err)
	}
	return &models.CardRecord{ID: card.ID, Payload: payload, Nonce: nonce}, nil
}

func (s *Service) decodeCard(rec *models.CardRecord) (*models.Card, error) {
	card := &models.Card{}
	if err := cryptox.Decrypt(rec.Payload, rec.Nonce, s.key, card); err != nil {
		return nil, fmt.Errorf("card %s: %w", rec.ID, err)
	}
	return card, nil
}

func (s *Service) decodeTransaction(rec *models.TransactionRecord) (*models.Transaction, error) {
	txn := &models.Transaction{}
	if err := cryptox.Decrypt(rec.Payload, rec.Nonce, s.key, txn); err != nil {
		return nil, fmt.Errorf("transaction %s: %w", rec.ID, err)
	}
	txn.Status = rec.Status
	txn.Reason = rec.Reason
	return txn, nil
}

// getOrCreateCard loads a card inside tx, inserting one with the default
// balance when the NFC UID has never been seen before.
func (s *Service) getOrCreateCard(ctx context.Context, tx dbx.DBTX, cardID string) (*models.Card, error) {
	repo := cards.NewSQLiteRepository(tx)

	rec, err := repo.GetByID(ctx, cardID)
	if err == nil {
		return s.decodeCard(rec)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	card := &models.Card{ID: cardID, Balance: s.defaultBalance, Version: 1, UpdatedAt: s.now()}
	enc, err := s.encodeCard(card)
	if err != nil {
		return nil, err
	}
	if err := repo.Upsert(ctx, enc); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "new card registered", "card_id", cardID, "balance", card.Balance)
	return card, nil
}

// GetOrCreateCard returns the card for the given NFC UID, creating it with
// the default balance on first sight.
func (s *Service) GetOrCreateCard(ctx context.Context, cardID string) (*models.Card, error) {
	var card *models.Card
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		card, err = s.getOrCreateCard(ctx, tx, cardID)
		return err
	})
	return card, err
}

// RecordDebit debits amount from the card and queues a PENDING transaction
// with the next sequence number. The balance update and the transaction
// insert commit atomically; a crash can never leave one without the other.
// Returns common.ErrInsufficientBalance when the cached balance does not
// cover the amount, in which case nothing is recorded.
func (s *Service) RecordDebit(ctx context.Context, cardID string, amount int64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}

	var txn *models.Transaction

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cardRepo := cards.NewSQLiteRepository(tx)
		txnRepo := txns.NewSQLiteRepository(tx)

		card, err := s.getOrCreateCard(ctx, tx, cardID)
		if err != nil {
			return err
		}

		if card.Balance < amount {
			return common.ErrInsufficientBalance
		}

		seq, err := txnRepo.NextSeq(ctx)
		if err != nil {
			return err
		}

		txn = &models.Transaction{
			ID:         models.TransactionID(cardID, s.terminalID, seq),
			CardID:     cardID,
			TerminalID: s.terminalID,
			Amount:     amount,
			Seq:        seq,
			CreatedAt:  s.now(),
			Status:     syncapi.StatusPending,
		}

		card.Balance -= amount
		card.Version++
		card.UpdatedAt = txn.CreatedAt

		enc, err := s.encodeCard(card)
		if err != nil {
			return err
		}
		if err := cardRepo.Upsert(ctx, enc); err != nil {
			return err
		}

		payload, nonce, err := cryptox.Encrypt(txn, s.key)
		if err != nil {
			return fmt.Errorf("encryption error: %w", err)
		}
		return txnRepo.Insert(ctx, &models.TransactionRecord{
			ID:      txn.ID,
			CardID:  cardID,
			Seq:     seq,
			Status:  syncapi.StatusPending,
			Payload: payload,
			Nonce:   nonce,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "debit recorded", "card_id", cardID, "amount", amount, "seq", txn.Seq)
	return txn, nil
}

// Pending returns all not-yet-confirmed transactions in sequence order.
// The set is restartable: re-querying after a crash returns the same
// transactions minus anything since confirmed or rejected.
func (s *Service) Pending(ctx context.Context) ([]*models.Transaction, error) {
	recs, err := txns.NewSQLiteRepository(s.db).Unsynced(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*models.Transaction, 0, len(recs))
	for _, rec := range recs {
		txn, err := s.decodeTransaction(rec)
		if err != nil {
			// A record that fails authentication is a corruption alarm,
			// not an empty queue.
			return nil, err
		}
		result = append(result, txn)
	}
	return result, nil
}

// MarkSynced moves transactions to SYNCED once they have been transmitted.
func (s *Service) MarkSynced(ctx context.Context, ids []string) error {
	return txns.NewSQLiteRepository(s.db).UpdateStatus(ctx, ids, syncapi.StatusSynced, "")
}

// MarkConfirmed moves transactions to CONFIRMED after the server reports
// they were applied.
func (s *Service) MarkConfirmed(ctx context.Context, ids []string) error {
	return txns.NewSQLiteRepository(s.db).UpdateStatus(ctx, ids, syncapi.StatusConfirmed, "")
}

// MarkRejected moves transactions to REJECTED with the server's reason.
// Rejected transactions are never re-sent.
func (s *Service) MarkRejected(ctx context.Context, ids []string, reason string) error {
	return txns.NewSQLiteRepository(s.db).UpdateStatus(ctx, ids, syncapi.StatusRejected, reason)
}

// ApplyBalanceCorrection overwrites the local card state with the server's
// authoritative snapshot. Staleness is judged against the last applied
// server version, never against the local mutation counter: a card debited
// offline has moved its own Version, and that must not shadow a snapshot
// the server sent to correct exactly that divergence. Snapshots at or below
// the last applied server version are ignored, so corrections are safe to
// apply idempotently.
func (s *Service) ApplyBalanceCorrection(ctx context.Context, cardID string, balance, version int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := cards.NewSQLiteRepository(tx)

		card := &models.Card{ID: cardID}
		rec, err := repo.GetByID(ctx, cardID)
		switch {
		case err == nil:
			if card, err = s.decodeCard(rec); err != nil {
				return err
			}
			if version <= card.ServerVersion {
				return nil
			}
		case !errors.Is(err, common.ErrNotFound):
			return err
		}

		card.Balance = balance
		card.ServerVersion = version
		card.Version++
		card.UpdatedAt = s.now()

		enc, err := s.encodeCard(card)
		if err != nil {
			return err
		}
		if err := repo.Upsert(ctx, enc); err != nil {
			return err
		}

		s.logger.Info(ctx, "balance correction applied", "card_id", cardID, "balance", balance, "version", version)
		return nil
	})
}
