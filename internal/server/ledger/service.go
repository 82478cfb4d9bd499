// Package ledger implements the authoritative card ledger. It settles
// transaction batches uploaded by terminals, enforcing global balance and
// duplicate rules the terminals cannot check on their own.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/dmitrijs2005/farekeeper/internal/dbx"
	"github.com/dmitrijs2005/farekeeper/internal/logging"
	"github.com/dmitrijs2005/farekeeper/internal/server/models"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/cards"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// Outcome is the result of settling a single transaction: the verdict sent
// back to the terminal plus the card state after the attempt. Card is nil
// when the transaction never touched a card row.
type Outcome struct {
	Result syncapi.TxResult
	Card   *models.Card
}

type Service struct {
	rm             repomanager.RepositoryManager
	defaultBalance int64
	logger         logging.Logger
	now            func() time.Time
}

func New(rm repomanager.RepositoryManager, defaultBalance int64, l logging.Logger) *Service {
	return &Service{rm: rm, defaultBalance: defaultBalance, logger: l, now: time.Now}
}

// ApplyTransaction settles one uploaded transaction. The same transaction ID
// submitted twice with identical contents replays the stored verdict without
// touching the balance again; the same ID with different contents is rejected
// as a conflicting duplicate and not stored.
func (s *Service) ApplyTransaction(ctx context.Context, in syncapi.Transaction) (*Outcome, error) {
	var out *Outcome

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		out, err = s.applyOnce(ctx, in)
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// isRetryable reports whether the error is a transient PostgreSQL conflict
// (serialization failure or deadlock) worth retrying.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func (s *Service) applyOnce(ctx context.Context, in syncapi.Transaction) (*Outcome, error) {
	var out *Outcome

	err := dbx.WithTx(ctx, s.rm.Conn(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.rm.Transactions(tx)
		cardRepo := s.rm.Cards(tx)

		existing, err := txRepo.GetByID(ctx, in.ID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}

		if existing != nil {
			out, err = s.replay(ctx, cardRepo, existing, in)
			return err
		}

		if err := cardRepo.CreateIfAbsent(ctx, in.CardID, s.defaultBalance); err != nil {
			return err
		}
		card, err := cardRepo.GetForUpdate(ctx, in.CardID)
		if err != nil {
			return err
		}

		row := &models.Transaction{
			ID:         in.ID,
			CardID:     in.CardID,
			TerminalID: in.TerminalID,
			Kind:       models.KindDebit,
			Amount:     in.Amount,
			Seq:        in.Seq,
			CreatedAt:  in.CreatedAt,
			RecordedAt: s.now(),
		}

		if card.Balance < in.Amount {
			row.Status = syncapi.StatusRejected
			row.Reason = syncapi.ReasonInsufficientFunds
			if err := txRepo.Insert(ctx, row); err != nil {
				return err
			}
			out = &Outcome{
				Result: syncapi.TxResult{
					TransactionID: in.ID,
					Status:        syncapi.StatusRejected,
					Reason:        syncapi.ReasonInsufficientFunds,
				},
				Card: card,
			}
			return nil
		}

		card.Balance -= in.Amount
		card.Version++
		if err := cardRepo.UpdateBalance(ctx, card.ID, card.Balance, card.Version); err != nil {
			return err
		}

		row.Status = syncapi.StatusConfirmed
		if err := txRepo.Insert(ctx, row); err != nil {
			return err
		}

		out = &Outcome{
			Result: syncapi.TxResult{TransactionID: in.ID, Status: syncapi.StatusConfirmed},
			Card:   card,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// replay handles a transaction ID the ledger has already settled. A matching
// re-submission gets the stored verdict; a mismatched one is a conflicting
// duplicate.
func (s *Service) replay(ctx context.Context, cardRepo cards.Repository,
	existing *models.Transaction, in syncapi.Transaction) (*Outcome, error) {
	card, err := cardRepo.Get(ctx, in.CardID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if existing.CardID == in.CardID && existing.TerminalID == in.TerminalID &&
		existing.Seq == in.Seq && existing.Amount == in.Amount {
		return &Outcome{
			Result: syncapi.TxResult{TransactionID: in.ID, Status: existing.Status, Reason: existing.Reason},
			Card:   card,
		}, nil
	}

	s.logger.Warn(ctx, "conflicting duplicate transaction",
		"transaction_id", in.ID, "terminal_id", in.TerminalID)
	return &Outcome{
		Result: syncapi.TxResult{
			TransactionID: in.ID,
			Status:        syncapi.StatusRejected,
			Reason:        syncapi.ReasonConflictingDuplicate,
		},
		Card: card,
	}, nil
}

// GetCard returns the authoritative state of a card.
func (s *Service) GetCard(ctx context.Context, id string) (*models.Card, error) {
	return s.rm.Cards(s.rm.Conn()).Get(ctx, id)
}

// Topup credits an existing card. The credit is recorded in the global
// transaction set under a fresh ID.
func (s *Service) Topup(ctx context.Context, cardID string, amount int64) (*models.Card, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", common.ErrInvalidAmount, amount)
	}

	var card *models.Card
	err := dbx.WithTx(ctx, s.rm.Conn(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		cardRepo := s.rm.Cards(tx)

		var err error
		card, err = cardRepo.GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}

		card.Balance += amount
		card.Version++
		if err := cardRepo.UpdateBalance(ctx, card.ID, card.Balance, card.Version); err != nil {
			return err
		}

		now := s.now()
		return s.rm.Transactions(tx).Insert(ctx, &models.Transaction{
			ID:         uuid.NewString(),
			CardID:     cardID,
			Kind:       models.KindTopup,
			Amount:     amount,
			Status:     syncapi.StatusConfirmed,
			CreatedAt:  now,
			RecordedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// Transactions returns the settled history of a card, oldest first.
func (s *Service) Transactions(ctx context.Context, cardID string) ([]*models.Transaction, error) {
	return s.rm.Transactions(s.rm.Conn()).ListByCard(ctx, cardID)
}
