// Package reconcile processes uploads from terminals: heartbeats and batches
// of offline transactions.
package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/logging"
	"github.com/dmitrijs2005/farekeeper/internal/server/ledger"
	"github.com/dmitrijs2005/farekeeper/internal/server/models"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/terminals"
	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
)

// Ledger is the slice of the card ledger the reconciler needs.
type Ledger interface {
	ApplyTransaction(ctx context.Context, in syncapi.Transaction) (*ledger.Outcome, error)
}

type Service struct {
	ledger    Ledger
	terminals terminals.Repository
	logger    logging.Logger
	now       func() time.Time
}

func New(ledger Ledger, terms terminals.Repository, l logging.Logger) *Service {
	return &Service{ledger: ledger, terminals: terms, logger: l, now: time.Now}
}

// Heartbeat records that a terminal is alive and how many transactions it is
// holding, and returns the server's clock for drift checks.
func (s *Service) Heartbeat(ctx context.Context, terminalID string, pending int) (time.Time, error) {
	if err := s.terminals.Touch(ctx, terminalID, pending); err != nil {
		return time.Time{}, err
	}
	return s.now(), nil
}

// ProcessBatch settles a terminal's uploaded transactions in submission
// order and returns a per-transaction verdict plus a snapshot of every card
// the batch touched. A failure partway through aborts the whole call; the
// terminal keeps its local copies and retries, and already settled
// transactions replay idempotently.
func (s *Service) ProcessBatch(ctx context.Context, terminalID string, batch []syncapi.Transaction) (*syncapi.SyncResponse, error) {
	results := make([]syncapi.TxResult, 0, len(batch))
	touched := make(map[string]*models.Card)

	for _, in := range batch {
		out, err := s.ledger.ApplyTransaction(ctx, in)
		if err != nil {
			return nil, err
		}
		results = append(results, out.Result)
		if out.Card != nil {
			touched[out.Card.ID] = out.Card
		}
	}

	if err := s.terminals.Touch(ctx, terminalID, 0); err != nil {
		return nil, err
	}

	cardIDs := make([]string, 0, len(touched))
	for id := range touched {
		cardIDs = append(cardIDs, id)
	}
	sort.Strings(cardIDs)

	resp := &syncapi.SyncResponse{Results: results}
	for _, id := range cardIDs {
		resp.Cards = append(resp.Cards, touched[id].Snapshot())
	}

	s.logger.Info(ctx, "batch reconciled", "terminal_id", terminalID, "count", len(batch))
	return resp, nil
}

// Terminals returns the registered fleet.
func (s *Service) Terminals(ctx context.Context) ([]*models.Terminal, error) {
	return s.terminals.List(ctx)
}
