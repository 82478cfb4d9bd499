// Package syncer drives the terminal's connectivity state machine: it
// batches unsynced transactions, submits them to the server, interprets
// acknowledgements, and applies server-issued balance corrections back to
// the local ledger.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/logging"
	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/client"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/models"
)

// State is the engine's connectivity state.
type State string

const (
	StateOffline    State = "OFFLINE"
	StateConnecting State = "CONNECTING"
	StateOnline     State = "ONLINE"
	StateSyncing    State = "SYNCING"
)

// Ledger is the slice of the local ledger the engine needs.
type Ledger interface {
	Pending(ctx context.Context) ([]*models.Transaction, error)
	MarkSynced(ctx context.Context, ids []string) error
	MarkConfirmed(ctx context.Context, ids []string) error
	MarkRejected(ctx context.Context, ids []string, reason string) error
	ApplyBalanceCorrection(ctx context.Context, cardID string, balance, version int64) error
}

// Engine is the terminal-side sync state machine. It never blocks card
// processing: taps keep debiting the local ledger in any state, and the
// engine picks the queue up on its next cycle.
type Engine struct {
	api            client.API
	ledger         Ledger
	retryInterval  time.Duration
	requestTimeout time.Duration
	logger         logging.Logger

	mu    sync.Mutex
	state State
	kick  chan struct{}
}

func New(api client.API, ledger Ledger, retryInterval, requestTimeout time.Duration, l logging.Logger) *Engine {
	return &Engine{
		api:            api,
		ledger:         ledger,
		retryInterval:  retryInterval,
		requestTimeout: requestTimeout,
		logger:         l.With("module", "syncer"),
		state:          StateOffline,
		kick:           make(chan struct{}, 1),
	}
}

// State returns the current connectivity state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(ctx context.Context, s State) {
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()

	if prev != s {
		e.logger.Info(ctx, "state changed", "from", prev, "to", s)
	}
}

// Kick requests an immediate sync cycle, typically right after a local
// debit. Non-blocking; coalesces with an already pending request.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run executes sync cycles until ctx is cancelled: one cycle at startup,
// then one per retry interval tick or Kick. A failed cycle simply waits for
// the next tick; there is no inner retry loop to amplify.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.retryInterval)
	defer ticker.Stop()

	e.Step(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Step(ctx)
		case <-e.kick:
			e.Step(ctx)
		}
	}
}

// Step runs a single synchronous cycle of the state machine: reconnect if
// offline, then sync pending transactions or heartbeat when idle. Exposed
// so tests can drive the machine deterministically without timers.
func (e *Engine) Step(ctx context.Context) {
	justConnected := false

	if e.State() == StateOffline {
		e.setState(ctx, StateConnecting)
	}

	if e.State() == StateConnecting {
		if err := e.heartbeat(ctx); err != nil {
			e.logger.Debug(ctx, "heartbeat failed", "error", err)
			e.setState(ctx, StateOffline)
			return
		}
		e.setState(ctx, StateOnline)
		justConnected = true
	}

	pending, err := e.ledger.Pending(ctx)
	if err != nil {
		e.logger.Error(ctx, "reading pending transactions failed", "error", err)
		return
	}

	if len(pending) == 0 {
		if !justConnected {
			// idle heartbeat keeps the registration fresh and detects drops
			if err := e.heartbeat(ctx); err != nil {
				e.logger.Debug(ctx, "heartbeat failed", "error", err)
				e.setState(ctx, StateOffline)
			}
		}
		return
	}

	e.setState(ctx, StateSyncing)

	batch := make([]syncapi.Transaction, len(pending))
	for i, txn := range pending {
		batch[i] = txn.Wire()
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	resp, err := e.api.Sync(reqCtx, batch)
	cancel()
	if err != nil {
		// nothing was marked: the batch stays queued and is re-sent whole,
		// the server dedupes by transaction id
		e.logger.Warn(ctx, "sync failed", "error", err, "batch_size", len(batch))
		e.setState(ctx, StateOffline)
		return
	}

	if err := e.applyResponse(ctx, batch, resp); err != nil {
		e.logger.Error(ctx, "applying sync response failed", "error", err)
		return
	}

	e.setState(ctx, StateOnline)
}

func (e *Engine) heartbeat(ctx context.Context) error {
	pending, err := e.ledger.Pending(ctx)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	_, err = e.api.Heartbeat(reqCtx, len(pending))
	return err
}

func (e *Engine) applyResponse(ctx context.Context, batch []syncapi.Transaction, resp *syncapi.SyncResponse) error {
	ids := make([]string, len(batch))
	for i, txn := range batch {
		ids[i] = txn.ID
	}
	if err := e.ledger.MarkSynced(ctx, ids); err != nil {
		return err
	}

	var confirmed []string
	rejected := map[string][]string{} // reason -> ids

	for _, res := range resp.Results {
		switch res.Status {
		case syncapi.StatusConfirmed:
			confirmed = append(confirmed, res.TransactionID)
		case syncapi.StatusRejected:
			if res.Reason == syncapi.ReasonConflictingDuplicate {
				e.logger.Warn(ctx, "conflicting duplicate reported by server", "transaction_id", res.TransactionID)
			}
			rejected[res.Reason] = append(rejected[res.Reason], res.TransactionID)
		}
	}

	if err := e.ledger.MarkConfirmed(ctx, confirmed); err != nil {
		return err
	}
	for reason, rids := range rejected {
		if err := e.ledger.MarkRejected(ctx, rids, reason); err != nil {
			return err
		}
	}

	for _, card := range resp.Cards {
		if err := e.ledger.ApplyBalanceCorrection(ctx, card.CardID, card.Balance, card.Version); err != nil {
			return err
		}
	}

	e.logger.Info(ctx, "batch synced", "confirmed", len(confirmed), "rejected", len(resp.Results)-len(confirmed))
	return nil
}
