// Package client implements the terminal's HTTP client for the central
// server's sync API.
package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
)

// API is the terminal-side view of the central server. Any transport or
// timeout failure is reported as common.ErrUnavailable; the sync engine
// treats every error as "go offline and retry later".
type API interface {
	// Heartbeat probes server reachability and reports the local pending
	// transaction count. Returns the server's clock on success.
	Heartbeat(ctx context.Context, pending int) (time.Time, error)

	// Sync submits a batch of transactions in sequence order and returns
	// per-transaction results plus authoritative snapshots of every card
	// the batch touched.
	Sync(ctx context.Context, batch []syncapi.Transaction) (*syncapi.SyncResponse, error)
}
