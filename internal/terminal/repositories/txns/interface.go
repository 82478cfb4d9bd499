// Package txns stores the terminal's append-only transaction queue.
package txns

import (
	"context"

	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/models"
)

// Repository describes storage operations for transaction records. Rows are
// never deleted; status updates drive them through the sync lifecycle.
type Repository interface {
	// Insert adds a new transaction record. The (id, seq) pair must be unique.
	Insert(ctx context.Context, rec *models.TransactionRecord) error

	// NextSeq returns the next per-terminal sequence number (gap-free,
	// strictly increasing). Must be called inside the same transaction that
	// inserts the record.
	NextSeq(ctx context.Context) (int64, error)

	// Unsynced returns PENDING and SYNCED records in seq order. SYNCED rows
	// are included so a crash between transmit and result application leads
	// to a retransmission, which the server deduplicates.
	Unsynced(ctx context.Context) ([]*models.TransactionRecord, error)

	// UpdateStatus moves the given transactions to status, recording reason
	// for rejections.
	UpdateStatus(ctx context.Context, ids []string, status syncapi.TxStatus, reason string) error
}
