// Package txns provides PostgreSQL-backed storage for the global transaction
// set.
package txns

import (
	"context"

	"github.com/dmitrijs2005/farekeeper/internal/server/models"
)

// Repository describes storage operations for transactions. The set is
// append-only: rows are inserted with their final status and never updated.
type Repository interface {
	// GetByID returns a transaction by its globally unique ID, or
	// common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Transaction, error)

	// Insert appends a transaction row.
	Insert(ctx context.Context, txn *models.Transaction) error

	// ListByCard returns all transactions for a card, oldest first.
	ListByCard(ctx context.Context, cardID string) ([]*models.Transaction, error)
}
