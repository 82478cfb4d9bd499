// Package cards provides PostgreSQL-backed storage for authoritative card
// state.
package cards

import (
	"context"

	"github.com/dmitrijs2005/farekeeper/internal/server/models"
)

// Repository describes storage operations for cards. GetForUpdate is the
// per-card serialization point: the row lock it takes is what stops two
// terminals from both spending the same balance.
type Repository interface {
	// Get returns a read-only snapshot, or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Card, error)

	// GetForUpdate returns the card locked for the current transaction.
	// Must be called inside dbx.WithTx.
	GetForUpdate(ctx context.Context, id string) (*models.Card, error)

	// CreateIfAbsent inserts a card with the given starting balance unless
	// it already exists.
	CreateIfAbsent(ctx context.Context, id string, balance int64) error

	// UpdateBalance writes a new balance and version for the card.
	UpdateBalance(ctx context.Context, id string, balance, version int64) error
}
