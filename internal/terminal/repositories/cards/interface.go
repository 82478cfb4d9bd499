// Package cards stores encrypted card records in the terminal's local
// database.
package cards

import (
	"context"

	"github.com/dmitrijs2005/farekeeper/internal/terminal/models"
)

// Repository describes storage operations for card records. Implementations
// are backed by the local SQLite database and deal in ciphertext only; the
// ledger service above them owns encryption.
type Repository interface {
	// GetByID returns a card record, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.CardRecord, error)

	// Upsert inserts a new card record or replaces an existing one by ID.
	Upsert(ctx context.Context, rec *models.CardRecord) error
}
