// Package terminals provides PostgreSQL-backed storage for terminal
// registrations.
package terminals

import (
	"context"

	"github.com/dmitrijs2005/farekeeper/internal/server/models"
)

// Repository describes storage operations for terminals.
type Repository interface {
	// Touch upserts a terminal, refreshing its heartbeat time and pending
	// transaction count.
	Touch(ctx context.Context, id string, pending int) error

	// Get returns a terminal by ID, or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Terminal, error)

	// List returns all registered terminals ordered by ID.
	List(ctx context.Context) ([]*models.Terminal, error)
}
