// Package metadata is a small key/value store for terminal-local settings
// that must survive restarts: the terminal identity and the vault key
// verifier.
package metadata

import "context"

// Well-known metadata keys.
const (
	KeyTerminalID  = "terminal_id"
	KeyKeyVerifier = "key_verifier"
)

// Repository describes key/value operations over the metadata table.
type Repository interface {
	// Get returns the value for name, or common.ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// Set inserts or replaces the value for name.
	Set(ctx context.Context, name string, value []byte) error
}
