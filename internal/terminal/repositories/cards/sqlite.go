package cards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/dmitrijs2005/farekeeper/internal/dbx"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.CardRecord, error) {
	query := `SELECT id, payload, nonce FROM cards WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	rec := &models.CardRecord{}
	if err := row.Scan(&rec.ID, &rec.Payload, &rec.Nonce); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.CardRecord) error {
	query := `INSERT INTO cards (id, payload, nonce)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, nonce = excluded.nonce
	`
	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.Payload, rec.Nonce)
	if err != nil {
		return fmt.Errorf("failed to upsert card: %w", err)
	}
	return nil
}
