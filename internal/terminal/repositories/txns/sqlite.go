package txns

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/farekeeper/internal/dbx"
	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
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

func (r *SQLiteRepository) Insert(ctx context.Context, rec *models.TransactionRecord) error {
	query := `INSERT INTO transactions (id, card_id, seq, status, reason, payload, nonce)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.CardID, rec.Seq, rec.Status, rec.Reason, rec.Payload, rec.Nonce)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) NextSeq(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(MAX(seq), 0) + 1 FROM transactions`
	var seq int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to allocate sequence number: %w", err)
	}
	return seq, nil
}

func (r *SQLiteRepository) Unsynced(ctx context.Context) ([]*models.TransactionRecord, error) {
	query := `SELECT id, card_id, seq, status, reason, payload, nonce FROM transactions
		WHERE status IN (?, ?) ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, syncapi.StatusPending, syncapi.StatusSynced)
	if err != nil {
		return nil, fmt.Errorf("failed to select transactions: %w", err)
	}
	defer rows.Close()

	var result []*models.TransactionRecord
	for rows.Next() {
		rec := &models.TransactionRecord{}
		if err := rows.Scan(&rec.ID, &rec.CardID, &rec.Seq, &rec.Status, &rec.Reason, &rec.Payload, &rec.Nonce); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, ids []string, status syncapi.TxStatus, reason string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := fmt.Sprintf(`UPDATE transactions SET status = ?, reason = ? WHERE id IN (%s)`, placeholders)

	args := make([]any, 0, len(ids)+2)
	args = append(args, status, reason)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return nil
}
