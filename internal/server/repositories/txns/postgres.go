package txns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/dmitrijs2005/farekeeper/internal/dbx"
	"github.com/dmitrijs2005/farekeeper/internal/server/models"
)

type PostgresRepository struct {
	q dbx.DBTX
}

func NewPostgresRepository(q dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{q: q}
}

const txnColumns = "id, card_id, terminal_id, kind, amount, seq, status, reason, created_at, recorded_at"

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	row := r.q.QueryRowContext(ctx,
		"select "+txnColumns+" from transactions where id = $1", id)

	var txn models.Transaction
	err := row.Scan(&txn.ID, &txn.CardID, &txn.TerminalID, &txn.Kind, &txn.Amount,
		&txn.Seq, &txn.Status, &txn.Reason, &txn.CreatedAt, &txn.RecordedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving transaction: %w", err)
	}
	return &txn, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, txn *models.Transaction) error {
	_, err := r.q.ExecContext(ctx,
		"insert into transactions ("+txnColumns+") values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		txn.ID, txn.CardID, txn.TerminalID, txn.Kind, txn.Amount,
		txn.Seq, txn.Status, txn.Reason, txn.CreatedAt, txn.RecordedAt)
	if err != nil {
		return fmt.Errorf("error inserting transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByCard(ctx context.Context, cardID string) ([]*models.Transaction, error) {
	rows, err := r.q.QueryContext(ctx,
		"select "+txnColumns+" from transactions where card_id = $1 order by recorded_at, seq", cardID)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		var txn models.Transaction
		err := rows.Scan(&txn.ID, &txn.CardID, &txn.TerminalID, &txn.Kind, &txn.Amount,
			&txn.Seq, &txn.Status, &txn.Reason, &txn.CreatedAt, &txn.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("error listing transactions: %w", err)
		}
		result = append(result, &txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	return result, nil
}
