package cards

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

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Card, error) {
	var card models.Card
	err := row.Scan(&card.ID, &card.Balance, &card.Version, &card.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving card: %w", err)
	}
	return &card, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Card, error) {
	row := r.q.QueryRowContext(ctx,
		"select id, balance, version, updated_at from cards where id = $1", id)
	return r.scanOne(row)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Card, error) {
	row := r.q.QueryRowContext(ctx,
		"select id, balance, version, updated_at from cards where id = $1 for update", id)
	return r.scanOne(row)
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, id string, balance int64) error {
	_, err := r.q.ExecContext(ctx,
		"insert into cards (id, balance, version, updated_at) values ($1, $2, 1, now()) on conflict (id) do nothing",
		id, balance)
	if err != nil {
		return fmt.Errorf("error creating card: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateBalance(ctx context.Context, id string, balance, version int64) error {
	result, err := r.q.ExecContext(ctx,
		"update cards set balance = $1, version = $2, updated_at = now() where id = $3",
		balance, version, id)
	if err != nil {
		return fmt.Errorf("error updating card: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating card: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
