package terminals

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

func (r *PostgresRepository) Touch(ctx context.Context, id string, pending int) error {
	_, err := r.q.ExecContext(ctx,
		`insert into terminals (id, last_heartbeat, state, pending_count)
		 values ($1, now(), 'online', $2)
		 on conflict (id) do update
		 set last_heartbeat = now(), state = 'online', pending_count = $2`,
		id, pending)
	if err != nil {
		return fmt.Errorf("error touching terminal: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Terminal, error) {
	row := r.q.QueryRowContext(ctx,
		"select id, last_heartbeat, state, pending_count from terminals where id = $1", id)

	var t models.Terminal
	err := row.Scan(&t.ID, &t.LastHeartbeat, &t.State, &t.Pending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving terminal: %w", err)
	}
	return &t, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Terminal, error) {
	rows, err := r.q.QueryContext(ctx,
		"select id, last_heartbeat, state, pending_count from terminals order by id")
	if err != nil {
		return nil, fmt.Errorf("error listing terminals: %w", err)
	}
	defer rows.Close()

	var result []*models.Terminal
	for rows.Next() {
		var t models.Terminal
		if err := rows.Scan(&t.ID, &t.LastHeartbeat, &t.State, &t.Pending); err != nil {
			return nil, fmt.Errorf("error listing terminals: %w", err)
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error listing terminals: %w", err)
	}
	return result, nil
}
