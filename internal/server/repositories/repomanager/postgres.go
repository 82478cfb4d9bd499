package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/farekeeper/internal/dbx"
	"github.com/dmitrijs2005/farekeeper/internal/server/migrations"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/cards"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/terminals"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/txns"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRepositoryManager binds repositories to one PostgreSQL pool.
type PostgresRepositoryManager struct {
	db *sql.DB
}

func NewPostgresRepositoryManager(dsn string) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return &PostgresRepositoryManager{db: db}, nil
}

func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, m.db, ".")
}

func (m *PostgresRepositoryManager) Cards(q dbx.DBTX) cards.Repository {
	return cards.NewPostgresRepository(q)
}

func (m *PostgresRepositoryManager) Transactions(q dbx.DBTX) txns.Repository {
	return txns.NewPostgresRepository(q)
}

func (m *PostgresRepositoryManager) Terminals(q dbx.DBTX) terminals.Repository {
	return terminals.NewPostgresRepository(q)
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}
