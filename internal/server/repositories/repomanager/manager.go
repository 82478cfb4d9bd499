// Package repomanager wires the server repositories to a shared database
// connection.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/farekeeper/internal/dbx"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/cards"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/terminals"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/txns"
)

// RepositoryManager hands out repositories bound to an arbitrary querier, so
// a service can run several repository calls inside one transaction by
// passing the same *sql.Tx to each factory.
type RepositoryManager interface {
	Conn() *sql.DB
	RunMigrations(ctx context.Context) error
	Cards(q dbx.DBTX) cards.Repository
	Transactions(q dbx.DBTX) txns.Repository
	Terminals(q dbx.DBTX) terminals.Repository
	Close() error
}
