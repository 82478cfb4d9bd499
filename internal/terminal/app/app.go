// Package app wires the terminal together: vault unlock, local database,
// sync engine, and the tap processing loop.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/dmitrijs2005/farekeeper/internal/cryptox"
	"github.com/dmitrijs2005/farekeeper/internal/logging"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/client"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/config"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/ledger"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/migrations"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/repositories/metadata"
	"github.com/dmitrijs2005/farekeeper/internal/terminal/syncer"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"golang.org/x/term"

	_ "modernc.org/sqlite"
)

var errWrongPassphrase = errors.New("vault passphrase does not match the stored key verifier")

type App struct {
	config *config.Config
	logger logging.Logger
	ledger *ledger.Service
	engine *syncer.Engine
	reader CardReader
	db     *sql.DB
}

// RunMigrations applies the embedded schema migrations to the terminal DB.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

func NewApp(c *config.Config, reader CardReader) (*App, error) {
	ctx := context.Background()

	var logger logging.Logger = logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("sqlite", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	key, err := unlockVault(ctx, db, c)
	if err != nil {
		return nil, err
	}

	terminalID, err := loadTerminalID(ctx, db)
	if err != nil {
		return nil, err
	}
	logger = logger.With("terminal_id", terminalID)

	ldg := ledger.New(db, key, terminalID, c.DefaultBalance, logger)
	api := client.NewHTTPClient(c.ServerEndpointAddr, terminalID, c.RequestTimeout, logger)
	engine := syncer.New(api, ldg, c.RetryInterval, c.RequestTimeout, logger)

	return &App{config: c, logger: logger, ledger: ldg, engine: engine, reader: reader, db: db}, nil
}

// unlockVault derives the vault key and checks it against the persisted
// verifier. On the very first start the verifier is recorded instead.
func unlockVault(ctx context.Context, db *sql.DB, c *config.Config) ([]byte, error) {
	passphrase := []byte(c.Passphrase)
	if len(passphrase) == 0 {
		fmt.Print("Vault passphrase: ")
		p, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return nil, fmt.Errorf("passphrase input error: %w", err)
		}
		passphrase = p
	}

	key := cryptox.DeriveKey(passphrase, []byte(c.Salt))
	verifier := cryptox.MakeVerifier(key)

	repo := metadata.NewSQLiteRepository(db)
	stored, err := repo.Get(ctx, metadata.KeyKeyVerifier)
	if errors.Is(err, common.ErrNotFound) {
		if err := repo.Set(ctx, metadata.KeyKeyVerifier, verifier); err != nil {
			return nil, err
		}
		return key, nil
	}
	if err != nil {
		return nil, err
	}

	if string(stored) != string(verifier) {
		return nil, errWrongPassphrase
	}
	return key, nil
}

// loadTerminalID returns the persistent terminal identity, generating one on
// first start. Keeping it stable across restarts keeps transaction IDs
// replay-safe.
func loadTerminalID(ctx context.Context, db *sql.DB) (string, error) {
	repo := metadata.NewSQLiteRepository(db)

	id, err := repo.Get(ctx, metadata.KeyTerminalID)
	if err == nil {
		return string(id), nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return "", err
	}

	generated := uuid.NewString()
	if err := repo.Set(ctx, metadata.KeyTerminalID, []byte(generated)); err != nil {
		return "", err
	}
	return generated, nil
}

// Run starts the sync engine and processes taps until ctx is cancelled or
// the reader is exhausted. One card at a time: a tap always completes
// locally before the next one is accepted.
func (a *App) Run(ctx context.Context) {
	defer a.db.Close()

	go a.engine.Run(ctx)

	fmt.Printf("Terminal ready. Tap card to pay %d\n", a.config.FareAmount)

	for {
		cardID, err := a.reader.WaitForCard(ctx)
		if err != nil {
			a.logger.Info(ctx, "card reader stopped", "reason", err.Error())
			return
		}
		a.HandleTap(ctx, cardID)
	}
}

// HandleTap processes one tap: optimistic local debit, then a nudge to the
// sync engine. Network state never blocks the tap.
func (a *App) HandleTap(ctx context.Context, cardID string) {
	card, err := a.ledger.GetOrCreateCard(ctx, cardID)
	if err != nil {
		a.logger.Error(ctx, "card lookup failed", "card_id", cardID, "error", err)
		fmt.Println("Card error, try again")
		return
	}

	txn, err := a.ledger.RecordDebit(ctx, cardID, a.config.FareAmount)
	switch {
	case errors.Is(err, common.ErrInsufficientBalance):
		fmt.Printf("Insufficient balance: %d\n", card.Balance)
		return
	case err != nil:
		a.logger.Error(ctx, "debit failed", "card_id", cardID, "error", err)
		fmt.Println("Payment failed")
		return
	}

	fmt.Printf("Payment accepted. Fare: %d, balance: %d\n", txn.Amount, card.Balance-txn.Amount)
	a.engine.Kick()
}
