// Package server wires the central ledger together: storage, services, and
// the HTTP API, with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/logging"
	"github.com/dmitrijs2005/farekeeper/internal/server/config"
	"github.com/dmitrijs2005/farekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/farekeeper/internal/server/ledger"
	"github.com/dmitrijs2005/farekeeper/internal/server/reconcile"
	"github.com/dmitrijs2005/farekeeper/internal/server/repositories/repomanager"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	rm     repomanager.RepositoryManager
	router http.Handler
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	rm, err := repomanager.NewPostgresRepositoryManager(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	ledgerSvc := ledger.New(rm, c.DefaultBalance, logger)
	reconcileSvc := reconcile.New(ledgerSvc, rm.Terminals(rm.Conn()), logger)

	handler := httpapi.NewHandler(reconcileSvc, ledgerSvc,
		[]byte(c.SecretKey), c.TokenValidityDuration, logger)

	return &App{
		config: c,
		logger: logger,
		rm:     rm,
		router: httpapi.NewRouter(handler),
	}, nil
}

// Run serves the HTTP API until ctx is cancelled, then drains in-flight
// requests.
func (app *App) Run(ctx context.Context) error {
	defer app.rm.Close()

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.router,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "server listening", "addr", app.config.EndpointAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
