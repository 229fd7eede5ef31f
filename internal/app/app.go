// Package app wires loresync's components together and manages their
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/loresync/internal/config"
	"github.com/stacklok/loresync/internal/sync"
)

// LoreSyncApp encapsulates all components needed to run loresync.
// It provides lifecycle management and graceful shutdown capabilities
type LoreSyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the scheduled syncs, if any, and the HTTP server.
// This method blocks until the HTTP server stops or encounters an error
func (app *LoreSyncApp) Start() error {
	if app.components.Coordinator != nil {
		go func() {
			if err := app.components.Coordinator.Start(app.ctx); err != nil {
				slog.Error("Sync coordinator failed", "error", err)
			}
		}()
	}

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// Scheduled syncs stop first so no new run begins while the server drains.
func (app *LoreSyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	if app.components.Coordinator != nil {
		if err := app.components.Coordinator.Stop(); err != nil {
			slog.Error("Failed to stop sync coordinator", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := app.httpServer.Shutdown(shutdownCtx)

	app.Close()

	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// Close releases the database pool and telemetry without touching the HTTP
// server. One-shot commands call it instead of Stop.
func (app *LoreSyncApp) Close() {
	if app.cancelFunc != nil {
		app.cancelFunc()
		app.cancelFunc = nil
	}
}

// Manager returns the sync manager
func (app *LoreSyncApp) Manager() sync.Manager {
	return app.components.Manager
}

// GetConfig returns the application configuration
func (app *LoreSyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *LoreSyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
