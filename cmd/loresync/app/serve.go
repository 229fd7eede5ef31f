package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	loresync "github.com/stacklok/loresync/internal/app"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sync API server",
		Long: `Start the HTTP API that triggers syncs and reports their status.

When the configuration has a schedule block, the listed users are also synced
in the background at the configured interval.`,
		RunE: runServe,
	}
	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().Duration("request-timeout", 15*time.Minute, "Upper bound for one HTTP request, including the sync it runs")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return fmt.Errorf("failed to get address flag: %w", err)
	}
	requestTimeout, err := cmd.Flags().GetDuration("request-timeout")
	if err != nil {
		return fmt.Errorf("failed to get request-timeout flag: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := loresync.NewLoreSyncApp(context.Background(),
		loresync.WithConfig(cfg),
		loresync.WithAddress(address),
		loresync.WithRequestTimeout(requestTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	select {
	case err := <-errChan:
		app.Close()
		return err
	case <-ctx.Done():
	}

	slog.Info("Received shutdown signal")
	if err := app.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errChan
}
