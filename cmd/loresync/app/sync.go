package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	loresync "github.com/stacklok/loresync/internal/app"
	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/sync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one user's unsynced records now",
		Long: `Run a single sync for one user and print the per-database outcome.

Interrupting the command stops it before the next record; a record already
being written is finished first.`,
		Example: `  loresync sync --config config.yaml --user 5f0c...
  loresync sync --user 5f0c... --database Characters --database lore --refresh-schema`,
		RunE: runSync,
	}
	cmd.Flags().String("user", "", "User whose records to sync (UUID, required)")
	cmd.Flags().StringSlice("database", nil, "Logical database to sync, by id or label (repeatable; default all)")
	cmd.Flags().Bool("refresh-schema", false, "Fetch every target schema again instead of using the cache")
	cmd.Flags().String("format", formatText, "Output format (text or json)")
	if err := cmd.MarkFlagRequired("user"); err != nil {
		panic(err)
	}
	return cmd
}

// syncRequest turns the sync flags into a run request.
func syncRequest(cmd *cobra.Command) (sync.RunRequest, error) {
	user, err := userFlag(cmd)
	if err != nil {
		return sync.RunRequest{}, err
	}
	names, err := cmd.Flags().GetStringSlice("database")
	if err != nil {
		return sync.RunRequest{}, fmt.Errorf("failed to get database flag: %w", err)
	}
	refresh, err := cmd.Flags().GetBool("refresh-schema")
	if err != nil {
		return sync.RunRequest{}, fmt.Errorf("failed to get refresh-schema flag: %w", err)
	}

	req := sync.RunRequest{UserID: user, RefreshSchema: refresh}
	for _, name := range names {
		db, err := catalog.Parse(name)
		if err != nil {
			return sync.RunRequest{}, err
		}
		req.Databases = append(req.Databases, db)
	}
	return req, nil
}

func userFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, err := cmd.Flags().GetString("user")
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get user flag: %w", err)
	}
	user, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--user must be a UUID: %w", err)
	}
	return user, nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	req, err := syncRequest(cmd)
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := loresync.NewLoreSyncApp(context.Background(), loresync.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := app.Manager().Run(ctx, req)
	if err != nil {
		return fmt.Errorf("sync could not start: %w", err)
	}
	slog.Info("Sync finished",
		"run_id", result.RunID, "synced", result.TotalSynced, "errors", result.TotalErrors)

	if format == formatJSON {
		return printJSON(cmd, result)
	}
	return printRunResult(cmd, result)
}

func printRunResult(cmd *cobra.Command, result *sync.RunResult) error {
	out := cmd.OutOrStdout()
	if result.DiscoveryTier != "" {
		fmt.Fprintf(out, "Targets found by %s\n", result.DiscoveryTier)
	}
	if result.Error != "" {
		fmt.Fprintf(out, "Discovery: %s\n", result.Error)
	}
	for _, db := range catalog.All() {
		dr, ok := result.Databases[db]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%-14s %-9s synced=%d errors=%d", db.Label(), dr.Phase, dr.Synced, dr.Errors)
		if dr.Message != "" {
			fmt.Fprintf(out, "  %s", dr.Message)
		}
		fmt.Fprintln(out)
	}
	_, err := fmt.Fprintf(out, "Total: %d synced, %d failed\n", result.TotalSynced, result.TotalErrors)
	if result.Cancelled {
		fmt.Fprintln(out, "Run was interrupted; remaining records will be picked up next time.")
	}
	return err
}
