package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	loresync "github.com/stacklok/loresync/internal/app"
	"github.com/stacklok/loresync/internal/sync"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-database sync health for one user",
		RunE:  runStatus,
	}
	cmd.Flags().String("user", "", "User to report on (UUID, required)")
	cmd.Flags().String("format", formatText, "Output format (text or json)")
	if err := cmd.MarkFlagRequired("user"); err != nil {
		panic(err)
	}
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	user, err := userFlag(cmd)
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

	report, err := app.Manager().Status(context.Background(), user)
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	if format == formatJSON {
		return printJSON(cmd, report)
	}
	return printStatusReport(cmd, report)
}

func printStatusReport(cmd *cobra.Command, report *sync.StatusReport) error {
	out := cmd.OutOrStdout()
	for _, ds := range report.Databases {
		last := "never"
		if ds.LastSyncTime != nil {
			last = ds.LastSyncTime.Format(time.RFC3339)
		}
		fmt.Fprintf(out, "%-14s %-12s last=%s synced=%d errors=%d properties=%d",
			ds.Label, ds.Health, last, ds.Synced, ds.Errors, ds.SchemaProperties)
		if ds.Message != "" {
			fmt.Fprintf(out, "  %s", ds.Message)
		}
		if _, err := fmt.Fprintln(out); err != nil {
			return err
		}
	}
	return nil
}
