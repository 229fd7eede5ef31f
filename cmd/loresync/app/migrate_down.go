package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/loresync/database"
)

func newMigrateDownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.`,
		Example: `  # Migrate down by 1 step
  loresync migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all data)
  loresync migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	}
	cmd.Flags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")
	return cmd
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	connString, target, err := migrationConnString()
	if err != nil {
		return err
	}

	var prompt string
	if numSteps == 0 {
		prompt = fmt.Sprintf("WARNING: This will migrate %s down ALL steps and may result in complete data loss. Continue?", target)
	} else {
		prompt = fmt.Sprintf("WARNING: This will migrate %s down %d step(s) and may result in data loss. Continue?", target, numSteps)
	}
	ok, err := confirm(cmd, prompt)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled")
		return fmt.Errorf("migration cancelled by user")
	}

	if err := database.MigrateDown(connString, numSteps); err != nil {
		return fmt.Errorf("failed to migrate down: %w", err)
	}

	displayMigrationVersion(connString, numSteps == 0)
	return nil
}
