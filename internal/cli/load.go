package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dstack-labs/bronzeload/internal/db"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load an extracted snapshot into the bronze schema",
	Long: `Load stages every cataloged file of a snapshot into its bronze table.

Each file loads in its own transaction: rows of the same snapshot are replaced
atomically, so re-running a load is safe. A failing file marks the run failed
but does not stop the remaining files.

With no --snapshot-id the most recently extracted snapshot is loaded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		snapshotID, err := cmd.Flags().GetString("snapshot-id")
		if err != nil {
			return err
		}
		runID, err := cmd.Flags().GetString("run-id")
		if err != nil {
			return err
		}
		return runLoad(cmd, snapshotID, runID)
	},
}

func init() {
	loadCmd.Flags().String("snapshot-id", "", "Snapshot to load (default: most recent manifest)")
	loadCmd.Flags().String("run-id", "", "Run identifier for lineage records (default: generated)")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, snapshotID, runID string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}

	pool := db.NewPool(e.cfg, e.logger)
	defer pool.Shutdown()

	orch, err := e.newOrchestrator(pool)
	if err != nil {
		return err
	}

	summary, err := orch.Load(ctx, snapshotID, runID)
	if err != nil {
		return err
	}

	cmd.Printf("Run %s (snapshot %s): %d tables loaded, %d rows\n",
		summary.RunID, summary.SnapshotID, summary.TablesLoaded, summary.TotalRows)
	for _, r := range summary.Results {
		cmd.Printf("  %-40s %8d rows in %.3fs\n", r.Table, r.RowsInserted, r.DurationSeconds)
	}
	if len(summary.FailedTables) > 0 {
		return fmt.Errorf("run %s failed for tables %v: %w", summary.RunID, summary.FailedTables, bronze.ErrLoadFailed)
	}
	return nil
}
