package cli

import (
	"os/signal"
	"syscall"

	"github.com/dstack-labs/bronzeload/internal/db"
	"github.com/spf13/cobra"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the bronze and ingestion schemas",
	Long: `Initdb creates the bronze and ingestion schemas and the ingestion bookkeeping
tables (runs, file_loads, file_manifest, quality_checks). Bronze target tables
are provisioned by warehouse DDL, not by this tool. All statements are
idempotent, so initdb is safe to run against an already initialized database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := buildEnv(cmd)
		if err != nil {
			return err
		}

		pool := db.NewPool(e.cfg, e.logger)
		defer pool.Shutdown()

		sess, err := pool.Acquire(ctx)
		if err != nil {
			return err
		}
		healthy := true
		defer func() { sess.Release(healthy) }()

		if err := db.EnsureSchema(ctx, sess); err != nil {
			healthy = false
			return err
		}

		cmd.Println("Database schema initialized")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}
