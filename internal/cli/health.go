package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dstack-labs/bronzeload/internal/db"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database connectivity and pool status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := buildEnv(cmd)
		if err != nil {
			return err
		}

		pool := db.NewPool(e.cfg, e.logger)
		defer pool.Shutdown()

		status := pool.HealthCheck(ctx)
		if !status.Healthy {
			return fmt.Errorf("database %q is unhealthy: %s: %w",
				status.Database, status.Error, bronze.ErrConnectionFailed)
		}

		cmd.Printf("Database %q is healthy\n", status.Database)
		cmd.Printf("Pool: %d/%d connections (%d idle, %d acquired)\n",
			status.Pool.TotalConns, status.Pool.MaxConns, status.Pool.IdleConns, status.Pool.AcquiredConns)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
