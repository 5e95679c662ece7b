// Package cli implements the bronzeload command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bronzeload",
	Short: "Idempotent bronze-layer loader for PostgreSQL warehouses",
	Long: `bronzeload ingests versioned snapshots of flat files into the bronze layer
of a PostgreSQL warehouse. Every load is staged, idempotent per snapshot,
quality-checked against the source manifest, and recorded in the lineage store.

Connection parameters come from the environment (POSTGRES_HOST, POSTGRES_DB,
POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_PORT), optionally via --env-file.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Database connection failed
  12 - Security violation (table or path rejected)
  13 - Staged load failed
  14 - Missing file, manifest, or snapshot`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().String("env-file", "", "Load environment variables from this file before running")
	rootCmd.PersistentFlags().String("catalog", "", "Path to a YAML catalog overriding the built-in file-to-table mapping")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		envFile, err := cmd.Flags().GetString("env-file")
		if err != nil {
			return err
		}
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load env file %q: %w", envFile, err)
			}
		}
		return nil
	}
}

// getVerboseFlag safely retrieves the verbose flag value.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
