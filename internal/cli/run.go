package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dstack-labs/bronzeload/internal/db"
	"github.com/dstack-labs/bronzeload/internal/extract"
	"github.com/dstack-labs/bronzeload/internal/manifest"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract the source archive and load it in one pass",
	Long: `Run performs extract followed by load: fetch and unpack the archive, write
the snapshot manifest, then stage every cataloged file into the bronze schema.

Equivalent to "bronzeload extract" followed by "bronzeload load" against the
snapshot the extract produced.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		source, err := cmd.Flags().GetString("source")
		if err != nil {
			return err
		}
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}
		return runPipeline(cmd, source, force)
	},
}

func init() {
	runCmd.Flags().String("source", "", "Archive to extract: local path or s3://bucket/key")
	runCmd.Flags().Bool("force", false, "Extract even if the source version is unchanged")
	_ = runCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, sourceURI string, force bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}

	source, err := extract.ParseSourceURI(sourceURI)
	if err != nil {
		return err
	}

	store := manifest.NewStore(e.cfg.ManifestDir())
	extractor := extract.NewExtractor(e.cfg, e.cat, store, source, e.logger)
	m, err := extractor.Extract(ctx, force)
	if err != nil {
		return err
	}
	cmd.Printf("Snapshot %s: %d files extracted\n", m.SnapshotID, len(m.Files))

	pool := db.NewPool(e.cfg, e.logger)
	defer pool.Shutdown()

	orch, err := e.newOrchestrator(pool)
	if err != nil {
		return err
	}

	summary, err := orch.Load(ctx, m.SnapshotID, "")
	if err != nil {
		return err
	}

	cmd.Printf("Run %s: %d tables loaded, %d rows\n", summary.RunID, summary.TablesLoaded, summary.TotalRows)
	if len(summary.FailedTables) > 0 {
		return fmt.Errorf("run %s failed for tables %v: %w", summary.RunID, summary.FailedTables, bronze.ErrLoadFailed)
	}
	return nil
}
