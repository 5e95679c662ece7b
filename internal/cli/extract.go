package cli

import (
	"os/signal"
	"syscall"

	"github.com/dstack-labs/bronzeload/internal/extract"
	"github.com/dstack-labs/bronzeload/internal/manifest"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch the source archive and materialize a snapshot",
	Long: `Extract fetches the dataset archive, unpacks the cataloged files under the
data directory, and writes a manifest recording each file's hash, size, and
row count. The snapshot id is derived from the archive content, so extracting
the same archive twice yields the same snapshot.

The source may be a local archive path or an object-store URI
(s3://bucket/key, configured via S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY).`,
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
		return runExtract(cmd, source, force)
	},
}

func init() {
	extractCmd.Flags().String("source", "", "Archive to extract: local path or s3://bucket/key")
	extractCmd.Flags().Bool("force", false, "Extract even if the source version is unchanged")
	_ = extractCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, sourceURI string, force bool) error {
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

	extractor := extract.NewExtractor(e.cfg, e.cat, manifest.NewStore(e.cfg.ManifestDir()), source, e.logger)
	m, err := extractor.Extract(ctx, force)
	if err != nil {
		return err
	}

	cmd.Printf("Snapshot %s: %d files extracted\n", m.SnapshotID, len(m.Files))
	return nil
}
