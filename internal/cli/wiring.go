package cli

import (
	"github.com/dstack-labs/bronzeload/internal/catalog"
	"github.com/dstack-labs/bronzeload/internal/config"
	"github.com/dstack-labs/bronzeload/internal/db"
	"github.com/dstack-labs/bronzeload/internal/lineage"
	"github.com/dstack-labs/bronzeload/internal/load"
	"github.com/dstack-labs/bronzeload/internal/logging"
	"github.com/dstack-labs/bronzeload/internal/manifest"
	"github.com/dstack-labs/bronzeload/internal/quality"
	"github.com/dstack-labs/bronzeload/internal/services"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/spf13/cobra"
)

// env is the wiring shared by every command that touches the warehouse.
type env struct {
	cfg    *config.Config
	cat    *catalog.Catalog
	logger bronze.Logger
}

func buildEnv(cmd *cobra.Command) (*env, error) {
	logger := logging.NewConsoleLogger(getVerboseFlag(cmd))

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	catalogPath, err := cmd.Flags().GetString("catalog")
	if err != nil {
		return nil, err
	}
	cat := catalog.Default()
	if catalogPath != "" {
		cat, err = catalog.LoadFile(catalogPath)
		if err != nil {
			return nil, err
		}
	}

	return &env{cfg: cfg, cat: cat, logger: logger}, nil
}

func (e *env) newOrchestrator(pool *db.Pool) (*services.Orchestrator, error) {
	dataRoot, err := e.cfg.DataRoot()
	if err != nil {
		return nil, err
	}

	return services.NewOrchestrator(
		pool,
		e.cat,
		manifest.NewStore(e.cfg.ManifestDir()),
		load.NewLoader(e.cat, dataRoot, e.logger),
		quality.NewChecker(e.cat, e.logger),
		lineage.NewTracker(e.logger),
		e.cfg,
		e.logger,
	), nil
}
