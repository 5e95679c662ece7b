// Package services wires the pipeline together: the orchestrator drives the
// staged load engine, the quality gate, and the lineage tracker per file on
// one held session, isolating per-file failures so a single bad file never
// aborts the run.
package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dstack-labs/bronzeload/internal/catalog"
	"github.com/dstack-labs/bronzeload/internal/config"
	"github.com/dstack-labs/bronzeload/internal/quality"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/google/uuid"
)

// ConnectionPool is the slice of the pool manager the orchestrator needs.
type ConnectionPool interface {
	Acquire(ctx context.Context) (bronze.Session, error)
	HealthCheck(ctx context.Context) bronze.HealthStatus
}

// FileLoader is the staged load engine.
type FileLoader interface {
	LoadFile(ctx context.Context, sess bronze.Session, filePath, tableName, snapshotID, runID, sourceFile string) (bronze.LoadResult, error)
}

// QualityChecker is the post-load quality gate.
type QualityChecker interface {
	RunChecks(ctx context.Context, sess bronze.Session, tableName, snapshotID string, expectedRows int64) []bronze.QualityResult
	PersistResults(ctx context.Context, sess bronze.Session, runID string, results []bronze.QualityResult) error
}

// LineageTracker records run and file lifecycle.
type LineageTracker interface {
	RegisterRun(ctx context.Context, sess bronze.Session, runID, snapshotID string) error
	CompleteRun(ctx context.Context, sess bronze.Session, runID string, status bronze.RunStatus, errorMessage string) error
	RegisterFileLoad(ctx context.Context, sess bronze.Session, runID, filename string) error
	CompleteFileLoad(ctx context.Context, sess bronze.Session, runID, filename string, status bronze.FileLoadStatus, rowsInserted int64, message string) error
	HasFileChanged(ctx context.Context, sess bronze.Session, filename, newHash string) (bool, error)
	RecordFileManifest(ctx context.Context, sess bronze.Session, snapshotID, filename, hash string, size, rowCount int64) error
}

// ManifestSource resolves snapshot manifests.
type ManifestSource interface {
	Load(snapshotID string) (*bronze.Manifest, error)
	Latest() (*bronze.Manifest, error)
}

// Orchestrator runs one load pass over every configured file.
type Orchestrator struct {
	pool      ConnectionPool
	catalog   *catalog.Catalog
	manifests ManifestSource
	loader    FileLoader
	checker   QualityChecker
	tracker   LineageTracker
	cfg       *config.Config
	logger    bronze.Logger
}

// NewOrchestrator creates an Orchestrator with all dependencies injected.
// Panics if any dependency is nil; this indicates a wiring bug, not a
// runtime condition.
func NewOrchestrator(
	pool ConnectionPool,
	cat *catalog.Catalog,
	manifests ManifestSource,
	loader FileLoader,
	checker QualityChecker,
	tracker LineageTracker,
	cfg *config.Config,
	logger bronze.Logger,
) *Orchestrator {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if cat == nil {
		panic("catalog cannot be nil")
	}
	if manifests == nil {
		panic("manifests cannot be nil")
	}
	if loader == nil {
		panic("loader cannot be nil")
	}
	if checker == nil {
		panic("checker cannot be nil")
	}
	if tracker == nil {
		panic("tracker cannot be nil")
	}
	if cfg == nil {
		panic("cfg cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Orchestrator{
		pool:      pool,
		catalog:   cat,
		manifests: manifests,
		loader:    loader,
		checker:   checker,
		tracker:   tracker,
		cfg:       cfg,
		logger:    logger,
	}
}

// Load runs the pipeline for one snapshot. An empty snapshotID resolves to
// the most recent manifest; an empty runID generates a fresh one.
//
// Files are processed strictly sequentially on one held session: file N
// commits or rolls back before file N+1 begins. A per-file failure marks the
// run failed but never aborts it; the summary always describes what did load.
func (o *Orchestrator) Load(ctx context.Context, snapshotID, runID string) (*bronze.LoadSummary, error) {
	m, err := o.resolveManifest(snapshotID)
	if err != nil {
		return nil, err
	}
	snapshotID = m.SnapshotID

	if runID == "" {
		runID = uuid.NewString()
	}

	if status := o.pool.HealthCheck(ctx); !status.Healthy {
		return nil, fmt.Errorf("database is unhealthy: %s: %w", status.Error, bronze.ErrConnectionFailed)
	}

	sess, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	healthy := true
	defer func() { sess.Release(healthy) }()

	if err := o.tracker.RegisterRun(ctx, sess, runID, snapshotID); err != nil {
		healthy = false
		return nil, err
	}

	summary := &bronze.LoadSummary{RunID: runID, SnapshotID: snapshotID}
	rawDir := o.cfg.RawDir(snapshotID)

	for _, entry := range o.catalog.Tables {
		outcome, skipped := o.loadOne(ctx, sess, m, rawDir, runID, entry)
		if skipped {
			continue
		}
		if outcome.Err != nil {
			summary.FailedTables = append(summary.FailedTables, outcome.Table)
			continue
		}
		summary.Results = append(summary.Results, outcome.Result)
		summary.TablesLoaded++
		summary.TotalRows += outcome.Result.RowsInserted
	}

	status := bronze.RunSuccess
	errorMessage := ""
	if len(summary.FailedTables) > 0 {
		status = bronze.RunFailed
		errorMessage = "failed tables: " + strings.Join(summary.FailedTables, ", ")
	}
	if err := o.tracker.CompleteRun(ctx, sess, runID, status, errorMessage); err != nil {
		o.logger.Error("could not finalize run %s: %v", runID, err)
	}

	o.logger.Info("run %s %s: %d tables, %d rows", runID, status, summary.TablesLoaded, summary.TotalRows)
	return summary, nil
}

// loadOne drives load -> manifest record -> quality gate -> lineage for one
// file. It never returns a raw error to the caller's control flow: failures
// are folded into the FileOutcome and recorded against the FileLoad row.
func (o *Orchestrator) loadOne(
	ctx context.Context,
	sess bronze.Session,
	m *bronze.Manifest,
	rawDir, runID string,
	entry catalog.FileTable,
) (outcome bronze.FileOutcome, skipped bool) {
	outcome = bronze.FileOutcome{Filename: entry.Filename, Table: entry.Table}

	filePath := filepath.Join(rawDir, entry.Filename)
	if _, err := os.Stat(filePath); err != nil {
		o.logger.Warn("skipping missing file: %s", filePath)
		return outcome, true
	}

	desc, inManifest := m.File(entry.Filename)
	if inManifest {
		changed, err := o.tracker.HasFileChanged(ctx, sess, entry.Filename, desc.Hash)
		if err == nil && !changed {
			o.logger.Info("skipping unchanged file: %s", entry.Filename)
			return outcome, true
		}
		if err != nil {
			o.logger.Warn("hash lookup for %s failed, loading anyway: %v", entry.Filename, err)
		}
	}

	if err := o.tracker.RegisterFileLoad(ctx, sess, runID, entry.Filename); err != nil {
		outcome.Err = err
		return outcome, false
	}

	result, err := o.loader.LoadFile(ctx, sess, filePath, entry.Table, m.SnapshotID, runID, entry.Filename)
	if err != nil {
		outcome.Err = err
		if cErr := o.tracker.CompleteFileLoad(ctx, sess, runID, entry.Filename, bronze.FileLoadFailed, 0, err.Error()); cErr != nil {
			o.logger.Error("could not record failure of %s: %v", entry.Filename, cErr)
		}
		return outcome, false
	}
	outcome.Result = result

	if inManifest {
		if err := o.tracker.RecordFileManifest(ctx, sess, m.SnapshotID, entry.Filename, desc.Hash, desc.Size, result.RowsInserted); err != nil {
			o.logger.Error("could not record manifest for %s: %v", entry.Filename, err)
		}
	}

	expected := quality.RowCountUnknown
	if inManifest && desc.RowCount > 0 {
		expected = desc.RowCount
	}
	results := o.checker.RunChecks(ctx, sess, entry.Table, m.SnapshotID, expected)
	if err := o.checker.PersistResults(ctx, sess, runID, results); err != nil {
		o.logger.Error("could not persist quality results for %s: %v", entry.Table, err)
	}

	if err := o.tracker.CompleteFileLoad(ctx, sess, runID, entry.Filename, bronze.FileLoadLoaded, result.RowsInserted, ""); err != nil {
		o.logger.Error("could not record completion of %s: %v", entry.Filename, err)
	}

	return outcome, false
}

func (o *Orchestrator) resolveManifest(snapshotID string) (*bronze.Manifest, error) {
	if snapshotID == "" {
		return o.manifests.Latest()
	}
	return o.manifests.Load(snapshotID)
}
