// Package load implements the staged bulk-load engine: one file into one
// bronze table through a transaction-scoped staging relation, with
// delete-then-insert keyed by snapshot id for exactly-once-per-snapshot
// semantics.
package load

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dstack-labs/bronzeload/internal/catalog"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/jackc/pgx/v5"
)

// Loader moves raw CSV files into bronze target tables.
//
// All SQL identifiers are built with pgx.Identifier from the catalog;
// externally influenced strings only ever appear as bind parameters.
type Loader struct {
	catalog  *catalog.Catalog
	dataRoot string
	logger   bronze.Logger
}

// NewLoader creates a Loader. dataRoot is the absolute directory that every
// loadable file path must resolve under.
func NewLoader(cat *catalog.Catalog, dataRoot string, logger bronze.Logger) *Loader {
	if cat == nil {
		panic("catalog cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Loader{
		catalog:  cat,
		dataRoot: dataRoot,
		logger:   logger,
	}
}

// LoadFile loads one CSV file into tableName as one atomic unit of work:
//
//  1. Create a staging relation cloned from the target, dropped at commit.
//  2. Drop the lineage columns from the staging shape so it matches the file.
//  3. Bulk-copy the file through the COPY protocol (header row skipped).
//  4. Delete any target rows already tagged with this snapshot id.
//  5. Insert staged rows with the four lineage values appended.
//
// On any failure the transaction is rolled back and a *bronze.LoadError is
// returned; no partial writes survive.
func (l *Loader) LoadFile(
	ctx context.Context,
	sess bronze.Session,
	filePath, tableName, snapshotID, runID, sourceFile string,
) (bronze.LoadResult, error) {
	if err := l.validate(filePath, tableName); err != nil {
		return bronze.LoadResult{}, err
	}

	start := time.Now()

	tx, err := sess.Begin(ctx)
	if err != nil {
		return bronze.LoadResult{}, &bronze.LoadError{Table: tableName, Err: err}
	}

	result, err := l.loadInTx(ctx, tx, filePath, tableName, snapshotID, runID, sourceFile)
	if err != nil {
		_ = tx.Rollback(ctx)
		l.logger.Error("load of %s into %s failed, rolled back: %v", sourceFile, tableName, err)
		return bronze.LoadResult{}, &bronze.LoadError{Table: tableName, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return bronze.LoadResult{}, &bronze.LoadError{Table: tableName, Err: err}
	}

	result.DurationSeconds = math.Round(time.Since(start).Seconds()*1000) / 1000
	l.logger.Info("loaded %s: %d rows (replaced %d) in %.3fs",
		tableName, result.RowsInserted, result.RowsDeleted, result.DurationSeconds)
	return result, nil
}

// validate enforces the allow-list and path containment before any database
// side effect.
func (l *Loader) validate(filePath, tableName string) error {
	if !l.catalog.IsAllowed(tableName) {
		l.logger.Error("rejected load into unknown table %q", tableName)
		return fmt.Errorf("table %q is not a known bronze target: %w", tableName, bronze.ErrSecurityViolation)
	}

	abs, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", filePath, err)
	}
	rel, err := filepath.Rel(l.dataRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		l.logger.Warn("rejected path outside data root: %s", abs)
		return fmt.Errorf("path %q escapes data root: %w", filePath, bronze.ErrSecurityViolation)
	}

	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file %q: %w", abs, bronze.ErrNotFound)
		}
		return fmt.Errorf("stat %q: %w", abs, err)
	}
	return nil
}

func (l *Loader) loadInTx(
	ctx context.Context,
	tx bronze.Tx,
	filePath, tableName, snapshotID, runID, sourceFile string,
) (bronze.LoadResult, error) {
	// Staging relation name is unique per run to avoid collisions between
	// concurrent runs on other sessions.
	stagingName := fmt.Sprintf("staging_%s_%s", tableName, strings.ReplaceAll(runID, "-", ""))
	staging := pgx.Identifier{stagingName}.Sanitize()
	target := pgx.Identifier{l.catalog.Schema, tableName}.Sanitize()

	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING ALL) ON COMMIT DROP", staging, target)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return bronze.LoadResult{}, fmt.Errorf("create staging relation: %w", err)
	}

	// The staging shape must match the raw file exactly.
	for _, col := range bronze.LineageColumns {
		dropSQL := fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s",
			staging, pgx.Identifier{col}.Sanitize())
		if _, err := tx.Exec(ctx, dropSQL); err != nil {
			return bronze.LoadResult{}, fmt.Errorf("drop lineage column %s from staging: %w", col, err)
		}
	}

	f, err := os.Open(filePath)
	if err != nil {
		return bronze.LoadResult{}, fmt.Errorf("open %q: %w", filePath, err)
	}
	defer f.Close()

	copySQL := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", staging)
	if _, err := tx.CopyFrom(ctx, f, copySQL); err != nil {
		return bronze.LoadResult{}, fmt.Errorf("bulk copy into staging: %w", err)
	}

	var existing int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE _snapshot_id = $1", target)
	if err := tx.QueryRow(ctx, countSQL, snapshotID).Scan(&existing); err != nil {
		return bronze.LoadResult{}, fmt.Errorf("count existing snapshot rows: %w", err)
	}
	if existing > 0 {
		l.logger.Warn("replacing %d existing rows in %s for snapshot %s", existing, tableName, snapshotID)
	}

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE _snapshot_id = $1", target)
	tag, err := tx.Exec(ctx, deleteSQL, snapshotID)
	if err != nil {
		return bronze.LoadResult{}, fmt.Errorf("delete prior snapshot rows: %w", err)
	}
	deleted := tag.RowsAffected()

	insertSQL := fmt.Sprintf("INSERT INTO %s SELECT *, $1, $2, now(), $3 FROM %s", target, staging)
	if _, err := tx.Exec(ctx, insertSQL, snapshotID, runID, sourceFile); err != nil {
		return bronze.LoadResult{}, fmt.Errorf("insert staged rows: %w", err)
	}

	var staged int64
	stagedSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", staging)
	if err := tx.QueryRow(ctx, stagedSQL).Scan(&staged); err != nil {
		return bronze.LoadResult{}, fmt.Errorf("count staged rows: %w", err)
	}

	return bronze.LoadResult{
		Table:        tableName,
		SnapshotID:   snapshotID,
		RunID:        runID,
		RowsInserted: staged,
		RowsDeleted:  deleted,
	}, nil
}
