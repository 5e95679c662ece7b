// Package quality implements the post-load data-quality gate: a fixed battery
// of checks run against a just-loaded table/snapshot pair and persisted into
// the lineage store. Failures are advisory; they never roll back a load.
package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/dstack-labs/bronzeload/internal/catalog"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/jackc/pgx/v5"
)

// RowCountUnknown marks an expected row count the manifest could not supply.
// The row_count check records an inconclusive pass instead of comparing.
const RowCountUnknown int64 = -1

// Checker runs the quality gate.
type Checker struct {
	catalog *catalog.Catalog
	logger  bronze.Logger
}

// NewChecker creates a Checker backed by the given catalog.
func NewChecker(cat *catalog.Catalog, logger bronze.Logger) *Checker {
	if cat == nil {
		panic("catalog cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Checker{catalog: cat, logger: logger}
}

// RunChecks runs every check in fixed order: not_empty, row_count, schema,
// then one pk_null_<col> per declared primary-key column. Checks are
// independent; one failing never blocks the next.
func (c *Checker) RunChecks(
	ctx context.Context,
	sess bronze.Session,
	tableName, snapshotID string,
	expectedRows int64,
) []bronze.QualityResult {
	results := []bronze.QualityResult{
		c.checkNotEmpty(ctx, sess, tableName, snapshotID),
		c.checkRowCount(ctx, sess, tableName, snapshotID, expectedRows),
		c.checkSchema(ctx, sess, tableName),
	}
	results = append(results, c.checkPrimaryKeyNulls(ctx, sess, tableName, snapshotID)...)
	return results
}

// checkNotEmpty verifies the table has at least one row for this snapshot.
// An entirely empty landing is more severe than a count mismatch.
func (c *Checker) checkNotEmpty(ctx context.Context, sess bronze.Session, tableName, snapshotID string) bronze.QualityResult {
	count, err := c.snapshotRowCount(ctx, sess, tableName, snapshotID)
	if err != nil {
		return c.checkError(tableName, "not_empty", err)
	}

	result := bronze.QualityResult{
		Table:     tableName,
		CheckName: "not_empty",
		Passed:    count > 0,
		Details:   map[string]any{"row_count": count},
	}
	if !result.Passed {
		c.logger.Error("quality: %s is empty for snapshot %s", tableName, snapshotID)
	}
	return result
}

// checkRowCount compares the landed row count against the manifest's
// expectation. An unknown expectation is recorded as inconclusive rather
// than silently passing or failing.
func (c *Checker) checkRowCount(ctx context.Context, sess bronze.Session, tableName, snapshotID string, expected int64) bronze.QualityResult {
	actual, err := c.snapshotRowCount(ctx, sess, tableName, snapshotID)
	if err != nil {
		return c.checkError(tableName, "row_count", err)
	}

	if expected == RowCountUnknown {
		return bronze.QualityResult{
			Table:     tableName,
			CheckName: "row_count",
			Passed:    true,
			Details:   map[string]any{"actual": actual, "inconclusive": true},
		}
	}

	result := bronze.QualityResult{
		Table:     tableName,
		CheckName: "row_count",
		Passed:    actual == expected,
		Details:   map[string]any{"expected": expected, "actual": actual},
	}
	if !result.Passed {
		c.logger.Warn("quality: %s row count mismatch (expected %d, actual %d)", tableName, expected, actual)
	}
	return result
}

// checkSchema verifies the live column set contains the declared primary-key
// columns and the four lineage columns.
func (c *Checker) checkSchema(ctx context.Context, sess bronze.Session, tableName string) bronze.QualityResult {
	var actualCols []string
	err := sess.QueryRow(ctx,
		`SELECT COALESCE(array_agg(column_name::text ORDER BY ordinal_position), '{}')
		 FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2`,
		c.catalog.Schema, tableName,
	).Scan(&actualCols)
	if err != nil {
		return c.checkError(tableName, "schema", err)
	}

	have := make(map[string]bool, len(actualCols))
	for _, col := range actualCols {
		have[col] = true
	}

	var missing []string
	for _, col := range c.catalog.PrimaryKeyColumns(tableName) {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	for _, col := range bronze.LineageColumns {
		if !have[col] {
			missing = append(missing, col)
		}
	}

	result := bronze.QualityResult{
		Table:     tableName,
		CheckName: "schema",
		Passed:    len(missing) == 0,
		Details: map[string]any{
			"missing_columns": missing,
			"actual_columns":  actualCols,
		},
	}
	if !result.Passed {
		c.logger.Error("quality: %s is missing columns %v", tableName, missing)
	}
	return result
}

// checkPrimaryKeyNulls produces one pk_null_<col> result per declared
// primary-key column, with total, null count, and null rate in the details.
func (c *Checker) checkPrimaryKeyNulls(ctx context.Context, sess bronze.Session, tableName, snapshotID string) []bronze.QualityResult {
	target := pgx.Identifier{c.catalog.Schema, tableName}.Sanitize()

	var results []bronze.QualityResult
	for _, col := range c.catalog.PrimaryKeyColumns(tableName) {
		checkName := "pk_null_" + col

		var total, nullCount int64
		query := fmt.Sprintf(
			`SELECT COUNT(*), COUNT(*) FILTER (WHERE %s IS NULL) FROM %s WHERE _snapshot_id = $1`,
			pgx.Identifier{col}.Sanitize(), target,
		)
		if err := sess.QueryRow(ctx, query, snapshotID).Scan(&total, &nullCount); err != nil {
			results = append(results, c.checkError(tableName, checkName, err))
			continue
		}

		nullRate := 0.0
		if total > 0 {
			nullRate = math.Round(float64(nullCount)/float64(total)*10000) / 10000
		}

		result := bronze.QualityResult{
			Table:     tableName,
			CheckName: checkName,
			Passed:    nullCount == 0,
			Details: map[string]any{
				"column":     col,
				"total":      total,
				"null_count": nullCount,
				"null_rate":  nullRate,
			},
		}
		if !result.Passed {
			c.logger.Warn("quality: %s.%s has %d null primary-key values (rate %.4f)",
				tableName, col, nullCount, nullRate)
		}
		results = append(results, result)
	}
	return results
}

// PersistResults upserts verdicts into the quality-checks relation keyed by
// (run_id, table, check_name); a later run of the same check overwrites the
// earlier verdict and timestamp.
func (c *Checker) PersistResults(ctx context.Context, sess bronze.Session, runID string, results []bronze.QualityResult) error {
	for _, res := range results {
		details, err := json.Marshal(res.Details)
		if err != nil {
			return fmt.Errorf("encode details for %s/%s: %w", res.Table, res.CheckName, err)
		}

		_, err = sess.Exec(ctx,
			`INSERT INTO ingestion.quality_checks (run_id, table_name, check_name, passed, details)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (run_id, table_name, check_name) DO UPDATE
			 SET passed = EXCLUDED.passed, details = EXCLUDED.details, checked_at = now()`,
			runID, res.Table, res.CheckName, res.Passed, string(details),
		)
		if err != nil {
			return fmt.Errorf("persist %s check for %s: %w", res.CheckName, res.Table, err)
		}
	}
	return nil
}

func (c *Checker) snapshotRowCount(ctx context.Context, sess bronze.Session, tableName, snapshotID string) (int64, error) {
	target := pgx.Identifier{c.catalog.Schema, tableName}.Sanitize()
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE _snapshot_id = $1", target)
	if err := sess.QueryRow(ctx, query, snapshotID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// checkError records a check that could not be evaluated as a failed verdict
// carrying the error, keeping the battery independent of individual failures.
func (c *Checker) checkError(tableName, checkName string, err error) bronze.QualityResult {
	c.logger.Error("quality: %s check on %s could not run: %v", checkName, tableName, err)
	return bronze.QualityResult{
		Table:     tableName,
		CheckName: checkName,
		Passed:    false,
		Details:   map[string]any{"error": err.Error()},
	}
}
