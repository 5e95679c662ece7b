// Package lineage records what each run attempted and why it ended the way it
// did: run lifecycle, per-file load attempts, and the content-hash history
// that drives the unchanged-file skip decision.
package lineage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/jackc/pgx/v5"
)

// Tracker writes lineage records. Each operation is a single statement that
// takes effect immediately on the session; transactions here are deliberately
// short-lived so bookkeeping survives later per-file failures.
type Tracker struct {
	logger bronze.Logger
}

// NewTracker creates a Tracker.
func NewTracker(logger bronze.Logger) *Tracker {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Tracker{logger: logger}
}

// RegisterRun inserts the run record with status started. Must be called
// exactly once per run, before any file is processed.
func (t *Tracker) RegisterRun(ctx context.Context, sess bronze.Session, runID, snapshotID string) error {
	_, err := sess.Exec(ctx,
		`INSERT INTO ingestion.runs (run_id, snapshot_id, status) VALUES ($1, $2, $3)`,
		runID, snapshotID, string(bronze.RunStarted),
	)
	if err != nil {
		return fmt.Errorf("register run %s: %w", runID, err)
	}
	return nil
}

// CompleteRun terminates the run record with success or failed. Called
// exactly once per run.
func (t *Tracker) CompleteRun(ctx context.Context, sess bronze.Session, runID string, status bronze.RunStatus, errorMessage string) error {
	_, err := sess.Exec(ctx,
		`UPDATE ingestion.runs
		 SET status = $2, end_time = now(), error_message = NULLIF($3, '')
		 WHERE run_id = $1`,
		runID, string(status), errorMessage,
	)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	return nil
}

// RegisterFileLoad inserts a pending file-load record. A duplicate call for
// the same (run, filename) is a no-op, not an error.
func (t *Tracker) RegisterFileLoad(ctx context.Context, sess bronze.Session, runID, filename string) error {
	_, err := sess.Exec(ctx,
		`INSERT INTO ingestion.file_loads (run_id, filename, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (run_id, filename) DO NOTHING`,
		runID, filename, string(bronze.FileLoadPending),
	)
	if err != nil {
		return fmt.Errorf("register file load %s/%s: %w", runID, filename, err)
	}
	return nil
}

// CompleteFileLoad transitions a file-load record to loaded or failed with
// diagnostics.
func (t *Tracker) CompleteFileLoad(ctx context.Context, sess bronze.Session, runID, filename string, status bronze.FileLoadStatus, rowsInserted int64, message string) error {
	_, err := sess.Exec(ctx,
		`UPDATE ingestion.file_loads
		 SET status = $3, rows_inserted = $4, message = NULLIF($5, ''), updated_at = now()
		 WHERE run_id = $1 AND filename = $2`,
		runID, filename, string(status), rowsInserted, message,
	)
	if err != nil {
		return fmt.Errorf("complete file load %s/%s: %w", runID, filename, err)
	}
	return nil
}

// HasFileChanged compares newHash against the most recently recorded hash for
// the file, across all snapshots. A file with no recorded hash counts as
// changed. This compares content, not lineage: the snapshot id plays no part.
func (t *Tracker) HasFileChanged(ctx context.Context, sess bronze.Session, filename, newHash string) (bool, error) {
	var lastHash string
	err := sess.QueryRow(ctx,
		`SELECT file_hash FROM ingestion.file_manifest
		 WHERE filename = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		filename,
	).Scan(&lastHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up last hash for %s: %w", filename, err)
	}
	return lastHash != newHash, nil
}

// RecordFileManifest upserts the (snapshot, filename) manifest record.
// Called only after a successful load of that file.
func (t *Tracker) RecordFileManifest(ctx context.Context, sess bronze.Session, snapshotID, filename, hash string, size, rowCount int64) error {
	_, err := sess.Exec(ctx,
		`INSERT INTO ingestion.file_manifest (snapshot_id, filename, file_hash, file_size_bytes, row_count)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (snapshot_id, filename) DO UPDATE
		 SET file_hash = EXCLUDED.file_hash,
		     file_size_bytes = EXCLUDED.file_size_bytes,
		     row_count = EXCLUDED.row_count`,
		snapshotID, filename, hash, size, rowCount,
	)
	if err != nil {
		return fmt.Errorf("record file manifest %s/%s: %w", snapshotID, filename, err)
	}
	t.logger.Verbose("recorded manifest for %s (snapshot %s)", filename, snapshotID)
	return nil
}
