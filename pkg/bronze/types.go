package bronze

import (
	"time"
)

// RunStatus is the lifecycle state of one orchestrator run.
type RunStatus string

const (
	RunStarted RunStatus = "started"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// FileLoadStatus is the lifecycle state of one file-load attempt within a run.
type FileLoadStatus string

const (
	FileLoadPending FileLoadStatus = "pending"
	FileLoadLoaded  FileLoadStatus = "loaded"
	FileLoadFailed  FileLoadStatus = "failed"
)

// Manifest describes one immutable snapshot of source files, produced by the
// extract step and consumed read-only by the loader.
type Manifest struct {
	SnapshotID string `json:"snapshot_id"`

	ExtractedAt time.Time `json:"extracted_at"`

	// SourceVersion identifies the upstream archive version (object-store ETag
	// or local file mtime). Used to short-circuit unchanged re-extractions.
	SourceVersion string `json:"source_version,omitempty"`

	Files []FileDescriptor `json:"files"`
}

// File returns the descriptor for the named file, if the manifest has one.
func (m *Manifest) File(name string) (FileDescriptor, bool) {
	for _, f := range m.Files {
		if f.Filename == name {
			return f, true
		}
	}
	return FileDescriptor{}, false
}

// FileDescriptor is one manifest entry: identity and expectations for a raw file.
type FileDescriptor struct {
	Filename string `json:"filename"`
	Hash     string `json:"hash"`
	Size     int64  `json:"size"`
	RowCount int64  `json:"row_count"`
}

// LoadResult is the outcome of one staged load of one file into one table.
type LoadResult struct {
	Table           string
	SnapshotID      string
	RunID           string
	RowsInserted    int64
	RowsDeleted     int64
	DurationSeconds float64
}

// NetRows is the net change in target rows: inserts minus idempotent-replace deletes.
func (r LoadResult) NetRows() int64 {
	return r.RowsInserted - r.RowsDeleted
}

// FileOutcome is the per-file result the orchestrator branches on. Exactly one
// of Result or Err is meaningful: Err == nil means the load committed.
type FileOutcome struct {
	Filename string
	Table    string
	Result   LoadResult
	Err      error
}

// LoadSummary describes one completed orchestrator run, including partial failures.
type LoadSummary struct {
	RunID        string
	SnapshotID   string
	TablesLoaded int
	TotalRows    int64
	FailedTables []string
	Results      []LoadResult
}

// QualityResult is the verdict of one post-load quality check. Failures are
// advisory: they are persisted and logged but never abort a load or a run.
type QualityResult struct {
	Table     string
	CheckName string
	Passed    bool

	// Details carries enough diagnostic payload to explain the verdict
	// without re-querying the database.
	Details map[string]any
}

// PoolStats is a point-in-time snapshot of connection pool utilization.
type PoolStats struct {
	MaxConns      int32
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
}

// HealthStatus is the result of a database health probe.
type HealthStatus struct {
	Healthy  bool
	Database string
	Error    string
	Pool     PoolStats
}
