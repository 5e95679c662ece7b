package bronze

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Pipeline completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to database
	ExitSecurityError   = 12 // Disallowed table name or path outside data root
	ExitLoadFailed      = 13 // Staged load failed
	ExitNotFound        = 14 // Missing file, manifest, or snapshot
)

const (
	// DefaultRetryInitialDelay is the base delay before the first retry of a
	// transient connection failure.
	DefaultRetryInitialDelay = 500 * time.Millisecond

	// DefaultRetryMaxDelay caps the backoff between connection retries.
	DefaultRetryMaxDelay = 5 * time.Second

	// DefaultRetryMaxAttempts bounds retries of transient connection failures.
	DefaultRetryMaxAttempts = 3
)

// LineageColumns are the provenance columns appended to every landed row.
// Target tables carry them; staging relations drop them so their shape
// matches the raw file exactly.
var LineageColumns = []string{"_snapshot_id", "_run_id", "_inserted_at", "_source_file"}
