package bronze

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	_, err := orchestrator.Load(ctx, "", "")
//	if errors.Is(err, bronze.ErrNotFound) {
//	    // No manifest yet: run extract first
//	}
var (
	// ErrInvalidConfig indicates missing or invalid startup configuration.
	// Fatal, never retried.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates database connectivity failed after
	// bounded retries.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrSecurityViolation indicates a disallowed table name or a file path
	// outside the data root. Fatal, never retried, always logged.
	ErrSecurityViolation = errors.New("security violation")

	// ErrNotFound indicates a missing file, manifest, or snapshot.
	ErrNotFound = errors.New("not found")

	// ErrLoadFailed indicates a staged load failed and was rolled back.
	// Caught at the orchestrator's per-file boundary; does not abort the run.
	ErrLoadFailed = errors.New("load failed")
)

// LoadError wraps a staged-load failure with the target table it was aimed at.
// It matches ErrLoadFailed under errors.Is.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load into table %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports that a LoadError matches the ErrLoadFailed sentinel.
func (e *LoadError) Is(target error) bool { return target == ErrLoadFailed }

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrSecurityViolation):
		return ExitSecurityError
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrLoadFailed):
		return ExitLoadFailed
	}

	errStr := err.Error()

	// Cobra reports flag and argument mistakes as plain errors
	if strings.HasPrefix(errStr, "unknown flag") ||
		strings.HasPrefix(errStr, "unknown shorthand flag") ||
		strings.HasPrefix(errStr, "unknown command") ||
		strings.HasPrefix(errStr, "invalid argument") ||
		strings.HasPrefix(errStr, "required flag") ||
		strings.Contains(errStr, "arg(s), received") {
		return ExitUsageError
	}

	// Check for common connection error patterns
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
