package bronze

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
)

// Session is one pooled database session. A run holds a single Session for
// its whole lifetime because staging relations are session-scoped.
//
// This interface decouples the load, quality, and lineage packages from
// pgx-specific pool types so they can be exercised against fakes.
type Session interface {
	// Exec executes a statement without returning rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// QueryRow executes a query expected to return at most one row.
	// Errors are deferred until Row's Scan method is called.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Begin starts a transaction on this session.
	Begin(ctx context.Context) (Tx, error)

	// Release returns the session to the pool. Unhealthy sessions are
	// destroyed rather than pooled. After Release the session must not be used.
	Release(healthy bool)
}

// Tx is a transaction on a Session. The staged load runs entirely inside one
// Tx so a failure at any step leaves no partial writes behind.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// CopyFrom streams raw data through the COPY protocol, the
	// highest-throughput bulk path. copySQL must be a COPY ... FROM STDIN
	// statement. Returns the number of rows copied.
	CopyFrom(ctx context.Context, r io.Reader, copySQL string) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Row represents a single row returned by QueryRow.
type Row interface {
	// Scan reads the values from the row into dest values.
	Scan(dest ...any) error
}
