package db

import (
	"context"
	"io"
	"time"

	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pooledSession adapts *pgxpool.Conn to the bronze.Session interface.
// One session is held for a whole run because staging relations are
// session-scoped.
type pooledSession struct {
	conn   *pgxpool.Conn
	logger bronze.Logger
}

func newPooledSession(conn *pgxpool.Conn, logger bronze.Logger) *pooledSession {
	return &pooledSession{conn: conn, logger: logger}
}

func (s *pooledSession) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.conn.Exec(ctx, sql, args...)
}

func (s *pooledSession) QueryRow(ctx context.Context, sql string, args ...any) bronze.Row {
	return s.conn.QueryRow(ctx, sql, args...)
}

func (s *pooledSession) Begin(ctx context.Context) (bronze.Tx, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &sessionTx{tx: tx}, nil
}

// Release returns the session to the pool. Sessions flagged unhealthy, or
// failing a liveness probe, are destroyed instead of pooled.
func (s *pooledSession) Release(healthy bool) {
	if !healthy || !s.alive() {
		s.logger.Verbose("discarding unhealthy session")
		// Closing the underlying connection makes the pool destroy it on release.
		_ = s.conn.Conn().Close(context.Background())
	}
	s.conn.Release()
}

func (s *pooledSession) alive() bool {
	if s.conn.Conn().IsClosed() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.conn.Ping(ctx) == nil
}

// sessionTx adapts pgx.Tx to the bronze.Tx interface.
type sessionTx struct {
	tx pgx.Tx
}

func (t *sessionTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *sessionTx) QueryRow(ctx context.Context, sql string, args ...any) bronze.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

// CopyFrom streams raw bytes through the wire-level COPY protocol.
// This bypasses pgx's row-oriented CopyFrom so the server parses the CSV.
func (t *sessionTx) CopyFrom(ctx context.Context, r io.Reader, copySQL string) (int64, error) {
	tag, err := t.tx.Conn().PgConn().CopyFrom(ctx, r, copySQL)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *sessionTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *sessionTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// Compile-time interface checks.
var (
	_ bronze.Session = (*pooledSession)(nil)
	_ bronze.Tx      = (*sessionTx)(nil)
)
