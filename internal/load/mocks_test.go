package load

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dstack-labs/bronzeload/pkg/bronze"
)

// fakeRow replays scripted scan values into int64 or []string destinations.
type fakeRow struct {
	vals []any
	err  error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.vals) {
			break
		}
		switch out := d.(type) {
		case *int64:
			*out = r.vals[i].(int64)
		case *[]string:
			*out = r.vals[i].([]string)
		}
	}
	return nil
}

// fakeTx records the statement sequence and replays scripted row results.
type fakeTx struct {
	statements []string
	args       [][]any
	copied     []string // raw COPY payloads

	rows     []*fakeRow // consumed in QueryRow order
	execTags map[string]pgconn.CommandTag
	execErr  map[string]error // keyed by SQL prefix
	copyErr  error

	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) record(sql string, args []any) {
	t.statements = append(t.statements, sql)
	t.args = append(t.args, args)
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.record(sql, args)
	for prefix, err := range t.execErr {
		if len(sql) >= len(prefix) && sql[:len(prefix)] == prefix {
			return pgconn.CommandTag{}, err
		}
	}
	if tag, ok := t.execTags[sql]; ok {
		return tag, nil
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) bronze.Row {
	t.record(sql, args)
	if len(t.rows) == 0 {
		return &fakeRow{}
	}
	row := t.rows[0]
	t.rows = t.rows[1:]
	return row
}

func (t *fakeTx) CopyFrom(_ context.Context, r io.Reader, copySQL string) (int64, error) {
	t.record(copySQL, nil)
	if t.copyErr != nil {
		return 0, t.copyErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	t.copied = append(t.copied, string(data))
	return 0, nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

// fakeSession hands out a single scripted transaction.
type fakeSession struct {
	tx       *fakeTx
	beginErr error
	begun    bool
	released bool
	healthy  bool
}

func (s *fakeSession) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("OK"), nil
}

func (s *fakeSession) QueryRow(_ context.Context, sql string, args ...any) bronze.Row {
	return &fakeRow{}
}

func (s *fakeSession) Begin(context.Context) (bronze.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.begun = true
	return s.tx, nil
}

func (s *fakeSession) Release(healthy bool) {
	s.released = true
	s.healthy = healthy
}
