package lineage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dstack-labs/bronzeload/internal/logging"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
)

type fakeRow struct {
	hash string
	err  error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		if out, ok := dest[0].(*string); ok {
			*out = r.hash
		}
	}
	return nil
}

type fakeSession struct {
	execs   []string
	args    [][]any
	row     *fakeRow
	execErr error
}

func (s *fakeSession) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, sql)
	s.args = append(s.args, args)
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (s *fakeSession) QueryRow(_ context.Context, sql string, args ...any) bronze.Row {
	if s.row == nil {
		return &fakeRow{err: pgx.ErrNoRows}
	}
	return s.row
}

func (s *fakeSession) Begin(context.Context) (bronze.Tx, error) {
	return nil, errors.New("not supported")
}

func (s *fakeSession) Release(bool) {}

func TestRegisterRun(t *testing.T) {
	sess := &fakeSession{}
	tracker := NewTracker(logging.NewNullLogger())

	require.NoError(t, tracker.RegisterRun(context.Background(), sess, "run1", "snap1"))

	require.Len(t, sess.execs, 1)
	assert.Contains(t, sess.execs[0], "INSERT INTO ingestion.runs")
	assert.Equal(t, []any{"run1", "snap1", "started"}, sess.args[0])
}

func TestCompleteRun(t *testing.T) {
	tests := []struct {
		name    string
		status  bronze.RunStatus
		message string
	}{
		{"success without message", bronze.RunSuccess, ""},
		{"failure with message", bronze.RunFailed, "failed tables: orders"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{}
			tracker := NewTracker(logging.NewNullLogger())

			require.NoError(t, tracker.CompleteRun(context.Background(), sess, "run1", tt.status, tt.message))

			require.Len(t, sess.execs, 1)
			assert.Contains(t, sess.execs[0], "UPDATE ingestion.runs")
			assert.Contains(t, sess.execs[0], "NULLIF($3, '')")
			assert.Equal(t, []any{"run1", string(tt.status), tt.message}, sess.args[0])
		})
	}
}

func TestRegisterFileLoad_IsIdempotent(t *testing.T) {
	sess := &fakeSession{}
	tracker := NewTracker(logging.NewNullLogger())

	require.NoError(t, tracker.RegisterFileLoad(context.Background(), sess, "run1", "orders.csv"))

	assert.Contains(t, sess.execs[0], "ON CONFLICT (run_id, filename) DO NOTHING")
	assert.Equal(t, []any{"run1", "orders.csv", "pending"}, sess.args[0])
}

func TestCompleteFileLoad(t *testing.T) {
	sess := &fakeSession{}
	tracker := NewTracker(logging.NewNullLogger())

	err := tracker.CompleteFileLoad(context.Background(), sess, "run1", "orders.csv", bronze.FileLoadLoaded, 42, "")
	require.NoError(t, err)

	assert.Contains(t, sess.execs[0], "UPDATE ingestion.file_loads")
	assert.Equal(t, []any{"run1", "orders.csv", "loaded", int64(42), ""}, sess.args[0])
}

func TestHasFileChanged(t *testing.T) {
	tests := []struct {
		name    string
		row     *fakeRow
		newHash string
		want    bool
		wantErr bool
	}{
		{"no recorded hash counts as changed", &fakeRow{err: pgx.ErrNoRows}, "h1", true, false},
		{"same hash is unchanged", &fakeRow{hash: "h1"}, "h1", false, false},
		{"different hash is changed", &fakeRow{hash: "h1"}, "h2", true, false},
		{"lookup error propagates", &fakeRow{err: errors.New("connection reset")}, "h1", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{row: tt.row}
			tracker := NewTracker(logging.NewNullLogger())

			changed, err := tracker.HasFileChanged(context.Background(), sess, "orders.csv", tt.newHash)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, changed)
		})
	}
}

func TestRecordFileManifest(t *testing.T) {
	sess := &fakeSession{}
	tracker := NewTracker(logging.NewNullLogger())

	err := tracker.RecordFileManifest(context.Background(), sess, "snap1", "orders.csv", "h1", 1024, 42)
	require.NoError(t, err)

	assert.Contains(t, sess.execs[0], "INSERT INTO ingestion.file_manifest")
	assert.Contains(t, sess.execs[0], "ON CONFLICT (snapshot_id, filename) DO UPDATE")
	assert.Equal(t, []any{"snap1", "orders.csv", "h1", int64(1024), int64(42)}, sess.args[0])
}

func TestTracker_ExecErrorsPropagate(t *testing.T) {
	sess := &fakeSession{execErr: errors.New("permission denied")}
	tracker := NewTracker(logging.NewNullLogger())
	ctx := context.Background()

	assert.Error(t, tracker.RegisterRun(ctx, sess, "run1", "snap1"))
	assert.Error(t, tracker.CompleteRun(ctx, sess, "run1", bronze.RunSuccess, ""))
	assert.Error(t, tracker.RegisterFileLoad(ctx, sess, "run1", "f"))
	assert.Error(t, tracker.CompleteFileLoad(ctx, sess, "run1", "f", bronze.FileLoadFailed, 0, "x"))
	assert.Error(t, tracker.RecordFileManifest(ctx, sess, "snap1", "f", "h", 0, 0))
}
