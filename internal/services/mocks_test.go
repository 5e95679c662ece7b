package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dstack-labs/bronzeload/pkg/bronze"
)

type stubSession struct {
	released bool
	healthy  bool
}

func (s *stubSession) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("OK"), nil
}

func (s *stubSession) QueryRow(context.Context, string, ...any) bronze.Row { return nil }

func (s *stubSession) Begin(context.Context) (bronze.Tx, error) {
	return nil, errors.New("not supported")
}

func (s *stubSession) Release(healthy bool) {
	s.released = true
	s.healthy = healthy
}

type mockPool struct {
	sess       *stubSession
	acquireErr error
	status     bronze.HealthStatus
}

func (p *mockPool) Acquire(context.Context) (bronze.Session, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.sess, nil
}

func (p *mockPool) HealthCheck(context.Context) bronze.HealthStatus { return p.status }

type loadCall struct {
	filePath   string
	table      string
	snapshotID string
	runID      string
	sourceFile string
}

type mockLoader struct {
	calls   []loadCall
	results map[string]bronze.LoadResult // keyed by table
	errs    map[string]error             // keyed by table
}

func (l *mockLoader) LoadFile(_ context.Context, _ bronze.Session, filePath, tableName, snapshotID, runID, sourceFile string) (bronze.LoadResult, error) {
	l.calls = append(l.calls, loadCall{filePath, tableName, snapshotID, runID, sourceFile})
	if err, ok := l.errs[tableName]; ok {
		return bronze.LoadResult{}, err
	}
	if res, ok := l.results[tableName]; ok {
		return res, nil
	}
	return bronze.LoadResult{Table: tableName, SnapshotID: snapshotID, RunID: runID}, nil
}

type checkCall struct {
	table        string
	snapshotID   string
	expectedRows int64
}

type mockChecker struct {
	checks     []checkCall
	persisted  [][]bronze.QualityResult
	persistErr error
}

func (c *mockChecker) RunChecks(_ context.Context, _ bronze.Session, tableName, snapshotID string, expectedRows int64) []bronze.QualityResult {
	c.checks = append(c.checks, checkCall{tableName, snapshotID, expectedRows})
	return []bronze.QualityResult{{Table: tableName, CheckName: "not_empty", Passed: true}}
}

func (c *mockChecker) PersistResults(_ context.Context, _ bronze.Session, _ string, results []bronze.QualityResult) error {
	c.persisted = append(c.persisted, results)
	return c.persistErr
}

type fileLoadEvent struct {
	filename string
	status   bronze.FileLoadStatus
	rows     int64
	message  string
}

type mockTracker struct {
	registeredRuns []string
	completedRuns  map[string]bronze.RunStatus
	runMessages    map[string]string
	registerRunErr error

	registeredFiles []string
	completedFiles  []fileLoadEvent

	changed    map[string]bool // keyed by filename; default true
	changedErr map[string]error

	manifests []string // filenames recorded
}

func newMockTracker() *mockTracker {
	return &mockTracker{
		completedRuns: make(map[string]bronze.RunStatus),
		runMessages:   make(map[string]string),
	}
}

func (t *mockTracker) RegisterRun(_ context.Context, _ bronze.Session, runID, _ string) error {
	if t.registerRunErr != nil {
		return t.registerRunErr
	}
	t.registeredRuns = append(t.registeredRuns, runID)
	return nil
}

func (t *mockTracker) CompleteRun(_ context.Context, _ bronze.Session, runID string, status bronze.RunStatus, errorMessage string) error {
	t.completedRuns[runID] = status
	t.runMessages[runID] = errorMessage
	return nil
}

func (t *mockTracker) RegisterFileLoad(_ context.Context, _ bronze.Session, _, filename string) error {
	t.registeredFiles = append(t.registeredFiles, filename)
	return nil
}

func (t *mockTracker) CompleteFileLoad(_ context.Context, _ bronze.Session, _, filename string, status bronze.FileLoadStatus, rowsInserted int64, message string) error {
	t.completedFiles = append(t.completedFiles, fileLoadEvent{filename, status, rowsInserted, message})
	return nil
}

func (t *mockTracker) HasFileChanged(_ context.Context, _ bronze.Session, filename, _ string) (bool, error) {
	if err, ok := t.changedErr[filename]; ok {
		return false, err
	}
	if changed, ok := t.changed[filename]; ok {
		return changed, nil
	}
	return true, nil
}

func (t *mockTracker) RecordFileManifest(_ context.Context, _ bronze.Session, _, filename, _ string, _, _ int64) error {
	t.manifests = append(t.manifests, filename)
	return nil
}

type mockManifests struct {
	bySnapshot map[string]*bronze.Manifest
	latest     *bronze.Manifest
	latestErr  error
}

func (m *mockManifests) Load(snapshotID string) (*bronze.Manifest, error) {
	if mf, ok := m.bySnapshot[snapshotID]; ok {
		return mf, nil
	}
	return nil, bronze.ErrNotFound
}

func (m *mockManifests) Latest() (*bronze.Manifest, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	return m.latest, nil
}
