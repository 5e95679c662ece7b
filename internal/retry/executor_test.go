package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// mockOperation tracks invocation count and simulates transient failures
type mockOperation struct {
	invocations int
	failUntil   int // fail for invocations < failUntil
	fatalErr    error
}

func (m *mockOperation) execute(ctx context.Context) error {
	m.invocations++

	if m.invocations < m.failUntil {
		return &pgconn.PgError{Code: "08006", Message: "connection failure"}
	}
	if m.invocations == m.failUntil && m.fatalErr != nil {
		return m.fatalErr
	}
	return nil
}

func fastBackoff(maxAttempts int) *ExponentialBackoff {
	return NewExponentialBackoff(maxAttempts,
		WithInitialDelay(1*time.Millisecond),
		WithJitter(0),
	)
}

func TestExecutor_Execute_SuccessOnFirstAttempt(t *testing.T) {
	executor := NewExecutor(NewPostgreSQLErrorClassifier(), fastBackoff(3))
	op := &mockOperation{failUntil: 1}

	if err := executor.Execute(context.Background(), op.execute); err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if op.invocations != 1 {
		t.Errorf("Expected 1 invocation, got %d", op.invocations)
	}
}

func TestExecutor_Execute_SuccessAfterRetries(t *testing.T) {
	executor := NewExecutor(NewPostgreSQLErrorClassifier(), fastBackoff(5))
	op := &mockOperation{failUntil: 4}

	if err := executor.Execute(context.Background(), op.execute); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if op.invocations != 4 {
		t.Errorf("Expected 4 invocations, got %d", op.invocations)
	}
}

func TestExecutor_Execute_FatalErrorNoRetry(t *testing.T) {
	executor := NewExecutor(NewPostgreSQLErrorClassifier(), fastBackoff(5))
	fatal := &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	op := &mockOperation{failUntil: 1, fatalErr: fatal}

	err := executor.Execute(context.Background(), op.execute)
	if !errors.Is(err, fatal) {
		t.Errorf("Expected fatal error, got: %v", err)
	}
	if op.invocations != 1 {
		t.Errorf("Fatal error must not be retried, got %d invocations", op.invocations)
	}
}

func TestExecutor_Execute_ExhaustsAttempts(t *testing.T) {
	executor := NewExecutor(NewPostgreSQLErrorClassifier(), fastBackoff(2))
	op := &mockOperation{failUntil: 100}

	err := executor.Execute(context.Background(), op.execute)
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	// initial attempt + 2 retries
	if op.invocations != 3 {
		t.Errorf("Expected 3 invocations, got %d", op.invocations)
	}
}

func TestExecutor_Execute_ContextCancellation(t *testing.T) {
	executor := NewExecutor(NewPostgreSQLErrorClassifier(),
		NewExponentialBackoff(5, WithInitialDelay(1*time.Second), WithJitter(0)))
	op := &mockOperation{failUntil: 100}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := executor.Execute(ctx, op.execute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestExecutor_WithOnRetry_InvokedPerRetry(t *testing.T) {
	var attempts []int
	executor := NewExecutor(NewPostgreSQLErrorClassifier(), fastBackoff(5)).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		})
	op := &mockOperation{failUntil: 3}

	if err := executor.Execute(context.Background(), op.execute); err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}
	if len(attempts) != 2 {
		t.Errorf("Expected 2 retry callbacks, got %d", len(attempts))
	}
}

func TestExecutor_WithOnRetry_DoesNotMutateReceiver(t *testing.T) {
	base := NewExecutor(NewPostgreSQLErrorClassifier(), fastBackoff(3))
	derived := base.WithOnRetry(func(int, error, time.Duration) {})

	if base == derived {
		t.Error("WithOnRetry must return a new Executor")
	}
	if base.onRetry != nil {
		t.Error("WithOnRetry must not mutate the receiver")
	}
}

func TestNewExecutor_PanicsOnNilDependencies(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for nil classifier")
		}
	}()
	NewExecutor(nil, fastBackoff(1))
}
