// Package db owns the warehouse connection pool: a bounded pgxpool with an
// explicit init/shutdown lifecycle, retried acquisition of sessions, and a
// health probe. The pool object is passed to the orchestrator rather than
// held in package-level state, so tests construct and tear down their own.
package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dstack-labs/bronzeload/internal/config"
	"github.com/dstack-labs/bronzeload/internal/retry"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool manages a bounded set of database sessions.
//
// Lifecycle: uninitialized -> initialized -> shut down. Re-initialization
// after shutdown is permitted and creates a fresh pgx pool. All methods are
// safe for concurrent use.
type Pool struct {
	cfg    *config.Config
	logger bronze.Logger
	retry  *retry.Executor

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewPool creates an uninitialized Pool. The first Acquire or an explicit
// Init brings it up. Transient acquisition failures are retried with
// exponential backoff; authentication and configuration errors are not.
func NewPool(cfg *config.Config, logger bronze.Logger) *Pool {
	if cfg == nil {
		panic("cfg cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	classifier := retry.NewPostgreSQLErrorClassifier()
	strategy := retry.NewExponentialBackoff(bronze.DefaultRetryMaxAttempts,
		retry.WithInitialDelay(bronze.DefaultRetryInitialDelay),
		retry.WithMaxDelay(bronze.DefaultRetryMaxDelay),
	)
	executor := retry.NewExecutor(classifier, strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn("connection attempt %d failed, retrying in %s: %v", attempt+1, delay, err)
		})

	return &Pool{
		cfg:    cfg,
		logger: logger,
		retry:  executor,
	}
}

// Init creates the underlying pgx pool. Idempotent: a live pool is kept.
func (p *Pool) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initLocked(ctx)
}

func (p *Pool) initLocked(ctx context.Context) error {
	if p.pool != nil {
		return nil
	}

	poolConfig, err := pgxpool.ParseConfig(p.cfg.DB.ConnString())
	if err != nil {
		return fmt.Errorf("parse connection config: %w", bronze.ErrInvalidConfig)
	}
	poolConfig.MinConns = p.cfg.PoolMin
	poolConfig.MaxConns = p.cfg.PoolMax

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}

	p.pool = pool
	p.logger.Verbose("pool created (min=%d max=%d)", p.cfg.PoolMin, p.cfg.PoolMax)
	return nil
}

// Acquire returns a usable session, retrying transient connectivity failures
// up to the configured attempt bound. The returned session must be released
// with Session.Release.
func (p *Pool) Acquire(ctx context.Context) (bronze.Session, error) {
	p.mu.Lock()
	if err := p.initLocked(ctx); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	pool := p.pool
	p.mu.Unlock()

	var conn *pgxpool.Conn
	err := p.retry.Execute(ctx, func(ctx context.Context) error {
		c, err := pool.Acquire(ctx)
		if err != nil {
			return err
		}
		// The pooled connection may be stale; probe before handing it out.
		if err := c.Ping(ctx); err != nil {
			c.Release()
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("acquire session: %v: %w", err, bronze.ErrConnectionFailed)
	}

	return newPooledSession(conn, p.logger), nil
}

// HealthCheck runs a trivial round-trip query and reports pool statistics.
// It never returns an error; failures are reported in the status.
func (p *Pool) HealthCheck(ctx context.Context) bronze.HealthStatus {
	status := bronze.HealthStatus{Database: p.cfg.DB.Database}

	sess, err := p.Acquire(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	var one int
	if err := sess.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		sess.Release(false)
		status.Error = err.Error()
		return status
	}
	sess.Release(true)

	status.Healthy = true
	p.mu.Lock()
	if p.pool != nil {
		stat := p.pool.Stat()
		status.Pool = bronze.PoolStats{
			MaxConns:      stat.MaxConns(),
			TotalConns:    stat.TotalConns(),
			IdleConns:     stat.IdleConns(),
			AcquiredConns: stat.AcquiredConns(),
		}
	}
	p.mu.Unlock()
	return status
}

// Shutdown closes all pooled sessions. The pool is unusable until the next
// Init or Acquire re-creates it.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		p.logger.Verbose("pool already closed")
		return
	}
	p.pool.Close()
	p.pool = nil
	p.logger.Verbose("pool closed")
}
