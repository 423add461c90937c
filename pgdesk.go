package pgdesk

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Engine is the core that provides ExecuteQuery, ExecuteFile, GetSchema,
// and Backup. All exported methods are safe for concurrent use from
// multiple goroutines; concurrent operations each lease their own pooled
// connection and serialize only through the pool's size bound.
type Engine struct {
	config     Config
	pools      *PoolManager
	connString string
	workDir    string
	executor   CommandExecutor
	logger     zerolog.Logger
}

// Option is a functional option for New().
type Option func(*Engine)

// WithCommandExecutor replaces the subprocess executor used by Backup.
// Intended for tests.
func WithCommandExecutor(executor CommandExecutor) Option {
	return func(e *Engine) {
		e.executor = executor
	}
}

// WithWorkDir overrides the working directory against which relative file
// and backup paths are resolved.
func WithWorkDir(dir string) Option {
	return func(e *Engine) {
		e.workDir = dir
	}
}

// WithCheckoutPolicy overrides the pool's connection checkout retry policy.
func WithCheckoutPolicy(policy CheckoutPolicy) Option {
	return func(e *Engine) {
		e.pools.SetCheckoutPolicy(policy)
	}
}

// New creates an Engine and initializes its connection pool. connString is
// the PostgreSQL connection string (must include credentials). Config zero
// values fall back to env-overridable defaults. Returns an error for
// invalid config and for runtime failures (pool creation).
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	config.Pool = config.Pool.withDefaults()

	e := &Engine{
		config:     config,
		pools:      NewPoolManager(logger),
		connString: connString,
		workDir:    workDir,
		executor:   &execRunner{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.pools.Initialize(ctx, connString, config.Pool); err != nil {
		return nil, err
	}
	return e, nil
}

// Ping verifies database connectivity.
func (e *Engine) Ping(ctx context.Context) error {
	return e.pools.Ping(ctx)
}

// Stats returns a snapshot of the connection pool counters. Never fails.
func (e *Engine) Stats() PoolStats {
	return e.pools.Stats()
}

// Close closes the connection pool. Accepts context for API
// forward-compatibility; pgxpool's Close does not support context-based
// shutdown.
func (e *Engine) Close(ctx context.Context) {
	e.pools.Close()
}
