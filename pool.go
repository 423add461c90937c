package pgdesk

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// CheckoutPolicy bounds connection acquisition retries. Delay for attempt n
// is InitialDelay × 2^n.
type CheckoutPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// DefaultCheckoutPolicy is used when no policy is set explicitly.
var DefaultCheckoutPolicy = CheckoutPolicy{
	MaxRetries:   3,
	InitialDelay: time.Second,
}

// PoolManager owns the single shared connection pool for the process.
// Exactly one pool is live per distinct connection string: Initialize with
// the same string is a no-op, with a different string it tears the old pool
// down first. All methods are safe for concurrent use.
type PoolManager struct {
	mu         sync.Mutex
	pool       *pgxpool.Pool
	connString string
	checkout   CheckoutPolicy
	logger     zerolog.Logger
}

// NewPoolManager creates an uninitialized PoolManager.
func NewPoolManager(logger zerolog.Logger) *PoolManager {
	return &PoolManager{
		checkout: DefaultCheckoutPolicy,
		logger:   logger,
	}
}

// SetCheckoutPolicy replaces the retry policy for subsequent Checkout calls.
func (m *PoolManager) SetCheckoutPolicy(policy CheckoutPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if policy.MaxRetries > 0 {
		m.checkout = policy
	}
}

// Initialize creates the pool for connString sized and timed per config.
// Calling it again with an identical connString is a no-op; a different
// connString closes the prior pool synchronously before creating the new one.
func (m *PoolManager) Initialize(ctx context.Context, connString string, config PoolConfig) error {
	if connString == "" {
		return &ValidationError{Message: "connection string must be non-empty"}
	}
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		if m.connString == connString {
			return nil
		}
		m.logger.Info().Msg("connection string changed, closing previous pool")
		m.pool.Close()
		m.pool = nil
		m.connString = ""
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.MaxConns)
	poolConfig.MaxConnIdleTime = config.idleTimeout()
	poolConfig.ConnConfig.ConnectTimeout = config.connectTimeout()
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	// An explicit mode overrides whatever sslmode the connection string
	// carries; when unset, pgx's parsed TLS settings are left alone.
	if config.TLS != "" {
		if err := applyTLSMode(&poolConfig.ConnConfig.Config, config.TLS); err != nil {
			return err
		}
	}

	// Session default; per-request timeouts override it for one lease.
	if config.StatementTimeoutMs > 0 {
		stmtTimeout := config.StatementTimeoutMs
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", stmtTimeout)); err != nil {
				return fmt.Errorf("failed to SET statement_timeout: %w", err)
			}
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	m.pool = pool
	m.connString = connString
	m.logger.Info().
		Int("max_conns", config.MaxConns).
		Str("tls", string(config.TLS)).
		Msg("connection pool initialized")
	return nil
}

// Checkout leases a connection, retrying failed acquisitions with
// exponential backoff up to the policy bound. Each failed attempt is logged
// at warn level. The returned connection must be released on every exit path.
func (m *PoolManager) Checkout(ctx context.Context) (*pgxpool.Conn, error) {
	m.mu.Lock()
	pool := m.pool
	policy := m.checkout
	m.mu.Unlock()

	if pool == nil {
		return nil, &ConnectionError{Cause: errors.New("pool is not initialized")}
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		conn, err := pool.Acquire(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		m.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", policy.MaxRetries).
			Msg("connection checkout failed")

		if attempt == policy.MaxRetries-1 {
			break
		}
		select {
		case <-time.After(backoffDelay(policy.InitialDelay, attempt)):
		case <-ctx.Done():
			return nil, &ConnectionError{Attempts: attempt + 1, Cause: ctx.Err()}
		}
	}
	return nil, &ConnectionError{Attempts: policy.MaxRetries, Cause: lastErr}
}

// backoffDelay returns initial × 2^attempt.
func backoffDelay(initial time.Duration, attempt int) time.Duration {
	return initial << uint(attempt)
}

// Ping verifies database connectivity on one pooled connection.
func (m *PoolManager) Ping(ctx context.Context) error {
	m.mu.Lock()
	pool := m.pool
	m.mu.Unlock()

	if pool == nil {
		return &ConnectionError{Cause: errors.New("pool is not initialized")}
	}
	return pool.Ping(ctx)
}

// Stats returns a snapshot of pool counters. Safe to call at any time; the
// zero value is returned when the pool is uninitialized.
func (m *PoolManager) Stats() PoolStats {
	m.mu.Lock()
	pool := m.pool
	m.mu.Unlock()

	if pool == nil {
		return PoolStats{}
	}
	stat := pool.Stat()
	return PoolStats{
		Total:   stat.TotalConns(),
		Idle:    stat.IdleConns(),
		Waiting: stat.EmptyAcquireCount(),
	}
}

// Close drains and terminates the pool. Safe to call when uninitialized.
func (m *PoolManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool == nil {
		return
	}
	m.pool.Close()
	m.pool = nil
	m.connString = ""
}

// applyTLSMode forces mode onto the primary connection target and every
// fallback. pgx's sslmode=prefer parsing leaves plaintext fallback entries
// behind; those must not survive a non-disable mode, or a failed TLS
// handshake would silently fall back to an unencrypted connection. Fallbacks
// are rebuilt one per host with the mode's TLS config, deduplicated.
func applyTLSMode(cfg *pgconn.Config, mode TLSMode) error {
	tlsConfig, err := tlsConfigFor(mode, cfg.Host)
	if err != nil {
		return err
	}
	cfg.TLSConfig = tlsConfig

	seen := map[string]bool{}
	rebuilt := make([]*pgconn.FallbackConfig, 0, len(cfg.Fallbacks))
	for _, fb := range cfg.Fallbacks {
		key := fmt.Sprintf("%s:%d", fb.Host, fb.Port)
		if seen[key] {
			continue
		}
		seen[key] = true
		fbTLS, err := tlsConfigFor(mode, fb.Host)
		if err != nil {
			return err
		}
		rebuilt = append(rebuilt, &pgconn.FallbackConfig{
			Host:      fb.Host,
			Port:      fb.Port,
			TLSConfig: fbTLS,
		})
	}
	cfg.Fallbacks = rebuilt
	return nil
}

// tlsConfigFor maps a TLSMode onto a *tls.Config for the pgx connection.
// verify-ca validates the certificate chain without checking the hostname,
// matching libpq semantics.
func tlsConfigFor(mode TLSMode, host string) (*tls.Config, error) {
	switch mode {
	case TLSDisable:
		return nil, nil
	case TLSRequire:
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // require mode skips verification by definition
	case TLSVerifyCA:
		return &tls.Config{
			InsecureSkipVerify:    true, //nolint:gosec // chain is verified manually below
			VerifyPeerCertificate: verifyChainOnly,
		}, nil
	case TLSVerifyFull:
		return &tls.Config{ServerName: host}, nil
	default:
		return nil, &ValidationError{Message: fmt.Sprintf("invalid tls mode %q", mode)}
	}
}

// verifyChainOnly verifies the presented certificate chain against the
// system roots without hostname verification (verify-ca).
func verifyChainOnly(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return errors.New("server presented no certificates")
	}
	certs := make([]*x509.Certificate, len(rawCerts))
	for i, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("failed to parse server certificate: %w", err)
		}
		certs[i] = cert
	}
	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}
	_, err := certs[0].Verify(x509.VerifyOptions{Intermediates: intermediates})
	return err
}
