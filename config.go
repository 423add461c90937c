package pgdesk

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TLSMode controls how the pool negotiates TLS with the server. These mirror
// PostgreSQL's sslmode settings. The empty value honors whatever sslmode the
// connection string carries instead of overriding it.
type TLSMode string

const (
	// TLSDisable turns TLS off entirely.
	TLSDisable TLSMode = "disable"
	// TLSRequire requires TLS but does not verify the server certificate.
	TLSRequire TLSMode = "require"
	// TLSVerifyCA requires TLS and verifies the certificate chain.
	TLSVerifyCA TLSMode = "verify-ca"
	// TLSVerifyFull requires TLS, verifies the chain and the hostname.
	TLSVerifyFull TLSMode = "verify-full"
)

// Environment variables overriding the pool defaults.
const (
	EnvMaxConnections     = "PGDESK_MAX_CONNECTIONS"
	EnvIdleTimeoutMs      = "PGDESK_IDLE_TIMEOUT_MS"
	EnvConnectTimeoutMs   = "PGDESK_CONNECT_TIMEOUT_MS"
	EnvStatementTimeoutMs = "PGDESK_STATEMENT_TIMEOUT_MS"
)

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool PoolConfig `json:"pool"`
}

// PoolConfig holds connection pool settings. Zero values are replaced by
// env-overridable defaults: max_conns=10, idle_timeout=10s,
// connect_timeout=30s, statement_timeout=120s.
type PoolConfig struct {
	MaxConns           int     `json:"max_conns"`
	IdleTimeoutMs      int     `json:"idle_timeout_ms"`
	ConnectTimeoutMs   int     `json:"connect_timeout_ms"`
	StatementTimeoutMs int     `json:"statement_timeout_ms"`
	TLS                TLSMode `json:"tls"`
}

// withDefaults fills zero fields from environment overrides or built-in
// defaults and returns the completed config.
func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxConns == 0 {
		c.MaxConns = envInt(EnvMaxConnections, 10)
	}
	if c.IdleTimeoutMs == 0 {
		c.IdleTimeoutMs = envInt(EnvIdleTimeoutMs, 10_000)
	}
	if c.ConnectTimeoutMs == 0 {
		c.ConnectTimeoutMs = envInt(EnvConnectTimeoutMs, 30_000)
	}
	if c.StatementTimeoutMs == 0 {
		c.StatementTimeoutMs = envInt(EnvStatementTimeoutMs, 120_000)
	}
	return c
}

// validate checks field ranges after defaults have been applied.
func (c PoolConfig) validate() error {
	if c.MaxConns <= 0 {
		return &ValidationError{Message: "pool.max_conns must be > 0"}
	}
	if c.IdleTimeoutMs < 0 || c.ConnectTimeoutMs < 0 || c.StatementTimeoutMs < 0 {
		return &ValidationError{Message: "pool timeouts must be >= 0"}
	}
	switch c.TLS {
	case "", TLSDisable, TLSRequire, TLSVerifyCA, TLSVerifyFull:
	default:
		return &ValidationError{Message: fmt.Sprintf("invalid tls mode %q: must be one of: disable, require, verify-ca, verify-full", c.TLS)}
	}
	return nil
}

func (c PoolConfig) idleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

func (c PoolConfig) connectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
type ConnectionConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	SSLMode string `json:"sslmode"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}
