package pgdesk

import (
	"testing"
	"time"
)

func TestPoolConfigDefaults(t *testing.T) {
	c := PoolConfig{}.withDefaults()
	if c.MaxConns != 10 {
		t.Errorf("max_conns: got %d", c.MaxConns)
	}
	if c.IdleTimeoutMs != 10_000 {
		t.Errorf("idle_timeout_ms: got %d", c.IdleTimeoutMs)
	}
	if c.ConnectTimeoutMs != 30_000 {
		t.Errorf("connect_timeout_ms: got %d", c.ConnectTimeoutMs)
	}
	if c.StatementTimeoutMs != 120_000 {
		t.Errorf("statement_timeout_ms: got %d", c.StatementTimeoutMs)
	}
	if c.TLS != "" {
		t.Errorf("tls must stay unset so the connection string's sslmode is honored, got %q", c.TLS)
	}
}

func TestPoolConfigDefaultsKeepExplicitValues(t *testing.T) {
	c := PoolConfig{MaxConns: 3, StatementTimeoutMs: 5_000, TLS: TLSRequire}.withDefaults()
	if c.MaxConns != 3 || c.StatementTimeoutMs != 5_000 || c.TLS != TLSRequire {
		t.Errorf("explicit values overwritten: %+v", c)
	}
	if c.IdleTimeoutMs != 10_000 {
		t.Errorf("unset field must still be defaulted, got %d", c.IdleTimeoutMs)
	}
}

func TestPoolConfigEnvOverrides(t *testing.T) {
	t.Setenv(EnvMaxConnections, "25")
	t.Setenv(EnvStatementTimeoutMs, "9000")

	c := PoolConfig{}.withDefaults()
	if c.MaxConns != 25 {
		t.Errorf("env max_conns ignored: got %d", c.MaxConns)
	}
	if c.StatementTimeoutMs != 9000 {
		t.Errorf("env statement_timeout ignored: got %d", c.StatementTimeoutMs)
	}
	// Explicit config wins over env.
	c = PoolConfig{MaxConns: 2}.withDefaults()
	if c.MaxConns != 2 {
		t.Errorf("explicit value must beat env, got %d", c.MaxConns)
	}
}

func TestEnvIntRejectsGarbage(t *testing.T) {
	t.Setenv(EnvMaxConnections, "not-a-number")
	if got := envInt(EnvMaxConnections, 10); got != 10 {
		t.Errorf("expected fallback for garbage, got %d", got)
	}
	t.Setenv(EnvMaxConnections, "-5")
	if got := envInt(EnvMaxConnections, 10); got != 10 {
		t.Errorf("expected fallback for non-positive, got %d", got)
	}
	t.Setenv(EnvMaxConnections, "")
	if got := envInt(EnvMaxConnections, 10); got != 10 {
		t.Errorf("expected fallback for empty, got %d", got)
	}
}

func TestPoolConfigValidate(t *testing.T) {
	t.Parallel()
	valid := PoolConfig{}.withDefaults()
	if err := valid.validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}

	bad := valid
	bad.TLS = "maybe"
	if err := bad.validate(); err == nil {
		t.Error("expected error for invalid tls mode")
	}

	bad = valid
	bad.MaxConns = 0
	if err := bad.validate(); err == nil {
		t.Error("expected error for zero max_conns")
	}

	bad = valid
	bad.IdleTimeoutMs = -1
	if err := bad.validate(); err == nil {
		t.Error("expected error for negative timeout")
	}
}

func TestPoolConfigDurations(t *testing.T) {
	t.Parallel()
	c := PoolConfig{IdleTimeoutMs: 1500, ConnectTimeoutMs: 250}
	if c.idleTimeout() != 1500*time.Millisecond {
		t.Errorf("idle: got %v", c.idleTimeout())
	}
	if c.connectTimeout() != 250*time.Millisecond {
		t.Errorf("connect: got %v", c.connectTimeout())
	}
}
