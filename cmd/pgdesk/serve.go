package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/pgdesk/pgdesk"
)

const (
	envConfigPath = "PGDESK_CONFIG_PATH"
	envConnString = "PGDESK_PG_CONNSTRING"

	defaultConfigPath = ".pgdesk/config.json"
	defaultHealthPath = "/health"

	// shutdownTimeout bounds graceful shutdown; a stuck streaming client
	// must not hold the process open indefinitely.
	shutdownTimeout = 10 * time.Second
)

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := loadServerConfig()
	if err != nil {
		return err
	}
	if config.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}

	logger := setupLogger(config.Logging)

	connString := os.Getenv(envConnString)
	if connString == "" {
		user, password := credentialsFromTerminal()
		connString = buildConnString(config.Connection, user, password)
	}

	engine, err := pgdesk.New(ctx, connString, config.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Close(ctx)

	if err := engine.Ping(ctx); err != nil {
		return fmt.Errorf("database is not reachable: %w", err)
	}
	logger.Info().Str("host", config.Connection.Host).Msg("database connection verified")

	mcpServer := server.NewMCPServer("pgdesk", version,
		server.WithToolCapabilities(true),
	)
	pgdesk.RegisterMCPTools(mcpServer, engine)

	addr := fmt.Sprintf(":%d", config.Server.Port)
	mux := http.NewServeMux()
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	if config.Server.HealthCheckEnabled {
		mux.HandleFunc(healthPath(config.Server), func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	streamable := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)
	// Start() skips handler registration when a custom *http.Server is
	// supplied via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamable)

	errCh := make(chan error, 1)
	go func() { errCh <- streamable.Start(addr) }()
	logger.Info().Int("port", config.Server.Port).Msg("pgdesk server listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

// healthPath returns the configured liveness endpoint path, defaulting to
// /health. The endpoint reports process liveness only, not DB connectivity.
func healthPath(s pgdesk.ServerSettings) string {
	if s.HealthCheckPath != "" {
		return s.HealthCheckPath
	}
	return defaultHealthPath
}

func loadServerConfig() (*pgdesk.ServerConfig, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = defaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var config pgdesk.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &config, nil
}

// buildConnString assembles a keyword/value connection string from the
// configured connection parameters plus interactively supplied credentials.
// Empty fields are omitted.
func buildConnString(conn pgdesk.ConnectionConfig, user, password string) string {
	pairs := []struct{ key, value string }{
		{"host", conn.Host},
		{"port", portString(conn.Port)},
		{"dbname", conn.DBName},
		{"user", user},
		{"password", password},
		{"sslmode", conn.SSLMode},
	}
	var parts []string
	for _, p := range pairs {
		if p.value != "" {
			parts = append(parts, p.key+"="+p.value)
		}
	}
	return strings.Join(parts, " ")
}

func portString(port int) string {
	if port <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", port)
}

func setupLogger(config pgdesk.LoggingConfig) zerolog.Logger {
	output := logOutput(config.Output)
	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}
	return zerolog.New(output).Level(logLevel(config.Level)).With().Timestamp().Logger()
}

func logLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// logOutput maps the configured output to a writer. A file path that cannot
// be opened falls back to stderr so startup never fails on logging.
func logOutput(output string) io.Writer {
	switch output {
	case "", "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stderr
		}
		return f
	}
}

// credentialsFromTerminal prompts for a username and password on the
// controlling terminal. The password is read without echo.
func credentialsFromTerminal() (user, password string) {
	fmt.Fprint(os.Stderr, "Username: ")
	fmt.Scanln(&user)

	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return user, ""
	}
	return user, string(raw)
}
