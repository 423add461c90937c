// Package pgdesk provides safe, ad-hoc SQL access to a PostgreSQL database
// for human operators and automated tool clients (MCP).
//
// It exposes four operations (ExecuteQuery, ExecuteFile, GetSchema, and
// Backup) on top of a shared, process-wide connection pool. Queries are
// wrapped in a transaction by default and rolled back on error; schema
// introspection includes "did you mean" suggestions for misspelled table
// names; backups shell out to pg_dump with injection-safe argument vectors
// and credentials passed only through the child environment.
//
// # Library Usage
//
//	engine, err := pgdesk.New(ctx, connString, pgdesk.Config{
//		Pool: pgdesk.PoolConfig{MaxConns: 10},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close(ctx)
//
//	result, err := engine.ExecuteQuery(ctx, pgdesk.QueryRequest{
//		SQL: "SELECT * FROM users LIMIT 10",
//	})
//
//	// Or register as MCP tools
//	pgdesk.RegisterMCPTools(mcpServer, engine)
//
// Errors follow a fixed taxonomy: connection failures are retried with
// bounded exponential backoff and then surfaced as *ConnectionError; SQL
// failures are never retried and surface as *QueryError carrying the
// server's message and source position; invalid backup options and unsafe
// output paths are rejected as *ValidationError before any process is
// spawned. Backup itself never returns a Go error; inspect
// BackupResult.Success instead.
package pgdesk
