package pgdesk

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers query, execute_file, get_schema, and backup as
// MCP tools on the given MCP server.
func RegisterMCPTools(mcpServer *server.MCPServer, engine *Engine) {
	queryTool := mcp.NewTool("query",
		mcp.WithDescription("Execute a SQL query against the PostgreSQL database inside a transaction (rolled back on error). Returns results as JSON."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
		mcp.WithBoolean("no_transaction",
			mcp.Description("Disable the automatic transaction wrap"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Statement timeout in milliseconds for this query"),
		),
	)

	mcpServer.AddTool(queryTool, engine.loggedToolHandler("query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		result, err := engine.ExecuteQuery(ctx, QueryRequest{
			SQL:           sql,
			NoTransaction: req.GetBool("no_transaction", false),
			TimeoutMs:     req.GetInt("timeout_ms", 0),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalToolResult(result)
	}))

	executeFileTool := mcp.NewTool("execute_file",
		mcp.WithDescription("Execute SQL read from a file. Relative paths resolve against the server's working directory."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the SQL file"),
		),
		mcp.WithBoolean("no_transaction",
			mcp.Description("Disable the automatic transaction wrap"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Statement timeout in milliseconds"),
		),
	)

	mcpServer.AddTool(executeFileTool, engine.loggedToolHandler("execute_file", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError("path parameter is required"), nil
		}
		result, err := engine.ExecuteFile(ctx, path, QueryRequest{
			NoTransaction: req.GetBool("no_transaction", false),
			TimeoutMs:     req.GetInt("timeout_ms", 0),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalToolResult(result)
	}))

	getSchemaTool := mcp.NewTool("get_schema",
		mcp.WithDescription("Introspect table structure: columns, types, nullability, defaults, and constraints. Suggests similar names for tables that do not exist."),
		mcp.WithArray("tables",
			mcp.Description("Table names to describe; omit for all tables"),
		),
		mcp.WithBoolean("all_schemas",
			mcp.Description("Include all non-system schemas instead of only public"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(getSchemaTool, engine.loggedToolHandler("get_schema", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := engine.GetSchema(ctx, req.GetStringSlice("tables", nil), req.GetBool("all_schemas", false))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalToolResult(result)
	}))

	backupTool := mcp.NewTool("backup",
		mcp.WithDescription("Create a database backup with pg_dump. Check the success flag in the result; failures are reported there, not as tool errors."),
		mcp.WithString("format",
			mcp.Required(),
			mcp.Description("Output format: plain, custom, tar, or directory"),
		),
		mcp.WithArray("tables",
			mcp.Description("Restrict the dump to these tables"),
		),
		mcp.WithArray("schemas",
			mcp.Description("Restrict the dump to these schemas"),
		),
		mcp.WithBoolean("data_only",
			mcp.Description("Dump only data, no schema"),
		),
		mcp.WithBoolean("schema_only",
			mcp.Description("Dump only schema, no data"),
		),
		mcp.WithBoolean("compress",
			mcp.Description("Compress the dump (custom format only)"),
		),
		mcp.WithString("output_path",
			mcp.Description("Output path; relative paths resolve against the working directory"),
		),
	)

	mcpServer.AddTool(backupTool, engine.loggedToolHandler("backup", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		format, err := req.RequireString("format")
		if err != nil {
			return mcp.NewToolResultError("format parameter is required"), nil
		}
		result := engine.Backup(ctx, BackupOptions{
			Format:     BackupFormat(format),
			Tables:     req.GetStringSlice("tables", nil),
			Schemas:    req.GetStringSlice("schemas", nil),
			DataOnly:   req.GetBool("data_only", false),
			SchemaOnly: req.GetBool("schema_only", false),
			Compress:   req.GetBool("compress", false),
			OutputPath: req.GetString("output_path", ""),
		})
		return marshalToolResult(result)
	}))
}

func marshalToolResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal result"), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (e *Engine) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		e.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
