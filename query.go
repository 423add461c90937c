package pgdesk

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ExecuteQuery runs a single SQL statement inside the transactional envelope.
// Transactional mode is on by default; transaction-control statements
// (BEGIN, COMMIT, ROLLBACK, START TRANSACTION) are never auto-wrapped. On
// SQL failure a rollback is attempted best-effort and the original error is
// returned as a *QueryError; rollback failures are logged, never substituted.
func (e *Engine) ExecuteQuery(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	startTime := time.Now()

	if strings.TrimSpace(req.SQL) == "" {
		return nil, &ValidationError{Message: "sql must be non-empty"}
	}

	conn, err := e.pools.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	if req.TimeoutMs > 0 {
		if err := e.setStatementTimeout(ctx, conn, req.TimeoutMs); err != nil {
			return nil, err
		}
		// Restore the session default before the connection goes back to
		// the pool. Best effort: a failure here must not mask the result.
		defer e.resetStatementTimeout(ctx, conn)
	}

	wrap := req.Transactional() && !isTransactionControl(req.SQL)

	var tx pgx.Tx
	if wrap {
		tx, err = conn.Begin(ctx)
		if err != nil {
			return nil, newQueryError(err)
		}
	}

	result, execErr := e.runStatement(ctx, conn, tx, req.SQL)
	if execErr != nil {
		if wrap {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				e.logger.Warn().Err(rbErr).Msg("rollback failed after query error")
			}
		}
		// A server-reported connection failure (08xxx, bad authorization) is
		// a connectivity problem, not a problem with the statement.
		if isConnectionFailure(execErr) {
			return nil, &ConnectionError{Attempts: 1, Cause: execErr}
		}
		return nil, newQueryError(execErr)
	}

	if wrap {
		if err := tx.Commit(ctx); err != nil {
			return nil, newQueryError(err)
		}
	}

	result.DurationMs = time.Since(startTime).Milliseconds()

	e.logger.Info().
		Str("sql", truncateForLog(req.SQL, 200)).
		Str("command", result.Command).
		Int("row_count", result.RowCount).
		Bool("transactional", wrap).
		Dur("duration", time.Since(startTime)).
		Msg("query executed")

	return result, nil
}

// ExecuteFile reads SQL from path and delegates to ExecuteQuery. Relative
// paths resolve against the working directory; a path that does not resolve
// to an existing file fails fast with *FileNotFoundError.
func (e *Engine) ExecuteFile(ctx context.Context, path string, req QueryRequest) (*QueryResult, error) {
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(e.workDir, resolved)
	}

	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return nil, &FileNotFoundError{Path: path}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	req.SQL = string(data)
	return e.ExecuteQuery(ctx, req)
}

// setStatementTimeout applies a per-request statement_timeout on the leased
// session. A failure here propagates immediately (the deferred release
// still runs).
func (e *Engine) setStatementTimeout(ctx context.Context, conn *pgxpool.Conn, timeoutMs int) error {
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", timeoutMs)); err != nil {
		return newQueryError(fmt.Errorf("failed to set statement_timeout: %w", err))
	}
	return nil
}

func (e *Engine) resetStatementTimeout(ctx context.Context, conn *pgxpool.Conn) {
	restore := fmt.Sprintf("SET statement_timeout = %d", e.config.Pool.StatementTimeoutMs)
	if _, err := conn.Exec(context.WithoutCancel(ctx), restore); err != nil {
		e.logger.Warn().Err(err).Msg("failed to restore statement_timeout")
	}
}

// runStatement executes sql on the transaction when wrapped, or directly on
// the connection otherwise, and collects the normalized result.
// Multi-statement scripts go over the simple query protocol, which the
// extended protocol does not permit.
func (e *Engine) runStatement(ctx context.Context, conn *pgxpool.Conn, tx pgx.Tx, sql string) (*QueryResult, error) {
	if statementCount(sql) > 1 {
		return runScript(ctx, conn, sql)
	}

	var rows pgx.Rows
	var err error
	if tx != nil {
		rows, err = tx.Query(ctx, sql)
	} else {
		rows, err = conn.Query(ctx, sql)
	}
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// runScript executes a multi-statement script over the simple query
// protocol on the leased session, inside the already-open transaction when
// one is active. The result reports the last command tag, the total number
// of affected rows, and the text-format rows of the final result set.
func runScript(ctx context.Context, conn *pgxpool.Conn, sql string) (*QueryResult, error) {
	results, err := conn.Conn().PgConn().Exec(ctx, sql).ReadAll()
	if err != nil {
		return nil, err
	}

	var lastTag string
	var affected int64
	resultRows := make([]map[string]any, 0)
	for _, res := range results {
		if res.Err != nil {
			return nil, res.Err
		}
		lastTag = res.CommandTag.String()
		affected += res.CommandTag.RowsAffected()

		if len(res.FieldDescriptions) == 0 {
			continue
		}
		resultRows = resultRows[:0]
		for _, raw := range res.Rows {
			row := make(map[string]any, len(res.FieldDescriptions))
			for i, fd := range res.FieldDescriptions {
				if i >= len(raw) || raw[i] == nil {
					row[fd.Name] = nil
					continue
				}
				row[fd.Name] = string(raw[i])
			}
			resultRows = append(resultRows, row)
		}
	}

	rowCount := len(resultRows)
	if rowCount == 0 {
		rowCount = int(affected)
	}
	return &QueryResult{
		Command:  commandVerb(lastTag),
		RowCount: rowCount,
		Rows:     resultRows,
	}, nil
}

// statementCount counts top-level statements. Unparseable input counts as
// one; it will fail server-side with a real error message.
func statementCount(sql string) int {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return 1
	}
	return len(result.Stmts)
}

// collectRows drains pgx.Rows into a QueryResult. The command verb comes
// from the command tag; rowCount equals len(rows) when rows are present and
// the affected-row count otherwise.
func collectRows(rows pgx.Rows) (*QueryResult, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tag := rows.CommandTag()
	rowCount := len(resultRows)
	if rowCount == 0 {
		rowCount = int(tag.RowsAffected())
	}

	return &QueryResult{
		Command:  commandVerb(tag.String()),
		RowCount: rowCount,
		Rows:     resultRows,
	}, nil
}

// commandVerb strips trailing row counts from a command tag: "INSERT 0 1"
// becomes "INSERT", "CREATE TABLE" stays "CREATE TABLE".
func commandVerb(tag string) string {
	fields := strings.Fields(tag)
	end := len(fields)
	for end > 0 && isDigits(fields[end-1]) {
		end--
	}
	return strings.Join(fields[:end], " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isTransactionControl reports whether sql is itself a transaction-control
// statement, which must not be auto-wrapped (nested BEGIN errors). Detection
// is AST-based; when the statement does not parse, a conservative prefix
// check is used. An unparseable statement fails server-side anyway.
func isTransactionControl(sql string) bool {
	result, err := pg_query.Parse(sql)
	if err != nil || len(result.Stmts) == 0 {
		return hasTransactionPrefix(sql)
	}
	for _, rawStmt := range result.Stmts {
		if rawStmt.Stmt == nil {
			continue
		}
		if _, ok := rawStmt.Stmt.Node.(*pg_query.Node_TransactionStmt); ok {
			return true
		}
	}
	return false
}

var transactionVerbs = []string{"BEGIN", "COMMIT", "ROLLBACK", "START TRANSACTION", "END"}

func hasTransactionPrefix(sql string) bool {
	head := strings.ToUpper(strings.TrimSpace(sql))
	for _, verb := range transactionVerbs {
		if head == verb || strings.HasPrefix(head, verb+" ") || strings.HasPrefix(head, verb+";") {
			return true
		}
	}
	return false
}

// convertValue converts a pgx-returned value to a JSON-friendly Go type.
// pgtype wrapper structs are rendered as their PostgreSQL text forms so
// they never serialize as raw structs.
func convertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return convertFloat(float64(val))
	case float64:
		return convertFloat(val)
	case netip.Prefix:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		if val.InfinityModifier == pgtype.Infinity {
			return "Infinity"
		}
		if val.InfinityModifier == pgtype.NegativeInfinity {
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	case pgtype.Time:
		if !val.Valid {
			return nil
		}
		return formatTimeOfDay(val.Microseconds)
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}
		return formatInterval(val)
	case pgtype.Range[any]:
		if !val.Valid {
			return nil
		}
		return formatRange(val)
	case pgtype.Point:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("(%g,%g)", val.P.X, val.P.Y)
	case pgtype.Line:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("{%g,%g,%g}", val.A, val.B, val.C)
	case pgtype.Lseg:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("[(%g,%g),(%g,%g)]", val.P[0].X, val.P[0].Y, val.P[1].X, val.P[1].Y)
	case pgtype.Box:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("(%g,%g),(%g,%g)", val.P[0].X, val.P[0].Y, val.P[1].X, val.P[1].Y)
	case pgtype.Path:
		if !val.Valid {
			return nil
		}
		joined := joinPoints(val.P)
		if val.Closed {
			return "(" + joined + ")"
		}
		return "[" + joined + "]"
	case pgtype.Polygon:
		if !val.Valid {
			return nil
		}
		return "(" + joinPoints(val.P) + ")"
	case pgtype.Circle:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("<(%g,%g),%g>", val.P.X, val.P.Y, val.R)
	case pgtype.Bits:
		if !val.Valid {
			return nil
		}
		return bitString(val)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea, base64 encoded
		return base64.StdEncoding.EncodeToString(val)
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = convertValue(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convertValue(item)
		}
		return result
	default:
		return val
	}
}

func convertFloat(f float64) any {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return f
}

// formatTimeOfDay renders a time-of-day microsecond count as HH:MM:SS with
// fractional seconds only when present.
func formatTimeOfDay(us int64) string {
	hours := us / 3_600_000_000
	us -= hours * 3_600_000_000
	minutes := us / 60_000_000
	us -= minutes * 60_000_000
	seconds := us / 1_000_000
	us -= seconds * 1_000_000
	if us > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%06d", hours, minutes, seconds, us)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

func formatInterval(val pgtype.Interval) string {
	parts := []string{}
	if val.Months != 0 {
		years := val.Months / 12
		months := val.Months % 12
		if years != 0 {
			parts = append(parts, fmt.Sprintf("%d year(s)", years))
		}
		if months != 0 {
			parts = append(parts, fmt.Sprintf("%d mon(s)", months))
		}
	}
	if val.Days != 0 {
		parts = append(parts, fmt.Sprintf("%d day(s)", val.Days))
	}
	if val.Microseconds != 0 {
		dur := time.Duration(val.Microseconds) * time.Microsecond
		parts = append(parts, dur.String())
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, " ")
}

func formatRange(val pgtype.Range[any]) string {
	if val.LowerType == pgtype.Empty {
		return "empty"
	}
	var sb strings.Builder
	if val.LowerType == pgtype.Inclusive {
		sb.WriteByte('[')
	} else {
		sb.WriteByte('(')
	}
	if val.LowerType != pgtype.Unbounded {
		fmt.Fprintf(&sb, "%v", convertValue(val.Lower))
	}
	sb.WriteByte(',')
	if val.UpperType != pgtype.Unbounded {
		fmt.Fprintf(&sb, "%v", convertValue(val.Upper))
	}
	if val.UpperType == pgtype.Inclusive {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(')')
	}
	return sb.String()
}

func joinPoints(points []pgtype.Vec2) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("(%g,%g)", p.X, p.Y)
	}
	return strings.Join(parts, ",")
}

// bitString renders a bit/varbit value as its text form of 0s and 1s.
func bitString(val pgtype.Bits) string {
	result := make([]byte, val.Len)
	for i := int32(0); i < val.Len; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		if val.Bytes[byteIdx]&(1<<uint(bitIdx)) != 0 {
			result[i] = '1'
		} else {
			result[i] = '0'
		}
	}
	return string(result)
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
