package pgdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pgdesk/pgdesk/internal/suggest"
)

// maxTableSuggestions caps the "did you mean" list per missing table.
const maxTableSuggestions = 3

// Schema predicates. The default scope is the public schema; allSchemas
// widens it to every non-system schema.
const (
	publicSchemaPredicate    = `t.table_schema = 'public'`
	nonSystemSchemaPredicate = `t.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')`
)

// tableInfoSQL returns one row per table with its columns and constraints
// aggregated as embedded JSON payloads, ordered by schema then table name.
// The optional name filter is appended for targeted mode.
const tableInfoSQL = `
SELECT
    t.table_schema,
    t.table_name,
    COALESCE((
        SELECT json_agg(json_build_object(
            'name', c.column_name,
            'type', c.data_type,
            'nullable', c.is_nullable = 'YES',
            'default', COALESCE(c.column_default, ''),
            'max_length', COALESCE(c.character_maximum_length, 0)
        ) ORDER BY c.ordinal_position)
        FROM information_schema.columns c
        WHERE c.table_schema = t.table_schema
          AND c.table_name = t.table_name
    ), '[]'::json) AS columns,
    COALESCE((
        SELECT json_agg(json_build_object(
            'type', tc.constraint_type,
            'name', tc.constraint_name,
            'column', COALESCE(kcu.column_name, '')
        ) ORDER BY tc.constraint_name, kcu.ordinal_position)
        FROM information_schema.table_constraints tc
        LEFT JOIN information_schema.key_column_usage kcu
            ON tc.constraint_name = kcu.constraint_name
            AND tc.table_schema = kcu.table_schema
        WHERE tc.table_schema = t.table_schema
          AND tc.table_name = t.table_name
    ), '[]'::json) AS constraints
FROM information_schema.tables t
WHERE t.table_type = 'BASE TABLE'
  AND %s
ORDER BY t.table_schema, t.table_name;
`

const existingTableNamesSQL = `
SELECT t.table_name
FROM information_schema.tables t
WHERE t.table_type = 'BASE TABLE'
  AND %s
ORDER BY t.table_name;
`

// GetSchema introspects table structure. With no table filter it returns
// every table in scope; with a filter it returns the matching tables plus a
// MissingTables entry (with ranked suggestions) for each requested name that
// does not exist. Results are produced fresh on every call, never cached.
func (e *Engine) GetSchema(ctx context.Context, tables []string, allSchemas bool) (*SchemaResult, error) {
	startTime := time.Now()

	conn, err := e.pools.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, newQueryError(err)
	}
	defer tx.Rollback(ctx) // always rollback, read-only metadata queries

	predicate := publicSchemaPredicate
	if allSchemas {
		predicate = nonSystemSchemaPredicate
	}

	result := &SchemaResult{Tables: []TableInfo{}}

	query := fmt.Sprintf(tableInfoSQL, predicate)
	var rows pgx.Rows
	if len(tables) > 0 {
		query = fmt.Sprintf(tableInfoSQL, predicate+" AND t.table_name = ANY($1)")
		rows, err = tx.Query(ctx, query, tables)
	} else {
		rows, err = tx.Query(ctx, query)
	}
	if err != nil {
		return nil, newQueryError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var schema, name string
		var columnsJSON, constraintsJSON []byte
		if err := rows.Scan(&schema, &name, &columnsJSON, &constraintsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		info, err := parseTableRow(schema, name, columnsJSON, constraintsJSON)
		if err != nil {
			return nil, err
		}
		result.Tables = append(result.Tables, info)
	}
	if err := rows.Err(); err != nil {
		return nil, newQueryError(err)
	}
	rows.Close()

	if len(tables) > 0 {
		missing, err := e.findMissingTables(ctx, tx, predicate, tables, result.Tables)
		if err != nil {
			return nil, err
		}
		result.MissingTables = missing
	}

	e.logger.Info().
		Int("table_count", len(result.Tables)).
		Int("missing_count", len(result.MissingTables)).
		Bool("all_schemas", allSchemas).
		Dur("duration", time.Since(startTime)).
		Msg("schema introspected")

	return result, nil
}

// findMissingTables diffs the requested names against the found tables and
// ranks suggestions from the full set of existing table names in scope.
func (e *Engine) findMissingTables(ctx context.Context, tx pgx.Tx, predicate string, requested []string, found []TableInfo) ([]MissingTableInfo, error) {
	foundNames := make(map[string]bool, len(found))
	for _, t := range found {
		foundNames[t.Name] = true
	}

	var missingNames []string
	for _, name := range requested {
		if !foundNames[name] {
			missingNames = append(missingNames, name)
		}
	}
	if len(missingNames) == 0 {
		return nil, nil
	}

	rows, err := tx.Query(ctx, fmt.Sprintf(existingTableNamesSQL, predicate))
	if err != nil {
		return nil, newQueryError(err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		existing = append(existing, name)
	}
	if err := rows.Err(); err != nil {
		return nil, newQueryError(err)
	}

	missing := make([]MissingTableInfo, len(missingNames))
	for i, name := range missingNames {
		missing[i] = MissingTableInfo{
			Name:        name,
			Suggestions: suggest.Tables(name, existing, maxTableSuggestions),
		}
	}
	return missing, nil
}

// parseTableRow decodes the embedded JSON column and constraint payloads of
// one result row. A table with zero constraints yields an empty list, not a
// nil field.
func parseTableRow(schema, name string, columnsJSON, constraintsJSON []byte) (TableInfo, error) {
	info := TableInfo{
		Schema:      schema,
		Name:        name,
		Columns:     []ColumnInfo{},
		Constraints: []ConstraintInfo{},
	}
	if len(columnsJSON) > 0 {
		if err := json.Unmarshal(columnsJSON, &info.Columns); err != nil {
			return info, fmt.Errorf("failed to decode columns for %s.%s: %w", schema, name, err)
		}
	}
	if len(constraintsJSON) > 0 {
		if err := json.Unmarshal(constraintsJSON, &info.Constraints); err != nil {
			return info, fmt.Errorf("failed to decode constraints for %s.%s: %w", schema, name, err)
		}
	}
	if info.Columns == nil {
		info.Columns = []ColumnInfo{}
	}
	if info.Constraints == nil {
		info.Constraints = []ConstraintInfo{}
	}
	return info, nil
}
