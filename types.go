package pgdesk

// QueryRequest describes a single SQL statement to execute.
type QueryRequest struct {
	SQL string `json:"sql"`

	// NoTransaction disables the automatic transaction wrap. The zero value
	// means transactional mode is on, matching the default-on contract.
	NoTransaction bool `json:"no_transaction,omitempty"`

	// TimeoutMs, when > 0, sets statement_timeout on the session for the
	// duration of this request.
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// Transactional reports whether the request should be wrapped in a transaction.
func (r QueryRequest) Transactional() bool {
	return !r.NoTransaction
}

// QueryResult is the normalized outcome of a successful query.
type QueryResult struct {
	Command    string           `json:"command"`
	RowCount   int              `json:"row_count"`
	Rows       []map[string]any `json:"rows"`
	DurationMs int64            `json:"duration_ms"`
}

// ColumnInfo describes a single column of an introspected table.
type ColumnInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Nullable  bool   `json:"nullable"`
	Default   string `json:"default,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

// ConstraintInfo describes a single table constraint.
type ConstraintInfo struct {
	Type   string `json:"type"` // PRIMARY KEY, FOREIGN KEY, UNIQUE, CHECK
	Name   string `json:"name"`
	Column string `json:"column,omitempty"`
}

// TableInfo describes one table: identity, ordered columns, constraints.
// Constraints is always non-nil; a table without constraints yields an
// empty list.
type TableInfo struct {
	Schema      string           `json:"schema"`
	Name        string           `json:"name"`
	Columns     []ColumnInfo     `json:"columns"`
	Constraints []ConstraintInfo `json:"constraints"`
}

// MissingTableInfo reports a requested table that does not exist, with up
// to three ranked name suggestions.
type MissingTableInfo struct {
	Name        string   `json:"name"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// SchemaResult is the output of GetSchema. MissingTables is present only
// when at least one requested table was not found.
type SchemaResult struct {
	Tables        []TableInfo        `json:"tables"`
	MissingTables []MissingTableInfo `json:"missing_tables,omitempty"`
}

// BackupFormat enumerates the supported pg_dump output formats.
type BackupFormat string

const (
	FormatPlain     BackupFormat = "plain"
	FormatCustom    BackupFormat = "custom"
	FormatTar       BackupFormat = "tar"
	FormatDirectory BackupFormat = "directory"
)

// BackupOptions configures a single backup run. All fields are validated
// before any process is spawned.
type BackupOptions struct {
	Format     BackupFormat `json:"format"`
	Tables     []string     `json:"tables,omitempty"`
	Schemas    []string     `json:"schemas,omitempty"`
	DataOnly   bool         `json:"data_only,omitempty"`
	SchemaOnly bool         `json:"schema_only,omitempty"`
	Compress   bool         `json:"compress,omitempty"`
	OutputPath string       `json:"output_path"`
}

// BackupResult reports the outcome of a backup run. Failures of any kind
// are captured in Error with Success=false; Backup never returns a Go error.
type BackupResult struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"output_path,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// PoolStats is a point-in-time snapshot of the connection pool.
type PoolStats struct {
	Total   int32 `json:"total"`
	Idle    int32 `json:"idle"`
	Waiting int64 `json:"waiting"`
}
