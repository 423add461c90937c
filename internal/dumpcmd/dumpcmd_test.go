package dumpcmd

import (
	"slices"
	"strings"
	"testing"
)

var testConn = ConnParams{
	Host:     "db.internal",
	Port:     5433,
	User:     "deploy",
	Database: "appdb",
}

func TestValidateFormatAccepted(t *testing.T) {
	t.Parallel()
	for _, format := range []string{"plain", "custom", "tar", "directory"} {
		if err := ValidateFormat(format); err != nil {
			t.Errorf("ValidateFormat(%q) = %v, want nil", format, err)
		}
	}
}

func TestValidateFormatRejected(t *testing.T) {
	t.Parallel()
	err := ValidateFormat("sql")
	if err == nil {
		t.Fatal("expected error for format \"sql\"")
	}
	if !strings.HasPrefix(err.Error(), "Invalid backup format") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestValidateMutuallyExclusive(t *testing.T) {
	t.Parallel()
	err := Validate(Options{Format: FormatPlain, DataOnly: true, SchemaOnly: true})
	if err == nil {
		t.Fatal("expected error for data_only + schema_only")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestValidatePlainDefaults(t *testing.T) {
	t.Parallel()
	if err := Validate(Options{Format: FormatPlain}); err != nil {
		t.Errorf("expected plain format with no filters to validate, got %v", err)
	}
}

func TestResolveOutputPathRejectsTraversal(t *testing.T) {
	t.Parallel()
	for _, path := range []string{
		"../etc/passwd",
		"backups/../../etc/passwd",
		"..",
		"a/b/../c",
	} {
		if _, err := ResolveOutputPath("/work", path); err == nil {
			t.Errorf("expected traversal rejection for %q", path)
		}
	}
}

func TestResolveOutputPathRelative(t *testing.T) {
	t.Parallel()
	got, err := ResolveOutputPath("/work", "backups/out.sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/work/backups/out.sql" {
		t.Errorf("expected /work/backups/out.sql, got %s", got)
	}
}

func TestResolveOutputPathAbsolute(t *testing.T) {
	t.Parallel()
	got, err := ResolveOutputPath("/work", "/tmp/out.sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/tmp/out.sql" {
		t.Errorf("expected /tmp/out.sql, got %s", got)
	}
}

func TestResolveOutputPathEmpty(t *testing.T) {
	t.Parallel()
	if _, err := ResolveOutputPath("/work", ""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestBuildArgsConnection(t *testing.T) {
	t.Parallel()
	args := BuildArgs(Options{Format: FormatPlain}, testConn, "/tmp/out.sql")
	for _, pair := range [][2]string{
		{"--host", "db.internal"},
		{"--port", "5433"},
		{"--username", "deploy"},
		{"--dbname", "appdb"},
		{"--format", "p"},
		{"--file", "/tmp/out.sql"},
	} {
		if !hasFlagValue(args, pair[0], pair[1]) {
			t.Errorf("expected %s %s in args %v", pair[0], pair[1], args)
		}
	}
	if !slices.Contains(args, "--no-password") {
		t.Errorf("expected --no-password in args %v", args)
	}
	for _, arg := range args {
		if strings.Contains(strings.ToLower(arg), "password=") {
			t.Errorf("credentials must never appear in args: %v", args)
		}
	}
}

func TestBuildArgsQuotesUnsafeIdentifiers(t *testing.T) {
	t.Parallel()
	opts := Options{
		Format:  FormatPlain,
		Tables:  []string{"users", `my"table`, "a.b"},
		Schemas: []string{"reporting", "odd schema"},
	}
	args := BuildArgs(opts, testConn, "/tmp/out.sql")
	if !hasFlagValue(args, "--table", "users") {
		t.Errorf("plain table name must pass through unquoted: %v", args)
	}
	if !hasFlagValue(args, "--table", `"my""table"`) {
		t.Errorf("embedded quote must be doubled and wrapped: %v", args)
	}
	if !hasFlagValue(args, "--table", `"a.b"`) {
		t.Errorf("dotted name must be quoted: %v", args)
	}
	if !hasFlagValue(args, "--schema", "reporting") {
		t.Errorf("plain schema must pass through unquoted: %v", args)
	}
	if !hasFlagValue(args, "--schema", `"odd schema"`) {
		t.Errorf("schema with space must be quoted: %v", args)
	}
}

func TestBuildArgsCompressionOnlyForCustom(t *testing.T) {
	t.Parallel()
	custom := BuildArgs(Options{Format: FormatCustom, Compress: true}, testConn, "/tmp/out.dump")
	if !hasFlagValue(custom, "--compress", "9") {
		t.Errorf("expected --compress 9 for custom format: %v", custom)
	}
	plain := BuildArgs(Options{Format: FormatPlain, Compress: true}, testConn, "/tmp/out.sql")
	if slices.Contains(plain, "--compress") {
		t.Errorf("compression must not apply to plain format: %v", plain)
	}
}

func TestBuildArgsDirectoryJobs(t *testing.T) {
	t.Parallel()
	args := BuildArgs(Options{Format: FormatDirectory}, testConn, "/tmp/outdir")
	if !hasFlagValue(args, "--jobs", "4") {
		t.Errorf("expected --jobs 4 for directory format: %v", args)
	}
	plain := BuildArgs(Options{Format: FormatPlain}, testConn, "/tmp/out.sql")
	if slices.Contains(plain, "--jobs") {
		t.Errorf("--jobs must not apply to plain format: %v", plain)
	}
}

func TestBuildArgsDataSchemaOnly(t *testing.T) {
	t.Parallel()
	data := BuildArgs(Options{Format: FormatPlain, DataOnly: true}, testConn, "/tmp/o.sql")
	if !slices.Contains(data, "--data-only") {
		t.Errorf("expected --data-only: %v", data)
	}
	schema := BuildArgs(Options{Format: FormatPlain, SchemaOnly: true}, testConn, "/tmp/o.sql")
	if !slices.Contains(schema, "--schema-only") {
		t.Errorf("expected --schema-only: %v", schema)
	}
}

func TestDefaultFilename(t *testing.T) {
	t.Parallel()
	name := DefaultFilename("appdb", FormatPlain)
	if !strings.HasPrefix(name, "appdb-") || !strings.HasSuffix(name, ".sql") {
		t.Errorf("unexpected filename %s", name)
	}
	if !strings.HasSuffix(DefaultFilename("appdb", FormatCustom), ".dump") {
		t.Error("custom format should use .dump extension")
	}
}

// hasFlagValue reports whether args contains flag immediately followed by value.
func hasFlagValue(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
