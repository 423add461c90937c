// Package dumpcmd validates backup options and builds pg_dump argument
// vectors. Everything here is pure: no process is spawned and no path is
// touched, so injection and path-safety rules can be tested exhaustively.
package dumpcmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pgdesk/pgdesk/internal/pgident"
)

// Supported pg_dump output formats.
const (
	FormatPlain     = "plain"
	FormatCustom    = "custom"
	FormatTar       = "tar"
	FormatDirectory = "directory"
)

// directoryJobs is the worker count requested for directory-format dumps.
const directoryJobs = 4

// Options is dumpcmd's own option type, decoupled from the engine's
// BackupOptions.
type Options struct {
	Format     string
	Tables     []string
	Schemas    []string
	DataOnly   bool
	SchemaOnly bool
	Compress   bool
}

// ConnParams carries the connection fields passed to pg_dump on the command
// line. The password is deliberately absent: it travels only through the
// child environment.
type ConnParams struct {
	Host     string
	Port     uint16
	User     string
	Database string
}

// ValidateFormat checks that format names one of the four supported kinds.
func ValidateFormat(format string) error {
	switch format {
	case FormatPlain, FormatCustom, FormatTar, FormatDirectory:
		return nil
	}
	return fmt.Errorf("Invalid backup format: %q (must be plain, custom, tar, or directory)", format)
}

// Validate runs all option checks that must pass before any process is
// spawned.
func Validate(opts Options) error {
	if err := ValidateFormat(opts.Format); err != nil {
		return err
	}
	if opts.DataOnly && opts.SchemaOnly {
		return fmt.Errorf("data_only and schema_only are mutually exclusive")
	}
	return nil
}

// ResolveOutputPath rejects any path containing a parent-directory traversal
// segment, then resolves relative paths against workDir and normalizes.
func ResolveOutputPath(workDir, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("output path must be non-empty")
	}
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if segment == ".." {
			return "", fmt.Errorf("output path must not contain parent-directory traversal: %q", path)
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	return filepath.Clean(path), nil
}

// BuildArgs constructs the pg_dump argument vector. Table and schema names
// outside [A-Za-z0-9_], or containing a dot, are identifier-quoted with
// doubled internal quotes so they cannot be read as patterns or smuggle
// extra arguments. Compression applies only to the custom format; directory
// format requests parallel workers.
func BuildArgs(opts Options, conn ConnParams, outputPath string) []string {
	args := []string{
		"--host", conn.Host,
		"--port", strconv.Itoa(int(conn.Port)),
		"--username", conn.User,
		"--dbname", conn.Database,
		"--no-password",
		"--format", formatFlag(opts.Format),
		"--file", outputPath,
	}

	for _, table := range opts.Tables {
		args = append(args, "--table", pgident.QuoteIfNeeded(table))
	}
	for _, schema := range opts.Schemas {
		args = append(args, "--schema", pgident.QuoteIfNeeded(schema))
	}

	if opts.DataOnly {
		args = append(args, "--data-only")
	}
	if opts.SchemaOnly {
		args = append(args, "--schema-only")
	}
	if opts.Compress && opts.Format == FormatCustom {
		args = append(args, "--compress", "9")
	}
	if opts.Format == FormatDirectory {
		args = append(args, "--jobs", strconv.Itoa(directoryJobs))
	}

	return args
}

func formatFlag(format string) string {
	switch format {
	case FormatCustom:
		return "c"
	case FormatTar:
		return "t"
	case FormatDirectory:
		return "d"
	default:
		return "p"
	}
}

// DefaultFilename suggests an output filename for a dump of database in the
// given format, timestamped to the current time.
func DefaultFilename(database, format string) string {
	ext := "dump"
	switch format {
	case FormatPlain:
		ext = "sql"
	case FormatTar:
		ext = "tar"
	case FormatDirectory:
		ext = "dir"
	}
	return fmt.Sprintf("%s-%s.%s", database, time.Now().Format("20060102-150405"), ext)
}
