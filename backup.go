package pgdesk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pgdesk/pgdesk/internal/dumpcmd"
)

// pgDumpBinary is the external dump utility invoked by Backup.
const pgDumpBinary = "pg_dump"

// CommandExecutor runs the dump subprocess. Extracted as an interface so
// tests can fake process execution.
type CommandExecutor interface {
	// Run executes name with args, appending env to the child environment,
	// and returns the buffered standard error output.
	Run(ctx context.Context, name string, args []string, env []string) (stderr string, err error)
}

// execRunner is the default CommandExecutor backed by os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string, env []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.String(), err
}

// Backup produces a physical backup via pg_dump. It never returns a Go
// error: every failure (bad options, unsafe path, missing utility,
// non-zero exit) is captured in the result with Success=false. Options are
// fully validated before any process is spawned, credentials travel only
// through the child environment, and duration covers the whole run
// including validation.
func (e *Engine) Backup(ctx context.Context, opts BackupOptions) *BackupResult {
	startTime := time.Now()
	result := &BackupResult{}

	fail := func(format string, args ...any) *BackupResult {
		result.Error = fmt.Sprintf(format, args...)
		result.DurationMs = time.Since(startTime).Milliseconds()
		e.logger.Error().Str("error", result.Error).Msg("backup failed")
		return result
	}

	dumpOpts := dumpcmd.Options{
		Format:     string(opts.Format),
		Tables:     opts.Tables,
		Schemas:    opts.Schemas,
		DataOnly:   opts.DataOnly,
		SchemaOnly: opts.SchemaOnly,
		Compress:   opts.Compress,
	}
	if err := dumpcmd.Validate(dumpOpts); err != nil {
		return fail("%v", err)
	}

	connCfg, err := pgconn.ParseConfig(e.connString)
	if err != nil {
		return fail("failed to parse connection string: %v", err)
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = dumpcmd.DefaultFilename(connCfg.Database, dumpOpts.Format)
	}
	resolved, err := dumpcmd.ResolveOutputPath(e.workDir, outputPath)
	if err != nil {
		return fail("%v", err)
	}
	result.OutputPath = resolved

	if _, err := exec.LookPath(pgDumpBinary); err != nil {
		return fail("pg_dump is not installed or not on PATH")
	}
	if err := ensureWritableDir(filepath.Dir(resolved)); err != nil {
		return fail("output directory is not writable: %v", err)
	}

	args := dumpcmd.BuildArgs(dumpOpts, dumpcmd.ConnParams{
		Host:     connCfg.Host,
		Port:     connCfg.Port,
		User:     connCfg.User,
		Database: connCfg.Database,
	}, resolved)

	var env []string
	if connCfg.Password != "" {
		env = append(env, "PGPASSWORD="+connCfg.Password)
	}

	e.logger.Info().
		Str("database", connCfg.Database).
		Str("format", dumpOpts.Format).
		Str("output", resolved).
		Msg("starting backup")

	stderr, err := e.executor.Run(ctx, pgDumpBinary, args, env)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fail("pg_dump is not installed or not on PATH")
		}
		return fail("pg_dump failed: %v: %s", err, stderr)
	}

	// Best effort: a missing size is not a failure.
	if size, err := measureOutputSize(resolved); err == nil {
		result.SizeBytes = size
	}

	result.Success = true
	result.DurationMs = time.Since(startTime).Milliseconds()

	e.logger.Info().
		Str("output", resolved).
		Int64("size_bytes", result.SizeBytes).
		Int64("duration_ms", result.DurationMs).
		Msg("backup completed")

	return result
}

// ensureWritableDir creates dir if needed and probes writability before the
// dump process is spawned.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".pgdesk-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// measureOutputSize returns the size of the dump output: the file size, or
// the recursive sum for directory-format dumps.
func measureOutputSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
		}
		return nil
	})
	return total, err
}
