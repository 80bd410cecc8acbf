package postgres

import (
	"context"
	"fmt"
	"io"

	"github.com/ledgerbot/backupd/config"
	"github.com/rs/zerolog"
)

// Tool drives pg_dump, pg_restore and psql against one database.
type Tool struct {
	params config.DatabaseParams
	runner Runner
	logger zerolog.Logger
}

func NewTool(params config.DatabaseParams, runner Runner, logger zerolog.Logger) *Tool {
	return &Tool{params: params, runner: runner, logger: logger}
}

func (t *Tool) Database() string { return t.params.Database }

// Password travels via the environment, never argv.
func (t *Tool) env() []string {
	return []string{"PGPASSWORD=" + t.params.Password}
}

func (t *Tool) connArgs() []string {
	return []string{
		"-h", t.params.Host,
		"-p", t.params.Port,
		"-U", t.params.User,
	}
}

// Dump streams a custom-format dump of the database into w.
func (t *Tool) Dump(ctx context.Context, w io.Writer) error {
	args := append(t.connArgs(),
		"-d", t.params.Database,
		"--no-owner",
		"--no-privileges",
		"-F", "c",
	)
	if err := t.runner.Run(ctx, w, "pg_dump", args, t.env()); err != nil {
		return fmt.Errorf("dump of %q: %w", t.params.Database, err)
	}
	return nil
}

// TerminateConnections kicks every other session off the target database so
// the subsequent drop does not block.
func (t *Tool) TerminateConnections(ctx context.Context) error {
	stmt := fmt.Sprintf(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s' AND pid <> pg_backend_pid();",
		t.params.Database,
	)
	return t.psql(ctx, stmt)
}

// DropAndRecreate destroys the target database and creates it empty.
// Irreversible; callers gate this behind an explicit confirmation.
func (t *Tool) DropAndRecreate(ctx context.Context) error {
	if err := t.psql(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS "%s";`, t.params.Database)); err != nil {
		return fmt.Errorf("drop database %q: %w", t.params.Database, err)
	}
	if err := t.psql(ctx, fmt.Sprintf(`CREATE DATABASE "%s";`, t.params.Database)); err != nil {
		return fmt.Errorf("create database %q: %w", t.params.Database, err)
	}
	return nil
}

// Restore loads a custom-format dump file into the database.
func (t *Tool) Restore(ctx context.Context, dumpPath string) error {
	args := append(t.connArgs(),
		"-d", t.params.Database,
		"--no-owner",
		"--no-privileges",
		dumpPath,
	)
	if err := t.runner.Run(ctx, io.Discard, "pg_restore", args, t.env()); err != nil {
		return fmt.Errorf("restore of %q: %w", t.params.Database, err)
	}
	return nil
}

// Maintenance statements run against the postgres database, not the target,
// which may be about to be dropped.
func (t *Tool) psql(ctx context.Context, stmt string) error {
	args := append(t.connArgs(), "-d", "postgres", "-v", "ON_ERROR_STOP=1", "-c", stmt)
	return t.runner.Run(ctx, io.Discard, "psql", args, t.env())
}
