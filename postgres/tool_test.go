package postgres_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/ledgerbot/backupd/config"
	"github.com/ledgerbot/backupd/postgres"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
	env  []string
}

type fakeRunner struct {
	calls  []call
	output []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, w io.Writer, name string, args []string, env []string) error {
	f.calls = append(f.calls, call{name: name, args: args, env: env})
	if f.err != nil {
		return f.err
	}
	_, err := w.Write(f.output)
	return err
}

var testParams = config.DatabaseParams{
	Host:     "localhost",
	Port:     "5432",
	Database: "ledger",
	User:     "bot",
	Password: "secret",
}

func newTool(runner postgres.Runner, t *testing.T) *postgres.Tool {
	return postgres.NewTool(testParams, runner, zerolog.New(zerolog.NewTestWriter(t)))
}

func TestDump_ArgsAndOutput(t *testing.T) {
	runner := &fakeRunner{output: []byte("dump bytes")}
	tool := newTool(runner, t)

	var out bytes.Buffer
	require.NoError(t, tool.Dump(context.Background(), &out))

	require.Len(t, runner.calls, 1)
	c := runner.calls[0]
	assert.Equal(t, "pg_dump", c.name)
	assert.Contains(t, c.args, "--no-owner")
	assert.Contains(t, c.args, "--no-privileges")
	assert.Contains(t, c.args, "ledger")
	assert.Contains(t, c.env, "PGPASSWORD=secret")
	assert.NotContains(t, c.args, "secret", "password must not appear in argv")
	assert.Equal(t, "dump bytes", out.String())
}

func TestDropAndRecreate_OrderAndTargets(t *testing.T) {
	runner := &fakeRunner{}
	tool := newTool(runner, t)

	require.NoError(t, tool.DropAndRecreate(context.Background()))

	require.Len(t, runner.calls, 2)
	assert.Contains(t, runner.calls[0].args, `DROP DATABASE IF EXISTS "ledger";`)
	assert.Contains(t, runner.calls[1].args, `CREATE DATABASE "ledger";`)
	for _, c := range runner.calls {
		assert.Equal(t, "psql", c.name)
		// Maintenance runs against the postgres database, not the target.
		assert.Contains(t, c.args, "postgres")
	}
}

func TestTerminateConnections(t *testing.T) {
	runner := &fakeRunner{}
	tool := newTool(runner, t)

	require.NoError(t, tool.TerminateConnections(context.Background()))
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0].args[len(runner.calls[0].args)-1], "pg_terminate_backend")
}

func TestRestore_Args(t *testing.T) {
	runner := &fakeRunner{}
	tool := newTool(runner, t)

	require.NoError(t, tool.Restore(context.Background(), "/tmp/restore.dump"))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "pg_restore", runner.calls[0].name)
	assert.Contains(t, runner.calls[0].args, "/tmp/restore.dump")
}

func TestExecRunner_StreamsStdout(t *testing.T) {
	runner := &postgres.ExecRunner{Logger: zerolog.New(zerolog.NewTestWriter(t))}

	var out bytes.Buffer
	err := runner.Run(context.Background(), &out, "sh", []string{"-c", "printf hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out.String())
}

func TestExecRunner_FailureIncludesStderr(t *testing.T) {
	runner := &postgres.ExecRunner{Logger: zerolog.New(zerolog.NewTestWriter(t))}

	err := runner.Run(context.Background(), io.Discard, "sh", []string{"-c", "echo boom >&2; exit 3"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestExecRunner_Timeout(t *testing.T) {
	runner := &postgres.ExecRunner{
		Logger:      zerolog.New(zerolog.NewTestWriter(t)),
		GracePeriod: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := runner.Run(ctx, io.Discard, "sleep", []string{"30"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must not wait for the tool")
}
