package postgres

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Runner invokes an external tool, streaming its stdout into w. The context
// bounds the invocation; on cancellation the process gets a termination
// signal and a bounded grace period before it is killed.
type Runner interface {
	Run(ctx context.Context, w io.Writer, name string, args []string, env []string) error
}

const defaultGracePeriod = 10 * time.Second

// ExecRunner runs tools as subprocesses.
type ExecRunner struct {
	Logger zerolog.Logger
	// GracePeriod between SIGTERM and SIGKILL on cancellation.
	GracePeriod time.Duration
}

func (r *ExecRunner) Run(ctx context.Context, w io.Writer, name string, args []string, env []string) error {
	grace := r.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = w
	cmd.Env = append(os.Environ(), env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = grace

	r.Logger.Debug().Str("tool", name).Msg("running external tool")
	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled after %s: %w", name, time.Since(start).Round(time.Second), ctx.Err())
		}
		return fmt.Errorf("%s failed: %w: %s", name, err, stderrTail(&stderr))
	}
	return nil
}

func stderrTail(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}
