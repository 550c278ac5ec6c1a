package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// DefaultGracePeriod is the wait between SIGTERM and SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Command describes one invocation.
type Command struct {
	// Binary is an executable path or a name looked up on PATH.
	Binary string
	Args   []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the inherited environment as key=value pairs.
	Env         []string
	GracePeriod time.Duration
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is -1 when the process never started or was killed.
	ExitCode int
	Duration time.Duration
}

// Output returns stderr when it is non-empty, otherwise stdout. Tools like
// ffmpeg report failures on stderr.
func (r *Result) Output() []byte {
	if r == nil {
		return nil
	}
	if len(bytes.TrimSpace(r.Stderr)) > 0 {
		return r.Stderr
	}
	return r.Stdout
}

// Available reports whether binary resolves to an executable.
func Available(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}

// Run executes cmd and waits for it. The Result is returned even on error
// so callers can log what the tool printed.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}
	grace := cmd.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // running configured tools is the point
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = grace

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("process: %s killed: %w", cmd.Binary, ctx.Err())
		}
		return res, fmt.Errorf("process: %s exit code %d: %w", cmd.Binary, res.ExitCode, err)
	}
	return res, nil
}
