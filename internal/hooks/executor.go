// Package hooks runs operator-configured shell commands when schedules
// change status on a board.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Timeouts for hook commands. Zero or negative means DefaultTimeout.
const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 5 * time.Minute
)

// waitDelay bounds how long output pipes stay open after the shell is
// killed, in case a background child still holds them.
const waitDelay = time.Second

// Result is the outcome of one hook run. Output is stdout, or stderr when
// stdout is empty, trimmed.
type Result struct {
	Output   string
	ExitCode int
	Duration time.Duration
	Err      error
}

// Execute runs command with "sh -c", adding env to the inherited
// environment.
func Execute(ctx context.Context, command string, timeout time.Duration, env map[string]string) Result {
	timeout = min(max(timeout, 0), MaxTimeout)
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command) //nolint:gosec // operator-configured
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{Duration: time.Since(start), Err: err}

	var exit *exec.ExitError
	if errors.As(err, &exit) {
		res.ExitCode = exit.ExitCode()
	}
	if ctx.Err() != nil {
		res.Err = ctx.Err()
	}
	res.Output = strings.TrimSpace(stdout.String())
	if res.Output == "" {
		res.Output = strings.TrimSpace(stderr.String())
	}
	return res
}
