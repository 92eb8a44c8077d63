// Package exec runs external scanning tools as subprocesses with a
// bounded timeout and captured output. It is the single boundary
// between backend adapters and the tools they wrap: adapters hand it a
// command line, and get back exit code, stdout, stderr and wall time.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a tool invocation when the adapter does not
// configure its own limit. A scanner that has not finished after five
// minutes is killed and reported as timed out rather than blocking the
// whole orchestration.
const DefaultTimeout = 5 * time.Minute

// Config holds the configuration for one tool invocation.
type Config struct {
	// Command is the name or path of the tool binary (required).
	Command string

	// Args are the command-line arguments.
	Args []string

	// WorkDir is the working directory for the tool. Some backends
	// (npm audit) resolve their manifest relative to it.
	WorkDir string

	// Env specifies environment variables in "KEY=value" form.
	// If nil, the tool inherits the parent process environment.
	Env []string

	// Timeout bounds the invocation. Zero means DefaultTimeout.
	Timeout time.Duration

	// StdinData is piped to the tool's stdin when non-empty.
	StdinData []byte
}

// Result holds the outcome of one tool invocation.
type Result struct {
	// Stdout contains the captured standard output.
	Stdout []byte

	// Stderr contains the captured standard error.
	Stderr []byte

	// ExitCode is the process exit code. Scanners routinely exit
	// non-zero to signal "findings present", so a non-zero code is
	// data for the adapter's outcome table, not an error.
	ExitCode int

	// Duration is the elapsed wall time, including time spent before
	// a timeout kill.
	Duration time.Duration

	// TimedOut reports whether the invocation was killed by the
	// configured timeout.
	TimedOut bool
}

// Run executes a tool with the given configuration.
//
// Non-zero exit codes do not produce an error; the Result carries the
// code and the adapter decides what it means. Run returns an error only
// when the tool could not be executed at all (binary missing,
// permission denied), the context was cancelled, or the timeout fired.
// On timeout the returned Result has TimedOut set and the error message
// names the limit that was exceeded.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Command == "" {
		return nil, errors.New("command is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}
	if cfg.Env != nil {
		cmd.Env = cfg.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(cfg.StdinData) > 0 {
		cmd.Stdin = bytes.NewReader(cfg.StdinData)
	}

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			return result, fmt.Errorf("%s timed out after %v", cfg.Command, timeout)
		}
		if ctx.Err() == context.Canceled {
			return result, fmt.Errorf("%s cancelled: %w", cfg.Command, context.Canceled)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}

		return result, fmt.Errorf("failed to execute %s: %w", cfg.Command, err)
	}

	return result, nil
}

// BinaryExists checks if a tool binary exists in the system PATH.
func BinaryExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// BinaryPath returns the full path to a tool binary in the system PATH.
func BinaryPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("binary %q not found in PATH: %w", name, err)
	}
	return path, nil
}
