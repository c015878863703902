// SPDX-License-Identifier: MPL-2.0

// Package toolchain wraps cargo subprocess invocations. Every call blocks
// until the subprocess exits; the orchestrator is fully synchronous by
// design, so no timeouts or cancellation beyond the caller's context exist.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ErrUnavailable is returned when the cargo binary could not be launched at
// all, as opposed to cargo running and reporting a failure.
var ErrUnavailable = errors.New("cannot start cargo")

// ExitError is returned when cargo ran but exited non-zero.
type ExitError struct {
	// Subcommand is the cargo subcommand that failed ("rustc", "test", ...).
	Subcommand string
	// Code is the subprocess exit code.
	Code int
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	return fmt.Sprintf("cargo %s failed with exit status %d", e.Subcommand, e.Code)
}

// Cargo invokes the external build toolchain.
type Cargo struct {
	// Bin is the toolchain binary, looked up on PATH when not absolute.
	Bin string
	// Stdout and Stderr receive the subprocess output for Run. They default
	// to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Cargo invoking the given binary, or "cargo" when empty.
func New(bin string) *Cargo {
	if bin == "" {
		bin = "cargo"
	}
	return &Cargo{Bin: bin}
}

// Run executes "cargo <sub> <args...>" with dir as working directory,
// streaming output through. It returns ErrUnavailable when the process could
// not be launched and an *ExitError when it exited non-zero.
func (c *Cargo) Run(ctx context.Context, dir, sub string, args ...string) error {
	cmd := exec.CommandContext(ctx, c.Bin, append([]string{sub}, args...)...)
	cmd.Dir = dir
	cmd.Stdout = c.stdout()
	cmd.Stderr = c.stderr()
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Subcommand: sub, Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Capture executes "cargo <sub> <args...>" with dir as working directory and
// returns its standard output. A non-zero exit still returns the captured
// output alongside the *ExitError, so callers consuming machine-readable
// output can decide whether partial output is usable.
func (c *Cargo) Capture(ctx context.Context, dir, sub string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Bin, append([]string{sub}, args...)...)
	cmd.Dir = dir

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = c.stderr()

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), &ExitError{Subcommand: sub, Code: exitErr.ExitCode()}
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return stdout.Bytes(), nil
}

func (c *Cargo) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

func (c *Cargo) stderr() io.Writer {
	if c.Stderr != nil {
		return c.Stderr
	}
	return os.Stderr
}
