// Package sysexec runs external tools and reports their outcome as structured results,
// so callers can classify failures without inspecting processes directly.
package sysexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes external tools.
type Runner interface {
	// Run executes a tool and waits for it to exit.
	// It never returns nil; failures are described by the result.
	Run(ctx context.Context, name string, args ...string) *Result
	// LookPath searches for an executable in the PATH.
	LookPath(name string) (string, error)
}

// Result is an outcome of a single tool invocation.
type Result struct {
	Name     string
	Args     []string
	ExitCode int // -1 if the tool never started
	Stdout   []byte
	Stderr   []byte
	// StartErr is set if the tool could not be started or waited for.
	StartErr error
}

// Success reports if the tool exited with zero status.
func (r *Result) Success() bool {
	return r.StartErr == nil && r.ExitCode == 0
}

// Err returns a *ToolError describing the failure, or nil if the tool succeeded.
func (r *Result) Err() error {
	if r.Success() {
		return nil
	}
	return &ToolError{
		Name:     r.Name,
		Args:     r.Args,
		ExitCode: r.ExitCode,
		Stderr:   strings.TrimSpace(string(r.Stderr)),
		Err:      r.StartErr,
	}
}

// ToolError is returned when an external tool fails.
type ToolError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	cmd := strings.Join(append([]string{e.Name}, e.Args...), " ")
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", cmd, e.Err)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s: exit status %d: %s", cmd, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s: exit status %d", cmd, e.ExitCode)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

var _ Runner = Exec{}

// Exec is a Runner that spawns real processes.
type Exec struct{}

func (Exec) Run(ctx context.Context, name string, args ...string) *Result {
	res := &Result{Name: name, Args: args}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res.Stdout, res.Stderr = stdout.Bytes(), stderr.Bytes()

	var eerr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &eerr) && eerr.Exited():
		res.ExitCode = eerr.ExitCode()
	default:
		res.ExitCode = -1
		res.StartErr = err
	}
	return res
}

func (Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Check runs a tool and returns an error if it did not succeed.
func Check(ctx context.Context, r Runner, name string, args ...string) error {
	return r.Run(ctx, name, args...).Err()
}
