// Package sysexectest provides a scripted sysexec.Runner for tests.
package sysexectest

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/dennwc/fingertip/sysexec"
)

// Call is a single recorded tool invocation.
type Call struct {
	Name string
	Args []string
}

// String returns the command line of the call, joined with spaces.
func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Reply is a scripted outcome of a tool invocation.
type Reply struct {
	ExitCode int
	Stdout   string
	Stderr   string
	StartErr error
}

// Handler produces a reply for a call. It may also simulate side effects.
type Handler func(c Call) Reply

type handler struct {
	prefix string
	fnc    Handler
}

var _ sysexec.Runner = (*Runner)(nil)

// Runner records every call and replies according to registered handlers.
// Calls that match no handler succeed with an empty output.
type Runner struct {
	mu       sync.Mutex
	calls    []Call
	handlers []handler
	paths    map[string]string
}

// New creates an empty scripted runner. No executables are found in PATH by default.
func New() *Runner {
	return &Runner{paths: make(map[string]string)}
}

// On registers a handler for all calls with a command line starting with prefix.
// Handlers registered later take precedence.
func (r *Runner) On(prefix string, h Handler) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, handler{prefix: prefix, fnc: h})
	return r
}

// Fail makes all calls matching the prefix exit with a given status and stderr.
func (r *Runner) Fail(prefix string, code int, stderr string) *Runner {
	return r.On(prefix, func(Call) Reply {
		return Reply{ExitCode: code, Stderr: stderr}
	})
}

// InPath makes executables discoverable by LookPath.
func (r *Runner) InPath(names ...string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.paths[name] = "/usr/bin/" + name
	}
	return r
}

func (r *Runner) Run(ctx context.Context, name string, args ...string) *sysexec.Result {
	c := Call{Name: name, Args: append([]string(nil), args...)}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	var h Handler
	line := c.String()
	for i := len(r.handlers) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, r.handlers[i].prefix) {
			h = r.handlers[i].fnc
			break
		}
	}
	r.mu.Unlock()

	res := &sysexec.Result{Name: name, Args: c.Args}
	if h == nil {
		return res
	}
	rep := h(c)
	res.ExitCode = rep.ExitCode
	res.Stdout = []byte(rep.Stdout)
	res.Stderr = []byte(rep.Stderr)
	res.StartErr = rep.StartErr
	if rep.StartErr != nil {
		res.ExitCode = -1
	}
	return res
}

func (r *Runner) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Calls returns all recorded calls.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns command lines of all recorded calls.
func (r *Runner) Lines() []string {
	var out []string
	for _, c := range r.Calls() {
		out = append(out, c.String())
	}
	return out
}

// Matching returns recorded calls with a command line starting with prefix.
func (r *Runner) Matching(prefix string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if strings.HasPrefix(c.String(), prefix) {
			out = append(out, c)
		}
	}
	return out
}
