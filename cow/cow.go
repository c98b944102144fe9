// Package cow provides copy-on-write functionality for well-known filesystems.
package cow

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dennwc/fingertip/sysexec"
)

var ErrNotSupported = errors.New("copy-on-write is not supported")

// Cloner makes a copy of src in dst, reusing underlying FS blocks.
// It must fail instead of falling back to a full copy.
type Cloner interface {
	Clone(ctx context.Context, dst, src string) error
}

// Always makes a copy of src in dst and fails if FS blocks cannot be shared.
func Always(ctx context.Context, r sysexec.Runner, dst, src string) error {
	return CommandCloner{Runner: r}.Clone(ctx, dst, src)
}

// Auto makes a copy of src in dst, reusing underlying FS blocks if possible.
func Auto(ctx context.Context, r sysexec.Runner, dst, src string) error {
	return sysexec.Check(ctx, runner(r), "cp", "--reflink=auto", src, dst)
}

var _ Cloner = CommandCloner{}

// CommandCloner clones files with cp --reflink=always.
type CommandCloner struct {
	Runner sysexec.Runner
}

func (c CommandCloner) Clone(ctx context.Context, dst, src string) error {
	res := runner(c.Runner).Run(ctx, "cp", "--reflink=always", src, dst)
	if res.Success() {
		return nil
	}
	if cloneRejected(res.Stderr) {
		return fmt.Errorf("%w: %w", ErrNotSupported, res.Err())
	}
	return res.Err()
}

// cloneRejected checks if cp diagnostics say that the filesystem refused to clone.
func cloneRejected(stderr []byte) bool {
	return bytes.Contains(stderr, []byte("failed to clone")) &&
		bytes.Contains(stderr, []byte("Operation not supported"))
}

func runner(r sysexec.Runner) sysexec.Runner {
	if r == nil {
		return sysexec.Exec{}
	}
	return r
}
