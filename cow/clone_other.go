//go:build !linux

package cow

import "context"

var _ Cloner = IoctlCloner{}

// IoctlCloner clones files in-process with the FICLONE ioctl.
// It is only available on Linux.
type IoctlCloner struct{}

func (IoctlCloner) Clone(ctx context.Context, dst, src string) error {
	return ErrNotSupported
}
