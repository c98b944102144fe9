//go:build linux

package cow

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dennwc/ioctl"
	"golang.org/x/sys/unix"
)

var iocFICLONE = ioctl.IOW(0x94, 9, 4) // from linux/fs.h

func cloneFile(dst, src *os.File) error {
	return ioctl.Ioctl(dst, iocFICLONE, src.Fd())
}

var _ Cloner = IoctlCloner{}

// IoctlCloner clones files in-process with the FICLONE ioctl.
type IoctlCloner struct{}

func (IoctlCloner) Clone(ctx context.Context, dst, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sf.Close()
	st, err := sf.Stat()
	if err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, st.Mode().Perm())
	if err != nil {
		return err
	}
	if err = cloneFile(df, sf); err != nil {
		df.Close()
		os.Remove(dst)
		if cloneErrnoRejected(err) {
			return fmt.Errorf("%w: %v", ErrNotSupported, err)
		}
		return fmt.Errorf("ficlone %s: %w", dst, err)
	}
	if err = df.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// cloneErrnoRejected checks if FICLONE failed because the filesystem or the pair of files cannot share blocks.
func cloneErrnoRejected(err error) bool {
	for _, e := range []error{unix.EOPNOTSUPP, unix.EXDEV, unix.EINVAL, unix.ENOTTY} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
