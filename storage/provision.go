package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dennwc/fingertip/sysexec"
)

// Provisioner creates filesystem images that support reflinks.
type Provisioner struct {
	Runner sysexec.Runner
	Log    logrus.FieldLogger
}

// CreateSupportedFS allocates size bytes for file and formats it as XFS with reflinks enabled.
// Size is passed to fallocate as is, so unit suffixes like "25G" are accepted.
func (p *Provisioner) CreateSupportedFS(ctx context.Context, file, size string) error {
	r := p.Runner
	if r == nil {
		r = sysexec.Exec{}
	}
	logger(p.Log).WithFields(logrus.Fields{"file": file, "size": size}).Info("creating a reflink-enabled XFS image")
	if err := sysexec.Check(ctx, r, "fallocate", "-l", size, file); err != nil {
		return fmt.Errorf("allocate image: %w", err)
	}
	if err := sysexec.Check(ctx, r, "mkfs.xfs", "-m", "reflink=1", file); err != nil {
		return fmt.Errorf("format image: %w", err)
	}
	return nil
}
