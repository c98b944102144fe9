package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/moby/sys/mountinfo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/dennwc/fingertip/sysexec"
)

// ErrOwnershipMismatch is returned when the mount point cannot be given back to its owner.
var ErrOwnershipMismatch = errors.New("mount point ownership mismatch")

// Owner is a user and group owning a file.
type Owner struct {
	UID, GID int
}

func (o Owner) String() string {
	return strconv.Itoa(o.UID) + ":" + strconv.Itoa(o.GID)
}

// StatOwner returns the owner of a file.
func StatOwner(path string) (Owner, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Owner{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return Owner{UID: int(st.Uid), GID: int(st.Gid)}, nil
}

// Mounter loop-mounts filesystem images with elevated privileges.
type Mounter struct {
	Runner sysexec.Runner
	Log    logrus.FieldLogger
	// StatOwner overrides the owner lookup. Defaults to StatOwner.
	StatOwner func(path string) (Owner, error)
	// Mounted overrides the mount point check. Defaults to mountinfo.Mounted.
	Mounted func(path string) (bool, error)
}

func (m *Mounter) runner() sysexec.Runner {
	if m.Runner == nil {
		return sysexec.Exec{}
	}
	return m.Runner
}

func (m *Mounter) owner(path string) (Owner, error) {
	if m.StatOwner != nil {
		return m.StatOwner(path)
	}
	return StatOwner(path)
}

func (m *Mounter) mounted(path string) (bool, error) {
	if m.Mounted != nil {
		return m.Mounted(path)
	}
	return mountinfo.Mounted(path)
}

// MountSupportedFS mounts file at target. Ownership of target is the same after the mount as it was before.
func (m *Mounter) MountSupportedFS(ctx context.Context, file, target string) error {
	log := logger(m.Log).WithFields(logrus.Fields{"file": file, "target": target})
	log.Info("mounting a reflink-supported filesystem for image storage...")
	want, err := m.owner(target)
	if err != nil {
		return err
	}
	r := m.runner()
	if err = sysexec.Check(ctx, r, "sudo", "mount", "-o", "loop", file, target); err != nil {
		return fmt.Errorf("mount image: %w", err)
	}
	got, err := m.owner(target)
	if err != nil {
		return err
	}
	if got == want {
		return nil
	}
	log.Debugf("fixing owner:group (%v)", want)
	if err = sysexec.Check(ctx, r, "sudo", "chown", want.String(), target); err != nil {
		return fmt.Errorf("fix mount point owner: %w", err)
	}
	got, err = m.owner(target)
	if err != nil {
		return err
	} else if got != want {
		return fmt.Errorf("%w: %s is owned by %v, expected %v", ErrOwnershipMismatch, target, got, want)
	}
	return nil
}

// Unmount lazily unmounts target. The unmount is attempted even if target is not a mount point.
// Failures are logged, since a busy mount may be released later.
func (m *Mounter) Unmount(ctx context.Context, target string) {
	log := logger(m.Log).WithField("target", target)
	log.Infof("unmounting %s ...", target)
	if ok, err := m.mounted(target); err != nil {
		log.WithError(err).Debug("cannot check the mount point")
	} else if !ok {
		log.Debug("not a mount point")
	}
	if err := m.runner().Run(ctx, "sudo", "umount", "-l", target).Err(); err != nil {
		log.WithError(err).Warn("unmount failed; the directory may be busy, try again later")
		return
	}
	log.Info("unmounted")
}
