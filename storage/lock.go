package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const lockRetryInterval = 100 * time.Millisecond

// acquireLock takes an exclusive advisory lock on path, waiting until it is released by other processes.
func acquireLock(ctx context.Context, path string) (*flock.Flock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	} else if !locked {
		return nil, fmt.Errorf("acquiring lock %s: lock not acquired", path)
	}
	return fl, nil
}

// releaseLock unlocks and closes the lock. The lock file is left on disk,
// removing it could break a lock taken by another process in the meantime.
func releaseLock(log logrus.FieldLogger, fl *flock.Flock) {
	if err := fl.Close(); err != nil {
		log.WithError(err).WithField("path", fl.Path()).Debug("failed to release lock")
	}
}
