package storage

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dennwc/fingertip/sysexec"
)

const (
	// DefaultExecutable is the tool invoked by the cleanup timer.
	DefaultExecutable = "fingertip"
	// CleanupUnit is a name of the transient systemd unit running the cleanup.
	CleanupUnit = "fingertip-cleanup"
	// CleanupCalendar runs the cleanup twice a day.
	CleanupCalendar = "*-*-* 08,20:00:00"
)

type guardResult int

const (
	guardProceed guardResult = iota
	guardStopWarn
	guardStopQuiet
)

// guard is a single precondition of the scheduling. Failed guards stop the scheduling with a message.
type guard func(ctx context.Context) (guardResult, string)

// Scheduler registers a recurring systemd user timer that reclaims space.
type Scheduler struct {
	Runner sysexec.Runner
	Log    logrus.FieldLogger
	// Executable invoked by the timer. Defaults to DefaultExecutable.
	Executable string
}

func (s *Scheduler) runner() sysexec.Runner {
	if s.Runner == nil {
		return sysexec.Exec{}
	}
	return s.Runner
}

func (s *Scheduler) executable() string {
	if s.Executable == "" {
		return DefaultExecutable
	}
	return s.Executable
}

// Schedule installs the cleanup timer unless it is already active.
// It never fails: problems are logged and the scheduling is skipped.
// It reports if the timer was registered by this call.
func (s *Scheduler) Schedule(ctx context.Context) bool {
	log := logger(s.Log).WithField("unit", CleanupUnit)
	for _, g := range []guard{s.executableInPath, s.systemdAvailable, s.timerInactive} {
		switch res, msg := g(ctx); res {
		case guardStopWarn:
			log.Warn(msg)
			return false
		case guardStopQuiet:
			log.Debug(msg)
			return false
		}
	}
	log.Info("scheduling cleanup twice a day at 8AM and 8PM")
	res := s.runner().Run(ctx, "systemd-run",
		"--unit="+CleanupUnit, "--user",
		"--on-calendar="+CleanupCalendar,
		s.executable(), "cleanup", "periodic",
	)
	if err := res.Err(); err != nil {
		log.WithError(err).Warnf("failed to schedule automatic cleanup; run `%s cleanup periodic` manually", s.executable())
		return false
	}
	return true
}

func (s *Scheduler) executableInPath(ctx context.Context) (guardResult, string) {
	if _, err := s.runner().LookPath(s.executable()); err != nil {
		return guardStopQuiet, "no `" + s.executable() + "` found in PATH; not scheduling automatic cleanup"
	}
	return guardProceed, ""
}

func (s *Scheduler) systemdAvailable(ctx context.Context) (guardResult, string) {
	r := s.runner()
	for _, name := range []string{"systemd-run", "systemctl"} {
		if _, err := r.LookPath(name); err != nil {
			return guardStopWarn, "it looks like systemd is not available; no cleanup is scheduled! " +
				"If you are running out of disk space, run `" + s.executable() + " cleanup periodic` manually"
		}
	}
	return guardProceed, ""
}

// timerInactive stops the scheduling if the timer is already running.
// A non-zero status of the query means the timer is inactive or missing, so it is not an error.
func (s *Scheduler) timerInactive(ctx context.Context) (guardResult, string) {
	res := s.runner().Run(ctx, "systemctl", "--user", "is-active", "--quiet", CleanupUnit+".timer")
	if res.Success() {
		return guardStopQuiet, "the systemd timer handling cleanup is already installed and running"
	}
	return guardProceed, ""
}
