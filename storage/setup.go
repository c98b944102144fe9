package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dennwc/fingertip/config"
	"github.com/dennwc/fingertip/cow"
	"github.com/dennwc/fingertip/sysexec"
	"github.com/dennwc/fingertip/xattr"
)

// ErrCancelled is returned when the user refuses to continue the setup.
var ErrCancelled = errors.New("cancelled")

// Outcome is a terminal state of the storage setup.
type Outcome int

const (
	// Failed setup returns a non-nil error.
	Failed Outcome = iota
	// Disabled means the setup policy is "never".
	Disabled
	// Supported means the machines directory already supports reflinks.
	Supported
	// Provisioned means a reflink-capable image is mounted at the machines directory.
	Provisioned
	// Skipped means the user declined the setup.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Disabled:
		return "disabled"
	case Supported:
		return "supported"
	case Provisioned:
		return "provisioned"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

const (
	attrSize    = "size"
	attrCreated = "created"
)

// Setup makes the machines directory reflink-capable.
type Setup struct {
	Config      *config.Config
	Prober      *Prober
	Provisioner *Provisioner
	Mounter     *Mounter
	Scheduler   *Scheduler
	Prompter    Prompter
	Log         logrus.FieldLogger
}

// New creates a storage setup for a given config. The config is validated before anything else.
// All external tools are invoked through r.
func New(conf *config.Config, r sysexec.Runner, p Prompter, log logrus.FieldLogger) (*Setup, error) {
	if conf == nil {
		return nil, errors.New("config is not set")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		r = sysexec.Exec{}
	}
	log = logger(log)
	return &Setup{
		Config:      conf,
		Prober:      &Prober{Cloner: cow.CommandCloner{Runner: r}, Log: log},
		Provisioner: &Provisioner{Runner: r, Log: log},
		Mounter:     &Mounter{Runner: r, Log: log},
		Scheduler:   &Scheduler{Runner: r, Log: log},
		Prompter:    p,
		Log:         log,
	}, nil
}

// Run checks reflink support of the machines directory and, if needed, provisions and mounts
// a reflink-capable image, asking the user according to the setup policy.
// Cleanup is scheduled when the directory ends up supporting reflinks.
//
// ErrCancelled is returned if the user cancels the setup.
func (s *Setup) Run(ctx context.Context) (Outcome, error) {
	c := s.Config
	if err := c.Validate(); err != nil {
		return Failed, err
	}
	log := logger(s.Log)
	if c.Policy == config.PolicyNever {
		log.Debug("storage setup is disabled")
		return Disabled, nil
	}
	if err := os.MkdirAll(c.MachinesDir, 0755); err != nil {
		return Failed, err
	}
	if s.Prober.IsSupported(ctx, c.MachinesDir) {
		s.Scheduler.Schedule(ctx)
		return Supported, nil
	}
	log.Warnf("images directory %s lacks reflink support", c.MachinesDir)
	log.Warn("without it, fingertip will thrash and fill up your SSD in no time")

	backing := c.BackingFile()
	if _, err := os.Stat(backing); os.IsNotExist(err) {
		size := c.Size
		if c.Policy == config.PolicySuggest {
			var ok bool
			size, ok, err = s.askSize(ctx, backing)
			if err != nil {
				return Failed, err
			} else if !ok {
				return Skipped, nil
			}
		}
		if err = s.buildBackingFile(ctx, backing, size); err != nil {
			return Failed, err
		}
	} else if err != nil {
		return Failed, err
	}

	log.Infof("fingertip will now mount the XFS image at %s", backing)
	if c.Policy == config.PolicySuggest {
		ok, err := s.confirmMount(ctx)
		if err != nil {
			return Failed, err
		} else if !ok {
			log.Warn("skipping; fingertip will have no reflink superpowers")
			log.Warn("tell your SSD I'm sorry")
			return Skipped, nil
		}
	}
	if err := s.Mounter.MountSupportedFS(ctx, backing, c.MachinesDir); err != nil {
		return Failed, err
	}
	s.Scheduler.Schedule(ctx)
	return Provisioned, nil
}

func (s *Setup) prompter() (Prompter, error) {
	if s.Prompter == nil {
		return nil, errors.New("interactive setup requires a prompter; set " + config.EnvSetup + "=auto")
	}
	return s.Prompter, nil
}

// askSize asks for the image size. It returns false if the user wants to ignore the setup.
func (s *Setup) askSize(ctx context.Context, backing string) (string, bool, error) {
	p, err := s.prompter()
	if err != nil {
		return "", false, err
	}
	log := logger(s.Log)
	size := s.Config.Size
	question := fmt.Sprintf("would you like to allow fingertip to allocate %s at %s for a reflink-enabled XFS loop mount?\n"+
		"(set %s=\"auto\" environment variable to do it automatically)", size, backing, config.EnvSetup)
	for {
		ans, err := p.Ask(ctx, question, []string{size, "different size", "cancel", "ignore"})
		if err != nil {
			return "", false, err
		}
		switch ans {
		case "cancel":
			log.Error("cancelled")
			return "", false, ErrCancelled
		case "ignore":
			return "", false, nil
		case "":
			return size, true, nil
		}
		if _, err := config.ParseSize(ans); err != nil {
			log.WithError(err).Warn("cannot use this size, try again")
			continue
		}
		return ans, true, nil
	}
}

// confirmMount asks if the image should be mounted. It returns false if the user wants to skip it.
func (s *Setup) confirmMount(ctx context.Context) (bool, error) {
	p, err := s.prompter()
	if err != nil {
		return false, err
	}
	ans, err := p.Ask(ctx, "", []string{"ok", "skip", "cancel"})
	if err != nil {
		return false, err
	}
	switch ans {
	case "", "ok":
		return true, nil
	case "skip":
		return false, nil
	}
	logger(s.Log).Error("cancelled")
	return false, ErrCancelled
}

// buildBackingFile creates the image under a temporary name and renames it only on success.
// Concurrent runs are serialized with a lock file next to the image.
func (s *Setup) buildBackingFile(ctx context.Context, backing, size string) error {
	log := logger(s.Log)
	dir := filepath.Dir(backing)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	fl, err := acquireLock(ctx, backing+".lock")
	if err != nil {
		return err
	}
	defer releaseLock(log, fl)

	if _, err := os.Stat(backing); err == nil {
		log.WithField("file", backing).Debug("image was created by another process")
		return nil
	}
	f, err := os.CreateTemp(dir, "."+config.BackingFileName+"-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	f.Close()
	if err = s.Provisioner.CreateSupportedFS(ctx, tmp, size); err != nil {
		os.Remove(tmp)
		return err
	}
	if err = tagBackingFile(tmp, size); errors.Is(err, xattr.ErrNotSupported) {
		log.WithError(err).Debug("cannot tag the image")
	} else if err != nil {
		log.WithError(err).Warn("cannot tag the image")
	}
	if err = os.Rename(tmp, backing); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func tagBackingFile(path, size string) error {
	if err := xattr.SetString(path, attrSize, size); err != nil {
		return err
	}
	return xattr.SetTime(path, attrCreated, time.Now())
}

// Unmount lazily unmounts the machines directory.
func (s *Setup) Unmount(ctx context.Context) {
	s.Mounter.Unmount(ctx, s.Config.MachinesDir)
}

// ScheduleCleanup registers the periodic cleanup timer, see Scheduler.Schedule.
func (s *Setup) ScheduleCleanup(ctx context.Context) bool {
	return s.Scheduler.Schedule(ctx)
}
