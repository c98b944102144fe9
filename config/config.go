// Package config holds the storage setup configuration of fingertip.
//
// Values are read from the environment and may be overridden by command line flags.
// A config is validated once and is not changed afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

const (
	EnvSetup     = "FINGERTIP_SETUP"
	EnvSetupSize = "FINGERTIP_SETUP_SIZE"
	EnvCacheDir  = "FINGERTIP_CACHE_DIR"
)

const (
	DefaultPolicy = PolicySuggest
	DefaultSize   = "25G"

	BackingFileName = "for-machines.xfs"
	MachinesDirName = "machines"
)

var (
	ErrInvalidPolicy = errors.New("invalid setup policy")
	ErrInvalidSize   = errors.New("invalid image size")
)

// Policy controls how much of the storage setup is automated.
type Policy string

const (
	// PolicyAuto provisions storage without asking.
	PolicyAuto = Policy("auto")
	// PolicySuggest asks the user before allocating or mounting anything.
	PolicySuggest = Policy("suggest")
	// PolicyNever skips the storage setup entirely.
	PolicyNever = Policy("never")
)

// ParsePolicy validates a policy name. Names must match exactly.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyAuto, PolicySuggest, PolicyNever:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q (expected auto, suggest or never)", ErrInvalidPolicy, s)
}

// Config stores the storage setup configuration.
type Config struct {
	// Policy of the setup.
	Policy Policy
	// Size of the backing image, with a unit suffix. Passed verbatim to fallocate.
	Size string
	// CacheDir is a fingertip cache directory that holds the backing image.
	CacheDir string
	// MachinesDir is a directory that must support reflinks.
	MachinesDir string
}

// BackingFile returns a path of the reflink-capable filesystem image.
func (c *Config) BackingFile() string {
	return filepath.Join(c.CacheDir, BackingFileName)
}

// SizeBytes returns the image size in bytes.
func (c *Config) SizeBytes() (uint64, error) {
	return ParseSize(c.Size)
}

// ParseSize validates a human-readable size like "25G".
func ParseSize(s string) (uint64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSize, s, err)
	} else if n == 0 {
		return 0, fmt.Errorf("%w: %q: must be positive", ErrInvalidSize, s)
	}
	return n, nil
}

// Validate checks all the values of the config.
func (c *Config) Validate() error {
	if _, err := ParsePolicy(string(c.Policy)); err != nil {
		return err
	}
	if _, err := ParseSize(c.Size); err != nil {
		return err
	}
	if c.CacheDir == "" {
		return errors.New("cache directory is not set")
	}
	if c.MachinesDir == "" {
		return errors.New("machines directory is not set")
	}
	return nil
}

// DefaultCacheDir returns the fingertip directory inside the user cache dir.
func DefaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "fingertip"), nil
}

// FromEnv reads a config from environment variables, filling the defaults.
// The config is not validated.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	c := &Config{Policy: DefaultPolicy, Size: DefaultSize}
	if v, ok := lookup(EnvSetup); ok {
		c.Policy = Policy(v)
	}
	if v, ok := lookup(EnvSetupSize); ok && v != "" {
		c.Size = v
	}
	if v, ok := lookup(EnvCacheDir); ok && v != "" {
		c.CacheDir = v
	} else {
		dir, err := DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		c.CacheDir = dir
	}
	c.MachinesDir = filepath.Join(c.CacheDir, MachinesDirName)
	return c, nil
}

const (
	flagSetup    = "setup"
	flagSize     = "size"
	flagCacheDir = "cache-dir"
)

// RegisterFlags adds flags that override environment values.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(flagSetup, "", "storage setup policy: auto, suggest or never (env "+EnvSetup+")")
	fs.String(flagSize, "", "size of the reflink-capable image, e.g. 25G (env "+EnvSetupSize+")")
	fs.String(flagCacheDir, "", "fingertip cache directory (env "+EnvCacheDir+")")
}

// ApplyFlags overrides config values with the flags set explicitly by the user.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) {
	if fs == nil {
		return
	}
	if f := fs.Lookup(flagSetup); f != nil && f.Changed {
		c.Policy = Policy(f.Value.String())
	}
	if f := fs.Lookup(flagSize); f != nil && f.Changed {
		c.Size = f.Value.String()
	}
	if f := fs.Lookup(flagCacheDir); f != nil && f.Changed {
		c.CacheDir = f.Value.String()
		c.MachinesDir = filepath.Join(c.CacheDir, MachinesDirName)
	}
}

// Load reads a config from the environment, applies flag overrides and validates the result.
func Load(lookup func(string) (string, bool), fs *pflag.FlagSet) (*Config, error) {
	c, err := FromEnv(lookup)
	if err != nil {
		return nil, err
	}
	c.ApplyFlags(fs)
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
