package storage

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/dennwc/fingertip/cow"
)

// ProbeResult is an outcome of the reflink capability probe.
type ProbeResult int

const (
	// ProbeInconclusive means the probe failed for a reason unrelated to reflinks.
	ProbeInconclusive ProbeResult = iota
	// ProbeSupported means a reflink copy succeeded.
	ProbeSupported
	// ProbeUnsupported means the filesystem refused to clone the file.
	ProbeUnsupported
)

func (r ProbeResult) String() string {
	switch r {
	case ProbeSupported:
		return "supported"
	case ProbeUnsupported:
		return "unsupported"
	default:
		return "inconclusive"
	}
}

const probeData = "fingertip reflink probe\n"

// Prober checks if a directory supports reflink copies.
type Prober struct {
	// Cloner must fail instead of falling back to a full copy.
	Cloner cow.Cloner
	Log    logrus.FieldLogger
}

// Probe tries to clone a temporary file inside dir.
// Both temporary files are removed regardless of the result.
// An inconclusive result is reported with a single warning.
func (p *Prober) Probe(ctx context.Context, dir string) ProbeResult {
	log := logger(p.Log).WithField("dir", dir)
	err := p.probe(ctx, dir)
	switch {
	case err == nil:
		return ProbeSupported
	case errors.Is(err, cow.ErrNotSupported):
		log.WithError(err).Debug("reflink copy is not supported")
		return ProbeUnsupported
	}
	log.WithError(err).Warn("reflink support detection inconclusive, cache dir problems")
	return ProbeInconclusive
}

// IsSupported reports if reflink copies work in dir. Inconclusive results are treated as unsupported.
func (p *Prober) IsSupported(ctx context.Context, dir string) bool {
	return p.Probe(ctx, dir) == ProbeSupported
}

func (p *Prober) probe(ctx context.Context, dir string) error {
	f, err := os.CreateTemp(dir, ".reflink-probe-*")
	if err != nil {
		return err
	}
	src := f.Name()
	dst := src + "-reflink"
	defer removeFiles(src, dst)

	_, err = f.WriteString(probeData)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	cl := p.Cloner
	if cl == nil {
		cl = cow.CommandCloner{}
	}
	return cl.Clone(ctx, dst, src)
}

func removeFiles(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}

func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}
