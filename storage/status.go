package storage

import (
	"context"
	"os"
	"time"

	"github.com/dennwc/fingertip/config"
	"github.com/dennwc/fingertip/xattr"
)

// Status describes the current state of the machines storage.
type Status struct {
	Policy      config.Policy
	MachinesDir string
	Mounted     bool
	Probe       ProbeResult

	BackingFile   string
	BackingExists bool
	// BackingSize is the apparent size of the image.
	BackingSize uint64
	// ConfiguredSize is the image size of the current config.
	ConfiguredSize uint64
	// RequestedSize and Created are read from the image tags, if any.
	RequestedSize string
	Created       time.Time
}

// Status inspects the machines directory and the backing image without changing them.
func (s *Setup) Status(ctx context.Context) (*Status, error) {
	c := s.Config
	st := &Status{
		Policy:      c.Policy,
		MachinesDir: c.MachinesDir,
		BackingFile: c.BackingFile(),
	}
	n, err := c.SizeBytes()
	if err != nil {
		return nil, err
	}
	st.ConfiguredSize = n
	if _, err := os.Stat(c.MachinesDir); err == nil {
		st.Probe = s.Prober.Probe(ctx, c.MachinesDir)
		if ok, err := s.Mounter.mounted(c.MachinesDir); err == nil {
			st.Mounted = ok
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	fi, err := os.Stat(st.BackingFile)
	if os.IsNotExist(err) {
		return st, nil
	} else if err != nil {
		return nil, err
	}
	st.BackingExists = true
	st.BackingSize = uint64(fi.Size())
	if v, err := xattr.GetString(st.BackingFile, attrSize); err == nil {
		st.RequestedSize = v
	}
	if t, err := xattr.GetTime(st.BackingFile, attrCreated); err == nil {
		st.Created = t
	}
	return st, nil
}
