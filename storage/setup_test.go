package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dennwc/fingertip/config"
	"github.com/dennwc/fingertip/sysexec"
	"github.com/dennwc/fingertip/sysexec/sysexectest"
)

func TestSetupInvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	conf := &config.Config{
		Policy:      "sometimes",
		Size:        config.DefaultSize,
		CacheDir:    dir,
		MachinesDir: filepath.Join(dir, "machines"),
	}
	run := sysexectest.New()
	p := &scriptedPrompter{}

	_, err := New(conf, run, p, nil)
	require.True(t, errors.Is(err, config.ErrInvalidPolicy))

	s := &Setup{Config: conf, Prompter: p}
	out, err := s.Run(context.Background())
	require.True(t, errors.Is(err, config.ErrInvalidPolicy))
	require.Equal(t, Failed, out)

	require.Empty(t, run.Calls())
	require.Empty(t, p.asked)
	_, err = os.Stat(conf.MachinesDir)
	require.True(t, os.IsNotExist(err))
}

func TestSetupPaddedNeverPolicy(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{
		config.EnvSetup:    "never ",
		config.EnvCacheDir: dir,
	}
	_, err := config.Load(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}, nil)
	require.True(t, errors.Is(err, config.ErrInvalidPolicy))

	e := newTestEnv(t, config.PolicyNever).unsupported()
	e.conf.Policy = "never "
	out, err := e.setup.Run(context.Background())
	require.True(t, errors.Is(err, config.ErrInvalidPolicy))
	require.Equal(t, Failed, out)
	require.Empty(t, e.run.Calls())
	require.Empty(t, e.prompt.asked)
}

func TestSetupNever(t *testing.T) {
	e := newTestEnv(t, config.PolicyNever)
	out, err := e.setup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Disabled, out)
	require.Empty(t, e.run.Calls())

	_, err = os.Stat(e.conf.MachinesDir)
	require.True(t, os.IsNotExist(err))
}

func TestSetupSupported(t *testing.T) {
	e := newTestEnv(t, config.PolicySuggest)
	e.run.InPath("fingertip", "systemd-run", "systemctl")

	out, err := e.setup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Supported, out)

	require.Empty(t, e.run.Matching("fallocate"))
	require.Empty(t, e.run.Matching("mkfs.xfs"))
	require.Empty(t, e.run.Matching("sudo"))
	require.Empty(t, e.prompt.asked)
	require.Len(t, e.run.Matching("systemctl --user is-active --quiet fingertip-cleanup.timer"), 1)

	fi, err := os.Stat(e.conf.MachinesDir)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestSetupAuto(t *testing.T) {
	e := newTestEnv(t, config.PolicyAuto).unsupported()

	out, err := e.setup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Provisioned, out)
	require.Empty(t, e.prompt.asked)

	backing := e.conf.BackingFile()
	_, err = os.Stat(backing)
	require.NoError(t, err)

	alloc := e.run.Matching("fallocate")
	require.Len(t, alloc, 1)
	tmp := alloc[0].Args[2]
	require.Equal(t, []string{"-l", "25G", tmp}, alloc[0].Args)
	require.Equal(t, e.conf.CacheDir, filepath.Dir(tmp))
	require.NotEqual(t, backing, tmp)

	require.Equal(t, []string{
		"fallocate -l 25G " + tmp,
		"mkfs.xfs -m reflink=1 " + tmp,
		"sudo mount -o loop " + backing + " " + e.conf.MachinesDir,
	}, e.run.Lines()[1:])
}

func TestSetupInconclusiveProvisions(t *testing.T) {
	e := newTestEnv(t, config.PolicyAuto)
	e.run.Fail("cp --reflink=always", 1, "cp: cannot stat: Input/output error\n")

	out, err := e.setup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Provisioned, out)
	require.Equal(t, 1, countEntries(e.hook, logrus.WarnLevel, "inconclusive"))
	require.Len(t, e.run.Matching("mkfs.xfs"), 1)
}

func TestSetupSuggestCancel(t *testing.T) {
	e := newTestEnv(t, config.PolicySuggest, "cancel").unsupported()

	out, err := e.setup.Run(context.Background())
	require.True(t, errors.Is(err, ErrCancelled))
	require.Equal(t, Failed, out)

	_, err = os.Stat(e.conf.BackingFile())
	require.True(t, os.IsNotExist(err))
	require.Empty(t, e.run.Matching("fallocate"))
	require.Len(t, e.prompt.asked, 1)
	require.Equal(t, []string{"25G", "different size", "cancel", "ignore"}, e.prompt.asked[0])
}

func TestSetupSuggestIgnore(t *testing.T) {
	e := newTestEnv(t, config.PolicySuggest, "ignore").unsupported()
	e.run.InPath("fingertip", "systemd-run", "systemctl")

	out, err := e.setup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Skipped, out)

	_, err = os.Stat(e.conf.BackingFile())
	require.True(t, os.IsNotExist(err))
	require.Empty(t, e.run.Matching("fallocate"))
	require.Empty(t, e.run.Matching("sudo"))
	require.Empty(t, e.run.Matching("systemctl"))
}

func TestSetupSuggestDefault(t *testing.T) {
	e := newTestEnv(t, config.PolicySuggest, "", "").unsupported()

	out, err := e.setup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Provisioned, out)
	require.Len(t, e.prompt.asked, 2)
	require.Equal(t, []string{"ok", "skip", "cancel"}, e.prompt.asked[1])
	require.Equal(t, "25G", e.run.Matching("fallocate")[0].Args[1])
	require.Len(t, e.run.Matching("sudo mount"), 1)
}

func TestSetupSuggestDifferentSize(t *testing.T) {
	e := newTestEnv(t, config.PolicySuggest, "plenty", "10G", "ok").unsupported()

	out, err := e.setup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Provisioned, out)
	require.Len(t, e.prompt.asked, 3)

	alloc := e.run.Matching("fallocate")
	require.Len(t, alloc, 1)
	require.Equal(t, "10G", alloc[0].Args[1])
}

func TestSetupSuggestSkipMount(t *testing.T) {
	e := newTestEnv(t, config.PolicySuggest, "", "skip").unsupported()
	e.run.InPath("fingertip", "systemd-run", "systemctl")

	out, err := e.setup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Skipped, out)

	_, err = os.Stat(e.conf.BackingFile())
	require.NoError(t, err, "image is kept for the next run")
	require.Empty(t, e.run.Matching("sudo"))
	require.Empty(t, e.run.Matching("systemctl"))
	require.Equal(t, 1, countEntries(e.hook, logrus.WarnLevel, "no reflink superpowers"))
}

func TestSetupSuggestCancelMount(t *testing.T) {
	e := newTestEnv(t, config.PolicySuggest, "", "nope").unsupported()

	out, err := e.setup.Run(context.Background())
	require.True(t, errors.Is(err, ErrCancelled))
	require.Equal(t, Failed, out)
	require.Empty(t, e.run.Matching("sudo"))
}

func TestSetupExistingImage(t *testing.T) {
	e := newTestEnv(t, config.PolicySuggest, "ok").unsupported()
	require.NoError(t, os.WriteFile(e.conf.BackingFile(), nil, 0644))

	out, err := e.setup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Provisioned, out)

	require.Len(t, e.prompt.asked, 1)
	require.Equal(t, []string{"ok", "skip", "cancel"}, e.prompt.asked[0])
	require.Empty(t, e.run.Matching("fallocate"))
	require.Len(t, e.run.Matching("sudo mount -o loop "+e.conf.BackingFile()), 1)
}

func TestSetupFormatFailure(t *testing.T) {
	e := newTestEnv(t, config.PolicyAuto).unsupported()
	e.run.InPath("fingertip", "systemd-run", "systemctl")
	e.run.Fail("mkfs.xfs", 1, "mkfs.xfs: unknown option -m reflink=1\n")

	out, err := e.setup.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, Failed, out)

	var terr *sysexec.ToolError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, "mkfs.xfs", terr.Name)

	_, err = os.Stat(e.conf.BackingFile())
	require.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(e.conf.CacheDir)
	require.NoError(t, err)
	for _, ent := range entries {
		require.False(t, strings.HasPrefix(ent.Name(), "."+config.BackingFileName+"-"), "temp image %s left", ent.Name())
	}
	require.Empty(t, e.run.Matching("sudo"))
	require.Empty(t, e.run.Matching("systemctl"))
}

func TestSetupMountFailure(t *testing.T) {
	e := newTestEnv(t, config.PolicyAuto).unsupported()
	e.run.InPath("fingertip", "systemd-run", "systemctl")
	e.run.Fail("sudo mount", 32, "mount: permission denied\n")

	out, err := e.setup.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, Failed, out)
	require.Empty(t, e.run.Matching("systemctl"))
}

func TestSetupSchedulesAfterMount(t *testing.T) {
	e := newTestEnv(t, config.PolicyAuto).unsupported()
	e.run.InPath("fingertip", "systemd-run", "systemctl")
	e.run.Fail("systemctl --user is-active", 3, "")

	out, err := e.setup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Provisioned, out)
	require.Len(t, e.run.Matching("systemd-run"), 1)
}

func TestSetupSuggestWithoutPrompter(t *testing.T) {
	e := newTestEnv(t, config.PolicySuggest).unsupported()
	e.setup.Prompter = nil

	out, err := e.setup.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, Failed, out)
	require.Empty(t, e.run.Matching("fallocate"))
}

func TestSetupNoAnswer(t *testing.T) {
	e := newTestEnv(t, config.PolicySuggest).unsupported()

	out, err := e.setup.Run(context.Background())
	require.True(t, errors.Is(err, ErrNoAnswer))
	require.Equal(t, Failed, out)
}

func TestSetupUnmount(t *testing.T) {
	e := newTestEnv(t, config.PolicyAuto)
	e.setup.Mounter.Mounted = func(string) (bool, error) { return true, nil }
	e.setup.Unmount(context.Background())
	require.Equal(t, []string{"sudo umount -l " + e.conf.MachinesDir}, e.run.Lines())
}
