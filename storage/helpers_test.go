package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/dennwc/fingertip/config"
	"github.com/dennwc/fingertip/sysexec/sysexectest"
)

const cpNotSupported = "cp: failed to clone 'a-reflink' from 'a': Operation not supported\n"

type scriptedPrompter struct {
	answers []string
	asked   [][]string
}

func (p *scriptedPrompter) Ask(ctx context.Context, question string, choices []string) (string, error) {
	p.asked = append(p.asked, choices)
	if len(p.answers) == 0 {
		return "", ErrNoAnswer
	}
	ans := p.answers[0]
	p.answers = p.answers[1:]
	return ans, nil
}

func newTestLogger() (*logrus.Logger, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

func countEntries(hook *logtest.Hook, lvl logrus.Level, substr string) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == lvl && strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}

type testEnv struct {
	conf   *config.Config
	run    *sysexectest.Runner
	prompt *scriptedPrompter
	hook   *logtest.Hook
	setup  *Setup
}

func newTestEnv(t *testing.T, policy config.Policy, answers ...string) *testEnv {
	dir := t.TempDir()
	conf := &config.Config{
		Policy:      policy,
		Size:        config.DefaultSize,
		CacheDir:    dir,
		MachinesDir: filepath.Join(dir, config.MachinesDirName),
	}
	run := sysexectest.New()
	log, hook := newTestLogger()
	p := &scriptedPrompter{answers: answers}
	s, err := New(conf, run, p, log)
	require.NoError(t, err)
	return &testEnv{conf: conf, run: run, prompt: p, hook: hook, setup: s}
}

// unsupported makes the reflink probe fail with a definite diagnostic.
func (e *testEnv) unsupported() *testEnv {
	e.run.Fail("cp --reflink=always", 1, cpNotSupported)
	return e
}
