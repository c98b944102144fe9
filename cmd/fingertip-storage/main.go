package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dennwc/fingertip/config"
	"github.com/dennwc/fingertip/storage"
	"github.com/dennwc/fingertip/sysexec"
)

// exitCancelled is returned when the user cancels the setup, to distinguish it from failures.
const exitCancelled = 2

var (
	Root = &cobra.Command{
		Use:           "fingertip-storage [command]",
		Short:         "Tools to manage reflink-capable storage for fingertip machines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(lvl)
			return nil
		},
	}
	logLevel string
)

func init() {
	flags := Root.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	config.RegisterFlags(flags)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Root.ExecuteContext(ctx)
	cancel()
	code := exitCode(err)
	if code != 0 && code != exitCancelled {
		logrus.Error(err)
	}
	os.Exit(code)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, storage.ErrCancelled):
		return exitCancelled
	}
	return 1
}

type setupFunc func(ctx context.Context, s *storage.Setup, flags *pflag.FlagSet, args []string) error

// openSetup loads the config from the environment and flags, and creates a storage setup.
func openSetup(flags *pflag.FlagSet) (*storage.Setup, error) {
	conf, err := config.Load(os.LookupEnv, flags)
	if err != nil {
		return nil, err
	}
	p := storage.NewTermPrompter(os.Stdin, os.Stderr)
	return storage.New(conf, sysexec.Exec{}, p, logrus.StandardLogger())
}

func setupCmd(fnc setupFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSetup(cmd.Flags())
		if err != nil {
			return err
		}
		return fnc(cmd.Context(), s, cmd.Flags(), args)
	}
}
