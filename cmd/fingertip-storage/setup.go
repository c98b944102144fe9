package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dennwc/fingertip/storage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "make the machines directory reflink-capable, mounting an XFS image if needed",
		Args:  cobra.NoArgs,
		RunE: setupCmd(func(ctx context.Context, s *storage.Setup, _ *pflag.FlagSet, args []string) error {
			out, err := s.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Println(s.Config.MachinesDir, out)
			return nil
		}),
	}
	Root.AddCommand(cmd)

	unmountCmd := &cobra.Command{
		Use:   "unmount",
		Short: "lazily unmount the XFS image from the machines directory",
		Args:  cobra.NoArgs,
		RunE: setupCmd(func(ctx context.Context, s *storage.Setup, _ *pflag.FlagSet, args []string) error {
			s.Unmount(ctx)
			return nil
		}),
	}
	Root.AddCommand(unmountCmd)

	schedCmd := &cobra.Command{
		Use:   "schedule-cleanup",
		Short: "install a systemd user timer running the periodic cleanup twice a day",
		Args:  cobra.NoArgs,
		RunE: setupCmd(func(ctx context.Context, s *storage.Setup, _ *pflag.FlagSet, args []string) error {
			s.ScheduleCleanup(ctx)
			return nil
		}),
	}
	Root.AddCommand(schedCmd)
}
