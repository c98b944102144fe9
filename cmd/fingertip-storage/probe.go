package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dennwc/fingertip/cow"
	"github.com/dennwc/fingertip/storage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "probe [dir]",
		Short: "check if a directory supports reflink copies (machines directory by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: setupCmd(func(ctx context.Context, s *storage.Setup, flags *pflag.FlagSet, args []string) error {
			dir := s.Config.MachinesDir
			if len(args) == 1 {
				dir = args[0]
			}
			p := s.Prober
			if native, _ := flags.GetBool("native"); native {
				p = &storage.Prober{Cloner: cow.IoctlCloner{}, Log: s.Log}
			}
			fmt.Println(dir, p.Probe(ctx, dir))
			return nil
		}),
	}
	cmd.Flags().Bool("native", false, "clone with the FICLONE ioctl instead of cp")
	Root.AddCommand(cmd)
}
