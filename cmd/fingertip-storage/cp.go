package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dennwc/fingertip/cow"
	"github.com/dennwc/fingertip/sysexec"
)

func init() {
	var mode string
	cmd := &cobra.Command{
		Use:   "cp <src> <dst>",
		Short: "copy a file reusing underlying FS blocks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, dst := args[0], args[1]
			r := sysexec.Exec{}
			switch mode {
			case "always":
				return cow.Always(ctx, r, dst, src)
			case "auto":
				return cow.Auto(ctx, r, dst, src)
			}
			return fmt.Errorf("unknown reflink mode: %q", mode)
		},
	}
	cmd.Flags().StringVar(&mode, "reflink", "always", "reflink mode: always (fail if blocks cannot be shared) or auto")
	Root.AddCommand(cmd)
}
