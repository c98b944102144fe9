package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dennwc/fingertip/storage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "show the state of the machines storage",
		Args:  cobra.NoArgs,
		RunE: setupCmd(func(ctx context.Context, s *storage.Setup, _ *pflag.FlagSet, args []string) error {
			st, err := s.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Println("policy:  ", st.Policy)
			fmt.Println("machines:", st.MachinesDir)
			fmt.Println("reflink: ", st.Probe)
			fmt.Println("mounted: ", st.Mounted)
			if !st.BackingExists {
				fmt.Println("image:   ", st.BackingFile, "(not created, size", humanize.IBytes(st.ConfiguredSize)+")")
				return nil
			}
			fmt.Println("image:   ", st.BackingFile, humanize.IBytes(st.BackingSize))
			if st.BackingSize != st.ConfiguredSize {
				fmt.Println("configured:", humanize.IBytes(st.ConfiguredSize), "(applies to new images only)")
			}
			if st.RequestedSize != "" {
				fmt.Println("requested:", st.RequestedSize)
			}
			if !st.Created.IsZero() {
				fmt.Println("created: ", humanize.Time(st.Created))
			}
			return nil
		}),
	}
	Root.AddCommand(cmd)
}
