package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tbsynth/internal/artifact"
	"tbsynth/internal/problems"
)

func newDummyCmd(a *app) *cobra.Command {
	var problemsDir string
	cmd := &cobra.Command{
		Use:   "dummy",
		Short: "Write the always-passing baseline tb.v into every problem",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := problems.Discover(problemsDir)
			if err != nil {
				return err
			}
			store := artifact.NewDiskStore(problemsDir)
			for _, name := range names {
				if err := store.Put(cmd.Context(), name, problems.TestbenchFile, []byte(problems.DummyTestbench)); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d dummy testbenches\n", len(names))
			return nil
		},
	}
	cmd.Flags().StringVar(&problemsDir, "problems", "", "problems folder")
	_ = cmd.MarkFlagRequired("problems")
	return cmd
}
