package main

import (
	"github.com/spf13/cobra"

	"tbsynth/internal/evaluate"
	"tbsynth/internal/problems"
	"tbsynth/internal/validate"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var (
		problemsDir, answersDir string
		include                 []string
		parallel                int
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score every tb.v against its problem's mutants",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := problems.Discover(problemsDir)
			if err != nil {
				return err
			}
			t := a.cfg.Toolchain
			if len(include) == 0 {
				include = t.IncludeDirs
			}
			sim := &validate.Simulator{
				Compiler: &validate.Iverilog{
					Bin:         t.Iverilog,
					Flags:       t.Flags,
					IncludeDirs: include,
					Timeout:     t.CompileTimeout,
					Metrics:     a.metrics,
				},
				VVP:     t.VVP,
				Timeout: t.SimTimeout,
				Marker:  problems.PassMarker,
			}
			if parallel <= 0 {
				parallel = a.cfg.Parallel
			}
			ev := &evaluate.Evaluator{Runner: sim, Parallel: parallel, Logger: a.logger}
			rep, err := ev.Evaluate(cmd.Context(), problemsDir, answersDir, names)
			if err != nil {
				return err
			}
			return rep.Write(cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&problemsDir, "problems", "", "problems folder")
	f.StringVar(&answersDir, "answers", "", "answers folder")
	f.StringSliceVar(&include, "include", nil, "include paths passed to iverilog")
	f.IntVar(&parallel, "parallel", 0, "problems evaluated concurrently (default from config)")
	_ = cmd.MarkFlagRequired("problems")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}
