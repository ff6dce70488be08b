// Command tbsynth generates self-checking Verilog testbenches for a folder
// of problems and scores them against the problems' mutants.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"tbsynth/internal/config"
	"tbsynth/internal/metrics"
)

// app is the state shared by every subcommand.
type app struct {
	cfgPath     string
	metricsFile string
	quiet       bool

	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Metrics
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "tbsynth",
		Short:         "Synthesize and score self-checking Verilog testbenches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			out := cmd.ErrOrStderr()
			if a.quiet {
				out = io.Discard
			}
			a.logger = log.New(out, "tbsynth: ", log.LstdFlags)
			a.metrics = metrics.New()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.metricsFile == "" || a.metrics == nil {
				return nil
			}
			return prometheus.WriteToTextfile(a.metricsFile, a.metrics.Registry)
		},
	}
	root.SetOut(stdout)
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "YAML config file (default "+config.DefaultFile+" when present)")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "suppress progress logging")

	root.AddCommand(newGenerateCmd(a), newEvaluateCmd(a), newDummyCmd(a))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalf("tbsynth: %v", err)
	}
}
