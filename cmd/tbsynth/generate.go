package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tbsynth/internal/artifact"
	"tbsynth/internal/llm"
	"tbsynth/internal/loop"
	"tbsynth/internal/problems"
	"tbsynth/internal/testbench"
	"tbsynth/internal/validate"
)

const (
	failedFile     = "tb.failed.v"
	diagnosticFile = "tb.diagnostic.txt"
)

type generateOpts struct {
	problemsDir string
	only        []string
	parallel    int
	transcripts bool
	history     bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var o generateOpts
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a tb.v for every problem",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd.Context(), cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.problemsDir, "problems", "", "problems folder")
	f.StringSliceVar(&o.only, "only", nil, "restrict to these problem names")
	f.IntVar(&o.parallel, "parallel", 0, "problems processed concurrently (default from config)")
	f.BoolVar(&o.transcripts, "transcripts", false, "store every oracle exchange next to the testbench")
	f.BoolVar(&o.history, "history", false, "store every validated testbench revision")
	_ = cmd.MarkFlagRequired("problems")
	return cmd
}

// summary counts run outcomes across problems.
type summary struct {
	mu                   sync.Mutex
	done, gaveUp, failed []string
}

func (s *summary) add(list *[]string, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*list = append(*list, name)
}

func (a *app) generate(ctx context.Context, cmd *cobra.Command, o generateOpts) error {
	names, err := problems.Discover(o.problemsDir)
	if err != nil {
		return err
	}
	if names, err = problems.Filter(names, o.only); err != nil {
		return err
	}
	store, err := artifact.Open(ctx, a.cfg.Store(o.problemsDir))
	if err != nil {
		return err
	}
	defer func() {
		if err := artifact.Close(store); err != nil {
			a.logger.Printf("close artifact store: %v", err)
		}
	}()
	oracle, err := a.buildOracle(ctx)
	if err != nil {
		return err
	}
	defer oracle.Close()

	validator, err := a.validator()
	if err != nil {
		return err
	}
	gen := testbench.NewGenerator(oracle)
	if a.cfg.Loop.LegacyExtract {
		gen.Extract = testbench.LegacyExtract
	}
	ctrl := &loop.Controller{
		Oracle:            gen,
		Validator:         validator,
		Contract:          testbench.DefaultContract,
		MaxIterations:     a.cfg.Loop.MaxIterations,
		SkipContractCheck: a.cfg.Loop.SkipContractCheck,
		Logger:            a.logger,
		Metrics:           a.metrics,
	}

	parallel := o.parallel
	if parallel <= 0 {
		parallel = a.cfg.Parallel
	}
	var sum summary
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, name := range names {
		g.Go(func() error {
			err := a.generateOne(ctx, ctrl, store, o, name, &sum)
			if err == nil {
				return nil
			}
			// A missing toolchain fails every problem the same way.
			if errors.Is(err, validate.ErrLaunch) {
				return fmt.Errorf("%s: %w", name, err)
			}
			a.logger.Printf("%s: %v", name, err)
			sum.add(&sum.failed, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "generated %d/%d testbenches (%d gave up, %d errors)\n",
		len(sum.done), len(names), len(sum.gaveUp), len(sum.failed))
	if len(sum.failed) > 0 {
		return fmt.Errorf("%d problem(s) failed: %v", len(sum.failed), sum.failed)
	}
	return nil
}

func (a *app) generateOne(ctx context.Context, ctrl *loop.Controller, store artifact.Store, o generateOpts, name string, sum *summary) error {
	files, err := problems.Load(filepath.Join(o.problemsDir, name))
	if err != nil {
		return err
	}
	in, err := loop.InputFromFiles(name, files)
	if err != nil {
		return err
	}

	var tr *transcript
	if o.transcripts {
		tr = &transcript{}
		ctx = llm.WithPromptHook(ctx, tr)
	}
	var (
		mu        sync.Mutex
		revisions []loop.Event
	)
	c := *ctrl
	if o.history {
		c.Observer = func(e loop.Event) {
			if e.State == loop.Validating {
				mu.Lock()
				revisions = append(revisions, e)
				mu.Unlock()
			}
		}
	}

	started := time.Now()
	out, err := c.Run(ctx, in)
	if err != nil {
		return err
	}

	switch out.State {
	case loop.Done:
		if err := store.Put(ctx, name, problems.TestbenchFile, []byte(out.Artifact)); err != nil {
			return err
		}
		sum.add(&sum.done, name)
		a.logger.Printf("%s: testbench accepted after %d validation(s)", name, out.Iterations)
	case loop.GaveUp:
		if err := store.Put(ctx, name, failedFile, []byte(out.Artifact)); err != nil {
			return err
		}
		if err := store.Put(ctx, name, diagnosticFile, []byte(out.LastDiagnostic)); err != nil {
			return err
		}
		sum.add(&sum.gaveUp, name)
		a.logger.Printf("%s: %v", name, out.Err())
	}

	if tr != nil {
		if err := store.Put(ctx, name, "runs/"+out.RunID+"/transcript.md", tr.Bytes()); err != nil {
			return err
		}
	}
	for _, e := range revisions {
		p := fmt.Sprintf("runs/%s/iteration-%02d.v", out.RunID, e.Iteration+1)
		if err := store.Put(ctx, name, p, []byte(e.Artifact)); err != nil {
			return err
		}
	}
	if rec, ok := store.(artifact.RunRecorder); ok {
		return rec.RecordRun(ctx, artifact.RunRecord{
			RunID:          out.RunID,
			Problem:        name,
			State:          out.State.String(),
			Iterations:     out.Iterations,
			LastDiagnostic: out.LastDiagnostic,
			StartedAt:      started,
			FinishedAt:     time.Now(),
		})
	}
	return nil
}

// validator compiles with iverilog behind a verdict cache.
func (a *app) validator() (validate.Validator, error) {
	t := a.cfg.Toolchain
	iv := &validate.Iverilog{
		Bin:         t.Iverilog,
		Flags:       t.Flags,
		IncludeDirs: t.IncludeDirs,
		Timeout:     t.CompileTimeout,
		Logger:      a.logger,
		Metrics:     a.metrics,
	}
	cached, err := validate.NewCached(iv, t.CacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}
