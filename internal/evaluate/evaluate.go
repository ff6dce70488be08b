// Package evaluate scores generated testbenches. Each testbench is
// simulated against every mutant of its problem; the mutants it passes are
// its guesses for the correct implementation.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"tbsynth/internal/problems"
	"tbsynth/internal/validate"
)

// Runner compiles and simulates a set of sources. *validate.Simulator
// implements it.
type Runner interface {
	Run(ctx context.Context, top string, sources ...string) (validate.SimResult, error)
}

// Score is the evaluation of one problem.
type Score struct {
	Problem   string
	Precision float64
	Mutants   int
	Positives int
	AnswerID  int
	Found     bool
	// Skipped problems have no answer and are excluded from the mean.
	Skipped bool
	Note    string
}

// Report collects scores in problem order.
type Report struct {
	Scores []Score
}

// Mean averages the precision of every scored problem.
func (r *Report) Mean() float64 {
	var sum float64
	n := 0
	for _, s := range r.Scores {
		if s.Skipped {
			continue
		}
		sum += s.Precision
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Write prints one line per problem followed by the mean.
func (r *Report) Write(w io.Writer) error {
	for _, s := range r.Scores {
		var err error
		switch {
		case s.Skipped:
			_, err = fmt.Fprintf(w, "%s: skipped (%s)\n", s.Problem, s.Note)
		case s.Note != "":
			_, err = fmt.Fprintf(w, "%s: %.2f (%s)\n", s.Problem, s.Precision, s.Note)
		default:
			_, err = fmt.Fprintf(w, "%s: %.2f (%d/%d mutants pass)\n", s.Problem, s.Precision, s.Positives, s.Mutants)
		}
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "mean precision: %.3f\n", r.Mean())
	return err
}

// Precision is 1/positives when the answer mutant is among the passing
// ones and 0 otherwise.
func Precision(passed map[int]bool, answer int) float64 {
	if !passed[answer] {
		return 0
	}
	n := 0
	for _, ok := range passed {
		if ok {
			n++
		}
	}
	return 1 / float64(n)
}

// Evaluator scores problem folders.
type Evaluator struct {
	Runner Runner
	// Parallel bounds concurrently evaluated problems; <= 0 means 1.
	Parallel int
	Logger   *log.Logger
}

func (e *Evaluator) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// Evaluate scores each named problem under problemsRoot using answers from
// answersRoot. Toolchain faults abort the whole evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, problemsRoot, answersRoot string, names []string) (*Report, error) {
	if e.Runner == nil {
		return nil, fmt.Errorf("evaluate: no runner")
	}
	if err := problems.CheckAnswerTree(names, answersRoot); err != nil {
		return nil, err
	}
	var (
		mu     sync.Mutex
		scores = make([]Score, 0, len(names))
	)
	g, ctx := errgroup.WithContext(ctx)
	limit := e.Parallel
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, name := range names {
		g.Go(func() error {
			s, err := e.score(ctx, filepath.Join(problemsRoot, name), filepath.Join(answersRoot, name))
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", name, err)
			}
			s.Problem = name
			mu.Lock()
			scores = append(scores, s)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Problem < scores[j].Problem })
	return &Report{Scores: scores}, nil
}

func (e *Evaluator) score(ctx context.Context, problemDir, answerDir string) (Score, error) {
	answer, err := problems.ReadAnswer(answerDir)
	if errors.Is(err, problems.ErrNoAnswer) {
		e.logf("no answer file for %s, skipping", filepath.Base(problemDir))
		return Score{Skipped: true, Note: "no answer"}, nil
	}
	if err != nil {
		return Score{}, err
	}
	tb := filepath.Join(problemDir, problems.TestbenchFile)
	if _, err := os.Stat(tb); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.logf("no %s in %s, assigning 0", problems.TestbenchFile, problemDir)
			return Score{AnswerID: answer, Note: "no testbench"}, nil
		}
		return Score{}, err
	}
	mutants, err := problems.Mutants(problemDir)
	if err != nil {
		return Score{}, err
	}
	passed := make(map[int]bool, len(mutants))
	present := false
	for _, m := range mutants {
		res, err := e.Runner.Run(ctx, problems.TestbenchTop, tb, m.Path)
		if err != nil {
			return Score{}, err
		}
		passed[m.ID] = res.Passed
		present = present || m.ID == answer
	}
	s := Score{Mutants: len(mutants), AnswerID: answer, Found: passed[answer]}
	for _, ok := range passed {
		if ok {
			s.Positives++
		}
	}
	if !present {
		s.Note = fmt.Sprintf("answer mutant_%d.v not present", answer)
		return s, nil
	}
	s.Precision = Precision(passed, answer)
	e.logf("%s: %d/%d positive, precision %.2f", filepath.Base(problemDir), s.Positives, s.Mutants, s.Precision)
	return s, nil
}
