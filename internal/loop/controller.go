// Package loop drives one synthesis run: extract the module header,
// hypothesize bugs, synthesize a testbench, then alternate validation and
// repair until the testbench compiles or the iteration budget is spent.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"tbsynth/internal/metrics"
	"tbsynth/internal/testbench"
	"tbsynth/internal/validate"
)

// DefaultMaxIterations bounds the number of validations per run.
const DefaultMaxIterations = 10

// ErrGaveUp is wrapped by Outcome.Err when a run exhausts its budget.
var ErrGaveUp = errors.New("loop: iteration budget exhausted")

// Oracle is the set of generation steps the controller sequences.
// *testbench.Generator implements it.
type Oracle interface {
	ExtractHeader(ctx context.Context, candidate string) (string, error)
	HypothesizeBugs(ctx context.Context, functionalSpec string) (string, error)
	Synthesize(ctx context.Context, in testbench.SynthesisInput) (string, error)
	Repair(ctx context.Context, in testbench.RepairInput) (string, error)
}

// Observer receives every state transition of a run. It must not block.
type Observer func(Event)

// Event describes one transition.
type Event struct {
	RunID      string
	State      State
	Iteration  int
	Artifact   string
	Diagnostic string
	At         time.Time
}

// Controller owns the run loop. It holds no run state, so one Controller
// may serve many concurrent runs.
type Controller struct {
	Oracle    Oracle
	Validator validate.Validator
	Contract  testbench.Contract
	// MaxIterations caps validations per run; <= 0 means DefaultMaxIterations.
	MaxIterations int
	// SkipContractCheck sends every artifact straight to the compiler.
	SkipContractCheck bool
	Logger            *log.Logger
	Observer          Observer
	Metrics           *metrics.Metrics
}

// Outcome is the terminal result of a run.
type Outcome struct {
	RunID          string
	State          State // Done or GaveUp
	Artifact       string
	Signature      string
	Hypotheses     string
	Iterations     int
	LastDiagnostic string
}

// Err returns nil for Done and an ErrGaveUp-wrapping error otherwise.
func (o *Outcome) Err() error {
	if o == nil || o.State == Done {
		return nil
	}
	return fmt.Errorf("%w after %d validations: %s", ErrGaveUp, o.Iterations, firstLine(o.LastDiagnostic))
}

// run is the mutable state of a single Run.
type run struct {
	id         string
	in         Input
	state      State
	signature  string
	hypotheses string
	artifact   string
	diagnostic string
	iteration  int
}

func (c *Controller) contract() testbench.Contract {
	ct := c.Contract
	if ct.Top == "" {
		ct.Top = testbench.DefaultContract.Top
	}
	if ct.SuccessMarker == "" {
		ct.SuccessMarker = testbench.DefaultContract.SuccessMarker
	}
	return ct
}

func (c *Controller) maxIterations() int {
	if c.MaxIterations > 0 {
		return c.MaxIterations
	}
	return DefaultMaxIterations
}

func (c *Controller) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

// Run executes the loop for in. Oracle failures, launch faults and context
// cancellation abort the run with an error. Exhausting the iteration budget
// is not an error: the Outcome is returned in state GaveUp with the last
// artifact and diagnostic.
func (c *Controller) Run(ctx context.Context, in Input) (*Outcome, error) {
	if c.Oracle == nil || c.Validator == nil {
		return nil, fmt.Errorf("loop: controller needs an oracle and a validator")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	r := &run{id: uuid.NewString(), in: in, state: Init}
	c.logf("run %s: start %q (max %d validations)", r.id, in.Name, c.maxIterations())
	c.emit(r)

	out, err := c.drive(ctx, r)
	if err != nil {
		c.Metrics.ObserveRun("error", r.iteration)
		c.logf("run %s: aborted in %s: %v", r.id, r.state, err)
		return nil, err
	}
	c.Metrics.ObserveRun(out.State.String(), out.Iterations)
	return out, nil
}

func (c *Controller) drive(ctx context.Context, r *run) (*Outcome, error) {
	ct := c.contract()
	limit := c.maxIterations()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch r.state {
		case Init:
			sig, err := c.Oracle.ExtractHeader(ctx, r.in.Candidate)
			if err != nil {
				return nil, fmt.Errorf("loop: extract header: %w", err)
			}
			r.signature = sig
			c.transition(r, HeaderExtracted)

		case HeaderExtracted:
			bugs, err := c.Oracle.HypothesizeBugs(ctx, r.in.FunctionalSpec)
			if err != nil {
				return nil, fmt.Errorf("loop: hypothesize bugs: %w", err)
			}
			r.hypotheses = bugs
			c.transition(r, BugsHypothesized)

		case BugsHypothesized:
			tb, err := c.Oracle.Synthesize(ctx, testbench.SynthesisInput{
				FunctionalSpec: r.in.FunctionalSpec,
				Hypotheses:     r.hypotheses,
				Signature:      r.signature,
			})
			if err != nil {
				return nil, fmt.Errorf("loop: synthesize: %w", err)
			}
			r.artifact = tb
			c.transition(r, Synthesized)

		case Synthesized:
			c.transition(r, Validating)

		case Validating:
			r.iteration++
			res, err := c.validate(ctx, ct, r.artifact, r.in.Candidate)
			if err != nil {
				return nil, fmt.Errorf("loop: validate (iteration %d): %w", r.iteration, err)
			}
			if res.Pass {
				r.diagnostic = ""
				c.transition(r, Done)
				continue
			}
			r.diagnostic = res.Diagnostic
			c.logf("run %s: iteration %d/%d failed validation", r.id, r.iteration, limit)
			if r.iteration >= limit {
				c.transition(r, GaveUp)
				continue
			}
			c.transition(r, Repairing)

		case Repairing:
			c.Metrics.ObserveRepair()
			tb, err := c.Oracle.Repair(ctx, testbench.RepairInput{
				Artifact:   r.artifact,
				Diagnostic: r.diagnostic,
				Signature:  r.signature,
			})
			if err != nil {
				return nil, fmt.Errorf("loop: repair (iteration %d): %w", r.iteration, err)
			}
			r.artifact = tb
			c.transition(r, Validating)

		case Done, GaveUp:
			return &Outcome{
				RunID:          r.id,
				State:          r.state,
				Artifact:       r.artifact,
				Signature:      r.signature,
				Hypotheses:     r.hypotheses,
				Iterations:     r.iteration,
				LastDiagnostic: r.diagnostic,
			}, nil

		default:
			return nil, fmt.Errorf("loop: unknown state %d", r.state)
		}
	}
}

// validate runs the structural pre-check, then the compiler.
func (c *Controller) validate(ctx context.Context, ct testbench.Contract, artifact, candidate string) (validate.Result, error) {
	if !c.SkipContractCheck {
		if err := ct.Check(artifact); err != nil {
			var ce *testbench.ContractError
			if errors.As(err, &ce) {
				c.Metrics.ObserveValidation("contract")
				return validate.Failed(ce.Diagnostic()), nil
			}
			return validate.Result{}, err
		}
	}
	res, err := c.Validator.Validate(ctx, artifact, candidate, ct.Top)
	if err != nil {
		return res, err
	}
	c.Metrics.ObserveValidation(res.String())
	return res, nil
}

func (c *Controller) transition(r *run, next State) {
	c.logf("run %s: %s -> %s", r.id, r.state, next)
	r.state = next
	c.emit(r)
}

func (c *Controller) emit(r *run) {
	if c.Observer == nil {
		return
	}
	c.Observer(Event{
		RunID:      r.id,
		State:      r.state,
		Iteration:  r.iteration,
		Artifact:   r.artifact,
		Diagnostic: r.diagnostic,
		At:         time.Now(),
	})
}
