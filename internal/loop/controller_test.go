package loop

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmclient "tbsynth/internal/llm/client"
	"tbsynth/internal/metrics"
	"tbsynth/internal/testbench"
	"tbsynth/internal/validate"
)

const (
	passthrough = "module passthrough(input wire a, output wire y);\n  assign y = a;\nendmodule\n"
	signature   = "module passthrough(input wire a, output wire y);"
	spec        = "The output y follows the input a."
)

const goodTB = "module tb;\n" +
	"  reg a; wire y;\n" +
	"  passthrough dut(.a(a), .y(y));\n" +
	"  initial begin\n" +
	"    a = 1; #1 if (y !== 1) $error(\"y mismatch\");\n" +
	"    $display(\"TESTS PASSED\");\n" +
	"    $finish;\n" +
	"  end\n" +
	"endmodule\n"

func fenced(s string) string { return "```verilog\n" + s + "```\n" }

// opening queues the three replies every run starts with.
func opening(tb string) []string {
	return []string{"```verilog\n" + signature + "\n```", "- y stuck at 0\n- y inverted", fenced(tb)}
}

func newInput(t *testing.T) Input {
	t.Helper()
	in, err := InputFromFiles("passthrough", map[string]string{SpecFile: spec, CandidateFile: passthrough})
	require.NoError(t, err)
	return in
}

// scriptedValidator returns results in order and records what it saw.
type scriptedValidator struct {
	results []validate.Result
	seen    []string
}

func (s *scriptedValidator) Validate(ctx context.Context, artifact, candidate, top string) (validate.Result, error) {
	s.seen = append(s.seen, artifact)
	if len(s.results) == 0 {
		return validate.Failed("out of results"), nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r, nil
}

func TestRunPassesFirstTime(t *testing.T) {
	oracle := llmclient.NewScriptedClient(opening(goodTB)...)
	v := &scriptedValidator{results: []validate.Result{validate.Passed()}}
	var states []State
	var buf bytes.Buffer
	c := &Controller{
		Oracle:    testbench.NewGenerator(oracle),
		Validator: v,
		Logger:    log.New(&buf, "", 0),
		Metrics:   metrics.New(),
		Observer:  func(e Event) { states = append(states, e.State) },
	}

	out, err := c.Run(context.Background(), newInput(t))
	require.NoError(t, err)
	assert.Equal(t, Done, out.State)
	assert.Equal(t, goodTB, out.Artifact)
	assert.Equal(t, signature, out.Signature)
	assert.Equal(t, 1, out.Iterations)
	assert.Empty(t, out.LastDiagnostic)
	assert.NotEmpty(t, out.RunID)
	assert.NoError(t, out.Err())
	assert.Len(t, oracle.Prompts(), 3)
	assert.Equal(t, []State{Init, HeaderExtracted, BugsHypothesized, Synthesized, Validating, Done}, states)
	assert.Contains(t, buf.String(), "validating -> done")
}

func TestRunRepairsUntilPass(t *testing.T) {
	fixed := strings.Replace(goodTB, "a = 1;", "a = 1'b1;", 1)
	oracle := llmclient.NewScriptedClient(append(opening(goodTB), fenced(fixed))...)
	v := &scriptedValidator{results: []validate.Result{
		validate.Failed("tb.v:5: error: Unknown module type: passthru"),
		validate.Passed(),
	}}
	c := &Controller{Oracle: testbench.NewGenerator(oracle), Validator: v}

	out, err := c.Run(context.Background(), newInput(t))
	require.NoError(t, err)
	assert.Equal(t, Done, out.State)
	assert.Equal(t, fixed, out.Artifact)
	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, []string{goodTB, fixed}, v.seen)

	repair := oracle.Prompts()[3]
	assert.Contains(t, repair, "Unknown module type: passthru")
	assert.Contains(t, repair, goodTB)
	assert.Contains(t, repair, signature)
}

func TestRunGivesUpAtIterationCap(t *testing.T) {
	replies := opening(goodTB)
	for i := 0; i < 2; i++ {
		replies = append(replies, fenced(goodTB))
	}
	oracle := llmclient.NewScriptedClient(replies...)
	calls := 0
	v := validate.ValidatorFunc(func(ctx context.Context, artifact, candidate, top string) (validate.Result, error) {
		calls++
		assert.Equal(t, "tb", top)
		assert.Equal(t, passthrough, candidate)
		return validate.Failed("tb.v:3: syntax error"), nil
	})
	c := &Controller{Oracle: testbench.NewGenerator(oracle), Validator: v, MaxIterations: 3}

	out, err := c.Run(context.Background(), newInput(t))
	require.NoError(t, err)
	assert.Equal(t, GaveUp, out.State)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, out.Iterations)
	assert.Equal(t, "tb.v:3: syntax error", out.LastDiagnostic)
	assert.Equal(t, goodTB, out.Artifact)
	assert.ErrorIs(t, out.Err(), ErrGaveUp)

	// header, bugs, synthesis and two repairs
	prompts := oracle.Prompts()
	require.Len(t, prompts, 5)
	for _, p := range prompts[3:] {
		assert.Contains(t, p, signature)
	}
}

func TestRunDefaultCapIsBounded(t *testing.T) {
	oracle := llmclient.NewScriptedClient(opening(goodTB)...)
	oracle.Fallback = func(string) (string, error) { return fenced(goodTB), nil }
	calls := 0
	v := validate.ValidatorFunc(func(context.Context, string, string, string) (validate.Result, error) {
		calls++
		return validate.Failed("nope"), nil
	})
	out, err := (&Controller{Oracle: testbench.NewGenerator(oracle), Validator: v}).Run(context.Background(), newInput(t))
	require.NoError(t, err)
	assert.Equal(t, GaveUp, out.State)
	assert.Equal(t, DefaultMaxIterations, calls)
}

func TestRunAbortsOnLaunchFault(t *testing.T) {
	oracle := llmclient.NewScriptedClient(opening(goodTB)...)
	v := validate.ValidatorFunc(func(context.Context, string, string, string) (validate.Result, error) {
		return validate.Result{}, validate.ErrLaunch
	})
	var last State
	c := &Controller{
		Oracle:    testbench.NewGenerator(oracle),
		Validator: v,
		Metrics:   metrics.New(),
		Observer:  func(e Event) { last = e.State },
	}
	out, err := c.Run(context.Background(), newInput(t))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, validate.ErrLaunch)
	assert.Equal(t, Validating, last)
	assert.Len(t, oracle.Prompts(), 3)
}

func TestRunAbortsOnOracleError(t *testing.T) {
	quota := errors.New("quota exceeded")
	oracle := llmclient.NewScriptedClient(opening(goodTB)[:2]...)
	oracle.Push(llmclient.Reply{Err: quota})
	v := &scriptedValidator{}
	_, err := (&Controller{Oracle: testbench.NewGenerator(oracle), Validator: v}).Run(context.Background(), newInput(t))
	assert.ErrorIs(t, err, quota)
	assert.Contains(t, err.Error(), "loop: synthesize")
	assert.Empty(t, v.seen)
}

func TestRunAbortsOnUnusableHeader(t *testing.T) {
	oracle := llmclient.NewScriptedClient("Sorry, I cannot help with that.")
	v := &scriptedValidator{}
	_, err := (&Controller{Oracle: testbench.NewGenerator(oracle), Validator: v}).Run(context.Background(), newInput(t))
	assert.ErrorIs(t, err, testbench.ErrEmptySignature)
	assert.Contains(t, err.Error(), "loop: extract header")
	assert.Len(t, oracle.Prompts(), 1)
	assert.Empty(t, v.seen)
}

func TestRunContractViolationSkipsCompiler(t *testing.T) {
	noMarker := strings.Replace(goodTB, `$display("TESTS PASSED");`, "", 1)
	oracle := llmclient.NewScriptedClient(append(opening(noMarker), fenced(goodTB))...)
	v := &scriptedValidator{results: []validate.Result{validate.Passed()}}
	c := &Controller{Oracle: testbench.NewGenerator(oracle), Validator: v}

	out, err := c.Run(context.Background(), newInput(t))
	require.NoError(t, err)
	assert.Equal(t, Done, out.State)
	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, []string{goodTB}, v.seen)
	assert.Contains(t, oracle.Prompts()[3], "contract: error:")
}

func TestRunSkipContractCheck(t *testing.T) {
	noMarker := strings.Replace(goodTB, `$display("TESTS PASSED");`, "", 1)
	oracle := llmclient.NewScriptedClient(opening(noMarker)...)
	v := &scriptedValidator{results: []validate.Result{validate.Passed()}}
	c := &Controller{Oracle: testbench.NewGenerator(oracle), Validator: v, SkipContractCheck: true}

	out, err := c.Run(context.Background(), newInput(t))
	require.NoError(t, err)
	assert.Equal(t, Done, out.State)
	assert.Equal(t, []string{noMarker}, v.seen)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	oracle := llmclient.NewScriptedClient(opening(goodTB)...)
	_, err := (&Controller{Oracle: testbench.NewGenerator(oracle), Validator: &scriptedValidator{}}).Run(ctx, newInput(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, oracle.Prompts())
}

func TestRunRejectsIncompleteInput(t *testing.T) {
	c := &Controller{Oracle: testbench.NewGenerator(llmclient.NewScriptedClient()), Validator: &scriptedValidator{}}
	_, err := c.Run(context.Background(), Input{Candidate: passthrough})
	assert.ErrorIs(t, err, ErrMissingSpec)

	_, err = InputFromFiles("x", map[string]string{SpecFile: spec})
	assert.ErrorIs(t, err, ErrMissingCandidate)

	_, err = (&Controller{}).Run(context.Background(), newInput(t))
	assert.Error(t, err)
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "gave_up", GaveUp.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, Done.Terminal())
	assert.False(t, Repairing.Terminal())
}
