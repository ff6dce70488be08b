// Package testbench turns a functional description and a candidate module
// into a self-checking Verilog testbench through a text-completion oracle.
// Each step issues exactly one oracle request.
package testbench

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tbsynth/internal/hdl"
	"tbsynth/internal/llm"
	llmclient "tbsynth/internal/llm/client"
)

// Worker names attached to oracle requests.
const (
	WorkerHeader     = "header"
	WorkerBugs       = "bugs"
	WorkerSynthesize = "synthesize"
	WorkerRepair     = "repair"
)

var (
	ErrNoModule       = errors.New("testbench: candidate has no module declaration")
	ErrEmptySignature = errors.New("testbench: oracle returned no usable module header")
	ErrEmptyBugs      = errors.New("testbench: oracle returned no bug hypotheses")
	// ErrHeaderMismatch wraps ErrEmptySignature: the header does not match the candidate.
	ErrHeaderMismatch = fmt.Errorf("%w: interface differs from the candidate", ErrEmptySignature)
)

// SynthesisInput is everything the first generation request needs.
type SynthesisInput struct {
	FunctionalSpec string
	Hypotheses     string
	Signature      string
}

// RepairInput carries the failing artifact and its diagnostic.
type RepairInput struct {
	Artifact   string
	Diagnostic string
	Signature  string
}

// Generator issues the oracle requests of a synthesis run.
type Generator struct {
	LLM      llmclient.LLMClient
	Contract Contract
	// Extract pulls code out of raw oracle text. Defaults to hdl.ExtractCode.
	Extract func(raw string) (string, error)
}

// NewGenerator returns a Generator with the default contract and extractor.
func NewGenerator(cli llmclient.LLMClient) *Generator {
	return &Generator{LLM: cli, Contract: DefaultContract, Extract: hdl.ExtractCode}
}

// LegacyExtract mimics the first/last line strip used by earlier harnesses.
func LegacyExtract(raw string) (string, error) {
	out := hdl.StripEnvelope(raw)
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: nothing left after envelope strip", hdl.ErrMalformedResponse)
	}
	return out, nil
}

func (g *Generator) contract() Contract {
	c := g.Contract
	if c.Top == "" {
		c.Top = DefaultContract.Top
	}
	if c.SuccessMarker == "" {
		c.SuccessMarker = DefaultContract.SuccessMarker
	}
	return c
}

func (g *Generator) extract(raw string) (string, error) {
	if g.Extract != nil {
		return g.Extract(raw)
	}
	return hdl.ExtractCode(raw)
}

func (g *Generator) complete(ctx context.Context, worker, prompt string) (string, error) {
	if g == nil || g.LLM == nil {
		return "", fmt.Errorf("testbench: generator has no oracle")
	}
	out, err := g.LLM.Complete(llm.WithWorker(ctx, worker), prompt)
	if err != nil {
		return "", fmt.Errorf("testbench: %s request: %w", worker, err)
	}
	return out, nil
}

// ExtractHeader asks the oracle for the interface declaration of candidate.
// The result is the normalized header text, ready for interpolation.
func (g *Generator) ExtractHeader(ctx context.Context, candidate string) (string, error) {
	if len(hdl.ModuleNames(candidate)) == 0 {
		return "", ErrNoModule
	}
	prompt, err := HeaderPrompt(candidate)
	if err != nil {
		return "", err
	}
	raw, err := g.complete(ctx, WorkerHeader, prompt)
	if err != nil {
		return "", err
	}
	sig, err := g.extract(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmptySignature, err)
	}
	got, err := hdl.ParseHeader(sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmptySignature, err)
	}
	if want, err := hdl.ParseHeader(candidate); err == nil {
		if err := sameInterface(want, got); err != nil {
			return "", err
		}
	}
	return hdl.HeaderText(sig)
}

// sameInterface reports a header that renames the module or drops a port.
func sameInterface(want, got hdl.Header) error {
	if got.Name != want.Name {
		return fmt.Errorf("%w: module %s, want %s", ErrHeaderMismatch, got.Name, want.Name)
	}
	have := make(map[string]bool, len(got.Ports))
	for _, n := range got.PortNames() {
		have[n] = true
	}
	var missing []string
	for _, n := range want.PortNames() {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing ports %s", ErrHeaderMismatch, strings.Join(missing, ", "))
	}
	return nil
}

// HypothesizeBugs returns the oracle's bug list as free-form text.
func (g *Generator) HypothesizeBugs(ctx context.Context, functionalSpec string) (string, error) {
	prompt, err := BugsPrompt(functionalSpec)
	if err != nil {
		return "", err
	}
	raw, err := g.complete(ctx, WorkerBugs, prompt)
	if err != nil {
		return "", err
	}
	bugs := strings.TrimSpace(raw)
	if bugs == "" {
		return "", ErrEmptyBugs
	}
	return bugs, nil
}

// Synthesize produces the initial testbench artifact.
func (g *Generator) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	prompt, err := SynthesisPrompt(g.contract(), in.FunctionalSpec, in.Hypotheses, in.Signature)
	if err != nil {
		return "", err
	}
	raw, err := g.complete(ctx, WorkerSynthesize, prompt)
	if err != nil {
		return "", err
	}
	return g.extract(raw)
}

// Repair asks for a corrected artifact. The returned text replaces the
// failing one entirely.
func (g *Generator) Repair(ctx context.Context, in RepairInput) (string, error) {
	prompt, err := RepairPrompt(g.contract(), in.Artifact, in.Diagnostic, in.Signature)
	if err != nil {
		return "", err
	}
	raw, err := g.complete(ctx, WorkerRepair, prompt)
	if err != nil {
		return "", err
	}
	return g.extract(raw)
}
