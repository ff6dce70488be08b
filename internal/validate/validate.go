// Package validate compiles a testbench together with a candidate module
// using an external Verilog toolchain and reports the outcome.
package validate

import (
	"context"
	"errors"
)

var (
	// ErrLaunch means the toolchain could not be located or started. It is a
	// fault of the environment, never a verdict on the artifact.
	ErrLaunch = errors.New("validate: compiler could not be launched")
	// ErrTimeout means the toolchain exceeded its time budget.
	ErrTimeout = errors.New("validate: compiler timed out")
)

// Result is the tagged outcome of one validation attempt. Diagnostic is
// the verbatim compiler output and is empty when Pass is true.
type Result struct {
	Pass       bool
	Diagnostic string
}

func Passed() Result                  { return Result{Pass: true} }
func Failed(diagnostic string) Result { return Result{Diagnostic: diagnostic} }

func (r Result) String() string {
	if r.Pass {
		return "pass"
	}
	return "fail"
}

// Validator compiles artifact (whose top-level module is top) against
// candidate. A non-nil error is returned only for faults such as ErrLaunch;
// compile errors are reported as a failing Result.
type Validator interface {
	Validate(ctx context.Context, artifact, candidate, top string) (Result, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, artifact, candidate, top string) (Result, error)

func (f ValidatorFunc) Validate(ctx context.Context, artifact, candidate, top string) (Result, error) {
	return f(ctx, artifact, candidate, top)
}
