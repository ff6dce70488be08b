package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// SimResult is the outcome of compiling and running a testbench.
type SimResult struct {
	Compiled bool
	// Passed is true when the run finished cleanly and printed the marker.
	Passed bool
	Output string
}

// Simulator compiles with Iverilog and runs the result under vvp.
type Simulator struct {
	Compiler *Iverilog
	VVP      string
	Timeout  time.Duration
	// Marker is the success line the testbench prints; defaults to "TESTS PASSED".
	Marker string
}

func (s *Simulator) vvp() string {
	if s.VVP != "" {
		return s.VVP
	}
	return "vvp"
}

func (s *Simulator) marker() string {
	if s.Marker != "" {
		return s.Marker
	}
	return "TESTS PASSED"
}

// Run compiles sources (file paths) with top as root and simulates the
// design. Compile errors and failing simulations are reported in the
// result; only toolchain faults are returned as errors.
func (s *Simulator) Run(ctx context.Context, top string, sources ...string) (SimResult, error) {
	compiler := s.Compiler
	if compiler == nil {
		compiler = &Iverilog{}
	}
	dir, err := os.MkdirTemp("", "tbsynth-sim-*")
	if err != nil {
		return SimResult{}, fmt.Errorf("validate: create workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, outputFile)
	res, compileOut, err := compiler.Compile(ctx, out, top, sources...)
	if err != nil {
		return SimResult{}, err
	}
	if !res.Pass {
		return SimResult{Output: compileOut}, nil
	}

	bin, err := exec.LookPath(s.vvp())
	if err != nil {
		return SimResult{}, fmt.Errorf("%w: %s: %v", ErrLaunch, s.vvp(), err)
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, bin, out)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	output := joinOutput(stdout.String(), stderr.String())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return SimResult{}, ctxErr
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			// A testbench that never calls $finish is a failing testbench.
			return SimResult{Compiled: true, Output: output}, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return SimResult{Compiled: true, Output: output}, nil
		}
		return SimResult{}, fmt.Errorf("%w: %s: %v", ErrLaunch, bin, err)
	}
	return SimResult{
		Compiled: true,
		Passed:   strings.Contains(stdout.String(), s.marker()),
		Output:   output,
	}, nil
}
