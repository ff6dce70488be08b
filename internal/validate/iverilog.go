package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"tbsynth/internal/metrics"
)

const (
	testbenchFile = "tb.v"
	candidateFile = "candidate.v"
	outputFile    = "a.out"
)

// Iverilog validates artifacts with Icarus Verilog. The zero value runs
// `iverilog -g2012` from PATH with a 60s budget.
type Iverilog struct {
	Bin         string
	Flags       []string
	IncludeDirs []string
	Timeout     time.Duration
	Logger      *log.Logger
	Metrics     *metrics.Metrics
}

func (v *Iverilog) bin() string {
	if v.Bin != "" {
		return v.Bin
	}
	return "iverilog"
}

func (v *Iverilog) flags() []string {
	if len(v.Flags) > 0 {
		return v.Flags
	}
	return []string{"-g2012"}
}

func (v *Iverilog) timeout() time.Duration {
	if v.Timeout > 0 {
		return v.Timeout
	}
	return 60 * time.Second
}

func (v *Iverilog) logf(format string, args ...any) {
	if v.Logger != nil {
		v.Logger.Printf(format, args...)
	}
}

// Validate writes both texts into a private temporary directory, compiles
// them with top as the root module and removes the directory before
// returning, on every path.
func (v *Iverilog) Validate(ctx context.Context, artifact, candidate, top string) (Result, error) {
	dir, err := os.MkdirTemp("", "tbsynth-validate-*")
	if err != nil {
		return Result{}, fmt.Errorf("validate: create workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	tbPath := filepath.Join(dir, testbenchFile)
	candPath := filepath.Join(dir, candidateFile)
	if err := os.WriteFile(tbPath, []byte(artifact), 0o644); err != nil {
		return Result{}, fmt.Errorf("validate: write testbench: %w", err)
	}
	if err := os.WriteFile(candPath, []byte(candidate), 0o644); err != nil {
		return Result{}, fmt.Errorf("validate: write candidate: %w", err)
	}
	res, _, err := v.Compile(ctx, filepath.Join(dir, outputFile), top, tbPath, candPath)
	if err != nil {
		return Result{}, err
	}
	// Paths inside the throwaway workspace mean nothing to the oracle.
	res.Diagnostic = strings.ReplaceAll(res.Diagnostic, dir+string(filepath.Separator), "")
	return res, nil
}

// Compile runs the compiler on sources and writes the elaborated design to
// output. The second return value is the combined compiler output.
func (v *Iverilog) Compile(ctx context.Context, output, top string, sources ...string) (Result, string, error) {
	bin, err := exec.LookPath(v.bin())
	if err != nil {
		return Result{}, "", fmt.Errorf("%w: %s: %v", ErrLaunch, v.bin(), err)
	}
	args := append([]string{}, v.flags()...)
	args = append(args, "-o", output, "-s", top)
	args = append(args, sources...)
	for _, inc := range v.IncludeDirs {
		args = append(args, "-I", inc)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, v.timeout())
	defer cancel()
	cmd := exec.CommandContext(cmdCtx, bin, args...)
	// Children of a killed compiler may keep the pipes open.
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	v.Metrics.ObserveCompile(time.Since(start))
	combined := joinOutput(stderr.String(), stdout.String())
	if err == nil {
		v.logf("compile ok (top=%s, %s)", top, time.Since(start).Round(time.Millisecond))
		return Passed(), combined, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, combined, ctxErr
	}
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return Result{}, combined, fmt.Errorf("%w after %s", ErrTimeout, v.timeout())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		v.logf("compile failed (top=%s, exit=%d)", top, exitErr.ExitCode())
		if strings.TrimSpace(combined) == "" {
			combined = fmt.Sprintf("%s exited with status %d", filepath.Base(bin), exitErr.ExitCode())
		}
		return Failed(combined), combined, nil
	}
	return Result{}, combined, fmt.Errorf("%w: %s: %v", ErrLaunch, bin, err)
}

func joinOutput(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimRight(p, "\n"))
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, "\n") + "\n"
}
