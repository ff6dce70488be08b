// Package artifact persists generated testbenches keyed by (run, path).
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Store defines operations for persisting run artifacts.
type Store interface {
	Put(ctx context.Context, runID, path string, content []byte) error
	Get(ctx context.Context, runID, path string) ([]byte, error)
	GetURL(ctx context.Context, runID, path string) (string, error)
	List(ctx context.Context, runID string) ([]string, error)
}

// RunRecord summarizes one finished synthesis run.
type RunRecord struct {
	RunID          string
	Problem        string
	State          string
	Iterations     int
	LastDiagnostic string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// RunRecorder is implemented by stores that also keep a run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

var (
	ErrNotFound = errors.New("artifact not found")
	ErrBadPath  = errors.New("artifact path escapes its run")
)

// normalize trims and validates a key pair. Paths are slash separated and
// relative to the run.
func normalize(runID, p string) (string, string, error) {
	runID = strings.TrimSpace(runID)
	p = strings.TrimSpace(p)
	if runID == "" {
		return "", "", fmt.Errorf("run_id is required")
	}
	if p == "" {
		return "", "", fmt.Errorf("path is required")
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", "", fmt.Errorf("%w: run_id %q", ErrBadPath, runID)
	}
	clean := path.Clean("/" + strings.ReplaceAll(p, `\`, "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean != strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/") {
		return "", "", fmt.Errorf("%w: %q", ErrBadPath, p)
	}
	return runID, clean, nil
}

func normalizeRun(runID string) (string, error) {
	r, _, err := normalize(runID, "x")
	return r, err
}

func objectKey(runID, p string) string {
	return runID + "/" + p
}
