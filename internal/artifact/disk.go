package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore lays artifacts out as <Root>/<runID>/<path>. With the problem
// name as runID and "tb.v" as path it writes straight into a problem folder.
type DiskStore struct {
	Root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{Root: root}
}

func (s *DiskStore) file(runID, p string) (string, error) {
	if s == nil || strings.TrimSpace(s.Root) == "" {
		return "", fmt.Errorf("disk store has no root")
	}
	runID, p, err := normalize(runID, p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, runID, filepath.FromSlash(p)), nil
}

// Put writes content atomically through a sibling temp file.
func (s *DiskStore) Put(_ context.Context, runID, path string, content []byte) error {
	target, err := s.file(runID, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tbsynth-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (s *DiskStore) Get(_ context.Context, runID, path string) ([]byte, error) {
	target, err := s.file(runID, path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (s *DiskStore) List(_ context.Context, runID string) ([]string, error) {
	runID, err := normalizeRun(runID)
	if err != nil {
		return nil, err
	}
	if s == nil || strings.TrimSpace(s.Root) == "" {
		return nil, fmt.Errorf("disk store has no root")
	}
	base := filepath.Join(s.Root, runID)
	var out []string
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tbsynth-") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// GetURL returns a file:// URL for an existing artifact.
func (s *DiskStore) GetURL(_ context.Context, runID, path string) (string, error) {
	target, err := s.file(runID, path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}
