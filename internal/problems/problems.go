// Package problems reads and writes the on-disk problem layout: one
// directory per design holding specification.md, mutant_<id>.v files and,
// once generated, tb.v. Answers live in a parallel tree as answer.txt.
package problems

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	SpecFile      = "specification.md"
	TestbenchFile = "tb.v"
	TestbenchTop  = "tb"
	PassMarker    = "TESTS PASSED"
	AnswerFile    = "answer.txt"
	// ReferenceMutant is the candidate testbenches are validated against.
	ReferenceMutant = "mutant_0.v"
)

// DummyTestbench passes against every mutant. It is the baseline scorer
// input: precision 1/N for N mutants.
const DummyTestbench = `module tb;

    initial begin
        $display("TESTS PASSED");
        $finish;
    end

endmodule
`

var (
	ErrNotDir    = errors.New("problems: not a directory")
	ErrNoAnswer  = errors.New("problems: no answer file")
	ErrBadAnswer = errors.New("problems: malformed answer")

	reMutant = regexp.MustCompile(`^mutant_(\d+)\.v$`)
)

// Mutant is one candidate implementation of a problem.
type Mutant struct {
	ID   int
	Path string
}

// Discover returns the sorted names of the problem directories under root.
func Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotDir, root)
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Filter keeps the names listed in only, or all names when only is empty.
// Unknown names are reported.
func Filter(names, only []string) ([]string, error) {
	if len(only) == 0 {
		return names, nil
	}
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	var out, missing []string
	for _, n := range only {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if !have[n] {
			missing = append(missing, n)
			continue
		}
		out = append(out, n)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("problems: unknown problem(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Load reads the inputs of one problem as a file name to content map. It
// holds the specification and every mutant; tb.v is never included.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (name != SpecFile && !reMutant.MatchString(name)) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		files[name] = string(raw)
	}
	if _, ok := files[SpecFile]; !ok {
		return nil, fmt.Errorf("problems: %s has no %s", dir, SpecFile)
	}
	return files, nil
}

// Mutants lists the mutant files of dir ordered by numeric id.
func Mutants(dir string) ([]Mutant, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Mutant
	for _, e := range entries {
		m := reMutant.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("problems: mutant id %q: %w", m[1], err)
		}
		out = append(out, Mutant{ID: id, Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReadAnswer returns the id of the correct mutant recorded in dir.
func ReadAnswer(dir string) (int, error) {
	raw, err := os.ReadFile(filepath.Join(dir, AnswerFile))
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w in %s", ErrNoAnswer, dir)
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q in %s", ErrBadAnswer, strings.TrimSpace(string(raw)), dir)
	}
	return id, nil
}

// CheckAnswerTree verifies that every problem has a directory under answers.
func CheckAnswerTree(names []string, answers string) error {
	have, err := Discover(answers)
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(have))
	for _, n := range have {
		set[n] = true
	}
	var missing []string
	for _, n := range names {
		if !set[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("problems: answers folder missing subdirectories: %s", strings.Join(missing, ", "))
	}
	return nil
}
