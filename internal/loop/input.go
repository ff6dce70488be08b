package loop

import (
	"errors"
	"fmt"
	"strings"
)

// Default logical file names of a run input.
const (
	SpecFile      = "specification.md"
	CandidateFile = "mutant_0.v"
)

var (
	ErrMissingSpec      = errors.New("loop: functional specification is empty")
	ErrMissingCandidate = errors.New("loop: candidate module is empty")
)

// Input is what one run consumes: the natural-language description of the
// design and one candidate implementation the testbench must compile with.
type Input struct {
	Name           string
	FunctionalSpec string
	Candidate      string
}

// Validate reports the first missing field.
func (in Input) Validate() error {
	if strings.TrimSpace(in.FunctionalSpec) == "" {
		return ErrMissingSpec
	}
	if strings.TrimSpace(in.Candidate) == "" {
		return ErrMissingCandidate
	}
	return nil
}

// InputFromFiles builds an Input from a logical file name to content map,
// reading SpecFile and CandidateFile.
func InputFromFiles(name string, files map[string]string) (Input, error) {
	return InputFromFileNames(name, files, SpecFile, CandidateFile)
}

// InputFromFileNames is InputFromFiles with explicit key names.
func InputFromFileNames(name string, files map[string]string, specKey, candidateKey string) (Input, error) {
	spec, ok := files[specKey]
	if !ok {
		return Input{}, fmt.Errorf("%w: %s not provided", ErrMissingSpec, specKey)
	}
	cand, ok := files[candidateKey]
	if !ok {
		return Input{}, fmt.Errorf("%w: %s not provided", ErrMissingCandidate, candidateKey)
	}
	in := Input{Name: name, FunctionalSpec: spec, Candidate: cand}
	return in, in.Validate()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
