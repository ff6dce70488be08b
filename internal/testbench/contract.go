package testbench

import (
	"fmt"
	"strings"

	"tbsynth/internal/hdl"
)

// ContractError lists every way an artifact breaks the output contract.
// It is detected before compilation so the repair prompt gets a precise
// diagnostic instead of whatever the compiler makes of it.
type ContractError struct {
	Violations []string
}

func (e *ContractError) Error() string {
	return "testbench: contract violated: " + strings.Join(e.Violations, "; ")
}

// Diagnostic renders the violations in the shape of compiler output.
func (e *ContractError) Diagnostic() string {
	var sb strings.Builder
	for _, v := range e.Violations {
		fmt.Fprintf(&sb, "contract: error: %s\n", v)
	}
	return sb.String()
}

// Check verifies the structural contract: a single module named c.Top,
// the success marker on some path, an error path, and an explicit $finish.
// It returns nil or a *ContractError.
func (c Contract) Check(artifact string) error {
	var vs []string
	names := hdl.ModuleNames(artifact)
	switch {
	case len(names) == 0:
		vs = append(vs, "no module declaration")
	case len(names) > 1:
		vs = append(vs, fmt.Sprintf("%d modules declared (%s), only module %s is allowed", len(names), strings.Join(names, ", "), c.Top))
	case names[0] != c.Top:
		vs = append(vs, fmt.Sprintf("module is named %s, must be %s", names[0], c.Top))
	}
	if !hdl.HasStringLiteral(artifact, c.SuccessMarker) {
		vs = append(vs, fmt.Sprintf("missing $display(%q) on the passing path", c.SuccessMarker))
	}
	if !hasErrorPath(artifact) {
		vs = append(vs, "no error path: call $error or $fatal when a check fails")
	}
	if !hdl.HasSystemCall(artifact, "$finish") {
		vs = append(vs, "missing $finish at the end of simulation")
	}
	if len(vs) == 0 {
		return nil
	}
	return &ContractError{Violations: vs}
}

func hasErrorPath(src string) bool {
	if hdl.HasSystemCall(src, "$error") || hdl.HasSystemCall(src, "$fatal") {
		return true
	}
	for _, s := range hdl.StringLiterals(src) {
		u := strings.ToUpper(s)
		if strings.Contains(u, "ERROR") || strings.Contains(u, "FAIL") || strings.Contains(u, "MISMATCH") {
			return true
		}
	}
	return false
}
