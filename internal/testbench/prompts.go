package testbench

import "fmt"

const (
	roleDesigner = "You are an expert in digital hardware design."
	roleVerifier = "You are an expert in digital hardware verification."

	codeOnlyFormat = "Return exactly one fenced code block (```verilog ... ```) and nothing else."
)

// Contract is the fixed output contract every synthesized or repaired
// testbench must satisfy.
type Contract struct {
	Top           string
	SuccessMarker string
}

// DefaultContract is the contract used by the evaluation harness.
var DefaultContract = Contract{Top: "tb", SuccessMarker: "TESTS PASSED"}

func (c Contract) requirements(signature string) []string {
	return []string{
		"Your output should be only the Verilog testbench code, with no extra explanation or commentary.",
		"Do not write any additional modules other than the testbench module.",
		fmt.Sprintf("The testbench module name is %s.", c.Top),
		"Instantiate the design under test using exactly this module header:\n" + signature,
		fmt.Sprintf("It outputs $display(%q) only if the module passes every check.", c.SuccessMarker),
		"It calls $error (or $fatal) if the module fails any check.",
		"It calls $finish at the end.",
	}
}

// HeaderPrompt asks for the interface declaration of candidate only.
func HeaderPrompt(candidate string) (string, error) {
	return PromptSpec{
		Role:    roleDesigner,
		Purpose: "Return the module header of the given module.",
		Inputs:  []Section{{Title: "MODULE", Body: candidate}},
		Requirements: []string{
			"Include the module name, every port, its direction and its bit width.",
			"Include the parameter list if the module has one.",
			"End the header with ');'.",
		},
		Rules: []string{
			"Do not include the module body, logic or endmodule.",
			"Do not provide any additional information or commentary.",
		},
		OutputFormat: codeOnlyFormat,
	}.Render()
}

// BugsPrompt asks for a bulleted list of plausible defects.
func BugsPrompt(functionalSpec string) (string, error) {
	return PromptSpec{
		Role:    roleVerifier,
		Purpose: "Identify and describe possible bugs that may exist in implementations of the module described below.",
		Inputs:  []Section{{Title: "FUNCTIONAL_DESCRIPTION", Body: functionalSpec}},
		Requirements: []string{
			"Provide a thorough, specific, and concise list of bullet points of potential bugs.",
			"Focus on realistic design, logic, or timing issues.",
		},
		Rules: []string{
			"Avoid unnecessary commentary or speculation beyond what's relevant to potential bugs.",
		},
		OutputFormat: "A markdown bullet list.",
	}.Render()
}

// SynthesisPrompt composes the description, hypotheses and signature into
// one testbench generation request.
func SynthesisPrompt(c Contract, functionalSpec, hypotheses, signature string) (string, error) {
	return PromptSpec{
		Role: roleVerifier,
		Purpose: "Generate a comprehensive and concise Verilog testbench that verifies the correctness of a module " +
			"implementing the description below. The testbench should aim to detect common issues, cover edge cases, " +
			"and validate core functionality.",
		Inputs: []Section{
			{Title: "FUNCTIONAL_DESCRIPTION", Body: functionalSpec},
			{Title: "POTENTIAL_BUGS", Body: hypotheses + "\nUse this list to inform what tests to include in the testbench."},
			{Title: "MODULE_HEADER", Body: signature},
		},
		Requirements: c.requirements(signature),
		OutputFormat: codeOnlyFormat,
	}.Render()
}

// RepairPrompt restates the contract and supplies the failing testbench
// together with the compiler diagnostic.
func RepairPrompt(c Contract, artifact, diagnostic, signature string) (string, error) {
	return PromptSpec{
		Role: roleVerifier,
		Purpose: "Rewrite the testbench below so that it compiles without errors. The errors may concern bit " +
			"arithmetic, logical formulas, or Verilog syntax rules.",
		Inputs: []Section{
			{Title: "TESTBENCH", Body: artifact},
			{Title: "COMPILER_ERRORS", Body: diagnostic},
			{Title: "MODULE_HEADER", Body: signature},
		},
		Requirements: append([]string{"As before, the testbench must keep every check it already performs."}, c.requirements(signature)...),
		OutputFormat: codeOnlyFormat,
	}.Render()
}
