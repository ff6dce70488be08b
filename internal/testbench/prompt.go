package testbench

import (
	"bytes"
	"fmt"
	"strings"
)

// Section is a titled block of prompt input, rendered verbatim.
type Section struct {
	Title string
	Body  string
}

// PromptSpec defines the sections for a structured prompt.
type PromptSpec struct {
	Role         string
	Purpose      string
	Inputs       []Section
	Requirements []string
	Rules        []string
	OutputFormat string
}

// Render lays the spec out as bracketed sections. Empty sections are skipped.
func (s PromptSpec) Render() (string, error) {
	if strings.TrimSpace(s.Purpose) == "" {
		return "", fmt.Errorf("testbench: prompt purpose is empty")
	}
	var buf bytes.Buffer
	if s.Role != "" {
		buf.WriteString(s.Role)
		buf.WriteString("\n\n")
	}
	writeSection(&buf, "PURPOSE", s.Purpose)
	for _, in := range s.Inputs {
		writeSection(&buf, in.Title, in.Body)
	}
	writeSection(&buf, "REQUIREMENTS", formatList(s.Requirements))
	writeSection(&buf, "RULES", formatList(s.Rules))
	writeSection(&buf, "OUTPUT_FORMAT", s.OutputFormat)
	return strings.TrimSpace(buf.String()) + "\n", nil
}

func formatList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var buf strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fmt.Fprintf(&buf, "- %s\n", item)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func writeSection(buf *bytes.Buffer, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	buf.WriteString("[")
	buf.WriteString(title)
	buf.WriteString("]\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
}
