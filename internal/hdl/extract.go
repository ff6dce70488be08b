package hdl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedResponse marks oracle output that does not carry exactly one
// recognizable code payload.
var ErrMalformedResponse = errors.New("hdl: malformed oracle response")

// An opening fence with optional language tag, then a lazy body up to a
// closing fence at the start of a line or the end of input (truncated
// responses). The body may be empty.
var reFence = regexp.MustCompile("(?ms)```[A-Za-z0-9_+.-]*[ \t]*\r?\n(.*?)(?:^[ \t]*```|\\z)")

// ExtractCode pulls the code payload out of an oracle response.
// A single fenced block is returned verbatim (trimmed). Unfenced text is
// accepted only if it already declares a module. Several fenced blocks are
// ambiguous and rejected.
func ExtractCode(raw string) (string, error) {
	blocks := reFence.FindAllStringSubmatch(raw, -1)
	switch len(blocks) {
	case 1:
		body := strings.TrimSpace(blocks[0][1])
		if body == "" {
			return "", fmt.Errorf("%w: empty code block", ErrMalformedResponse)
		}
		return body + "\n", nil
	case 0:
		body := strings.TrimSpace(raw)
		if body == "" {
			return "", fmt.Errorf("%w: empty response", ErrMalformedResponse)
		}
		if len(ModuleNames(body)) == 0 {
			return "", fmt.Errorf("%w: no code block and no module declaration", ErrMalformedResponse)
		}
		return body + "\n", nil
	default:
		return "", fmt.Errorf("%w: %d code blocks, want 1", ErrMalformedResponse, len(blocks))
	}
}

// StripEnvelope drops the first and last line of raw. This is the legacy
// fence-removal heuristic; it silently eats real content when the oracle
// omits the fences.
func StripEnvelope(raw string) string {
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	if len(lines) <= 2 {
		return ""
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}
