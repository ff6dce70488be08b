package llmclient

import "unicode"

// CountTokens estimates the token count of a prompt for request logging.
// Identifiers and numbers count as one token per four characters (rounded
// up); every other non-space rune is one token.
func CountTokens(text string) int {
	n, run := 0, 0
	flush := func() {
		n += (run + 3) / 4
		run = 0
	}
	for _, r := range text {
		switch {
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			run++
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			n++
		}
	}
	flush()
	return n
}
