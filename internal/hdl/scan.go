// Package hdl does lightweight structural analysis of Verilog source text:
// module declarations, header ports and system-task calls. It is not a
// parser; it only needs to be good enough to pre-check oracle output before
// an external compiler sees it.
package hdl

import (
	"regexp"
	"strings"
)

var (
	// A declaration starts a statement and its name is followed by a
	// parameter list, port list or ';'. Group 1 is the keyword, group 2 the name.
	reModule = regexp.MustCompile(`(?m)(?:^|;|\bendmodule\b)[ \t\r\n]*((?:macro)?module)\s+([A-Za-z_][A-Za-z0-9_$]*)\s*[#(;]`)
	reIdent  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
)

// StripComments removes // and /* */ comments while leaving string
// literals intact. Newlines inside block comments are preserved so line
// numbers stay stable.
func StripComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	inStr, inLine, inBlock := false, false, false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inLine:
			if c == '\n' {
				inLine = false
				sb.WriteByte(c)
			}
		case inBlock:
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				inBlock = false
				i++
			} else if c == '\n' {
				sb.WriteByte(c)
			}
		case inStr:
			sb.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				sb.WriteByte(src[i+1])
				i++
			} else if c == '"' {
				inStr = false
			}
		default:
			if c == '/' && i+1 < len(src) && src[i+1] == '/' {
				inLine = true
				i++
				continue
			}
			if c == '/' && i+1 < len(src) && src[i+1] == '*' {
				inBlock = true
				i++
				continue
			}
			if c == '"' {
				inStr = true
			}
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// stripStrings blanks the contents of string literals.
func stripStrings(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	inStr := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inStr {
			if c == '\\' && i+1 < len(src) {
				i++
				continue
			}
			if c == '"' {
				inStr = false
				sb.WriteByte(c)
			}
			continue
		}
		if c == '"' {
			inStr = true
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// code returns src with comments and string contents removed.
func code(src string) string {
	return stripStrings(StripComments(src))
}

// ModuleNames lists the identifiers of every module declaration in src,
// in order of appearance.
func ModuleNames(src string) []string {
	var out []string
	for _, m := range reModule.FindAllStringSubmatch(code(src), -1) {
		out = append(out, m[2])
	}
	return out
}

// HasSystemCall reports whether src invokes the system task name
// (for example "$finish") outside comments and strings.
func HasSystemCall(src, name string) bool {
	if !strings.HasPrefix(name, "$") {
		name = "$" + name
	}
	re := regexp.MustCompile(regexp.QuoteMeta(name) + `\b`)
	return re.MatchString(code(src))
}

// HasStringLiteral reports whether some string literal in src that is not
// commented out contains lit.
func HasStringLiteral(src, lit string) bool {
	for _, s := range StringLiterals(src) {
		if strings.Contains(s, lit) {
			return true
		}
	}
	return false
}

// StringLiterals returns the unescaped-as-written contents of every string
// literal outside comments.
func StringLiterals(src string) []string {
	src = StripComments(src)
	var out []string
	var cur strings.Builder
	inStr := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if !inStr {
			if c == '"' {
				inStr = true
				cur.Reset()
			}
			continue
		}
		if c == '\\' && i+1 < len(src) {
			cur.WriteByte(c)
			cur.WriteByte(src[i+1])
			i++
			continue
		}
		if c == '"' {
			inStr = false
			out = append(out, cur.String())
			continue
		}
		cur.WriteByte(c)
	}
	return out
}
