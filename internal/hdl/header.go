package hdl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoModule   = errors.New("hdl: no module declaration found")
	ErrBadHeader  = errors.New("hdl: malformed module header")
	reDecl        = regexp.MustCompile(`\b(input|output|inout)\b([^;]*);`)
	reWidth       = regexp.MustCompile(`\[[^\]]*\]`)
	directionWord = map[string]bool{"input": true, "output": true, "inout": true}
	// Net/variable kinds and qualifiers that may precede a port name.
	kindWord = map[string]bool{
		"wire": true, "reg": true, "logic": true, "signed": true, "unsigned": true,
		"tri": true, "var": true, "bit": true, "integer": true, "int": true,
		"wand": true, "wor": true, "supply0": true, "supply1": true,
	}
)

// Port is one entry of a module's port list.
type Port struct {
	Name      string
	Direction string // input, output, inout; empty when undeclared
	Width     string // bracketed range such as "[7:0]"; empty for scalars
}

// Header is the interface of a single module.
type Header struct {
	Name   string
	Params string // raw #( ... ) text, empty if none
	Ports  []Port
}

// PortNames returns the port identifiers in declaration order.
func (h Header) PortNames() []string {
	out := make([]string, 0, len(h.Ports))
	for _, p := range h.Ports {
		out = append(out, p.Name)
	}
	return out
}

// String renders the header in ANSI style, terminated with ");".
func (h Header) String() string {
	var sb strings.Builder
	sb.WriteString("module ")
	sb.WriteString(h.Name)
	if h.Params != "" {
		sb.WriteString(" ")
		sb.WriteString(h.Params)
	}
	sb.WriteString(" (")
	for i, p := range h.Ports {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("\n    ")
		parts := []string{}
		if p.Direction != "" {
			parts = append(parts, p.Direction)
		}
		if p.Width != "" {
			parts = append(parts, p.Width)
		}
		parts = append(parts, p.Name)
		sb.WriteString(strings.Join(parts, " "))
	}
	if len(h.Ports) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(");")
	return sb.String()
}

// ParseHeader parses the first module declaration in src. Both ANSI
// (directions in the port list) and non-ANSI (directions declared in the
// body) styles are supported.
func ParseHeader(src string) (Header, error) {
	text := code(src)
	h, list, _, end, err := locate(text)
	if err != nil {
		return h, err
	}
	body := text[end:]
	if i := strings.Index(body, "endmodule"); i >= 0 {
		body = body[:i]
	}

	var dir, width string
	for _, item := range splitTopLevel(list) {
		fields := strings.Fields(reWidth.ReplaceAllStringFunc(item, func(w string) string {
			return " " + strings.Join(strings.Fields(w), "") + " "
		}))
		if len(fields) == 0 {
			continue
		}
		// A new direction keyword resets the sticky direction/width.
		if directionWord[fields[0]] {
			dir, width = fields[0], ""
		}
		name := ""
	fieldLoop:
		for _, f := range fields {
			switch {
			case directionWord[f], kindWord[f]:
			case strings.HasPrefix(f, "["):
				width = f
			case f == "=":
				break fieldLoop
			default:
				if reIdent.MatchString(f) {
					name = f
				}
			}
		}
		if name == "" {
			continue
		}
		h.Ports = append(h.Ports, Port{Name: name, Direction: dir, Width: width})
	}

	// Non-ANSI: fill directions from body declarations.
	decls := map[string]Port{}
	for _, m := range reDecl.FindAllStringSubmatch(body, -1) {
		w := reWidth.FindString(m[2])
		names := reWidth.ReplaceAllString(m[2], " ")
		for _, n := range strings.Split(names, ",") {
			fs := strings.Fields(n)
			var id string
			for _, f := range fs {
				if f == "=" {
					break
				}
				if !kindWord[f] && reIdent.MatchString(f) {
					id = f
				}
			}
			if id != "" {
				decls[id] = Port{Name: id, Direction: m[1], Width: strings.Join(strings.Fields(w), "")}
			}
		}
	}
	for i, p := range h.Ports {
		if p.Direction != "" {
			continue
		}
		if d, ok := decls[p.Name]; ok {
			h.Ports[i].Direction = d.Direction
			h.Ports[i].Width = d.Width
		}
	}
	return h, nil
}

// HeaderText returns the first module declaration in src, from the module
// keyword through the ';' closing its port list, with comments removed.
// Text before and after the declaration is dropped.
func HeaderText(src string) (string, error) {
	text := code(src)
	_, _, start, end, err := locate(text)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(text[start:end]), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, ";") {
		out += ";"
	}
	return out, nil
}

// locate finds the first module declaration in text, which must already be
// stripped of comments and string contents. It returns the name and
// parameters in h, the raw port list, and the offsets of the declaration.
// text[end:] is what follows the header.
func locate(text string) (h Header, list string, start, end int, err error) {
	loc := reModule.FindStringSubmatchIndex(text)
	if loc == nil {
		return h, "", 0, 0, ErrNoModule
	}
	start = loc[2]
	h.Name = text[loc[4]:loc[5]]
	i := skipSpace(text, loc[5])

	if i < len(text) && text[i] == '#' {
		open := strings.IndexByte(text[i:], '(')
		if open < 0 {
			return h, "", 0, 0, fmt.Errorf("%w: unterminated parameter list in %s", ErrBadHeader, h.Name)
		}
		rp, ok := matchParen(text, i+open)
		if !ok {
			return h, "", 0, 0, fmt.Errorf("%w: unterminated parameter list in %s", ErrBadHeader, h.Name)
		}
		h.Params = strings.Join(strings.Fields(text[i:rp+1]), " ")
		i = skipSpace(text, rp+1)
	}
	switch {
	case i < len(text) && text[i] == ';':
		return h, "", start, i + 1, nil
	case i < len(text) && text[i] == '(':
	default:
		return h, "", 0, 0, fmt.Errorf("%w: expected port list after %s", ErrBadHeader, h.Name)
	}
	rp, ok := matchParen(text, i)
	if !ok {
		return h, "", 0, 0, fmt.Errorf("%w: unterminated port list in %s", ErrBadHeader, h.Name)
	}
	list = text[i+1 : rp]
	end = rp + 1
	if j := skipSpace(text, end); j < len(text) && text[j] == ';' {
		end = j + 1
	}
	return h, list, start, end, nil
}

func skipSpace(s string, i int) int {
	for i < len(s) && strings.IndexByte(" \t\r\n", s[i]) >= 0 {
		i++
	}
	return i
}

// matchParen returns the index of the parenthesis closing s[open].
func matchParen(s string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// splitTopLevel splits s on commas that are not nested in (), [] or {}.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}
