// Package envfile reads and rewrites the platform environment file that
// carries JAVA_HOME and the JVM command line: bin/setenv.sh on POSIX
// systems and the service wrapper's conf/wrapper.conf on Windows.
package envfile

import (
	"regexp"
	"strings"
	"unicode"
)

// SymbolTable maps a variable to its raw tokens in assignment order.
// Repeated assignments append to the same entry.
type SymbolTable map[string][]string

// logicalLine is one assignment-sized unit of the file: a physical line,
// or a run of physical lines joined by continuation markers.
type logicalLine struct {
	text string
	raw  []string
}

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// splitLines breaks data into logical lines. It reports whether the file
// used CRLF line endings and whether it ended with a newline.
func splitLines(data []byte, d Dialect) (lines []logicalLine, crlf, finalNewline bool) {
	s := string(data)
	crlf = strings.Contains(s, "\r\n")
	if crlf {
		s = strings.ReplaceAll(s, "\r\n", "\n")
	}
	finalNewline = strings.HasSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" && !finalNewline {
		return nil, crlf, finalNewline
	}

	var cur *logicalLine
	for _, phys := range strings.Split(s, "\n") {
		if cur == nil {
			cur = &logicalLine{}
		}
		cur.raw = append(cur.raw, phys)
		body := phys
		more := !isComment(phys) && d.continues(phys)
		if more {
			body = strings.TrimSuffix(strings.TrimRight(phys, " \t"), `\`)
		}
		cur.text += body
		if !more {
			lines = append(lines, *cur)
			cur = nil
		}
	}
	if cur != nil {
		lines = append(lines, *cur)
	}
	return lines, crlf, finalNewline
}

func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// ParseSymbols builds the symbol table of an environment file. Lines that
// are not KEY=VALUE assignments are ignored.
func ParseSymbols(data []byte, d Dialect) SymbolTable {
	lines, _, _ := splitLines(data, d)
	table := SymbolTable{}
	for _, ln := range lines {
		if isComment(ln.text) {
			continue
		}
		key, value, _, ok := d.assignment(ln.text)
		if !ok {
			continue
		}
		sym := d.symbol(key)
		table[sym] = append(table[sym], d.tokens(value)...)
	}
	return table
}

// Expand returns the distinct values a variable expands to, in the order
// first encountered. A token that is a whole $NAME or ${NAME} reference is
// replaced by the expansion of NAME, computed on a copy of the table from
// which that token has been removed, so every self or mutual reference
// terminates.
func (t SymbolTable) Expand(name string) []string {
	e := &expansion{
		seen:      map[string]bool{},
		reachable: t.reachable(name),
	}
	t.expand(name, e)
	return e.out
}

type expansion struct {
	out       []string
	seen      map[string]bool
	reachable int
}

func (e *expansion) done() bool { return len(e.seen) == e.reachable }

func (t SymbolTable) expand(name string, e *expansion) {
	toks := t[name]
	for i, tok := range toks {
		if e.done() {
			return
		}
		ref, ok := reference(tok)
		if !ok {
			v := unquote(tok)
			if !e.seen[v] {
				e.seen[v] = true
				e.out = append(e.out, v)
			}
			continue
		}
		t.without(name, i).expand(ref, e)
	}
}

// without copies the table, dropping the i-th token of name.
func (t SymbolTable) without(name string, i int) SymbolTable {
	cp := make(SymbolTable, len(t))
	for k, v := range t {
		cp[k] = v
	}
	toks := t[name]
	trimmed := make([]string, 0, len(toks)-1)
	trimmed = append(trimmed, toks[:i]...)
	cp[name] = append(trimmed, toks[i+1:]...)
	return cp
}

// reachable counts the distinct literal values reachable from name. Removing
// reference tokens never removes literals, so once that many values have
// been produced the rest of the expansion can only repeat them.
func (t SymbolTable) reachable(name string) int {
	values := map[string]bool{}
	visited := map[string]bool{}
	queue := []string{name}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true
		for _, tok := range t[n] {
			if ref, ok := reference(tok); ok {
				queue = append(queue, ref)
				continue
			}
			values[unquote(tok)] = true
		}
	}
	return len(values)
}

var refPattern = regexp.MustCompile(`^\$(?:([A-Za-z_][A-Za-z0-9_]*)|\{([A-Za-z_][A-Za-z0-9_.]*)\})$`)

// reference reports whether tok, possibly wrapped in double quotes, is a
// whole-token variable reference and returns the variable name.
func reference(tok string) (string, bool) {
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		tok = tok[1 : len(tok)-1]
	}
	m := refPattern.FindStringSubmatch(tok)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}

// unquote strips one pair of matching quotes surrounding the whole token.
func unquote(tok string) string {
	if len(tok) >= 2 && (tok[0] == '"' || tok[0] == '\'') && tok[len(tok)-1] == tok[0] {
		return tok[1 : len(tok)-1]
	}
	return tok
}

// SplitQuoted splits s on whitespace that is outside a matched pair of
// single or double quotes. Quote characters stay part of their token.
func SplitQuoted(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				out = append(out, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		out = append(out, cur.String())
	}
	return out
}
