package envfile

import (
	"fmt"
	"strconv"
	"strings"
)

// Platform names accepted by DialectFor.
const (
	PlatformPosix   = "posix"
	PlatformWindows = "windows"
)

const (
	// DefaultOptionsVariable is the setenv.sh variable holding JVM flags.
	DefaultOptionsVariable = "JVM_OPTS"
	// DefaultWrapperPrefix numbers the JVM flags of wrapper.conf.
	DefaultWrapperPrefix = "wrapper.java.additional"

	javaHomeSymbol = "JAVA_HOME"
)

// Dialect is the syntax of one platform's environment file.
type Dialect interface {
	Name() string
	// OptionsSymbol is the symbol table entry holding the JVM flags.
	OptionsSymbol() string

	continues(physical string) bool
	assignment(text string) (key, value, comment string, ok bool)
	symbol(key string) string
	// entryIndex splits a numbered options key into its number and the
	// qualifier after it, as in prefix.2.stripquotes.
	entryIndex(key string) (index, suffix string, ok bool)
	tokens(value string) []string
	renderOptions(opts []string, layout blockLayout) []string
	renderJavaHome(home, first, comment string) string
}

// blockLayout is what a rewrite keeps of the options block it replaces.
type blockLayout struct {
	first   string
	comment string
	// details holds qualifier lines, such as stripquotes=TRUE, by the flag
	// they were attached to.
	details map[string][]string
}

// DialectFor selects the dialect of a platform. variable names the options
// variable on POSIX and the entry prefix on Windows; empty selects the
// default.
func DialectFor(platform, variable string) (Dialect, error) {
	switch platform {
	case PlatformPosix:
		return Posix{Variable: variable}, nil
	case PlatformWindows:
		return Windows{Prefix: variable}, nil
	}
	return nil, fmt.Errorf("unknown platform %q", platform)
}

// Posix is the setenv.sh shell dialect: VAR="value" assignments, optionally
// exported, with backslash line continuation.
type Posix struct {
	Variable string
}

func (Posix) Name() string { return PlatformPosix }

func (p Posix) OptionsSymbol() string {
	if p.Variable == "" {
		return DefaultOptionsVariable
	}
	return p.Variable
}

func (Posix) continues(physical string) bool {
	return strings.HasSuffix(strings.TrimRight(physical, " \t"), `\`)
}

func (Posix) assignment(text string) (string, string, string, bool) {
	t := strings.TrimSpace(text)
	t = strings.TrimSpace(strings.TrimPrefix(t, "export "))
	i := strings.IndexByte(t, '=')
	if i <= 0 || !keyPattern.MatchString(t[:i]) {
		return "", "", "", false
	}
	value, comment := splitComment(t[i+1:])
	return t[:i], value, comment, true
}

// splitComment separates a trailing shell comment from a value. A # opens
// a comment only outside quotes and right after an unescaped blank. The
// comment keeps the blanks before it.
func splitComment(value string) (string, string) {
	var quote byte
	blank := false
	for i := 0; i < len(value); i++ {
		c := value[i]
		afterBlank := blank
		blank = false
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			}
		case c == '\\':
			i++
		case quote == '"':
			if c == '"' {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ' ' || c == '\t':
			blank = true
		case c == '#' && afterBlank:
			v := strings.TrimRight(value[:i], " \t")
			return v, value[len(v):]
		}
	}
	return value, ""
}

func (Posix) symbol(key string) string { return key }

func (Posix) entryIndex(string) (string, string, bool) { return "", "", false }

// tokens strips the quotes around the whole value before splitting it, so
// VAR="-a -b" yields two tokens.
func (Posix) tokens(value string) []string {
	v := strings.TrimSpace(value)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		inner := v[1 : len(v)-1]
		if v[0] == '"' && !strings.Contains(strings.ReplaceAll(inner, `\"`, ""), `"`) {
			v = strings.ReplaceAll(inner, `\"`, `"`)
		} else if v[0] == '\'' && !strings.Contains(inner, "'") {
			v = inner
		}
	}
	return SplitQuoted(v)
}

// assignPrefix returns the indentation and export keyword of first.
func assignPrefix(first string) string {
	lead := first[:len(first)-len(strings.TrimLeft(first, " \t"))]
	if strings.HasPrefix(strings.TrimSpace(first), "export ") {
		return lead + "export "
	}
	return lead
}

func (p Posix) renderOptions(opts []string, layout blockLayout) []string {
	quoted := strings.ReplaceAll(strings.Join(opts, " "), `"`, `\"`)
	return []string{fmt.Sprintf(`%s%s="%s"%s`, assignPrefix(layout.first), p.OptionsSymbol(), quoted, layout.comment)}
}

func (Posix) renderJavaHome(home, first, comment string) string {
	return fmt.Sprintf(`%s%s="%s"%s`, assignPrefix(first), javaHomeSymbol, home, comment)
}

// Windows is the Java Service Wrapper dialect of wrapper.conf: flat
// key=value lines, JVM flags as numbered prefix.N entries and environment
// variables as set.NAME entries.
type Windows struct {
	Prefix string
}

func (Windows) Name() string { return PlatformWindows }

func (w Windows) OptionsSymbol() string {
	if w.Prefix == "" {
		return DefaultWrapperPrefix
	}
	return w.Prefix
}

func (Windows) continues(string) bool { return false }

func (Windows) assignment(text string) (string, string, string, bool) {
	t := strings.TrimSpace(text)
	i := strings.IndexByte(t, '=')
	if i <= 0 {
		return "", "", "", false
	}
	key := strings.TrimSpace(t[:i])
	if !keyPattern.MatchString(key) {
		return "", "", "", false
	}
	return key, t[i+1:], "", true
}

func (w Windows) entryIndex(key string) (string, string, bool) {
	rest, ok := strings.CutPrefix(key, w.OptionsSymbol()+".")
	if !ok {
		return "", "", false
	}
	index, suffix, _ := strings.Cut(rest, ".")
	if _, err := strconv.Atoi(index); err != nil {
		return "", "", false
	}
	return index, suffix, true
}

func (w Windows) symbol(key string) string {
	if _, suffix, ok := w.entryIndex(key); ok && suffix == "" {
		return w.OptionsSymbol()
	}
	if name, ok := strings.CutPrefix(key, "set."); ok {
		return name
	}
	return key
}

// tokens keeps each entry whole: one numbered entry is one JVM flag.
func (Windows) tokens(value string) []string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return []string{v}
}

// renderOptions numbers opts from 1. Qualifier lines follow their flag
// under its new number.
func (w Windows) renderOptions(opts []string, layout blockLayout) []string {
	out := make([]string, 0, len(opts))
	for i, o := range opts {
		out = append(out, fmt.Sprintf("%s.%d=%s", w.OptionsSymbol(), i+1, o))
		for _, d := range layout.details[o] {
			out = append(out, fmt.Sprintf("%s.%d.%s", w.OptionsSymbol(), i+1, d))
		}
	}
	return out
}

func (Windows) renderJavaHome(home, _, _ string) string {
	return "set." + javaHomeSymbol + "=" + home
}
