package envfile

import (
	"strings"

	"github.com/tcserver/tcconfig/diag"
	"github.com/tcserver/tcconfig/logging"
	"github.com/tcserver/tcconfig/settings"
)

// DefaultProtected lists the flags the startup scripts own. They are hidden
// from the model and survive every rewrite unless explicitly overridden.
var DefaultProtected = []string{
	"-Dcatalina.base",
	"-Dcatalina.home",
	"-Djava.io.tmpdir",
	"-Djava.util.logging.manager",
	"-Djava.util.logging.config.file",
	"-Djava.endorsed.dirs",
	"-Djava.library.path",
}

// File reads and rewrites one environment file.
type File struct {
	Dialect Dialect
	// Protected holds option names (see OptionName). Nil means DefaultProtected.
	Protected []string
}

func (f File) protected() map[string]bool {
	names := f.Protected
	if names == nil {
		names = DefaultProtected
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[OptionName(n)] = true
	}
	return set
}

// Read extracts the Java home and the decoded, unprotected JVM flags.
func (f File) Read(data []byte, w *diag.Warnings) settings.Environment {
	table := ParseSymbols(data, f.Dialect)
	protected := f.protected()

	var flags []string
	for _, tok := range table.Expand(f.Dialect.OptionsSymbol()) {
		if !protected[OptionName(tok)] {
			flags = append(flags, tok)
		}
	}
	return settings.Environment{
		JavaHome:   strings.Join(table.Expand(javaHomeSymbol), " "),
		JvmOptions: DecodeJvmOptions(flags, w),
	}
}

type rewriteState int

const (
	stateNormal rewriteState = iota
	stateInOptionsBlock
)

// Rewrite replaces the options block and the Java home line of data with
// env, passing every other line through unchanged. Every options block is
// scanned first; the merged result is emitted where the first block was
// and later blocks are dropped. Without a block or a Java home line the
// missing assignment is appended at the end. An empty JavaHome leaves the
// Java home lines alone.
func (f File) Rewrite(data []byte, env settings.Environment) []byte {
	d := f.Dialect
	lines, crlf, finalNewline := splitLines(data, d)

	var existing []string
	layout := blockLayout{details: map[string][]string{}}
	type detail struct{ index, text string }
	var details []detail
	flagAt := map[string]string{}
	blocks, prev := 0, -2
	for i, ln := range lines {
		if !f.inOptionsBlock(ln) {
			continue
		}
		if prev != i-1 {
			blocks++
		}
		prev = i
		key, value, comment, _ := d.assignment(ln.text)
		index, suffix, _ := d.entryIndex(key)
		if suffix != "" {
			details = append(details, detail{index, suffix + "=" + strings.TrimSpace(value)})
			continue
		}
		if layout.first == "" {
			layout.first, layout.comment = ln.raw[0], comment
		}
		for _, tok := range d.tokens(value) {
			if _, ref := reference(tok); !ref {
				existing = append(existing, unquote(tok))
				if index != "" {
					flagAt[index] = unquote(tok)
				}
			}
		}
	}
	for _, dt := range details {
		if flag, ok := flagAt[dt.index]; ok {
			layout.details[flag] = append(layout.details[flag], dt.text)
		} else {
			logging.Info("EnvFile", "Dropping %s.%s.%s: no entry %s", d.OptionsSymbol(), dt.index, dt.text, dt.index)
		}
	}
	if blocks > 1 {
		logging.Info("EnvFile", "Merging %d %s blocks into the first", blocks, d.OptionsSymbol())
	}

	block := d.renderOptions(f.merge(existing, EncodeJvmOptions(env.JvmOptions)), layout)

	var out []string
	state := stateNormal
	emitted, homeDone, appended := false, env.JavaHome == "", false
	for _, ln := range lines {
		if f.inOptionsBlock(ln) {
			state = stateInOptionsBlock
			continue
		}
		if state == stateInOptionsBlock {
			if !emitted {
				out = append(out, block...)
				emitted = true
			}
			state = stateNormal
		}
		if !homeDone && f.isJavaHome(ln) {
			_, _, comment, _ := d.assignment(ln.text)
			out = append(out, d.renderJavaHome(env.JavaHome, ln.raw[0], comment))
			homeDone = true
			continue
		}
		out = append(out, ln.raw...)
	}
	switch {
	case state == stateInOptionsBlock && !emitted:
		out = append(out, block...)
	case blocks == 0 && len(EncodeJvmOptions(env.JvmOptions)) > 0:
		out = append(out, block...)
		appended = true
	}
	if !homeDone {
		out = append(out, d.renderJavaHome(env.JavaHome, "", ""))
		appended = true
	}

	nl := "\n"
	if crlf {
		nl = "\r\n"
	}
	s := strings.Join(out, nl)
	if finalNewline || appended {
		s += nl
	}
	return []byte(s)
}

// merge puts the existing protected flags that desired does not override
// before the desired flags. Desired flags repeat only when textually equal.
func (f File) merge(existing, desired []string) []string {
	protected := f.protected()
	overridden := map[string]bool{}
	for _, o := range desired {
		overridden[OptionName(o)] = true
	}

	var out []string
	seen := map[string]bool{}
	add := func(o string) {
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	for _, o := range existing {
		name := OptionName(o)
		if protected[name] && !overridden[name] {
			add(o)
		}
	}
	for _, o := range desired {
		add(o)
	}
	return out
}

// inOptionsBlock reports whether ln is an options entry or a qualifier of
// one. Both belong to the block a rewrite replaces.
func (f File) inOptionsBlock(ln logicalLine) bool {
	if isComment(ln.text) {
		return false
	}
	key, _, _, ok := f.Dialect.assignment(ln.text)
	if !ok {
		return false
	}
	if f.Dialect.symbol(key) == f.Dialect.OptionsSymbol() {
		return true
	}
	_, suffix, ok := f.Dialect.entryIndex(key)
	return ok && suffix != ""
}

func (f File) isJavaHome(ln logicalLine) bool {
	return f.symbolOf(ln) == javaHomeSymbol
}

func (f File) symbolOf(ln logicalLine) string {
	if isComment(ln.text) {
		return ""
	}
	key, _, _, ok := f.Dialect.assignment(ln.text)
	if !ok {
		return ""
	}
	return f.Dialect.symbol(key)
}
