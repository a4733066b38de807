// Package diag collects recoverable conditions found while reading
// configuration. Warnings never abort an operation; they are logged when
// recorded and handed back to the caller for inspection.
package diag

import (
	"fmt"
	"strings"

	"github.com/tcserver/tcconfig/logging"
)

// Kind classifies a warning.
type Kind string

const (
	// NumericFormat marks a value that should have been numeric but was not.
	// The field keeps its default.
	NumericFormat Kind = "numeric-format"
	// BooleanFormat marks a value that was neither "true" nor "false". The
	// field keeps its default.
	BooleanFormat Kind = "boolean-format"
	// Ignored marks input that was skipped without changing the model.
	Ignored Kind = "ignored"
)

// Warning is one recoverable condition.
type Warning struct {
	Kind    Kind
	Subject string // file/element/attribute or flag the warning is about
	Value   string
	Err     error
}

func (w Warning) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", w.Kind, w.Subject)
	if w.Value != "" {
		fmt.Fprintf(&b, " (value %q)", w.Value)
	}
	if w.Err != nil {
		fmt.Fprintf(&b, ": %v", w.Err)
	}
	return b.String()
}

// Warnings is the side channel for recoverable conditions. A nil *Warnings
// is valid and discards everything except the log line.
type Warnings struct {
	items []Warning
}

// Add records and logs a warning.
func (ws *Warnings) Add(w Warning) {
	logging.Warn("Diag", "%s", w.String())
	if ws == nil {
		return
	}
	ws.items = append(ws.items, w)
}

// NumericFormat records a value that failed numeric parsing.
func (ws *Warnings) NumericFormat(subject, value string, err error) {
	ws.Add(Warning{Kind: NumericFormat, Subject: subject, Value: value, Err: err})
}

// BooleanFormat records a value that failed boolean parsing.
func (ws *Warnings) BooleanFormat(subject, value string) {
	ws.Add(Warning{Kind: BooleanFormat, Subject: subject, Value: value})
}

// Items returns a copy of the recorded warnings.
func (ws *Warnings) Items() []Warning {
	if ws == nil {
		return nil
	}
	return append([]Warning(nil), ws.items...)
}

// Len returns the number of recorded warnings.
func (ws *Warnings) Len() int {
	if ws == nil {
		return 0
	}
	return len(ws.items)
}

// OfKind returns the warnings of kind k.
func (ws *Warnings) OfKind(k Kind) []Warning {
	var out []Warning
	for _, w := range ws.Items() {
		if w.Kind == k {
			out = append(out, w)
		}
	}
	return out
}
