// Package convert projects settings sections onto XML subtrees and back.
//
// Reads resolve every value through the property set; a missing required
// value is an error, a malformed number is a warning and keeps the default.
// Writes go through xmldoc.Decide so placeholders and unknown content
// survive, and values equal to their default are not added to elements
// that do not already carry them.
package convert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/tcserver/tcconfig/diag"
	"github.com/tcserver/tcconfig/placeholder"
	"github.com/tcserver/tcconfig/xmldoc"
)

// AttributeNotFoundError reports a required value absent after resolution.
type AttributeNotFoundError struct {
	File      string
	Element   string
	Attribute string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("%s: <%s> is missing required attribute %q", e.File, e.Element, e.Attribute)
}

// Context carries what every converter needs for one document. It holds no
// state that outlives the call.
type Context struct {
	Doc   *xmldoc.Document
	Props placeholder.Properties
	Warn  *diag.Warnings
}

// store abstracts where a named value lives: an element attribute or a
// servlet init-param.
type store interface {
	raw(key string) *string
	merge(key string, desired *string, required bool)
	describe() string
}

type attrStore struct {
	c  *Context
	el *etree.Element
}

func (s attrStore) raw(key string) *string { return xmldoc.Attr(s.el, key) }

func (s attrStore) merge(key string, desired *string, required bool) {
	xmldoc.MergeAttr(s.el, key, desired, s.c.Props, required)
}

func (s attrStore) describe() string { return s.el.Tag }

type paramStore struct {
	c       *Context
	servlet *etree.Element
	name    string
}

func (s paramStore) raw(key string) *string { return xmldoc.Param(s.servlet, key) }

func (s paramStore) merge(key string, desired *string, required bool) {
	s.c.Doc.MergeParam(s.servlet, key, desired, s.c.Props, required)
}

func (s paramStore) describe() string { return "servlet " + s.name }

// reader reads typed values from a store. The first hard error sticks and
// later calls become no-ops returning defaults.
type reader struct {
	c   *Context
	s   store
	err error
}

func newAttrReader(c *Context, el *etree.Element) *reader {
	return &reader{c: c, s: attrStore{c: c, el: el}}
}

func (r *reader) value(key string, required bool) (string, bool) {
	if r.err != nil {
		return "", false
	}
	raw := r.s.raw(key)
	if raw == nil {
		if required {
			r.err = &AttributeNotFoundError{File: r.c.Doc.Name, Element: r.s.describe(), Attribute: key}
		}
		return "", false
	}
	return strings.TrimSpace(placeholder.Resolve(*raw, r.c.Props)), true
}

func (r *reader) str(key string, def string, required bool) string {
	v, ok := r.value(key, required)
	if !ok {
		return def
	}
	return v
}

func (r *reader) integer(key string, def int, required bool) int {
	v, ok := r.value(key, required)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.c.Warn.NumericFormat(fmt.Sprintf("%s: %s@%s", r.c.Doc.Name, r.s.describe(), key), v, err)
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := r.value(key, false)
	if !ok {
		return def
	}
	b, valid := parseBool(v)
	if !valid {
		r.c.Warn.BooleanFormat(fmt.Sprintf("%s: %s@%s", r.c.Doc.Name, r.s.describe(), key), v)
		return def
	}
	return b
}

func parseBool(v string) (value, valid bool) {
	switch {
	case strings.EqualFold(v, "true"):
		return true, true
	case strings.EqualFold(v, "false"):
		return false, true
	}
	return false, false
}

func isInt(v string) bool {
	_, err := strconv.Atoi(v)
	return err == nil
}

func isBool(v string) bool {
	_, valid := parseBool(v)
	return valid
}

// writer merges typed values into a store.
type writer struct {
	c *Context
	s store
}

func newAttrWriter(c *Context, el *etree.Element) writer {
	return writer{c: c, s: attrStore{c: c, el: el}}
}

// put merges desired unless the field is at its default and the element
// either lacks the value or carries one that could not be read (the read
// fell back to the default). Unreadable values, such as a placeholder the
// property set cannot resolve, are kept as they are.
func (w writer) put(key string, desired *string, isDefault, required bool, valid func(string) bool) {
	raw := w.s.raw(key)
	if isDefault && !required && raw == nil {
		return
	}
	if isDefault && raw != nil && valid != nil && !valid(strings.TrimSpace(placeholder.Resolve(*raw, w.c.Props))) {
		return
	}
	w.s.merge(key, desired, required)
}

func (w writer) str(key, v, def string, required bool) {
	w.put(key, xmldoc.Str(v), v == def, required, nil)
}

func (w writer) integer(key string, v, def int, required bool) {
	w.put(key, xmldoc.Int(v), v == def, required, isInt)
}

// optInt writes v, treating zero as unset.
func (w writer) optInt(key string, v int) {
	if v == 0 {
		w.put(key, nil, true, false, isInt)
		return
	}
	w.put(key, xmldoc.Int(v), false, false, nil)
}

func (w writer) boolean(key string, v, def bool) {
	w.put(key, xmldoc.Bool(v), v == def, false, isBool)
}
