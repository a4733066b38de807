// Package xmldoc loads and writes XML configuration documents without
// losing what the converters do not model: comments, unknown elements and
// attributes, attribute order and the original whitespace.
package xmldoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// docMeta holds formatting hints captured at parse time.
type docMeta struct {
	indent       string // one level of indentation ("  ", "    ", "\t")
	finalNewline bool
	crlf         bool
}

// Document is one parsed XML file with exactly one expected root element.
type Document struct {
	Name string
	Root *etree.Element

	doc     *etree.Document
	meta    docMeta
	origins *origins
}

// ParseError reports a document that could not be parsed or whose root
// element was missing or repeated.
type ParseError struct {
	File  string
	Root  string
	Count int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("parse %s: expected exactly one <%s> root element, found %d", e.File, e.Root, e.Count)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads data into a Document whose root must be a single rootTag element.
func Parse(name string, data []byte, rootTag string) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &ParseError{File: name, Root: rootTag, Err: err}
	}

	var roots []*etree.Element
	for _, el := range doc.ChildElements() {
		if el.Tag == rootTag {
			roots = append(roots, el)
		}
	}
	if len(roots) != 1 {
		return nil, &ParseError{File: name, Root: rootTag, Count: len(roots)}
	}

	return &Document{
		Name:    name,
		Root:    roots[0],
		doc:     doc,
		meta:    captureMeta(data),
		origins: mapOrigins(doc, data),
	}, nil
}

func captureMeta(data []byte) docMeta {
	return docMeta{
		indent:       detectIndent(data),
		finalNewline: bytes.HasSuffix(data, []byte("\n")),
		crlf:         bytes.Contains(data, []byte("\r\n")),
	}
}

// Marshal serializes the document. Parsed content that was not edited is
// reproduced byte for byte; an unedited document yields its input.
func (d *Document) Marshal() ([]byte, error) {
	if d.origins != nil {
		return d.splice(), nil
	}
	out, err := d.doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", d.Name, err)
	}
	if d.meta.finalNewline && !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	if d.meta.crlf {
		out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	return out, nil
}

// Indent returns the detected indentation unit.
func (d *Document) Indent() string { return d.meta.indent }

// detectIndent finds the smallest non-zero leading whitespace of any line
// that starts an element. Tabs win when the first indented line uses one.
func detectIndent(data []byte) string {
	lines := bytes.Split(data, []byte("\n"))
	smallest := 0
	for _, ln := range lines {
		trimmed := bytes.TrimLeft(ln, " \t")
		if len(trimmed) == 0 || trimmed[0] != '<' {
			continue
		}
		lead := ln[:len(ln)-len(trimmed)]
		if len(lead) == 0 {
			continue
		}
		if lead[0] == '\t' {
			return "\t"
		}
		n := leadingSpaces(lead)
		if smallest == 0 || n < smallest {
			smallest = n
		}
	}
	if smallest == 0 {
		smallest = 2
	}
	return strings.Repeat(" ", smallest)
}

// leadingSpaces counts leading space characters.
func leadingSpaces(line []byte) int {
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i
}

// precedingWhitespace returns the whitespace text token directly before el.
func precedingWhitespace(el *etree.Element) (*etree.CharData, bool) {
	parent := el.Parent()
	if parent == nil {
		return nil, false
	}
	i := el.Index()
	if i <= 0 {
		return nil, false
	}
	cd, ok := parent.Child[i-1].(*etree.CharData)
	if !ok || !isBlank(cd) {
		return nil, false
	}
	return cd, true
}

// isBlank reports whitespace-only text. Tokens created with etree.NewText
// never carry the parser's whitespace flag, so the data is checked instead.
func isBlank(cd *etree.CharData) bool {
	return !cd.IsCData() && strings.TrimSpace(cd.Data) == ""
}

// lineIndent extracts the text after the last newline of a whitespace run.
func lineIndent(ws string) string {
	if i := strings.LastIndexByte(ws, '\n'); i >= 0 {
		return ws[i+1:]
	}
	return ws
}

// AppendChild adds child as the last element of parent and formats it the
// way existing siblings are formatted.
func (d *Document) AppendChild(parent, child *etree.Element) {
	var last *etree.Element
	if kids := parent.ChildElements(); len(kids) > 0 {
		last = kids[len(kids)-1]
	}

	if last != nil {
		d.InsertAfter(last, child)
		return
	}

	// No element children yet: drop whitespace-only text and lay out
	// the child on its own line followed by the parent's closing indent.
	for i := len(parent.Child) - 1; i >= 0; i-- {
		if cd, ok := parent.Child[i].(*etree.CharData); ok && isBlank(cd) {
			parent.RemoveChildAt(i)
		}
	}
	parent.AddChild(etree.NewText("\n" + d.childIndent(parent)))
	parent.AddChild(child)
	parent.AddChild(etree.NewText("\n" + d.ownIndent(parent)))
}

// InsertAfter places child directly after ref, introduced by the same
// whitespace that introduces ref.
func (d *Document) InsertAfter(ref, child *etree.Element) {
	parent := ref.Parent()
	ws := "\n" + d.childIndent(parent)
	if cd, ok := precedingWhitespace(ref); ok {
		ws = cd.Data
	}
	idx := ref.Index() + 1
	parent.InsertChildAt(idx, etree.NewText(ws))
	parent.InsertChildAt(idx+1, child)
}

// RemoveChild removes child from its parent together with the whitespace
// that introduced it, so no blank line is left behind.
func (d *Document) RemoveChild(child *etree.Element) {
	parent := child.Parent()
	if parent == nil {
		return
	}
	if cd, ok := precedingWhitespace(child); ok {
		parent.RemoveChild(cd)
	}
	parent.RemoveChild(child)
}

func (d *Document) ownIndent(el *etree.Element) string {
	if cd, ok := precedingWhitespace(el); ok {
		return lineIndent(cd.Data)
	}
	return ""
}

func (d *Document) childIndent(parent *etree.Element) string {
	return d.ownIndent(parent) + d.meta.indent
}

// ChildElement returns the first child of parent named tag, creating and
// appending it when absent.
func (d *Document) ChildElement(parent *etree.Element, tag string) *etree.Element {
	if el := parent.SelectElement(tag); el != nil {
		return el
	}
	el := etree.NewElement(tag)
	d.AppendChild(parent, el)
	return el
}
