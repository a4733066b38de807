package xmldoc

import (
	"bytes"
	"encoding/xml"
	"io"
	"slices"

	"github.com/beevik/etree"
)

// span is a half-open byte range of the original input.
type span struct{ start, end int }

// tokenOrigin remembers where a parsed non-element token came from and what
// it held, so an untouched token can be copied back byte for byte.
type tokenOrigin struct {
	span
	data string
}

// elementOrigin remembers an element's start and end tags and the
// attributes it was parsed with. A self-closing element has an empty close
// span.
type elementOrigin struct {
	open, close span
	attrs       []etree.Attr
}

func (o *elementOrigin) selfClosing() bool { return o.close.start == o.close.end }

// origins maps every parsed token to its position in src.
type origins struct {
	src      []byte
	elements map[*etree.Element]*elementOrigin
	tokens   map[etree.Token]tokenOrigin
}

// mapOrigins pairs the tokens of doc with the raw token stream of data.
// etree builds one token per raw token in stream order, so a second pass of
// the same decoder yields the spans. It returns nil when the two disagree;
// the document is then serialized whole.
func mapOrigins(doc *etree.Document, data []byte) *origins {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = !doc.ReadSettings.Permissive
	dec.Entity = doc.ReadSettings.Entity
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	type rawToken struct {
		span
		closing bool
	}
	var raw []rawToken
	for {
		start := int(dec.InputOffset())
		t, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil
		}
		_, closing := t.(xml.EndElement)
		raw = append(raw, rawToken{span{start, int(dec.InputOffset())}, closing})
	}
	if len(raw) == 0 || raw[0].start != 0 || raw[len(raw)-1].end != len(data) {
		return nil
	}

	o := &origins{
		src:      data,
		elements: map[*etree.Element]*elementOrigin{},
		tokens:   map[etree.Token]tokenOrigin{},
	}
	next := 0
	var walk func(parent *etree.Element) bool
	walk = func(parent *etree.Element) bool {
		for _, tok := range parent.Child {
			if next >= len(raw) || raw[next].closing {
				return false
			}
			sp := raw[next].span
			next++
			el, ok := tok.(*etree.Element)
			if !ok {
				o.tokens[tok] = tokenOrigin{span: sp, data: tokenData(tok)}
				continue
			}
			eo := &elementOrigin{open: sp, attrs: slices.Clone(el.Attr)}
			if !walk(el) || next >= len(raw) || !raw[next].closing {
				return false
			}
			eo.close = raw[next].span
			next++
			o.elements[el] = eo
		}
		return true
	}
	if !walk(&doc.Element) || next != len(raw) {
		return nil
	}
	return o
}

// tokenData is the content of a non-element token used to detect edits.
func tokenData(t etree.Token) string {
	switch t := t.(type) {
	case *etree.CharData:
		if t.IsCData() {
			return "cdata:" + t.Data
		}
		return "text:" + t.Data
	case *etree.Comment:
		return t.Data
	case *etree.Directive:
		return t.Data
	case *etree.ProcInst:
		return t.Target + " " + t.Inst
	}
	return ""
}

// splice writes the document: tokens that were parsed and not edited are
// copied from the original input, start tags of edited elements are
// patched attribute by attribute, and new tokens are serialized.
func (d *Document) splice() []byte {
	var b bytes.Buffer
	for _, t := range d.doc.Child {
		d.writeToken(&b, t)
	}
	return b.Bytes()
}

func (d *Document) writeToken(b *bytes.Buffer, t etree.Token) {
	if el, ok := t.(*etree.Element); ok {
		if eo, ok := d.origins.elements[el]; ok {
			d.writeElement(b, el, eo)
			return
		}
	} else if to, ok := d.origins.tokens[t]; ok && to.data == tokenData(t) {
		b.Write(d.origins.src[to.start:to.end])
		return
	}

	var fresh bytes.Buffer
	t.WriteTo(&fresh, &d.doc.WriteSettings)
	out := fresh.Bytes()
	if d.meta.crlf {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	b.Write(out)
}

func (d *Document) writeElement(b *bytes.Buffer, el *etree.Element, eo *elementOrigin) {
	open := d.origins.src[eo.open.start:eo.open.end]
	if !sameAttrs(eo.attrs, el.Attr) {
		open = d.patchStartTag(open, eo.attrs, el)
	}
	if eo.selfClosing() {
		if len(el.Child) == 0 {
			b.Write(open)
			return
		}
		open = openForm(open)
	}
	b.Write(open)
	for _, c := range el.Child {
		d.writeToken(b, c)
	}
	if eo.selfClosing() {
		b.WriteString("</" + el.FullTag() + ">")
		return
	}
	b.Write(d.origins.src[eo.close.start:eo.close.end])
}

func sameAttrs(a, b []etree.Attr) bool {
	return slices.EqualFunc(a, b, func(x, y etree.Attr) bool {
		return x.Space == y.Space && x.Key == y.Key && x.Value == y.Value
	})
}

func findAttr(attrs []etree.Attr, space, key string) *etree.Attr {
	for i := range attrs {
		if attrs[i].Space == space && attrs[i].Key == key {
			return &attrs[i]
		}
	}
	return nil
}

// openForm turns a self-closing start tag into an opening one.
func openForm(tag []byte) []byte {
	s := bytes.TrimSuffix(tag, []byte(">"))
	s = bytes.TrimSuffix(s, []byte("/"))
	s = bytes.TrimRight(s, " \t\r\n")
	return append(slices.Clip(s), '>')
}

// attrText locates one attribute inside a raw start tag. lead is where the
// whitespace before the name starts.
type attrText struct {
	lead, name, end int
	key             string
	quote           byte
}

// scanStartTag finds the attributes of a raw start tag and the offset of
// its closing "/>" or ">" run, including the whitespace before it.
func scanStartTag(tag []byte) (nameEnd int, attrs []attrText, tail int, ok bool) {
	isSpace := func(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }
	i := 1
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' {
		i++
	}
	nameEnd = i
	for {
		lead := i
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) {
			return 0, nil, 0, false
		}
		if tag[i] == '/' || tag[i] == '>' {
			return nameEnd, attrs, lead, true
		}
		name := i
		for i < len(tag) && tag[i] != '=' && !isSpace(tag[i]) {
			i++
		}
		key := string(tag[name:i])
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] != '=' {
			return 0, nil, 0, false
		}
		i++
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || (tag[i] != '"' && tag[i] != '\'') {
			return 0, nil, 0, false
		}
		q := tag[i]
		closing := bytes.IndexByte(tag[i+1:], q)
		if closing < 0 {
			return 0, nil, 0, false
		}
		i += closing + 2
		attrs = append(attrs, attrText{lead: lead, name: name, end: i, key: key, quote: q})
	}
}

// patchStartTag rewrites only the attributes of tag that changed between
// old and el.Attr. Kept attributes keep their text, including spacing and
// quotes; new attributes follow the last one, on a new line when the tag
// already spans several lines.
func (d *Document) patchStartTag(tag []byte, old []etree.Attr, el *etree.Element) []byte {
	nameEnd, texts, tail, ok := scanStartTag(tag)
	if ok && len(texts) == len(old) {
		for i, t := range texts {
			if t.key != old[i].FullKey() {
				ok = false
			}
		}
	} else {
		ok = false
	}

	var b bytes.Buffer
	if !ok {
		// Unrecognized layout: regenerate the attribute list only.
		b.WriteString("<" + el.FullTag())
		for i := range el.Attr {
			b.WriteByte(' ')
			el.Attr[i].WriteTo(&b, &d.doc.WriteSettings)
		}
		end := bytes.LastIndexByte(tag, '>')
		if end > 0 && tag[end-1] == '/' {
			b.WriteString("/>")
		} else {
			b.WriteByte('>')
		}
		return b.Bytes()
	}

	b.Write(tag[:nameEnd])
	sep := []byte(" ")
	for i, t := range texts {
		ws := tag[t.lead:t.name]
		if bytes.ContainsAny(ws, "\n") {
			sep = ws
		}
		a := findAttr(el.Attr, old[i].Space, old[i].Key)
		switch {
		case a == nil:
		case a.Value == old[i].Value:
			b.Write(tag[t.lead:t.end])
		default:
			b.Write(ws)
			settings := d.doc.WriteSettings
			settings.AttrSingleQuote = t.quote == '\''
			a.WriteTo(&b, &settings)
		}
	}
	for i := range el.Attr {
		a := &el.Attr[i]
		if findAttr(old, a.Space, a.Key) != nil {
			continue
		}
		b.Write(sep)
		a.WriteTo(&b, &d.doc.WriteSettings)
	}
	b.Write(tag[tail:])
	return b.Bytes()
}
