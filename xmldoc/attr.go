package xmldoc

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/tcserver/tcconfig/placeholder"
)

// Action is the outcome of merging one desired value into existing text.
type Action int

const (
	Write Action = iota
	Keep
	Remove
)

func (a Action) String() string {
	switch a {
	case Write:
		return "write"
	case Keep:
		return "keep"
	case Remove:
		return "remove"
	}
	return "unknown"
}

// Decision is what to do with an attribute (or parameter) value.
type Decision struct {
	Action Action
	Value  string
}

// Decide merges desired into the raw text currently on disk. A nil desired
// value means "unset"; a nil existing value means "absent". The order of
// the checks matters: a literal match wins over a placeholder-aware match,
// and paths are made relocatable only when something new is written.
func Decide(existing, desired *string, props placeholder.Properties, required bool) Decision {
	if desired == nil {
		if required {
			return Decision{Action: Write, Value: ""}
		}
		return Decision{Action: Remove}
	}
	want := *desired
	if existing == nil {
		return Decision{Action: Write, Value: want}
	}
	if want == *existing {
		return Decision{Action: Write, Value: want}
	}
	if placeholder.Resolve(*existing, props) == want {
		return Decision{Action: Keep, Value: *existing}
	}
	return Decision{Action: Write, Value: placeholder.Relativize(want, props)}
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int returns a pointer to the decimal form of v.
func Int(v int) *string {
	s := strconv.Itoa(v)
	return &s
}

// Bool returns a pointer to "true" or "false".
func Bool(v bool) *string {
	s := strconv.FormatBool(v)
	return &s
}

// Attr returns the raw attribute value, or nil when absent.
func Attr(el *etree.Element, key string) *string {
	a := el.SelectAttr(key)
	if a == nil {
		return nil
	}
	v := a.Value
	return &v
}

// MergeAttr applies Decide to a single attribute of el. Existing attributes
// keep their position.
func MergeAttr(el *etree.Element, key string, desired *string, props placeholder.Properties, required bool) Decision {
	d := Decide(Attr(el, key), desired, props, required)
	switch d.Action {
	case Write:
		el.CreateAttr(key, d.Value)
	case Remove:
		el.RemoveAttr(key)
	}
	return d
}

// Servlet init-params (web.xml) are addressed like attributes: the
// param-name is the key and the param-value text is the value.
const (
	initParamTag  = "init-param"
	paramNameTag  = "param-name"
	paramValueTag = "param-value"
)

// FindParam returns the init-param of el named key.
func FindParam(el *etree.Element, key string) *etree.Element {
	for _, p := range el.SelectElements(initParamTag) {
		if n := p.SelectElement(paramNameTag); n != nil && strings.TrimSpace(n.Text()) == key {
			return p
		}
	}
	return nil
}

// Param returns the raw text of the named init-param value, or nil.
func Param(el *etree.Element, key string) *string {
	p := FindParam(el, key)
	if p == nil {
		return nil
	}
	v := ""
	if pv := p.SelectElement(paramValueTag); pv != nil {
		v = strings.TrimSpace(pv.Text())
	}
	return &v
}

// MergeParam applies Decide to a servlet init-param. New params are
// appended after the last existing element of the servlet.
func (d *Document) MergeParam(el *etree.Element, key string, desired *string, props placeholder.Properties, required bool) Decision {
	p := FindParam(el, key)
	dec := Decide(Param(el, key), desired, props, required)
	switch dec.Action {
	case Write:
		if p == nil {
			p = etree.NewElement(initParamTag)
			d.AppendChild(el, p)
			d.AppendChild(p, textElement(paramNameTag, key))
			d.AppendChild(p, textElement(paramValueTag, dec.Value))
			return dec
		}
		pv := p.SelectElement(paramValueTag)
		if pv == nil {
			pv = etree.NewElement(paramValueTag)
			d.AppendChild(p, pv)
		}
		if strings.TrimSpace(pv.Text()) != dec.Value {
			pv.SetText(dec.Value)
		}
	case Remove:
		if p != nil {
			d.RemoveChild(p)
		}
	}
	return dec
}

func textElement(tag, text string) *etree.Element {
	el := etree.NewElement(tag)
	el.SetText(text)
	return el
}
