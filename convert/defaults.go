package convert

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/tcserver/tcconfig/settings"
)

const (
	jspServlet     = "jsp"
	defaultServlet = "default"
)

// findServlet returns the servlet element of web.xml named name.
func findServlet(c *Context, name string) (*etree.Element, error) {
	for _, s := range c.Doc.Root.SelectElements("servlet") {
		if n := s.SelectElement("servlet-name"); n != nil && strings.TrimSpace(n.Text()) == name {
			return s, nil
		}
	}
	return nil, &AttributeNotFoundError{File: c.Doc.Name, Element: "servlet[" + name + "]", Attribute: "servlet-name"}
}

func paramReader(c *Context, servlet *etree.Element, name string) *reader {
	return &reader{c: c, s: paramStore{c: c, servlet: servlet, name: name}}
}

func paramWriter(c *Context, servlet *etree.Element, name string) writer {
	return writer{c: c, s: paramStore{c: c, servlet: servlet, name: name}}
}

// ReadDefaults reads the jsp and default servlet init-params of web.xml.
func ReadDefaults(c *Context) (settings.ServerDefaults, error) {
	jspEl, err := findServlet(c, jspServlet)
	if err != nil {
		return settings.ServerDefaults{}, err
	}
	staticEl, err := findServlet(c, defaultServlet)
	if err != nil {
		return settings.ServerDefaults{}, err
	}

	dj := settings.DefaultJsp()
	r := paramReader(c, jspEl, jspServlet)
	jsp := settings.JspDefaults{
		Development:              r.boolean("development", dj.Development),
		CheckInterval:            r.integer("checkInterval", dj.CheckInterval, false),
		ModificationTestInterval: r.integer("modificationTestInterval", dj.ModificationTestInterval, false),
		TrimSpaces:               r.boolean("trimSpaces", dj.TrimSpaces),
		GenStringAsCharArray:     r.boolean("genStringAsCharArray", dj.GenStringAsCharArray),
		EnablePooling:            r.boolean("enablePooling", dj.EnablePooling),
	}
	if r.err != nil {
		return settings.ServerDefaults{}, r.err
	}

	ds := settings.DefaultStatic()
	r = paramReader(c, staticEl, defaultServlet)
	static := settings.StaticDefaults{
		Debug:        r.integer("debug", ds.Debug, false),
		Listings:     r.boolean("listings", ds.Listings),
		Readonly:     r.boolean("readonly", ds.Readonly),
		FileEncoding: r.str("fileEncoding", ds.FileEncoding, false),
		SendfileSize: r.integer("sendfileSize", ds.SendfileSize, false),
		Input:        r.integer("input", ds.Input, false),
		Output:       r.integer("output", ds.Output, false),
	}
	if r.err != nil {
		return settings.ServerDefaults{}, r.err
	}
	return settings.ServerDefaults{Jsp: jsp, Static: static}, nil
}

// WriteDefaults merges d into the jsp and default servlets of web.xml.
func WriteDefaults(c *Context, d settings.ServerDefaults) error {
	jspEl, err := findServlet(c, jspServlet)
	if err != nil {
		return err
	}
	staticEl, err := findServlet(c, defaultServlet)
	if err != nil {
		return err
	}

	dj := settings.DefaultJsp()
	w := paramWriter(c, jspEl, jspServlet)
	w.boolean("development", d.Jsp.Development, dj.Development)
	w.integer("checkInterval", d.Jsp.CheckInterval, dj.CheckInterval, false)
	w.integer("modificationTestInterval", d.Jsp.ModificationTestInterval, dj.ModificationTestInterval, false)
	w.boolean("trimSpaces", d.Jsp.TrimSpaces, dj.TrimSpaces)
	w.boolean("genStringAsCharArray", d.Jsp.GenStringAsCharArray, dj.GenStringAsCharArray)
	w.boolean("enablePooling", d.Jsp.EnablePooling, dj.EnablePooling)

	ds := settings.DefaultStatic()
	w = paramWriter(c, staticEl, defaultServlet)
	w.integer("debug", d.Static.Debug, ds.Debug, false)
	w.boolean("listings", d.Static.Listings, ds.Listings)
	w.boolean("readonly", d.Static.Readonly, ds.Readonly)
	w.str("fileEncoding", d.Static.FileEncoding, ds.FileEncoding, false)
	w.integer("sendfileSize", d.Static.SendfileSize, ds.SendfileSize, false)
	w.integer("input", d.Static.Input, ds.Input, false)
	w.integer("output", d.Static.Output, ds.Output, false)
	return nil
}
