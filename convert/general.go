package convert

import (
	"github.com/tcserver/tcconfig/settings"
)

// Root element names of the managed documents.
const (
	ServerRoot  = "Server"
	ContextRoot = "Context"
	WebAppRoot  = "web-app"
)

// ReadGeneral reads the shutdown port and command from the Server element.
func ReadGeneral(c *Context) (settings.GeneralConfig, error) {
	r := newAttrReader(c, c.Doc.Root)
	g := settings.GeneralConfig{
		ShutdownPort:    r.integer("port", 8005, true),
		ShutdownCommand: r.str("shutdown", "", true),
	}
	return g, r.err
}

// WriteGeneral merges g into the Server element.
func WriteGeneral(c *Context, g settings.GeneralConfig) {
	w := newAttrWriter(c, c.Doc.Root)
	w.integer("port", g.ShutdownPort, 8005, true)
	w.str("shutdown", g.ShutdownCommand, "", true)
}

// ReadContext reads the Context element of context.xml.
func ReadContext(c *Context) (settings.ContextContainer, error) {
	def := settings.DefaultContext()
	r := newAttrReader(c, c.Doc.Root)
	cc := settings.ContextContainer{
		Cookies:           r.boolean("cookies", def.Cookies),
		CrossContext:      r.boolean("crossContext", def.CrossContext),
		Privileged:        r.boolean("privileged", def.Privileged),
		Reloadable:        r.boolean("reloadable", def.Reloadable),
		SwallowOutput:     r.boolean("swallowOutput", def.SwallowOutput),
		UseHTTPOnly:       r.boolean("useHttpOnly", def.UseHTTPOnly),
		SessionCookieName: r.str("sessionCookieName", def.SessionCookieName, false),
		CachingAllowed:    r.boolean("cachingAllowed", def.CachingAllowed),
		CacheMaxSize:      r.integer("cacheMaxSize", def.CacheMaxSize, false),
	}
	return cc, r.err
}

// WriteContext merges cc into the Context element.
func WriteContext(c *Context, cc settings.ContextContainer) {
	def := settings.DefaultContext()
	w := newAttrWriter(c, c.Doc.Root)
	w.boolean("cookies", cc.Cookies, def.Cookies)
	w.boolean("crossContext", cc.CrossContext, def.CrossContext)
	w.boolean("privileged", cc.Privileged, def.Privileged)
	w.boolean("reloadable", cc.Reloadable, def.Reloadable)
	w.boolean("swallowOutput", cc.SwallowOutput, def.SwallowOutput)
	w.boolean("useHttpOnly", cc.UseHTTPOnly, def.UseHTTPOnly)
	w.str("sessionCookieName", cc.SessionCookieName, def.SessionCookieName, false)
	w.boolean("cachingAllowed", cc.CachingAllowed, def.CachingAllowed)
	w.integer("cacheMaxSize", cc.CacheMaxSize, def.CacheMaxSize, false)
}
