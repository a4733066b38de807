package convert

import (
	"github.com/beevik/etree"

	"github.com/tcserver/tcconfig/settings"
)

const (
	serviceTag   = "Service"
	connectorTag = "Connector"
	engineTag    = "Engine"
	hostTag      = "Host"
)

// Connector protocols this package owns. An absent protocol means HTTP/1.1.
var protocols = map[string]bool{
	"":                                            true,
	"HTTP/1.1":                                    true,
	"org.apache.coyote.http11.Http11Protocol":     true,
	"org.apache.coyote.http11.Http11NioProtocol":  true,
	"org.apache.coyote.http11.Http11Nio2Protocol": true,
	"AJP/1.3":                                     true,
	"org.apache.coyote.ajp.AjpProtocol":           true,
	"org.apache.coyote.ajp.AjpNioProtocol":        true,
}

func knownConnector(c *Context, el *etree.Element) bool {
	return protocols[resolvedAttr(c, el, "protocol")]
}

func connectorID(c *Context, el *etree.Element) string {
	return settings.ConnectorIdentity(resolvedAttr(c, el, "address"), resolvedAttr(c, el, "port"))
}

// ReadServices reads every Service with its recognized connectors and its
// engine/host tree.
func ReadServices(c *Context) ([]settings.Service, error) {
	var out []settings.Service
	for _, el := range c.Doc.Root.SelectElements(serviceTag) {
		svc, err := readService(c, el)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

func readService(c *Context, el *etree.Element) (settings.Service, error) {
	r := newAttrReader(c, el)
	svc := settings.Service{Name: r.str("name", "", true)}
	if r.err != nil {
		return svc, r.err
	}
	for _, ce := range el.SelectElements(connectorTag) {
		if !knownConnector(c, ce) {
			continue
		}
		conn, err := readConnector(c, ce)
		if err != nil {
			return svc, err
		}
		svc.Connectors = append(svc.Connectors, conn)
	}
	if ee := el.SelectElement(engineTag); ee != nil {
		eng, err := readEngine(c, ee)
		if err != nil {
			return svc, err
		}
		svc.Engine = eng
	}
	return svc, nil
}

func readConnector(c *Context, el *etree.Element) (settings.Connector, error) {
	def := settings.DefaultConnector()
	r := newAttrReader(c, el)
	conn := settings.Connector{
		Address:           r.str("address", def.Address, false),
		Port:              r.integer("port", def.Port, true),
		Protocol:          r.str("protocol", def.Protocol, false),
		ConnectionTimeout: r.integer("connectionTimeout", def.ConnectionTimeout, false),
		RedirectPort:      r.integer("redirectPort", def.RedirectPort, false),
		MaxThreads:        r.integer("maxThreads", def.MaxThreads, false),
		AcceptCount:       r.integer("acceptCount", def.AcceptCount, false),
		EnableLookups:     r.boolean("enableLookups", def.EnableLookups),
		URIEncoding:       r.str("URIEncoding", def.URIEncoding, false),
		SSLEnabled:        r.boolean("SSLEnabled", def.SSLEnabled),
		Scheme:            r.str("scheme", def.Scheme, false),
		Secure:            r.boolean("secure", def.Secure),
		KeystoreFile:      r.str("keystoreFile", def.KeystoreFile, false),
		KeystorePass:      r.str("keystorePass", def.KeystorePass, false),
	}
	return conn, r.err
}

func readEngine(c *Context, el *etree.Element) (settings.Engine, error) {
	r := newAttrReader(c, el)
	eng := settings.Engine{
		Name:        r.str("name", "", true),
		DefaultHost: r.str("defaultHost", "", true),
		JvmRoute:    r.str("jvmRoute", "", false),
	}
	if r.err != nil {
		return eng, r.err
	}
	for _, he := range el.SelectElements(hostTag) {
		def := settings.DefaultHost("")
		hr := newAttrReader(c, he)
		h := settings.Host{
			Name:            hr.str("name", "", true),
			AppBase:         hr.str("appBase", def.AppBase, false),
			UnpackWARs:      hr.boolean("unpackWARs", def.UnpackWARs),
			AutoDeploy:      hr.boolean("autoDeploy", def.AutoDeploy),
			DeployOnStartup: hr.boolean("deployOnStartup", def.DeployOnStartup),
		}
		if hr.err != nil {
			return eng, hr.err
		}
		eng.Hosts = append(eng.Hosts, h)
	}
	return eng, nil
}

// WriteServices reconciles the desired services, and within each service
// its connectors and hosts, with the Server element.
func WriteServices(c *Context, desired []settings.Service) error {
	return MergeIdentities(c, c.Doc.Root, desired, IdentitySpec[settings.Service]{
		Tag:       serviceTag,
		ElementID: func(el *etree.Element) string { return resolvedAttr(c, el, "name") },
		EntityID:  func(s settings.Service) string { return s.Name },
		Write: func(el *etree.Element, s settings.Service) error {
			return writeService(c, el, s)
		},
	})
}

func writeService(c *Context, el *etree.Element, s settings.Service) error {
	newAttrWriter(c, el).str("name", s.Name, "", true)

	err := MergeIdentities(c, el, s.Connectors, IdentitySpec[settings.Connector]{
		Tag:        connectorTag,
		Recognized: func(ce *etree.Element) bool { return knownConnector(c, ce) },
		ElementID:  func(ce *etree.Element) string { return connectorID(c, ce) },
		EntityID:   settings.Connector.Identity,
		Write: func(ce *etree.Element, conn settings.Connector) error {
			writeConnector(c, ce, conn)
			return nil
		},
	})
	if err != nil {
		return err
	}

	return writeEngine(c, c.Doc.ChildElement(el, engineTag), s.Engine)
}

func writeConnector(c *Context, el *etree.Element, conn settings.Connector) {
	def := settings.DefaultConnector()
	w := newAttrWriter(c, el)
	w.str("address", conn.Address, def.Address, false)
	w.integer("port", conn.Port, def.Port, true)
	w.str("protocol", conn.Protocol, def.Protocol, false)
	w.integer("connectionTimeout", conn.ConnectionTimeout, def.ConnectionTimeout, false)
	w.optInt("redirectPort", conn.RedirectPort)
	w.integer("maxThreads", conn.MaxThreads, def.MaxThreads, false)
	w.integer("acceptCount", conn.AcceptCount, def.AcceptCount, false)
	w.boolean("enableLookups", conn.EnableLookups, def.EnableLookups)
	w.str("URIEncoding", conn.URIEncoding, def.URIEncoding, false)
	w.boolean("SSLEnabled", conn.SSLEnabled, def.SSLEnabled)
	w.str("scheme", conn.Scheme, def.Scheme, false)
	w.boolean("secure", conn.Secure, def.Secure)
	w.str("keystoreFile", conn.KeystoreFile, def.KeystoreFile, false)
	w.str("keystorePass", conn.KeystorePass, def.KeystorePass, false)
}

func writeEngine(c *Context, el *etree.Element, e settings.Engine) error {
	w := newAttrWriter(c, el)
	w.str("name", e.Name, "", true)
	w.str("defaultHost", e.DefaultHost, "", true)
	w.str("jvmRoute", e.JvmRoute, "", false)

	return MergeIdentities(c, el, e.Hosts, IdentitySpec[settings.Host]{
		Tag:       hostTag,
		ElementID: func(he *etree.Element) string { return resolvedAttr(c, he, "name") },
		EntityID:  func(h settings.Host) string { return h.Name },
		Write: func(he *etree.Element, h settings.Host) error {
			def := settings.DefaultHost(h.Name)
			hw := newAttrWriter(c, he)
			hw.str("name", h.Name, "", true)
			hw.str("appBase", h.AppBase, def.AppBase, false)
			hw.boolean("unpackWARs", h.UnpackWARs, def.UnpackWARs)
			hw.boolean("autoDeploy", h.AutoDeploy, def.AutoDeploy)
			hw.boolean("deployOnStartup", h.DeployOnStartup, def.DeployOnStartup)
			return nil
		},
	})
}
