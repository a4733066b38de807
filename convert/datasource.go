package convert

import (
	"github.com/beevik/etree"

	"github.com/tcserver/tcconfig/placeholder"
	"github.com/tcserver/tcconfig/settings"
)

const (
	globalResourcesTag = "GlobalNamingResources"
	resourceTag        = "Resource"
	dataSourceType     = "javax.sql.DataSource"
)

// Pool factories whose Resources this package owns. Resources using any
// other factory are never read, rewritten or removed.
var factories = map[string]settings.DataSourceType{
	"org.apache.tomcat.jdbc.pool.DataSourceFactory":       settings.TomcatJDBC,
	"org.apache.tomcat.dbcp.dbcp.BasicDataSourceFactory":  settings.DBCP,
	"org.apache.tomcat.dbcp.dbcp2.BasicDataSourceFactory": settings.DBCP,
}

var defaultFactory = map[settings.DataSourceType]string{
	settings.TomcatJDBC: "org.apache.tomcat.jdbc.pool.DataSourceFactory",
	settings.DBCP:       "org.apache.tomcat.dbcp.dbcp2.BasicDataSourceFactory",
}

func resolvedAttr(c *Context, el *etree.Element, key string) string {
	return placeholder.Resolve(el.SelectAttrValue(key, ""), c.Props)
}

func dataSourceKind(c *Context, el *etree.Element) (settings.DataSourceType, bool) {
	t, ok := factories[resolvedAttr(c, el, "factory")]
	return t, ok
}

// ReadDataSources reads every Resource in GlobalNamingResources whose
// factory is recognized.
func ReadDataSources(c *Context) ([]settings.DataSource, error) {
	gnr := c.Doc.Root.SelectElement(globalResourcesTag)
	if gnr == nil {
		return nil, nil
	}
	var out []settings.DataSource
	for _, el := range gnr.SelectElements(resourceTag) {
		kind, ok := dataSourceKind(c, el)
		if !ok {
			continue
		}
		ds, err := readDataSource(c, el, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

func readDataSource(c *Context, el *etree.Element, kind settings.DataSourceType) (settings.DataSource, error) {
	r := newAttrReader(c, el)
	ds := settings.DataSource{
		JndiName:        r.str("name", "", true),
		Type:            kind,
		Auth:            r.str("auth", "", false),
		ResourceType:    r.str("type", dataSourceType, false),
		DriverClassName: r.str("driverClassName", "", true),
		URL:             r.str("url", "", true),
		Username:        r.str("username", "", false),
		Password:        r.str("password", "", false),
		Pool:            readPool(r, settings.DefaultPool(kind)),
	}
	return ds, r.err
}

// readPool reads the connection pool section of a data source.
func readPool(r *reader, def settings.ConnectionPool) settings.ConnectionPool {
	return settings.ConnectionPool{
		InitialSize:                   r.integer("initialSize", def.InitialSize, false),
		MaxActive:                     r.integer("maxActive", def.MaxActive, false),
		MaxIdle:                       r.integer("maxIdle", def.MaxIdle, false),
		MinIdle:                       r.integer("minIdle", def.MinIdle, false),
		MaxWait:                       r.integer("maxWait", def.MaxWait, false),
		TestOnBorrow:                  r.boolean("testOnBorrow", def.TestOnBorrow),
		TestOnReturn:                  r.boolean("testOnReturn", def.TestOnReturn),
		TestWhileIdle:                 r.boolean("testWhileIdle", def.TestWhileIdle),
		ValidationQuery:               r.str("validationQuery", def.ValidationQuery, false),
		TimeBetweenEvictionRunsMillis: r.integer("timeBetweenEvictionRunsMillis", def.TimeBetweenEvictionRunsMillis, false),
		MinEvictableIdleTimeMillis:    r.integer("minEvictableIdleTimeMillis", def.MinEvictableIdleTimeMillis, false),
	}
}

func writePool(w writer, p, def settings.ConnectionPool) {
	w.integer("initialSize", p.InitialSize, def.InitialSize, false)
	w.integer("maxActive", p.MaxActive, def.MaxActive, false)
	w.integer("maxIdle", p.MaxIdle, def.MaxIdle, false)
	w.integer("minIdle", p.MinIdle, def.MinIdle, false)
	w.integer("maxWait", p.MaxWait, def.MaxWait, false)
	w.boolean("testOnBorrow", p.TestOnBorrow, def.TestOnBorrow)
	w.boolean("testOnReturn", p.TestOnReturn, def.TestOnReturn)
	w.boolean("testWhileIdle", p.TestWhileIdle, def.TestWhileIdle)
	w.str("validationQuery", p.ValidationQuery, def.ValidationQuery, false)
	w.integer("timeBetweenEvictionRunsMillis", p.TimeBetweenEvictionRunsMillis, def.TimeBetweenEvictionRunsMillis, false)
	w.integer("minEvictableIdleTimeMillis", p.MinEvictableIdleTimeMillis, def.MinEvictableIdleTimeMillis, false)
}

// WriteDataSources reconciles the desired data sources with the Resources
// in GlobalNamingResources, keyed by JNDI name.
func WriteDataSources(c *Context, desired []settings.DataSource) error {
	gnr := c.Doc.Root.SelectElement(globalResourcesTag)
	if gnr == nil {
		if len(desired) == 0 {
			return nil
		}
		gnr = c.Doc.ChildElement(c.Doc.Root, globalResourcesTag)
	}
	return MergeIdentities(c, gnr, desired, IdentitySpec[settings.DataSource]{
		Tag: resourceTag,
		Candidate: func(el *etree.Element) bool {
			_, known := dataSourceKind(c, el)
			return known || resolvedAttr(c, el, "type") == dataSourceType
		},
		Recognized: func(el *etree.Element) bool {
			_, known := dataSourceKind(c, el)
			return known
		},
		ElementID: func(el *etree.Element) string { return resolvedAttr(c, el, "name") },
		EntityID:  func(ds settings.DataSource) string { return ds.JndiName },
		Write: func(el *etree.Element, ds settings.DataSource) error {
			writeDataSource(c, el, ds)
			return nil
		},
	})
}

func writeDataSource(c *Context, el *etree.Element, ds settings.DataSource) {
	factory := defaultFactory[ds.Type]
	if current, ok := dataSourceKind(c, el); ok && current == ds.Type {
		// Keep the existing factory of the same family (dbcp vs dbcp2).
		factory = resolvedAttr(c, el, "factory")
	}
	resourceType := ds.ResourceType
	if resourceType == "" {
		resourceType = dataSourceType
	}

	w := newAttrWriter(c, el)
	w.str("name", ds.JndiName, "", true)
	w.str("auth", ds.Auth, "", false)
	w.str("type", resourceType, dataSourceType, true)
	w.str("factory", factory, "", true)
	w.str("driverClassName", ds.DriverClassName, "", true)
	w.str("url", ds.URL, "", true)
	w.str("username", ds.Username, "", false)
	w.str("password", ds.Password, "", false)
	writePool(w, ds.Pool, settings.DefaultPool(ds.Type))
}
