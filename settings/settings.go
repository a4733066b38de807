// Package settings defines the desired-state model of a server instance.
//
// Models are plain values created per operation. Collections carry identity
// (JNDI name, address:port, service/host name) that must be unique among
// siblings; see Validate.
package settings

import (
	"net"
	"strconv"
)

// Settings is the root aggregate.
type Settings struct {
	General     GeneralConfig    `json:"general" yaml:"general"`
	Context     ContextContainer `json:"context" yaml:"context"`
	Defaults    ServerDefaults   `json:"defaults" yaml:"defaults"`
	Environment Environment      `json:"environment" yaml:"environment"`
	DataSources []DataSource     `json:"dataSources" yaml:"dataSources"`
	Services    []Service        `json:"services" yaml:"services"`
}

// GeneralConfig is carried by the server.xml root element.
type GeneralConfig struct {
	ShutdownPort    int    `json:"shutdownPort" yaml:"shutdownPort"`
	ShutdownCommand string `json:"shutdownCommand" yaml:"shutdownCommand"`
}

// ContextContainer is the per-instance default context (context.xml).
type ContextContainer struct {
	Cookies           bool   `json:"cookies" yaml:"cookies"`
	CrossContext      bool   `json:"crossContext" yaml:"crossContext"`
	Privileged        bool   `json:"privileged" yaml:"privileged"`
	Reloadable        bool   `json:"reloadable" yaml:"reloadable"`
	SwallowOutput     bool   `json:"swallowOutput" yaml:"swallowOutput"`
	UseHTTPOnly       bool   `json:"useHttpOnly" yaml:"useHttpOnly"`
	SessionCookieName string `json:"sessionCookieName,omitempty" yaml:"sessionCookieName,omitempty"`
	CachingAllowed    bool   `json:"cachingAllowed" yaml:"cachingAllowed"`
	CacheMaxSize      int    `json:"cacheMaxSize" yaml:"cacheMaxSize"`
}

// DefaultContext returns the container defaults documented for context.xml.
func DefaultContext() ContextContainer {
	return ContextContainer{Cookies: true, UseHTTPOnly: true, CachingAllowed: true, CacheMaxSize: 10240}
}

// ServerDefaults are the jsp and default servlet settings in web.xml.
type ServerDefaults struct {
	Jsp    JspDefaults    `json:"jsp" yaml:"jsp"`
	Static StaticDefaults `json:"static" yaml:"static"`
}

type JspDefaults struct {
	Development              bool `json:"development" yaml:"development"`
	CheckInterval            int  `json:"checkInterval" yaml:"checkInterval"`
	ModificationTestInterval int  `json:"modificationTestInterval" yaml:"modificationTestInterval"`
	TrimSpaces               bool `json:"trimSpaces" yaml:"trimSpaces"`
	GenStringAsCharArray     bool `json:"genStringAsCharArray" yaml:"genStringAsCharArray"`
	EnablePooling            bool `json:"enablePooling" yaml:"enablePooling"`
}

func DefaultJsp() JspDefaults {
	return JspDefaults{Development: true, ModificationTestInterval: 4, EnablePooling: true}
}

type StaticDefaults struct {
	Debug        int    `json:"debug" yaml:"debug"`
	Listings     bool   `json:"listings" yaml:"listings"`
	Readonly     bool   `json:"readonly" yaml:"readonly"`
	FileEncoding string `json:"fileEncoding,omitempty" yaml:"fileEncoding,omitempty"`
	SendfileSize int    `json:"sendfileSize" yaml:"sendfileSize"`
	Input        int    `json:"input" yaml:"input"`
	Output       int    `json:"output" yaml:"output"`
}

func DefaultStatic() StaticDefaults {
	return StaticDefaults{Readonly: true, SendfileSize: 48, Input: 2048, Output: 2048}
}

// Environment is read from and written to the platform environment file.
type Environment struct {
	JavaHome   string     `json:"javaHome,omitempty" yaml:"javaHome,omitempty"`
	JvmOptions JvmOptions `json:"jvmOptions" yaml:"jvmOptions"`
}

// JvmOptions is the structured view of the JVM command line. Flags that do
// not map onto a field are kept, in order, in Advanced.
type JvmOptions struct {
	Server   bool       `json:"server" yaml:"server"`
	Debug    DebugFlags `json:"debug" yaml:"debug"`
	GC       GCTuning   `json:"gc" yaml:"gc"`
	Memory   Memory     `json:"memory" yaml:"memory"`
	Advanced string     `json:"advanced,omitempty" yaml:"advanced,omitempty"`
}

type DebugFlags struct {
	HeapDumpOnOutOfMemory bool `json:"heapDumpOnOutOfMemory" yaml:"heapDumpOnOutOfMemory"`
	PrintGC               bool `json:"printGC" yaml:"printGC"`
	PrintGCDetails        bool `json:"printGCDetails" yaml:"printGCDetails"`
	PrintGCTimeStamps     bool `json:"printGCTimeStamps" yaml:"printGCTimeStamps"`
	VerboseGC             bool `json:"verboseGC" yaml:"verboseGC"`
}

// Garbage collectors selectable through GCTuning.Collector.
const (
	CollectorSerial   = "serial"
	CollectorParallel = "parallel"
	CollectorCMS      = "cms"
	CollectorG1       = "g1"
)

// GCTuning holds collector choice and numeric thresholds; zero means unset.
type GCTuning struct {
	Collector         string `json:"collector,omitempty" yaml:"collector,omitempty"`
	NewRatio          int    `json:"newRatio,omitempty" yaml:"newRatio,omitempty"`
	SurvivorRatio     int    `json:"survivorRatio,omitempty" yaml:"survivorRatio,omitempty"`
	ParallelGCThreads int    `json:"parallelGCThreads,omitempty" yaml:"parallelGCThreads,omitempty"`
	MaxGCPauseMillis  int    `json:"maxGCPauseMillis,omitempty" yaml:"maxGCPauseMillis,omitempty"`
}

// Memory sizes. Heap, young generation and metaspace are in megabytes,
// ThreadStack in kilobytes. Zero means unset.
type Memory struct {
	InitialHeap  int `json:"initialHeap,omitempty" yaml:"initialHeap,omitempty"`
	MaxHeap      int `json:"maxHeap,omitempty" yaml:"maxHeap,omitempty"`
	ThreadStack  int `json:"threadStack,omitempty" yaml:"threadStack,omitempty"`
	NewSize      int `json:"newSize,omitempty" yaml:"newSize,omitempty"`
	MaxNewSize   int `json:"maxNewSize,omitempty" yaml:"maxNewSize,omitempty"`
	MaxMetaspace int `json:"maxMetaspace,omitempty" yaml:"maxMetaspace,omitempty"`
}

// DataSourceType selects the pool implementation and its defaults.
type DataSourceType string

const (
	TomcatJDBC DataSourceType = "tomcat-jdbc"
	DBCP       DataSourceType = "dbcp"
)

// DataSource is a global JNDI resource. Identity: JndiName.
type DataSource struct {
	JndiName        string         `json:"jndiName" yaml:"jndiName"`
	Type            DataSourceType `json:"type" yaml:"type"`
	Auth            string         `json:"auth,omitempty" yaml:"auth,omitempty"`
	ResourceType    string         `json:"resourceType,omitempty" yaml:"resourceType,omitempty"`
	DriverClassName string         `json:"driverClassName" yaml:"driverClassName"`
	URL             string         `json:"url" yaml:"url"`
	Username        string         `json:"username,omitempty" yaml:"username,omitempty"`
	Password        string         `json:"password,omitempty" yaml:"password,omitempty"`
	Pool            ConnectionPool `json:"pool" yaml:"pool"`
}

// ConnectionPool holds the sizing and validation settings of a data source.
type ConnectionPool struct {
	InitialSize                   int    `json:"initialSize" yaml:"initialSize"`
	MaxActive                     int    `json:"maxActive" yaml:"maxActive"`
	MaxIdle                       int    `json:"maxIdle" yaml:"maxIdle"`
	MinIdle                       int    `json:"minIdle" yaml:"minIdle"`
	MaxWait                       int    `json:"maxWait" yaml:"maxWait"`
	TestOnBorrow                  bool   `json:"testOnBorrow" yaml:"testOnBorrow"`
	TestOnReturn                  bool   `json:"testOnReturn" yaml:"testOnReturn"`
	TestWhileIdle                 bool   `json:"testWhileIdle" yaml:"testWhileIdle"`
	ValidationQuery               string `json:"validationQuery,omitempty" yaml:"validationQuery,omitempty"`
	TimeBetweenEvictionRunsMillis int    `json:"timeBetweenEvictionRunsMillis" yaml:"timeBetweenEvictionRunsMillis"`
	MinEvictableIdleTimeMillis    int    `json:"minEvictableIdleTimeMillis" yaml:"minEvictableIdleTimeMillis"`
}

// DefaultPool returns the documented pool defaults for a data source type.
func DefaultPool(t DataSourceType) ConnectionPool {
	p := ConnectionPool{
		TimeBetweenEvictionRunsMillis: 5000,
		MinEvictableIdleTimeMillis:    60000,
	}
	if t == DBCP {
		p.MaxActive, p.MaxIdle, p.MaxWait = 8, 8, -1
		return p
	}
	p.InitialSize, p.MaxActive, p.MaxIdle, p.MinIdle, p.MaxWait = 10, 100, 100, 10, 30000
	return p
}

// Service groups connectors with one engine. Identity: Name.
type Service struct {
	Name       string      `json:"name" yaml:"name"`
	Connectors []Connector `json:"connectors" yaml:"connectors"`
	Engine     Engine      `json:"engine" yaml:"engine"`
}

// Connector is a listening endpoint. Identity: Address:Port.
type Connector struct {
	Address           string `json:"address,omitempty" yaml:"address,omitempty"`
	Port              int    `json:"port" yaml:"port"`
	Protocol          string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	ConnectionTimeout int    `json:"connectionTimeout" yaml:"connectionTimeout"`
	RedirectPort      int    `json:"redirectPort,omitempty" yaml:"redirectPort,omitempty"`
	MaxThreads        int    `json:"maxThreads" yaml:"maxThreads"`
	AcceptCount       int    `json:"acceptCount" yaml:"acceptCount"`
	EnableLookups     bool   `json:"enableLookups" yaml:"enableLookups"`
	URIEncoding       string `json:"uriEncoding,omitempty" yaml:"uriEncoding,omitempty"`
	SSLEnabled        bool   `json:"sslEnabled" yaml:"sslEnabled"`
	Scheme            string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Secure            bool   `json:"secure" yaml:"secure"`
	KeystoreFile      string `json:"keystoreFile,omitempty" yaml:"keystoreFile,omitempty"`
	KeystorePass      string `json:"keystorePass,omitempty" yaml:"keystorePass,omitempty"`
}

// DefaultConnector returns a connector carrying the documented defaults.
func DefaultConnector() Connector {
	return Connector{Protocol: "HTTP/1.1", ConnectionTimeout: 20000, MaxThreads: 200, AcceptCount: 100, Scheme: "http"}
}

// Identity is the address:port pair; an empty address listens everywhere.
func (c Connector) Identity() string {
	return ConnectorIdentity(c.Address, strconv.Itoa(c.Port))
}

// ConnectorIdentity builds a connector identity from raw address and port.
func ConnectorIdentity(address, port string) string {
	return net.JoinHostPort(address, port)
}

// Engine is the request-processing container of a service.
type Engine struct {
	Name        string `json:"name" yaml:"name"`
	DefaultHost string `json:"defaultHost" yaml:"defaultHost"`
	JvmRoute    string `json:"jvmRoute,omitempty" yaml:"jvmRoute,omitempty"`
	Hosts       []Host `json:"hosts" yaml:"hosts"`
}

// Host is a virtual host. Identity: Name.
type Host struct {
	Name            string `json:"name" yaml:"name"`
	AppBase         string `json:"appBase" yaml:"appBase"`
	UnpackWARs      bool   `json:"unpackWARs" yaml:"unpackWARs"`
	AutoDeploy      bool   `json:"autoDeploy" yaml:"autoDeploy"`
	DeployOnStartup bool   `json:"deployOnStartup" yaml:"deployOnStartup"`
}

// DefaultHost returns a host carrying the documented defaults.
func DefaultHost(name string) Host {
	return Host{Name: name, AppBase: "webapps", UnpackWARs: true, AutoDeploy: true, DeployOnStartup: true}
}
