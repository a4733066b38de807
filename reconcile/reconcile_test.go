package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcserver/tcconfig/config"
	"github.com/tcserver/tcconfig/convert"
	"github.com/tcserver/tcconfig/envfile"
)

const (
	serverXML = `<?xml version="1.0" encoding="UTF-8"?>
<Server port="8005" shutdown="SHUTDOWN">
  <!-- managed by ops -->
  <Service name="Catalina">
    <Connector port="${http.port}" protocol="HTTP/1.1" connectionTimeout="20000"/>
    <Engine name="Catalina" defaultHost="localhost">
      <Host name="localhost" appBase="webapps"/>
    </Engine>
  </Service>
</Server>
`
	webXML = `<web-app>
  <servlet>
    <servlet-name>default</servlet-name>
    <init-param>
      <param-name>listings</param-name>
      <param-value>false</param-value>
    </init-param>
  </servlet>
  <servlet>
    <servlet-name>jsp</servlet-name>
  </servlet>
</web-app>
`
	contextXML = `<Context>
  <WatchedResource>WEB-INF/web.xml</WatchedResource>
</Context>
`
	setenvSh = `#!/bin/sh
JAVA_HOME="/opt/java"
JVM_OPTS="-Dcatalina.base=/srv/tc -Xmx512m"
`
)

type instance struct {
	root string
	cfg  config.Config
}

func newInstance(t *testing.T) *instance {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"conf/server.xml":          serverXML,
		"conf/web.xml":             webXML,
		"conf/context.xml":         contextXML,
		"conf/catalina.properties": "http.port=8080\n",
		"bin/setenv.sh":            setenvSh,
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	cfg := config.ForPlatform(envfile.PlatformPosix)
	cfg.InstanceDir = root
	cfg.InstallDir = root
	return &instance{root: root, cfg: cfg}
}

func (i *instance) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(i.root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func fixedClock() func() time.Time {
	ts := time.Date(2024, 7, 1, 9, 30, 0, 0, time.Local)
	return func() time.Time { return ts }
}

func TestLoad(t *testing.T) {
	inst := newInstance(t)
	c, err := New(inst.cfg)
	require.NoError(t, err)

	s, w, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 8005, s.General.ShutdownPort)
	require.Len(t, s.Services, 1)
	assert.Equal(t, 8080, s.Services[0].Connectors[0].Port)
	assert.False(t, s.Defaults.Static.Listings)
	assert.True(t, s.Context.Cookies)
	assert.Equal(t, "/opt/java", s.Environment.JavaHome)
	assert.Equal(t, 512, s.Environment.JvmOptions.Memory.MaxHeap)
}

func TestSaveUnchangedWritesNothing(t *testing.T) {
	inst := newInstance(t)
	c, err := New(inst.cfg, WithClock(fixedClock()))
	require.NoError(t, err)
	s, _, err := c.Load()
	require.NoError(t, err)

	res, err := c.Save(s)
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Len(t, res.Unchanged, 4)
	assert.Equal(t, serverXML, inst.read(t, "conf/server.xml"))
	assert.Equal(t, setenvSh, inst.read(t, "bin/setenv.sh"))

	diffs, err := c.Plan(s)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestSaveWritesBacksUpAndRestores(t *testing.T) {
	inst := newInstance(t)
	c, err := New(inst.cfg, WithClock(fixedClock()))
	require.NoError(t, err)
	s, _, err := c.Load()
	require.NoError(t, err)

	s.Services[0].Connectors[0].MaxThreads = 400
	s.Defaults.Static.Listings = true
	s.Environment.JvmOptions.Memory.MaxHeap = 1024

	diffs, err := c.Plan(s)
	require.NoError(t, err)
	require.Len(t, diffs, 3)
	assert.Equal(t, "conf/server.xml", diffs[0].File)
	assert.Contains(t, diffs[0].Diff, `+    <Connector port="${http.port}" protocol="HTTP/1.1" connectionTimeout="20000" maxThreads="400"/>`)
	assert.Equal(t, serverXML, inst.read(t, "conf/server.xml"), "plan must not write")

	res, err := c.Save(s)
	require.NoError(t, err)
	assert.Len(t, res.Written, 3)
	assert.Equal(t, filepath.Join(inst.root, "backup", "2024-07-01_09-30-00"), res.BackupDir)

	assert.Contains(t, inst.read(t, "conf/server.xml"), `maxThreads="400"`)
	assert.Contains(t, inst.read(t, "conf/server.xml"), "<!-- managed by ops -->")
	assert.Contains(t, inst.read(t, "bin/setenv.sh"), `JVM_OPTS="-Dcatalina.base=/srv/tc -Xmx1024m"`)
	assert.Equal(t, setenvSh, inst.read(t, "backup/2024-07-01_09-30-00/bin/setenv.sh"))

	name, err := c.Restore()
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01_09-30-00", name)
	assert.Equal(t, serverXML, inst.read(t, "conf/server.xml"))
	assert.Equal(t, webXML, inst.read(t, "conf/web.xml"))
	assert.Equal(t, setenvSh, inst.read(t, "bin/setenv.sh"))
}

func TestConversionFailureAbortsBeforeWriting(t *testing.T) {
	inst := newInstance(t)
	c, err := New(inst.cfg, WithClock(fixedClock()))
	require.NoError(t, err)
	s, _, err := c.Load()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(inst.root, "conf", "web.xml"), []byte("<web-app/>\n"), 0o644))
	s.General.ShutdownPort = 9005

	_, err = c.Save(s)
	var nf *convert.AttributeNotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, serverXML, inst.read(t, "conf/server.xml"))
}

func TestSaveRejectsDuplicateIdentities(t *testing.T) {
	inst := newInstance(t)
	c, err := New(inst.cfg)
	require.NoError(t, err)
	s, _, err := c.Load()
	require.NoError(t, err)
	s.Services[0].Connectors = append(s.Services[0].Connectors, s.Services[0].Connectors[0])

	_, err = c.Save(s)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(inst.root, "backup"))
	assert.True(t, os.IsNotExist(statErr), "nothing may be backed up for an invalid model")
}

func TestSaveCreatesMissingEnvFile(t *testing.T) {
	inst := newInstance(t)
	require.NoError(t, os.Remove(filepath.Join(inst.root, "bin", "setenv.sh")))
	c, err := New(inst.cfg)
	require.NoError(t, err)
	s, _, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, s.Environment.JavaHome)

	s.Environment.JvmOptions.Server = true
	_, err = c.Save(s)
	require.NoError(t, err)
	assert.Equal(t, "JVM_OPTS=\"-server\"\n", inst.read(t, "bin/setenv.sh"))
	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(inst.root, "bin", "setenv.sh"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestWriteFailuresAreAggregated(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("directory permissions are not enforced")
	}
	inst := newInstance(t)
	c, err := New(inst.cfg, WithClock(fixedClock()))
	require.NoError(t, err)
	s, _, err := c.Load()
	require.NoError(t, err)
	s.General.ShutdownPort = 9005
	s.Environment.JvmOptions.Server = true

	// Backups go to <root>/backup; make conf and bin read-only afterwards.
	require.NoError(t, os.MkdirAll(filepath.Join(inst.root, "backup"), 0o755))
	for _, dir := range []string{"conf", "bin"} {
		p := filepath.Join(inst.root, dir)
		require.NoError(t, os.Chmod(p, 0o555))
		t.Cleanup(func() { _ = os.Chmod(p, 0o755) })
	}

	_, err = c.Save(s)
	var errs WriteErrors
	require.True(t, errors.As(err, &errs), "got %v", err)
	assert.Len(t, errs, 2)
	assert.Contains(t, err.Error(), "; ")
}

func TestWriteErrorsMessage(t *testing.T) {
	cause := errors.New("disk full")
	errs := WriteErrors{
		{File: "conf/server.xml", Err: cause},
		{File: "bin/setenv.sh", Err: errors.New("read-only")},
	}
	assert.Equal(t, "write conf/server.xml: disk full; write bin/setenv.sh: read-only", errs.Error())
	assert.ErrorIs(t, errs, cause)
}

func TestSnapshotWithGlobs(t *testing.T) {
	inst := newInstance(t)
	require.NoError(t, os.WriteFile(filepath.Join(inst.root, "conf", "logging.properties"), []byte("x"), 0o644))
	c, err := New(inst.cfg, WithClock(fixedClock()))
	require.NoError(t, err)

	set, saved, err := c.Snapshot("conf/*.properties")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01_09-30-00", set.Stamp)
	assert.Contains(t, saved, filepath.Join(set.Dir, "conf", "logging.properties"))
	assert.Contains(t, saved, filepath.Join(set.Dir, "bin", "setenv.sh"))

	sets, err := c.Backups()
	require.NoError(t, err)
	require.Len(t, sets, 1)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.ForPlatform("os2")
	_, err := New(cfg)
	assert.ErrorContains(t, err, "invalid configuration")
}

const stockServerXML = `<?xml version="1.0" encoding="UTF-8"?>
<!--
  Licensed to the Apache Software Foundation (ASF) under one or more
  contributor license agreements.
-->
<Server port="8005" shutdown="SHUTDOWN">
  <Listener className="org.apache.catalina.startup.VersionLoggerListener" />
  <Listener className="org.apache.catalina.core.AprLifecycleListener" SSLEngine="on" />
  <Listener className="org.apache.catalina.core.JreMemoryLeakPreventionListener" />

  <GlobalNamingResources>
    <Resource name="UserDatabase" auth="Container"
              type="org.apache.catalina.UserDatabase"
              description="User database that can be updated and saved"
              factory="org.apache.catalina.users.MemoryUserDatabaseFactory"
              pathname="conf/tomcat-users.xml" />
  </GlobalNamingResources>

  <Service name='Catalina'>
    <Connector port="8080" protocol="HTTP/1.1"
               connectionTimeout="20000"
               redirectPort="8443" />
    <Engine name="Catalina" defaultHost="localhost">
      <Realm className="org.apache.catalina.realm.LockOutRealm">
        <Realm className="org.apache.catalina.realm.UserDatabaseRealm"
               resourceName="UserDatabase"/>
      </Realm>

      <Host name="localhost"  appBase="webapps"
            unpackWARs="true" autoDeploy="true">
        <Valve className="org.apache.catalina.valves.AccessLogValve" directory="logs"
               prefix="localhost_access_log" suffix=".txt"
               pattern="%h %l %u %t &quot;%r&quot; %s %b" />
      </Host>
    </Engine>
  </Service>
</Server>
`

func TestStockServerXMLKeepsItsLayout(t *testing.T) {
	inst := newInstance(t)
	path := filepath.Join(inst.root, "conf", "server.xml")
	require.NoError(t, os.WriteFile(path, []byte(stockServerXML), 0o644))
	c, err := New(inst.cfg, WithClock(fixedClock()))
	require.NoError(t, err)

	s, w, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, s.DataSources, "the user database is not a data source")

	res, err := c.Save(s)
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Equal(t, stockServerXML, inst.read(t, "conf/server.xml"))

	s.Services[0].Connectors[0].MaxThreads = 400
	res, err = c.Save(s)
	require.NoError(t, err)
	assert.Len(t, res.Written, 1)

	want := strings.Replace(stockServerXML,
		`redirectPort="8443" />`,
		"redirectPort=\"8443\"\n               maxThreads=\"400\" />", 1)
	assert.Equal(t, want, inst.read(t, "conf/server.xml"))
}
