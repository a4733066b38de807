package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	serverXML = `<?xml version="1.0" encoding="UTF-8"?>
<Server port="8005" shutdown="SHUTDOWN">
  <Service name="Catalina">
    <Connector port="${http.port}" protocol="HTTP/1.1"/>
    <Engine name="Catalina" defaultHost="localhost">
      <Host name="localhost" appBase="webapps"/>
    </Engine>
  </Service>
</Server>
`
	webXML = `<web-app>
  <servlet>
    <servlet-name>default</servlet-name>
  </servlet>
  <servlet>
    <servlet-name>jsp</servlet-name>
  </servlet>
</web-app>
`
)

// newInstance lays out a minimal instance and returns the path of a tool
// configuration pointing at it.
func newInstance(t *testing.T) (root, configPath string) {
	t.Helper()
	root = t.TempDir()
	files := map[string]string{
		"conf/server.xml":          serverXML,
		"conf/web.xml":             webXML,
		"conf/context.xml":         "<Context/>\n",
		"conf/catalina.properties": "http.port=8080\n",
		"bin/setenv.sh":            "JVM_OPTS=\"-Xmx512m\"\n",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	configPath = filepath.Join(t.TempDir(), "tcconfig.yaml")
	cfg := fmt.Sprintf("instanceDir: '%s'\nplatform: posix\nlogLevel: error\n", root)
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return root, configPath
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func TestShow(t *testing.T) {
	_, cfg := newInstance(t)
	out, err := run(t, "", "--config", cfg, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "shutdownPort: 8005")
	assert.Contains(t, out, "maxHeap: 512")
}

func TestPatchDryRunThenApplyThenRestore(t *testing.T) {
	root, cfg := newInstance(t)
	patch := filepath.Join(t.TempDir(), "patch.json")
	require.NoError(t, os.WriteFile(patch, []byte(`{"general":{"shutdownPort":9005}}`), 0o644))

	out, err := run(t, "", "--config", cfg, "patch", "--merge", "--dry-run", "-f", patch)
	require.NoError(t, err)
	assert.Contains(t, out, "--- a/conf/server.xml")
	assert.Contains(t, out, `+<Server port="9005" shutdown="SHUTDOWN">`)
	assert.Equal(t, serverXML, readFile(t, root, "conf/server.xml"))

	out, err = run(t, "", "--config", cfg, "patch", "--merge", "-f", patch)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote ")
	assert.Contains(t, readFile(t, root, "conf/server.xml"), `port="9005"`)

	out, err = run(t, "", "--config", cfg, "backups")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")

	out, err = run(t, "", "--config", cfg, "restore")
	require.NoError(t, err)
	assert.Contains(t, out, "restored backup")
	assert.Equal(t, serverXML, readFile(t, root, "conf/server.xml"))
}

func TestApplyUnchangedModel(t *testing.T) {
	_, cfg := newInstance(t)
	current, err := run(t, "", "--config", cfg, "show")
	require.NoError(t, err)
	desired := filepath.Join(t.TempDir(), "desired.yaml")
	require.NoError(t, os.WriteFile(desired, []byte(current), 0o644))

	out, err := run(t, "", "--config", cfg, "apply", "--dry-run", "-f", desired)
	require.NoError(t, err)
	assert.Equal(t, "No changes\n", out)
}

func TestApplyRejectsUnknownFields(t *testing.T) {
	_, cfg := newInstance(t)
	desired := filepath.Join(t.TempDir(), "desired.yaml")
	require.NoError(t, os.WriteFile(desired, []byte("general:\n  shutdownPrt: 1\n"), 0o644))
	_, err := run(t, "", "--config", cfg, "apply", "-f", desired)
	assert.ErrorContains(t, err, desired)
}

func TestFileGetPut(t *testing.T) {
	root, cfg := newInstance(t)
	out, err := run(t, "", "--config", cfg, "file", "get", "conf/catalina.properties")
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("http.port=8080\n"))+"\n", out)

	content := base64.StdEncoding.EncodeToString([]byte("http.port=9090\n"))
	_, err = run(t, content+"\n", "--config", cfg, "file", "put", "conf/catalina.properties")
	require.NoError(t, err)
	assert.Equal(t, "http.port=9090\n", readFile(t, root, "conf/catalina.properties"))

	_, err = run(t, content, "--config", cfg, "file", "put", "../escape")
	assert.Error(t, err)
}

func TestProperties(t *testing.T) {
	_, cfg := newInstance(t)
	out, err := run(t, "", "--config", cfg, "properties")
	require.NoError(t, err)
	assert.Contains(t, out, "http.port")
	assert.Contains(t, out, "catalina.base")
}

func TestBadLogLevel(t *testing.T) {
	_, cfg := newInstance(t)
	_, err := run(t, "", "--config", cfg, "--log-level", "loud", "show")
	assert.Error(t, err)
}
