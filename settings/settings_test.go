package settings

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcserver/tcconfig/placeholder"
)

func sample() *Settings {
	c := DefaultConnector()
	c.Port = 8080
	return &Settings{
		General:  GeneralConfig{ShutdownPort: 8005, ShutdownCommand: "SHUTDOWN"},
		Context:  DefaultContext(),
		Defaults: ServerDefaults{Jsp: DefaultJsp(), Static: DefaultStatic()},
		Environment: Environment{
			JavaHome:   "/usr/lib/jvm/java",
			JvmOptions: JvmOptions{Server: true, Memory: Memory{MaxHeap: 512}},
		},
		DataSources: []DataSource{{
			JndiName: "jdbc/orders", Type: TomcatJDBC, DriverClassName: "org.h2.Driver",
			URL: "jdbc:h2:mem:orders", Pool: DefaultPool(TomcatJDBC),
		}},
		Services: []Service{{
			Name:       "Catalina",
			Connectors: []Connector{c},
			Engine:     Engine{Name: "Catalina", DefaultHost: "localhost", Hosts: []Host{DefaultHost("localhost")}},
		}},
	}
}

func TestValidateAcceptsSample(t *testing.T) {
	require.NoError(t, sample().Validate())
}

func TestValidateDuplicatesAreSiblingScoped(t *testing.T) {
	s := sample()
	other := s.Services[0]
	other.Name = "Other"
	// Same connector identity in a different service is fine.
	s.Services = append(s.Services, other)
	require.NoError(t, s.Validate())

	s.Services[0].Connectors = append(s.Services[0].Connectors, s.Services[0].Connectors[0])
	s.DataSources = append(s.DataSources, s.DataSources[0])
	err := s.Validate()
	require.Error(t, err)

	var dup *DuplicateIdentityError
	require.True(t, errors.As(err, &dup))
	assert.Contains(t, err.Error(), `duplicate data source "jdbc/orders"`)
	assert.Contains(t, err.Error(), `duplicate connector ":8080" in service "Catalina"`)
}

func TestConnectorIdentity(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", Connector{Address: "127.0.0.1", Port: 8080}.Identity())
	assert.Equal(t, "[::1]:8443", Connector{Address: "::1", Port: 8443}.Identity())
}

func TestDefaultPool(t *testing.T) {
	assert.Equal(t, 100, DefaultPool(TomcatJDBC).MaxActive)
	assert.Equal(t, -1, DefaultPool(DBCP).MaxWait)
}

func TestYAMLRoundTrip(t *testing.T) {
	s := sample()
	out, err := DumpYAML(s)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "general:\n"), string(out))

	back, err := LoadYAML(out)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestLoadYAMLRejectsUnknownFields(t *testing.T) {
	_, err := LoadYAML([]byte("general:\n  shutdownPrt: 1\n"))
	require.Error(t, err)
}

func TestDumpPropertiesIsOrdered(t *testing.T) {
	props := placeholder.NewProperties(map[string]string{"b": "two", "a": "one"})
	out, err := DumpProperties(props)
	require.NoError(t, err)
	assert.Equal(t, "a: one\nb: two\n", string(out))
}

func TestApplyPatch(t *testing.T) {
	patch := []byte(`[
		{"op": "replace", "path": "/services/0/connectors/0/port", "value": 9090},
		{"op": "remove", "path": "/dataSources/0"},
		{"op": "replace", "path": "/environment/jvmOptions/memory/maxHeap", "value": 1024}
	]`)
	s := sample()
	out, err := ApplyPatch(s, patch)
	require.NoError(t, err)

	assert.Equal(t, 9090, out.Services[0].Connectors[0].Port)
	assert.Empty(t, out.DataSources)
	assert.Equal(t, 1024, out.Environment.JvmOptions.Memory.MaxHeap)
	assert.Equal(t, 8080, s.Services[0].Connectors[0].Port, "input is not modified")
}

func TestApplyPatchRejectsUnknownField(t *testing.T) {
	_, err := ApplyPatch(sample(), []byte(`[{"op": "add", "path": "/bogus", "value": 1}]`))
	require.Error(t, err)
}

func TestApplyMergePatch(t *testing.T) {
	out, err := ApplyMergePatch(sample(), []byte(`{"general": {"shutdownPort": -1}}`))
	require.NoError(t, err)
	assert.Equal(t, -1, out.General.ShutdownPort)
	assert.Equal(t, "SHUTDOWN", out.General.ShutdownCommand)
}
