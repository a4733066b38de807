package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcserver/tcconfig/envfile"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWindowsPicksPlatformDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
instanceDir: /srv/tc/inst
installDir: /srv/tc
platform: windows
protectedOptions: ["-Dcatalina.base"]
logLevel: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, envfile.PlatformWindows, cfg.Platform)
	assert.Equal(t, filepath.Join("conf", "wrapper.conf"), cfg.EnvFile)
	assert.Equal(t, envfile.DefaultWrapperPrefix, cfg.OptionsVariable)
	assert.Equal(t, []string{"-Dcatalina.base"}, cfg.ProtectedOptions)
	assert.Equal(t, "/srv/tc", cfg.Home())
	assert.Equal(t, filepath.Join("/srv/tc/inst", "conf", "server.xml"), cfg.Path(cfg.ServerXML))
	require.NoError(t, cfg.Validate())

	d, err := cfg.Dialect()
	require.NoError(t, err)
	assert.Equal(t, envfile.PlatformWindows, d.Name())
}

func TestLoadDefaultsInstallDirToInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("instanceDir: /srv/inst\nplatform: posix\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/inst", cfg.InstallDir)
	assert.Equal(t, filepath.Join("bin", "setenv.sh"), cfg.EnvFile)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("instanceDir: [unclosed"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, path)
}

func TestValidate(t *testing.T) {
	cfg := ForPlatform(envfile.PlatformPosix)
	cfg.Platform = "amiga"
	assert.ErrorContains(t, cfg.Validate(), "platform")

	cfg = ForPlatform(envfile.PlatformPosix)
	cfg.InstanceDir = ""
	assert.ErrorContains(t, cfg.Validate(), "instanceDir")

	cfg = ForPlatform(envfile.PlatformPosix)
	cfg.WebXML = ""
	assert.ErrorContains(t, cfg.Validate(), "webXml")

	cfg = ForPlatform(envfile.PlatformPosix)
	cfg.LogLevel = "loud"
	assert.ErrorContains(t, cfg.Validate(), "logLevel")
}
