// Package config loads the tool's own settings: where the instance lives,
// which platform dialect its environment file uses and which files are
// managed.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/tcserver/tcconfig/envfile"
	"github.com/tcserver/tcconfig/logging"
)

// DefaultFileName is looked up in the working directory when no --config
// flag is given.
const DefaultFileName = "tcconfig.yaml"

// Config describes one managed instance. File paths are relative to
// InstanceDir unless absolute.
type Config struct {
	InstanceDir      string   `yaml:"instanceDir"`
	InstallDir       string   `yaml:"installDir"`
	Platform         string   `yaml:"platform"`
	PropertiesFile   string   `yaml:"propertiesFile"`
	ServerXML        string   `yaml:"serverXml"`
	WebXML           string   `yaml:"webXml"`
	ContextXML       string   `yaml:"contextXml"`
	EnvFile          string   `yaml:"envFile"`
	OptionsVariable  string   `yaml:"optionsVariable"`
	ProtectedOptions []string `yaml:"protectedOptions"`
	LogLevel         string   `yaml:"logLevel"`
}

// Default returns the configuration for the host platform.
func Default() Config {
	return ForPlatform(hostPlatform())
}

func hostPlatform() string {
	if runtime.GOOS == "windows" {
		return envfile.PlatformWindows
	}
	return envfile.PlatformPosix
}

// ForPlatform returns the defaults of platform.
func ForPlatform(platform string) Config {
	c := Config{
		InstanceDir:      ".",
		Platform:         platform,
		PropertiesFile:   filepath.Join("conf", "catalina.properties"),
		ServerXML:        filepath.Join("conf", "server.xml"),
		WebXML:           filepath.Join("conf", "web.xml"),
		ContextXML:       filepath.Join("conf", "context.xml"),
		EnvFile:          filepath.Join("bin", "setenv.sh"),
		OptionsVariable:  envfile.DefaultOptionsVariable,
		ProtectedOptions: append([]string(nil), envfile.DefaultProtected...),
		LogLevel:         "info",
	}
	if platform == envfile.PlatformWindows {
		c.EnvFile = filepath.Join("conf", "wrapper.conf")
		c.OptionsVariable = envfile.DefaultWrapperPrefix
	}
	return c
}

// Load reads path on top of the defaults. A missing file yields the
// defaults. When the file picks a platform without naming its environment
// file or options variable, the platform's defaults are used.
func Load(path string) (Config, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No %s found, using defaults", path)
			return config, nil
		}
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}

	var probe struct {
		Platform string `yaml:"platform"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	if probe.Platform != "" {
		config = ForPlatform(probe.Platform)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	if config.InstallDir == "" {
		config.InstallDir = config.InstanceDir
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return config, nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.InstanceDir == "" {
		return fmt.Errorf("instanceDir must be set")
	}
	if _, err := envfile.DialectFor(c.Platform, ""); err != nil {
		return fmt.Errorf("platform: %w", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	for _, f := range []struct{ name, value string }{
		{"serverXml", c.ServerXML},
		{"webXml", c.WebXML},
		{"contextXml", c.ContextXML},
		{"envFile", c.EnvFile},
	} {
		if f.value == "" {
			return fmt.Errorf("%s must be set", f.name)
		}
	}
	return nil
}

// Path resolves a configured file against the instance directory.
func (c Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.InstanceDir, p)
}

// Home returns the installation directory, defaulting to the instance.
func (c Config) Home() string {
	if c.InstallDir == "" {
		return c.InstanceDir
	}
	return c.InstallDir
}

// Dialect returns the environment file dialect of the platform.
func (c Config) Dialect() (envfile.Dialect, error) {
	return envfile.DialectFor(c.Platform, c.OptionsVariable)
}
