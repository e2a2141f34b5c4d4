package keybind

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/vind/browser"
	"github.com/hazyhaar/vind/registration"
)

// Config holds all vind configuration.
type Config struct {
	DBPath string `yaml:"db_path"`

	// Version is the running version stamped on exports and checked on
	// imports. Strict semver.
	Version      string `yaml:"version"`
	MinifyExport bool   `yaml:"minify_export"`
	ExportIndent int    `yaml:"export_indent"`

	Registration registration.Config `yaml:"registration"`
	Browser      browser.Config      `yaml:"browser"`
	HTTP         HTTPConfig          `yaml:"http"`
}

// HTTPConfig controls the admin API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultVersion is the version written on exports unless configured.
const DefaultVersion = "3.1.0"

// NewConfig returns a Config with every default applied.
func NewConfig() *Config {
	cfg := &Config{MinifyExport: true, ExportIndent: 2}
	cfg.defaults()
	return cfg
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "vind.db"
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.ExportIndent < 0 {
		c.ExportIndent = 0
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8794"
	}
}

// LoadConfigFile reads a YAML config file. Missing keys keep their
// defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{MinifyExport: true, ExportIndent: 2}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}
