// Package config loads geodash configuration from defaults, a YAML file,
// GEODASH_ environment variables and command-line flags.
package config

import (
	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/logging"
	"github.com/leapstack-labs/geodash/pkg/source"
)

// Default configuration values.
const (
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 5000
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultHistoryPath   = ".geodash/history.db"
	DefaultSessionSecret = "geodash-dev-secret-change-in-production" //nolint:gosec
)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Host          string `koanf:"host" yaml:"host"`
	Port          int    `koanf:"port" yaml:"port"`
	SessionSecret string `koanf:"session_secret" yaml:"session_secret"`
	// Watch pushes a refresh to open dashboards when a local data file
	// of a configured source changes.
	Watch bool `koanf:"watch" yaml:"watch"`
	Dev   bool `koanf:"dev" yaml:"dev"`
}

// HistoryConfig enables the render history database.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Path    string `koanf:"path" yaml:"path"`
}

// Config holds all CLI configuration options.
type Config struct {
	Verbose      bool                     `koanf:"verbose" yaml:"verbose"`
	OutputFormat string                   `koanf:"output" yaml:"output"`
	Server       ServerConfig             `koanf:"server" yaml:"server"`
	Log          logging.Config           `koanf:"log" yaml:"log"`
	Sources      map[string]source.Config `koanf:"sources" yaml:"sources"`
	Apps         map[string]apps.Settings `koanf:"apps" yaml:"apps,omitempty"`
	History      HistoryConfig            `koanf:"history" yaml:"history"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-" yaml:"-"`
}

// WatchFiles lists the local files backing the configured sources.
func (c *Config) WatchFiles() []string {
	var files []string
	for _, name := range sortedKeys(c.Sources) {
		sc := c.Sources[name]
		if sc.Path != "" && sc.Path != ":memory:" {
			files = append(files, sc.Path)
		}
		for _, table := range sortedKeys(sc.Files) {
			files = append(files, sc.Files[table])
		}
	}
	return files
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.SessionSecret = mask(c.Server.SessionSecret)
	out.Sources = make(map[string]source.Config, len(c.Sources))
	for name, sc := range c.Sources {
		sc.APIKey = mask(sc.APIKey)
		sc.Password = mask(sc.Password)
		sc.DSN = mask(sc.DSN)
		out.Sources[name] = sc
	}
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
