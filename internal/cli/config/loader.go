package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/geodash/pkg/sources/carto"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: GEODASH_SERVER__PORT sets server.port.
const EnvPrefix = "GEODASH_"

// loggerKey and configKey store the logger and config in context.
type (
	loggerKey struct{}
	configKey struct{}
)

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"geodash.yaml", "geodash.yml"}

// flagKeys maps command-line flags to config keys. Flags not listed here
// are command options and never reach the config.
var flagKeys = map[string]string{
	"verbose":   "verbose",
	"output":    "output",
	"log-level": "log.level",
	"host":      "server.host",
	"port":      "server.port",
	"dev":       "server.dev",
	"watch":     "server.watch",
	"history":   "history.enabled",
}

// defaults are the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"verbose":                       false,
		"output":                        DefaultOutput,
		"server.host":                   DefaultHost,
		"server.port":                   DefaultPort,
		"server.session_secret":         DefaultSessionSecret,
		"server.watch":                  true,
		"log.format":                    "text",
		"sources.carto.type":            "carto",
		"sources.carto.url":             carto.DefaultURL,
		"sources.cars.type":             "duckdb",
		"sources.cars.options.datasets": "cars",
		"history.enabled":               false,
		"history.path":                  DefaultHistoryPath,
	}
}

// findConfigFile searches startDir and its parents for a geodash config file.
func findConfigFile(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range configNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, absolute, a URL or ":memory:".
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) || strings.Contains(path, "://") {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// An empty cfgFile searches the working directory and its parents.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfgFile = findConfigFile(cwd)
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Load environment variables (GEODASH_ prefix)
	// Transform: GEODASH_SERVER__SESSION_SECRET -> server.session_secret
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// --verbose without an explicit level means debug logging
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
		if cfg.Verbose {
			cfg.Log.Level = "debug"
		}
	}

	// 6. Resolve relative paths against the config file's directory
	baseDir, _ := os.Getwd()
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			cfg.ConfigFile = abs
			baseDir = filepath.Dir(abs)
		}
	}
	cfg.resolvePaths(baseDir)
	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// EnvVar is the inverse of envKey: server.port -> GEODASH_SERVER__PORT.
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

// FlagKey returns the config key a flag writes to, if any.
func FlagKey(flag string) (string, bool) {
	key, ok := flagKeys[flag]
	return key, ok
}

func (c *Config) resolvePaths(baseDir string) {
	c.History.Path = resolvePathRelativeTo(c.History.Path, baseDir)
	c.Log.File.Path = resolvePathRelativeTo(c.Log.File.Path, baseDir)

	for name, sc := range c.Sources {
		sc.Path = resolvePathRelativeTo(sc.Path, baseDir)
		if len(sc.Files) > 0 {
			files := make(map[string]string, len(sc.Files))
			for table, path := range sc.Files {
				files[table] = resolvePathRelativeTo(path, baseDir)
			}
			sc.Files = files
		}
		c.Sources[name] = sc
	}
	for name, s := range c.Apps {
		s.Boundaries = resolvePathRelativeTo(s.Boundaries, baseDir)
		c.Apps[name] = s
	}
}

// expandEnvVars expands ${VAR} in secrets and connection settings.
func (c *Config) expandEnvVars() {
	c.Server.SessionSecret = expandEnvVars(c.Server.SessionSecret)
	for name, sc := range c.Sources {
		sc.URL = expandEnvVars(sc.URL)
		sc.APIKey = expandEnvVars(sc.APIKey)
		sc.DSN = expandEnvVars(sc.DSN)
		sc.Host = expandEnvVars(sc.Host)
		sc.Username = expandEnvVars(sc.Username)
		sc.Password = expandEnvVars(sc.Password)
		c.Sources[name] = sc
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context, falling back
// to the built-in defaults.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return Default()
}

// Default returns the built-in defaults without reading files, the
// environment or flags.
func Default() *Config {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(defaults(), "."), nil)
	var cfg Config
	_ = k.Unmarshal("", &cfg)
	cfg.Log.Level = "info"
	return &cfg
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
