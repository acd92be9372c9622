package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/logging"
	"github.com/leapstack-labs/geodash/pkg/source"
)

// OutputModes are the accepted values of the output setting.
var OutputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid. Source types must be
// registered, so callers import the source packages they need.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if !validOutput(c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q", strings.Join(OutputModes, ", "), c.OutputFormat))
	}

	for _, name := range sortedKeys(c.Sources) {
		sc := c.Sources[name]
		switch {
		case sc.Type == "":
			errs = append(errs, fmt.Errorf("sources.%s: type is required", name))
		case !source.IsRegistered(sc.Type):
			errs = append(errs, fmt.Errorf("sources.%s: unknown source type %q (available: %s)",
				name, sc.Type, strings.Join(source.List(), ", ")))
		}
	}

	for _, name := range sortedKeys(c.Apps) {
		s := c.Apps[name]
		if s.Source == "" || s.Source == apps.BuiltinSource {
			continue
		}
		if _, ok := c.Sources[s.Source]; !ok {
			errs = append(errs, fmt.Errorf("apps.%s: source %q is not configured", name, s.Source))
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history.path is required when history is enabled"))
	}
	return errors.Join(errs...)
}

func validOutput(mode string) bool {
	for _, m := range OutputModes {
		if mode == m {
			return true
		}
	}
	return false
}
