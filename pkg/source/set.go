package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Set opens named sources on first use and keeps them open until Close.
type Set struct {
	configs map[string]Config
	logger  *slog.Logger

	mu   sync.Mutex
	open map[string]Source
}

// NewSet creates a set over the named configs.
func NewSet(configs map[string]Config, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Set{configs: configs, logger: logger, open: make(map[string]Source)}
}

// Names returns the configured source names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.configs))
	for n := range s.configs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Config returns the configuration of the named source.
func (s *Set) Config(name string) (Config, bool) {
	cfg, ok := s.configs[name]
	return cfg, ok
}

// Source returns the named source, connecting it on first use.
func (s *Set) Source(ctx context.Context, name string) (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if src, ok := s.open[name]; ok {
		return src, nil
	}
	cfg, ok := s.configs[name]
	if !ok {
		return nil, fmt.Errorf("source %q is not configured (available: %v)", name, s.Names())
	}
	src, err := Open(ctx, cfg, s.logger.With(slog.String("source", name)))
	if err != nil {
		return nil, fmt.Errorf("failed to open source %q: %w", name, err)
	}
	s.open[name] = src
	s.logger.Debug("opened source", slog.String("source", name), slog.String("type", cfg.Type))
	return src, nil
}

// Close closes every opened source.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, src := range s.open {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(s.open, name)
	}
	return errors.Join(errs...)
}
