// Package duckdb provides a DuckDB source over local files and bundled datasets.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/geodash/pkg/datasets"
	"github.com/leapstack-labs/geodash/pkg/frame"
	"github.com/leapstack-labs/geodash/pkg/source"
)

func init() {
	source.Register("duckdb", func(logger *slog.Logger) source.Source {
		return New(logger)
	})
}

// Source implements source.Source for DuckDB.
type Source struct {
	source.BaseSQLSource

	mu    sync.Mutex
	views map[string]string // table -> CREATE OR REPLACE VIEW statement
}

// New creates a new DuckDB source instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		BaseSQLSource: source.BaseSQLSource{Logger: logger},
	}
}

// Name returns the registered source type.
func (s *Source) Name() string {
	return "duckdb"
}

// Connect opens DuckDB, registers cfg.Files as views and materializes the
// bundled datasets listed in the "datasets" option (comma separated).
// Use ":memory:" (or an empty path) for an in-memory database.
func (s *Source) Connect(ctx context.Context, cfg source.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}
	s.DB = db
	s.Cfg = cfg

	for _, name := range sortedKeys(cfg.Files) {
		if err := s.RegisterFile(ctx, name, cfg.Files[name]); err != nil {
			return err
		}
	}
	for _, name := range splitList(cfg.Options["datasets"]) {
		if err := s.LoadDataset(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Fetch runs q. A file-backed table has its view recreated first, since
// DuckDB pins a view's column types when it is created and an edited file
// may infer different ones.
func (s *Source) Fetch(ctx context.Context, q source.Query) (*frame.Frame, error) {
	s.mu.Lock()
	stmt, ok := s.views[q.Table]
	if !ok {
		s.mu.Unlock()
		return s.BaseSQLSource.Fetch(ctx, q)
	}
	defer s.mu.Unlock()

	if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to refresh view %s: %w", q.Table, err)
	}
	return s.BaseSQLSource.Fetch(ctx, q)
}

// RegisterFile exposes a local CSV, Parquet or JSON file as a view.
// The file is read on every query, so edits show up on the next fetch.
func (s *Source) RegisterFile(ctx context.Context, table, file string) error {
	if !source.ValidIdentifier(table) {
		return fmt.Errorf("%w: table %q", source.ErrInvalidIdentifier, table)
	}
	absPath, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	reader, err := readerFor(absPath)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s(%s)", table, reader, quote(absPath))
	if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to register %s as %s: %w", file, table, err)
	}
	s.mu.Lock()
	if s.views == nil {
		s.views = make(map[string]string)
	}
	s.views[table] = stmt
	s.mu.Unlock()
	s.Logger.Debug("registered file", slog.String("table", table), slog.String("path", absPath))
	return nil
}

// LoadDataset materializes a bundled dataset as a table of the same name.
func (s *Source) LoadDataset(ctx context.Context, name string) error {
	data, ok := datasets.Get(name)
	if !ok {
		return fmt.Errorf("unknown dataset %q (available: %v)", name, datasets.Names())
	}

	tmp, err := os.CreateTemp("", "geodash-"+name+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to stage dataset %s: %w", name, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to stage dataset %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to stage dataset %s: %w", name, err)
	}

	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_json_auto(%s)", name, quote(tmp.Name()))
	if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to load dataset %s: %w", name, err)
	}
	s.Logger.Debug("loaded dataset", slog.String("table", name))
	return nil
}

func readerFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return "read_csv_auto", nil
	case ".parquet":
		return "read_parquet", nil
	case ".json", ".ndjson":
		return "read_json_auto", nil
	}
	return "", fmt.Errorf("unsupported data file %s (want .csv, .parquet or .json)", path)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var _ source.Source = (*Source)(nil)
