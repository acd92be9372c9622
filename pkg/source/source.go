// Package source defines the read-only data sources queried by the render
// pipelines, the query model shared by all of them and a name-based registry.
//
// Concrete sources live in pkg/sources/ subdirectories and register
// themselves from init().
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/leapstack-labs/geodash/pkg/frame"
)

// Source is a read-only tabular data source.
type Source interface {
	// Name returns the registered source type, e.g. "carto".
	Name() string

	// Connect prepares the source (opens pools, loads bundled datasets).
	Connect(ctx context.Context, cfg Config) error

	// Fetch runs q and returns its rows as a frame.
	Fetch(ctx context.Context, q Query) (*frame.Frame, error)

	// Close releases resources held by the source.
	Close() error
}

// Config holds connection settings for a source.
type Config struct {
	Type string `koanf:"type" yaml:"type"`

	// URL is the endpoint of an HTTP SQL API.
	URL    string `koanf:"url" yaml:"url,omitempty"`
	APIKey string `koanf:"api_key" yaml:"api_key,omitempty"`

	// DSN is a database connection string; Path a local database file.
	DSN  string `koanf:"dsn" yaml:"dsn,omitempty"`
	Path string `koanf:"path" yaml:"path,omitempty"`

	// Discrete connection settings, used when DSN is empty.
	Host     string `koanf:"host" yaml:"host,omitempty"`
	Port     int    `koanf:"port" yaml:"port,omitempty"`
	Database string `koanf:"database" yaml:"database,omitempty"`
	Username string `koanf:"username" yaml:"username,omitempty"`
	Password string `koanf:"password" yaml:"password,omitempty"`

	// Files maps table names to local CSV/Parquet/JSON files.
	Files map[string]string `koanf:"files" yaml:"files,omitempty"`

	Timeout time.Duration     `koanf:"timeout" yaml:"timeout,omitempty"`
	Options map[string]string `koanf:"options" yaml:"options,omitempty"`
}

// Query is a single-table read. Where may reference Args as $1..$n.
// Table and Columns are identifiers and are validated before use; values
// only ever travel through Args.
type Query struct {
	Table   string
	Columns []string
	Where   string
	Args    []any

	// Geometry names a spatial column returned as GeoJSON, when supported.
	Geometry string

	Limit int
}

// ErrInvalidIdentifier is returned for table or column names that are not
// plain SQL identifiers.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s is a plain SQL identifier.
func ValidIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// Validate checks the identifiers of q.
func (q Query) Validate() error {
	if !ValidIdentifier(q.Table) {
		return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, q.Table)
	}
	for _, c := range q.Columns {
		if !ValidIdentifier(c) {
			return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, c)
		}
	}
	if q.Geometry != "" && !ValidIdentifier(q.Geometry) {
		return fmt.Errorf("%w: geometry column %q", ErrInvalidIdentifier, q.Geometry)
	}
	if q.Limit < 0 {
		return fmt.Errorf("invalid limit %d", q.Limit)
	}
	return nil
}

// SQL renders q as a SELECT statement with its placeholders left in place.
// geometryExpr wraps the geometry column (e.g. ST_AsGeoJSON); nil selects it
// unchanged.
func (q Query) SQL(geometryExpr func(col string) string) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}

	var cols []string
	if len(q.Columns) == 0 {
		cols = append(cols, "*")
	} else {
		cols = append(cols, q.Columns...)
	}
	if q.Geometry != "" {
		expr := q.Geometry
		if geometryExpr != nil {
			expr = geometryExpr(q.Geometry)
		}
		cols = append(cols, expr+" AS geometry")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.Table)
	if w := strings.TrimSpace(q.Where); w != "" {
		b.WriteString(" WHERE ")
		b.WriteString(w)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), nil
}

// APIError is returned when a remote SQL API answers with an error status.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("sql api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("sql api returned status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}
