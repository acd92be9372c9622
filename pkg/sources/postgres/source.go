// Package postgres provides a PostgreSQL/PostGIS source.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/geodash/pkg/source"
)

func init() {
	source.Register("postgres", func(logger *slog.Logger) source.Source {
		return New(logger)
	})
}

// Source implements source.Source for PostgreSQL.
type Source struct {
	source.BaseSQLSource
}

// New creates a new PostgreSQL source instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		BaseSQLSource: source.BaseSQLSource{
			Logger:       logger,
			GeometryExpr: geometryExpr,
		},
	}
}

// Name returns the registered source type.
func (s *Source) Name() string {
	return "postgres"
}

// Connect establishes a connection pool to PostgreSQL.
func (s *Source) Connect(ctx context.Context, cfg source.Config) error {
	connCfg, err := pgx.ParseConfig(buildPostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("invalid postgres connection settings: %w", err)
	}

	s.Logger.Debug("connecting to postgres", slog.String("host", connCfg.Host), slog.String("database", connCfg.Database))

	db := stdlib.OpenDB(*connCfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	s.DB = db
	s.Cfg = cfg
	return nil
}

// geometryExpr returns PostGIS geometries as GeoJSON text.
func geometryExpr(col string) string {
	return fmt.Sprintf("ST_AsGeoJSON(%s)", col)
}

// buildPostgresDSN constructs a PostgreSQL connection string.
// An explicit DSN wins over the discrete settings.
func buildPostgresDSN(cfg source.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

var _ source.Source = (*Source)(nil)
