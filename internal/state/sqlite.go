package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite history store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// NewWithDB wraps an existing connection. Migrations are not run.
func NewWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens the database at path and migrates it.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	s.logger.Debug("opened history", "path", path)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores r. An empty ID is replaced with a new UUID.
func (s *SQLiteStore) Record(ctx context.Context, r *Render) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	params := string(r.Params)
	if params == "" {
		params = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO renders (id, app, variant, params, status, rows, error, started_at, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.App, r.Variant, params, r.Status, r.Rows, r.Error,
		r.StartedAt.UTC(), r.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record render %s: %w", r.ID, err)
	}
	return nil
}

// List returns the most recent renders first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*Render, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, app, variant, params, status, rows, error, started_at, elapsed_ms FROM renders`
	args := []any{}
	if opts.App != "" {
		query += ` WHERE app = ?`
		args = append(args, opts.App)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list renders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Render
	for rows.Next() {
		r, err := scanRender(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list renders: %w", err)
	}
	return out, nil
}

// Get returns the render with the given id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Render, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, app, variant, params, status, rows, error, started_at, elapsed_ms
		FROM renders WHERE id = ?`, id)
	r, err := scanRender(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRender(sc scanner) (*Render, error) {
	var (
		r       Render
		params  string
		elapsed int64
	)
	if err := sc.Scan(&r.ID, &r.App, &r.Variant, &params, &r.Status, &r.Rows, &r.Error, &r.StartedAt, &elapsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan render: %w", err)
	}
	r.Params = []byte(params)
	r.Elapsed = time.Duration(elapsed) * time.Millisecond
	return &r, nil
}

var _ Store = (*SQLiteStore)(nil)
