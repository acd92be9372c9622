// Package state keeps a history of pipeline runs in SQLite.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for an unknown render id.
var ErrNotFound = errors.New("render not found")

// DefaultListLimit is used when ListOptions.Limit is zero or negative.
const DefaultListLimit = 20

// Render is one recorded pipeline run.
type Render struct {
	ID        string          `json:"id"`
	App       string          `json:"app"`
	Variant   string          `json:"variant,omitempty"`
	Params    json.RawMessage `json:"params"`
	Status    string          `json:"status,omitempty"`
	Rows      int             `json:"rows"`
	Error     string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Elapsed   time.Duration   `json:"elapsed"`
}

// Failed reports whether the run ended in an error.
func (r *Render) Failed() bool { return r.Error != "" }

// ListOptions filters List.
type ListOptions struct {
	// App restricts the result to one app; empty means all apps.
	App   string
	Limit int
}

// Store records and reads back renders.
type Store interface {
	Record(ctx context.Context, r *Render) error
	List(ctx context.Context, opts ListOptions) ([]*Render, error)
	Get(ctx context.Context, id string) (*Render, error)
	Close() error
}
