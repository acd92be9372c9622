// Package carto provides a source backed by a CARTO SQL API endpoint.
package carto

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	geojson "github.com/paulmach/go.geojson"

	"github.com/leapstack-labs/geodash/pkg/frame"
	"github.com/leapstack-labs/geodash/pkg/geo"
	"github.com/leapstack-labs/geodash/pkg/source"
)

// DefaultURL is the City of Philadelphia CARTO SQL endpoint.
const DefaultURL = "https://phl.carto.com/api/v2/sql"

const defaultTimeout = 60 * time.Second

func init() {
	source.Register("carto", func(logger *slog.Logger) source.Source {
		return New(logger)
	})
}

// Source queries a CARTO SQL API and decodes GeoJSON responses.
type Source struct {
	client *resty.Client
	apiKey string
	logger *slog.Logger
}

// New creates an unconnected CARTO source.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{logger: logger}
}

// Name returns the registered source type.
func (s *Source) Name() string {
	return "carto"
}

// Connect configures the HTTP client. No request is made.
func (s *Source) Connect(_ context.Context, cfg source.Config) error {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := 2
	if v, ok := cfg.Options["retries"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid retries option %q", v)
		}
		retries = n
	}

	s.apiKey = cfg.APIKey
	s.client = resty.New().
		SetBaseURL(strings.TrimSuffix(url, "/")).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		}).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if ra := resp.Header().Get("Retry-After"); ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						return time.Duration(secs) * time.Second, nil
					}
				}
			}
			return 0, nil
		})

	s.logger.Debug("configured carto source", slog.String("url", url), slog.Int("retries", retries))
	return nil
}

// Fetch binds q's arguments into the SQL text and requests GeoJSON.
func (s *Source) Fetch(ctx context.Context, q source.Query) (*frame.Frame, error) {
	if s.client == nil {
		return nil, fmt.Errorf("carto source not connected")
	}

	// CARTO encodes the geometry column itself when format=geojson.
	geomCol := q.Geometry
	if q.Geometry != "" {
		if len(q.Columns) > 0 {
			q.Columns = append(append([]string(nil), q.Columns...), q.Geometry)
		}
		q.Geometry = ""
	}
	stmt, err := q.SQL(nil)
	if err != nil {
		return nil, err
	}
	stmt, err = source.Bind(stmt, q.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to bind query: %w", err)
	}

	params := map[string]string{"q": stmt, "format": "geojson"}
	if s.apiKey != "" {
		params["api_key"] = s.apiKey
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("failed to query carto: %w", err)
	}
	s.logger.Debug("carto query finished",
		slog.String("sql", stmt),
		slog.Int("status", resp.StatusCode()),
		slog.Duration("elapsed", time.Since(start)))

	if resp.IsError() {
		return nil, parseAPIError(resp)
	}

	fc, err := geojson.UnmarshalFeatureCollection(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to decode carto response: %w", err)
	}
	f, err := geo.FrameFromFeatures(fc)
	if err != nil {
		return nil, err
	}
	if len(q.Columns) > 0 && f.Len() == 0 {
		// An empty collection carries no properties; keep the requested shape.
		cols := make([]string, 0, len(q.Columns)+1)
		for _, c := range q.Columns {
			if c != geomCol {
				cols = append(cols, c)
			}
		}
		return frame.Empty(append(cols, geo.GeometryColumn)...), nil
	}
	return f, nil
}

// Close is a no-op; the HTTP client holds no resources worth releasing.
func (s *Source) Close() error {
	return nil
}

func parseAPIError(resp *resty.Response) error {
	apiErr := &source.APIError{StatusCode: resp.StatusCode()}
	var body struct {
		Error []string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && len(body.Error) > 0 {
		apiErr.Messages = body.Error
	} else if text := strings.TrimSpace(string(resp.Body())); text != "" {
		apiErr.Messages = []string{text}
	}
	return apiErr
}

var _ source.Source = (*Source)(nil)
