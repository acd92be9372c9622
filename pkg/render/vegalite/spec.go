// Package vegalite builds Vega-Lite v5 specifications and wraps them into
// self-contained HTML documents rendered in the browser by vega-embed.
package vegalite

import (
	"github.com/leapstack-labs/geodash/pkg/frame"
)

// SchemaURL is the Vega-Lite schema every top-level spec declares.
const SchemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

// Spec is a (possibly composite) Vega-Lite view.
type Spec struct {
	Schema      string      `json:"$schema,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Data        *Data       `json:"data,omitempty"`
	Mark        *Mark       `json:"mark,omitempty"`
	Encoding    *Encoding   `json:"encoding,omitempty"`
	Params      []Param     `json:"params,omitempty"`
	Transform   []Transform `json:"transform,omitempty"`
	Width       int         `json:"width,omitempty"`
	Height      int         `json:"height,omitempty"`
	HConcat     []Spec      `json:"hconcat,omitempty"`
	VConcat     []Spec      `json:"vconcat,omitempty"`
}

// Data holds inline records.
type Data struct {
	Values []map[string]any `json:"values"`
}

// Mark is a mark definition such as {"type": "bar"}.
type Mark struct {
	Type    string `json:"type"`
	Tooltip bool   `json:"tooltip,omitempty"`
}

// Encoding maps data fields to visual channels.
type Encoding struct {
	X       *Channel  `json:"x,omitempty"`
	Y       *Channel  `json:"y,omitempty"`
	Color   *Channel  `json:"color,omitempty"`
	Tooltip []Channel `json:"tooltip,omitempty"`
}

// Channel is a field or value definition for one encoding channel.
type Channel struct {
	Field     string     `json:"field,omitempty"`
	Type      string     `json:"type,omitempty"`
	Aggregate string     `json:"aggregate,omitempty"`
	Bin       *Bin       `json:"bin,omitempty"`
	Sort      *SortField `json:"sort,omitempty"`
	Scale     *Scale     `json:"scale,omitempty"`
	Title     string     `json:"title,omitempty"`
	Condition *Condition `json:"condition,omitempty"`
	Value     any        `json:"value,omitempty"`
}

// Bin configures binning. An empty Bin means default binning.
type Bin struct {
	MaxBins int       `json:"maxbins,omitempty"`
	Extent  []float64 `json:"extent,omitempty"`
}

// SortField sorts a channel by an aggregate of the data.
type SortField struct {
	Op    string `json:"op"`
	Order string `json:"order,omitempty"`
	Field string `json:"field,omitempty"`
}

// Scale sets a channel's domain.
type Scale struct {
	Domain []any `json:"domain,omitempty"`
}

// Condition applies a field definition while a selection is active.
type Condition struct {
	Param string `json:"param"`
	Field string `json:"field,omitempty"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Param declares a named selection.
type Param struct {
	Name   string     `json:"name"`
	Select *Selection `json:"select,omitempty"`
}

// Selection is an interval or point selection definition.
type Selection struct {
	Type      string   `json:"type"`
	Encodings []string `json:"encodings,omitempty"`
}

// Transform is a view-level transform. Only parameter filters are used.
type Transform struct {
	Filter *FilterParam `json:"filter,omitempty"`
}

// FilterParam filters data to the rows inside a selection.
type FilterParam struct {
	Param string `json:"param"`
}

// Field returns a plain field channel, e.g. Field("Origin", Nominal).
func Field(name, typ string) *Channel {
	return &Channel{Field: name, Type: typ}
}

// Count returns an aggregate count() channel.
func Count() *Channel {
	return &Channel{Aggregate: "count", Type: Quantitative}
}

// Measurement types.
const (
	Quantitative = "quantitative"
	Nominal      = "nominal"
	Ordinal      = "ordinal"
	Temporal     = "temporal"
)

// Interval returns an interval selection param over the given encodings.
func Interval(name string, encodings ...string) Param {
	return Param{Name: name, Select: &Selection{Type: "interval", Encodings: encodings}}
}

// FilterBy returns a transform keeping rows inside the named selection.
func FilterBy(param string) Transform {
	return Transform{Filter: &FilterParam{Param: param}}
}

// DataFromFrame converts frame rows into inline data. Missing cells become
// null, since NaN has no JSON representation.
func DataFromFrame(f *frame.Frame) *Data {
	records := f.Records()
	for _, rec := range records {
		for k, v := range rec {
			if frame.IsMissing(v) {
				rec[k] = nil
			}
		}
	}
	return &Data{Values: records}
}
