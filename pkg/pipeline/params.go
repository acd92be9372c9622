package pipeline

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Days is the day-count window shared by the shootings apps.
var Days = IntParam{Name: "days", Default: 90, Min: 30, Max: 365}

// IntParam is a bounded integer control or query parameter.
type IntParam struct {
	Name     string
	Default  int
	Min, Max int
}

// Clamp limits v to [Min, Max].
func (p IntParam) Clamp(v int) int {
	return max(p.Min, min(p.Max, v))
}

// Parse reads a raw query value. Anything that is not a base 10 integer,
// including "90.7", yields the default; integers are clamped.
func (p IntParam) Parse(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return p.Default
	}
	return p.Clamp(n)
}

// parseNumber reads a JSON number, which unlike a query value may carry a
// fraction.
func (p IntParam) parseNumber(n json.Number) int {
	if i, err := n.Int64(); err == nil {
		return p.Clamp(int(i))
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return p.Default
	}
	return p.clampFloat(f)
}

// FromSignal reads a value decoded from JSON. Numbers are rounded; strings,
// as they arrive from query values and --set, are read with Parse.
func (p IntParam) FromSignal(v any) int {
	switch x := v.(type) {
	case nil:
		return p.Default
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return p.Default
		}
		return p.clampFloat(x)
	case int:
		return p.Clamp(x)
	case int64:
		return p.Clamp(int(x))
	case json.Number:
		return p.parseNumber(x)
	case string:
		return p.Parse(x)
	}
	return p.Default
}

func (p IntParam) clampFloat(f float64) int {
	f = math.Round(f)
	if f < float64(p.Min) {
		return p.Min
	}
	if f > float64(p.Max) {
		return p.Max
	}
	return int(f)
}

// ChoiceParam is a parameter restricted to a fixed set of values.
type ChoiceParam struct {
	Name    string
	Default string
	Choices []string
}

// Parse returns raw when it is one of Choices, otherwise the default.
func (p ChoiceParam) Parse(raw string) string {
	raw = strings.TrimSpace(raw)
	if slices.Contains(p.Choices, raw) {
		return raw
	}
	return p.Default
}

// FromSignal reads a value decoded from JSON.
func (p ChoiceParam) FromSignal(v any) string {
	s, ok := v.(string)
	if !ok {
		return p.Default
	}
	return p.Parse(s)
}

// Param is a named, self-normalizing parameter.
type Param interface {
	Key() string
	DefaultValue() any
	// Normalize maps any raw value (query string, JSON signal) to a valid one.
	Normalize(v any) any
}

// Key returns the parameter name.
func (p IntParam) Key() string { return p.Name }

// DefaultValue returns the default.
func (p IntParam) DefaultValue() any { return p.Default }

// Normalize returns FromSignal(v).
func (p IntParam) Normalize(v any) any { return p.FromSignal(v) }

// Key returns the parameter name.
func (p ChoiceParam) Key() string { return p.Name }

// DefaultValue returns the default.
func (p ChoiceParam) DefaultValue() any { return p.Default }

// Normalize returns FromSignal(v).
func (p ChoiceParam) Normalize(v any) any { return p.FromSignal(v) }
