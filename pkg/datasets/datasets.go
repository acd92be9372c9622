// Package datasets bundles the small sample datasets used by the demo apps.
package datasets

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/leapstack-labs/geodash/pkg/frame"
)

//go:embed cars.json
var carsJSON []byte

// CarsColumns is the column order of the cars dataset.
var CarsColumns = []string{
	"Name", "Miles_per_Gallon", "Cylinders", "Displacement", "Horsepower",
	"Weight_in_lbs", "Acceleration", "Year", "Origin",
}

var bundled = map[string][]byte{
	"cars": carsJSON,
}

// Names lists the bundled datasets.
func Names() []string {
	names := make([]string, 0, len(bundled))
	for n := range bundled {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the raw JSON records of a bundled dataset.
func Get(name string) ([]byte, bool) {
	data, ok := bundled[name]
	return data, ok
}

// Cars returns the cars dataset as JSON records.
func Cars() []byte {
	return carsJSON
}

// CarsFrame decodes the cars dataset into a frame.
func CarsFrame() (*frame.Frame, error) {
	var records []map[string]any
	if err := json.Unmarshal(carsJSON, &records); err != nil {
		return nil, fmt.Errorf("failed to decode cars dataset: %w", err)
	}
	return frame.FromRecords(CarsColumns, records)
}
