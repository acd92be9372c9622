// Package frame provides a small immutable data frame for tabular query results.
//
// A Frame holds ordered, named columns and rows of loosely typed values.
// A nil value (or a NaN float) marks a missing cell. Every operation returns a
// new Frame and leaves its receiver untouched, so a transform applied to the
// same input always produces the same output.
package frame

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Row is a read-only view of a single frame row.
type Row struct {
	f *Frame
	i int
}

// Get returns the value of column col, or nil when the column is unknown.
func (r Row) Get(col string) any {
	idx, ok := r.f.index[col]
	if !ok {
		return nil
	}
	return r.f.rows[r.i][idx]
}

// Index returns the row position within its frame.
func (r Row) Index() int {
	return r.i
}

// Frame is an ordered set of named columns.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// New builds a frame from column names and row values.
// Every row must have exactly len(columns) values.
func New(columns []string, rows [][]any) (*Frame, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}

	copied := make([][]any, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(columns))
		}
		copied[i] = append([]any(nil), row...)
	}

	return &Frame{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    copied,
	}, nil
}

// Empty returns a frame with the given columns and no rows.
func Empty(columns ...string) *Frame {
	f, err := New(columns, nil)
	if err != nil {
		// Only duplicate names can fail; fall back to a column-less frame.
		return &Frame{index: map[string]int{}}
	}
	return f
}

// FromRecords builds a frame from row maps using the given column order.
// Keys missing from a record become nil.
func FromRecords(columns []string, records []map[string]any) (*Frame, error) {
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return New(columns, rows)
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Has reports whether the frame has a column named col.
func (f *Frame) Has(col string) bool {
	_, ok := f.index[col]
	return ok
}

// Row returns a view of row i.
func (f *Frame) Row(i int) Row {
	return Row{f: f, i: i}
}

// Value returns the cell at row i and column col.
func (f *Frame) Value(i int, col string) any {
	return f.Row(i).Get(col)
}

// Column returns a copy of all values of col.
func (f *Frame) Column(col string) ([]any, error) {
	idx, ok := f.index[col]
	if !ok {
		return nil, &MissingColumnError{Column: col, Available: f.Columns()}
	}
	out := make([]any, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Records returns every row as a column-name keyed map.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, len(f.rows))
	for i, row := range f.rows {
		rec := make(map[string]any, len(f.columns))
		for j, c := range f.columns {
			rec[c] = row[j]
		}
		out[i] = rec
	}
	return out
}

// Select returns a frame restricted to cols, in that order.
func (f *Frame) Select(cols ...string) (*Frame, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, ok := f.index[c]
		if !ok {
			return nil, &MissingColumnError{Column: c, Available: f.Columns()}
		}
		idx[i] = j
	}

	rows := make([][]any, len(f.rows))
	for i, row := range f.rows {
		out := make([]any, len(cols))
		for k, j := range idx {
			out[k] = row[j]
		}
		rows[i] = out
	}
	return New(cols, rows)
}

// Rename returns a frame with column from renamed to to.
func (f *Frame) Rename(from, to string) (*Frame, error) {
	idx, ok := f.index[from]
	if !ok {
		return nil, &MissingColumnError{Column: from, Available: f.Columns()}
	}
	cols := f.Columns()
	cols[idx] = to
	return New(cols, f.rows)
}

// Apply returns a frame where every value of col is replaced by fn(value).
func (f *Frame) Apply(col string, fn func(v any) any) (*Frame, error) {
	idx, ok := f.index[col]
	if !ok {
		return nil, &MissingColumnError{Column: col, Available: f.Columns()}
	}
	rows := f.cloneRows()
	for _, row := range rows {
		row[idx] = fn(row[idx])
	}
	return &Frame{columns: f.Columns(), index: f.cloneIndex(), rows: rows}, nil
}

// Recode maps integral values of col through codes. Values without a code,
// including missing and non-numeric ones, become nil.
func (f *Frame) Recode(col string, codes map[int64]any) (*Frame, error) {
	return f.Apply(col, func(v any) any {
		n, ok := AsInt(v)
		if !ok {
			return nil
		}
		out, ok := codes[n]
		if !ok {
			return nil
		}
		return out
	})
}

// WithColumn returns a frame with an extra column computed per row.
// An existing column with the same name is replaced in place.
func (f *Frame) WithColumn(name string, fn func(r Row) any) *Frame {
	values := make([]any, len(f.rows))
	for i := range f.rows {
		values[i] = fn(f.Row(i))
	}

	cols := f.Columns()
	rows := f.cloneRows()
	if idx, ok := f.index[name]; ok {
		for i, row := range rows {
			row[idx] = values[i]
		}
		return &Frame{columns: cols, index: f.cloneIndex(), rows: rows}
	}

	for i, row := range rows {
		rows[i] = append(row, values[i])
	}
	index := f.cloneIndex()
	index[name] = len(cols)
	return &Frame{columns: append(cols, name), index: index, rows: rows}
}

// Ensure returns a frame that has every column in cols, adding the missing
// ones filled with nil.
func (f *Frame) Ensure(cols ...string) *Frame {
	out := f
	for _, c := range cols {
		if !out.Has(c) {
			out = out.WithColumn(c, func(Row) any { return nil })
		}
	}
	return out
}

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(r Row) bool) *Frame {
	var rows [][]any
	for i, row := range f.rows {
		if keep(f.Row(i)) {
			rows = append(rows, append([]any(nil), row...))
		}
	}
	return &Frame{columns: f.Columns(), index: f.cloneIndex(), rows: rows}
}

// DropNA removes rows with a missing value in any of cols.
// With no cols, every column is checked.
func (f *Frame) DropNA(cols ...string) (*Frame, error) {
	if len(cols) == 0 {
		cols = f.columns
	}
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, ok := f.index[c]
		if !ok {
			return nil, &MissingColumnError{Column: c, Available: f.Columns()}
		}
		idx[i] = j
	}

	return f.Filter(func(r Row) bool {
		row := f.rows[r.i]
		for _, j := range idx {
			if IsMissing(row[j]) {
				return false
			}
		}
		return true
	}), nil
}

// CountWhere returns how many rows satisfy pred.
func (f *Frame) CountWhere(pred func(r Row) bool) int {
	n := 0
	for i := range f.rows {
		if pred(f.Row(i)) {
			n++
		}
	}
	return n
}

// Count is a group key with its number of rows.
type Count struct {
	Key   any
	Count int
}

// CountBy groups rows by the value of col. Missing values are skipped.
// The result is ordered by count descending, then by key.
func (f *Frame) CountBy(col string) ([]Count, error) {
	idx, ok := f.index[col]
	if !ok {
		return nil, &MissingColumnError{Column: col, Available: f.Columns()}
	}

	counts := make(map[string]*Count)
	for _, row := range f.rows {
		v := row[idx]
		if IsMissing(v) {
			continue
		}
		key := fmt.Sprint(v)
		if c, ok := counts[key]; ok {
			c.Count++
			continue
		}
		counts[key] = &Count{Key: v, Count: 1}
	}

	out := make([]Count, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return fmt.Sprint(out[i].Key) < fmt.Sprint(out[j].Key)
	})
	return out, nil
}

// Equal reports whether two frames have the same columns and cell values.
func (f *Frame) Equal(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	if !reflect.DeepEqual(f.columns, other.columns) || len(f.rows) != len(other.rows) {
		return false
	}
	for i := range f.rows {
		for j := range f.rows[i] {
			a, b := f.rows[i][j], other.rows[i][j]
			if IsMissing(a) && IsMissing(b) {
				continue
			}
			if !reflect.DeepEqual(a, b) {
				return false
			}
		}
	}
	return true
}

func (f *Frame) cloneRows() [][]any {
	rows := make([][]any, len(f.rows))
	for i, row := range f.rows {
		rows[i] = append([]any(nil), row...)
	}
	return rows
}

func (f *Frame) cloneIndex() map[string]int {
	index := make(map[string]int, len(f.index))
	for k, v := range f.index {
		index[k] = v
	}
	return index
}

// IsMissing reports whether v counts as a missing value.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// AsInt converts integral numbers (and floats with no fractional part) to int64.
func AsInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case float32:
		return AsInt(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// AsFloat converts numeric values to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	}
	if n, ok := AsInt(v); ok {
		return float64(n), true
	}
	return 0, false
}

// MissingColumnError is returned when an operation names an unknown column.
type MissingColumnError struct {
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found (available: %v)", e.Column, e.Available)
}
