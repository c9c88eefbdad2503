package warehouse

import "sort"

// columnIndex maps column names to positions. It is shared by every row
// read from the same result set.
type columnIndex struct {
	names []string
	pos   map[string]int
}

func newColumnIndex(names []string) *columnIndex {
	idx := &columnIndex{
		names: names,
		pos:   make(map[string]int, len(names)),
	}
	for i, n := range names {
		if _, dup := idx.pos[n]; !dup {
			idx.pos[n] = i
		}
	}
	return idx
}

// Row is an ordered, read-only view of one result row. Values keep the
// native Go types the driver produced (int64, float64, string, *big.Rat,
// civil.Date, time.Time, ...).
type Row struct {
	cols   *columnIndex
	values []any
}

// NewRow builds a row from parallel name and value slices.
func NewRow(names []string, values []any) Row {
	return Row{cols: newColumnIndex(names), values: values}
}

// RowFromMap builds a row from a map; keys are ordered lexically.
func RowFromMap(m map[string]any) Row {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = m[n]
	}
	return NewRow(names, values)
}

// Keys returns the column names in result order.
func (r Row) Keys() []string {
	if r.cols == nil {
		return nil
	}
	return r.cols.names
}

// Get returns the value of the named column. ok is false when the row has
// no such column; a present SQL NULL yields (nil, true).
func (r Row) Get(name string) (v any, ok bool) {
	if r.cols == nil {
		return nil, false
	}
	i, ok := r.cols.pos[name]
	if !ok || i >= len(r.values) {
		return nil, false
	}
	return r.values[i], true
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.values)
}

// Map copies the row into a map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for _, k := range r.Keys() {
		m[k], _ = r.Get(k)
	}
	return m
}
