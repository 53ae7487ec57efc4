package data

import (
	"math"
	"sort"
	"sync"

	"clusterkit/domain/core"
)

// Well-known auxiliary column names written by the built-in workers.
const (
	ColumnCluster   = "cluster"
	ColumnBenchmark = "bpoint"
)

// Data is the container passed through a chain of workers. It owns the sample
// points, one output distribution per point and any number of auxiliary
// columns (cluster ids, benchmark flags, ...). Rows are only ever appended.
//
// Accessors return copies, so a caller cannot mutate the container other than
// through its methods.
type Data struct {
	mu sync.RWMutex

	coeffNames []string
	points     [][]complex128
	outputs    [][]float64
	index      []int
	columns    map[string][]float64
	meta       map[string]string
	nextIndex  int
}

// New creates an empty container for the given coefficient layout.
func New(coeffNames ...string) *Data {
	return &Data{
		coeffNames: append([]string(nil), coeffNames...),
		columns:    make(map[string][]float64),
		meta:       make(map[string]string),
	}
}

// SetCoeffNames declares the coefficient layout. Once rows exist the arity
// can no longer change.
func (d *Data) SetCoeffNames(names []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.points) > 0 && len(names) != len(d.coeffNames) {
		return core.NewInputError("cannot change coefficient arity from %d to %d on a populated container",
			len(d.coeffNames), len(names))
	}
	d.coeffNames = append([]string(nil), names...)
	return nil
}

// CoeffNames returns the ordered coefficient names.
func (d *Data) CoeffNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.coeffNames...)
}

// Len returns the number of rows.
func (d *Data) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.points)
}

// AppendPoint adds one sample point with its computed output and returns the
// new row number.
func (d *Data) AppendPoint(coords []complex128, output []float64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(coords) != len(d.coeffNames) {
		return 0, core.NewInputError("point has %d coordinates, container declares %d coefficients",
			len(coords), len(d.coeffNames))
	}
	if len(d.points) > 0 && len(output) != len(d.outputs[0]) {
		return 0, core.NewInputError("output has %d bins, existing rows have %d",
			len(output), len(d.outputs[0]))
	}

	row := len(d.points)
	d.points = append(d.points, append([]complex128(nil), coords...))
	d.outputs = append(d.outputs, append([]float64(nil), output...))
	d.index = append(d.index, d.nextIndex)
	d.nextIndex++

	// Auxiliary columns written before this row get a missing value.
	for name, col := range d.columns {
		d.columns[name] = append(col, math.NaN())
	}
	return row, nil
}

// Points returns a copy of all sample points in row order.
func (d *Data) Points() [][]complex128 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([][]complex128, len(d.points))
	for i, p := range d.points {
		out[i] = append([]complex128(nil), p...)
	}
	return out
}

// Outputs returns a copy of all output distributions in row order.
func (d *Data) Outputs() [][]float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([][]float64, len(d.outputs))
	for i, o := range d.outputs {
		out[i] = append([]float64(nil), o...)
	}
	return out
}

// Point returns a copy of the coordinates of row i.
func (d *Data) Point(i int) ([]complex128, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i < 0 || i >= len(d.points) {
		return nil, false
	}
	return append([]complex128(nil), d.points[i]...), true
}

// Output returns a copy of the output distribution of row i.
func (d *Data) Output(i int) ([]float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i < 0 || i >= len(d.outputs) {
		return nil, false
	}
	return append([]float64(nil), d.outputs[i]...), true
}

// Index returns the origin id of every row. Subsets keep the ids of the rows
// they were taken from.
func (d *Data) Index() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]int(nil), d.index...)
}

// SetAuxiliaryColumn stores a per-row column, replacing any previous column
// of the same name.
func (d *Data) SetAuxiliaryColumn(name string, values []float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name == "" {
		return core.NewInputError("auxiliary column name cannot be empty")
	}
	if len(values) != len(d.points) {
		return core.NewInputError("column %q has %d values, container has %d rows",
			name, len(values), len(d.points))
	}
	d.columns[name] = append([]float64(nil), values...)
	return nil
}

// AuxiliaryColumn returns a copy of the named column.
func (d *Data) AuxiliaryColumn(name string) ([]float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	col, ok := d.columns[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), col...), true
}

// AuxiliaryColumns lists the auxiliary column names in sorted order.
func (d *Data) AuxiliaryColumns() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.columns))
	for name := range d.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetIntColumn stores an integer column such as cluster labels.
func (d *Data) SetIntColumn(name string, values []int) error {
	col := make([]float64, len(values))
	for i, v := range values {
		col[i] = float64(v)
	}
	return d.SetAuxiliaryColumn(name, col)
}

// IntColumn returns the named column as integers. Missing values (NaN) are
// reported as an input error.
func (d *Data) IntColumn(name string) ([]int, error) {
	col, ok := d.AuxiliaryColumn(name)
	if !ok {
		return nil, core.NewInputError("auxiliary column %q not found", name)
	}
	out := make([]int, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			return nil, core.NewInputError("auxiliary column %q has no value for row %d", name, i)
		}
		out[i] = int(v)
	}
	return out, nil
}

// SetMeta records a provenance entry.
func (d *Data) SetMeta(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.meta[key] = value
}

// Meta returns a provenance entry.
func (d *Data) Meta(key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.meta[key]
	return v, ok
}

// MetaKeys lists the provenance keys in sorted order.
func (d *Data) MetaKeys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.meta))
	for k := range d.meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the container.
func (d *Data) Clone() *Data {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows := make([]int, len(d.points))
	for i := range rows {
		rows[i] = i
	}
	c := d.subsetLocked(rows)
	c.nextIndex = d.nextIndex
	return c
}

// Subset returns a new container holding the given rows in the given order.
// Origin ids, auxiliary columns and metadata are carried over.
func (d *Data) Subset(rows []int) (*Data, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, r := range rows {
		if r < 0 || r >= len(d.points) {
			return nil, core.NewInputError("row %d out of range [0, %d)", r, len(d.points))
		}
	}
	return d.subsetLocked(rows), nil
}

func (d *Data) subsetLocked(rows []int) *Data {
	c := New(d.coeffNames...)
	c.points = make([][]complex128, len(rows))
	c.outputs = make([][]float64, len(rows))
	c.index = make([]int, len(rows))
	for i, r := range rows {
		c.points[i] = append([]complex128(nil), d.points[r]...)
		c.outputs[i] = append([]float64(nil), d.outputs[r]...)
		c.index[i] = d.index[r]
	}
	for name, col := range d.columns {
		sub := make([]float64, len(rows))
		for i, r := range rows {
			sub[i] = col[r]
		}
		c.columns[name] = sub
	}
	for k, v := range d.meta {
		c.meta[k] = v
	}
	c.nextIndex = d.nextIndex
	return c
}

// Restore rebuilds a container from persisted state. It is used by the
// storage adapters; index may be nil for a freshly numbered container.
func Restore(coeffNames []string, points [][]complex128, outputs [][]float64, index []int,
	columns map[string][]float64, meta map[string]string) (*Data, error) {

	if len(points) != len(outputs) {
		return nil, core.NewInputError("%d points but %d outputs", len(points), len(outputs))
	}
	if index != nil && len(index) != len(points) {
		return nil, core.NewInputError("%d points but %d index entries", len(points), len(index))
	}

	d := New(coeffNames...)
	for i := range points {
		if _, err := d.AppendPoint(points[i], outputs[i]); err != nil {
			return nil, err
		}
	}
	if index != nil {
		d.index = append([]int(nil), index...)
		for _, id := range index {
			if id >= d.nextIndex {
				d.nextIndex = id + 1
			}
		}
	}
	for name, col := range columns {
		if err := d.SetAuxiliaryColumn(name, col); err != nil {
			return nil, err
		}
	}
	for k, v := range meta {
		d.meta[k] = v
	}
	return d, nil
}
