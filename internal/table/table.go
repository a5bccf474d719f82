package table

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind is the resolved semantic type of a column.
type Kind string

const (
	KindUnknown     Kind = "unknown"
	KindCategorical Kind = "categorical"
	KindInteger     Kind = "integer"
	KindFloat       Kind = "float"
	KindTemporal    Kind = "temporal"
)

// Numeric reports whether values of this kind are stored as float64.
func (k Kind) Numeric() bool { return k == KindInteger || k == KindFloat }

// Column names a column and its semantic type.
type Column struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// ErrShape is returned when column names or row widths are inconsistent.
var ErrShape = errors.New("table: malformed shape")

// Table is an immutable query result. Cells are nil (missing), float64
// (integer and float columns), time.Time (temporal) or string (categorical).
// Row order is the order the rows were produced in.
type Table struct {
	cols  []Column
	rows  [][]any
	index map[string]int
}

// New validates cols and rows and returns a Table. A column whose cells do
// not match its declared kind is coerced to categorical. Temporal columns
// accept date strings as well as time values.
func New(cols []Column, rows [][]any) (*Table, error) {
	t := &Table{
		cols:  make([]Column, len(cols)),
		rows:  make([][]any, len(rows)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrShape, i+1)
		}
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrShape, name)
		}
		if c.Kind == "" {
			c.Kind = KindUnknown
		}
		t.cols[i] = Column{Name: name, Kind: c.Kind}
		t.index[name] = i
	}
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrShape, i+1, len(r), len(cols))
		}
		t.rows[i] = make([]any, len(r))
	}
	for j := range t.cols {
		kind, ok := normalizeColumn(t.cols[j].Kind, rows, j, t.rows)
		if !ok {
			kind = KindCategorical
			for i := range rows {
				t.rows[i][j] = coerceLabel(rows[i][j])
			}
		}
		t.cols[j].Kind = kind
	}
	return t, nil
}

// MustNew is like New but panics on error. Intended for fixtures.
func MustNew(cols []Column, rows [][]any) *Table {
	t, err := New(cols, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// normalizeColumn converts column j of src into dst according to kind and
// reports false when any cell disagrees with it.
func normalizeColumn(kind Kind, src [][]any, j int, dst [][]any) (Kind, bool) {
	for i := range src {
		v := src[i][j]
		if isMissing(v) {
			dst[i][j] = nil
			continue
		}
		switch kind {
		case KindInteger, KindFloat:
			f, ok := toFloat(v)
			if !ok {
				return kind, false
			}
			dst[i][j] = f
		case KindTemporal:
			tm, ok := toTime(v)
			if !ok {
				return kind, false
			}
			dst[i][j] = tm
		case KindCategorical:
			dst[i][j] = coerceLabel(v)
		default:
			// cells present in a column nobody could type
			return kind, false
		}
	}
	return kind, true
}

func isMissing(v any) bool {
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

// toTime accepts time values and date strings.
func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return ParseTime(x, nil)
	case []byte:
		return ParseTime(string(x), nil)
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsInf(x, 0)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func coerceLabel(v any) any {
	if isMissing(v) {
		return nil
	}
	return formatCell(v)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return FormatTime(x)
	case bool:
		return strconv.FormatBool(x)
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// FormatTime renders a timestamp as a date when it has no clock component.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.cols)
}

// Columns returns a copy of the column list.
func (t *Table) Columns() []Column {
	out := make([]Column, t.Width())
	if t != nil {
		copy(out, t.cols)
	}
	return out
}

// Names returns column names in table order.
func (t *Table) Names() []string {
	out := make([]string, t.Width())
	for i := range out {
		out[i] = t.cols[i].Name
	}
	return out
}

// Column looks a column up by name.
func (t *Table) Column(name string) (Column, bool) {
	i := t.Index(name)
	if i < 0 {
		return Column{}, false
	}
	return t.cols[i], true
}

// Index returns the position of name or -1.
func (t *Table) Index(name string) int {
	if t == nil {
		return -1
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Lookup finds a column case-insensitively.
func (t *Table) Lookup(name string) (Column, bool) {
	if c, ok := t.Column(name); ok {
		return c, true
	}
	for _, c := range t.cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Value returns the raw cell.
func (t *Table) Value(row, col int) any { return t.rows[row][col] }

// Float returns a numeric cell.
func (t *Table) Float(row, col int) (float64, bool) {
	f, ok := t.rows[row][col].(float64)
	return f, ok
}

// Time returns a temporal cell.
func (t *Table) Time(row, col int) (time.Time, bool) {
	tm, ok := t.rows[row][col].(time.Time)
	return tm, ok
}

// Label returns the display form of a cell; missing cells are empty.
func (t *Table) Label(row, col int) string { return formatCell(t.rows[row][col]) }

// Row returns a copy of row i.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Floats returns the non-missing values of a numeric column in row order.
func (t *Table) Floats(col int) []float64 {
	out := make([]float64, 0, t.Len())
	for i := range t.rows {
		if f, ok := t.Float(i, col); ok {
			out = append(out, f)
		}
	}
	return out
}

// Distinct counts distinct non-missing values in a column.
func (t *Table) Distinct(col int) int {
	seen := make(map[any]struct{})
	for i := range t.rows {
		v := t.rows[i][col]
		if v == nil {
			continue
		}
		if tm, ok := v.(time.Time); ok {
			v = tm.UnixNano()
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

// Records returns the header and all rows rendered as strings.
func (t *Table) Records() ([]string, [][]string) {
	recs := make([][]string, t.Len())
	for i := range recs {
		rec := make([]string, t.Width())
		for j := range rec {
			rec[j] = t.Label(i, j)
		}
		recs[i] = rec
	}
	return t.Names(), recs
}

// Select returns a new table with only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	cols := make([]Column, len(names))
	for k, n := range names {
		i := t.Index(n)
		if i < 0 {
			return nil, fmt.Errorf("table: unknown column %q", n)
		}
		idx[k] = i
		cols[k] = t.cols[i]
	}
	rows := make([][]any, t.Len())
	for r := range t.rows {
		row := make([]any, len(idx))
		for k, i := range idx {
			row[k] = t.rows[r][i]
		}
		rows[r] = row
	}
	return New(cols, rows)
}

// SortedBy returns a copy stably sorted ascending by the named column.
// Missing values sort last.
func (t *Table) SortedBy(name string) (*Table, error) {
	j := t.Index(name)
	if j < 0 {
		return nil, fmt.Errorf("table: unknown column %q", name)
	}
	rows := make([][]any, t.Len())
	for i := range t.rows {
		rows[i] = t.Row(i)
	}
	sort.SliceStable(rows, func(a, b int) bool { return Less(rows[a][j], rows[b][j]) })
	return New(t.Columns(), rows)
}

// Less orders two cells of the same column. Missing values sort last.
func Less(a, b any) bool {
	if a == nil || b == nil {
		return a != nil && b == nil
	}
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Before(y)
		}
	}
	return formatCell(a) < formatCell(b)
}

// GroupSum sums the value columns per distinct combination of key columns.
// Groups keep first-seen order. It also reports whether any key repeated.
func (t *Table) GroupSum(keys, values []string) (*Table, bool, error) {
	kidx := make([]int, len(keys))
	vidx := make([]int, len(values))
	cols := make([]Column, 0, len(keys)+len(values))
	for n, k := range keys {
		i := t.Index(k)
		if i < 0 {
			return nil, false, fmt.Errorf("table: unknown column %q", k)
		}
		kidx[n] = i
		cols = append(cols, t.cols[i])
	}
	for n, v := range values {
		i := t.Index(v)
		if i < 0 {
			return nil, false, fmt.Errorf("table: unknown column %q", v)
		}
		if !t.cols[i].Kind.Numeric() {
			return nil, false, fmt.Errorf("table: column %q is not numeric", v)
		}
		vidx[n] = i
		cols = append(cols, Column{Name: t.cols[i].Name, Kind: KindFloat})
	}

	type group struct {
		key  []any
		sums []float64
	}
	var order []*group
	byKey := make(map[string]*group)
	dup := false
	for r := range t.rows {
		key := make([]any, len(kidx))
		parts := make([]string, len(kidx))
		for n, i := range kidx {
			key[n] = t.rows[r][i]
			parts[n] = keyPart(t.rows[r][i])
		}
		id := strings.Join(parts, "\x1f")
		g, ok := byKey[id]
		if ok {
			dup = true
		} else {
			g = &group{key: key, sums: make([]float64, len(vidx))}
			byKey[id] = g
			order = append(order, g)
		}
		for n, i := range vidx {
			if f, ok := t.Float(r, i); ok {
				g.sums[n] += f
			}
		}
	}
	rows := make([][]any, len(order))
	for n, g := range order {
		row := make([]any, 0, len(cols))
		row = append(row, g.key...)
		for _, s := range g.sums {
			row = append(row, s)
		}
		rows[n] = row
	}
	out, err := New(cols, rows)
	return out, dup, err
}

func keyPart(v any) string {
	switch x := v.(type) {
	case nil:
		return "\x00"
	case time.Time:
		return strconv.FormatInt(x.UnixNano(), 10)
	}
	return formatCell(v)
}
