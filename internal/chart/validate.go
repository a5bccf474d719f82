package chart

import (
	"fmt"

	"github.com/KaramelBytes/querylens/internal/stats"
	"github.com/KaramelBytes/querylens/internal/table"
)

// Validate checks that every column a spec references exists in t and that
// its role fits the slot it is used in.
func Validate(s *Spec, t *table.Table, roles table.Roles) error {
	if s == nil {
		return fmt.Errorf("nil spec")
	}
	if !s.Type.Valid() {
		return fmt.Errorf("unsupported chart type %q", s.Type)
	}
	check := func(slot, name string, allowed ...table.Role) error {
		if name == "" {
			return nil
		}
		if t.Index(name) < 0 {
			return fmt.Errorf("%s column %q not in result", slot, name)
		}
		role, ok := roles.Of(name)
		if !ok {
			return fmt.Errorf("%s column %q has no role", slot, name)
		}
		for _, a := range allowed {
			if role == a {
				return nil
			}
		}
		return fmt.Errorf("%s column %q is %s", slot, name, role)
	}
	axis := []table.Role{table.RoleCategorical, table.RoleTemporal}
	numeric := []table.Role{table.RoleNumeric}

	var xRoles []table.Role
	switch s.Type {
	case Line:
		xRoles = []table.Role{table.RoleTemporal, table.RoleNumeric}
	case Scatter, Histogram:
		xRoles = numeric
	case Pie:
		if s.X != "" {
			return fmt.Errorf("pie takes no x column")
		}
	default:
		xRoles = axis
	}
	if err := check("x", s.X, xRoles...); err != nil {
		return err
	}
	for _, y := range s.Y {
		if err := check("y", y, numeric...); err != nil {
			return err
		}
	}
	for _, slot := range [][2]string{{"color", s.Color}, {"facet", s.Facet}, {"names", s.Names}, {"index", s.Index}} {
		if err := check(slot[0], slot[1], axis...); err != nil {
			return err
		}
	}
	for _, p := range s.Path {
		if err := check("path", p, axis...); err != nil {
			return err
		}
	}
	if err := check("size", s.Size, numeric...); err != nil {
		return err
	}

	switch s.Type {
	case Bar, Line:
		if s.X == "" || len(s.Y) == 0 {
			return fmt.Errorf("%s needs x and y", s.Type)
		}
	case GroupedBar:
		if s.X == "" || len(s.Y) == 0 || s.Color == "" {
			return fmt.Errorf("grouped bar needs x, y and a group column")
		}
	case Pie:
		if (s.Names == "" && len(s.Path) == 0) || len(s.Y) != 1 {
			return fmt.Errorf("pie needs names and one value column")
		}
	case Scatter:
		if s.X == "" || len(s.Y) != 1 {
			return fmt.Errorf("scatter needs x and one y column")
		}
	case Histogram:
		if s.X == "" || len(s.Y) != 0 {
			return fmt.Errorf("histogram needs x only")
		}
	case Heatmap:
		pivoted := s.Index != "" && s.X != "" && len(s.Y) == 1
		correlated := s.Index == "" && s.X == "" && len(s.Y) >= 3
		if !pivoted && !correlated {
			return fmt.Errorf("heatmap needs a categorical pair or three numeric columns")
		}
	}
	return nil
}

// pivot lays a (row key, column key, value) frame out as a matrix. Keys keep
// first-seen order and absent combinations are zero.
func pivot(frame *table.Table) *Matrix {
	m := &Matrix{Source: "pivot"}
	rowAt, colAt := map[string]int{}, map[string]int{}
	for i := 0; i < frame.Len(); i++ {
		r, c := frame.Label(i, 0), frame.Label(i, 1)
		if _, ok := rowAt[r]; !ok {
			rowAt[r] = len(m.Rows)
			m.Rows = append(m.Rows, r)
		}
		if _, ok := colAt[c]; !ok {
			colAt[c] = len(m.Cols)
			m.Cols = append(m.Cols, c)
		}
	}
	m.Values = make([][]float64, len(m.Rows))
	for i := range m.Values {
		m.Values[i] = make([]float64, len(m.Cols))
	}
	for i := 0; i < frame.Len(); i++ {
		v, _ := frame.Float(i, 2)
		m.Values[rowAt[frame.Label(i, 0)]][colAt[frame.Label(i, 1)]] += v
	}
	return m
}

// correlationMatrix computes pairwise Pearson coefficients over rows where
// both columns are present. Undefined coefficients are zero.
func correlationMatrix(frame *table.Table) *Matrix {
	names := frame.Names()
	m := &Matrix{Source: "correlation", Rows: names, Cols: names, Values: make([][]float64, len(names))}
	for i := range names {
		m.Values[i] = make([]float64, len(names))
		m.Values[i][i] = 1
	}
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			x, y := pairedFloats(frame, i, j)
			if r, ok := stats.Correlation(x, y); ok {
				m.Values[i][j], m.Values[j][i] = r, r
			}
		}
	}
	return m
}

func pairedFloats(t *table.Table, a, b int) ([]float64, []float64) {
	var x, y []float64
	for i := 0; i < t.Len(); i++ {
		fa, okA := t.Float(i, a)
		fb, okB := t.Float(i, b)
		if okA && okB {
			x = append(x, fa)
			y = append(y, fb)
		}
	}
	return x, y
}
