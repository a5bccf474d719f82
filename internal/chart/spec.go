// Package chart picks a chart for a query result and prepares the data a
// renderer needs. Selection is a pure function of the table, its roles and an
// optional hint: it either returns a validated *Spec or a *Fallback telling
// the presentation layer to show the data as is.
package chart

import (
	"strings"

	"github.com/KaramelBytes/querylens/internal/table"
)

// Type is a chart kind a renderer knows how to draw.
type Type string

const (
	Bar        Type = "bar"
	GroupedBar Type = "grouped_bar"
	Line       Type = "line"
	Pie        Type = "pie"
	Scatter    Type = "scatter"
	Histogram  Type = "histogram"
	Heatmap    Type = "heatmap"
)

// Types lists every supported chart type.
var Types = []Type{Bar, GroupedBar, Line, Pie, Scatter, Histogram, Heatmap}

// Valid reports whether t is a supported chart type.
func (t Type) Valid() bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

// FacetWrap is the number of facet panels drawn per row.
const FacetWrap = 3

// ReducerSum is the only reducer used when collapsing duplicate keys.
const ReducerSum = "sum"

// Aggregation records how duplicate axis keys were collapsed.
type Aggregation struct {
	GroupBy []string `json:"group_by" yaml:"group_by"`
	Reducer string   `json:"reducer" yaml:"reducer"`
}

// Matrix holds heatmap cells. Source is "pivot" or "correlation".
type Matrix struct {
	Source string      `json:"source" yaml:"source"`
	Rows   []string    `json:"rows" yaml:"rows"`
	Cols   []string    `json:"cols" yaml:"cols"`
	Values [][]float64 `json:"values" yaml:"values"`
}

// Result is either *Spec or *Fallback.
type Result interface {
	// Matched reports whether a specific chart was chosen.
	Matched() bool
	result()
}

// Spec is a validated chart description. Frame holds the rows to plot after
// aggregation and ordering.
type Spec struct {
	Type        Type         `json:"type" yaml:"type"`
	Title       string       `json:"title,omitempty" yaml:"title,omitempty"`
	X           string       `json:"x,omitempty" yaml:"x,omitempty"`
	Y           []string     `json:"y,omitempty" yaml:"y,omitempty"`
	Color       string       `json:"color,omitempty" yaml:"color,omitempty"`
	Facet       string       `json:"facet,omitempty" yaml:"facet,omitempty"`
	FacetWrap   int          `json:"facet_wrap,omitempty" yaml:"facet_wrap,omitempty"`
	Size        string       `json:"size,omitempty" yaml:"size,omitempty"`
	Names       string       `json:"names,omitempty" yaml:"names,omitempty"`
	Path        []string     `json:"path,omitempty" yaml:"path,omitempty"`
	Index       string       `json:"index,omitempty" yaml:"index,omitempty"`
	Barmode     string       `json:"barmode,omitempty" yaml:"barmode,omitempty"`
	Horizontal  bool         `json:"horizontal,omitempty" yaml:"horizontal,omitempty"`
	Markers     bool         `json:"markers,omitempty" yaml:"markers,omitempty"`
	Aggregation *Aggregation `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	Matrix      *Matrix      `json:"matrix,omitempty" yaml:"matrix,omitempty"`
	Frame       *table.Table `json:"-" yaml:"-"`
}

func (*Spec) Matched() bool { return true }
func (*Spec) result()       {}

// Hierarchical reports whether a pie is drawn as nested rings.
func (s *Spec) Hierarchical() bool { return s.Type == Pie && len(s.Path) > 1 }

// Columns lists every column the chart references, in slot order.
func (s *Spec) Columns() []string {
	var out []string
	seen := map[string]bool{}
	add := func(names ...string) {
		for _, n := range names {
			if n != "" && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	add(s.X)
	add(s.Y...)
	add(s.Color, s.Facet, s.Size, s.Names, s.Index)
	add(s.Path...)
	return out
}

func title(t Type, x string, y []string) string {
	name := strings.ReplaceAll(string(t), "_", " ")
	name = strings.ToUpper(name[:1]) + name[1:]
	switch {
	case x != "" && len(y) > 0:
		return name + ": " + strings.Join(y, ", ") + " by " + x
	case len(y) > 0:
		return name + ": " + strings.Join(y, ", ")
	case x != "":
		return name + ": " + x
	}
	return name
}
