package chart

import "github.com/KaramelBytes/querylens/internal/table"

// FallbackKind names how raw data should be shown when no chart matched.
type FallbackKind string

const (
	NoData        FallbackKind = "no_data"
	TimeSeries    FallbackKind = "time_series"
	ScatterMatrix FallbackKind = "scatter_matrix"
	SeriesBar     FallbackKind = "series_bar"
	PlainTable    FallbackKind = "table"
)

// Fallback is the terminal outcome when no chart could be built. X and Y
// name the columns of the simple view chosen by Kind.
type Fallback struct {
	Kind   FallbackKind `json:"kind" yaml:"kind"`
	X      string       `json:"x,omitempty" yaml:"x,omitempty"`
	Y      []string     `json:"y,omitempty" yaml:"y,omitempty"`
	Reason string       `json:"reason,omitempty" yaml:"reason,omitempty"`
	Table  *table.Table `json:"-" yaml:"-"`
}

func (*Fallback) Matched() bool { return false }
func (*Fallback) result()       {}

// Message is the notice shown instead of a chart title.
func (f *Fallback) Message() string {
	if f.Kind == NoData {
		return "No data returned; nothing to chart."
	}
	return "Could not determine a specific chart; showing data."
}

func newFallback(t *table.Table, r table.Roles, reason string) *Fallback {
	f := &Fallback{Kind: PlainTable, Reason: reason, Table: t}
	switch {
	case len(r.Temporal) > 0 && len(r.Numeric) > 0:
		f.Kind, f.X, f.Y = TimeSeries, r.Temporal[0], r.Numeric
	case len(r.Numeric) >= 2:
		f.Kind, f.Y = ScatterMatrix, r.Numeric
	case len(r.Categorical) > 0 && len(r.Numeric) > 0:
		f.Kind, f.X, f.Y = SeriesBar, r.Categorical[0], r.Numeric[:1]
	}
	return f
}
