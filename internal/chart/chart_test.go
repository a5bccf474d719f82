package chart

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/querylens/internal/table"
)

func mustClassify(t *testing.T, tbl *table.Table) table.Roles {
	t.Helper()
	roles, err := table.Classify(tbl)
	require.NoError(t, err)
	return roles
}

func selectSpec(t *testing.T, tbl *table.Table, hint string, opts ...Option) *Spec {
	t.Helper()
	res := Select(tbl, mustClassify(t, tbl), hint, opts...)
	spec, ok := res.(*Spec)
	require.Truef(t, ok, "expected a chart, got %#v", res)
	return spec
}

func monthly(n int, start float64, step float64) *table.Table {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{time.Date(2023, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC), start + step*float64(i)}
	}
	return table.MustNew([]table.Column{{Name: "Date", Kind: table.KindTemporal}, {Name: "Metric", Kind: table.KindFloat}}, rows)
}

func TestParseHint(t *testing.T) {
	tests := []struct {
		hint       string
		want       Type
		annotation string
		ok         bool
	}{
		{"bar (horizontal)", Bar, "horizontal", true},
		{"Bar chart (horizontal)", Bar, "horizontal", true},
		{"  LINE  ", Line, "", true},
		{"Grouped bar chart", GroupedBar, "", true},
		{"grouped-bar", GroupedBar, "", true},
		{"grouped_bar(by region)", GroupedBar, "by region", true},
		{"Scatter plot (size by volume)", Scatter, "size by volume", true},
		{"heat map", Heatmap, "", true},
		{"pie(share)", Pie, "share", true},
		{"radar (spokes)", "", "spokes", false},
		{"", "", "", false},
		{"(only annotation)", "", "only annotation", false},
	}
	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			got, ann, ok := ParseHint(tt.hint)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.annotation, ann)
		})
	}
}

func TestDefault(t *testing.T) {
	tests := []struct {
		roles table.Roles
		want  Type
		ok    bool
	}{
		{table.Roles{Temporal: []string{"d"}, Numeric: []string{"v"}, Categorical: []string{"c"}}, Line, true},
		{table.Roles{Numeric: []string{"v"}, Categorical: []string{"c"}}, Bar, true},
		{table.Roles{Numeric: []string{"a", "b"}}, Scatter, true},
		{table.Roles{Numeric: []string{"a"}}, "", false},
		{table.Roles{Temporal: []string{"d"}, Categorical: []string{"c"}}, "", false},
		{table.Roles{}, "", false},
	}
	for i, tt := range tests {
		got, ok := Default(tt.roles)
		require.Equalf(t, tt.ok, ok, "case %d", i)
		require.Equalf(t, tt.want, got, "case %d", i)
	}
}

func TestScenarioCategoryValueIsBar(t *testing.T) {
	tbl := table.MustNew(
		[]table.Column{{Name: "Category", Kind: table.KindCategorical}, {Name: "Value", Kind: table.KindInteger}},
		[][]any{{"A", 100}, {"B", 80}, {"C", 60}},
	)
	spec := selectSpec(t, tbl, "")
	require.Equal(t, Bar, spec.Type)
	require.Equal(t, "Category", spec.X)
	require.Equal(t, []string{"Value"}, spec.Y)
	require.Empty(t, spec.Color)
	require.Nil(t, spec.Aggregation)
	require.Equal(t, 3, spec.Frame.Len())
}

func TestOneCategoricalOneNumericAlwaysBar(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 1; n <= 25; n++ {
		rows := make([][]any, n)
		for i := range rows {
			rows[i] = []any{fmt.Sprintf("k%d", rng.Intn(5)), rng.NormFloat64() * 100}
		}
		tbl := table.MustNew([]table.Column{{Name: "key", Kind: table.KindCategorical}, {Name: "amount", Kind: table.KindFloat}}, rows)
		spec := selectSpec(t, tbl, "")
		require.Equal(t, Bar, spec.Type)
		require.Equal(t, "key", spec.X)
		require.Equal(t, []string{"amount"}, spec.Y)
	}
}

func TestTemporalNumericIsLineSortedByX(t *testing.T) {
	rows := [][]any{
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 3.0, "east"},
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1.0, "east"},
		{time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 2.0, "west"},
	}
	tbl := table.MustNew([]table.Column{{Name: "day", Kind: table.KindTemporal}, {Name: "sales", Kind: table.KindFloat}, {Name: "region", Kind: table.KindCategorical}}, rows)
	spec := selectSpec(t, tbl, "")
	require.Equal(t, Line, spec.Type)
	require.Equal(t, "day", spec.X)
	require.Equal(t, []string{"sales"}, spec.Y)
	require.Equal(t, "region", spec.Color)
	require.True(t, spec.Markers)

	first, _ := spec.Frame.Time(0, spec.Frame.Index("day"))
	require.Equal(t, 1, int(first.Month()))
	// the input keeps its order
	orig, _ := tbl.Time(0, 0)
	require.Equal(t, 3, int(orig.Month()))

	require.Equal(t, Line, selectSpec(t, monthly(12, 100, 10.09), "").Type)
}

func TestDuplicateKeysAreSummedUnlessSQLAggregated(t *testing.T) {
	tbl := table.MustNew(
		[]table.Column{{Name: "region", Kind: table.KindCategorical}, {Name: "sales", Kind: table.KindFloat}},
		[][]any{{"east", 1.0}, {"west", 2.0}, {"east", 4.0}},
	)
	spec := selectSpec(t, tbl, "bar")
	require.Equal(t, &Aggregation{GroupBy: []string{"region"}, Reducer: ReducerSum}, spec.Aggregation)
	require.Equal(t, 2, spec.Frame.Len())
	v, _ := spec.Frame.Float(0, spec.Frame.Index("sales"))
	require.Equal(t, 5.0, v)

	raw := selectSpec(t, tbl, "bar", WithSQL("SELECT region, SUM(amount) AS sales FROM t GROUP BY region, day"))
	require.Nil(t, raw.Aggregation)
	require.Equal(t, 3, raw.Frame.Len())
}

func TestBarHintNamesOneNumericColumn(t *testing.T) {
	tbl := table.MustNew(
		[]table.Column{{Name: "product", Kind: table.KindCategorical}, {Name: "units", Kind: table.KindInteger}, {Name: "revenue", Kind: table.KindFloat}},
		[][]any{{"a", 1, 10.0}, {"b", 2, 20.0}},
	)
	all := selectSpec(t, tbl, "bar")
	require.Equal(t, []string{"units", "revenue"}, all.Y)
	require.Equal(t, "group", all.Barmode)

	one := selectSpec(t, tbl, "Bar chart (Revenue, horizontal)")
	require.Equal(t, []string{"revenue"}, one.Y)
	require.True(t, one.Horizontal)
	require.Empty(t, one.Barmode)
}

func TestGroupedBarFacetsThirdCategorical(t *testing.T) {
	tbl := table.MustNew(
		[]table.Column{
			{Name: "region", Kind: table.KindCategorical}, {Name: "product", Kind: table.KindCategorical},
			{Name: "channel", Kind: table.KindCategorical}, {Name: "sales", Kind: table.KindFloat},
		},
		[][]any{{"e", "a", "web", 1.0}, {"e", "b", "web", 2.0}, {"w", "a", "shop", 3.0}},
	)
	spec := selectSpec(t, tbl, "grouped bar")
	require.Equal(t, GroupedBar, spec.Type)
	require.Equal(t, "region", spec.X)
	require.Equal(t, "product", spec.Color)
	require.Equal(t, "channel", spec.Facet)
	require.Equal(t, FacetWrap, spec.FacetWrap)
	require.Equal(t, []string{"sales"}, spec.Y)
}

func TestPieBecomesHierarchicalWithSeveralCategoricals(t *testing.T) {
	flat := table.MustNew(
		[]table.Column{{Name: "segment", Kind: table.KindCategorical}, {Name: "share", Kind: table.KindFloat}},
		[][]any{{"a", 1.0}, {"b", 3.0}},
	)
	spec := selectSpec(t, flat, "pie")
	require.Equal(t, "segment", spec.Names)
	require.False(t, spec.Hierarchical())

	nested := table.MustNew(
		[]table.Column{{Name: "region", Kind: table.KindCategorical}, {Name: "segment", Kind: table.KindCategorical}, {Name: "share", Kind: table.KindFloat}},
		[][]any{{"e", "a", 1.0}, {"e", "b", 3.0}, {"w", "a", 2.0}},
	)
	spec = selectSpec(t, nested, "pie")
	require.Equal(t, []string{"region", "segment"}, spec.Path)
	require.True(t, spec.Hierarchical())
	require.Empty(t, spec.X)
}

func TestScatterSizeAndHistogram(t *testing.T) {
	tbl := table.MustNew(
		[]table.Column{{Name: "x", Kind: table.KindFloat}, {Name: "y", Kind: table.KindFloat}, {Name: "volume", Kind: table.KindInteger}},
		[][]any{{1.0, 2.0, 3}, {2.0, 4.0, 5}, {3.0, 7.0, 1}},
	)
	spec := selectSpec(t, tbl, "")
	require.Equal(t, Scatter, spec.Type)
	require.Equal(t, "x", spec.X)
	require.Equal(t, []string{"y"}, spec.Y)
	require.Equal(t, "volume", spec.Size)

	hist := selectSpec(t, tbl, "histogram")
	require.Equal(t, Histogram, hist.Type)
	require.Equal(t, "x", hist.X)
	require.Empty(t, hist.Y)
}

func TestHeatmapPivotAndCorrelation(t *testing.T) {
	pairs := table.MustNew(
		[]table.Column{{Name: "region", Kind: table.KindCategorical}, {Name: "product", Kind: table.KindCategorical}, {Name: "sales", Kind: table.KindFloat}},
		[][]any{{"e", "a", 1.0}, {"e", "b", 2.0}, {"w", "a", 3.0}, {"e", "a", 4.0}},
	)
	spec := selectSpec(t, pairs, "heatmap")
	require.Equal(t, "region", spec.Index)
	require.Equal(t, "product", spec.X)
	require.Equal(t, "pivot", spec.Matrix.Source)
	require.Equal(t, []string{"e", "w"}, spec.Matrix.Rows)
	require.Equal(t, []string{"a", "b"}, spec.Matrix.Cols)
	require.Equal(t, [][]float64{{5, 2}, {3, 0}}, spec.Matrix.Values)
	require.NotNil(t, spec.Aggregation)

	nums := table.MustNew(
		[]table.Column{{Name: "a", Kind: table.KindFloat}, {Name: "b", Kind: table.KindFloat}, {Name: "c", Kind: table.KindFloat}},
		[][]any{{1.0, 2.0, 9.0}, {2.0, 4.0, 7.0}, {3.0, 6.0, 8.0}},
	)
	spec = selectSpec(t, nums, "heatmap")
	require.Equal(t, "correlation", spec.Matrix.Source)
	require.InDelta(t, 1.0, spec.Matrix.Values[0][1], 1e-9)
	require.Equal(t, spec.Matrix.Values[0][2], spec.Matrix.Values[2][0])
}

func TestUnsatisfiableHintDegradesToDefault(t *testing.T) {
	nums := table.MustNew(
		[]table.Column{{Name: "a", Kind: table.KindFloat}, {Name: "b", Kind: table.KindFloat}},
		[][]any{{1.0, 2.0}, {2.0, 3.0}},
	)
	require.Equal(t, Scatter, selectSpec(t, nums, "pie (share)").Type)

	catNum := table.MustNew(
		[]table.Column{{Name: "k", Kind: table.KindCategorical}, {Name: "v", Kind: table.KindFloat}},
		[][]any{{"a", 1.0}},
	)
	require.Equal(t, Bar, selectSpec(t, catNum, "heatmap").Type)
	require.Equal(t, Bar, selectSpec(t, catNum, "sparkline").Type)
}

func TestFallbackCascade(t *testing.T) {
	cats := table.MustNew(
		[]table.Column{{Name: "k", Kind: table.KindCategorical}, {Name: "note", Kind: table.KindCategorical}},
		[][]any{{"a", "x"}},
	)
	res := Select(cats, mustClassify(t, cats), "bar")
	fb, ok := res.(*Fallback)
	require.True(t, ok)
	require.False(t, res.Matched())
	require.Equal(t, PlainTable, fb.Kind)
	require.Equal(t, "Could not determine a specific chart; showing data.", fb.Message())
	require.NotEmpty(t, fb.Reason)

	empty := table.MustNew([]table.Column{{Name: "k", Kind: table.KindCategorical}}, nil)
	res = Select(empty, mustClassify(t, empty), "")
	require.Equal(t, NoData, res.(*Fallback).Kind)

	tests := []struct {
		roles table.Roles
		kind  FallbackKind
	}{
		{table.Roles{Temporal: []string{"d"}, Numeric: []string{"v", "w"}}, TimeSeries},
		{table.Roles{Numeric: []string{"v", "w"}, Categorical: []string{"c"}}, ScatterMatrix},
		{table.Roles{Numeric: []string{"v"}, Categorical: []string{"c"}}, SeriesBar},
		{table.Roles{Numeric: []string{"v"}}, PlainTable},
		{table.Roles{Temporal: []string{"d"}}, PlainTable},
	}
	for _, tt := range tests {
		require.Equal(t, tt.kind, newFallback(nil, tt.roles, "").Kind)
	}
}

// fixtures covering every mix of roles up to three columns each
func roleMixes() []*table.Table {
	kinds := []table.Kind{table.KindTemporal, table.KindFloat, table.KindCategorical}
	var out []*table.Table
	for nt := 0; nt <= 1; nt++ {
		for nn := 0; nn <= 3; nn++ {
			for nc := 0; nc <= 3; nc++ {
				var cols []table.Column
				counts := []int{nt, nn, nc}
				for k, n := range counts {
					for i := 0; i < n; i++ {
						cols = append(cols, table.Column{Name: fmt.Sprintf("%s%d", kinds[k], i), Kind: kinds[k]})
					}
				}
				if len(cols) == 0 {
					continue
				}
				rows := make([][]any, 6)
				for r := range rows {
					row := make([]any, len(cols))
					for j, c := range cols {
						switch c.Kind {
						case table.KindTemporal:
							row[j] = time.Date(2024, 1, 1+r%3, 0, 0, 0, 0, time.UTC)
						case table.KindFloat:
							row[j] = float64((r*7+j*3)%5) + 1
						default:
							row[j] = fmt.Sprintf("g%d", (r+j)%2)
						}
					}
					rows[r] = row
				}
				out = append(out, table.MustNew(cols, rows))
			}
		}
	}
	return out
}

func TestSelectNeverReturnsInvalidSpec(t *testing.T) {
	hints := []string{"", "nonsense", "bar", "grouped_bar", "line", "pie", "scatter", "histogram", "heatmap (dense)"}
	for _, tbl := range roleMixes() {
		roles := mustClassify(t, tbl)
		for _, hint := range hints {
			res := Select(tbl, roles, hint)
			switch r := res.(type) {
			case *Spec:
				require.NoErrorf(t, Validate(r, tbl, roles), "hint %q roles %+v", hint, roles)
				for _, name := range r.Columns() {
					require.GreaterOrEqual(t, tbl.Index(name), 0)
				}
			case *Fallback:
				require.NotEqual(t, NoData, r.Kind)
			default:
				t.Fatalf("unexpected result %T", res)
			}
			require.Equal(t, res, Select(tbl, roles, hint), "selection must be repeatable")
		}
	}
}

func TestSelectionDependsOnRolesNotValues(t *testing.T) {
	a := table.MustNew(
		[]table.Column{{Name: "k", Kind: table.KindCategorical}, {Name: "g", Kind: table.KindCategorical}, {Name: "v", Kind: table.KindFloat}},
		[][]any{{"a", "x", 1.0}, {"b", "y", 2.0}},
	)
	b := table.MustNew(
		[]table.Column{{Name: "k", Kind: table.KindCategorical}, {Name: "g", Kind: table.KindCategorical}, {Name: "v", Kind: table.KindFloat}},
		[][]any{{"q", "z", 99.0}, {"q", "z", -4.0}, {"r", "z", 0.5}},
	)
	for _, hint := range []string{"", "grouped bar", "pie", "line"} {
		sa, sb := selectSpec(t, a, hint), selectSpec(t, b, hint)
		require.Equal(t, sa.Type, sb.Type)
		require.Equal(t, sa.X, sb.X)
		require.Equal(t, sa.Y, sb.Y)
		require.Equal(t, sa.Color, sb.Color)
	}
}

func TestSpecValidateRejectsBadSlots(t *testing.T) {
	tbl := table.MustNew(
		[]table.Column{{Name: "k", Kind: table.KindCategorical}, {Name: "v", Kind: table.KindFloat}},
		[][]any{{"a", 1.0}},
	)
	roles := mustClassify(t, tbl)
	require.Error(t, Validate(&Spec{Type: Bar, X: "v", Y: []string{"v"}}, tbl, roles))
	require.Error(t, Validate(&Spec{Type: Bar, X: "k", Y: []string{"k"}}, tbl, roles))
	require.Error(t, Validate(&Spec{Type: Bar, X: "k", Y: []string{"missing"}}, tbl, roles))
	require.Error(t, Validate(&Spec{Type: "radar", X: "k"}, tbl, roles))
	require.NoError(t, Validate(&Spec{Type: Bar, X: "k", Y: []string{"v"}}, tbl, roles))
}
