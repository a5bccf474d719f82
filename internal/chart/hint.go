package chart

import (
	"strings"

	"github.com/KaramelBytes/querylens/internal/table"
)

var hintAliases = map[string]Type{
	"heat_map":      Heatmap,
	"column":        Bar,
	"clustered_bar": GroupedBar,
}

// ParseHint reads a hint of the form "<type> (<annotation>)". Only the text
// before the first "(" names the type; it is lower-cased and trimmed, a
// trailing "chart", "plot" or "graph" is dropped and inner spaces or hyphens
// become underscores, so "Grouped bar chart" yields grouped_bar. ok is false
// when the hint is empty or names no supported type.
func ParseHint(hint string) (t Type, annotation string, ok bool) {
	head := hint
	if i := strings.Index(hint, "("); i >= 0 {
		head = hint[:i]
		annotation = hint[i+1:]
		if j := strings.LastIndex(annotation, ")"); j >= 0 {
			annotation = annotation[:j]
		}
		annotation = strings.TrimSpace(annotation)
	}
	name := strings.ToLower(strings.TrimSpace(head))
	for _, suffix := range []string{" chart", " plot", " graph"} {
		name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
	}
	name = strings.Join(strings.FieldsFunc(name, func(r rune) bool { return r == ' ' || r == '-' || r == '_' }), "_")
	if name == "" {
		return "", annotation, false
	}
	if Type(name).Valid() {
		return Type(name), annotation, true
	}
	if alias, found := hintAliases[name]; found {
		return alias, annotation, true
	}
	return "", annotation, false
}

// Default picks a chart type from the role set alone: temporal and numeric
// columns give a line, categorical and numeric a bar, two or more numeric
// columns a scatter. ok is false when no chart fits.
func Default(r table.Roles) (Type, bool) {
	switch {
	case len(r.Temporal) > 0 && len(r.Numeric) > 0:
		return Line, true
	case len(r.Categorical) > 0 && len(r.Numeric) > 0:
		return Bar, true
	case len(r.Numeric) >= 2:
		return Scatter, true
	}
	return "", false
}
