package table

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/querylens/internal/stats"
)

// ValueCount is a categorical value and its frequency.
type ValueCount struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// ColumnProfile summarises one column.
type ColumnProfile struct {
	Name    string       `json:"name" yaml:"name"`
	Kind    Kind         `json:"kind" yaml:"kind"`
	Role    Role         `json:"role" yaml:"role"`
	NonNull int          `json:"non_null" yaml:"non_null"`
	Missing int          `json:"missing" yaml:"missing"`
	Unique  int          `json:"unique" yaml:"unique"`
	Min     string       `json:"min,omitempty" yaml:"min,omitempty"`
	Max     string       `json:"max,omitempty" yaml:"max,omitempty"`
	Mean    *float64     `json:"mean,omitempty" yaml:"mean,omitempty"`
	Std     *float64     `json:"std,omitempty" yaml:"std,omitempty"`
	Top     []ValueCount `json:"top,omitempty" yaml:"top,omitempty"`
}

// Profile is a per-column summary of a table.
type Profile struct {
	Name    string          `json:"name,omitempty" yaml:"name,omitempty"`
	Rows    int             `json:"rows" yaml:"rows"`
	Columns []ColumnProfile `json:"columns" yaml:"columns"`
	Roles   Roles           `json:"roles" yaml:"roles"`
	Notes   []string        `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Describe profiles every column of t.
func Describe(name string, t *Table) *Profile {
	roles, err := Classify(t)
	p := &Profile{Name: name, Rows: t.Len(), Roles: roles}
	if err != nil {
		p.Notes = append(p.Notes, err.Error())
	}
	for j, c := range t.Columns() {
		role, _ := roles.Of(c.Name)
		cp := ColumnProfile{Name: c.Name, Kind: c.Kind, Role: role, Unique: t.Distinct(j)}
		var lo, hi any
		counts := map[string]int{}
		for i := 0; i < t.Len(); i++ {
			v := t.Value(i, j)
			if v == nil {
				cp.Missing++
				continue
			}
			cp.NonNull++
			if lo == nil || Less(v, lo) {
				lo = v
			}
			if hi == nil || Less(hi, v) {
				hi = v
			}
			if role == RoleCategorical {
				counts[t.Label(i, j)]++
			}
		}
		if role != RoleCategorical && lo != nil {
			cp.Min, cp.Max = formatCell(lo), formatCell(hi)
		}
		if c.Kind.Numeric() {
			vals := t.Floats(j)
			if m := stats.Mean(vals); !math.IsNaN(m) {
				cp.Mean = &m
			}
			if s := stats.StdDev(vals); !math.IsNaN(s) {
				cp.Std = &s
			}
		}
		cp.Top = topValues(counts, 5)
		p.Columns = append(p.Columns, cp)
	}
	return p
}

func topValues(counts map[string]int, n int) []ValueCount {
	if len(counts) == 0 {
		return nil
	}
	out := make([]ValueCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, ValueCount{Value: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Value < out[j].Value
		}
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Markdown renders the profile as a compact schema block, suitable for
// prompts or standalone reports.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[RESULT SUMMARY]\n")
	if p.Name != "" {
		fmt.Fprintf(&b, "Source: %s\n", p.Name)
	}
	fmt.Fprintf(&b, "Rows: %d\nColumns: %d\n\n[SCHEMA]\n", p.Rows, len(p.Columns))
	for _, c := range p.Columns {
		fmt.Fprintf(&b, "- %s (%s, %s)", safeCell(c.Name), c.Kind, c.Role)
		switch {
		case c.Mean != nil:
			fmt.Fprintf(&b, ": min=%s max=%s mean=%.4g", c.Min, c.Max, *c.Mean)
			if c.Std != nil {
				fmt.Fprintf(&b, " std=%.4g", *c.Std)
			}
		case c.Min != "":
			fmt.Fprintf(&b, ": %s .. %s", c.Min, c.Max)
		case len(c.Top) > 0:
			parts := make([]string, len(c.Top))
			for i, tv := range c.Top {
				parts[i] = fmt.Sprintf("%s(%d)", safeCell(tv.Value), tv.Count)
			}
			fmt.Fprintf(&b, ": unique=%d top=%s", c.Unique, strings.Join(parts, ", "))
		}
		if c.Missing > 0 {
			fmt.Fprintf(&b, " missing=%d", c.Missing)
		}
		b.WriteString("\n")
	}
	if len(p.Notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range p.Notes {
			b.WriteString("- " + n + "\n")
		}
	}
	return b.String()
}

func safeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
