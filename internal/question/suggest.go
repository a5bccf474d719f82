package question

import (
	"sort"
	"strings"
)

// Suggest completes prefix against column names and the known values of
// each column. Matching is case-insensitive. Column matches come first,
// followed by "column: value" entries. When a column name matches, all of
// its values are offered.
func Suggest(prefix string, columns []string, values map[string][]string) []string {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if p == "" {
		return nil
	}
	var out []string
	for _, c := range columns {
		if strings.HasPrefix(strings.ToLower(c), p) {
			out = append(out, c)
		}
	}
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		whole := strings.HasPrefix(strings.ToLower(c), p)
		for _, v := range values[c] {
			if whole || strings.HasPrefix(strings.ToLower(v), p) {
				out = append(out, c+": "+v)
			}
		}
	}
	return out
}

// LastWord returns the word being typed at the end of q.
func LastWord(q string) string {
	f := strings.Fields(q)
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}

// Complete replaces the last word of q with the chosen suggestion.
func Complete(q, suggestion string) string {
	f := strings.Fields(q)
	if len(f) == 0 {
		return suggestion
	}
	f[len(f)-1] = suggestion
	return strings.Join(f, " ")
}
