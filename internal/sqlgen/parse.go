package sqlgen

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoSQL is returned when a response carries no recognisable statement.
var ErrNoSQL = errors.New("sqlgen: no SQL statement in response")

// Generation is a parsed model answer.
type Generation struct {
	SQL       string `json:"sql" yaml:"sql"`
	ChartHint string `json:"chart_hint,omitempty" yaml:"chart_hint,omitempty"`
}

var (
	fencedSQL = regexp.MustCompile("(?s)```(?:sql|SQL)?[ \t]*\n(.*?)```")
	bareSQL   = regexp.MustCompile(`(?ism)^[ \t]*(?:select|with)\b.*`)
	chartLine = regexp.MustCompile(`(?im)^[\s\-*#>]*chart(?:\s+recommendation)?\s*:\s*(.+?)\s*$`)
)

// ParseResponse extracts the SQL statement and chart hint from a model
// answer. A fenced block wins; otherwise the text from the first line that
// opens with SELECT or WITH up to the first semicolon is used.
func ParseResponse(text string) (Generation, error) {
	var g Generation
	if m := chartLine.FindStringSubmatch(text); m != nil {
		g.ChartHint = strings.Trim(m[1], "*` ")
	}
	body := text
	if loc := chartLine.FindStringIndex(text); loc != nil {
		body = text[:loc[0]] + text[loc[1]:]
	}
	if m := fencedSQL.FindStringSubmatch(body); m != nil && strings.TrimSpace(m[1]) != "" {
		g.SQL = cleanSQL(m[1])
		return g, nil
	}
	m := bareSQL.FindString(body)
	if m == "" {
		return g, ErrNoSQL
	}
	if i := strings.Index(m, ";"); i >= 0 {
		m = m[:i]
	}
	g.SQL = cleanSQL(m)
	if g.SQL == "" {
		return g, ErrNoSQL
	}
	return g, nil
}

func cleanSQL(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, ";"))
}
