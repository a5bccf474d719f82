package retrieval

import (
	"regexp"
	"strings"
)

// TableDef is one CREATE TABLE statement split into its columns.
type TableDef struct {
	Name      string
	Statement string
	Columns   []ColumnDef
}

// ColumnDef is a column name and its full definition text.
type ColumnDef struct {
	Name string
	Def  string
}

var createTable = regexp.MustCompile(`(?is)^\s*create\s+(?:temp(?:orary)?\s+)?table\s+(?:if\s+not\s+exists\s+)?([^\s(]+)\s*\(`)

// ParseSchema splits schema text made of ";"-terminated CREATE TABLE
// statements. Other statements are ignored.
func ParseSchema(schema string) []TableDef {
	var out []TableDef
	for _, stmt := range strings.Split(schema, ";") {
		m := createTable.FindStringSubmatchIndex(stmt)
		if m == nil {
			continue
		}
		end := strings.LastIndex(stmt, ")")
		if end < m[1] {
			continue
		}
		def := TableDef{Name: unquote(stmt[m[2]:m[3]]), Statement: strings.TrimSpace(stmt) + ";"}
		for _, part := range splitTopLevel(stmt[m[1]:end]) {
			f := strings.Fields(part)
			if len(f) == 0 {
				continue
			}
			switch strings.ToUpper(f[0]) {
			case "PRIMARY", "FOREIGN", "UNIQUE", "CHECK", "CONSTRAINT":
				continue
			}
			def.Columns = append(def.Columns, ColumnDef{Name: unquote(f[0]), Def: strings.Join(f, " ")})
		}
		out = append(out, def)
	}
	return out
}

// ColumnNames lists every column name in schema, first occurrence first.
func ColumnNames(schema string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range ParseSchema(schema) {
		for _, c := range t.Columns {
			if !seen[c.Name] {
				seen[c.Name] = true
				out = append(out, c.Name)
			}
		}
	}
	return out
}

func unquote(s string) string { return strings.Trim(s, "\"`[]") }

func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}
