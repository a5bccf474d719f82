package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/querylens/internal/table"
)

var intTypes = map[string]bool{
	"INT": true, "INTEGER": true, "BIGINT": true, "SMALLINT": true, "TINYINT": true, "MEDIUMINT": true,
	"INT2": true, "INT4": true, "INT8": true, "SERIAL": true, "BIGSERIAL": true,
}

var floatPrefixes = []string{"REAL", "FLOAT", "DOUBLE", "NUMERIC", "DECIMAL", "MONEY", "SMALLMONEY"}

// kindFor maps a driver column type name to a kind. An empty result means
// the kind is inferred from the values.
func kindFor(dbType string) table.Kind {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.Index(t, "("); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "DATE") || strings.Contains(t, "TIME"):
		return table.KindTemporal
	case intTypes[t] || strings.HasSuffix(t, " INT"):
		return table.KindInteger
	}
	for _, p := range floatPrefixes {
		if strings.HasPrefix(t, p) {
			return table.KindFloat
		}
	}
	return ""
}

// Query runs a read-only statement and returns the result as a table.
func (d *DB) Query(ctx context.Context, query string) (*table.Table, error) {
	if err := CheckReadOnly(query); err != nil {
		return nil, err
	}
	query = strings.TrimRight(strings.TrimSpace(query), "; \t\n")
	ctx, cancel := context.WithTimeout(ctx, d.opts.QueryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()
	t, err := scan(rows, d.opts.MaxRows)
	if err != nil {
		return nil, err
	}
	d.opts.Logger.Debug("query executed", "driver", d.driver, "rows", t.Len(), "elapsed", time.Since(start))
	return t, nil
}

func scan(rows *sql.Rows, maxRows int) (*table.Table, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	var raw [][]any
	for rows.Next() {
		if maxRows > 0 && len(raw) >= maxRows {
			break
		}
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		raw = append(raw, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	names := uniqueNames(types)
	cols := make([]table.Column, len(types))
	out := make([][]any, len(raw))
	for i := range out {
		out[i] = make([]any, len(types))
	}
	for j, ct := range types {
		kind, cells, ok := declared(kindFor(ct.DatabaseTypeName()), raw, j)
		if !ok {
			kind, cells, err = inferred(names[j], raw, j)
			if err != nil {
				return nil, err
			}
		}
		cols[j] = table.Column{Name: names[j], Kind: kind}
		for i := range out {
			out[i][j] = cells[i]
		}
	}
	return table.New(cols, out)
}

// uniqueNames suffixes repeated or blank column names so the table accepts
// them, e.g. two "total" columns become total and total_2.
func uniqueNames(types []*sql.ColumnType) []string {
	names := make([]string, len(types))
	seen := map[string]int{}
	for i, ct := range types {
		base := strings.TrimSpace(ct.Name())
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		name := base
		for seen[name] > 0 {
			seen[base]++
			name = fmt.Sprintf("%s_%d", base, seen[base])
		}
		seen[name]++
		names[i] = name
	}
	return names
}

// declared converts column j to kind and reports false when any value does
// not fit it.
func declared(kind table.Kind, raw [][]any, j int) (table.Kind, []any, bool) {
	if kind == "" {
		return "", nil, false
	}
	cells := make([]any, len(raw))
	for i := range raw {
		v := raw[i][j]
		if v == nil {
			continue
		}
		switch kind {
		case table.KindInteger, table.KindFloat:
			f, ok := number(v)
			if !ok {
				return "", nil, false
			}
			cells[i] = f
		case table.KindTemporal:
			switch x := v.(type) {
			case time.Time:
				cells[i] = x
			case string:
				tm, ok := table.ParseTime(x, time.UTC)
				if !ok {
					return "", nil, false
				}
				cells[i] = tm
			default:
				return "", nil, false
			}
		}
	}
	return kind, cells, true
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case string:
		return table.ParseNumber(x, table.ParseOptions{DecimalSeparator: '.'})
	}
	return 0, false
}

// inferred types column j from its text form.
func inferred(name string, raw [][]any, j int) (table.Kind, []any, error) {
	records := make([][]string, len(raw))
	for i := range raw {
		records[i] = []string{text(raw[i][j])}
	}
	t, err := table.Infer([]string{name}, records, table.ParseOptions{DecimalSeparator: '.'})
	if err != nil {
		return "", nil, fmt.Errorf("infer column %q: %w", name, err)
	}
	cells := make([]any, len(raw))
	for i := range cells {
		cells[i] = t.Value(i, 0)
	}
	return t.Columns()[0].Kind, cells, nil
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
