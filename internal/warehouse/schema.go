package warehouse

import (
	"context"
	"fmt"
	"strings"
)

const sqliteSchemaQuery = `SELECT name, sql FROM sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL
ORDER BY name`

const infoSchemaQuery = `SELECT table_schema, table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema NOT IN ('information_schema', 'pg_catalog', 'sys')
ORDER BY table_schema, table_name, ordinal_position`

// Schema returns CREATE TABLE statements describing every user table. The
// text is cached for the configured schema TTL.
func (d *DB) Schema(ctx context.Context) (string, error) {
	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()
	if item := d.schema.Get(schemaKey); item != nil {
		return item.Value(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.opts.QueryTimeout)
	defer cancel()

	var (
		text string
		err  error
	)
	if d.driver == DriverSQLite {
		text, err = d.sqliteSchema(ctx)
	} else {
		text, err = d.informationSchema(ctx)
	}
	if err != nil {
		return "", err
	}
	d.schema.Set(schemaKey, text, d.opts.SchemaTTL)
	return text, nil
}

// InvalidateSchema drops the cached schema text.
func (d *DB) InvalidateSchema() {
	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()
	d.schema.Delete(schemaKey)
}

func (d *DB) sqliteSchema(ctx context.Context) (string, error) {
	rows, err := d.db.QueryContext(ctx, sqliteSchemaQuery)
	if err != nil {
		return "", fmt.Errorf("read sqlite schema: %w", err)
	}
	defer rows.Close()
	var sb strings.Builder
	for rows.Next() {
		var name, stmt string
		if err := rows.Scan(&name, &stmt); err != nil {
			return "", fmt.Errorf("scan schema row: %w", err)
		}
		sb.WriteString(strings.TrimRight(strings.TrimSpace(stmt), ";"))
		sb.WriteString(";\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate schema: %w", err)
	}
	return sb.String(), nil
}

func (d *DB) informationSchema(ctx context.Context) (string, error) {
	rows, err := d.db.QueryContext(ctx, infoSchemaQuery)
	if err != nil {
		return "", fmt.Errorf("read information_schema: %w", err)
	}
	defer rows.Close()

	var sb strings.Builder
	current := ""
	first := true
	for rows.Next() {
		var schema, tbl, col, typ string
		if err := rows.Scan(&schema, &tbl, &col, &typ); err != nil {
			return "", fmt.Errorf("scan schema row: %w", err)
		}
		name := schema + "." + tbl
		if name != current {
			if current != "" {
				sb.WriteString("\n);\n")
			}
			fmt.Fprintf(&sb, "CREATE TABLE %s (\n", name)
			current, first = name, true
		}
		if !first {
			sb.WriteString(",\n")
		}
		fmt.Fprintf(&sb, "  %s %s", col, strings.ToUpper(typ))
		first = false
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate schema: %w", err)
	}
	if current != "" {
		sb.WriteString("\n);\n")
	}
	return sb.String(), nil
}
