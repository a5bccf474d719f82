package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/querylens/internal/retrieval"
	"github.com/KaramelBytes/querylens/internal/table"
)

func openSales(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	d, err := Open(ctx, DriverSQLite, ":memory:", Options{SchemaTTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.db.ExecContext(ctx, `CREATE TABLE sales (
  region TEXT,
  amount REAL,
  units INTEGER,
  sold_at DATE
)`)
	require.NoError(t, err)
	_, err = d.db.ExecContext(ctx, `INSERT INTO sales VALUES
  ('east', 10.5, 1, '2024-01-05'),
  ('west', 30.25, 3, '2024-02-10'),
  ('east', 20.5, 2, '2024-03-15'),
  ('north', NULL, 4, NULL)`)
	require.NoError(t, err)
	return d
}

func TestQueryMapsColumnKinds(t *testing.T) {
	d := openSales(t)
	got, err := d.Query(context.Background(), "SELECT region, amount, units, sold_at FROM sales ORDER BY rowid")
	require.NoError(t, err)
	require.Equal(t, 4, got.Len())
	require.Equal(t, []table.Column{
		{Name: "region", Kind: table.KindCategorical},
		{Name: "amount", Kind: table.KindFloat},
		{Name: "units", Kind: table.KindInteger},
		{Name: "sold_at", Kind: table.KindTemporal},
	}, got.Columns())

	v, ok := got.Float(1, 1)
	require.True(t, ok)
	require.Equal(t, 30.25, v)
	_, ok = got.Float(3, 1)
	require.False(t, ok)
	ts, ok := got.Time(0, 3)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), ts.UTC())
}

func TestQueryInfersExpressionColumns(t *testing.T) {
	d := openSales(t)
	got, err := d.Query(context.Background(), `
-- totals per region
SELECT region, SUM(amount) AS total, COUNT(*) AS n, SUM(amount) AS total
FROM sales WHERE amount IS NOT NULL GROUP BY region ORDER BY region`)
	require.NoError(t, err)
	require.Equal(t, []string{"region", "total", "n", "total_2"}, got.Names())
	require.Equal(t, table.KindFloat, got.Columns()[1].Kind)
	require.Equal(t, table.KindInteger, got.Columns()[2].Kind)
	require.Equal(t, "east", got.Label(0, 0))
	v, _ := got.Float(0, 1)
	require.Equal(t, 31.0, v)
}

func TestQueryMaxRows(t *testing.T) {
	d := openSales(t)
	d.opts.MaxRows = 2
	got, err := d.Query(context.Background(), "SELECT * FROM sales")
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
}

func TestQueryRejectsWrites(t *testing.T) {
	d := openSales(t)
	for _, q := range []string{
		"DELETE FROM sales",
		"SELECT 1; DROP TABLE sales",
		"WITH x AS (SELECT 1) INSERT INTO sales(region) SELECT 'a' FROM x",
		"PRAGMA writable_schema = 1",
		"   ",
	} {
		_, err := d.Query(context.Background(), q)
		require.True(t, errors.Is(err, ErrNotReadOnly), q)
	}
	got, err := d.Query(context.Background(), "SELECT 'drop table sales' AS note; ")
	require.NoError(t, err)
	require.Equal(t, "drop table sales", got.Label(0, 0))
}

func TestCheckReadOnly(t *testing.T) {
	tests := []struct {
		q  string
		ok bool
	}{
		{"select * from t", true},
		{"WITH a AS (SELECT 1) SELECT * FROM a;", true},
		{"/* note */ SELECT REPLACE(name, 'a', 'b') FROM t", true},
		{"SELECT last_update FROM t", true},
		{"(SELECT 1) UNION (SELECT 2)", true},
		{"SELECT * INTO backup FROM t", false},
		{"update t set a = 1", false},
		{"EXEC sp_who", false},
	}
	for _, tt := range tests {
		err := CheckReadOnly(tt.q)
		if tt.ok {
			require.NoError(t, err, tt.q)
		} else {
			require.ErrorIs(t, err, ErrNotReadOnly, tt.q)
		}
	}
}

func TestSchemaIsCached(t *testing.T) {
	d := openSales(t)
	ctx := context.Background()
	s, err := d.Schema(ctx)
	require.NoError(t, err)
	require.Contains(t, s, "CREATE TABLE sales")
	require.Equal(t, []string{"region", "amount", "units", "sold_at"}, retrieval.ColumnNames(s))

	_, err = d.db.ExecContext(ctx, "CREATE TABLE regions (name TEXT PRIMARY KEY, manager TEXT)")
	require.NoError(t, err)
	again, err := d.Schema(ctx)
	require.NoError(t, err)
	require.Equal(t, s, again)

	d.InvalidateSchema()
	fresh, err := d.Schema(ctx)
	require.NoError(t, err)
	require.Contains(t, fresh, "CREATE TABLE regions")
	require.Equal(t, []string{"name", "manager", "region", "amount", "units", "sold_at"}, retrieval.ColumnNames(fresh))
}

func TestOpenValidates(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, "oracle", "x", Options{})
	require.Error(t, err)
	_, err = Open(ctx, DriverSQLite, " ", Options{})
	require.Error(t, err)
}

func TestKindFor(t *testing.T) {
	tests := map[string]table.Kind{
		"INTEGER":          table.KindInteger,
		"bigint":           table.KindInteger,
		"DECIMAL(10,2)":    table.KindFloat,
		"DOUBLE PRECISION": table.KindFloat,
		"TIMESTAMPTZ":      table.KindTemporal,
		"DATETIME2":        table.KindTemporal,
		"NVARCHAR":         "",
		"":                 "",
		"INTERVAL":         "",
	}
	for in, want := range tests {
		require.Equal(t, want, kindFor(in), in)
	}
}

func TestDialect(t *testing.T) {
	require.Equal(t, "T-SQL", (&DB{driver: DriverSQLServer}).Dialect())
	require.Equal(t, "PostgreSQL", (&DB{driver: DriverPostgres}).Dialect())
	require.Equal(t, "SQLite", (&DB{driver: DriverSQLite}).Dialect())
}
