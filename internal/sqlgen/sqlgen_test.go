package sqlgen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/querylens/internal/ai"
)

const schema = "CREATE TABLE sales (\n  region TEXT,\n  amount REAL,\n  sold_at DATE\n);\n"

func TestBuildPrompt(t *testing.T) {
	p, err := BuildPrompt(schema, "Total sales by region between 2024-01-01 and 2024-03-31", PromptOptions{})
	require.NoError(t, err)
	require.Greater(t, p.Tokens, 0)
	require.False(t, p.Truncated)
	for _, want := range []string{"[SCHEMA]", "CREATE TABLE sales", "[TASK]", "Using valid SQLite", "Chart: <type> (<annotation>)", "grouped bar", "date range"} {
		require.Contains(t, p.Text, want)
	}

	p, err = BuildPrompt(schema, "Total sales by region", PromptOptions{Dialect: "T-SQL", Examples: []Example{{Question: "count rows", SQL: "SELECT COUNT(*) FROM sales"}}})
	require.NoError(t, err)
	require.Contains(t, p.Text, "Using valid T-SQL")
	require.Contains(t, p.Text, "-- count rows\nSELECT COUNT(*) FROM sales")
	require.NotContains(t, p.Text, "date range")

	_, err = BuildPrompt(schema, "  ", PromptOptions{})
	require.Error(t, err)
	_, err = BuildPrompt("", "q", PromptOptions{})
	require.Error(t, err)
}

func TestBuildPromptTruncatesSchema(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("CREATE TABLE t (id INTEGER, name TEXT, value REAL);\n")
	}
	p, err := BuildPrompt(sb.String(), "how many rows?", PromptOptions{TokenLimit: 100})
	require.NoError(t, err)
	require.True(t, p.Truncated)
	require.Less(t, p.Tokens, 400)
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name, in string
		want     Generation
	}{
		{
			name: "fenced",
			in:   "Here you go:\n```sql\nSELECT region, SUM(amount) FROM sales GROUP BY region;\n```\nChart: Bar chart (horizontal)",
			want: Generation{SQL: "SELECT region, SUM(amount) FROM sales GROUP BY region", ChartHint: "Bar chart (horizontal)"},
		},
		{
			name: "bare with recommendation",
			in:   "select * from sales where amount > 5; -- done\nChart recommendation: line",
			want: Generation{SQL: "select * from sales where amount > 5", ChartHint: "line"},
		},
		{
			name: "cte without chart",
			in:   "WITH t AS (SELECT 1 AS x) SELECT x FROM t",
			want: Generation{SQL: "WITH t AS (SELECT 1 AS x) SELECT x FROM t"},
		},
		{
			name: "markdown bullet chart line",
			in:   "```\nSELECT a FROM b\n```\n- **Chart:** pie (share of a)",
			want: Generation{SQL: "SELECT a FROM b", ChartHint: "pie (share of a)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := ParseResponse("I cannot answer that.")
	require.ErrorIs(t, err, ErrNoSQL)
}

type fakeRuntime struct {
	calls int
	reply string
	err   error
	last  ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: ai.RoleAssistant, Content: f.reply}}}}, nil
}

func TestGeneratorMemoises(t *testing.T) {
	rt := &fakeRuntime{reply: "```sql\nSELECT 1\n```\nChart: bar"}
	g := NewGenerator(rt, "test-model", time.Minute)

	first, err := g.Generate(context.Background(), schema, "How many?")
	require.NoError(t, err)
	require.Equal(t, Generation{SQL: "SELECT 1", ChartHint: "bar"}, first)
	require.Equal(t, "test-model", rt.last.Model)
	require.Equal(t, ai.RoleSystem, rt.last.Messages[0].Role)

	again, err := g.Generate(context.Background(), schema, "  how many? ")
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Equal(t, 1, rt.calls)

	_, err = g.Generate(context.Background(), schema+"-- changed\n", "How many?")
	require.NoError(t, err)
	require.Equal(t, 2, rt.calls)
}

func TestGeneratorErrors(t *testing.T) {
	boom := errors.New("boom")
	g := NewGenerator(&fakeRuntime{err: boom}, "m", 0)
	_, err := g.Generate(context.Background(), schema, "q")
	require.ErrorIs(t, err, boom)

	g = NewGenerator(&fakeRuntime{reply: "no idea"}, "m", 0)
	_, err = g.Generate(context.Background(), schema, "q")
	require.ErrorIs(t, err, ErrNoSQL)

	_, err = (&Generator{}).Generate(context.Background(), schema, "q")
	require.Error(t, err)
}
