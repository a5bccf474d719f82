package retrieval

import (
	"context"
	"os"
	"strings"
	"testing"
)

const salesSchema = `CREATE TABLE customers (
  id INTEGER PRIMARY KEY,
  name TEXT,
  region TEXT
);
CREATE TABLE orders (
  id INTEGER,
  customer_id INTEGER,
  amount DECIMAL(10, 2),
  FOREIGN KEY (customer_id) REFERENCES customers(id)
);
`

// fakeEmbedder gives each distinct column name its own axis so searches
// are predictable.
type fakeEmbedder struct {
	axes  map[string]int
	calls int
	texts int
}

func (f *fakeEmbedder) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	f.calls++
	f.texts += len(texts)
	if f.axes == nil {
		f.axes = map[string]int{"id": 0, "name": 1, "region": 2, "customer_id": 3, "amount": 4}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 5)
		for word, axis := range f.axes {
			if strings.Contains(text, "."+word+":") || text == word {
				v[axis] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func TestParseSchema(t *testing.T) {
	tables := ParseSchema(salesSchema)
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	if tables[1].Name != "orders" || len(tables[1].Columns) != 3 {
		t.Fatalf("unexpected orders definition: %+v", tables[1])
	}
	if got := tables[1].Columns[2].Def; got != "amount DECIMAL(10, 2)" {
		t.Fatalf("column def = %q", got)
	}
	names := ColumnNames(salesSchema + "CREATE TABLE IF NOT EXISTS \"notes\" (\"body\" TEXT);")
	want := []string{"id", "name", "region", "customer_id", "amount", "body"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("ColumnNames = %v, want %v", names, want)
	}
}

func TestBuildIndex_SaveAndReuse(t *testing.T) {
	path := IndexPath(t.TempDir())
	emb := &fakeEmbedder{}
	opts := BuildOptions{EmbedProvider: "openrouter", EmbedModel: "e1"}
	idx, err := BuildIndex(context.Background(), emb, path, salesSchema, opts)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	if idx.Meta.EmbedDim != 5 {
		t.Fatalf("expected EmbedDim=5, got %d", idx.Meta.EmbedDim)
	}
	if len(idx.Records) != 6 {
		t.Fatalf("expected 6 records, got %d", len(idx.Records))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("index file not found: %v", err)
	}

	// Reuse: run again, expect no additional Embed calls
	emb2 := &fakeEmbedder{}
	idx2, err := BuildIndex(context.Background(), emb2, path, salesSchema, opts)
	if err != nil {
		t.Fatalf("rebuild index: %v", err)
	}
	if len(idx2.Records) != 6 || emb2.calls != 0 {
		t.Fatalf("expected full reuse, got %d records and %d calls", len(idx2.Records), emb2.calls)
	}

	// A new column is the only text embedded
	emb3 := &fakeEmbedder{}
	changed := strings.Replace(salesSchema, "region TEXT", "region TEXT,\n  segment TEXT", 1)
	if _, err := BuildIndex(context.Background(), emb3, path, changed, opts); err != nil {
		t.Fatalf("incremental build: %v", err)
	}
	if emb3.texts != 1 {
		t.Fatalf("expected 1 new text embedded, got %d", emb3.texts)
	}
}

func TestBuildIndex_ForceAndModelChange(t *testing.T) {
	path := IndexPath(t.TempDir())
	emb := &fakeEmbedder{}
	opts := BuildOptions{EmbedProvider: "openrouter", EmbedModel: "e1"}
	if _, err := BuildIndex(context.Background(), emb, path, salesSchema, opts); err != nil {
		t.Fatalf("first build: %v", err)
	}

	emb.calls = 0
	opts.Force = true
	if _, err := BuildIndex(context.Background(), emb, path, salesSchema, opts); err != nil {
		t.Fatalf("force rebuild: %v", err)
	}
	if emb.calls == 0 {
		t.Fatalf("expected embed to be called on force rebuild")
	}

	emb.calls = 0
	opts.Force = false
	opts.EmbedModel = "e2"
	if _, err := BuildIndex(context.Background(), emb, path, salesSchema, opts); err != nil {
		t.Fatalf("model change: %v", err)
	}
	if emb.calls == 0 {
		t.Fatalf("expected re-embedding after a model change")
	}
}

func TestAllowTableFilters(t *testing.T) {
	if !allowTable("sales_2024", []string{"sales_*"}, nil) {
		t.Fatalf("expected include match")
	}
	if allowTable("orders", []string{"sales_*"}, nil) {
		t.Fatalf("unexpected include match")
	}
	if allowTable("tmp_load", nil, []string{"tmp_*"}) {
		t.Fatalf("exclude should filter out tmp_load")
	}
	_, err := BuildIndex(context.Background(), &fakeEmbedder{}, IndexPath(t.TempDir()), salesSchema, BuildOptions{Exclude: []string{"*"}})
	if err == nil {
		t.Fatalf("expected error when every table is excluded")
	}
}

func TestRelevantNarrowsSchema(t *testing.T) {
	path := IndexPath(t.TempDir())
	emb := &fakeEmbedder{}
	idx, err := BuildIndex(context.Background(), emb, path, salesSchema, BuildOptions{EmbedModel: "e1"})
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	narrowed, hits, err := Relevant(context.Background(), emb, "e1", idx, salesSchema, "amount", 1, 0.5)
	if err != nil {
		t.Fatalf("relevant: %v", err)
	}
	if len(hits) != 1 || hits[0].Table != "orders" || hits[0].Column != "amount" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if strings.Contains(narrowed, "customers (") || !strings.Contains(narrowed, "CREATE TABLE orders") {
		t.Fatalf("schema not narrowed:\n%s", narrowed)
	}
	if got := Narrow(salesSchema, nil); got != salesSchema {
		t.Fatalf("no hits should keep the full schema")
	}
}

func TestIndexRoundtrip(t *testing.T) {
	dir := t.TempDir()
	idx := &Index{TableHashes: map[string]string{"t": "h"}, Records: []Record{{Table: "t", Column: "c", Text: "t.c: c INT", Vector: []float32{1, 0}}}, Meta: IndexMeta{IndexVersion: 1}}
	p := IndexPath(dir)
	if err := idx.Save(p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0].Column != "c" {
		t.Fatalf("roundtrip mismatch")
	}
	if CosineSim([]float32{1, 0}, []float32{1}) != 0 {
		t.Fatalf("dimension mismatch should score 0")
	}
}
