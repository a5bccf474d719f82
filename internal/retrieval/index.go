// Package retrieval embeds schema columns so that only the tables relevant
// to a question need to be sent to the SQL generator.
package retrieval

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/querylens/internal/utils"
)

type Record struct {
	Table      string    `json:"table"`
	Column     string    `json:"column"`
	Text       string    `json:"text"`
	ColumnHash string    `json:"column_hash,omitempty"`
	Vector     []float32 `json:"vector"`
}

type Index struct {
	// Map table name to statement hash for invalidation
	TableHashes map[string]string `json:"table_hashes"`
	Records     []Record          `json:"records"`
	Meta        IndexMeta         `json:"meta"`
}

type IndexMeta struct {
	IndexVersion  int       `json:"index_version"`
	EmbedProvider string    `json:"embed_provider"`
	EmbedModel    string    `json:"embed_model"`
	EmbedDim      int       `json:"embed_dim"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Hit is a search result.
type Hit struct {
	Record
	Score float64 `json:"score"`
}

func (idx *Index) Save(path string) error {
	if idx == nil {
		return fmt.Errorf("nil index")
	}
	if idx.TableHashes == nil {
		idx.TableHashes = map[string]string{}
	}
	b, err := utils.PrettyJSON(idx)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}

func Load(path string) (*Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, err
	}
	if idx.TableHashes == nil {
		idx.TableHashes = map[string]string{}
	}
	if idx.Meta.IndexVersion == 0 {
		idx.Meta.IndexVersion = 1
	}
	return &idx, nil
}

// IndexPath is where the schema index for a data directory lives.
func IndexPath(dir string) string {
	return filepath.Join(dir, "schema_index.json")
}

// metaCompatible checks if previous index metadata can be reused under current options.
func metaCompatible(prev, cur IndexMeta) bool {
	if prev.IndexVersion != cur.IndexVersion {
		return false
	}
	if prev.EmbedProvider != "" && cur.EmbedProvider != "" && prev.EmbedProvider != cur.EmbedProvider {
		return false
	}
	if prev.EmbedModel != "" && cur.EmbedModel != "" && prev.EmbedModel != cur.EmbedModel {
		return false
	}
	return true
}

// allowTable filters by include/exclude glob patterns matched against the table name.
func allowTable(name string, include, exclude []string) bool {
	matchAny := func(patterns []string) bool {
		for _, p := range patterns {
			if p == "" {
				continue
			}
			ok, _ := path.Match(p, name)
			if ok {
				return true
			}
		}
		return false
	}
	if len(include) > 0 && !matchAny(include) {
		return false
	}
	if len(exclude) > 0 && matchAny(exclude) {
		return false
	}
	return true
}

// Cosine similarity between two vectors. Returns 0 if dimensions mismatch.
func CosineSim(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	var na, nb float64
	for i := range a {
		fa := float64(a[i])
		fb := float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Embedder is satisfied by the OpenRouter and Ollama clients.
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

type BuildOptions struct {
	Force         bool
	EmbedProvider string
	EmbedModel    string
	Include       []string
	Exclude       []string
}

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return fmt.Sprintf("%x", sum[:])
}

// columnText is what gets embedded for one column.
func columnText(table string, c ColumnDef) string {
	return table + "." + c.Name + ": " + c.Def
}

// BuildIndex creates or refreshes the index stored at indexPath for the
// tables in schema. Columns whose text is unchanged keep their vectors.
func BuildIndex(ctx context.Context, emb Embedder, indexPath, schema string, opts BuildOptions) (*Index, error) {
	prev, _ := Load(indexPath) // best effort
	if prev == nil {
		prev = &Index{TableHashes: map[string]string{}}
	}
	idx := &Index{TableHashes: map[string]string{}}
	now := time.Now()
	idx.Meta = IndexMeta{
		IndexVersion:  1,
		EmbedProvider: opts.EmbedProvider,
		EmbedModel:    opts.EmbedModel,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !prev.Meta.CreatedAt.IsZero() {
		idx.Meta.CreatedAt = prev.Meta.CreatedAt
	}

	reusable := map[string]Record{}
	if !opts.Force && metaCompatible(prev.Meta, idx.Meta) {
		for _, r := range prev.Records {
			if len(r.Vector) > 0 {
				reusable[r.ColumnHash] = r
			}
		}
	}

	var toEmbed []Record
	for _, t := range ParseSchema(schema) {
		if !allowTable(t.Name, opts.Include, opts.Exclude) {
			continue
		}
		idx.TableHashes[t.Name] = hashOf(t.Statement)
		for _, c := range t.Columns {
			text := columnText(t.Name, c)
			r := Record{Table: t.Name, Column: c.Name, Text: text, ColumnHash: hashOf(text)}
			if prevRec, ok := reusable[r.ColumnHash]; ok {
				r.Vector = prevRec.Vector
				idx.Records = append(idx.Records, r)
				continue
			}
			toEmbed = append(toEmbed, r)
		}
	}
	if len(idx.Records)+len(toEmbed) == 0 {
		return nil, errors.New("schema has no indexable columns")
	}

	if len(toEmbed) > 0 {
		texts := make([]string, len(toEmbed))
		for i := range toEmbed {
			texts[i] = toEmbed[i].Text
		}
		vecs, err := emb.Embed(ctx, opts.EmbedModel, texts)
		if err != nil {
			return nil, fmt.Errorf("embed columns: %w", err)
		}
		if len(vecs) != len(toEmbed) {
			return nil, fmt.Errorf("embed columns: got %d vectors for %d inputs", len(vecs), len(toEmbed))
		}
		for i := range toEmbed {
			toEmbed[i].Vector = vecs[i]
		}
		idx.Records = append(idx.Records, toEmbed...)
	}
	for _, r := range idx.Records {
		if len(r.Vector) > 0 {
			idx.Meta.EmbedDim = len(r.Vector)
			break
		}
	}
	// Deterministic order (by table, then column)
	sort.SliceStable(idx.Records, func(i, j int) bool {
		if idx.Records[i].Table == idx.Records[j].Table {
			return idx.Records[i].Column < idx.Records[j].Column
		}
		return idx.Records[i].Table < idx.Records[j].Table
	})
	if err := idx.Save(indexPath); err != nil {
		return nil, err
	}
	return idx, nil
}

// Search returns top-k records above the minScore threshold, sorted by descending score.
func (idx *Index) Search(query []float32, topK int, minScore float64) []Hit {
	hits := make([]Hit, 0, len(idx.Records))
	for _, r := range idx.Records {
		s := CosineSim(query, r.Vector)
		if s >= minScore {
			hits = append(hits, Hit{Record: r, Score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Narrow keeps only the CREATE TABLE statements of tables that own a hit,
// in schema order. With no hits the full schema is returned.
func Narrow(schema string, hits []Hit) string {
	if len(hits) == 0 {
		return schema
	}
	keep := map[string]bool{}
	for _, h := range hits {
		keep[h.Table] = true
	}
	var sb strings.Builder
	for _, t := range ParseSchema(schema) {
		if keep[t.Name] {
			sb.WriteString(t.Statement)
			sb.WriteString("\n")
		}
	}
	if sb.Len() == 0 {
		return schema
	}
	return sb.String()
}

// Relevant embeds q, searches idx and narrows schema to the matching tables.
func Relevant(ctx context.Context, emb Embedder, model string, idx *Index, schema, q string, topK int, minScore float64) (string, []Hit, error) {
	vecs, err := emb.Embed(ctx, model, []string{q})
	if err != nil {
		return "", nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) == 0 {
		return "", nil, errors.New("embed question: no vector returned")
	}
	hits := idx.Search(vecs[0], topK, minScore)
	return Narrow(schema, hits), hits, nil
}
