package cmd

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/querylens/internal/ai"
	"github.com/KaramelBytes/querylens/internal/assistant"
	cfgpkg "github.com/KaramelBytes/querylens/internal/config"
	"github.com/KaramelBytes/querylens/internal/history"
	"github.com/KaramelBytes/querylens/internal/retrieval"
	"github.com/KaramelBytes/querylens/internal/sqlgen"
	"github.com/KaramelBytes/querylens/internal/utils"
	"github.com/KaramelBytes/querylens/internal/warehouse"
)

var fallbackModels = map[string]string{
	ai.ProviderOpenRouter: "openai/gpt-4o-mini",
	ai.ProviderAnthropic:  "claude-3-5-haiku-latest",
	ai.ProviderOllama:     "llama3.1",
}

var fallbackEmbedModels = map[string]string{
	ai.ProviderOpenRouter: "openai/text-embedding-3-small",
	ai.ProviderOllama:     "nomic-embed-text",
}

var apiKeyEnv = map[string]string{
	ai.ProviderOpenRouter: "OPENROUTER_API_KEY",
	ai.ProviderAnthropic:  "ANTHROPIC_API_KEY",
}

func selectProvider(c *cfgpkg.Global, flag string) string {
	if p := strings.ToLower(strings.TrimSpace(flag)); p != "" {
		return p
	}
	if c != nil && c.DefaultProvider != "" {
		return strings.ToLower(c.DefaultProvider)
	}
	return ai.ProviderOpenRouter
}

// selectModel picks the CLI model, then the configured default when it
// belongs to the same provider, then a per-provider fallback.
func selectModel(c *cfgpkg.Global, flag, provider string) string {
	if m := strings.TrimSpace(flag); m != "" {
		return m
	}
	if c != nil && c.DefaultModel != "" && strings.EqualFold(c.DefaultProvider, provider) {
		return c.DefaultModel
	}
	if m, ok := fallbackModels[provider]; ok {
		return m
	}
	return fallbackModels[ai.ProviderOpenRouter]
}

// runtimeConfig resolves credentials and endpoints for provider.
func runtimeConfig(c *cfgpkg.Global, provider, ollamaHost string) (ai.RuntimeConfig, error) {
	if c == nil {
		c = &cfgpkg.Global{}
	}
	rc := c.Runtime(provider)
	if rc.HTTPTimeout <= 0 {
		rc.HTTPTimeout = 60 * time.Second
	}
	if provider == ai.ProviderOllama {
		if h := strings.TrimSpace(ollamaHost); h != "" {
			rc.Host = h
		}
		return rc, nil
	}
	if rc.APIKey == "" {
		rc.APIKey = os.Getenv(apiKeyEnv[provider])
	}
	if rc.APIKey == "" {
		key := "api_key"
		if provider == ai.ProviderAnthropic {
			key = "anthropic_api_key"
		}
		return rc, fmt.Errorf("missing API key for %s: set %s or run 'querylens config set %s <key>'", provider, apiKeyEnv[provider], key)
	}
	return rc, nil
}

func buildRuntime(c *cfgpkg.Global, provider, ollamaHost string) (ai.Runtime, error) {
	rc, err := runtimeConfig(c, provider, ollamaHost)
	if err != nil {
		return nil, err
	}
	rt, ok := ai.GetRuntime(provider, rc)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %s)", provider, strings.Join(ai.Providers(), ", "))
	}
	return rt, nil
}

func openWarehouse(ctx context.Context, c *cfgpkg.Global, driver, dsn string, maxRows int) (*warehouse.DB, error) {
	opts := warehouse.Options{MaxRows: maxRows, Logger: logger}
	if c != nil {
		if driver == "" {
			driver = c.DBDriver
		}
		if dsn == "" {
			dsn = c.DBDSN
		}
		opts.QueryTimeout = time.Duration(c.QueryTimeoutSec) * time.Second
		opts.SchemaTTL = time.Duration(c.SchemaTTLSec) * time.Second
	}
	if driver == "" {
		driver = warehouse.DriverSQLite
	}
	if dsn == "" {
		return nil, fmt.Errorf("no warehouse configured: pass --dsn or run 'querylens config set db_dsn <dsn>'")
	}
	return warehouse.Open(ctx, driver, dsn, opts)
}

// newGenerator wires a SQL generator for db, seeding the prompt with up to
// three liked turns from history.
func newGenerator(c *cfgpkg.Global, rt ai.Runtime, model string, db *warehouse.DB, hist *history.Log) *sqlgen.Generator {
	gen := sqlgen.NewGenerator(rt, model, 0)
	gen.Logger = logger
	gen.Prompt.Dialect = db.Dialect()
	if c != nil {
		gen.MaxTokens = c.MaxTokens
		gen.Temperature = c.Temperature
		gen.Prompt.TokenLimit = c.PromptTokenLimit
	}
	if hist != nil {
		for _, t := range hist.Liked(3) {
			gen.Prompt.Examples = append(gen.Prompt.Examples, sqlgen.Example{Question: t.Question, SQL: t.SQL})
		}
	}
	return gen
}

type retrievalOptions struct {
	Reindex       bool
	EmbedModel    string
	EmbedProvider string
	TopK          int
	MinScore      float64
	OllamaHost    string
	IndexDir      string
}

type retrievalDeps struct {
	newEmbedder func(c *cfgpkg.Global, provider string, opts retrievalOptions) (retrieval.Embedder, error)
	buildIndex  func(ctx context.Context, emb retrieval.Embedder, indexPath, schema string, opts retrieval.BuildOptions) (*retrieval.Index, error)
}

var defaultRetrievalDeps = retrievalDeps{
	newEmbedder: defaultNewEmbedder,
	buildIndex:  retrieval.BuildIndex,
}

func defaultNewEmbedder(c *cfgpkg.Global, provider string, opts retrievalOptions) (retrieval.Embedder, error) {
	rc, err := runtimeConfig(c, provider, opts.OllamaHost)
	if err != nil {
		return nil, err
	}
	emb, ok := ai.GetEmbedder(provider, rc)
	if !ok {
		return nil, fmt.Errorf("provider %q has no embeddings endpoint", provider)
	}
	return emb, nil
}

// indexDir keys the on-disk index by warehouse so different databases never
// share vectors.
func indexDir(driver, dsn string) string {
	sum := sha1.Sum([]byte(driver + "|" + dsn))
	return filepath.Join(utils.DataDir(), "index", fmt.Sprintf("%x", sum[:6]))
}

// schemaNarrower returns a NarrowFunc that embeds schema columns, finds the
// ones closest to the question and keeps only their tables.
func schemaNarrower(c *cfgpkg.Global, opts retrievalOptions, deps retrievalDeps) (assistant.NarrowFunc, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.EmbedProvider))
	if provider == "" && c != nil && c.EmbeddingProvider != "" {
		provider = strings.ToLower(c.EmbeddingProvider)
	}
	if provider == "" {
		provider = ai.ProviderOpenRouter
	}
	model := strings.TrimSpace(opts.EmbedModel)
	if model == "" && c != nil && c.EmbeddingModel != "" && strings.EqualFold(c.EmbeddingProvider, provider) {
		model = c.EmbeddingModel
	}
	if model == "" {
		model = fallbackEmbedModels[provider]
	}
	topK := opts.TopK
	if topK <= 0 && c != nil && c.RetrievalTopK > 0 {
		topK = c.RetrievalTopK
	}
	if topK <= 0 {
		topK = 8
	}
	minScore := opts.MinScore
	if minScore <= 0 && c != nil {
		minScore = c.RetrievalMinScore
	}
	if minScore < 0 {
		minScore = 0
	}

	if deps.newEmbedder == nil {
		deps.newEmbedder = defaultNewEmbedder
	}
	if deps.buildIndex == nil {
		deps.buildIndex = retrieval.BuildIndex
	}
	emb, err := deps.newEmbedder(c, provider, opts)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	indexPath := retrieval.IndexPath(opts.IndexDir)

	return func(ctx context.Context, schema, q string) (string, error) {
		idx, err := deps.buildIndex(ctx, emb, indexPath, schema, retrieval.BuildOptions{
			Force:         opts.Reindex,
			EmbedProvider: provider,
			EmbedModel:    model,
		})
		if err != nil {
			return "", fmt.Errorf("build schema index: %w", err)
		}
		narrowed, hits, err := retrieval.Relevant(ctx, emb, model, idx, schema, q, topK, minScore)
		if err != nil {
			return "", err
		}
		logger.Debug("schema retrieval", "hits", len(hits), "records", len(idx.Records))
		return narrowed, nil
	}, nil
}
