package sqlgen

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/KaramelBytes/querylens/internal/ai"
)

// Generator asks a runtime for SQL and memoises answers per model, schema
// and question.
type Generator struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	Prompt      PromptOptions
	Logger      *slog.Logger

	memo *cache.Cache
}

// NewGenerator returns a Generator whose memo entries live for ttl.
func NewGenerator(rt ai.Runtime, model string, ttl time.Duration) *Generator {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Generator{
		Runtime: rt,
		Model:   model,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		memo:    cache.New(ttl, 2*ttl),
	}
}

func memoKey(model, schema, q string) string {
	sum := sha1.Sum([]byte(schema))
	return fmt.Sprintf("%s|%x|%s", model, sum[:8], strings.ToLower(strings.TrimSpace(q)))
}

// Generate returns the SQL and chart hint for q.
func (g *Generator) Generate(ctx context.Context, schema, q string) (Generation, error) {
	if g.Runtime == nil {
		return Generation{}, fmt.Errorf("sqlgen: no runtime configured")
	}
	log := g.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	key := memoKey(g.Model, schema, q)
	if g.memo != nil {
		if cached, found := g.memo.Get(key); found {
			log.Debug("sql generation cache hit", "model", g.Model)
			return cached.(Generation), nil
		}
	}

	p, err := BuildPrompt(schema, q, g.Prompt)
	if err != nil {
		return Generation{}, err
	}
	if p.Truncated {
		log.Warn("schema truncated to fit prompt budget", "limit", g.Prompt.TokenLimit)
	}
	resp, err := g.Runtime.Generate(ctx, ai.GenerateRequest{
		Model: g.Model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: SystemPrompt},
			{Role: ai.RoleUser, Content: p.Text},
		},
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
	})
	if err != nil {
		return Generation{}, fmt.Errorf("generate sql: %w", err)
	}
	log.Debug("sql generated", "model", g.Model, "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)

	gen, err := ParseResponse(resp.Text())
	if err != nil {
		return Generation{}, err
	}
	if g.memo != nil {
		g.memo.Set(key, gen, cache.DefaultExpiration)
	}
	return gen, nil
}
