package ai

import (
	"context"
	"strings"
)

// Runtime is implemented by every LLM backend the SQL generator can talk to.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Embedder turns text into vectors for schema retrieval.
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// Provider identifiers accepted by --provider and the default_provider key.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Text returns the first choice's content.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}
