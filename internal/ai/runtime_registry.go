package ai

import (
	"sort"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// APIKey is the OpenRouter or Anthropic key, depending on provider.
	APIKey string
	// Host is the Ollama base URL; BaseURL overrides hosted endpoints.
	Host    string
	BaseURL string
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	if f, ok := registry[name]; ok {
		return f(cfg), true
	}
	return nil, false
}

// Providers lists registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetEmbedder returns the embedding client for a provider. Anthropic has no
// embeddings endpoint.
func GetEmbedder(name string, cfg RuntimeConfig) (Embedder, bool) {
	switch name {
	case ProviderOpenRouter:
		return NewClientWithBaseURL(cfg.APIKey, cfg.HTTPTimeout, cfg.RetryMax, cfg.BaseDelay, cfg.MaxDelay, cfg.BaseURL), true
	case ProviderOllama:
		return NewOllamaClient(cfg.Host, cfg.HTTPTimeout, cfg.RetryMax, cfg.BaseDelay, cfg.MaxDelay), true
	}
	return nil, false
}

func init() {
	RegisterRuntime(ProviderOpenRouter, func(c RuntimeConfig) Runtime {
		return NewClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay, c.BaseURL)
	})
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
	})
	RegisterRuntime(ProviderAnthropic, func(c RuntimeConfig) Runtime {
		return NewAnthropicClient(c.APIKey, c.BaseURL, c.HTTPTimeout, c.RetryMax)
	})
}
