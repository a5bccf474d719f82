// Package config loads querylens settings from defaults, an optional YAML
// file and QUERYLENS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/querylens/internal/ai"
	"github.com/KaramelBytes/querylens/internal/utils"
)

// EnvPrefix namespaces environment overrides, e.g. QUERYLENS_DB_DSN.
const EnvPrefix = "QUERYLENS"

// Global configuration structure.
type Global struct {
	APIKey            string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	AnthropicAPIKey   string  `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key" json:"anthropic_api_key"`
	DefaultModel      string  `mapstructure:"default_model" yaml:"default_model" json:"default_model"`
	DefaultProvider   string  `mapstructure:"default_provider" yaml:"default_provider" json:"default_provider"`
	EmbeddingModel    string  `mapstructure:"embedding_model" yaml:"embedding_model" json:"embedding_model"`
	EmbeddingProvider string  `mapstructure:"embedding_provider" yaml:"embedding_provider" json:"embedding_provider"`
	RetrievalTopK     int     `mapstructure:"retrieval_top_k" yaml:"retrieval_top_k" json:"retrieval_top_k"`
	RetrievalMinScore float64 `mapstructure:"retrieval_min_score" yaml:"retrieval_min_score" json:"retrieval_min_score"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	PromptTokenLimit  int     `mapstructure:"prompt_token_limit" yaml:"prompt_token_limit" json:"prompt_token_limit"`

	// Warehouse
	DBDriver        string `mapstructure:"db_driver" yaml:"db_driver" json:"db_driver"`
	DBDSN           string `mapstructure:"db_dsn" yaml:"db_dsn" json:"db_dsn"`
	QueryTimeoutSec int    `mapstructure:"query_timeout_sec" yaml:"query_timeout_sec" json:"query_timeout_sec"`
	SchemaTTLSec    int    `mapstructure:"schema_ttl_sec" yaml:"schema_ttl_sec" json:"schema_ttl_sec"`

	HistoryPath string `mapstructure:"history_path" yaml:"history_path" json:"history_path"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec" json:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts" json:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms" json:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms" json:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host" json:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec" json:"ollama_timeout_sec"`
}

var defaults = map[string]any{
	"default_model":       "openai/gpt-4o-mini",
	"default_provider":    ai.ProviderOpenRouter,
	"embedding_model":     "openai/text-embedding-3-small",
	"embedding_provider":  ai.ProviderOpenRouter,
	"retrieval_top_k":     8,
	"retrieval_min_score": 0.0,
	"max_tokens":          1024,
	"temperature":         0.1,
	"prompt_token_limit":  6000,
	"db_driver":           "sqlite3",
	"db_dsn":              "",
	"query_timeout_sec":   30,
	"schema_ttl_sec":      300,
	"history_path":        "",
	"http_timeout_sec":    60,
	"retry_max_attempts":  3,
	"retry_base_delay_ms": 500,
	"retry_max_delay_ms":  4000,
	"ollama_host":         "http://127.0.0.1:11434",
	"ollama_timeout_sec":  60,
}

// Keys lists every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults)+2)
	for k := range defaults {
		keys = append(keys, k)
	}
	keys = append(keys, "api_key", "anthropic_api_key")
	sort.Strings(keys)
	return keys
}

// DefaultPath is ~/.querylens/config.yaml.
func DefaultPath() string { return filepath.Join(utils.DataDir(), "config.yaml") }

func newViper(cfgFile string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// bind keys without defaults so AutomaticEnv sees them during Unmarshal
	_ = v.BindEnv("api_key")
	_ = v.BindEnv("anthropic_api_key")
	if cfgFile == "" {
		cfgFile = DefaultPath()
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")
	return v
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A missing file is not an error.
func Load(cfgFile string) (*Global, error) {
	v := newViper(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(utils.DataDir(), "history.json")
	}
	return &c, nil
}

// Save writes c as YAML to cfgFile, or DefaultPath when empty.
func Save(c *Global, cfgFile string) error {
	if cfgFile == "" {
		cfgFile = DefaultPath()
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(cfgFile, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Set parses value for key and stores it on c.
func Set(c *Global, key, value string) error {
	known := false
	for _, k := range Keys() {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	// round-trip through yaml so numeric and string fields decode by type
	raw, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return err
	}
	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
		parsed = value
	}
	if _, isString := m[key].(string); isString {
		parsed = value
	}
	m[key] = parsed
	raw, err = yaml.Marshal(m)
	if err != nil {
		return err
	}
	var next Global
	if err := yaml.Unmarshal(raw, &next); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*c = next
	return nil
}

// Redacted returns a copy safe to print.
func (c Global) Redacted() Global {
	mask := func(s string) string {
		if len(s) <= 8 {
			if s == "" {
				return ""
			}
			return "****"
		}
		return s[:4] + "…" + s[len(s)-4:]
	}
	c.APIKey = mask(c.APIKey)
	c.AnthropicAPIKey = mask(c.AnthropicAPIKey)
	return c
}

// Runtime builds the runtime config for a provider.
func (c *Global) Runtime(provider string) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey,
		Host:        c.OllamaHost,
	}
	switch provider {
	case ai.ProviderAnthropic:
		rc.APIKey = c.AnthropicAPIKey
	case ai.ProviderOllama:
		rc.HTTPTimeout = time.Duration(c.OllamaTimeoutSec) * time.Second
	}
	return rc
}
