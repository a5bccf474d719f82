package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultOllamaHost = "http://127.0.0.1:11434"

// OllamaClient talks to a local Ollama runtime for chat and embeddings.
type OllamaClient struct {
	httpClient *http.Client
	host       string
	retry      retryPolicy
}

// NewOllamaClient creates a new client targeting the given host (e.g., http://127.0.0.1:11434).
func NewOllamaClient(host string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OllamaClient {
	if host == "" {
		host = defaultOllamaHost
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 2
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 1 * time.Second
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: httpTimeout},
		host:       host,
		retry:      retryPolicy{attempts: retryMax, baseDelay: baseDelay, maxDelay: maxDelay},
	}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

func (c *OllamaClient) post(ctx context.Context, path string, body any, decode func(*http.Response) error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	err = c.retry.send(ctx, c.httpClient,
		func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		},
		func(resp *http.Response) error {
			apiErr := readAPIError(resp)
			switch {
			case resp.StatusCode == http.StatusNotFound:
				return &ModelNotFoundError{APIError: apiErr}
			case resp.StatusCode >= 500:
				return &ServerError{APIError: apiErr}
			case resp.StatusCode == http.StatusBadRequest:
				return &BadRequestError{APIError: apiErr}
			}
			return apiErr
		},
		decode)
	var transport *url.Error
	if errors.As(err, &transport) && ctx.Err() == nil {
		return &UnreachableError{Host: c.host, Err: err}
	}
	return err
}

// Generate sends a non-streaming chat request.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	oreq := ollamaChatRequest{Model: req.Model, Messages: req.Messages, Options: map[string]any{}}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}

	var out GenerateResponse
	err := c.post(ctx, "/api/chat", oreq, func(resp *http.Response) error {
		var oresp ollamaChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&oresp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		out.Choices = []Choice{{Message: Message{Role: RoleAssistant, Content: oresp.Message.Content}}}
		out.Usage = Usage{
			PromptTokens:     oresp.PromptEvalCount,
			CompletionTokens: oresp.EvalCount,
			TotalTokens:      oresp.PromptEvalCount + oresp.EvalCount,
		}
		out.RequestID = fmt.Sprintf("ollama_%d", time.Now().UnixNano())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Embed requests vectors for a batch of inputs from /api/embed.
func (c *OllamaClient) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if model == "" {
		return nil, errors.New("embedding model cannot be empty")
	}
	if len(inputs) == 0 {
		return nil, errors.New("inputs cannot be empty")
	}
	var body struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := c.post(ctx, "/api/embed", map[string]any{"model": model, "input": inputs}, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&body)
	})
	if err != nil {
		return nil, err
	}
	if len(body.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(body.Embeddings), len(inputs))
	}
	return body.Embeddings, nil
}
