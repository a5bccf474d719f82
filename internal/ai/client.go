package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const openRouterURL = "https://openrouter.ai/api/v1"

// Client talks to the OpenRouter chat-completions and embeddings APIs.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retry      retryPolicy
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenRouterClient returns a client with default timeouts and retry strategy.
func NewOpenRouterClient(apiKey string) *Client {
	return NewClient(apiKey, 60*time.Second, 3, 500*time.Millisecond, 4*time.Second)
}

// NewClient allows customizing HTTP timeout and retry/backoff behavior.
func NewClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	return NewClientWithBaseURL(apiKey, httpTimeout, retryMax, baseDelay, maxDelay, "")
}

// NewClientWithBaseURL allows injecting a custom base URL (used in tests).
func NewClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	if baseURL == "" {
		baseURL = openRouterURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    baseURL,
		retry:      retryPolicy{attempts: retryMax, baseDelay: baseDelay, maxDelay: maxDelay},
	}
}

func (c *Client) request(ctx context.Context, path string, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/KaramelBytes/querylens")
	req.Header.Set("X-Title", "querylens")
	return req, nil
}

func (c *Client) classify(resp *http.Response) error {
	return classifyAPIError(readAPIError(resp), resp)
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY is missing")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var out GenerateResponse
	err = c.retry.send(ctx, c.httpClient,
		func(ctx context.Context) (*http.Request, error) { return c.request(ctx, "/chat/completions", payload) },
		c.classify,
		func(resp *http.Response) error {
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			out.RequestID = extractRequestID(resp)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Embed returns one vector per input using the embeddings endpoint.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if c.apiKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY is missing")
	}
	if model == "" {
		return nil, errors.New("embedding model cannot be empty")
	}
	if len(inputs) == 0 {
		return nil, errors.New("inputs cannot be empty")
	}
	payload, err := json.Marshal(embeddingRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var out embeddingResponse
	err = c.retry.send(ctx, c.httpClient,
		func(ctx context.Context) (*http.Request, error) { return c.request(ctx, "/embeddings", payload) },
		c.classify,
		func(resp *http.Response) error {
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(inputs))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		vectors[d.Index] = vec
	}
	return vectors, nil
}
