package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient calls the Anthropic Messages API. System messages in a
// request are joined into the system prompt.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient builds a client. An empty apiKey falls back to the
// ANTHROPIC_API_KEY environment variable; baseURL is for tests.
func NewAnthropicClient(apiKey, baseURL string, httpTimeout time.Duration, retryMax int) *AnthropicClient {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(httpTimeout))
	}
	if retryMax >= 0 {
		opts = append(opts, option.WithMaxRetries(retryMax))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	var system []string
	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: strings.Join(system, "\n\n")}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, classifyAPIError(&APIError{
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Error(),
				RequestID:  extractRequestID(apiErr.Response),
			}, apiErr.Response)
		}
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("no text content in response")
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &GenerateResponse{
		ID:        msg.ID,
		Choices:   []Choice{{Message: Message{Role: RoleAssistant, Content: text.String()}}},
		Usage:     Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		RequestID: msg.ID,
	}, nil
}
