package ai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from a provider.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error: status=%d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", e.RequestID)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " message=%s", e.Message)
	}
	return b.String()
}

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// ModelNotFoundError indicates the requested model is not available.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

// BadRequestError indicates a 4xx request problem (e.g., 400 validation).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError indicates billing/quota problems.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

// ServerError indicates 5xx errors from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

// UnreachableError indicates the target runtime is not reachable (e.g., local Ollama down).
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// readAPIError decodes an error body. OpenRouter nests {"error":{...}},
// Ollama sends {"error":"..."}.
func readAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	switch v := raw["error"].(type) {
	case map[string]any:
		apiErr.Message, _ = v["message"].(string)
		apiErr.Code, _ = v["code"].(string)
	case string:
		apiErr.Message = v
	}
	if apiErr.Message == "" {
		apiErr.Message, _ = raw["message"].(string)
	}
	if apiErr.Code == "" {
		apiErr.Code, _ = raw["code"].(string)
	}
	return apiErr
}

// classifyAPIError maps a generic APIError to a typed error.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc, msg, code := apiErr.StatusCode, apiErr.Message, apiErr.Code
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		return &RateLimitError{APIError: apiErr, RetryAfter: retryAfter(resp)}
	case sc == http.StatusNotFound:
		if code == "model_not_found" || containsAllFold(msg, "model", "not", "found") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	case sc == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case code == "quota_exceeded" || containsAnyFold(msg, "quota", "billing", "limit exceeded"):
		return &QuotaExceededError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// retryAfter reads Retry-After as seconds or an HTTP date.
func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if s, err := strconv.Atoi(v); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "Request-Id", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}
