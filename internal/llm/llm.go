// Package llm talks to the external summarization provider.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Role values for Message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message sent to the summarizer.
type Message struct {
	Role    string
	Content string
}

// Summarizer completes a conversation with a system prompt and returns the
// assistant's text. Transport and HTTP errors are returned as errors.
type Summarizer interface {
	Complete(ctx context.Context, messages []Message, system string) (string, error)
}

// Options configures a provider.
type Options struct {
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

const defaultMaxTokens = 4096

// New returns the Summarizer for provider ("anthropic" or "openai").
func New(provider string, opts Options) (Summarizer, error) {
	switch provider {
	case "", "anthropic":
		return NewAnthropic(opts)
	case "openai":
		return NewOpenAI(opts)
	default:
		return nil, fmt.Errorf("unknown provider %q (expected anthropic or openai)", provider)
	}
}

func httpClient(opts Options) *http.Client {
	if opts.HTTPClient != nil {
		return opts.HTTPClient
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// postJSON sends body to url and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// StatusError is a non-200 response from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Code, e.Body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
