package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const (
	AnthropicBaseURL = "https://api.anthropic.com"
	AnthropicModel   = "claude-sonnet-4-5"
	anthropicVersion = "2023-06-01"
)

// Anthropic calls the Messages API.
type Anthropic struct {
	client    *http.Client
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
}

func NewAnthropic(opts Options) (*Anthropic, error) {
	if opts.APIKey == "" {
		return nil, errors.New("Anthropic API key is required (set MEMEX_API_KEY or ANTHROPIC_API_KEY)")
	}
	a := &Anthropic{
		client:    httpClient(opts),
		apiKey:    opts.APIKey,
		baseURL:   AnthropicBaseURL,
		model:     AnthropicModel,
		maxTokens: defaultMaxTokens,
	}
	if opts.BaseURL != "" {
		a.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Model != "" {
		a.model = opts.Model
	}
	if opts.MaxTokens > 0 {
		a.maxTokens = opts.MaxTokens
	}
	return a, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (a *Anthropic) Complete(ctx context.Context, messages []Message, system string) (string, error) {
	req := anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    system,
		Messages:  make([]anthropicMessage, 0, len(messages)),
	}
	for _, m := range messages {
		role := m.Role
		if role != RoleAssistant {
			role = RoleUser
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: role, Content: m.Content})
	}

	var resp anthropicResponse
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}
	if err := postJSON(ctx, a.client, a.baseURL+"/v1/messages", headers, req, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
