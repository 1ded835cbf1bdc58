package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	OpenAIModel   = "gpt-4o"
)

// OpenAI calls an OpenAI-compatible chat completions endpoint. Message and
// response shapes come from openai-go; the request itself is plain HTTP so
// any compatible base URL works.
type OpenAI struct {
	client    *http.Client
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
}

func NewOpenAI(opts Options) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, errors.New("OpenAI API key is required (set MEMEX_API_KEY or OPENAI_API_KEY)")
	}
	o := &OpenAI{
		client:    httpClient(opts),
		apiKey:    opts.APIKey,
		baseURL:   OpenAIBaseURL,
		model:     OpenAIModel,
		maxTokens: defaultMaxTokens,
	}
	if opts.BaseURL != "" {
		o.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Model != "" {
		o.model = opts.Model
	}
	if opts.MaxTokens > 0 {
		o.maxTokens = opts.MaxTokens
	}
	return o, nil
}

func (o *OpenAI) Complete(ctx context.Context, messages []Message, system string) (string, error) {
	body := map[string]any{
		"model":      o.model,
		"messages":   toOpenAIMessages(messages, system),
		"max_tokens": o.maxTokens,
	}

	var resp openai.ChatCompletion
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	if err := postJSON(ctx, o.client, o.baseURL+"/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message, system string) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
