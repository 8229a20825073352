package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openaiBaseURL is a var to allow test overrides via httptest.
var openaiBaseURL = "https://api.openai.com/v1"

// OpenAIBaseURL returns the current OpenAI API base URL.
// Exposed for use by integration tests via httptest servers.
func OpenAIBaseURL() string { return openaiBaseURL }

// SetOpenAIBaseURL overrides the OpenAI API base URL.
// Intended for use in tests only.
func SetOpenAIBaseURL(u string) { openaiBaseURL = u }

type openaiProvider struct {
	model  string
	client *openai.Client
}

func newOpenAIProvider(model, apiKey string) *openaiProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = openaiBaseURL
	cfg.HTTPClient = sharedHTTPClient
	return &openaiProvider{model: model, client: openai.NewClientWithConfig(cfg)}
}

func (p *openaiProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	// Only include system message when non-empty to avoid unnecessary token usage.
	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt})
	for _, d := range req.Directives {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: d})
	}

	ccr := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := p.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai: HTTP %d: %s", apiErr.HTTPStatusCode, truncate(apiErr.Message, 200))
		}
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &Response{
		Content: content,
		Model:   fmt.Sprintf("openai:%s", resp.Model),
	}, nil
}
