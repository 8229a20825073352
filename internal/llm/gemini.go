package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// geminiBaseURL is a var to allow test overrides via httptest. Empty uses
// the SDK default endpoint.
var geminiBaseURL = ""

// SetGeminiBaseURL overrides the Gemini API base URL.
// Intended for use in tests only.
func SetGeminiBaseURL(u string) { geminiBaseURL = u }

type geminiProvider struct {
	model  string
	apiKey string // unexported; never serialized by encoding/json
}

func (p *geminiProvider) client(ctx context.Context) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: sharedHTTPClient,
	}
	if geminiBaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: geminiBaseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return c, nil
}

func (p *geminiProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.Models.GenerateContent(ctx, model, genai.Text(userContent(req)), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}

	content := resp.Text()

	name := resp.ModelVersion
	if name == "" {
		name = model
	}
	return &Response{
		Content: content,
		Model:   fmt.Sprintf("gemini:%s", name),
	}, nil
}
