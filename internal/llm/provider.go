package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// sharedHTTPClient is used by all providers; a 5-minute timeout covers slow LLM responses.
var sharedHTTPClient = &http.Client{
	Timeout: 5 * time.Minute,
}

// defaultMaxTokens is the fallback when Request.MaxTokens is not set.
const defaultMaxTokens = 4096

// Request holds the parameters for an LLM completion call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	// Directives are trailing instructions sent after the user prompt, such
	// as a corrective instruction on retry.
	Directives  []string
	Temperature float64
	TopP        float64
	MaxTokens   int
	// Model overrides the provider's configured model when non-empty.
	Model string
	// JSON asks the backend for a JSON object response where supported.
	JSON bool
}

// Response holds the result of an LLM completion call.
type Response struct {
	Content string
	Model   string // actual model used, echoed back for meta
}

// Provider is the interface for LLM completion backends.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req *Request) (*Response, error)

// Complete calls f.
func (f ProviderFunc) Complete(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// NewProvider parses a "provider:model" string and returns the appropriate Provider.
// The API key is read from the environment at construction time and validated immediately.
// Example: "openai:gpt-4o", "anthropic:claude-sonnet-4-6" or "gemini:gemini-2.5-flash".
func NewProvider(providerModel string) (Provider, error) {
	name, model, err := ParseModel(providerModel)
	if err != nil {
		return nil, err
	}
	switch name {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		return &anthropicProvider{model: model, apiKey: apiKey}, nil
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		return newOpenAIProvider(model, apiKey), nil
	case "gemini":
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
		return &geminiProvider{model: model, apiKey: apiKey}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q: supported providers are anthropic, openai, gemini", name)
	}
}

// ParseModel splits a "provider:model" string.
func ParseModel(providerModel string) (provider, model string, err error) {
	parts := strings.SplitN(providerModel, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider:model (e.g. openai:gpt-4o)", providerModel)
	}
	return parts[0], parts[1], nil
}

// userContent joins the user prompt with any trailing directives for
// backends that take a single user turn.
func userContent(req *Request) string {
	if len(req.Directives) == 0 {
		return req.UserPrompt
	}
	return req.UserPrompt + "\n\n" + strings.Join(req.Directives, "\n\n")
}

// truncate limits a string to maxLen runes, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
