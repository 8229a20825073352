// Package render formats a generation envelope for output.
package render

import (
	"fmt"

	"github.com/dshills/overlapengine/internal/schema"
)

// Renderer formats an Envelope into bytes for output.
type Renderer interface {
	Render(env *schema.Envelope) ([]byte, error)
}

// NewRenderer returns a Renderer for the given format string.
// Supported formats: "text" (default), "json", "md".
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return textRenderer{}, nil
	case "json":
		return &jsonRenderer{}, nil
	case "md":
		return &markdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: supported formats are text, json, md", format)
	}
}

// textRenderer emits the report alone.
type textRenderer struct{}

func (textRenderer) Render(env *schema.Envelope) ([]byte, error) {
	out := []byte(env.Report)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out, nil
}
