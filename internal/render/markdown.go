package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/dshills/overlapengine/internal/schema"
	"github.com/dshills/overlapengine/internal/schema/validate"
)

type markdownRenderer struct{}

var mdTemplate = template.Must(template.New("report").Parse(`{{ .Body }}
---
*Style: {{ .Env.Input.Style }}{{ if ne .Env.Input.Style .Env.Input.StyleID }} (requested {{ .Env.Input.StyleID }}){{ end }} | Anchor: {{ .Env.Input.Anchor }}*
*Models: {{ .Env.Meta.Phase1Model }} / {{ .Env.Meta.Phase2Model }} | Attempts: {{ .Env.Meta.Phase1Attempts }} / {{ .Env.Meta.Phase2Attempts }}*
{{ if .Env.Meta.Revision }}
## Revision

` + "```" + `
{{ .Env.Meta.Revision }}
` + "```" + `
{{ end }}`))

type mdView struct {
	Env  *schema.Envelope
	Body string
}

func (r *markdownRenderer) Render(env *schema.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := mdTemplate.Execute(&buf, mdView{Env: env, Body: headings(env.Report)}); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// headings promotes the title line to an h1 and bare section header lines
// to h2. Other lines are kept as written.
func headings(report string) string {
	lines := strings.Split(strings.TrimRight(report, "\n"), "\n")
	titled := false
	for i, line := range lines {
		bare := strings.Trim(strings.TrimSpace(line), "#*: ")
		switch {
		case !titled && strings.Contains(line, validate.DefaultTitle):
			lines[i] = "# " + bare
			titled = true
		case isSection(bare):
			lines[i] = "## " + bare
		}
	}
	return strings.Join(lines, "\n")
}

func isSection(s string) bool {
	for _, sec := range validate.RequiredSections {
		if strings.EqualFold(s, sec) {
			return true
		}
	}
	return false
}
