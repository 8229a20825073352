package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/overlapengine/internal/llm"
	"github.com/dshills/overlapengine/internal/schema/validate"
)

// script is a provider that replays canned outputs and records requests.
type script struct {
	mu      sync.Mutex
	outputs []string
	errs    []error
	reqs    []llm.Request
}

func newScript(outputs ...string) *script { return &script{outputs: outputs} }

func (s *script) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.reqs)
	s.reqs = append(s.reqs, *req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.outputs) {
		return nil, errors.New("script exhausted")
	}
	return &llm.Response{Content: s.outputs[i], Model: "fake:model"}, nil
}

func (s *script) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func (s *script) request(t *testing.T, i int) llm.Request {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.reqs) {
		t.Fatalf("request %d not made (%d calls)", i, len(s.reqs))
	}
	return s.reqs[i]
}

var _ llm.Provider = (*script)(nil)

func items(n int, format string) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"world":   "livestock auction",
			"anchors": []string{"hay", "bale"},
			"overlap": fmt.Sprintf(format, i+1),
		}
	}
	return out
}

func phase1Raw(t *testing.T, core, outer, compression int) string {
	t.Helper()
	return mustJSON(t, map[string]any{
		"items":       items(core, "The feed store grades bale %d of hay like a vintage wine."),
		"outerField":  items(outer, "The county fair judge weighs hay lot %d with a jeweler's loupe."),
		"compression": items(compression, "Hay with a résumé, bale %d."),
	})
}

func phase1Drift(t *testing.T) string {
	t.Helper()
	return mustJSON(t, map[string]any{
		"items":       items(12, "A farmer is stuffing pillow %d with hay for the guest room."),
		"outerField":  items(12, "A contractor is insulating attic %d with hay bales."),
		"compression": items(5, "Hay as insulation, attic %d."),
	})
}

func assumptions(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("- Buyers expect hay lot %d to come with a grade.", i+1)
	}
	return strings.Join(lines, "\n")
}

func reportText(premiseLine string, bullets int) string {
	return validate.DefaultTitle + "\n\n" +
		"Premise Clarified\n" + premiseLine + "\n\n" +
		"Surface Assumptions\n" + assumptions(bullets) + "\n\n" +
		"Core Overlaps\n- The feed store grades each bale like a sommelier.\n- The horse signs for delivery.\n\n" +
		"Outer Field Overlaps\n- The county fair judge brings a jeweler's loupe.\n\n" +
		"Compression Lines\n- Hay has references now.\n"
}

func validReport() string {
	return reportText("Someone is selling horse quality hay to buyers who demand paperwork.", 7)
}

func reportRaw(t *testing.T, report string) string {
	t.Helper()
	return mustJSON(t, map[string]string{"report": report})
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
