package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	llmpkg "github.com/dshills/overlapengine/internal/llm"
	"github.com/dshills/overlapengine/internal/schema"
	"github.com/dshills/overlapengine/internal/schema/validate"
	"github.com/dshills/overlapengine/internal/style"
)

const hayPremise = "Horse quality hay for sale"

// mockOpenAI answers chat completions from per-phase response queues; the
// last entry of a queue repeats once it is reached.
type mockOpenAI struct {
	mu     sync.Mutex
	phase1 []string
	phase2 []string
	calls  [2]int
}

func (m *mockOpenAI) next(queue []string, n int) string {
	if n >= len(queue) {
		return queue[len(queue)-1]
	}
	return queue[n]
}

func (m *mockOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Messages) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	var content string
	if strings.HasPrefix(body.Messages[0].Content, "You are a mechanical") {
		content = m.next(m.phase1, m.calls[0])
		m.calls[0]++
	} else {
		content = m.next(m.phase2, m.calls[1])
		m.calls[1]++
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
}

// setupMockOpenAI points the openai provider at m for the test duration.
func setupMockOpenAI(t *testing.T, m *mockOpenAI) {
	t.Helper()
	srv := httptest.NewServer(m)
	original := llmpkg.OpenAIBaseURL()
	llmpkg.SetOpenAIBaseURL(srv.URL)
	t.Cleanup(func() {
		srv.Close()
		llmpkg.SetOpenAIBaseURL(original)
	})
}

// setTestEnv pins both phases to openai with a fake key.
func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key-for-integration-tests")
	t.Setenv("OVERLAP_MODEL", "")
	t.Setenv("OVERLAP_PHASE1_MODEL", "")
	t.Setenv("OVERLAP_PHASE2_MODEL", "")
}

func bucket(n int, format string) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"world": "wine cellar", "anchors": []string{"hay"}, "overlap": fmt.Sprintf(format, i+1)}
	}
	return out
}

func phase1JSON(core int) string {
	b, _ := json.Marshal(map[string]any{
		"items":       bucket(core, "The feed store grades bale %d of hay like a vintage wine."),
		"outerField":  bucket(12, "The county fair judge weighs hay lot %d with a jeweler's loupe."),
		"compression": bucket(5, "Hay with a résumé, bale %d."),
	})
	return string(b)
}

func reportBody(bullets int) string {
	lines := make([]string, bullets)
	for i := range lines {
		lines[i] = fmt.Sprintf("- Buyers expect hay lot %d to come with a grade.", i+1)
	}
	return validate.DefaultTitle + "\n\nPremise Clarified\nSomeone is selling horse quality hay to buyers who demand paperwork.\n\n" +
		"Surface Assumptions\n" + strings.Join(lines, "\n") + "\n\n" +
		"Core Overlaps\n- The feed store grades each bale like a sommelier.\n\n" +
		"Outer Field Overlaps\n- The county fair judge brings a loupe.\n\n" +
		"Compression Lines\n- Hay has references now.\n"
}

func reportJSON(bullets int) string {
	b, _ := json.Marshal(map[string]string{"report": reportBody(bullets)})
	return string(b)
}

func defaultFlags() generateFlags {
	return generateFlags{format: "text", style: "cold_minimalist_observer"}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ee *exitErr
	if !errors.As(err, &ee) {
		t.Fatalf("expected *exitErr, got %T: %v", err, err)
	}
	return ee.code
}

// --- Tests ---

func TestRunGenerate_Text(t *testing.T) {
	setTestEnv(t)
	m := &mockOpenAI{phase1: []string{phase1JSON(12)}, phase2: []string{reportJSON(7)}}
	setupMockOpenAI(t, m)

	var stdout, stderr bytes.Buffer
	if err := runGenerate(context.Background(), hayPremise, defaultFlags(), nil, &stdout, &stderr); err != nil {
		t.Fatalf("runGenerate: %v\nstderr: %s", err, stderr.String())
	}
	if stdout.String() != reportBody(7) {
		t.Errorf("stdout = %q", stdout.String())
	}
	if m.calls != [2]int{1, 1} {
		t.Errorf("calls = %v", m.calls)
	}
}

func TestRunGenerate_JSONWithRevision(t *testing.T) {
	setTestEnv(t)
	m := &mockOpenAI{
		phase1: []string{phase1JSON(4), phase1JSON(12)},
		phase2: []string{reportJSON(3), reportJSON(7)},
	}
	setupMockOpenAI(t, m)

	dir := t.TempDir()
	flags := defaultFlags()
	flags.format = "json"
	flags.out = filepath.Join(dir, "out.json")
	flags.revisionOut = filepath.Join(dir, "revision.patch")

	var stderr bytes.Buffer
	if err := runGenerate(context.Background(), hayPremise, flags, nil, &bytes.Buffer{}, &stderr); err != nil {
		t.Fatalf("runGenerate: %v\nstderr: %s", err, stderr.String())
	}

	data, err := os.ReadFile(flags.out)
	if err != nil {
		t.Fatal(err)
	}
	var env schema.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, data)
	}
	if env.Tool != "overlap" || env.Report != reportBody(7) {
		t.Errorf("envelope = %+v", env)
	}
	if env.Meta.Phase1Attempts != 2 || env.Meta.Phase2Attempts != 2 {
		t.Errorf("attempts = %d/%d", env.Meta.Phase1Attempts, env.Meta.Phase2Attempts)
	}
	if env.Phase1 == nil || len(env.Phase1.Items) != 12 {
		t.Error("json output missing phase 1 payload")
	}
	if env.Input.Anchor != "horse quality hay" || env.Input.StyleID != "cold_minimalist_observer" {
		t.Errorf("input = %+v", env.Input)
	}
	if env.Meta.Revision == "" {
		t.Error("json output missing revision")
	}

	patch, err := os.ReadFile(flags.revisionOut)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(patch), "@@ ") || string(patch) != env.Meta.Revision {
		t.Errorf("revision file = %q", patch)
	}
}

func TestRunGenerate_FileAndStdin(t *testing.T) {
	setTestEnv(t)
	setupMockOpenAI(t, &mockOpenAI{phase1: []string{phase1JSON(12)}, phase2: []string{reportJSON(7)}})

	path := filepath.Join(t.TempDir(), "premise.txt")
	if err := os.WriteFile(path, []byte("  Horse quality\nhay for sale \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	flags := defaultFlags()
	flags.file = path
	if err := runGenerate(context.Background(), "", flags, nil, &bytes.Buffer{}, &bytes.Buffer{}); err != nil {
		t.Fatalf("file premise: %v", err)
	}

	flags.file = "-"
	if err := runGenerate(context.Background(), "", flags, strings.NewReader(hayPremise), &bytes.Buffer{}, &bytes.Buffer{}); err != nil {
		t.Fatalf("stdin premise: %v", err)
	}
}

func TestRunGenerate_UnknownStyleWarns(t *testing.T) {
	setTestEnv(t)
	setupMockOpenAI(t, &mockOpenAI{phase1: []string{phase1JSON(12)}, phase2: []string{reportJSON(7)}})

	flags := defaultFlags()
	flags.style = "no_such_voice"
	var stderr bytes.Buffer
	if err := runGenerate(context.Background(), hayPremise, flags, nil, &bytes.Buffer{}, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr.String(), "WARN: unknown style \"no_such_voice\", using "+style.DefaultID) {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunGenerate_DebugDumpRedacts(t *testing.T) {
	setTestEnv(t)
	setupMockOpenAI(t, &mockOpenAI{phase1: []string{phase1JSON(12)}, phase2: []string{reportJSON(7)}})

	flags := defaultFlags()
	flags.debug = true
	secret := "sk-" + strings.Repeat("a", 40)
	var stderr bytes.Buffer
	err := runGenerate(context.Background(), "Horse quality hay for sale, key "+secret, flags, nil, &bytes.Buffer{}, &stderr)
	if err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	out := stderr.String()
	if !strings.Contains(out, "=== DEBUG: phase 1 redacted prompt ===") || !strings.Contains(out, "=== DEBUG: phase 2 redacted prompt ===") {
		t.Errorf("missing prompt dump:\n%s", out)
	}
	if strings.Contains(out, secret) {
		t.Error("debug dump leaked a secret")
	}
}

func TestRunGenerate_ExitCodes(t *testing.T) {
	setTestEnv(t)
	setupMockOpenAI(t, &mockOpenAI{phase1: []string{phase1JSON(3)}, phase2: []string{reportJSON(7)}})

	t.Run("bad format", func(t *testing.T) {
		flags := defaultFlags()
		flags.format = "xml"
		if code := exitCode(t, runGenerate(context.Background(), hayPremise, flags, nil, &bytes.Buffer{}, &bytes.Buffer{})); code != exitInput {
			t.Errorf("code = %d", code)
		}
	})
	t.Run("short premise", func(t *testing.T) {
		if code := exitCode(t, runGenerate(context.Background(), "hay", defaultFlags(), nil, &bytes.Buffer{}, &bytes.Buffer{})); code != exitInput {
			t.Errorf("code = %d", code)
		}
	})
	t.Run("no premise", func(t *testing.T) {
		if code := exitCode(t, runGenerate(context.Background(), "", defaultFlags(), nil, &bytes.Buffer{}, &bytes.Buffer{})); code != exitInput {
			t.Errorf("code = %d", code)
		}
	})
	t.Run("bad config", func(t *testing.T) {
		flags := defaultFlags()
		flags.configPath = filepath.Join(t.TempDir(), "missing.yaml")
		if code := exitCode(t, runGenerate(context.Background(), hayPremise, flags, nil, &bytes.Buffer{}, &bytes.Buffer{})); code != exitInput {
			t.Errorf("code = %d", code)
		}
	})
	t.Run("generation failure", func(t *testing.T) {
		err := runGenerate(context.Background(), hayPremise, defaultFlags(), nil, &bytes.Buffer{}, &bytes.Buffer{})
		if code := exitCode(t, err); code != exitGenerate {
			t.Errorf("code = %d (%v)", code, err)
		}
		if !strings.Contains(err.Error(), "phase 1 failed after 2 attempt(s)") {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("missing key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		if code := exitCode(t, runGenerate(context.Background(), hayPremise, defaultFlags(), nil, &bytes.Buffer{}, &bytes.Buffer{})); code != exitProvider {
			t.Errorf("code = %d", code)
		}
	})
}

func TestRunGenerate_ConfigPhaseModels(t *testing.T) {
	setTestEnv(t)
	m := &mockOpenAI{phase1: []string{phase1JSON(12)}, phase2: []string{reportJSON(7)}}
	setupMockOpenAI(t, m)

	path := filepath.Join(t.TempDir(), "overlap.yaml")
	cfg := "phase1:\n  model: openai:gpt-4o-mini\n  temperature: 0.7\n  top_p: 0.95\n  max_tokens: 4000\nphase2:\n  model: openai:gpt-4.1\n  temperature: 0.8\n  top_p: 1\n  max_tokens: 3600\n"
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	flags := defaultFlags()
	flags.configPath = path
	flags.format = "json"
	var stdout bytes.Buffer
	if err := runGenerate(context.Background(), hayPremise, flags, nil, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	var env schema.Envelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Meta.Phase1Model != "openai:gpt-4o-mini" || env.Meta.Phase2Model != "openai:gpt-4.1" {
		t.Errorf("meta = %+v", env.Meta)
	}
}

func TestRunStyles(t *testing.T) {
	var text bytes.Buffer
	if err := runStyles("text", &text); err != nil {
		t.Fatal(err)
	}
	for _, id := range style.Builtin().IDs() {
		if !strings.Contains(text.String(), id) {
			t.Errorf("styles output missing %s", id)
		}
	}
	if !strings.Contains(text.String(), "* "+style.DefaultID) {
		t.Errorf("default style not marked:\n%s", text.String())
	}

	var js bytes.Buffer
	if err := runStyles("json", &js); err != nil {
		t.Fatal(err)
	}
	var contracts []map[string]any
	if err := json.Unmarshal(js.Bytes(), &contracts); err != nil {
		t.Fatalf("json styles: %v", err)
	}
	if len(contracts) != len(style.Builtin().IDs()) {
		t.Errorf("got %d contracts", len(contracts))
	}

	if code := exitCode(t, runStyles("yaml", &bytes.Buffer{})); code != exitInput {
		t.Errorf("code = %d", code)
	}
}

func TestValidateFlags(t *testing.T) {
	for _, f := range []string{"text", "json", "md"} {
		flags := defaultFlags()
		flags.format = f
		if err := validateFlags(flags); err != nil {
			t.Errorf("format %s: %v", f, err)
		}
	}
	flags := defaultFlags()
	flags.style = "  "
	if err := validateFlags(flags); err == nil {
		t.Error("expected error for blank style")
	}
}
