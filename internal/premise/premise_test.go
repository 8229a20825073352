package premise

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRequestValidate(t *testing.T) {
	long := strings.Repeat("hay ", 501)
	cases := []struct {
		name  string
		req   Request
		field string
	}{
		{"valid", Request{Premise: "Horse quality hay for sale", StyleID: "cold_minimalist_observer"}, ""},
		{"short premise", Request{Premise: "Hay sale", StyleID: "x1"}, "premise"},
		{"whitespace padded short", Request{Premise: "   Hay   \n sale   ", StyleID: "x1"}, "premise"},
		{"long premise", Request{Premise: long, StyleID: "x1"}, "premise"},
		{"missing style", Request{Premise: "Horse quality hay for sale"}, "styleId"},
		{"one-char style", Request{Premise: "Horse quality hay for sale", StyleID: "x"}, "styleId"},
		{"exactly twelve", Request{Premise: "abcdefghijkl", StyleID: "xy"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.field == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestFromRequest(t *testing.T) {
	p, err := FromRequest(Request{Premise: "  Horse quality\n\nhay for sale ", StyleID: "cold_minimalist_observer"})
	if err != nil {
		t.Fatalf("FromRequest: %v", err)
	}
	if p.Text != "Horse quality hay for sale" {
		t.Errorf("text = %q", p.Text)
	}
	if p.Anchor != "horse quality hay" {
		t.Errorf("anchor = %q", p.Anchor)
	}
	if !strings.HasPrefix(p.Hash, "sha256:") || len(p.Hash) != len("sha256:")+64 {
		t.Errorf("hash = %q", p.Hash)
	}

	p, err = FromRequest(Request{Premise: "Horse quality hay for sale", StyleID: "xy", Anchor: "Quality  HAY"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Anchor != "quality hay" {
		t.Errorf("explicit anchor = %q", p.Anchor)
	}
}

func TestNew(t *testing.T) {
	if _, err := New("too short", ""); err == nil {
		t.Error("expected error for short premise")
	} else {
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "premise" {
			t.Errorf("err = %v", err)
		}
	}
	p, err := New("A dentist who only accepts payment in teeth", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Anchor != "dentist" {
		t.Errorf("anchor = %q", p.Anchor)
	}
}

func TestHashStable(t *testing.T) {
	if Hash("a") != Hash("a") || Hash("a") == Hash("b") {
		t.Error("hash not stable or not distinct")
	}
}

func TestDeriveAnchor(t *testing.T) {
	cases := map[string]string{
		"Horse quality hay for sale":               "horse quality hay",
		"The moon is a hotel":                      "moon",
		"Gluten-free artisanal dog biscuits online": "gluten-free artisanal dog biscuits",
		"Used car salesman, but for kidneys":       "used car salesman",
		`"Emotional support" alpacas at airports`:  "emotional support",
		"the of and":                               "",
		"":                                         "",
		"Hay.":                                     "hay",
	}
	for in, want := range cases {
		if got := DeriveAnchor(in); got != want {
			t.Errorf("DeriveAnchor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHeadNoun(t *testing.T) {
	if got := HeadNoun("horse quality hay"); got != "hay" {
		t.Errorf("got %q", got)
	}
	if got := HeadNoun(""); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "premise.txt")
	if err := os.WriteFile(path, []byte("Horse quality hay for sale\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if got, err := Load("from arg", "", nil); err != nil || got != "from arg" {
		t.Errorf("arg: %q, %v", got, err)
	}
	if got, err := Load("", path, nil); err != nil || got != "Horse quality hay for sale\n" {
		t.Errorf("file: %q, %v", got, err)
	}
	if got, err := Load("", "-", strings.NewReader("from stdin")); err != nil || got != "from stdin" {
		t.Errorf("stdin: %q, %v", got, err)
	}
	if _, err := Load("x", path, nil); err == nil {
		t.Error("expected error for both sources")
	}
	if _, err := Load("", "", nil); err == nil {
		t.Error("expected error for no source")
	}
	if _, err := Load("", filepath.Join(dir, "missing.txt"), nil); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load("", "-", strings.NewReader(strings.Repeat("x", maxInputBytes+1))); err == nil {
		t.Error("expected error for oversized input")
	}
}
