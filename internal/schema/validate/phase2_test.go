package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func assumptionLines(n int, marker func(i int) string) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("%sThe buyer reads hay grade %d on the listing.", marker(i), i+1)
	}
	return lines
}

func dash(int) string { return "- " }

func buildReport(premise string, assumptions []string) string {
	var b strings.Builder
	b.WriteString(DefaultTitle + "\n\n")
	b.WriteString("Premise Clarified\n" + premise + "\n\n")
	b.WriteString("Surface Assumptions\n" + strings.Join(assumptions, "\n") + "\n\n")
	b.WriteString("Core Overlaps\n- The feed store grades bales like vintage wine.\n- The clerk asks the horse for references.\n\n")
	b.WriteString("Outer Field Overlaps\n- The county fair judge brings a jeweler's loupe.\n\n")
	b.WriteString("Compression Lines\n- Hay has a résumé now.\n")
	return b.String()
}

func validReport() string {
	return buildReport("A classified ad sells horse quality hay to a buyer who wants proof.", assumptionLines(8, dash))
}

func reportJSON(t *testing.T, report string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{"report": report})
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestParsePhase2_Valid(t *testing.T) {
	rules := DefaultPhase2Rules().WithAnchor("horse quality hay")
	got, err := ParsePhase2(reportJSON(t, validReport()), rules)
	if err != nil {
		t.Fatalf("ParsePhase2: %v", err)
	}
	if got != validReport() {
		t.Error("returned report differs from input")
	}
}

func TestParsePhase2_ExtraKeysTolerated(t *testing.T) {
	raw := `{"report": ` + mustQuote(t, validReport()) + `, "notes": "ignored"}`
	if _, err := ParsePhase2(raw, DefaultPhase2Rules()); err != nil {
		t.Errorf("extra key rejected: %v", err)
	}
}

func TestParsePhase2_StripsFences(t *testing.T) {
	raw := "```json\n" + reportJSON(t, validReport()) + "\n```"
	if _, err := ParsePhase2(raw, DefaultPhase2Rules()); err != nil {
		t.Errorf("fenced report rejected: %v", err)
	}
}

func TestParsePhase2_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"not json":   "Here is your report!",
		"array":      `["report"]`,
		"no report":  `{"text": "x"}`,
		"not string": `{"report": 42}`,
		"blank":      `{"report": "   "}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePhase2(raw, DefaultPhase2Rules())
			var me *MalformedOutputError
			if !errors.As(err, &me) {
				t.Fatalf("err = %v, want MalformedOutputError", err)
			}
			if me.Phase != 2 {
				t.Errorf("phase = %d, want 2", me.Phase)
			}
			if !strings.Contains(me.Directive(), `"report"`) {
				t.Errorf("directive = %q", me.Directive())
			}
		})
	}
}

func TestReport_TooShort(t *testing.T) {
	err := Report(DefaultTitle, DefaultPhase2Rules())
	var se *SectionError
	if !errors.As(err, &se) || se.Section != "report body" {
		t.Errorf("err = %v, want report body SectionError", err)
	}
}

func TestReport_MissingTitleRejected(t *testing.T) {
	report := strings.Replace(validReport(), DefaultTitle, "Overlap Report", 1)
	err := Report(report, DefaultPhase2Rules())
	var se *SectionError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SectionError", err)
	}
	if se.Want != DefaultTitle {
		t.Errorf("want = %q", se.Want)
	}
	if !strings.Contains(se.Directive(), DefaultTitle) {
		t.Errorf("directive does not restate the title: %q", se.Directive())
	}
}

func TestReport_ConfiguredTitle(t *testing.T) {
	title := "Bit Lab: Overlap Report"
	report := strings.Replace(validReport(), DefaultTitle, title, 1)
	rules := DefaultPhase2Rules()
	rules.Title = title
	if err := Report(report, rules); err != nil {
		t.Errorf("configured title rejected: %v", err)
	}
}

func TestReport_MissingSectionRejected(t *testing.T) {
	for _, section := range RequiredSections {
		t.Run(section, func(t *testing.T) {
			report := strings.Replace(validReport(), section, "Miscellany", 1)
			err := Report(report, DefaultPhase2Rules())
			var se *SectionError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want SectionError", err)
			}
			if se.Want != section {
				t.Errorf("want = %q, expected %q", se.Want, section)
			}
		})
	}
}

func TestReport_AssumptionBounds(t *testing.T) {
	premise := "A classified ad sells horse quality hay."
	for _, tc := range []struct {
		n  int
		ok bool
	}{
		{5, false}, {6, true}, {8, true}, {10, true}, {11, false},
	} {
		t.Run(fmt.Sprint(tc.n), func(t *testing.T) {
			err := Report(buildReport(premise, assumptionLines(tc.n, dash)), DefaultPhase2Rules())
			if tc.ok {
				if err != nil {
					t.Errorf("%d bullets rejected: %v", tc.n, err)
				}
				return
			}
			var ae *AssumptionCountError
			if !errors.As(err, &ae) {
				t.Fatalf("err = %v, want AssumptionCountError", err)
			}
			if ae.Found != tc.n {
				t.Errorf("found = %d, want %d", ae.Found, tc.n)
			}
		})
	}
}

func TestCountAssumptions_MarkerAndWhitespaceVariants(t *testing.T) {
	premise := "A classified ad sells horse quality hay."
	markers := map[string]func(int) string{
		"dash":     dash,
		"bullet":   func(int) string { return "• " },
		"asterisk": func(int) string { return "* " },
		"numbered": func(i int) string { return fmt.Sprintf("%d. ", i+1) },
		"paren":    func(i int) string { return fmt.Sprintf("%d) ", i+1) },
		"indented": func(int) string { return "   -   " },
		"tabbed":   func(int) string { return "\t-\t" },
		"mixed": func(i int) string {
			return []string{"- ", "• ", "* ", "1. "}[i%4]
		},
	}
	for name, marker := range markers {
		t.Run(name, func(t *testing.T) {
			report := buildReport(premise, assumptionLines(7, marker))
			n, ok := CountAssumptions(report)
			if !ok || n != 7 {
				t.Errorf("CountAssumptions = %d, %v; want 7, true", n, ok)
			}
		})
	}
}

func TestCountAssumptions_IgnoresProseAndLaterSections(t *testing.T) {
	lines := append([]string{"These are the things everyone takes for granted:", ""}, assumptionLines(6, dash)...)
	lines = append(lines, "-not a bullet without a space")
	n, ok := CountAssumptions(buildReport("A classified ad sells horse quality hay.", lines))
	if !ok || n != 6 {
		t.Errorf("CountAssumptions = %d, %v; want 6, true", n, ok)
	}
}

func TestCountAssumptions_BulletsNamingLaterSections(t *testing.T) {
	lines := []string{
		"* Compression socks are sold next to the hay.",
		"* Outer field fencing keeps the horses honest.",
		"* Core Overlaps is not a phrase the feed store uses.",
		"- Compression Lines of credit are not offered on hay.",
	}
	lines = append(lines, assumptionLines(3, dash)...)
	report := buildReport("A classified ad sells horse quality hay to a buyer who wants proof.", lines)

	n, ok := CountAssumptions(report)
	if !ok || n != 7 {
		t.Fatalf("CountAssumptions = %d, %v; want 7, true", n, ok)
	}
	if err := Report(report, DefaultPhase2Rules()); err != nil {
		t.Errorf("Report: %v", err)
	}
}

func TestCountAssumptions_MarkdownHeadersEndSection(t *testing.T) {
	for _, header := range []string{"## Core Overlaps", "**Core Overlaps**", "  # Core Overlaps"} {
		report := "Surface Assumptions\n- one assumption\n- two assumption\n" + header + "\n- not an assumption\n"
		if n, ok := CountAssumptions(report); !ok || n != 2 {
			t.Errorf("%q: CountAssumptions = %d, %v; want 2, true", header, n, ok)
		}
	}
}

func TestCountAssumptions_MissingSection(t *testing.T) {
	if _, ok := CountAssumptions("no sections at all"); ok {
		t.Error("expected ok=false")
	}
}

func TestReport_AnchorRetention(t *testing.T) {
	rules := DefaultPhase2Rules().WithAnchor("horse quality hay")

	kept := buildReport("Someone is selling Horse  Quality\nHay by the bale.", assumptionLines(6, dash))
	if err := Report(kept, rules); err != nil {
		t.Errorf("case/whitespace variant rejected: %v", err)
	}

	drifted := buildReport("Someone is stuffing pillows with straw.", assumptionLines(6, dash))
	drifted = strings.Replace(drifted, "vintage wine", "horse quality hay", 1)
	err := Report(drifted, rules)
	var ae *AnchorDriftError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AnchorDriftError", err)
	}
	if !strings.Contains(ae.Directive(), "horse quality hay") {
		t.Errorf("directive = %q", ae.Directive())
	}
}

func TestReport_HedgeRejected(t *testing.T) {
	for _, hedge := range []string{"seems", "might", "kind of", "I guess", "Feels Like"} {
		t.Run(hedge, func(t *testing.T) {
			report := buildReport("The ad "+hedge+" sells horse quality hay.", assumptionLines(6, dash))
			err := Report(report, DefaultPhase2Rules())
			var he *HedgeLanguageError
			if !errors.As(err, &he) {
				t.Fatalf("err = %v, want HedgeLanguageError", err)
			}
			if he.Token != strings.ToLower(hedge) {
				t.Errorf("token = %q, want %q", he.Token, strings.ToLower(hedge))
			}
			if !strings.Contains(he.Sentence, "horse quality hay") {
				t.Errorf("sentence = %q", he.Sentence)
			}
		})
	}
}

func TestReport_HedgeWordBoundaries(t *testing.T) {
	report := buildReport("The mighty buyer inspects seamless bales of horse quality hay.", assumptionLines(6, dash))
	if err := Report(report, DefaultPhase2Rules()); err != nil {
		t.Errorf("non-hedge words rejected: %v", err)
	}
}

func TestReport_HedgeSplitAcrossWhitespace(t *testing.T) {
	report := buildReport("The ad is sort \t  of selling horse quality hay.", assumptionLines(6, dash))
	var he *HedgeLanguageError
	if err := Report(report, DefaultPhase2Rules()); !errors.As(err, &he) || he.Token != "sort of" {
		t.Errorf("err = %v, want sort of hedge", err)
	}
}

func TestReport_CustomHedges(t *testing.T) {
	rules := DefaultPhase2Rules()
	rules.Hedges = []string{"arguably"}
	report := buildReport("The ad is arguably selling horse quality hay.", assumptionLines(6, dash))
	err := Report(report, rules)
	var he *HedgeLanguageError
	if !errors.As(err, &he) {
		t.Fatalf("err = %v, want HedgeLanguageError", err)
	}
	if !strings.Contains(he.Directive(), "arguably") || strings.Contains(he.Directive(), "probably") {
		t.Errorf("directive should list only the configured denylist: %q", he.Directive())
	}
}

func TestReportText(t *testing.T) {
	text, ok := ReportText(reportJSON(t, "draft with no sections"))
	if !ok || text != "draft with no sections" {
		t.Errorf("ReportText = %q, %v", text, ok)
	}
	if _, ok := ReportText("garbage"); ok {
		t.Error("expected ok=false for non-JSON input")
	}
}

func TestFailureKinds(t *testing.T) {
	cases := []struct {
		err  Failure
		kind string
	}{
		{&MalformedOutputError{Phase: 1, Reason: "x"}, "malformed_output"},
		{&ShapeError{Bucket: "items", Index: -1, Found: 3, Min: 12, Max: 18}, "bucket_count"},
		{&ShapeError{Bucket: "items", Index: 2, Field: "overlap", Reason: "short"}, "item_shape"},
		{&DriftError{Guard: "g", Matched: 5, Total: 10, Limit: 0.35}, "drift"},
		{&SectionError{Section: "title", Reason: "missing"}, "section"},
		{&AssumptionCountError{Found: 3, Min: 6, Max: 10}, "assumption_count"},
		{&AnchorDriftError{Anchor: "hay"}, "anchor_drift"},
		{&HedgeLanguageError{Token: "seems"}, "hedge_language"},
	}
	for _, tc := range cases {
		if tc.err.Kind() != tc.kind {
			t.Errorf("%T kind = %q, want %q", tc.err, tc.err.Kind(), tc.kind)
		}
		if tc.err.Directive() == "" {
			t.Errorf("%T has empty directive", tc.err)
		}
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  ```json\n{\"a\":1}```  ", `{"a":1}`},
		{"```", ""},
	}
	for _, tc := range cases {
		if got := stripFences(tc.in); got != tc.want {
			t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func mustQuote(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
