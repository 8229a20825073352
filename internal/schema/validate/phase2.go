package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dshills/overlapengine/internal/schema"
)

// Report section headers, in layout order.
const (
	SectionPremiseClarified   = "Premise Clarified"
	SectionSurfaceAssumptions = "Surface Assumptions"
	SectionCoreOverlaps       = "Core Overlaps"
	SectionOuterField         = "Outer Field Overlaps"
	SectionCompression        = "Compression Lines"
)

// DefaultTitle is the exact title literal every report must contain.
const DefaultTitle = "Overlap Comedy Engine: Overlap Analysis Report"

// DefaultMinReportLength is the minimum report length in characters.
const DefaultMinReportLength = 100

// RequiredSections lists the section headers every report must contain.
var RequiredSections = []string{
	SectionPremiseClarified,
	SectionSurfaceAssumptions,
	SectionCoreOverlaps,
	SectionOuterField,
	SectionCompression,
}

// DefaultHedges is the hedging-language denylist.
var DefaultHedges = []string{
	"feels like", "looks like", "seems", "might", "probably",
	"kind of", "sort of", "almost", "basically",
	"I guess", "I imagine", "I picture",
}

// DefaultAssumptions bounds the Surface Assumptions bullet count.
var DefaultAssumptions = schema.Range{Min: 6, Max: 10}

var (
	// bulletPattern matches a hyphen, bullet glyph, asterisk or numbered-list
	// marker at line start.
	bulletPattern = regexp.MustCompile(`^\s*(?:[-•*]|\d+[.)])\s+\S`)
	// assumptionsEnd marks the first default header that follows Surface
	// Assumptions.
	assumptionsEnd = headerLine(RequiredSections)
	sentenceBreak  = regexp.MustCompile(`[.!?]+\s+|\n+`)
)

// headerLine matches a line that opens with one of the section names other
// than Surface Assumptions, optionally behind markdown heading marks or bold
// markers. A single-asterisk bullet never matches.
func headerLine(sections []string) *regexp.Regexp {
	names := make([]string, 0, len(sections))
	for _, s := range sections {
		if s != SectionSurfaceAssumptions {
			names = append(names, regexp.QuoteMeta(s))
		}
	}
	if len(names) == 0 {
		return regexp.MustCompile(`[^\s\S]`)
	}
	return regexp.MustCompile(`(?m)^[ \t]*(?:#+[ \t]*)?(?:\*\*[ \t]*)?(?:` + strings.Join(names, "|") + `)\b`)
}

// Phase2Rules configures the report validator. Zero values fall back to
// the package defaults, except Anchor: an empty anchor skips that check.
type Phase2Rules struct {
	Title       string
	MinLength   int
	Sections    []string
	Assumptions schema.Range
	Hedges      []string
	Anchor      string
}

// DefaultPhase2Rules returns the report rules with no anchor.
func DefaultPhase2Rules() Phase2Rules {
	return Phase2Rules{
		Title:       DefaultTitle,
		MinLength:   DefaultMinReportLength,
		Sections:    RequiredSections,
		Assumptions: DefaultAssumptions,
		Hedges:      DefaultHedges,
	}
}

// WithAnchor returns a copy of r that requires anchor in Premise Clarified.
func (r Phase2Rules) WithAnchor(anchor string) Phase2Rules {
	r.Anchor = anchor
	return r
}

func (r Phase2Rules) withDefaults() Phase2Rules {
	d := DefaultPhase2Rules()
	if r.Title == "" {
		r.Title = d.Title
	}
	if r.MinLength <= 0 {
		r.MinLength = d.MinLength
	}
	if len(r.Sections) == 0 {
		r.Sections = d.Sections
	}
	if r.Assumptions == (schema.Range{}) {
		r.Assumptions = d.Assumptions
	}
	if len(r.Hedges) == 0 {
		r.Hedges = d.Hedges
	}
	return r
}

// ParsePhase2 decodes raw model text and validates the report it carries.
func ParsePhase2(raw string, rules Phase2Rules) (string, error) {
	v, err := decode(raw, 2)
	if err != nil {
		return "", err
	}
	return Phase2(v, rules)
}

// Phase2 validates an already-parsed JSON value holding {"report": "..."}
// and returns the report text.
func Phase2(v any, rules Phase2Rules) (string, error) {
	report, err := reportField(v)
	if err != nil {
		return "", err
	}
	return report, Report(report, rules)
}

// ReportText extracts the report string from raw model text without
// validating it. It is used to keep rejected drafts for diagnostics.
func ReportText(raw string) (string, bool) {
	v, err := decode(raw, 2)
	if err != nil {
		return "", false
	}
	report, err := reportField(v)
	return report, err == nil
}

func reportField(v any) (string, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", &MalformedOutputError{Phase: 2, Reason: fmt.Sprintf("response must be a JSON object, got %s", jsonType(v))}
	}
	raw, ok := obj["report"]
	if !ok {
		return "", &MalformedOutputError{Phase: 2, Reason: `missing required "report" field`}
	}
	report, ok := raw.(string)
	if !ok {
		return "", &MalformedOutputError{Phase: 2, Reason: fmt.Sprintf(`"report" must be a string, got %s`, jsonType(raw))}
	}
	if strings.TrimSpace(report) == "" {
		return "", &MalformedOutputError{Phase: 2, Reason: `"report" is empty`}
	}
	return report, nil
}

// Report runs every structural and stylistic check against report text:
// length, title, section headers, assumption count, anchor retention and
// hedge absence, in that order.
func Report(report string, rules Phase2Rules) error {
	rules = rules.withDefaults()

	if n := utf8.RuneCountInString(report); n < rules.MinLength {
		return &SectionError{Section: "report body", Reason: fmt.Sprintf("has %d characters; need at least %d", n, rules.MinLength)}
	}
	if !strings.Contains(report, rules.Title) {
		return &SectionError{Section: "title", Reason: fmt.Sprintf("missing exact title %q", rules.Title), Want: rules.Title}
	}
	for _, s := range rules.Sections {
		if !strings.Contains(report, s) {
			return &SectionError{Section: s + " section", Reason: fmt.Sprintf("missing %q header", s), Want: s}
		}
	}

	count, ok := countAssumptions(report, headerLine(rules.Sections))
	if !ok {
		return &SectionError{Section: SectionSurfaceAssumptions + " section", Reason: "could not locate section", Want: SectionSurfaceAssumptions}
	}
	if !rules.Assumptions.Contains(count) {
		return &AssumptionCountError{Found: count, Min: rules.Assumptions.Min, Max: rules.Assumptions.Max}
	}

	if rules.Anchor != "" && !anchorRetained(report, rules.Anchor) {
		return &AnchorDriftError{Anchor: rules.Anchor}
	}

	if tok, sentence, found := findHedge(report, rules.Hedges); found {
		return &HedgeLanguageError{Token: tok, Sentence: sentence, Denylist: rules.Hedges}
	}
	return nil
}

// CountAssumptions counts bullet lines in the Surface Assumptions section.
// It returns false when the section header is absent.
func CountAssumptions(report string) (int, bool) {
	return countAssumptions(report, assumptionsEnd)
}

func countAssumptions(report string, end *regexp.Regexp) (int, bool) {
	body, ok := sectionBody(report, SectionSurfaceAssumptions, end)
	if !ok {
		return 0, false
	}
	n := 0
	for _, line := range strings.Split(body, "\n") {
		if bulletPattern.MatchString(line) {
			n++
		}
	}
	return n, true
}

// sectionBody returns the text after the first header occurrence up to the
// first end match, or to the end of the report.
func sectionBody(report, header string, end *regexp.Regexp) (string, bool) {
	idx := strings.Index(report, header)
	if idx < 0 {
		return "", false
	}
	rest := report[idx+len(header):]
	if loc := end.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	return rest, true
}

// premiseEnd marks the end of the Premise Clarified section.
var premiseEnd = regexp.MustCompile(`(?i)surface assumptions`)

// anchorRetained reports whether anchor appears in the Premise Clarified
// section, ignoring case and whitespace differences.
func anchorRetained(report, anchor string) bool {
	body, ok := sectionBody(report, SectionPremiseClarified, premiseEnd)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(collapse(body)), strings.ToLower(collapse(anchor)))
}

// findHedge returns the first denylisted token in report, matched on word
// boundaries and case-insensitively, with the sentence that contains it.
func findHedge(report string, hedges []string) (string, string, bool) {
	if len(hedges) == 0 {
		return "", "", false
	}
	alts := make([]string, len(hedges))
	for i, h := range hedges {
		alts[i] = strings.Join(strings.Fields(regexp.QuoteMeta(h)), `\s+`)
	}
	re := regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)

	for _, sentence := range sentenceBreak.Split(report, -1) {
		if m := re.FindString(sentence); m != "" {
			return strings.ToLower(collapse(m)), truncate(collapse(sentence), 120), true
		}
	}
	return "", "", false
}

// truncate limits a string to maxLen runes, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
