package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dshills/overlapengine/internal/schema"
)

// DefaultMinSentence is the minimum length, in characters, of an overlap sentence.
const DefaultMinSentence = 8

// textKeys are the item fields that may carry the overlap sentence, in
// priority order.
var textKeys = []string{"overlap", "line", "premise"}

// sentenceJoin matches a terminator followed by the capitalised start of
// another sentence.
var sentenceJoin = regexp.MustCompile(`[.!?]+["')\]]*\s+["'(]?\p{Lu}`)

// abbreviations end in a period without ending the sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "jr": true, "sr": true,
	"mt": true, "no": true, "vs": true, "etc": true, "prof": true, "gen": true, "rev": true,
}

// Phase1Rules configures the discovery validator. A zero MinSentence falls
// back to DefaultMinSentence.
type Phase1Rules struct {
	Bounds      schema.Bounds
	MinSentence int
	Guards      []DriftGuard
}

// DefaultPhase1Rules returns the rules with default bucket bounds and no
// drift guards.
func DefaultPhase1Rules() Phase1Rules {
	return Phase1Rules{Bounds: schema.DefaultBounds(), MinSentence: DefaultMinSentence}
}

// ParsePhase1 decodes raw model text and validates it as a discovery payload.
func ParsePhase1(raw string, rules Phase1Rules) (*schema.Phase1Payload, error) {
	v, err := decode(raw, 1)
	if err != nil {
		return nil, err
	}
	return Phase1(v, rules)
}

// Phase1 validates an already-parsed JSON value as a discovery payload.
func Phase1(v any, rules Phase1Rules) (*schema.Phase1Payload, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ShapeError{Index: -1, Reason: fmt.Sprintf("payload must be a JSON object, got %s", jsonType(v))}
	}
	if rules.MinSentence <= 0 {
		rules.MinSentence = DefaultMinSentence
	}

	var p schema.Phase1Payload
	for _, b := range schema.Buckets {
		items, err := parseBucket(obj, b, rules)
		if err != nil {
			return nil, err
		}
		switch b {
		case schema.BucketCore:
			p.Items = items
		case schema.BucketOuter:
			p.OuterField = items
		case schema.BucketCompression:
			p.Compression = items
		}
	}

	for _, g := range rules.Guards {
		if err := g.check(&p); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func parseBucket(obj map[string]any, b schema.Bucket, rules Phase1Rules) ([]schema.Item, error) {
	raw, ok := obj[string(b)]
	if !ok && b.Alias() != "" {
		raw, ok = obj[b.Alias()]
	}
	if !ok {
		return nil, &ShapeError{Bucket: b, Index: -1, Reason: "array is missing"}
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, &ShapeError{Bucket: b, Index: -1, Reason: fmt.Sprintf("must be an array, got %s", jsonType(raw))}
	}

	items := make([]schema.Item, 0, len(arr))
	for i, el := range arr {
		it, err := parseItem(el, b, i, rules.MinSentence)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	bound := rules.Bounds.For(b)
	if !bound.Contains(len(items)) {
		return nil, &ShapeError{Bucket: b, Index: -1, Found: len(items), Min: bound.Min, Max: bound.Max}
	}
	return items, nil
}

func parseItem(el any, b schema.Bucket, idx, minSentence int) (schema.Item, error) {
	fail := func(field, reason string) error {
		return &ShapeError{Bucket: b, Index: idx, Field: field, Reason: reason}
	}

	m, ok := el.(map[string]any)
	if !ok {
		return schema.Item{}, fail("item", fmt.Sprintf("must be an object, got %s", jsonType(el)))
	}

	world, err := optionalString(m, "world")
	if err != nil {
		return schema.Item{}, fail("world", err.Error())
	}
	if world == "" {
		world = schema.UnspecifiedWorld
	}

	anchors, field, err := parseAnchors(m)
	if err != nil {
		return schema.Item{}, fail(field, err.Error())
	}

	seed, err := optionalString(m, "seed")
	if err != nil {
		return schema.Item{}, fail("seed", err.Error())
	}

	text, field, err := itemText(m)
	if err != nil {
		return schema.Item{}, fail(field, err.Error())
	}
	if n := utf8.RuneCountInString(text); n < minSentence {
		return schema.Item{}, fail(field, fmt.Sprintf("sentence too short (%d chars; need at least %d)", n, minSentence))
	}
	if multipleSentences(text) {
		return schema.Item{}, fail(field, "must be exactly one sentence")
	}

	return schema.Item{World: world, Anchors: anchors, Seed: seed, Text: text}, nil
}

// parseAnchors reads "anchors" or the paired "a"/"b" fields. It returns the
// offending field name alongside any error.
func parseAnchors(m map[string]any) ([]string, string, error) {
	if raw, ok := m["anchors"]; ok {
		arr, ok := raw.([]any)
		if !ok {
			return nil, "anchors", fmt.Errorf("must be an array of strings, got %s", jsonType(raw))
		}
		out := make([]string, 0, len(arr))
		for _, a := range arr {
			s, ok := a.(string)
			if !ok {
				return nil, "anchors", fmt.Errorf("anchor must be a string, got %s", jsonType(a))
			}
			if s = collapse(s); s == "" {
				return nil, "anchors", fmt.Errorf("anchor is empty")
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil, "anchors", fmt.Errorf("at least one anchor is required")
		}
		return out, "", nil
	}

	var out []string
	for _, key := range []string{"a", "b"} {
		s, err := optionalString(m, key)
		if err != nil {
			return nil, key, err
		}
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, "anchors", fmt.Errorf("at least one anchor is required")
	}
	return out, "", nil
}

func itemText(m map[string]any) (string, string, error) {
	for _, key := range textKeys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return "", key, fmt.Errorf("must be a string, got %s", jsonType(raw))
		}
		if s = collapse(s); s == "" {
			return "", key, fmt.Errorf("sentence is empty")
		}
		return s, key, nil
	}
	return "", textKeys[0], fmt.Errorf("sentence is missing (expected one of %s)", strings.Join(textKeys, ", "))
}

// multipleSentences reports whether text continues past a sentence
// terminator. A period after an abbreviation or a dotted initialism such as
// "U.S." does not count.
func multipleSentences(text string) bool {
	for _, loc := range sentenceJoin.FindAllStringIndex(text, -1) {
		if text[loc[0]] != '.' {
			return true
		}
		word := text[:loc[0]]
		if i := strings.LastIndexAny(word, " \t(\"'"); i >= 0 {
			word = word[i+1:]
		}
		if strings.Contains(word, ".") || utf8.RuneCountInString(word) == 1 || abbreviations[strings.ToLower(word)] {
			continue
		}
		return true
	}
	return false
}

// optionalString returns the collapsed string at key, "" when absent or null.
func optionalString(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("must be a string, got %s", jsonType(raw))
	}
	return collapse(s), nil
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
