package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/overlapengine/internal/schema"
)

// DefaultDriftLimit is the share of matching items above which a guard fails.
const DefaultDriftLimit = 0.35

// substitutionVerbs introduce the "premise noun used as a random object"
// derailment, e.g. "stuffing a pillow with hay".
const substitutionVerbs = `using|stuffing|building|fueling|insulating|painting|making|trying to`

// DriftGuard detects a semantic derailment across Phase 1 items. A guard
// fails when more than Limit of the inspected items match.
type DriftGuard struct {
	Name        string
	Match       func(text string) bool
	Limit       float64
	Instruction string
	// Buckets lists the inspected buckets; empty means core and outer field.
	Buckets []schema.Bucket
}

// RegexGuard builds a guard from a regular expression matched
// case-insensitively against each item's sentence.
func RegexGuard(name, pattern, instruction string, limit float64) (DriftGuard, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return DriftGuard{}, fmt.Errorf("drift guard %q: %w", name, err)
	}
	return DriftGuard{
		Name:        name,
		Match:       re.MatchString,
		Limit:       limit,
		Instruction: instruction,
	}, nil
}

// ObjectSubstitutionGuard returns the guard that rejects payloads where the
// premise noun is mostly treated as a literal prop instead of staying in the
// premise's real context. It returns false when noun is empty.
func ObjectSubstitutionGuard(noun string, limit float64) (DriftGuard, bool) {
	noun = strings.TrimSpace(strings.ToLower(noun))
	if noun == "" {
		return DriftGuard{}, false
	}
	re := regexp.MustCompile(`(?i)\b(` + substitutionVerbs + `)\b.*\b` + regexp.QuoteMeta(noun) + `\b`)
	return DriftGuard{
		Name:        "object-substitution:" + noun,
		Match:       re.MatchString,
		Limit:       limit,
		Instruction: fmt.Sprintf("Stop using %q as a random object or material. Keep every overlap in the premise's real context (selling, buying, using and talking about it as the premise intends).", noun),
	}, true
}

// check applies the guard to p.
func (g DriftGuard) check(p *schema.Phase1Payload) error {
	if g.Match == nil {
		return nil
	}
	buckets := g.Buckets
	if len(buckets) == 0 {
		buckets = []schema.Bucket{schema.BucketCore, schema.BucketOuter}
	}

	matched, total := 0, 0
	for _, b := range buckets {
		for _, it := range p.Bucket(b) {
			total++
			if g.Match(it.Text) {
				matched++
			}
		}
	}
	if total == 0 {
		return nil
	}
	if float64(matched)/float64(total) > g.Limit {
		return &DriftError{
			Guard:       g.Name,
			Matched:     matched,
			Total:       total,
			Limit:       g.Limit,
			Instruction: g.Instruction,
		}
	}
	return nil
}
