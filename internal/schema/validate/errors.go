package validate

import (
	"fmt"
	"strings"

	"github.com/dshills/overlapengine/internal/schema"
)

// Failure is implemented by every validation error. Directive returns a
// corrective instruction for the retry prompt; it never quotes model output.
type Failure interface {
	error
	Kind() string
	Directive() string
}

// MalformedOutputError reports an empty or unparseable model response.
type MalformedOutputError struct {
	Phase  int
	Reason string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("phase %d: malformed output: %s: %v", e.Phase, e.Reason, e.Err)
	}
	return fmt.Sprintf("phase %d: malformed output: %s", e.Phase, e.Reason)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

func (e *MalformedOutputError) Kind() string { return "malformed_output" }

func (e *MalformedOutputError) Directive() string {
	if e.Phase == 2 {
		return `Your previous response was not usable: ` + e.Reason + `. Return exactly one JSON object of the form {"report": "..."} with no prose and no markdown fences.`
	}
	return `Your previous response was not usable: ` + e.Reason + `. Return exactly one JSON object with the arrays "items", "outerField" and "compression", with no prose and no markdown fences.`
}

// ShapeError reports a Phase 1 structural violation. Index is -1 when the
// violation concerns the bucket as a whole rather than one item.
type ShapeError struct {
	Bucket schema.Bucket
	Index  int
	Field  string
	Reason string
	Found  int
	Min    int
	Max    int
}

func (e *ShapeError) Error() string {
	switch {
	case e.Bucket == "":
		return "phase 1: " + e.Reason
	case e.Index < 0 && e.Reason != "":
		return fmt.Sprintf("phase 1 %q: %s", string(e.Bucket), e.Reason)
	case e.Index < 0:
		return fmt.Sprintf("phase 1 %q has %d items; expected %d-%d", string(e.Bucket), e.Found, e.Min, e.Max)
	default:
		return fmt.Sprintf("phase 1 %s[%d].%s: %s", string(e.Bucket), e.Index, e.Field, e.Reason)
	}
}

func (e *ShapeError) Kind() string {
	if e.Index < 0 && e.Reason == "" {
		return "bucket_count"
	}
	return "item_shape"
}

func (e *ShapeError) Directive() string {
	switch {
	case e.Bucket == "":
		return "Your previous response was not a JSON object with the three required arrays. Return one object containing \"items\", \"outerField\" and \"compression\"."
	case e.Index < 0 && e.Reason != "":
		return fmt.Sprintf("Your previous response was missing a usable %q array. Include all three arrays and populate each one.", string(e.Bucket))
	case e.Index < 0:
		return fmt.Sprintf("Your previous response had %d entries in %q. Return between %d and %d entries in %q.", e.Found, string(e.Bucket), e.Min, e.Max, string(e.Bucket))
	default:
		return fmt.Sprintf("An entry in %q had an invalid %q field (%s). Every entry needs a world label, at least one concrete anchor, and exactly one complete sentence.", string(e.Bucket), e.Field, e.Reason)
	}
}

// DriftError reports that too many overlap statements matched a derailment
// guard.
type DriftError struct {
	Guard       string
	Matched     int
	Total       int
	Limit       float64
	Instruction string
}

// Fraction is the share of inspected items that matched the guard.
func (e *DriftError) Fraction() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Matched) / float64(e.Total)
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("phase 1 drifted (%s): %d/%d items matched, limit %.0f%%", e.Guard, e.Matched, e.Total, e.Limit*100)
}

func (e *DriftError) Kind() string { return "drift" }

func (e *DriftError) Directive() string {
	msg := fmt.Sprintf("Your previous overlaps drifted away from the premise (%d of %d matched the %q pattern).", e.Matched, e.Total, e.Guard)
	if e.Instruction != "" {
		return msg + " " + e.Instruction
	}
	return msg + " Regenerate every overlap inside the intended real-world context of the premise."
}

// SectionError reports a missing title, a missing section header, or a
// report body shorter than the minimum length.
type SectionError struct {
	Section string
	Reason  string
	// Want carries the exact literal the report must contain, when one applies.
	Want string
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("phase 2: %s: %s", e.Section, e.Reason)
}

func (e *SectionError) Kind() string { return "section" }

func (e *SectionError) Directive() string {
	if e.Want != "" {
		return fmt.Sprintf("Your previous report was missing the %s. The report must contain this exact text: %q.", e.Section, e.Want)
	}
	return fmt.Sprintf("Your previous report failed a structural check (%s: %s). Write the complete report with every required section.", e.Section, e.Reason)
}

// AssumptionCountError reports a Surface Assumptions bullet count outside
// bounds.
type AssumptionCountError struct {
	Found int
	Min   int
	Max   int
}

func (e *AssumptionCountError) Error() string {
	return fmt.Sprintf("phase 2: Surface Assumptions must contain %d-%d bullets; got %d", e.Min, e.Max, e.Found)
}

func (e *AssumptionCountError) Kind() string { return "assumption_count" }

func (e *AssumptionCountError) Directive() string {
	return fmt.Sprintf("Your previous Surface Assumptions section had %d bullets. It must have between %d and %d bullets, one per line, each starting with \"- \".", e.Found, e.Min, e.Max)
}

// AnchorDriftError reports that the premise anchor was not retained in the
// Premise Clarified section.
type AnchorDriftError struct {
	Anchor string
}

func (e *AnchorDriftError) Error() string {
	return fmt.Sprintf("phase 2: Premise Clarified drifted; report must retain the premise anchor %q", e.Anchor)
}

func (e *AnchorDriftError) Kind() string { return "anchor_drift" }

func (e *AnchorDriftError) Directive() string {
	return fmt.Sprintf("Your previous Premise Clarified section lost the premise. Restate it using the exact phrase %q.", e.Anchor)
}

// HedgeLanguageError reports a denylisted hedge token in the report.
type HedgeLanguageError struct {
	Token    string
	Sentence string
	Denylist []string
}

func (e *HedgeLanguageError) Error() string {
	if e.Sentence == "" {
		return fmt.Sprintf("phase 2: report contains hedging language %q", e.Token)
	}
	return fmt.Sprintf("phase 2: report contains hedging language %q in %q", e.Token, e.Sentence)
}

func (e *HedgeLanguageError) Kind() string { return "hedge_language" }

func (e *HedgeLanguageError) Directive() string {
	deny := e.Denylist
	if len(deny) == 0 {
		deny = DefaultHedges
	}
	return fmt.Sprintf("Your previous report used the hedge %q. Rewrite every sentence with declarative certainty and never use: %s.", e.Token, strings.Join(deny, ", "))
}
