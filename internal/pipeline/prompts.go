package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/overlapengine/internal/premise"
	"github.com/dshills/overlapengine/internal/schema"
	"github.com/dshills/overlapengine/internal/schema/validate"
	"github.com/dshills/overlapengine/internal/style"
)

const discoverySystemPrompt = `You are a mechanical overlap discovery engine. Return JSON only.
Produce only single-sentence overlaps. No jokes. No hedging language.

An overlap is one concrete sentence where the premise collides with a second
world: a profession, institution, ritual or market that normally has nothing
to do with it, applied with its full rule set as if it were simply true.

Rules:
- Stay inside the premise's real context. Do not turn the premise noun into a
  random prop or building material.
- Every sentence names a concrete object, action, person or place.
- Every sentence is certain. State the wrong rule set as fact.
- Label each overlap with the world it borrows from and its anchors: the
  concrete nouns tying it back to the premise.`

const authoringSystemPrompt = `You are writing a final Overlap Analysis Report. Return ONLY a JSON object with a single "report" key containing the complete formatted report as a plain text string (not structured JSON).

Re-author the supplied overlap statements in the binding style contract and lay
them out as a report. Do not add new ideas; sharpen and arrange what you are given.`

// coreOverlapBlock describes the per-item block layout inside Core Overlaps.
const coreOverlapBlock = `: write exactly one block per entry in "items", in the given order. Each block contains, in order:
   a. Label: a short name for the overlap
   b. Scene: a concrete scene translation showing the overlap happening to specific people in a specific place
   c. Escalation: a burst of at least three lines, each more committed to the wrong rule set than the last
   d. Brainstorm: a sub-section listing objects, activities, idioms and double meanings the two worlds share`

// discoveryUserPrompt asks for the three buckets within bounds.
func discoveryUserPrompt(p premise.Premise, b schema.Bounds) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PREMISE:\n%s\n\n", p.Text)
	sb.WriteString("Generate overlap statements as JSON with these EXACT counts:\n")
	for _, bucket := range schema.Buckets {
		r := b.For(bucket)
		fmt.Fprintf(&sb, "- %s: %d-%d (minimum %d)\n", bucket, r.Min, r.Max, r.Min)
	}
	sb.WriteString("\n\"outerField\" overlaps sit one hop outward from the premise. ")
	sb.WriteString("\"compression\" lines are the shortest, densest restatements.\n")
	fmt.Fprintf(&sb, "\nEach sentence must be EXACTLY one sentence and never use: %s.\n", strings.Join(validate.DefaultHedges, ", "))
	sb.WriteString(`
Return JSON only in this exact shape:
{
  "items": [{"world": "...", "anchors": ["...", "..."], "overlap": "..."}],
  "outerField": [{"world": "...", "anchors": ["..."], "seed": "...", "overlap": "..."}],
  "compression": [{"world": "...", "anchors": ["..."], "overlap": "..."}]
}`)
	return sb.String()
}

// authoringSystem adds the layout rules for the configured report shape.
func authoringSystem(rules validate.Phase2Rules) string {
	var sb strings.Builder
	sb.WriteString(authoringSystemPrompt)
	sb.WriteString("\n\nReport layout, in order:\n")
	fmt.Fprintf(&sb, "1. The exact title line: %s\n", rules.Title)
	for i, s := range rules.Sections {
		fmt.Fprintf(&sb, "%d. %s", i+2, s)
		switch s {
		case validate.SectionPremiseClarified:
			sb.WriteString(": restate the premise plainly")
			if rules.Anchor != "" {
				fmt.Fprintf(&sb, ", using the exact phrase %q", rules.Anchor)
			}
		case validate.SectionSurfaceAssumptions:
			fmt.Fprintf(&sb, ": %d-%d bullets, one per line, each starting with \"- \"", rules.Assumptions.Min, rules.Assumptions.Max)
		case validate.SectionCoreOverlaps:
			sb.WriteString(coreOverlapBlock)
		case validate.SectionOuterField:
			sb.WriteString(": one line per \"outerField\" entry, re-authored in the style")
		case validate.SectionCompression:
			sb.WriteString(": one line per \"compression\" entry, as short as the style allows")
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nNever use hedging language: %s.\n", strings.Join(rules.Hedges, ", "))
	return sb.String()
}

// authoringUserPrompt carries the premise, the style contract and the
// discovery payload.
func authoringUserPrompt(p premise.Premise, payload *schema.Phase1Payload, c style.Contract) (string, error) {
	contract, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding style contract: %w", err)
	}
	material, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding discovery payload: %w", err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "TOPIC:\n%s\n\n", p.Text)
	fmt.Fprintf(&sb, "STYLE CONTRACT (BINDING):\n%s\n\n", contract)
	fmt.Fprintf(&sb, "PHASE 1 RAW MATERIAL (DO NOT ADD NEW IDEAS):\n%s\n\n", material)
	sb.WriteString(`Return JSON only: { "report": "..." }`)
	return sb.String(), nil
}

// discoveryCorrection builds the retry instruction for a rejected
// discovery attempt. It is derived from the failure's Directive and never
// quotes model output.
func discoveryCorrection(err error, b schema.Bounds) string {
	return fmt.Sprintf("CRITICAL: %s You MUST generate the FULL required number of items. Minimum counts: items: %d, outerField: %d, compression: %d. Output valid JSON only with all three arrays populated.",
		failureDetail(err), b.Core.Min, b.Outer.Min, b.Compression.Min)
}

// authoringCorrection builds the retry instruction for a rejected report.
// The exact title, every section header and the bullet range are restated
// whatever the failure was.
func authoringCorrection(err error, rules validate.Phase2Rules) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CRITICAL: %s", failureDetail(err))
	sb.WriteString(` Output must be valid JSON with exactly one key: {"report": "..."}.`)
	fmt.Fprintf(&sb, " The report must contain the exact title %q", rules.Title)
	fmt.Fprintf(&sb, " and these section headers in order: %s.", strings.Join(rules.Sections, ", "))
	fmt.Fprintf(&sb, " %s must have EXACTLY %d-%d bullets.", validate.SectionSurfaceAssumptions, rules.Assumptions.Min, rules.Assumptions.Max)
	return sb.String()
}

func failureDetail(err error) string {
	var f validate.Failure
	if asFailure(err, &f) {
		return f.Directive()
	}
	return "Your previous response failed validation."
}
