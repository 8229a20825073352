// Package revision describes how an accepted report differs from the
// rejected draft that preceded it, as diff-match-patch patch text.
package revision

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Revision is the change from a rejected draft to the accepted report.
type Revision struct {
	Patch    string // diff-match-patch text; empty when nothing changed
	Inserted int    // runes added
	Deleted  int    // runes removed
}

// Empty reports whether the revision carries no change.
func (r Revision) Empty() bool { return r.Patch == "" }

// Summary is a one-line description for logs.
func (r Revision) Summary() string {
	return fmt.Sprintf("+%d/-%d runes", r.Inserted, r.Deleted)
}

// Between returns the revision turning draft into final. Both texts are
// normalized first so line-ending and trailing-space noise is ignored. An
// empty draft yields an empty revision.
func Between(draft, final string) Revision {
	if strings.TrimSpace(draft) == "" {
		return Revision{}
	}
	before, after := normalize(draft), normalize(final)
	if before == after {
		return Revision{}
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var rev Revision
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			rev.Inserted += len([]rune(d.Text))
		case diffmatchpatch.DiffDelete:
			rev.Deleted += len([]rune(d.Text))
		}
	}
	rev.Patch = dmp.PatchToText(dmp.PatchMake(before, diffs))
	return rev
}

// Apply applies patch text produced by Between to draft. It fails when any
// hunk cannot be placed.
func Apply(draft, patch string) (string, error) {
	if patch == "" {
		return normalize(draft), nil
	}
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return "", fmt.Errorf("parsing revision patch: %w", err)
	}
	out, applied := dmp.PatchApply(patches, normalize(draft))
	for i, ok := range applied {
		if !ok {
			return "", fmt.Errorf("revision hunk %d did not apply", i+1)
		}
	}
	return out, nil
}

// normalize trims trailing whitespace from each line and converts CRLF to LF.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
