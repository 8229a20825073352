// Package validate enforces the structural contracts on model output.
//
// Model responses are untyped text. Each phase's validator parses that text
// into a generic JSON value and walks it, returning a typed Failure that
// names the exact predicate that did not hold so the caller can build a
// targeted corrective retry.
package validate

import (
	"encoding/json"
	"strings"
)

// decode strips markdown fences and unmarshals raw into a generic value.
func decode(raw string, phase int) (any, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, &MalformedOutputError{Phase: phase, Reason: "empty response"}
	}

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, &MalformedOutputError{Phase: phase, Reason: "response is not valid JSON", Err: err}
	}
	return v, nil
}

// stripFences removes leading/trailing markdown code fences (```json ... ``` or ``` ... ```).
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx < 0 {
			return ""
		}
		s = s[idx+1:]
	}
	if strings.HasSuffix(s, "```") {
		if idx := strings.LastIndex(s, "\n```"); idx >= 0 {
			s = s[:idx]
		} else {
			s = strings.TrimSuffix(s, "```")
		}
	}
	return strings.TrimSpace(s)
}

// collapse trims s and folds every whitespace run into a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
