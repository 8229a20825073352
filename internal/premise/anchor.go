package premise

import (
	"strings"
	"unicode"
)

// MaxAnchorWords bounds the derived anchor phrase.
const MaxAnchorWords = 4

// functionWords end a derived anchor. Leading function words are skipped.
var functionWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"for": true, "of": true, "to": true, "in": true, "on": true, "at": true,
	"by": true, "with": true, "from": true, "into": true, "as": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"that": true, "this": true, "who": true, "which": true, "when": true,
	"while": true, "if": true, "so": true, "my": true, "your": true,
}

// DeriveAnchor returns the leading content phrase of text, lower-cased:
// words up to the first function word or punctuation mark, at most
// MaxAnchorWords. "Horse quality hay for sale" yields "horse quality hay".
func DeriveAnchor(text string) string {
	var words []string
	for _, raw := range strings.Fields(text) {
		w := strings.ToLower(strings.TrimLeftFunc(raw, isQuote))
		core := strings.TrimRightFunc(w, unicode.IsPunct)
		if core == "" {
			if len(words) > 0 {
				break
			}
			continue
		}
		if functionWords[core] {
			if len(words) > 0 {
				break
			}
			continue
		}
		words = append(words, core)
		if len(words) == MaxAnchorWords || core != w {
			break
		}
	}
	return strings.Join(words, " ")
}

// HeadNoun returns the last word of anchor, or "".
func HeadNoun(anchor string) string {
	f := strings.Fields(anchor)
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}

func isQuote(r rune) bool {
	return r == '"' || r == '\'' || r == '“' || r == '‘' || r == '(' || r == '['
}
