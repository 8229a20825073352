// Package premise models the user-supplied comedic premise: loading,
// normalization, request validation and anchor derivation.
package premise

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Length bounds on the normalized premise, in characters.
const (
	MinLength = 12
	MaxLength = 2000
)

// maxInputBytes caps premise input read from files or stdin.
const maxInputBytes = 64 * 1024

var validate = validator.New()

// Premise is a normalized, validated premise ready for generation.
type Premise struct {
	Text   string // whitespace-collapsed
	Hash   string // "sha256:<hex>" of Text
	Anchor string // lower-cased phrase the report must retain; may be empty
}

// Request is the generation request accepted by the CLI and HTTP layer.
type Request struct {
	Premise string `json:"premise" validate:"required,min=12,max=2000"`
	StyleID string `json:"styleId" validate:"required,min=2,max=64"`
	// Anchor overrides the derived anchor phrase.
	Anchor string `json:"anchor,omitempty" validate:"omitempty,max=200"`
	// Debug asks for the intermediate discovery payload in the response.
	Debug bool `json:"debug,omitempty"`
}

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Normalized returns a copy of r with every text field whitespace-collapsed.
func (r Request) Normalized() Request {
	r.Premise = Normalize(r.Premise)
	r.StyleID = strings.TrimSpace(r.StyleID)
	r.Anchor = Normalize(r.Anchor)
	return r
}

// Validate checks the normalized request against the field constraints.
func (r Request) Validate() error {
	n := r.Normalized()
	if err := validate.Struct(&n); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return fmt.Errorf("validating request: %w", err)
	}
	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := fe.Field()
	switch field {
	case "Premise":
		field = "premise"
	case "StyleID":
		field = "styleId"
	case "Anchor":
		field = "anchor"
	}
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Reason: "is required"}
	case "min":
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at least %s characters", fe.Param())}
	case "max":
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %s characters", fe.Param())}
	}
	return &ValidationError{Field: field, Reason: fmt.Sprintf("failed %q check", fe.Tag())}
}

// FromRequest validates r and builds its Premise.
func FromRequest(r Request) (Premise, error) {
	if err := r.Validate(); err != nil {
		return Premise{}, err
	}
	n := r.Normalized()
	return build(n.Premise, n.Anchor), nil
}

// New builds a Premise from raw text. A non-empty anchor wins over the
// derived one.
func New(text, anchor string) (Premise, error) {
	text = Normalize(text)
	if err := validate.Var(text, fmt.Sprintf("required,min=%d,max=%d", MinLength, MaxLength)); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := fieldError(verrs[0])
			e.Field = "premise"
			return Premise{}, e
		}
		return Premise{}, fmt.Errorf("validating premise: %w", err)
	}
	return build(text, Normalize(anchor)), nil
}

func build(text, anchor string) Premise {
	anchor = strings.ToLower(anchor)
	if anchor == "" {
		anchor = DeriveAnchor(text)
	}
	return Premise{Text: text, Hash: Hash(text), Anchor: anchor}
}

// Normalize trims s and folds every whitespace run, newlines included, into
// a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Hash returns the "sha256:<hex>" digest of text.
func Hash(text string) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256([]byte(text)))
}

// Load resolves the premise text from exactly one source: a literal
// argument, a file path ("-" for stdin).
func Load(arg, path string, stdin io.Reader) (string, error) {
	switch {
	case arg != "" && path != "":
		return "", fmt.Errorf("provide the premise as an argument or with --file, not both")
	case arg != "":
		return arg, nil
	case path == "-":
		return readAll(stdin, "stdin")
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("reading premise file: %w", err)
		}
		defer f.Close()
		return readAll(f, path)
	default:
		return "", fmt.Errorf("no premise given: pass it as an argument or with --file")
	}
}

func readAll(r io.Reader, name string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("reading premise from %s: no input", name)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxInputBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading premise from %s: %w", name, err)
	}
	if len(data) > maxInputBytes {
		return "", fmt.Errorf("premise from %s exceeds %d bytes", name, maxInputBytes)
	}
	return string(data), nil
}
