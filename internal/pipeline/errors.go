package pipeline

import (
	"errors"
	"fmt"

	"github.com/dshills/overlapengine/internal/schema/validate"
)

// GenerationError is the terminal failure of a phase. Err is the last
// validation failure, the backend error, or the context error.
type GenerationError struct {
	Phase    int
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("phase %d failed after %d attempt(s): %s", e.Phase, e.Attempts, e.Err.Error())
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Kind returns the validation failure kind, "backend" for transport errors,
// or "canceled" when the context ended the phase.
func (e *GenerationError) Kind() string {
	var f validate.Failure
	switch {
	case errors.As(e.Err, &f):
		return f.Kind()
	case isContextErr(e.Err):
		return "canceled"
	default:
		return "backend"
	}
}

// BackendError wraps a generation call that failed before producing output.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string { return "generation backend: " + e.Err.Error() }

func (e *BackendError) Unwrap() error { return e.Err }
