package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/overlapengine/internal/llm"
	"github.com/dshills/overlapengine/internal/observability"
	"github.com/dshills/overlapengine/internal/redact"
	"github.com/dshills/overlapengine/internal/schema/validate"
)

// previewRunes bounds raw model output in debug logs.
const previewRunes = 200

// runner executes one phase: a primary call and at most one corrective
// retry. It holds no per-run state.
type runner struct {
	phase    int
	provider llm.Provider
	params   PhaseParams
	log      *zap.Logger
	metrics  *observability.Metrics
}

// attempt is the outcome of a phase run.
type attempt struct {
	n        int      // calls made
	rejected []string // raw outputs that failed validation, in order
}

// run calls the backend with req until accept returns nil or the attempt
// budget is spent. After a rejected attempt, correct turns the failure into
// the retry directive. Backend errors end the phase without a retry.
func (r *runner) run(ctx context.Context, req llm.Request, accept func(raw string) error, correct func(error) string) (attempt, error) {
	baseDirectives := req.Directives
	var (
		out     attempt
		lastErr error
	)
	for out.n < maxAttempts {
		if err := ctx.Err(); err != nil {
			return out, &GenerationError{Phase: r.phase, Attempts: out.n, Err: err}
		}
		if lastErr != nil {
			req.Directives = append(append([]string(nil), baseDirectives...), correct(lastErr))
		}
		out.n++

		log := r.log.With(zap.Int("phase", r.phase), zap.Int("attempt", out.n), zap.Float64("temperature", req.Temperature))
		log.Debug("generation call", zap.String("model", r.params.Model))

		start := time.Now()
		resp, err := r.provider.Complete(ctx, &req)
		r.metrics.RecordCall(r.phase, time.Since(start), err)
		if err != nil {
			if isContextErr(err) && ctx.Err() != nil {
				return out, &GenerationError{Phase: r.phase, Attempts: out.n, Err: ctx.Err()}
			}
			log.Warn("generation call failed", zap.Error(err))
			return out, &GenerationError{Phase: r.phase, Attempts: out.n, Err: &BackendError{Err: err}}
		}

		log.Debug("generation output", zap.String("preview", redact.Preview(resp.Content, previewRunes)))
		if err := accept(resp.Content); err != nil {
			kind := "unknown"
			var f validate.Failure
			if asFailure(err, &f) {
				kind = f.Kind()
			}
			r.metrics.RecordValidationFailure(r.phase, kind)
			log.Warn("validation failed", zap.String("kind", kind), zap.Error(err))
			out.rejected = append(out.rejected, resp.Content)
			lastErr = err
			continue
		}
		return out, nil
	}
	return out, &GenerationError{Phase: r.phase, Attempts: out.n, Err: lastErr}
}

func (r *runner) request(system, user string) llm.Request {
	return llm.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  r.params.Temperature,
		TopP:         r.params.TopP,
		MaxTokens:    r.params.MaxTokens,
		JSON:         true,
	}
}

func asFailure(err error, f *validate.Failure) bool {
	return errors.As(err, f)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
