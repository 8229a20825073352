package pipeline

import (
	"context"

	"github.com/dshills/overlapengine/internal/llm"
	"github.com/dshills/overlapengine/internal/premise"
	"github.com/dshills/overlapengine/internal/schema"
	"github.com/dshills/overlapengine/internal/schema/validate"
	"github.com/dshills/overlapengine/internal/style"
)

// Draft describes how the accepted report was reached.
type Draft struct {
	Attempts int
	// Rejected is the report text of the rejected first attempt, when that
	// attempt carried a readable report.
	Rejected string
}

// Author runs the authoring phase: re-author the discovery payload in a
// style and lay it out as a report.
type Author struct {
	runner   runner
	settings Settings
}

// NewAuthor builds an Author calling provider with s.Phase2.
func NewAuthor(provider llm.Provider, s Settings, opts ...Option) *Author {
	o := buildOptions(opts)
	return &Author{
		runner: runner{
			phase:    2,
			provider: provider,
			params:   s.Phase2,
			log:      o.log,
			metrics:  o.metrics,
		},
		settings: s,
	}
}

// Author returns the validated report.
func (a *Author) Author(ctx context.Context, p premise.Premise, payload *schema.Phase1Payload, c style.Contract) (string, Draft, error) {
	rules := a.settings.phase2Rules(p)
	user, err := authoringUserPrompt(p, payload, c)
	if err != nil {
		return "", Draft{}, &GenerationError{Phase: 2, Err: err}
	}
	req := a.runner.request(authoringSystem(rules), user)

	var report string
	out, err := a.runner.run(ctx, req, func(raw string) error {
		r, err := validate.ParsePhase2(raw, rules)
		if err != nil {
			return err
		}
		report = r
		return nil
	}, func(err error) string { return authoringCorrection(err, rules) })

	d := Draft{Attempts: out.n}
	if len(out.rejected) > 0 {
		d.Rejected, _ = validate.ReportText(out.rejected[0])
	}
	if err != nil {
		return "", d, err
	}
	return report, d, nil
}
