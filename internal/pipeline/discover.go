package pipeline

import (
	"context"

	"github.com/dshills/overlapengine/internal/llm"
	"github.com/dshills/overlapengine/internal/premise"
	"github.com/dshills/overlapengine/internal/schema"
	"github.com/dshills/overlapengine/internal/schema/validate"
)

// Discoverer runs the discovery phase: raw overlap statements in three
// buckets.
type Discoverer struct {
	runner   runner
	settings Settings
}

// NewDiscoverer builds a Discoverer calling provider with s.Phase1.
func NewDiscoverer(provider llm.Provider, s Settings, opts ...Option) *Discoverer {
	o := buildOptions(opts)
	return &Discoverer{
		runner: runner{
			phase:    1,
			provider: provider,
			params:   s.Phase1,
			log:      o.log,
			metrics:  o.metrics,
		},
		settings: s,
	}
}

// Discover returns the validated payload and the number of calls made.
func (d *Discoverer) Discover(ctx context.Context, p premise.Premise) (*schema.Phase1Payload, int, error) {
	rules := d.settings.phase1Rules(p)
	req := d.runner.request(discoverySystemPrompt, discoveryUserPrompt(p, d.settings.Bounds))

	var payload *schema.Phase1Payload
	out, err := d.runner.run(ctx, req, func(raw string) error {
		v, err := validate.ParsePhase1(raw, rules)
		if err != nil {
			return err
		}
		payload = v
		return nil
	}, func(err error) string { return discoveryCorrection(err, d.settings.Bounds) })
	if err != nil {
		return nil, out.n, err
	}
	return payload, out.n, nil
}
