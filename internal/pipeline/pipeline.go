// Package pipeline generates overlap analysis reports in two phases:
// discovery of raw overlap statements, then authoring of the final report
// in a chosen voice. Each phase validates model output and allows one
// corrective retry.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/overlapengine/internal/llm"
	"github.com/dshills/overlapengine/internal/observability"
	"github.com/dshills/overlapengine/internal/premise"
	"github.com/dshills/overlapengine/internal/redact"
	"github.com/dshills/overlapengine/internal/schema"
	"github.com/dshills/overlapengine/internal/style"
)

// Tool is the producer name recorded in report envelopes.
const Tool = "overlap"

// Option configures a Pipeline, Discoverer or Author.
type Option func(*options)

type options struct {
	log      *zap.Logger
	metrics  *observability.Metrics
	registry *style.Registry
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRegistry replaces the built-in style registry.
func WithRegistry(r *style.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop(), registry: style.Builtin()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Result is a completed run with its debugging detail.
type Result struct {
	Report         string
	Premise        premise.Premise
	RequestedStyle string
	Style          style.Contract
	StyleKnown     bool
	Phase1         *schema.Phase1Payload
	Phase1Attempts int
	Phase2Attempts int
	// RejectedDraft is the first authoring attempt's report when it was
	// rejected, for revision diffs.
	RejectedDraft string
	Phase1Model   string
	Phase2Model   string
	Elapsed       time.Duration
}

// Envelope returns the machine-readable form of r.
func (r *Result) Envelope(version string, debug bool) schema.Envelope {
	env := schema.Envelope{
		Tool:    Tool,
		Version: version,
		Input: schema.Input{
			PremiseHash: r.Premise.Hash,
			StyleID:     r.RequestedStyle,
			Style:       r.Style.ID,
			Anchor:      r.Premise.Anchor,
		},
		Report: r.Report,
		Meta: schema.Meta{
			Phase1Model:    r.Phase1Model,
			Phase2Model:    r.Phase2Model,
			Phase1Attempts: r.Phase1Attempts,
			Phase2Attempts: r.Phase2Attempts,
		},
	}
	if debug {
		env.Phase1 = r.Phase1
	}
	return env
}

// Pipeline is the report orchestrator. It is safe for concurrent use.
type Pipeline struct {
	discoverer *Discoverer
	author     *Author
	settings   Settings
	registry   *style.Registry
	log        *zap.Logger
	metrics    *observability.Metrics
}

// New builds a Pipeline. phase1 and phase2 may be the same provider.
func New(phase1, phase2 llm.Provider, s Settings, opts ...Option) *Pipeline {
	o := buildOptions(opts)
	return &Pipeline{
		discoverer: NewDiscoverer(phase1, s, opts...),
		author:     NewAuthor(phase2, s, opts...),
		settings:   s,
		registry:   o.registry,
		log:        o.log,
		metrics:    o.metrics,
	}
}

// Styles returns the registry the pipeline resolves styles against.
func (p *Pipeline) Styles() *style.Registry { return p.registry }

// GenerateReport runs both phases for premiseText in the style styleID and
// returns the report. Unknown styles resolve to the default contract.
func (p *Pipeline) GenerateReport(ctx context.Context, premiseText, styleID string) (string, error) {
	res, err := p.Generate(ctx, premise.Request{Premise: premiseText, StyleID: styleID})
	if err != nil {
		return "", err
	}
	return res.Report, nil
}

// Generate validates req, runs both phases and returns the full result.
// Phase errors are returned unchanged as *GenerationError.
func (p *Pipeline) Generate(ctx context.Context, req premise.Request) (*Result, error) {
	pr, err := premise.FromRequest(req)
	if err != nil {
		return nil, err
	}
	contract, known := p.registry.Resolve(req.StyleID)

	log := p.log.With(
		zap.String("premise_hash", pr.Hash),
		zap.String("style_id", contract.ID),
	)
	if !known {
		log.Info("unknown style, using default", zap.String("requested", req.StyleID))
	}
	log.Debug("generating report",
		zap.String("premise", redact.Preview(pr.Text, previewRunes)),
		zap.String("anchor", pr.Anchor))

	start := time.Now()
	res := &Result{
		Premise:        pr,
		RequestedStyle: req.StyleID,
		Style:          contract,
		StyleKnown:     known,
		Phase1Model:    p.settings.Phase1.Model,
		Phase2Model:    p.settings.Phase2.Model,
	}

	payload, n, err := p.discoverer.Discover(ctx, pr)
	res.Phase1Attempts = n
	if err != nil {
		p.metrics.RecordReport(false)
		log.Warn("discovery failed", zap.Error(err))
		return nil, err
	}
	res.Phase1 = payload
	sizes := payload.Sizes()
	log.Info("discovery complete", zap.Int("attempts", n), zap.Ints("bucket_sizes", sizes[:]))

	report, draft, err := p.author.Author(ctx, pr, payload, contract)
	res.Phase2Attempts = draft.Attempts
	if err != nil {
		p.metrics.RecordReport(false)
		log.Warn("authoring failed", zap.Error(err))
		return nil, err
	}
	res.Report = report
	res.RejectedDraft = draft.Rejected
	res.Elapsed = time.Since(start)

	p.metrics.RecordReport(true)
	log.Info("report generated",
		zap.Int("phase2_attempts", draft.Attempts),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}
