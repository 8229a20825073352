package pipeline

import (
	"github.com/dshills/overlapengine/internal/premise"
	"github.com/dshills/overlapengine/internal/schema"
	"github.com/dshills/overlapengine/internal/schema/validate"
)

// maxAttempts is the per-phase call budget: one primary call and one
// corrective retry.
const maxAttempts = 2

// PhaseParams are the sampling parameters of one phase's generation call.
type PhaseParams struct {
	Model       string // "provider:model", recorded in run metadata
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DefaultPhase1Params returns the discovery sampling parameters.
func DefaultPhase1Params() PhaseParams {
	return PhaseParams{Model: "openai:gpt-4o-mini", Temperature: 0.7, TopP: 0.95, MaxTokens: 4000}
}

// DefaultPhase2Params returns the authoring sampling parameters.
func DefaultPhase2Params() PhaseParams {
	return PhaseParams{Model: "openai:gpt-4o", Temperature: 0.8, TopP: 1.0, MaxTokens: 3600}
}

// Settings configures both phases. It is read-only once a Pipeline is built.
type Settings struct {
	Phase1 PhaseParams
	Phase2 PhaseParams
	Bounds schema.Bounds
	// MinSentence is the minimum overlap sentence length.
	MinSentence int
	// Report holds the report rules; its Anchor is set per premise.
	Report validate.Phase2Rules
	// DriftLimit applies to the object-substitution guard.
	DriftLimit float64
	// ObjectSubstitution enables the guard derived from the anchor's head noun.
	ObjectSubstitution bool
	// Guards are extra drift guards applied to every run.
	Guards []validate.DriftGuard
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Phase1:             DefaultPhase1Params(),
		Phase2:             DefaultPhase2Params(),
		Bounds:             schema.DefaultBounds(),
		MinSentence:        validate.DefaultMinSentence,
		Report:             validate.DefaultPhase2Rules(),
		DriftLimit:         validate.DefaultDriftLimit,
		ObjectSubstitution: true,
	}
}

func (s Settings) phase1Rules(p premise.Premise) validate.Phase1Rules {
	rules := validate.Phase1Rules{Bounds: s.Bounds, MinSentence: s.MinSentence}
	if s.ObjectSubstitution {
		if g, ok := validate.ObjectSubstitutionGuard(premise.HeadNoun(p.Anchor), s.DriftLimit); ok {
			rules.Guards = append(rules.Guards, g)
		}
	}
	rules.Guards = append(rules.Guards, s.Guards...)
	return rules
}

func (s Settings) phase2Rules(p premise.Premise) validate.Phase2Rules {
	return s.Report.WithAnchor(p.Anchor)
}
