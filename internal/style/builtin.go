package style

func builtinContracts() []Contract {
	return []Contract{
		{
			ID:                  DefaultID,
			Reference:           "Conversational stage storyteller",
			Voice:               "Warm, human, present-tense narrator with visual specifics.",
			Diction:             "Everyday spoken language, vivid nouns and verbs.",
			Rhythm:              "Medium-length lines with occasional punchy short lines.",
			Energy:              "Confident and inviting.",
			LanguageConstraints: []string{"No hedging", "No academic jargon", "No punchline templates"},
			Structure:           Behavior{Directive: "Build each overlap like a playable scene with immediate visual cues."},
		},
		{
			ID:                  "obsessive_precision_ranter",
			Reference:           "High-control logic rant",
			Voice:               "Fast, specific, relentless categorizer.",
			Diction:             "Precise nouns, decisive verbs, no fluff.",
			Rhythm:              "Rapid sequence of decisive statements.",
			Energy:              "High urgency.",
			LanguageConstraints: []string{"No hedging", "No passive voice", "No vague abstractions"},
			Structure:           Behavior{Directive: "Escalation lines move from concrete to absurdly over-committed detail."},
		},
		{
			ID:                  "cold_minimalist_observer",
			Reference:           "Detached cinematic observer",
			Voice:               "Sparse, objective, sharp.",
			Diction:             "Lean and literal.",
			Rhythm:              "Short declarative lines.",
			Energy:              "Low heat, high precision.",
			LanguageConstraints: []string{"No hedging", "No decorative language", "No rhetorical questions"},
			Structure:           Behavior{Directive: "Prioritize observable behavior over interpretation."},
		},
		{
			ID:                  "hyper_logical_literalist",
			Reference:           "Formal absurd literalism",
			Voice:               "Rigidly logical framing with concrete outcomes.",
			Diction:             "Plain language with explicit causal links.",
			Rhythm:              "Methodical sentence progression.",
			Energy:              "Steady and emphatic.",
			LanguageConstraints: []string{"No hedging", "No figurative filler", "No unsupported claims"},
			Structure:           Behavior{Directive: "State premise mechanics like engineering steps."},
		},
		{
			ID:                  "cheerfully_misguided_optimist",
			Reference:           "Positive but concretely wrong guide",
			Voice:               "Bright confidence applied to absurdly concrete framing.",
			Diction:             "Friendly language and plain images.",
			Rhythm:              "Bouncy declarative statements.",
			Energy:              "High and upbeat.",
			LanguageConstraints: []string{"No hedging", "No cynicism", "No generic phrasing"},
			Structure:           Behavior{Directive: "Escalation should stay optimistic while details get more extreme."},
		},
		{
			ID:        "mock_serious_columnist",
			Reference: "Mock-serious newspaper humor columnist",
			Voice: "Mock-serious columnist voice. Treats ordinary life as an official matter, narrates with confident certainty, " +
				"and escalates by applying bureaucratic or institutional language to trivial situations.",
			Diction: "Plain but wry. Prefers official-sounding nouns and verbs (compliance, policy, regulation, procedure, " +
				"authorization, committee, documentation) applied to everyday objects. Avoids academic abstractions.",
			Rhythm: "Brisk sentences with confident declarations. Alternates short punchy lines with one longer explanatory line. " +
				"Occasional short parenthetical asides are allowed.",
			Energy: "Confident, amused, mock-authoritative. The narrator sounds certain and calmly committed, even when the logic is ridiculous.",
			LanguageConstraints: []string{
				"Do not use hedging language: feels like, looks like, seems, might, probably, kind of, sort of, almost, basically, I guess, I imagine, I picture.",
				"Write declarative statements with emphatic certainty; state absurd conclusions as facts.",
				"Escalate by adding official/bureaucratic layers to ordinary situations (forms, policies, committees, compliance).",
				"Treat trivial objects as if they require procedures, documentation, approvals, and audits.",
				"Use occasional short parenthetical asides as punch beats; keep them brief.",
				"Do not use joke templates or explicit punchlines.",
				"Do not moralize; keep it observational and procedural.",
				"Keep concrete nouns on the page; avoid abstract thesis language.",
				"Vary sentence openings to avoid repetitive stems.",
			},
			Structure: Behavior{MultiLine: "allowed", Tagging: "light"},
		},
	}
}
