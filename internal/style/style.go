// Package style holds the registry of voice contracts applied while
// authoring a report.
package style

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Behavior is a contract's structural directive. It is either free text
// (Directive) or a small structured hint (MultiLine, Tagging).
type Behavior struct {
	Directive string
	MultiLine string
	Tagging   string
}

// MarshalJSON encodes a free-text behavior as a string and a structured one
// as {"multiLine": ..., "tagging": ...}.
func (b Behavior) MarshalJSON() ([]byte, error) {
	if b.Directive != "" {
		return json.Marshal(b.Directive)
	}
	return json.Marshal(struct {
		MultiLine string `json:"multiLine"`
		Tagging   string `json:"tagging"`
	}{b.MultiLine, b.Tagging})
}

// String renders the behavior as a single prompt line.
func (b Behavior) String() string {
	if b.Directive != "" {
		return b.Directive
	}
	return fmt.Sprintf("multi-line: %s; tagging: %s", b.MultiLine, b.Tagging)
}

// Contract describes one target voice.
type Contract struct {
	ID                  string   `json:"styleId"`
	Reference           string   `json:"reference"`
	Voice               string   `json:"voiceDescription"`
	Diction             string   `json:"diction"`
	Rhythm              string   `json:"rhythm"`
	Energy              string   `json:"energy"`
	LanguageConstraints []string `json:"languageConstraints"`
	Structure           Behavior `json:"structuralBehavior"`
}

// FormatForPrompt returns the contract as a block for the authoring prompt.
func (c Contract) FormatForPrompt() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Style: %s (%s)\n", c.ID, c.Reference)
	fmt.Fprintf(&sb, "Voice: %s\n", c.Voice)
	fmt.Fprintf(&sb, "Diction: %s\n", c.Diction)
	fmt.Fprintf(&sb, "Rhythm: %s\n", c.Rhythm)
	fmt.Fprintf(&sb, "Energy: %s\n", c.Energy)
	if len(c.LanguageConstraints) > 0 {
		sb.WriteString("Language constraints:\n")
		for _, lc := range c.LanguageConstraints {
			fmt.Fprintf(&sb, "- %s\n", lc)
		}
	}
	fmt.Fprintf(&sb, "Structural behavior: %s\n", c.Structure)
	return sb.String()
}

func (c Contract) clone() Contract {
	c.LanguageConstraints = append([]string(nil), c.LanguageConstraints...)
	return c
}

// Registry is an immutable set of contracts. The first contract is the
// default returned for unknown identifiers.
type Registry struct {
	contracts []Contract
	byID      map[string]int
}

// NewRegistry builds a registry from contracts. It fails on an empty list,
// a blank identifier or a duplicate identifier.
func NewRegistry(contracts []Contract) (*Registry, error) {
	if len(contracts) == 0 {
		return nil, fmt.Errorf("style registry needs at least one contract")
	}
	r := &Registry{
		contracts: make([]Contract, len(contracts)),
		byID:      make(map[string]int, len(contracts)),
	}
	for i, c := range contracts {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("style contract %d has no id", i)
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate style contract %q", c.ID)
		}
		r.contracts[i] = c.clone()
		r.byID[c.ID] = i
	}
	return r, nil
}

// Lookup returns the contract for id, or the default when id is unknown.
func (r *Registry) Lookup(id string) Contract {
	c, _ := r.Resolve(id)
	return c
}

// Resolve is Lookup that also reports whether id was known.
func (r *Registry) Resolve(id string) (Contract, bool) {
	if i, ok := r.byID[strings.TrimSpace(id)]; ok {
		return r.contracts[i].clone(), true
	}
	return r.contracts[0].clone(), false
}

// Default returns the fallback contract.
func (r *Registry) Default() Contract { return r.contracts[0].clone() }

// All returns every contract in registry order.
func (r *Registry) All() []Contract {
	out := make([]Contract, len(r.contracts))
	for i, c := range r.contracts {
		out[i] = c.clone()
	}
	return out
}

// IDs returns every contract identifier in registry order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.contracts))
	for i, c := range r.contracts {
		out[i] = c.ID
	}
	return out
}

var builtin = mustRegistry(builtinContracts())

func mustRegistry(cs []Contract) *Registry {
	r, err := NewRegistry(cs)
	if err != nil {
		panic(err)
	}
	return r
}

// Builtin returns the process-wide registry of built-in contracts.
func Builtin() *Registry { return builtin }

// Lookup resolves id against the built-in registry.
func Lookup(id string) Contract { return builtin.Lookup(id) }

// DefaultID is the identifier of the built-in fallback contract.
const DefaultID = "warm_physical_storyteller"
