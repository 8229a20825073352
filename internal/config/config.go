// Package config loads engine settings from built-in defaults, an optional
// YAML file and environment overrides, in that order of increasing
// priority.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/overlapengine/internal/access"
	"github.com/dshills/overlapengine/internal/llm"
	"github.com/dshills/overlapengine/internal/pipeline"
	"github.com/dshills/overlapengine/internal/schema"
	"github.com/dshills/overlapengine/internal/schema/validate"
)

// Config is the top-level configuration. It is safe to read concurrently
// once loaded.
type Config struct {
	Phase1   PhaseConfig     `json:"phase1" yaml:"phase1"`
	Phase2   PhaseConfig     `json:"phase2" yaml:"phase2"`
	Bounds   schema.Bounds   `json:"bounds" yaml:"bounds"`
	Report   ReportConfig    `json:"report" yaml:"report"`
	Drift    DriftConfig     `json:"drift" yaml:"drift"`
	Server   ServerConfig    `json:"server" yaml:"server"`
	Accounts []AccountConfig `json:"accounts" yaml:"accounts"`
}

// PhaseConfig holds one phase's model and sampling parameters.
type PhaseConfig struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	TopP        float64 `json:"top_p" yaml:"top_p"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// ReportConfig holds the report shape rules.
type ReportConfig struct {
	Title       string       `json:"title" yaml:"title"`
	MinLength   int          `json:"min_length" yaml:"min_length"`
	Assumptions schema.Range `json:"assumptions" yaml:"assumptions"`
	Hedges      []string     `json:"hedges" yaml:"hedges"`
}

// DriftConfig holds the discovery drift guards.
type DriftConfig struct {
	MaxFraction        float64       `json:"max_fraction" yaml:"max_fraction"`
	ObjectSubstitution bool          `json:"object_substitution" yaml:"object_substitution"`
	Guards             []GuardConfig `json:"guards" yaml:"guards"`
}

// GuardConfig is a regular-expression drift guard.
type GuardConfig struct {
	Name        string `json:"name" yaml:"name"`
	Pattern     string `json:"pattern" yaml:"pattern"`
	Instruction string `json:"instruction" yaml:"instruction"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	UserHeader      string        `json:"user_header" yaml:"user_header"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// AccountConfig seeds the credit ledger. An empty account list means the
// server admits every caller.
type AccountConfig struct {
	ID     string `json:"id" yaml:"id"`
	Plan   string `json:"plan" yaml:"plan"`
	Active *bool  `json:"active" yaml:"active"`
}

// IsActive reports the account's access state; it defaults to active.
func (a AccountConfig) IsActive() bool { return a.Active == nil || *a.Active }

// Default returns the built-in configuration.
func Default() Config {
	p1, p2 := pipeline.DefaultPhase1Params(), pipeline.DefaultPhase2Params()
	return Config{
		Phase1: PhaseConfig{Model: p1.Model, Temperature: p1.Temperature, TopP: p1.TopP, MaxTokens: p1.MaxTokens},
		Phase2: PhaseConfig{Model: p2.Model, Temperature: p2.Temperature, TopP: p2.TopP, MaxTokens: p2.MaxTokens},
		Bounds: schema.DefaultBounds(),
		Report: ReportConfig{
			Title:       validate.DefaultTitle,
			MinLength:   validate.DefaultMinReportLength,
			Assumptions: validate.DefaultAssumptions,
			Hedges:      append([]string(nil), validate.DefaultHedges...),
		},
		Drift: DriftConfig{
			MaxFraction:        validate.DefaultDriftLimit,
			ObjectSubstitution: true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			UserHeader:      "X-User-ID",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load returns the defaults overlaid with the file at path (when path is
// not empty) and then with environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// YAML first; JSON is accepted as a fallback.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse %s (tried YAML and JSON): YAML error: %v, JSON error: %w", path, err, jsonErr)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OVERLAP_MODEL"); v != "" {
		cfg.Phase1.Model = v
		cfg.Phase2.Model = v
	}
	if v := os.Getenv("OVERLAP_PHASE1_MODEL"); v != "" {
		cfg.Phase1.Model = v
	}
	if v := os.Getenv("OVERLAP_PHASE2_MODEL"); v != "" {
		cfg.Phase2.Model = v
	}
	if v := os.Getenv("OVERLAP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("OVERLAP_DRIFT_MAX_FRACTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Drift.MaxFraction = f
		}
	}
	if v := os.Getenv("OVERLAP_OBJECT_SUBSTITUTION"); v != "" {
		cfg.Drift.ObjectSubstitution = v == "true" || v == "1"
	}
}

// Validate checks value ranges and compiles the drift guards.
func (c Config) Validate() error {
	var errs []error
	errs = append(errs, c.Phase1.validate("phase1"), c.Phase2.validate("phase2"))

	errs = append(errs,
		validateRange("bounds.core", c.Bounds.Core),
		validateRange("bounds.outer", c.Bounds.Outer),
		validateRange("bounds.compression", c.Bounds.Compression),
	)
	errs = append(errs, validateRange("report.assumptions", c.Report.Assumptions))
	if strings.TrimSpace(c.Report.Title) == "" {
		errs = append(errs, errors.New("report.title must not be empty"))
	}
	if c.Report.MinLength < 0 {
		errs = append(errs, errors.New("report.min_length must be >= 0"))
	}

	if c.Drift.MaxFraction <= 0 || c.Drift.MaxFraction > 1 {
		errs = append(errs, fmt.Errorf("drift.max_fraction must be in (0, 1], got %v", c.Drift.MaxFraction))
	}
	for i, g := range c.Drift.Guards {
		if strings.TrimSpace(g.Name) == "" {
			errs = append(errs, fmt.Errorf("drift.guards[%d].name must not be empty", i))
		}
		if _, err := regexp.Compile(g.Pattern); err != nil || g.Pattern == "" {
			errs = append(errs, fmt.Errorf("drift.guards[%d].pattern %q does not compile", i, g.Pattern))
		}
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be >= 0"))
	}
	for i, a := range c.Accounts {
		if _, ok := access.PlanCredits(a.Plan); !ok {
			errs = append(errs, fmt.Errorf("accounts[%d]: unknown plan %q", i, a.Plan))
		}
	}
	return errors.Join(errs...)
}

func (p PhaseConfig) validate(name string) error {
	var errs []error
	if _, _, err := llm.ParseModel(p.Model); err != nil {
		errs = append(errs, fmt.Errorf("%s.model: %w", name, err))
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		errs = append(errs, fmt.Errorf("%s.temperature must be in [0, 2], got %v", name, p.Temperature))
	}
	if p.TopP <= 0 || p.TopP > 1 {
		errs = append(errs, fmt.Errorf("%s.top_p must be in (0, 1], got %v", name, p.TopP))
	}
	if p.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("%s.max_tokens must be > 0, got %d", name, p.MaxTokens))
	}
	return errors.Join(errs...)
}

func validateRange(name string, r schema.Range) error {
	if r.Min < 0 || r.Min > r.Max {
		return fmt.Errorf("%s: min %d and max %d must satisfy 0 <= min <= max", name, r.Min, r.Max)
	}
	return nil
}

// Settings converts c into pipeline settings, building the regex guards.
func (c Config) Settings() (pipeline.Settings, error) {
	s := pipeline.Settings{
		Phase1:      c.Phase1.params(),
		Phase2:      c.Phase2.params(),
		Bounds:      c.Bounds,
		MinSentence: validate.DefaultMinSentence,
		Report: validate.Phase2Rules{
			Title:       c.Report.Title,
			MinLength:   c.Report.MinLength,
			Sections:    append([]string(nil), validate.RequiredSections...),
			Assumptions: c.Report.Assumptions,
			Hedges:      append([]string(nil), c.Report.Hedges...),
		},
		DriftLimit:         c.Drift.MaxFraction,
		ObjectSubstitution: c.Drift.ObjectSubstitution,
	}
	for _, g := range c.Drift.Guards {
		guard, err := validate.RegexGuard(g.Name, g.Pattern, g.Instruction, c.Drift.MaxFraction)
		if err != nil {
			return pipeline.Settings{}, err
		}
		s.Guards = append(s.Guards, guard)
	}
	return s, nil
}

func (p PhaseConfig) params() pipeline.PhaseParams {
	return pipeline.PhaseParams{Model: p.Model, Temperature: p.Temperature, TopP: p.TopP, MaxTokens: p.MaxTokens}
}

// LedgerAccounts converts the configured accounts for access.NewLedger.
func (c Config) LedgerAccounts() []access.Account {
	out := make([]access.Account, len(c.Accounts))
	for i, a := range c.Accounts {
		out[i] = access.Account{ID: a.ID, Plan: a.Plan, Active: a.IsActive()}
	}
	return out
}
