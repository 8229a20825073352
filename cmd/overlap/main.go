package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/overlapengine/internal/access"
	"github.com/dshills/overlapengine/internal/config"
	"github.com/dshills/overlapengine/internal/llm"
	"github.com/dshills/overlapengine/internal/observability"
	"github.com/dshills/overlapengine/internal/pipeline"
	"github.com/dshills/overlapengine/internal/premise"
	"github.com/dshills/overlapengine/internal/redact"
	"github.com/dshills/overlapengine/internal/render"
	"github.com/dshills/overlapengine/internal/revision"
	"github.com/dshills/overlapengine/internal/server"
	"github.com/dshills/overlapengine/internal/style"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// Exit codes.
const (
	exitInput    = 3 // invalid input, flags or config
	exitProvider = 4 // provider construction
	exitGenerate = 5 // generation failure
)

// generateFlags holds the parsed flags for the generate command.
type generateFlags struct {
	file        string
	style       string
	anchor      string
	configPath  string
	format      string
	out         string
	revisionOut string
	verbose     bool
	debug       bool
}

// serveFlags holds the parsed flags for the serve command.
type serveFlags struct {
	configPath string
	addr       string
	verbose    bool
	debug      bool
}

func main() {
	root := &cobra.Command{
		Use:           "overlap",
		Short:         "Generate overlap analysis reports from a premise",
		Long:          "overlap turns a short premise into a structured overlap analysis report in a chosen voice, using two validated generation passes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var gf generateFlags
	generateCmd := &cobra.Command{
		Use:   "generate [premise]",
		Short: "Generate a report for a premise",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runGenerate(ctx, arg, gf, os.Stdin, os.Stdout, os.Stderr)
		},
	}
	f := generateCmd.Flags()
	f.StringVar(&gf.file, "file", "", "Read the premise from this file (\"-\" for stdin)")
	f.StringVar(&gf.style, "style", style.DefaultID, "Style contract id (see: overlap styles)")
	f.StringVar(&gf.anchor, "anchor", "", "Phrase the report must retain (default: derived from the premise)")
	f.StringVar(&gf.configPath, "config", "", "YAML config file")
	f.StringVar(&gf.format, "format", "text", "Output format: text, json or md")
	f.StringVar(&gf.out, "out", "", "Write output to file instead of stdout")
	f.StringVar(&gf.revisionOut, "revision-out", "", "Write the diff-match-patch revision from a rejected draft to this file")
	f.BoolVar(&gf.verbose, "verbose", false, "Log processing steps to stderr")
	f.BoolVar(&gf.debug, "debug", false, "Dump redacted prompts and debug logs to stderr; use only in trusted environments")

	var sf serveFlags
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve report generation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, sf, os.Stderr)
		},
	}
	sfl := serveCmd.Flags()
	sfl.StringVar(&sf.configPath, "config", "", "YAML config file")
	sfl.StringVar(&sf.addr, "addr", "", "Listen address (overrides config and OVERLAP_ADDR)")
	sfl.BoolVar(&sf.verbose, "verbose", false, "Log every request")
	sfl.BoolVar(&sf.debug, "debug", false, "Debug-level logs")

	var stylesFormat string
	stylesCmd := &cobra.Command{
		Use:   "styles",
		Short: "List the available style contracts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStyles(stylesFormat, os.Stdout)
		},
	}
	stylesCmd.Flags().StringVar(&stylesFormat, "format", "text", "Output format: text or json")

	root.AddCommand(generateCmd, serveCmd, stylesCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ee *exitErr
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func runGenerate(ctx context.Context, arg string, flags generateFlags, stdin io.Reader, stdout, stderr io.Writer) error {
	// --- Step 1: Validate flags and load config ---
	if err := validateFlags(flags); err != nil {
		return codeError(exitInput, "invalid flags: %s", err)
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return codeError(exitInput, "%s", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		return codeError(exitInput, "config: %s", err)
	}
	log := newCLILogger(stderr, flags.verbose, flags.debug)
	defer log.Sync() //nolint:errcheck

	// --- Step 2: Load and validate the premise ---
	text, err := premise.Load(arg, flags.file, stdin)
	if err != nil {
		return codeError(exitInput, "loading premise: %s", err)
	}
	req := premise.Request{Premise: text, StyleID: flags.style, Anchor: flags.anchor}
	if err := req.Validate(); err != nil {
		return codeError(exitInput, "%s", err)
	}

	// --- Step 3: Create providers ---
	p1, p2, err := newProviders(cfg)
	if err != nil {
		return codeError(exitProvider, "creating LLM provider: %s", err)
	}
	if flags.debug {
		p1 = dumpPrompts(stderr, "phase 1", p1)
		p2 = dumpPrompts(stderr, "phase 2", p2)
	}

	// --- Step 4: Generate ---
	log.Info("generating report",
		zap.String("phase1_model", cfg.Phase1.Model),
		zap.String("phase2_model", cfg.Phase2.Model))
	pl := pipeline.New(p1, p2, settings, pipeline.WithLogger(log))
	res, err := pl.Generate(ctx, req)
	if err != nil {
		return codeError(exitGenerate, "%s", err)
	}
	if !res.StyleKnown {
		fmt.Fprintf(stderr, "WARN: unknown style %q, using %s\n", flags.style, res.Style.ID)
	}

	// --- Step 5: Revision between a rejected draft and the final report ---
	rev := revision.Between(res.RejectedDraft, res.Report)
	if !rev.Empty() {
		log.Info("report revised after a rejected draft", zap.String("change", rev.Summary()))
	}
	if flags.revisionOut != "" {
		if err := os.WriteFile(flags.revisionOut, []byte(rev.Patch), 0o644); err != nil {
			fmt.Fprintf(stderr, "WARN: revision write failed: %s\n", err)
		}
	}

	// --- Step 6: Render and write output ---
	env := res.Envelope(version, flags.format == "json")
	if flags.format != "text" {
		env.Meta.Revision = rev.Patch
	}
	renderer, err := render.NewRenderer(flags.format)
	if err != nil {
		return codeError(exitInput, "invalid format: %s", err)
	}
	out, err := renderer.Render(&env)
	if err != nil {
		return codeError(exitInput, "rendering output: %s", err)
	}
	if flags.out != "" {
		if err := os.WriteFile(flags.out, out, 0o644); err != nil {
			return codeError(exitInput, "writing output file: %s", err)
		}
		return nil
	}
	if _, err := stdout.Write(out); err != nil {
		return codeError(exitInput, "writing output: %s", err)
	}
	return nil
}

func runServe(ctx context.Context, flags serveFlags, stderr io.Writer) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return codeError(exitInput, "%s", err)
	}
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}
	settings, err := cfg.Settings()
	if err != nil {
		return codeError(exitInput, "config: %s", err)
	}
	log, err := newServerLogger(flags.verbose, flags.debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	p1, p2, err := newProviders(cfg)
	if err != nil {
		return codeError(exitProvider, "creating LLM provider: %s", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.New(reg)

	var gate access.Gate = access.Unlimited{}
	if len(cfg.Accounts) > 0 {
		ledger, err := access.NewLedger(cfg.LedgerAccounts(), access.WithNotify(metrics.SetCredits))
		if err != nil {
			return codeError(exitInput, "%s", err)
		}
		gate = ledger
	}

	gin.SetMode(gin.ReleaseMode)
	pl := pipeline.New(p1, p2, settings, pipeline.WithLogger(log), pipeline.WithMetrics(metrics))
	srv := server.New(pl,
		server.WithGate(gate),
		server.WithUserHeader(cfg.Server.UserHeader),
		server.WithLogger(log),
		server.WithMetrics(metrics, reg),
		server.WithVersion(version),
	)
	fmt.Fprintf(stderr, "overlap %s serving on %s\n", version, cfg.Server.Addr)
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}

func runStyles(format string, stdout io.Writer) error {
	reg := style.Builtin()
	switch format {
	case "json":
		out, err := json.MarshalIndent(reg.All(), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "%s\n", out)
		return err
	case "text":
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		def := reg.Default().ID
		for _, c := range reg.All() {
			mark := " "
			if c.ID == def {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s %s\t%s\n", mark, c.ID, c.Reference)
		}
		return tw.Flush()
	default:
		return codeError(exitInput, "--format must be text or json, got %q", format)
	}
}

// newProviders builds one provider per phase, sharing it when both phases
// name the same model.
func newProviders(cfg config.Config) (llm.Provider, llm.Provider, error) {
	p1, err := llm.NewProvider(cfg.Phase1.Model)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Phase2.Model == cfg.Phase1.Model {
		return p1, p1, nil
	}
	p2, err := llm.NewProvider(cfg.Phase2.Model)
	if err != nil {
		return nil, nil, err
	}
	return p1, p2, nil
}

// dumpPrompts writes every request's redacted prompts to w before calling p.
func dumpPrompts(w io.Writer, label string, p llm.Provider) llm.Provider {
	var mu sync.Mutex
	return llm.ProviderFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		mu.Lock()
		fmt.Fprintf(w, "=== DEBUG: %s redacted prompt ===\n", label)
		fmt.Fprintf(w, "[SYSTEM]\n%s\n\n[USER]\n%s\n", redact.Redact(req.SystemPrompt), redact.Redact(req.UserPrompt))
		for _, d := range req.Directives {
			fmt.Fprintf(w, "\n[DIRECTIVE]\n%s\n", redact.Redact(d))
		}
		fmt.Fprintf(w, "=== END DEBUG ===\n")
		mu.Unlock()
		return p.Complete(ctx, req)
	})
}

// validateFlags returns an error if any flag value is invalid.
func validateFlags(flags generateFlags) error {
	switch flags.format {
	case "text", "json", "md":
	default:
		return fmt.Errorf("--format must be text, json or md, got %q", flags.format)
	}
	if strings.TrimSpace(flags.style) == "" {
		return fmt.Errorf("--style must not be empty")
	}
	return nil
}

// newCLILogger logs to w at warn level, info with verbose, debug with debug.
func newCLILogger(w io.Writer, verbose, debug bool) *zap.Logger {
	level := zapcore.WarnLevel
	switch {
	case debug:
		level = zapcore.DebugLevel
	case verbose:
		level = zapcore.InfoLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

// newServerLogger builds the JSON production logger.
func newServerLogger(verbose, debug bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	switch {
	case debug:
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case !verbose:
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return zcfg.Build()
}
