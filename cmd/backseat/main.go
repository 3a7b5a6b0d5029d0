package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/backseat/internal/capture"
	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/db"
	"github.com/hpungsan/backseat/internal/extract"
	"github.com/hpungsan/backseat/internal/inference"
	"github.com/hpungsan/backseat/internal/logging"
	"github.com/hpungsan/backseat/internal/mcp"
	"github.com/hpungsan/backseat/internal/metrics"
	"github.com/hpungsan/backseat/internal/ocr"
	"github.com/hpungsan/backseat/internal/ops"
	"github.com/hpungsan/backseat/internal/session"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"profile": true, "analyze": true, "ask": true,
	"extract": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _                _                _
  | |__   __ _  ___| | _____  ___  __ _| |_
  | '_ \ / _' |/ __| |/ / __|/ _ \/ _' | __|
  | |_) | (_| | (__|   <\__ \  __/ (_| | |_
  |_.__/ \__,_|\___|_|\_\___/\___|\__,_|\__|

  Screen and page assistant for local models

  Usage: backseat <command> [options]
         backseat --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'backseat --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".backseat")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadAll(baseDir, cwd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fatal("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	store := db.NewStore(database)
	created, err := ops.EnsureDefault(context.Background(), store, cfg)
	if err != nil {
		fatal("failed to create default profile: %v", err)
	}
	if created {
		logger.Info("created default profile")
	}

	env := &appEnv{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		metrics: metrics.New(),
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	// MCP server mode (default)
	if err := runMCP(env); err != nil {
		fatal("%v", err)
	}
}

// runMCP serves one client over stdio. The process owns a single session.
func runMCP(env *appEnv) error {
	log := env.logger.Component("mcp")
	if unknown := mcp.ValidateDisabledTools(env.cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(env.cfg.DisabledTypes); len(unknown) > 0 {
		log.Warn("unknown types in disabled_types", zap.Strings("types", unknown))
	}

	sess, err := env.newSession(context.Background())
	if err != nil {
		return err
	}

	return mcp.Run(mcp.Deps{
		Orchestrator: env.orchestrator(capture.Screen{Display: capture.AllDisplays}),
		Config:       env.cfg,
		Session:      sess,
		Metrics:      env.metrics,
		Logger:       log.Logger,
	}, Version)
}

// appEnv holds what every command needs once the store is open.
// ocr and llm default to the HTTP adapters; tests swap them out.
type appEnv struct {
	cfg     *config.Config
	store   ops.ProfileStore
	logger  *logging.Logger
	metrics *metrics.Metrics

	ocr ops.Recognizer
	llm ops.Generator
}

func (e *appEnv) orchestrator(c capture.Capturer) *ops.Orchestrator {
	recognizer := e.ocr
	if recognizer == nil {
		recognizer = ocr.New(e.cfg.HTTPTimeout(), e.logger.Component("ocr").Logger, e.metrics)
	}
	generator := e.llm
	if generator == nil {
		generator = inference.New(e.cfg.HTTPTimeout(), e.logger.Component("inference").Logger, e.metrics)
	}

	return &ops.Orchestrator{
		Store:     e.store,
		Config:    e.cfg,
		Capturer:  c,
		OCR:       recognizer,
		Inference: generator,
		Extractor: extract.New(e.logger.Component("extract").Logger, e.cfg.RegexTimeout()),
		Logger:    e.logger.Component("ops").Logger,
	}
}

func (e *appEnv) newSession(ctx context.Context) (*session.Session, error) {
	name, err := ops.InitialProfileName(ctx, e.store)
	if err != nil {
		return nil, err
	}
	return session.New(session.NewID(), name), nil
}

func (e *appEnv) sessionManager() *session.Manager {
	return session.NewManager(func(ctx context.Context) (string, error) {
		return ops.InitialProfileName(ctx, e.store)
	}, e.metrics)
}
