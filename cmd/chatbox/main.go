package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/hpungsan/chatbox/internal/config"
	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/generator"
	"github.com/hpungsan/chatbox/internal/mcp"
	"github.com/hpungsan/chatbox/internal/metrics"
	"github.com/hpungsan/chatbox/internal/session"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"generate": true, "serve": true, "tui": true, "mcp": true,
	"help": true,
}

// runtime holds the dependencies shared by every command.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	ctrl    *session.Controller
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	if isGlobalFlag(arg) {
		return true
	}
	return false
}

// isGlobalFlag reports whether arg is a flag the root app accepts.
func isGlobalFlag(arg string) bool {
	switch arg {
	case "--help", "-h", "--version", "-v", "--verbose":
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isVerbose reports whether --verbose appears anywhere on the command line.
func isVerbose(args []string) bool {
	for _, a := range args[1:] {
		if a == "--" {
			return false
		}
		if a == "--verbose" || a == "--verbose=true" {
			return true
		}
	}
	return false
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    ____ _           _   ____
   / ___| |__   __ _| |_| __ )  _____  __
  | |   | '_ \ / _' | __|  _ \ / _ \ \/ /
  | |___| | | | (_| | |_| |_) | (_) >  <
   \____|_| |_|\__,_|\__|____/ \___/_/\_\

  Arduino project generator

  Usage: chatbox <command> [options]
         chatbox --help

  MCP server mode requires piped input.`)
}

// newLogger builds the process logger. Logs go to stderr so that stdout stays
// free for JSON output and the MCP transport.
func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// newRuntime loads configuration and wires the generator into a session.
func newRuntime(ctx context.Context, baseDir string, logger *zap.Logger) (*runtime, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("could not determine working directory: %w", err)
	}

	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}

	if err := config.LoadAPIKey(cfg); err != nil {
		return nil, err
	}

	backend, err := generator.NewGenAIBackend(ctx, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	m := metrics.New()
	gen := generator.NewOrchestrator(backend, cfg, logger)
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		ctrl:    session.New(gen, cfg, logger, m),
	}, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before any setup
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && !isCLIMode(os.Args) && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'chatbox --help' for usage.\n")
		os.Exit(1)
	}

	os.Exit(run(os.Args))
}

// run wires the runtime and dispatches to the CLI or the MCP server.
// It returns the process exit code.
func run(args []string) int {
	logger, err := newLogger(isVerbose(args))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		return 1
	}

	rt, err := newRuntime(ctx, filepath.Join(homeDir, ".chatbox"), logger)
	if err != nil {
		if cErr, ok := errors.As(err); ok {
			fmt.Fprintf(os.Stderr, "error: [%s] %s\n", cErr.Code, cErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		return 1
	}

	// CLI mode: known subcommand
	if isCLIMode(args) {
		app := newCLIApp(rt)
		if err := app.RunContext(ctx, args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// MCP server mode (default)
	if err := mcp.Run(rt.ctrl, rt.cfg, rt.logger, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
