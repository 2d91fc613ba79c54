package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/chatbox/internal/artifact"
	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/mcp"
	"github.com/hpungsan/chatbox/internal/project"
	"github.com/hpungsan/chatbox/internal/tui"
	"github.com/hpungsan/chatbox/internal/web"
)

// maxPromptBytes bounds how much of stdin is buffered for the prompt.
const maxPromptBytes = 64 * 1024

// newCLIApp creates the CLI application with all commands.
// rt may be nil when only help or version output is needed.
func newCLIApp(rt *runtime) *cli.App {
	app := &cli.App{
		Name:    "chatbox",
		Usage:   "Generate Arduino projects from a plain-language idea",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging"},
		},
		Commands: []*cli.Command{
			generateCmd(rt),
			serveCmd(rt),
			tuiCmd(rt),
			mcpCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// GenerateOutput is the JSON printed by the generate command.
type GenerateOutput struct {
	Project *project.Project       `json:"project"`
	Exports []*artifact.SaveOutput `json:"exports,omitempty"`
}

// generateCmd creates the generate command.
func generateCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate a project from a prompt (args or stdin)",
		ArgsUsage: "[prompt]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "export", Aliases: []string{"e"}, Usage: "Save the sketch, BOM and schematic to the exports directory"},
		},
		Action: func(c *cli.Context) error {
			prompt := strings.Join(c.Args().Slice(), " ")
			if c.NArg() == 0 && stdinHasData() {
				text, err := readStdin(maxPromptBytes)
				if err != nil {
					return outputError(err)
				}
				prompt = text
			}
			if strings.TrimSpace(prompt) == "" {
				return outputError(errors.NewInvalidRequest("prompt is required (pass it as an argument or via stdin)"))
			}

			if !rt.ctrl.Submit(c.Context, prompt) {
				return outputError(errors.NewInvalidRequest("a generation is already in progress"))
			}

			s := rt.ctrl.State()
			if err := s.LastError(); err != nil {
				return outputError(err)
			}
			if s.Project == nil {
				return outputError(errors.NewNoProject())
			}

			output := GenerateOutput{Project: s.Project.WithoutImage()}
			if c.Bool("export") {
				for _, kind := range artifact.Kinds {
					a, err := rt.ctrl.Export(kind)
					if err != nil {
						return outputError(err)
					}
					saved, err := artifact.Save(c.Context, rt.cfg, a, "")
					if err != nil {
						return outputError(err)
					}
					output.Exports = append(output.Exports, saved)
				}
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the browser UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(rt.ctrl, rt.cfg, rt.logger, rt.metrics, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(err)
			}
			if err := srv.Run(c.Context); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// tuiCmd creates the tui command.
func tuiCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Run the terminal UI",
		Action: func(c *cli.Context) error {
			if err := tui.Run(c.Context, rt.ctrl, rt.cfg, rt.logger); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			rt.logger.Debug("starting MCP server", zap.Strings("disabled_tools", rt.cfg.DisabledTools))
			if err := mcp.Run(rt.ctrl, rt.cfg, rt.logger, Version); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin. Only the line ending left by
// the shell is removed; the prompt is otherwise passed through as typed.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("prompt exceeds %d bytes", limit))
	}
	return strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r"), nil
}
