package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/backseat/internal/capture"
	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/message"
	"github.com/hpungsan/backseat/internal/ops"
	"github.com/hpungsan/backseat/internal/profile"
	"github.com/hpungsan/backseat/internal/session"
	"github.com/hpungsan/backseat/internal/web"
)

// Stdin limits. HTML pages can be large; profile data never is.
const (
	maxProfileStdin = 10 << 20
	maxHTMLStdin    = 16 << 20
	maxTextStdin    = 1 << 20
)

// newCLIApp creates the CLI application with all commands.
// env may be nil when only help or version output is needed.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "backseat",
		Usage:   "Screen and page assistant for local models",
		Version: Version,
		Commands: []*cli.Command{
			profileCmd(env),
			analyzeCmd(env),
			askCmd(env),
			extractCmd(env),
			serveCmd(env),
		},
		// CSS selectors contain commas; --include/--exclude are repeated instead.
		DisableSliceFlagSeparator: true,
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// profileCmd groups the profile management subcommands.
func profileCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage profiles",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List all profiles and the current selection",
				Action: func(c *cli.Context) error {
					output, err := ops.ListProfiles(c.Context, env.store, nil)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "get",
				Usage:     "Show a profile (defaults to the current one)",
				ArgsUsage: "[name]",
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						current, err := ops.InitialProfileName(c.Context, env.store)
						if err != nil {
							return outputError(err)
						}
						output, err := ops.ResolveProfile(c.Context, env.store, env.cfg, current)
						if err != nil {
							return outputError(err)
						}
						return outputJSON(output)
					}

					output, err := ops.GetProfile(c.Context, env.store, name)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			profileSaveCmd(env),
			{
				Name:      "delete",
				Usage:     "Delete a profile",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteProfile(c.Context, env.store, env.cfg, nil, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "select",
				Usage:     "Make a profile current for new sessions",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					output, err := ops.SetCurrentProfile(c.Context, env.store, nil, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "export",
				Usage: "Export all profiles as a JSON array",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.backseat/exports/backseat-profiles-<date>.json)"},
					&cli.BoolFlag{Name: "stdout", Usage: "Print the array instead of writing a file"},
				},
				Action: func(c *cli.Context) error {
					if c.Bool("stdout") {
						output, err := ops.ExportProfiles(c.Context, env.store)
						if err != nil {
							return outputError(err)
						}
						_, err = fmt.Fprintln(os.Stdout, output.Data)
						return err
					}

					output, err := ops.ExportProfilesToFile(c.Context, env.store, env.cfg, ops.ExportFileInput{Path: c.String("path")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "import",
				Usage: "Replace all profiles with a JSON array (from --path or stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Import file path"},
				},
				Action: func(c *cli.Context) error {
					if path := c.String("path"); path != "" {
						output, err := ops.ImportProfilesFromFile(c.Context, env.store, env.cfg, nil, ops.ImportFileInput{Path: path})
						if err != nil {
							return outputError(err)
						}
						return outputJSON(output)
					}

					if !stdinHasData() {
						return outputError(errors.NewInvalidRequest("profile data must be piped via stdin or given with --path"))
					}
					data, err := readStdin(maxProfileStdin)
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}

					output, err := ops.ImportProfiles(c.Context, env.store, env.cfg, nil, data)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// profileSaveCmd creates or overwrites a profile from a JSON record on stdin,
// or from flags layered over the existing profile (or Default for a new one).
func profileSaveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Create or update a profile (reads a profile record from stdin, or use flags)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Profile name"},
			&cli.StringFlag{Name: "ollama-url", Usage: "Inference server base URL"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model identifier"},
			&cli.StringFlag{Name: "ocr-url", Usage: "OCR endpoint URL"},
			&cli.StringFlag{Name: "languages", Aliases: []string{"l"}, Usage: "Comma-separated OCR languages"},
			&cli.StringFlag{Name: "prompt", Usage: "System prompt"},
			&cli.StringFlag{Name: "regex", Usage: "Post-filter regex"},
			&cli.StringSliceFlag{Name: "include", Usage: "DOM include selector (repeatable)"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "DOM exclude selector (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			var p profile.Profile
			if c.String("name") == "" && stdinHasData() {
				data, err := readStdin(maxProfileStdin)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				if err := json.Unmarshal([]byte(data), &p); err != nil {
					return outputError(errors.NewFormat("Invalid profile format: " + err.Error()))
				}
			} else {
				base, err := saveBase(c.Context, env, c.String("name"))
				if err != nil {
					return outputError(err)
				}
				p = applyProfileFlags(c, *base)
			}

			output, err := ops.SaveProfile(c.Context, env.store, p)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// saveBase returns the profile that flags are applied to.
func saveBase(ctx context.Context, env *appEnv, name string) (*profile.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewInvalidRequest("--name is required (or pipe a profile record via stdin)")
	}

	existing, err := ops.GetProfile(ctx, env.store, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	base, err := ops.ResolveProfile(ctx, env.store, env.cfg, profile.DefaultName)
	if err != nil {
		return nil, err
	}
	fresh := base.Clone()
	fresh.Name = name
	return &fresh, nil
}

func applyProfileFlags(c *cli.Context, p profile.Profile) profile.Profile {
	if c.IsSet("ollama-url") {
		p.InferenceURL = c.String("ollama-url")
	}
	if c.IsSet("model") {
		p.InferenceModel = c.String("model")
	}
	if c.IsSet("ocr-url") {
		p.OCRURL = c.String("ocr-url")
	}
	if c.IsSet("languages") {
		p.OCRLanguages = profile.SplitList(c.String("languages"), ",")
	}
	if c.IsSet("prompt") {
		p.SystemPrompt = c.String("prompt")
	}
	if c.IsSet("regex") {
		p.Filters.Regex = c.String("regex")
	}
	if c.IsSet("include") {
		p.Filters.DOMInclude = c.StringSlice("include")
	}
	if c.IsSet("exclude") {
		p.Filters.DOMExclude = c.StringSlice("exclude")
	}
	return p
}

// profileFlag is shared by the commands that run against a profile.
func profileFlag() cli.Flag {
	return &cli.StringFlag{Name: "profile", Aliases: []string{"P"}, Usage: "Use this profile instead of the current one"}
}

// analyzeCmd captures the screen (or reads an image) and prints the OCR text.
func analyzeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Capture the screen and run OCR",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "Read this image instead of capturing the screen"},
			&cli.IntFlag{Name: "display", Aliases: []string{"d"}, Value: capture.AllDisplays, Usage: "Display index (-1 captures all displays)"},
			profileFlag(),
		},
		Action: func(c *cli.Context) error {
			ctx, cancel, sess, err := commandSession(c, env)
			if err != nil {
				return outputError(err)
			}
			defer cancel()

			output, err := env.orchestrator(capturerFor(c)).AnalyzeScreen(ctx, sess)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// askCmd sends a question with screen text to the model.
func askCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask the model about text (from --ocr-text, stdin, or a fresh screen capture with --analyze)",
		ArgsUsage: "[question]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ocr-text", Aliases: []string{"t"}, Usage: "Text to ask about"},
			&cli.BoolFlag{Name: "analyze", Aliases: []string{"a"}, Usage: "Capture the screen and run OCR first"},
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "With --analyze, read this image instead of capturing the screen"},
			&cli.IntFlag{Name: "display", Aliases: []string{"d"}, Value: capture.AllDisplays, Usage: "With --analyze, the display index"},
			profileFlag(),
		},
		Action: func(c *cli.Context) error {
			ctx, cancel, sess, err := commandSession(c, env)
			if err != nil {
				return outputError(err)
			}
			defer cancel()

			orch := env.orchestrator(capturerFor(c))
			question := strings.Join(c.Args().Slice(), " ")
			var output *ops.AskOutput
			switch {
			case c.Bool("analyze"):
				if _, err := orch.AnalyzeScreen(ctx, sess); err != nil {
					return outputError(err)
				}
				output, err = orch.AskQuestion(ctx, sess, question)
			case c.IsSet("ocr-text"):
				output, err = orch.AskQuestionWith(ctx, sess, c.String("ocr-text"), question)
			case stdinHasData():
				text, readErr := readStdin(maxTextStdin)
				if readErr != nil {
					return outputError(errors.NewInvalidRequest(readErr.Error()))
				}
				output, err = orch.AskQuestionWith(ctx, sess, text, question)
			default:
				output, err = orch.AskQuestion(ctx, sess, question)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// extractCmd prints the full and filtered text of an HTML page, or asks
// about it with --question.
func extractCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Extract page text with the profile's filters (reads HTML from --html or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "html", Usage: "HTML file to read"},
			&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Usage: "Ask the model about the filtered text"},
			profileFlag(),
		},
		Action: func(c *cli.Context) error {
			html, err := readHTML(c.String("html"))
			if err != nil {
				return outputError(err)
			}

			ctx, cancel, sess, err := commandSession(c, env)
			if err != nil {
				return outputError(err)
			}
			defer cancel()

			orch := env.orchestrator(nil)
			if c.IsSet("question") {
				output, err := orch.AskAboutPage(ctx, sess, html, c.String("question"))
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			output, err := orch.ExtractPage(ctx, sess, html)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd runs the message API for browser and desktop clients.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP message API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Usage: "Address to bind (default from config: 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (default from config: 8765)"},
			&cli.IntFlag{Name: "display", Aliases: []string{"d"}, Value: capture.AllDisplays, Usage: "Display index for analyzeScreen"},
		},
		Action: func(c *cli.Context) error {
			bind := env.cfg.ServerBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := env.cfg.ServerPort
			if c.IsSet("port") {
				port = c.Int("port")
			}

			log := env.logger.Component("web")
			orch := env.orchestrator(capture.Screen{Display: c.Int("display")})
			sessions := env.sessionManager()
			dispatcher := message.NewDispatcher(orch, env.cfg.RequestTimeout(), env.logger.Component("message").Logger, env.metrics)
			h := web.NewHandlers(orch, dispatcher, sessions, env.metrics, log.Logger, Version)

			return web.Run(web.NewServer(h, bind, port), sessions, log.Logger)
		},
	}
}

// commandSession returns a one-shot session for a CLI command and a context
// bounded by the request timeout.
func commandSession(c *cli.Context, env *appEnv) (context.Context, context.CancelFunc, *session.Session, error) {
	sess, err := env.newSession(c.Context)
	if err != nil {
		return nil, nil, nil, err
	}
	if name := strings.TrimSpace(c.String("profile")); name != "" {
		sess.SetCurrentProfileName(name)
	}

	if timeout := env.cfg.RequestTimeout(); timeout > 0 {
		ctx, cancel := context.WithTimeout(c.Context, timeout)
		return ctx, cancel, sess, nil
	}
	ctx, cancel := context.WithCancel(c.Context)
	return ctx, cancel, sess, nil
}

// capturerFor picks the image source from the --image and --display flags.
func capturerFor(c *cli.Context) capture.Capturer {
	if path := c.String("image"); path != "" {
		return capture.File{Path: path}
	}
	return capture.Screen{Display: c.Int("display")}
}

// readHTML reads the page from path, or from stdin when path is empty.
func readHTML(path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", errors.NewFileNotFound(path)
			}
			return "", errors.NewInternal(err)
		}
		return string(data), nil
	}

	if !stdinHasData() {
		return "", errors.NewInvalidRequest("html must be piped via stdin or given with --html")
	}
	html, err := readStdin(maxHTMLStdin)
	if err != nil {
		return "", errors.NewInvalidRequest(err.Error())
	}
	return html, nil
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
	var bErr *errors.BackseatError
	if errors.As(err, &bErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", bErr.Code, bErr.Message), 1)
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

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}
