package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	serveradapter "github.com/hylla/todoembed/internal/adapters/server"
	servercommon "github.com/hylla/todoembed/internal/adapters/server/common"
	"github.com/hylla/todoembed/internal/adapters/todoist"
	"github.com/hylla/todoembed/internal/app"
	"github.com/hylla/todoembed/internal/config"
	"github.com/hylla/todoembed/internal/domain"
	"github.com/hylla/todoembed/internal/platform"
	"github.com/hylla/todoembed/internal/render"
	"github.com/hylla/todoembed/internal/tui"
)

// version stores a package-level helper value.
var version = "dev"

// tokenEnv names the environment variable and .env key holding the Todoist token.
const tokenEnv = "TODOIST_TOKEN"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCommand(os.Stdin, os.Stdout, os.Stderr)
	err := fang.Execute(ctx, root, fang.WithVersion(version))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes the command tree without fang styling.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(os.Stdin, stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath string
	token      string
	appName    string
	devMode    bool
}

// newRootCommand builds the todoembed command tree over the given streams.
func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{appName: "todoembed", devMode: version == "dev"}
	if envDev, ok := parseBoolEnv("TODOEMBED_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("TODOEMBED_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:           "todoembed",
		Short:         "Render Todoist task lists embedded in markdown documents",
		Long:          "todoembed renders fenced todoist blocks into task-list widgets, serves them over HTTP and MCP, and browses them in the terminal.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.token, "token", "", "todoist API token (overrides "+tokenEnv+")")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newRenderCommand(opts),
		newViewCommand(opts),
		newServeCommand(opts),
		newCompletionCommand(opts, "complete", true),
		newCompletionCommand(opts, "reopen", false),
		newPathsCommand(opts),
	)
	return root
}

// environment is the resolved runtime shared by commands that talk to Todoist.
type environment struct {
	paths       platform.Paths
	configPath  string
	cfg         config.Config
	logger      *runtimeLogger
	svc         *app.Service
	tokenSource string
}

// Close releases the logger sinks.
func (e *environment) Close(stderr io.Writer) {
	if e == nil || e.logger == nil {
		return
	}
	if err := e.logger.Close(); err != nil && e.logger.shouldLogToSink(e.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// bootstrap resolves paths, config, logging, token and the app service for one command.
// A quiet bootstrap keeps runtime logs off the console and in the dev-file sink only.
func (o *rootOptions) bootstrap(cmd *cobra.Command, command string, quiet bool) (*environment, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: o.appName, DevMode: o.devMode})
	if err != nil {
		return nil, err
	}
	configPath := paths.ResolveConfigPath(o.configPath, os.Getenv)

	cfg, err := config.Load(configPath, config.Default(paths.LogDir))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}

	logger, err := newRuntimeLogger(cmd.ErrOrStderr(), o.appName, o.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.SetConsoleEnabled(!quiet)
	env := &environment{paths: paths, configPath: configPath, cfg: cfg, logger: logger}

	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "env_path", paths.EnvPath, "log_dir", paths.LogDir)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	token, source := resolveToken(o.token, cfg.Todoist.Token, paths.EnvFiles()...)
	env.tokenSource = source

	var remote app.RemoteTaskService
	if token == "" {
		logger.Warn("no todoist token configured; every render reports NO_TOKEN")
	} else {
		timeout, err := cfg.Todoist.TimeoutDuration()
		if err != nil {
			env.Close(cmd.ErrOrStderr())
			return nil, err
		}
		client, err := todoist.NewClient(todoist.Config{
			Token:   token,
			BaseURL: cfg.Todoist.APIBaseURL,
			Timeout: timeout,
		})
		if err != nil {
			env.Close(cmd.ErrOrStderr())
			return nil, fmt.Errorf("configure todoist client: %w", err)
		}
		remote = client
		logger.Info("todoist client ready", "base_url", cfg.Todoist.APIBaseURL, "token_source", source)
	}

	loc, err := cfg.Render.Location()
	if err != nil {
		env.Close(cmd.ErrOrStderr())
		return nil, err
	}
	env.svc = app.NewService(remote, nil, uuid.NewString, time.Now, app.ServiceConfig{
		DefaultSortOrder: domain.SortOrder(strings.ToLower(strings.TrimSpace(cfg.Render.DefaultSortOrder))),
		Location:         loc,
	}, logger)
	logger.Debug("application service initialized", "default_sort_order", cfg.Render.DefaultSortOrder, "timezone", loc.String())
	return env, nil
}

// resolveToken picks the token from the flag, the environment, .env files in order, then config.
// The second result names where the token came from.
func resolveToken(flagToken, configToken string, envFiles ...string) (string, string) {
	if token := strings.TrimSpace(flagToken); token != "" {
		return token, "flag"
	}
	if token := strings.TrimSpace(os.Getenv(tokenEnv)); token != "" {
		return token, "env"
	}
	for _, path := range envFiles {
		if strings.TrimSpace(path) == "" {
			continue
		}
		values, err := godotenv.Read(path)
		if err != nil {
			continue
		}
		if token := strings.TrimSpace(values[tokenEnv]); token != "" {
			return token, path
		}
	}
	if token := strings.TrimSpace(configToken); token != "" {
		return token, "config"
	}
	return "", ""
}

// newRenderCommand builds `todoembed render`.
func newRenderCommand(opts *rootOptions) *cobra.Command {
	var (
		format string
		out    string
		width  int
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Render every todoist block of a markdown document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			src, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			env, err := opts.bootstrap(cmd, "render", false)
			if err != nil {
				return err
			}
			defer env.Close(cmd.ErrOrStderr())
			logger := env.logger
			logger.Info("command flow start", "command", "render", "format", format, "input", path)

			doc := render.NewDocument(env.svc, render.DocumentOptions{
				MaxConcurrent: env.cfg.Render.MaxConcurrentBlocks,
				Logger:        logger,
			})
			ctx := cmd.Context()
			var (
				content string
				blocks  []render.Block
			)
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "html":
				var html []byte
				html, blocks, err = doc.RenderHTML(ctx, src)
				content = string(html)
			case "markdown", "md":
				content, blocks, err = doc.RenderMarkdown(ctx, src)
			case "terminal":
				content, blocks, err = doc.RenderTerminal(ctx, src, width)
			default:
				return fmt.Errorf("unsupported format %q (want html, markdown or terminal)", format)
			}
			if err != nil {
				logger.Error("command flow failed", "command", "render", "err", err)
				return fmt.Errorf("render document: %w", err)
			}
			if err := writeOutput(cmd.OutOrStdout(), out, content); err != nil {
				return err
			}

			failed := 0
			for _, block := range blocks {
				if block.Err != nil {
					failed++
					logger.Warn("block rendered with error", "index", block.Index, "code", domain.ErrorCode(block.Err))
				}
			}
			logger.Info("command flow complete", "command", "render", "blocks", len(blocks), "failed", failed)
			if strict && failed > 0 {
				return fmt.Errorf("%d of %d todoist blocks failed to render", failed, len(blocks))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "html", "output format: html, markdown or terminal")
	cmd.Flags().StringVar(&out, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().IntVar(&width, "width", 80, "wrap width for terminal output")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any block fails to render")
	return cmd
}

// newViewCommand builds `todoembed view`.
func newViewCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "view <config|@file|->",
		Short: "Browse one task-list config interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, title, err := readViewConfig(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			env, err := opts.bootstrap(cmd, "view", true)
			if err != nil {
				return err
			}
			defer env.Close(cmd.ErrOrStderr())
			logger := env.logger
			logger.Info("command flow start", "command", "view")

			keys := env.cfg.Keys
			m := tui.NewModel(env.svc, raw,
				tui.WithTitle(title),
				tui.WithKeyConfig(tui.KeyConfig{
					Toggle:  keys.Toggle,
					Expand:  keys.Expand,
					Refresh: keys.Refresh,
					Copy:    keys.Copy,
				}),
			)
			logger.Info("starting tui program loop")
			if _, err := programFactory(m).Run(); err != nil {
				logger.Error("tui program terminated with error", "err", err)
				return fmt.Errorf("run tui program: %w", err)
			}
			logger.Info("command flow complete", "command", "view")
			return nil
		},
	}
}

// newServeCommand builds `todoembed serve`.
func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the render pipeline over HTTP and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.bootstrap(cmd, "serve", false)
			if err != nil {
				return err
			}
			defer env.Close(cmd.ErrOrStderr())
			logger := env.logger
			ctx := cmd.Context()

			serverCfg := serveradapter.Config{
				HTTPBind:      env.cfg.Server.HTTPBind,
				APIEndpoint:   env.cfg.Server.APIEndpoint,
				MCPEndpoint:   env.cfg.Server.MCPEndpoint,
				ServerName:    opts.appName,
				ServerVersion: version,
			}
			if cmd.Flags().Changed("http") {
				serverCfg.HTTPBind = httpBind
			}
			if cmd.Flags().Changed("api-endpoint") {
				serverCfg.APIEndpoint = apiEndpoint
			}
			if cmd.Flags().Changed("mcp-endpoint") {
				serverCfg.MCPEndpoint = mcpEndpoint
			}

			if env.svc.HasRemote() {
				if err := env.svc.Initialize(ctx); err != nil {
					logger.Warn("startup metadata refresh failed; retrying on first render", "err", err)
				}
			}

			documents := render.NewDocument(env.svc, render.DocumentOptions{
				MaxConcurrent: env.cfg.Render.MaxConcurrentBlocks,
				Logger:        logger,
			})
			adapter := servercommon.NewAppServiceAdapter(env.svc, documents)
			logger.Info("command flow start", "command", "serve", "http", serverCfg.HTTPBind, "api", serverCfg.APIEndpoint, "mcp", serverCfg.MCPEndpoint)
			if err := serveCommandRunner(ctx, serverCfg, serveradapter.Dependencies{
				Service: adapter,
				Logger:  logger,
			}); err != nil {
				logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (default from config)")
	return cmd
}

// newCompletionCommand builds `todoembed complete` or `todoembed reopen`.
func newCompletionCommand(opts *rootOptions, name string, completed bool) *cobra.Command {
	short := "Complete a task"
	if !completed {
		short = "Reopen a completed task"
	}
	return &cobra.Command{
		Use:   name + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			env, err := opts.bootstrap(cmd, name, false)
			if err != nil {
				return err
			}
			defer env.Close(cmd.ErrOrStderr())

			if err := env.svc.SetTaskCompletion(cmd.Context(), id, completed); err != nil {
				return fmt.Errorf("%s task %d: %s: %w", name, id, domain.UserMessage(err), err)
			}
			verb := "completed"
			if !completed {
				verb = "reopened"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s task %d\n", verb, id)
			return nil
		},
	}
}

// newPathsCommand builds `todoembed paths`.
func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, .env and log paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(stdout, "env: %s\n", paths.EnvPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		if stdin == nil {
			return nil, errors.New("no stdin available")
		}
		content, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return content, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	return content, nil
}

// readViewConfig accepts inline JSON, @path or - and returns the config bytes plus a viewer title.
func readViewConfig(stdin io.Reader, arg string) ([]byte, string, error) {
	arg = strings.TrimSpace(arg)
	switch {
	case arg == "-":
		raw, err := readInput(stdin, "-")
		return raw, "", err
	case strings.HasPrefix(arg, "@"):
		path := strings.TrimPrefix(arg, "@")
		raw, err := readInput(stdin, path)
		return raw, filepath.Base(path), err
	case arg == "":
		return nil, "", errors.New("view config is required")
	default:
		return []byte(arg), "", nil
	}
}

// writeOutput writes content to stdout when outPath is "-", else to the file.
func writeOutput(stdout io.Writer, outPath, content string) error {
	if outPath == "" || outPath == "-" {
		if _, err := io.WriteString(stdout, content); err != nil {
			return fmt.Errorf("write output to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// parseBoolEnv parses a boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
