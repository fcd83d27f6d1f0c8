// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"

	"github.com/enginedesk/enginedesk/internal/config"
	"github.com/enginedesk/enginedesk/internal/engine"
	"github.com/enginedesk/enginedesk/internal/engineapi"
	"github.com/enginedesk/enginedesk/internal/issue"
	"github.com/enginedesk/enginedesk/internal/notify"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// App is the composition root of the CLI. Command handlers resolve
	// connections through it and never build host clients themselves.
	App struct {
		Config ConfigProvider

		stdout   io.Writer
		stderr   io.Writer
		logger   *log.Logger
		bus      *notify.Bus
		driver   engine.DriverFactory
		executor engine.Executor
		launcher engine.Launcher

		verbose    bool
		jsonOutput bool
		cfgFile    string
		configDir  string

		cfg        *config.Config
		pool       *engine.Pool
		stopTraces func()
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   ConfigProvider
		Driver   engine.DriverFactory
		Executor engine.Executor
		Launcher engine.Launcher
		Stdout   io.Writer
		Stderr   io.Writer
		// ConfigDir overrides the platform config directory.
		ConfigDir string
	}
)

// NewApp builds an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:    deps.Config,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
		driver:    deps.Driver,
		executor:  deps.Executor,
		launcher:  deps.Launcher,
		configDir: deps.ConfigDir,
		bus:       notify.NewBus(),
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	if app.driver == nil {
		app.driver = engineapi.NewDriver
	}
	app.logger = log.NewWithOptions(app.stderr, log.Options{Prefix: "engine"})
	return app
}

// setup loads the configuration and builds the client pool. It runs before
// every command.
func (a *App) setup(ctx context.Context) error {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.cfgFile, ConfigDirPath: a.configDir})
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := log.DebugLevel
	if !a.verbose {
		if level, err = log.ParseLevel(cfg.LogLevel); err != nil {
			a.logger.Warn("invalid log level, using info", "log_level", cfg.LogLevel)
			level = log.InfoLevel
		}
	}
	a.logger.SetLevel(level)

	if a.verbose {
		traces, cancel := a.bus.Subscribe(notify.ChannelAvailability, 0)
		a.stopTraces = cancel
		go func() {
			for msg := range traces {
				fmt.Fprintln(a.stderr, VerboseStyle.Render("• "+msg.Trace))
			}
		}()
	}

	opts := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithNotifier(a.bus),
		engine.WithDriverFactory(a.driver),
		engine.WithAPITimeout(cfg.APITimeout()),
	}
	if a.executor != nil {
		opts = append(opts, engine.WithExecutor(a.executor))
	}
	if a.launcher != nil {
		opts = append(opts, engine.WithLauncher(a.launcher))
	}
	a.pool = engine.NewPool(opts...)
	return nil
}

func (a *App) teardown() {
	if a.stopTraces != nil {
		a.stopTraces()
		a.stopTraces = nil
	}
}

// connection resolves ref (id or name, empty for the default) to its
// configuration and a host client with detected settings.
func (a *App) connection(ctx context.Context, ref string) (config.Connection, engine.HostClient, error) {
	conn, ok := a.cfg.Find(ref)
	if !ok {
		return config.Connection{}, nil, issue.NewErrorContext().
			WithOperation("find connection").
			WithResource(ref).
			WithSuggestion("Run 'enginedesk connections list' to see configured connections").
			WithSuggestion("Set default_connection in the config file to omit the argument").
			WithIssue(issue.ConnectionNotFoundId).
			BuildError()
	}
	client, err := a.pool.Client(conn.ToEngine())
	if err != nil {
		return conn, nil, issue.WrapWithContext(err, "create host client", conn.Name)
	}
	engine.EnsureSettings(ctx, client)
	return conn, client, nil
}

// printJSON writes v as indented JSON.
func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printMarkdown renders md with glamour, falling back to the raw text.
func (a *App) printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Fprint(a.stdout, out)
			return
		}
	}
	a.logger.Debug("markdown rendering failed", "err", err)
	fmt.Fprint(a.stdout, md)
}
