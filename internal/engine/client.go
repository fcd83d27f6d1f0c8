// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/enginedesk/enginedesk/internal/notify"
	"github.com/enginedesk/enginedesk/pkg/platform"
)

const (
	// DefaultAPITimeout bounds the /_ping health request.
	DefaultAPITimeout = 3000 * time.Millisecond

	podmanBaseURL = "http://d/v4.0.0/libpod"
	dockerBaseURL = "http://localhost"

	fallbackDataDir = "$HOME/.local/share"
)

type (
	// HostClient is the full surface a host-shape variant exposes. Variants
	// implement the shape primitives; the embedded *Client supplies the rest.
	HostClient interface {
		ID() string
		Engine() Engine
		Host() Host
		Label() string
		Connection() Connection

		Settings() Settings
		SetSettings(settings Settings)
		AutomaticSettings(ctx context.Context) Settings

		IsEngineAvailable(ctx context.Context) AvailabilityCheck
		Availability(ctx context.Context, custom *Settings) Availability
		IsAPIRunning(ctx context.Context) AvailabilityCheck
		APIConnection(ctx context.Context, settings Settings) (APIConnection, error)
		StartAPI(ctx context.Context, custom *Settings) (StartupStatus, error)
		StopAPI(ctx context.Context) (bool, error)

		IsScoped() bool
		ControllerScopes(ctx context.Context, settings Settings) ([]ControllerScope, error)
		ControllerDefaultScope(ctx context.Context, settings Settings) (*ControllerScope, error)
		StartScope(ctx context.Context, scope ControllerScope) (StartupStatus, error)
		StopScope(ctx context.Context, scope ControllerScope) (bool, error)
		StartScopeByName(ctx context.Context, name string) (StartupStatus, error)
		StopScopeByName(ctx context.Context, name string) (bool, error)
		ShouldKeepStartedScopeRunning() bool

		RunHostCommand(ctx context.Context, program string, args ...string) CommandResult
		RunScopeCommand(ctx context.Context, program string, args []string, scope string) CommandResult
		ScopeEnvironmentVariable(ctx context.Context, scope, name string) string
		FindHostProgram(ctx context.Context, program Program) Program
		FindHostProgramVersion(ctx context.Context, program Program) string
		FindScopeProgram(ctx context.Context, program Program, custom *Settings) Program
		FindScopeProgramVersion(ctx context.Context, program Program, custom *Settings) string
		ConnectionDataDir(ctx context.Context) string

		SystemInfo(ctx context.Context, format string) SystemInfo
		PruneSystem(ctx context.Context, opts *PruneOptions) (PruneReport, error)
		ResetSystem(ctx context.Context) (ResetReport, error)
		EventsStream(ctx context.Context) (<-chan Event, <-chan error, error)
		ContainerAPIClient() (APIDriver, error)
		ResetContainerAPIClient()
		SetLogLevel(level log.Level)
	}

	// shape is implemented by every host-shape variant.
	shape interface {
		IsEngineAvailable(ctx context.Context) AvailabilityCheck
		IsScoped() bool
		ControllerScopes(ctx context.Context, settings Settings) ([]ControllerScope, error)
		ControllerDefaultScope(ctx context.Context, settings Settings) (*ControllerScope, error)
		StartScope(ctx context.Context, scope ControllerScope) (StartupStatus, error)
		StopScope(ctx context.Context, scope ControllerScope) (bool, error)
		ShouldKeepStartedScopeRunning() bool
		APIConnection(ctx context.Context, settings Settings) (APIConnection, error)
		RunScopeCommand(ctx context.Context, program string, args []string, scope string) CommandResult
		apiLaunch(ctx context.Context, settings Settings) (Launch, error)
	}

	// hostEnvProvider is implemented by shapes whose host commands need extra
	// environment, such as the remote connection selector.
	hostEnvProvider interface {
		hostCommandEnv(settings Settings) []string
	}

	// Option configures a Client.
	Option func(*Client)

	// Client is the shape-agnostic helper embedded by every variant. It owns
	// the connection settings and the lazily created API driver.
	Client struct {
		id         string
		engine     Engine
		host       Host
		label      string
		program    string
		controller string

		env        platform.Environment
		os         platform.OperatingSystem
		exec       Executor
		launcher   Launcher
		fileExists func(string) bool
		notifier   notify.Sink
		services   *ServiceRegistry
		newDriver  DriverFactory
		logger     *log.Logger
		apiTimeout time.Duration

		mu        sync.RWMutex
		settings  Settings
		apiClient APIDriver

		runner     *Runner
		apiStarted atomic.Bool

		shape shape
	}
)

// WithExecutor sets the host process executor.
func WithExecutor(exec Executor) Option {
	return func(c *Client) { c.exec = exec }
}

// WithLauncher sets the long-running process launcher used by the Runner.
func WithLauncher(l Launcher) Option {
	return func(c *Client) { c.launcher = l }
}

// WithEnvironment sets the platform environment; its OS becomes the host OS.
func WithEnvironment(env platform.Environment) Option {
	return func(c *Client) { c.env = env }
}

// WithFileExists overrides the filesystem presence check.
func WithFileExists(fn func(string) bool) Option {
	return func(c *Client) { c.fileExists = fn }
}

// WithNotifier sets the progress trace sink.
func WithNotifier(sink notify.Sink) Option {
	return func(c *Client) { c.notifier = sink }
}

// WithServices shares a connection services registry across clients.
func WithServices(r *ServiceRegistry) Option {
	return func(c *Client) { c.services = r }
}

// WithDriverFactory sets how API drivers are created for a connection.
func WithDriverFactory(f DriverFactory) Option {
	return func(c *Client) { c.newDriver = f }
}

// WithLogger sets the base logger; the client derives a connection scoped one.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithAPITimeout overrides the health check timeout.
func WithAPITimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.apiTimeout = d
		}
	}
}

// newClient builds the shared helper for a variant. controller is empty for
// unscoped shapes.
func newClient(id string, host Host, label, controller string, s shape, opts ...Option) *Client {
	engine := host.Engine()
	c := &Client{
		id:         id,
		engine:     engine,
		host:       host,
		label:      label,
		program:    string(engine),
		controller: controller,
		fileExists: fileExists,
		notifier:   notify.Nop{},
		apiTimeout: DefaultAPITimeout,
		shape:      s,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.env == nil {
		c.env = platform.NewHostEnvironment()
	}
	c.os = c.env.OS()
	if c.exec == nil {
		c.exec = NewHostExecutor()
	}
	if c.launcher == nil {
		if l, ok := c.exec.(Launcher); ok {
			c.launcher = l
		} else {
			c.launcher = NewHostExecutor()
		}
	}
	if c.services == nil {
		c.services = NewServiceRegistry()
	}
	if c.logger == nil {
		c.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "engine"})
	}
	c.logger = c.logger.With("connection", id, "host", string(host))
	c.settings = DefaultSettings(engine)
	c.runner = newRunner(c)
	return c
}

// DefaultSettings returns the initial automatic settings for an engine family.
func DefaultSettings(engine Engine) Settings {
	baseURL := dockerBaseURL
	if engine == Podman {
		baseURL = podmanBaseURL
	}
	return Settings{
		API:     APISettings{BaseURL: baseURL},
		Program: Program{Name: string(engine), Path: string(engine)},
		Mode:    ModeAutomatic,
	}
}

// ID returns the connection id this client serves.
func (c *Client) ID() string { return c.id }

// Engine returns the engine family.
func (c *Client) Engine() Engine { return c.engine }

// Host returns the connector host.
func (c *Client) Host() Host { return c.host }

// Label returns the display name of the connector.
func (c *Client) Label() string { return c.label }

// Logger returns the connection scoped logger.
func (c *Client) Logger() *log.Logger { return c.logger }

// SetLogLevel changes the client's log level.
func (c *Client) SetLogLevel(level log.Level) {
	c.logger.SetLevel(level)
}

// Settings returns a copy of the current settings.
func (c *Client) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Clone()
}

// SetSettings replaces the settings wholesale. The cached API driver is kept;
// call ResetContainerAPIClient after changing the API connection.
func (c *Client) SetSettings(settings Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings.Clone()
}

func (c *Client) resolve(custom *Settings) Settings {
	if custom != nil {
		return custom.Clone()
	}
	return c.Settings()
}

func (c *Client) trace(msg string) {
	notify.Trace(c.notifier, msg)
}

// IsScoped reports whether commands run inside a controller scope.
func (c *Client) IsScoped() bool { return c.shape.IsScoped() }

// AutomaticSettings runs detection over a copy of the current settings and
// returns the result. Every stage is best effort: failures are logged and
// detection continues with partial results.
func (c *Client) AutomaticSettings(ctx context.Context) Settings {
	c.logger.Debug("settings are in automatic mode - detecting")
	settings := c.Settings()

	if c.shape.IsScoped() {
		existingScope := settings.Scope()
		controller := c.FindHostProgram(ctx, Program{Name: c.controller})
		settings.Controller = &Controller{Program: controller, Scope: existingScope}

		if existingScope == "" {
			defaultScope, err := c.shape.ControllerDefaultScope(ctx, settings)
			switch {
			case err != nil:
				c.logger.Error("unable to get default scope", "operation", "getAutomaticSettings", "err", err)
			case defaultScope == nil:
				c.logger.Error("no default scope found - program will not be detected")
			default:
				c.logger.Debug("default scope detected", "scope", defaultScope.Name)
				settings.Controller.Scope = defaultScope.Name
				if defaultScope.Usable {
					settings.Program = c.FindScopeProgram(ctx, Program{Name: c.program}, &settings)
				} else {
					c.logger.Warn("default scope is not usable - program will not be detected", "scope", defaultScope.Name)
				}
			}
		} else {
			settings.Program = c.FindScopeProgram(ctx, Program{Name: c.program}, &settings)
			if settings.Program.Path == "" {
				c.logger.Error("unable to get scope program", "scope", existingScope)
			}
		}
	} else {
		settings.Program = c.FindHostProgram(ctx, Program{Name: c.program})
	}

	api, err := c.shape.APIConnection(ctx, settings)
	if err != nil {
		c.logger.Error("unable to get api connection", "operation", "getAutomaticSettings", "err", err)
	} else {
		settings.API.Connection = api
	}
	return settings
}

// EnsureSettings refreshes automatic settings in place. Manual settings are
// returned untouched without running any detection.
func EnsureSettings(ctx context.Context, client HostClient) Settings {
	current := client.Settings()
	if !current.IsAutomatic() {
		return current
	}
	detected := client.AutomaticSettings(ctx)
	client.SetSettings(detected)
	return detected
}

// RunHostCommand runs a program on the host, adding the Windows .exe suffix.
func (c *Client) RunHostCommand(ctx context.Context, program string, args ...string) CommandResult {
	return c.runHost(ctx, c.Settings(), program, args)
}

func (c *Client) runHost(ctx context.Context, settings Settings, program string, args []string) CommandResult {
	cmd := Command{Program: hostProgram(c.os, program), Args: args}
	if p, ok := c.shape.(hostEnvProvider); ok {
		cmd.Env = p.hostCommandEnv(settings)
	}
	c.logger.Debug(">> running host command", "command", cmd.CommandLine())
	result := c.exec.Execute(ctx, cmd)
	c.logger.Debug("<< running host command", "command", cmd.CommandLine(), "success", result.Success, "code", result.Code, "stderr", result.Stderr)
	return result
}

// RunScopeCommand runs a program inside scope through the shape's controller.
func (c *Client) RunScopeCommand(ctx context.Context, program string, args []string, scope string) CommandResult {
	return c.shape.RunScopeCommand(ctx, program, args, scope)
}

// run dispatches to the scope or the host depending on the shape.
func (c *Client) run(ctx context.Context, settings Settings, program string, args []string) CommandResult {
	if c.shape.IsScoped() {
		return c.shape.RunScopeCommand(ctx, program, args, settings.Scope())
	}
	return c.runHost(ctx, settings, program, args)
}

func (c *Client) hostExecutor() Executor {
	return ExecutorFunc(func(ctx context.Context, cmd Command) CommandResult {
		return c.RunHostCommand(ctx, cmd.Program, cmd.Args...)
	})
}

func (c *Client) scopeExecutor(scope string) Executor {
	return ExecutorFunc(func(ctx context.Context, cmd Command) CommandResult {
		return c.shape.RunScopeCommand(ctx, cmd.Program, cmd.Args, scope)
	})
}

// FindHostProgram resolves program on the host.
func (c *Client) FindHostProgram(ctx context.Context, program Program) Program {
	c.trace("Detecting host " + program.Name + " program path and version")
	return NewProgramDetector(c.hostExecutor(), c.os).Find(ctx, program)
}

// FindHostProgramVersion re-reads the version of an already known host path.
func (c *Client) FindHostProgramVersion(ctx context.Context, program Program) string {
	return NewProgramDetector(c.hostExecutor(), c.os).FindVersion(ctx, program.Path)
}

// FindScopeProgram resolves program inside the settings' scope. Scopes always
// run a Linux guest.
func (c *Client) FindScopeProgram(ctx context.Context, program Program, custom *Settings) Program {
	c.trace("Detecting guest " + program.Name + " program path and version")
	settings := c.resolve(custom)
	return NewProgramDetector(c.scopeExecutor(settings.Scope()), platform.Linux).Find(ctx, program)
}

// FindScopeProgramVersion re-reads the version of an already known guest path.
func (c *Client) FindScopeProgramVersion(ctx context.Context, program Program, custom *Settings) string {
	settings := c.resolve(custom)
	return NewProgramDetector(c.scopeExecutor(settings.Scope()), platform.Linux).FindVersion(ctx, program.Path)
}

// ScopeEnvironmentVariable reads name inside scope with printenv. Unscoped
// shapes read the host environment instead.
func (c *Client) ScopeEnvironmentVariable(ctx context.Context, scope, name string) string {
	if !c.shape.IsScoped() {
		return c.env.Getenv(name)
	}
	if scope == "" {
		scope = c.Settings().Scope()
	}
	if scope == "" {
		c.logger.Error("controller scope is not defined", "variable", name)
		return ""
	}
	result := c.shape.RunScopeCommand(ctx, "printenv", []string{name}, scope)
	if !result.Success {
		c.logger.Error("scoped environment variable could not be read", "scope", scope, "variable", name, "code", result.Code)
		return ""
	}
	return strings.TrimSpace(result.Stdout)
}

// ConnectionDataDir resolves the engine's data directory where it runs.
func (c *Client) ConnectionDataDir(ctx context.Context) string {
	c.trace("Detecting connection system data dir")
	settings := c.Settings()
	scope := settings.Scope()

	var dir string
	switch {
	case !c.shape.IsScoped() || scope != "":
		dir = c.ScopeEnvironmentVariable(ctx, scope, "XDG_DATA_HOME")
		if dir == "" {
			c.logger.Debug("XDG_DATA_HOME is not set - using HOME")
			if home := c.ScopeEnvironmentVariable(ctx, scope, "HOME"); home != "" {
				dir = path.Join(home, ".local", "share")
			} else {
				c.logger.Error("unable to get connection data dir using HOME")
			}
		}
	case c.host == PodmanVirtualizedVendor:
		userData, err := c.env.UserDataPath()
		if err != nil {
			c.logger.Error("unable to get user data path", "err", err)
		}
		dir = userData
	default:
		c.logger.Error("controller scope is not defined")
	}

	if dir == "" {
		dir = fallbackDataDir
	}
	c.logger.Debug("connection data dir", "dir", dir)
	return dir
}

// StartScopeByName looks the scope up and starts it.
func (c *Client) StartScopeByName(ctx context.Context, name string) (StartupStatus, error) {
	scope, err := c.findScope(ctx, name)
	if err != nil {
		return StartupStatusError, err
	}
	return c.shape.StartScope(ctx, scope)
}

// StopScopeByName looks the scope up and stops it.
func (c *Client) StopScopeByName(ctx context.Context, name string) (bool, error) {
	scope, err := c.findScope(ctx, name)
	if err != nil {
		return false, err
	}
	return c.shape.StopScope(ctx, scope)
}

func (c *Client) findScope(ctx context.Context, name string) (ControllerScope, error) {
	if !c.shape.IsScoped() {
		return ControllerScope{}, ErrNotScoped
	}
	scopes, err := c.shape.ControllerScopes(ctx, c.Settings())
	if err != nil {
		return ControllerScope{}, err
	}
	for _, scope := range scopes {
		if scope.Name == name {
			return scope, nil
		}
	}
	return ControllerScope{}, &ScopeNotFoundError{Name: name}
}

// SystemInfo returns `system info --format <format>` decoded as JSON. Any
// failure is logged and yields an empty SystemInfo.
func (c *Client) SystemInfo(ctx context.Context, format string) SystemInfo {
	if format == "" {
		format = "json"
	}
	settings := c.Settings()
	info := SystemInfo{}
	result := c.run(ctx, settings, settings.ProgramPath(), []string{"system", "info", "--format", format})
	if !result.Success {
		c.logger.Error("unable to get system info", "operation", "getSystemInfo", "code", result.Code, "stderr", result.Stderr)
		return info
	}
	if strings.TrimSpace(result.Stdout) == "" {
		return info
	}
	if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
		c.logger.Error("unable to decode system info", "operation", "getSystemInfo", "err", err)
		return SystemInfo{}
	}
	return info
}

// PruneSystem runs `system prune`. A nil opts uses DefaultPruneOptions.
func (c *Client) PruneSystem(ctx context.Context, opts *PruneOptions) (PruneReport, error) {
	input := DefaultPruneOptions()
	if opts != nil {
		input = *opts
	}
	settings := c.Settings()
	result := c.run(ctx, settings, settings.ProgramPath(), PruneArgs(input))
	if !result.Success {
		c.logger.Error("system prune error", "operation", "pruneSystem", "code", result.Code, "stderr", result.Stderr)
		return PruneReport{}, &CommandError{Op: "pruneSystem", Result: result, Err: ErrPruneFailed}
	}
	c.logger.Debug("system prune complete")
	return PruneReport{}, nil
}

// ResetSystem runs `system reset`. Docker has no reset and returns a
// NotApplicable report without running anything.
func (c *Client) ResetSystem(ctx context.Context) (ResetReport, error) {
	if c.engine == Docker {
		c.logger.Debug("no such concept for current host - skipping reset")
		return ResetReport{NotApplicable: true}, nil
	}
	settings := c.Settings()
	result := c.run(ctx, settings, settings.ProgramPath(), []string{"system", "reset", "--force", "--log-level=debug"})
	if !result.Success {
		c.logger.Error("system reset error", "operation", "resetSystem", "code", result.Code, "stderr", result.Stderr)
		return ResetReport{}, &CommandError{Op: "resetSystem", Result: result, Err: ErrResetFailed}
	}

	report := ResetReport{Data: map[string]any{}}
	stdout := strings.TrimSpace(result.Stdout)
	if stdout == "" {
		return report, nil
	}
	if err := json.Unmarshal([]byte(stdout), &report.Data); err != nil {
		c.logger.Error("unable to decode system reset report", "operation", "resetSystem", "err", err)
		report.Data = map[string]any{}
	}
	return report, nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
