// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Podman is the Podman engine family.
	Podman Engine = "podman"
	// Docker is the Docker engine family.
	Docker Engine = "docker"

	// ModeAutomatic settings are re-derived by detection on every refresh.
	ModeAutomatic Mode = "mode.automatic"
	// ModeManual settings are user authoritative and never overwritten.
	ModeManual Mode = "mode.manual"

	// ShapeNative runs the engine directly on the host.
	ShapeNative Shape = "native"
	// ShapeVirtualized runs the engine inside a VM managed by a controller.
	ShapeVirtualized Shape = "virtualized"
	// ShapeWSL runs the engine inside a WSL distribution.
	ShapeWSL Shape = "wsl"
	// ShapeLIMA runs the engine inside a LIMA instance.
	ShapeLIMA Shape = "lima"
	// ShapeRemote talks to an engine on another machine over SSH.
	ShapeRemote Shape = "remote"

	// Connector hosts, named <engine>.<shape>.
	PodmanNative            Host = "podman.native"
	PodmanVirtualized       Host = "podman.virtualized"
	PodmanVirtualizedVendor Host = "podman.virtualized.vendor"
	PodmanWSL               Host = "podman.subsystem.wsl"
	PodmanLIMA              Host = "podman.subsystem.lima"
	PodmanRemote            Host = "podman.remote"
	DockerNative            Host = "docker.native"
	DockerVirtualizedVendor Host = "docker.virtualized.vendor"
	DockerWSL               Host = "docker.subsystem.wsl"
	DockerLIMA              Host = "docker.subsystem.lima"
	DockerRemote            Host = "docker.remote"

	// StartupStatusStarted means the scope or API was started by this call.
	StartupStatusStarted StartupStatus = "started"
	// StartupStatusRunning means the scope or API was already running.
	StartupStatusRunning StartupStatus = "running"
	// StartupStatusError means the scope or API could not be started.
	StartupStatusError StartupStatus = "error"
)

var (
	// ErrInvalidEngine is the sentinel error wrapped by InvalidEngineError.
	ErrInvalidEngine = errors.New("invalid engine")
	// ErrInvalidMode is returned when a Mode value is not recognized.
	ErrInvalidMode = errors.New("invalid settings mode")
)

type (
	// Engine is a container runtime family.
	Engine string

	// InvalidEngineError is returned when an Engine value is not recognized.
	InvalidEngineError struct {
		Value Engine
	}

	// Host names one connector: an engine family running in one host shape.
	Host string

	// Shape is the topology a host runs in.
	Shape string

	// Mode selects who owns a connection's settings.
	Mode string

	// StartupStatus is the outcome of starting a scope or an engine API.
	StartupStatus string

	// Program is an executable identity. Path is empty until detected and
	// Version is free form, parsed from --version output.
	Program struct {
		Name    string `json:"name"`
		Path    string `json:"path"`
		Version string `json:"version"`
	}

	// APIConnection is the resolved engine API address. Relay is set when the
	// real socket is only reachable from inside a scope or a remote machine.
	APIConnection struct {
		URI   string `json:"uri"`
		Relay string `json:"relay,omitempty"`
	}

	// APISettings configures how the engine API is reached.
	APISettings struct {
		BaseURL    string        `json:"baseURL"`
		Connection APIConnection `json:"connection"`
		AutoStart  bool          `json:"autoStart"`
	}

	// Controller is the program managing scopes plus the selected scope.
	Controller struct {
		Program
		Scope string `json:"scope"`
	}

	// Settings is everything a HostClient needs to reach its engine.
	Settings struct {
		API        APISettings `json:"api"`
		Program    Program     `json:"program"`
		Controller *Controller `json:"controller,omitempty"`
		Rootfull   bool        `json:"rootfull"`
		Mode       Mode        `json:"mode"`
	}

	// ControllerScope is one guest environment a controller can operate.
	ControllerScope struct {
		Name    string `json:"Name"`
		Usable  bool   `json:"Usable"`
		State   string `json:"State,omitempty"`
		Default bool   `json:"Default,omitempty"`
		// Dir is the instance directory on the host, when the controller exposes one.
		Dir string `json:"Dir,omitempty"`
		// URI and Identity describe remote destinations.
		URI      string `json:"URI,omitempty"`
		Identity string `json:"Identity,omitempty"`
	}

	// Connection is one configured connector instance.
	Connection struct {
		ID       string   `json:"id"`
		Name     string   `json:"name"`
		Label    string   `json:"label"`
		Engine   Engine   `json:"engine"`
		Host     Host     `json:"host"`
		Settings Settings `json:"settings"`
	}

	// CommandResult is the outcome of a spawned process. Success is true only
	// when the process ran and exited with code 0.
	CommandResult struct {
		Success bool   `json:"success"`
		Code    int    `json:"code"`
		Stdout  string `json:"stdout"`
		Stderr  string `json:"stderr"`
	}

	// PruneOptions selects what `system prune` removes.
	PruneOptions struct {
		All     bool
		Filter  map[string]string
		Force   bool
		Volumes bool
	}

	// SystemInfo is the engine's `system info` document.
	SystemInfo map[string]any

	// PruneReport describes what a prune removed. The CLI output is not
	// structured so the report is currently always empty.
	PruneReport struct{}

	// ResetReport is the decoded `system reset` output. NotApplicable is set
	// for engine families without a reset concept.
	ResetReport struct {
		NotApplicable bool
		Data          map[string]any
	}
)

// Validate returns nil for known engine families.
func (e Engine) Validate() error {
	switch e {
	case Podman, Docker:
		return nil
	default:
		return &InvalidEngineError{Value: e}
	}
}

// Error implements the error interface.
func (e *InvalidEngineError) Error() string {
	return fmt.Sprintf("invalid engine %q (valid: podman, docker)", e.Value)
}

// Unwrap returns ErrInvalidEngine for errors.Is() compatibility.
func (e *InvalidEngineError) Unwrap() error { return ErrInvalidEngine }

// Validate returns nil for known modes. The empty mode is treated as automatic.
func (m Mode) Validate() error {
	switch m {
	case ModeAutomatic, ModeManual, "":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, string(m))
	}
}

// Engine returns the family prefix of the host name.
func (h Host) Engine() Engine {
	engine, _, _ := strings.Cut(string(h), ".")
	return Engine(engine)
}

// Shape returns the topology of the host.
func (h Host) Shape() Shape {
	switch h {
	case PodmanNative, DockerNative, DockerVirtualizedVendor:
		return ShapeNative
	case PodmanVirtualized, PodmanVirtualizedVendor:
		return ShapeVirtualized
	case PodmanWSL, DockerWSL:
		return ShapeWSL
	case PodmanLIMA, DockerLIMA:
		return ShapeLIMA
	case PodmanRemote, DockerRemote:
		return ShapeRemote
	default:
		return ""
	}
}

// IsAutomatic reports whether detection owns the settings.
func (s Settings) IsAutomatic() bool {
	return s.Mode == ModeAutomatic || s.Mode == ""
}

// Scope returns the selected controller scope, or "".
func (s Settings) Scope() string {
	if s.Controller == nil {
		return ""
	}
	return s.Controller.Scope
}

// ProgramPath returns the program path, falling back to its name.
func (s Settings) ProgramPath() string {
	if s.Program.Path != "" {
		return s.Program.Path
	}
	return s.Program.Name
}

// Clone returns a deep copy so callers never share a Controller pointer.
func (s Settings) Clone() Settings {
	out := s
	if s.Controller != nil {
		c := *s.Controller
		out.Controller = &c
	}
	return out
}

// DefaultPruneOptions removes everything unused except volumes.
func DefaultPruneOptions() PruneOptions {
	return PruneOptions{All: true, Force: true, Filter: map[string]string{}}
}
