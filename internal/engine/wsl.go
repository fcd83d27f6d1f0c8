// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/enginedesk/enginedesk/internal/relay"
	"github.com/enginedesk/enginedesk/pkg/platform"
)

const (
	wslController  = "wsl"
	wslPipePrefix  = `\\.\pipe\` + platform.AppName + "-"
	wslDockerVMPre = "docker-desktop"
)

type (
	// WSLClient reaches an engine installed inside a WSL distribution. The
	// API is exposed on the host through a named pipe relayed into the guest
	// socket.
	WSLClient struct {
		*Client
	}
)

// NewPodmanWSL creates a client for Podman inside a WSL distribution.
func NewPodmanWSL(id string, opts ...Option) *WSLClient {
	w := &WSLClient{}
	w.Client = newClient(id, PodmanWSL, "WSL", wslController, w, opts...)
	return w
}

// NewDockerWSL creates a client for Docker inside a WSL distribution.
func NewDockerWSL(id string, opts ...Option) *WSLClient {
	w := &WSLClient{}
	w.Client = newClient(id, DockerWSL, "WSL", wslController, w, opts...)
	return w
}

// IsEngineAvailable is true on Windows only.
func (w *WSLClient) IsEngineAvailable(context.Context) AvailabilityCheck {
	return platformCheck(w.os, []platform.OperatingSystem{platform.Windows})
}

// IsScoped is true: commands run inside a distribution.
func (w *WSLClient) IsScoped() bool { return true }

// ControllerScopes lists WSL distributions, excluding Docker Desktop's own.
func (w *WSLClient) ControllerScopes(ctx context.Context, settings Settings) ([]ControllerScope, error) {
	result := w.runController(ctx, settings, "--list", "--verbose")
	if !result.Success {
		return nil, &CommandError{Op: "listScopes", Result: result, Err: ErrScopeListFailed}
	}
	return parseWSLList(decodeWSLOutput(result.Stdout)), nil
}

// ControllerDefaultScope returns the default distribution.
func (w *WSLClient) ControllerDefaultScope(ctx context.Context, settings Settings) (*ControllerScope, error) {
	scopes, err := w.ControllerScopes(ctx, settings)
	if err != nil {
		return nil, err
	}
	return defaultScope(scopes), nil
}

// StartScope boots a distribution by running a no-op inside it.
func (w *WSLClient) StartScope(ctx context.Context, scope ControllerScope) (StartupStatus, error) {
	if !scope.Usable {
		return StartupStatusError, fmt.Errorf("%w: %s is not a WSL 2 distribution", ErrScopeStartFailed, scope.Name)
	}
	if strings.EqualFold(scope.State, "running") {
		return StartupStatusRunning, nil
	}
	result := w.runController(ctx, w.Settings(), "--distribution", scope.Name, "--exec", "true")
	if !result.Success {
		return StartupStatusError, &CommandError{Op: "startScope", Result: result, Err: ErrScopeStartFailed}
	}
	return StartupStatusStarted, nil
}

// StopScope terminates a distribution.
func (w *WSLClient) StopScope(ctx context.Context, scope ControllerScope) (bool, error) {
	result := w.runController(ctx, w.Settings(), "--terminate", scope.Name)
	if !result.Success {
		return false, &CommandError{Op: "stopScope", Result: result, Err: ErrScopeStopFailed}
	}
	return true, nil
}

// ShouldKeepStartedScopeRunning is true: distributions are shared with the
// user's shells.
func (w *WSLClient) ShouldKeepStartedScopeRunning() bool { return true }

// RunScopeCommand runs program inside the distribution without a shell.
func (w *WSLClient) RunScopeCommand(ctx context.Context, program string, args []string, scope string) CommandResult {
	return w.runController(ctx, w.Settings(), wslExecArgs(scope, program, args...)...)
}

// APIConnection returns the host pipe and the guest socket it relays to.
func (w *WSLClient) APIConnection(ctx context.Context, settings Settings) (APIConnection, error) {
	scope := settings.Scope()
	if scope == "" {
		return APIConnection{}, fmt.Errorf("%w: no distribution selected", ErrScopeNotFound)
	}
	guest, err := w.guestSocket(ctx, settings)
	if err != nil {
		return APIConnection{}, err
	}
	return APIConnection{
		URI:   wslPipePrefix + string(w.engine) + "-" + scope,
		Relay: guest,
	}, nil
}

func (w *WSLClient) guestSocket(ctx context.Context, settings Settings) (string, error) {
	if w.engine == Docker {
		return dockerSocket, nil
	}
	if settings.Rootfull {
		return podmanRootfulSocket, nil
	}
	scope := settings.Scope()
	if runtimeDir := w.ScopeEnvironmentVariable(ctx, scope, "XDG_RUNTIME_DIR"); runtimeDir != "" {
		return path.Join(runtimeDir, "podman", "podman.sock"), nil
	}
	result := w.RunScopeCommand(ctx, "id", []string{"-u"}, scope)
	uid := strings.TrimSpace(result.Stdout)
	if !result.Success || uid == "" {
		return "", &CommandError{Op: "guestSocket", Result: result, Err: ErrAPINotReachable}
	}
	return path.Join("/run/user", uid, "podman", "podman.sock"), nil
}

func (w *WSLClient) apiLaunch(ctx context.Context, settings Settings) (Launch, error) {
	scopes, err := w.ControllerScopes(ctx, settings)
	if err != nil {
		return Launch{}, err
	}
	scope, err := scopeNamed(scopes, settings.Scope())
	if err != nil {
		return Launch{}, err
	}
	api, err := w.APIConnection(ctx, settings)
	if err != nil {
		return Launch{}, err
	}

	controller := hostProgram(w.os, w.controllerPath(settings))
	// StartScope reports an already running distribution as running.
	launch := Launch{Scope: &scope, Wait: true}
	if w.engine == Podman {
		launch.Service = &Command{
			Program: controller,
			Args:    wslExecArgs(scope.Name, settings.ProgramPath(), podmanServiceArgs(api.Relay)...),
		}
	}
	dial := relay.CommandDialer(controller, wslExecArgs(scope.Name, "socat", "STDIO", "UNIX-CONNECT:"+api.Relay)...)
	launch.Relay = func(context.Context) (io.Closer, error) {
		ln, err := relay.ListenPipe(api.URI)
		if err != nil {
			return nil, err
		}
		return relay.Serve(ln, dial, relay.WithLogger(w.logger)), nil
	}
	return launch, nil
}

func wslExecArgs(scope, program string, args ...string) []string {
	out := make([]string, 0, len(args)+4)
	if scope != "" {
		out = append(out, "--distribution", scope)
	}
	out = append(out, "--exec", program)
	return append(out, args...)
}

// decodeWSLOutput converts the UTF-16LE output wsl.exe writes to pipes.
func decodeWSLOutput(s string) string {
	if !strings.ContainsRune(s, 0) {
		return s
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().String(s)
	if err != nil {
		return strings.ReplaceAll(s, "\x00", "")
	}
	return decoded
}

// parseWSLList parses `wsl --list --verbose`:
//
//	  NAME            STATE           VERSION
//	* Ubuntu          Running         2
//	  Debian          Stopped         1
func parseWSLList(out string) []ControllerScope {
	var scopes []ControllerScope
	for i, line := range strings.Split(strings.ReplaceAll(out, "\r", ""), "\n") {
		line = strings.TrimSpace(line)
		if i == 0 || line == "" {
			continue
		}
		isDefault := strings.HasPrefix(line, "*")
		fields := strings.Fields(strings.TrimPrefix(line, "*"))
		if len(fields) < 3 {
			continue
		}
		version := fields[len(fields)-1]
		state := fields[len(fields)-2]
		name := strings.Join(fields[:len(fields)-2], " ")
		if strings.HasPrefix(name, wslDockerVMPre) {
			continue
		}
		scopes = append(scopes, ControllerScope{
			Name:    name,
			Usable:  version == "2",
			State:   strings.ToLower(state),
			Default: isDefault,
		})
	}
	return scopes
}
