// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/enginedesk/enginedesk/pkg/platform"
)

type (
	// VirtualizedClient reaches Podman inside a `podman machine` VM. The
	// vendor variant is the machine installed by Podman Desktop.
	VirtualizedClient struct {
		*Client
	}

	machineListEntry struct {
		Name     string
		Default  bool
		Running  bool
		Starting bool
		VMType   string
	}

	machineInspectEntry struct {
		Name           string
		State          string
		ConnectionInfo struct {
			PodmanSocket *struct{ Path string }
			PodmanPipe   *struct{ Path string }
		}
	}
)

// NewPodmanVirtualized creates a client for podman machine.
func NewPodmanVirtualized(id string, opts ...Option) *VirtualizedClient {
	v := &VirtualizedClient{}
	v.Client = newClient(id, PodmanVirtualized, "Podman machine", string(Podman), v, opts...)
	return v
}

// NewPodmanVirtualizedVendor creates a client for the Podman Desktop machine.
func NewPodmanVirtualizedVendor(id string, opts ...Option) *VirtualizedClient {
	v := &VirtualizedClient{}
	v.Client = newClient(id, PodmanVirtualizedVendor, "Podman Desktop", string(Podman), v, opts...)
	return v
}

// IsEngineAvailable is true on every supported OS.
func (v *VirtualizedClient) IsEngineAvailable(context.Context) AvailabilityCheck {
	return platformCheck(v.os, []platform.OperatingSystem{platform.Linux, platform.Mac, platform.Windows})
}

// IsScoped is true: commands run inside the machine.
func (v *VirtualizedClient) IsScoped() bool { return true }

// ControllerScopes lists podman machines.
func (v *VirtualizedClient) ControllerScopes(ctx context.Context, settings Settings) ([]ControllerScope, error) {
	result := v.runController(ctx, settings, "machine", "list", "--format", "json")
	if !result.Success {
		return nil, &CommandError{Op: "listScopes", Result: result, Err: ErrScopeListFailed}
	}
	return parseMachineList(result.Stdout)
}

// ControllerDefaultScope returns the default machine.
func (v *VirtualizedClient) ControllerDefaultScope(ctx context.Context, settings Settings) (*ControllerScope, error) {
	scopes, err := v.ControllerScopes(ctx, settings)
	if err != nil {
		return nil, err
	}
	return defaultScope(scopes), nil
}

// StartScope starts a machine unless it is running.
func (v *VirtualizedClient) StartScope(ctx context.Context, scope ControllerScope) (StartupStatus, error) {
	if scope.Usable {
		return StartupStatusRunning, nil
	}
	result := v.runController(ctx, v.Settings(), "machine", "start", scope.Name)
	if !result.Success {
		return StartupStatusError, &CommandError{Op: "startScope", Result: result, Err: ErrScopeStartFailed}
	}
	return StartupStatusStarted, nil
}

// StopScope stops a machine.
func (v *VirtualizedClient) StopScope(ctx context.Context, scope ControllerScope) (bool, error) {
	result := v.runController(ctx, v.Settings(), "machine", "stop", scope.Name)
	if !result.Success {
		return false, &CommandError{Op: "stopScope", Result: result, Err: ErrScopeStopFailed}
	}
	return true, nil
}

// ShouldKeepStartedScopeRunning is false: a machine started for the API is
// stopped with it.
func (v *VirtualizedClient) ShouldKeepStartedScopeRunning() bool { return false }

// RunScopeCommand runs program through `podman machine ssh`.
func (v *VirtualizedClient) RunScopeCommand(ctx context.Context, program string, args []string, scope string) CommandResult {
	line, err := shellLine(program, args)
	if err != nil {
		return failedResult(err)
	}
	sshArgs := []string{"machine", "ssh"}
	if scope != "" {
		sshArgs = append(sshArgs, scope)
	}
	return v.runController(ctx, v.Settings(), append(sshArgs, line)...)
}

// APIConnection reads the forwarded socket (or pipe on Windows) from
// `podman machine inspect`.
func (v *VirtualizedClient) APIConnection(ctx context.Context, settings Settings) (APIConnection, error) {
	scope := settings.Scope()
	if scope == "" {
		return APIConnection{}, fmt.Errorf("%w: no machine selected", ErrScopeNotFound)
	}
	result := v.runController(ctx, settings, "machine", "inspect", scope)
	if !result.Success {
		return APIConnection{}, &CommandError{Op: "inspectScope", Result: result, Err: ErrScopeListFailed}
	}
	var entries []machineInspectEntry
	if err := json.Unmarshal([]byte(result.Stdout), &entries); err != nil {
		return APIConnection{}, fmt.Errorf("decode machine inspect: %w", err)
	}
	if len(entries) == 0 {
		return APIConnection{}, &ScopeNotFoundError{Name: scope}
	}
	info := entries[0].ConnectionInfo
	if v.os == platform.Windows && info.PodmanPipe != nil && info.PodmanPipe.Path != "" {
		return APIConnection{URI: info.PodmanPipe.Path}, nil
	}
	if info.PodmanSocket != nil && info.PodmanSocket.Path != "" {
		return APIConnection{URI: info.PodmanSocket.Path}, nil
	}
	return APIConnection{}, fmt.Errorf("machine %s exposes no API socket", scope)
}

func (v *VirtualizedClient) apiLaunch(ctx context.Context, settings Settings) (Launch, error) {
	scopes, err := v.ControllerScopes(ctx, settings)
	if err != nil {
		return Launch{}, err
	}
	scope, err := scopeNamed(scopes, settings.Scope())
	if err != nil {
		return Launch{}, err
	}
	// The machine forwards its API socket to the host once it runs.
	return Launch{Scope: launchScope(scope), Wait: true}, nil
}

func parseMachineList(stdout string) ([]ControllerScope, error) {
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return nil, nil
	}
	var entries []machineListEntry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		return nil, fmt.Errorf("decode machine list: %w", err)
	}
	scopes := make([]ControllerScope, 0, len(entries))
	for _, entry := range entries {
		state := "stopped"
		switch {
		case entry.Running:
			state = "running"
		case entry.Starting:
			state = "starting"
		}
		scopes = append(scopes, ControllerScope{
			Name:    strings.TrimSuffix(entry.Name, "*"),
			Usable:  entry.Running,
			State:   state,
			Default: entry.Default || strings.HasSuffix(entry.Name, "*"),
		})
	}
	return scopes, nil
}
