// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/enginedesk/enginedesk/pkg/platform"
)

const (
	limaController = "limactl"
	limaRunning    = "Running"
)

type (
	// LIMAClient reaches an engine inside a LIMA instance. LIMA forwards the
	// guest socket to the host itself, so no relay runs in process.
	LIMAClient struct {
		*Client
	}

	limaListEntry struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Dir    string `json:"dir"`
	}

	limaInstanceConfig struct {
		PortForwards []struct {
			GuestSocket string `yaml:"guestSocket"`
			HostSocket  string `yaml:"hostSocket"`
		} `yaml:"portForwards"`
	}
)

// NewPodmanLIMA creates a client for Podman inside a LIMA instance.
func NewPodmanLIMA(id string, opts ...Option) *LIMAClient {
	l := &LIMAClient{}
	l.Client = newClient(id, PodmanLIMA, "LIMA", limaController, l, opts...)
	return l
}

// NewDockerLIMA creates a client for Docker inside a LIMA instance.
func NewDockerLIMA(id string, opts ...Option) *LIMAClient {
	l := &LIMAClient{}
	l.Client = newClient(id, DockerLIMA, "LIMA", limaController, l, opts...)
	return l
}

// IsEngineAvailable is true on macOS only.
func (l *LIMAClient) IsEngineAvailable(context.Context) AvailabilityCheck {
	return platformCheck(l.os, []platform.OperatingSystem{platform.Mac})
}

// IsScoped is true: commands run inside an instance.
func (l *LIMAClient) IsScoped() bool { return true }

// ControllerScopes lists LIMA instances. The instance named after the engine
// program is the default.
func (l *LIMAClient) ControllerScopes(ctx context.Context, settings Settings) ([]ControllerScope, error) {
	result := l.runController(ctx, settings, "list", "--json")
	if !result.Success {
		return nil, &CommandError{Op: "listScopes", Result: result, Err: ErrScopeListFailed}
	}
	return parseLimaList(result.Stdout, l.program)
}

// ControllerDefaultScope returns the default instance.
func (l *LIMAClient) ControllerDefaultScope(ctx context.Context, settings Settings) (*ControllerScope, error) {
	scopes, err := l.ControllerScopes(ctx, settings)
	if err != nil {
		return nil, err
	}
	return defaultScope(scopes), nil
}

// StartScope starts an instance unless it is running.
func (l *LIMAClient) StartScope(ctx context.Context, scope ControllerScope) (StartupStatus, error) {
	if scope.Usable {
		return StartupStatusRunning, nil
	}
	result := l.runController(ctx, l.Settings(), "start", scope.Name)
	if !result.Success {
		return StartupStatusError, &CommandError{Op: "startScope", Result: result, Err: ErrScopeStartFailed}
	}
	return StartupStatusStarted, nil
}

// StopScope stops an instance.
func (l *LIMAClient) StopScope(ctx context.Context, scope ControllerScope) (bool, error) {
	result := l.runController(ctx, l.Settings(), "stop", scope.Name)
	if !result.Success {
		return false, &CommandError{Op: "stopScope", Result: result, Err: ErrScopeStopFailed}
	}
	return true, nil
}

// ShouldKeepStartedScopeRunning is false.
func (l *LIMAClient) ShouldKeepStartedScopeRunning() bool { return false }

// RunScopeCommand runs program through `limactl shell`.
func (l *LIMAClient) RunScopeCommand(ctx context.Context, program string, args []string, scope string) CommandResult {
	if scope == "" {
		scope = l.program
	}
	return l.runController(ctx, l.Settings(), append([]string{"shell", scope, program}, args...)...)
}

// APIConnection returns the host socket LIMA forwards the engine socket to.
func (l *LIMAClient) APIConnection(ctx context.Context, settings Settings) (APIConnection, error) {
	scopes, err := l.ControllerScopes(ctx, settings)
	if err != nil {
		return APIConnection{}, err
	}
	scope, err := scopeNamed(scopes, settings.Scope())
	if err != nil {
		return APIConnection{}, err
	}
	if scope.Dir == "" {
		return APIConnection{}, fmt.Errorf("instance %s has no directory", scope.Name)
	}
	return APIConnection{URI: l.hostSocket(scope)}, nil
}

func (l *LIMAClient) hostSocket(scope ControllerScope) string {
	fallback := filepath.Join(scope.Dir, "sock", l.program+".sock")
	data, err := os.ReadFile(filepath.Join(scope.Dir, "lima.yaml"))
	if err != nil {
		l.logger.Debug("instance config not readable - using default socket", "scope", scope.Name, "err", err)
		return fallback
	}
	home, _ := l.env.HomeDir()
	socket, err := limaHostSocket(data, l.program, limaTemplateData(scope, home))
	if err != nil {
		l.logger.Warn("unable to parse instance config - using default socket", "scope", scope.Name, "err", err)
		return fallback
	}
	if socket == "" {
		return fallback
	}
	if !filepath.IsAbs(socket) {
		socket = filepath.Join(scope.Dir, socket)
	}
	return socket
}

func (l *LIMAClient) apiLaunch(ctx context.Context, settings Settings) (Launch, error) {
	scopes, err := l.ControllerScopes(ctx, settings)
	if err != nil {
		return Launch{}, err
	}
	scope, err := scopeNamed(scopes, settings.Scope())
	if err != nil {
		return Launch{}, err
	}
	return Launch{Scope: launchScope(scope), Wait: true}, nil
}

func limaTemplateData(scope ControllerScope, home string) map[string]string {
	data := map[string]string{"Dir": scope.Dir, "Home": home, "Name": scope.Name}
	if u, err := user.Current(); err == nil {
		data["UID"] = u.Uid
		data["User"] = u.Username
	}
	return data
}

// limaHostSocket finds the port forward whose guest socket belongs to program
// and expands its host socket template.
func limaHostSocket(config []byte, program string, data map[string]string) (string, error) {
	var cfg limaInstanceConfig
	if err := yaml.Unmarshal(config, &cfg); err != nil {
		return "", fmt.Errorf("decode lima.yaml: %w", err)
	}
	for _, forward := range cfg.PortForwards {
		if forward.HostSocket == "" || !strings.HasSuffix(forward.GuestSocket, program+".sock") {
			continue
		}
		tmpl, err := template.New("hostSocket").Option("missingkey=zero").Parse(forward.HostSocket)
		if err != nil {
			return "", fmt.Errorf("parse hostSocket: %w", err)
		}
		var out bytes.Buffer
		if err := tmpl.Execute(&out, data); err != nil {
			return "", fmt.Errorf("expand hostSocket: %w", err)
		}
		return out.String(), nil
	}
	return "", nil
}

// parseLimaList parses the one-object-per-line output of `limactl list --json`.
func parseLimaList(stdout, program string) ([]ControllerScope, error) {
	var scopes []ControllerScope
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry limaListEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode limactl list: %w", err)
		}
		scopes = append(scopes, ControllerScope{
			Name:    entry.Name,
			Usable:  entry.Status == limaRunning,
			State:   strings.ToLower(entry.Status),
			Default: entry.Name == program,
			Dir:     entry.Dir,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read limactl list: %w", err)
	}
	return scopes, nil
}
