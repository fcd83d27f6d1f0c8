// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/enginedesk/enginedesk/pkg/platform"
)

const (
	podmanRootfulSocket = "/run/podman/podman.sock"
	dockerSocket        = "/var/run/docker.sock"
	dockerDesktopPipe   = `\\.\pipe\docker_engine`
)

type (
	// NativeClient reaches an engine that runs directly on the host, either a
	// system engine (Linux) or a vendor desktop that exposes its CLI and
	// socket on the host (Docker Desktop).
	NativeClient struct {
		*Client
		platforms []platform.OperatingSystem
		socket    func(settings Settings) string
		service   bool
	}
)

// NewPodmanNative creates a client for Podman running on a Linux host.
func NewPodmanNative(id string, opts ...Option) *NativeClient {
	n := &NativeClient{platforms: []platform.OperatingSystem{platform.Linux}, service: true}
	n.Client = newClient(id, PodmanNative, "Native", "", n, opts...)
	n.socket = n.podmanSocket
	return n
}

// NewDockerNative creates a client for the Docker daemon of a Linux host.
func NewDockerNative(id string, opts ...Option) *NativeClient {
	n := &NativeClient{platforms: []platform.OperatingSystem{platform.Linux}}
	n.Client = newClient(id, DockerNative, "Native", "", n, opts...)
	n.socket = func(Settings) string { return dockerSocket }
	return n
}

// NewDockerVirtualizedVendor creates a client for Docker Desktop.
func NewDockerVirtualizedVendor(id string, opts ...Option) *NativeClient {
	n := &NativeClient{platforms: []platform.OperatingSystem{platform.Windows, platform.Mac}}
	n.Client = newClient(id, DockerVirtualizedVendor, "Docker Desktop", "", n, opts...)
	n.socket = n.dockerDesktopSocket
	return n
}

// IsEngineAvailable reports whether the host OS supports this connector.
func (n *NativeClient) IsEngineAvailable(context.Context) AvailabilityCheck {
	return platformCheck(n.os, n.platforms)
}

// IsScoped is false: commands run on the host.
func (n *NativeClient) IsScoped() bool { return false }

// ControllerScopes returns no scopes.
func (n *NativeClient) ControllerScopes(context.Context, Settings) ([]ControllerScope, error) {
	return nil, nil
}

// ControllerDefaultScope returns no scope.
func (n *NativeClient) ControllerDefaultScope(context.Context, Settings) (*ControllerScope, error) {
	return nil, nil
}

// StartScope is not supported.
func (n *NativeClient) StartScope(context.Context, ControllerScope) (StartupStatus, error) {
	return StartupStatusError, ErrNotScoped
}

// StopScope is not supported.
func (n *NativeClient) StopScope(context.Context, ControllerScope) (bool, error) {
	return false, ErrNotScoped
}

// ShouldKeepStartedScopeRunning is true; there is no scope to stop.
func (n *NativeClient) ShouldKeepStartedScopeRunning() bool { return true }

// RunScopeCommand runs on the host; native connections have no scope.
func (n *NativeClient) RunScopeCommand(ctx context.Context, program string, args []string, _ string) CommandResult {
	return n.runHost(ctx, n.Settings(), program, args)
}

// APIConnection returns the engine socket on the host.
func (n *NativeClient) APIConnection(_ context.Context, settings Settings) (APIConnection, error) {
	socket := n.socket(settings)
	if socket == "" {
		return APIConnection{}, fmt.Errorf("no API socket known for %s", n.host)
	}
	return APIConnection{URI: socket}, nil
}

func (n *NativeClient) apiLaunch(ctx context.Context, settings Settings) (Launch, error) {
	if !n.service {
		return Launch{}, fmt.Errorf("%w: start the %s daemon with the system service manager", ErrAPIStartUnsupported, n.engine)
	}
	api, err := n.APIConnection(ctx, settings)
	if err != nil {
		return Launch{}, err
	}
	return Launch{
		Service: &Command{
			Program: hostProgram(n.os, settings.ProgramPath()),
			Args:    podmanServiceArgs(api.URI),
		},
		Wait: true,
	}, nil
}

func (n *NativeClient) podmanSocket(settings Settings) string {
	if settings.Rootfull {
		return podmanRootfulSocket
	}
	if runtimeDir := n.env.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return path.Join(runtimeDir, "podman", "podman.sock")
	}
	return path.Join("/run/user", strconv.Itoa(os.Getuid()), "podman", "podman.sock")
}

func (n *NativeClient) dockerDesktopSocket(Settings) string {
	if n.os == platform.Windows {
		return dockerDesktopPipe
	}
	home, err := n.env.HomeDir()
	if err != nil {
		n.logger.Error("unable to resolve Docker Desktop socket", "err", err)
		return ""
	}
	if n.os == platform.Mac {
		return filepath.Join(home, ".docker", "run", "docker.sock")
	}
	return filepath.Join(home, ".docker", "desktop", "docker.sock")
}

func podmanServiceArgs(uri string) []string {
	return []string{"system", "service", "--time=0", "unix://" + uri}
}

func platformCheck(current platform.OperatingSystem, supported []platform.OperatingSystem) AvailabilityCheck {
	if slices.Contains(supported, current) {
		return AvailabilityCheck{Success: true, Details: "Platform is supported"}
	}
	return AvailabilityCheck{Details: "Not supported on " + current.Label()}
}
