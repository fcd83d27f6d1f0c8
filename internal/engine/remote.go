// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/enginedesk/enginedesk/internal/containersconf"
	"github.com/enginedesk/enginedesk/internal/relay"
	"github.com/enginedesk/enginedesk/internal/sshexec"
)

// ErrNoDestination is returned when no remote destination is configured.
var ErrNoDestination = errors.New("no remote destination configured")

type (
	// RemoteClient reaches an engine on another machine over SSH. Engine CLI
	// commands run on the host against the selected destination, and the API
	// is relayed to a local unix socket.
	RemoteClient struct {
		*Client
		dial func(ctx context.Context, dest sshexec.Destination) (*sshexec.Client, error)
	}

	dockerContext struct {
		Name           string
		Current        bool
		DockerEndpoint string
	}

	closers []io.Closer
)

// NewPodmanRemote creates a client for a Podman service destination.
func NewPodmanRemote(id string, opts ...Option) *RemoteClient {
	r := &RemoteClient{dial: sshexec.Dial}
	r.Client = newClient(id, PodmanRemote, "Remote", "", r, opts...)
	return r
}

// NewDockerRemote creates a client for a Docker SSH context.
func NewDockerRemote(id string, opts ...Option) *RemoteClient {
	r := &RemoteClient{dial: sshexec.Dial}
	r.Client = newClient(id, DockerRemote, "Remote", "", r, opts...)
	return r
}

// IsEngineAvailable reports whether any destination is configured.
func (r *RemoteClient) IsEngineAvailable(ctx context.Context) AvailabilityCheck {
	destinations, err := r.ControllerScopes(ctx, r.Settings())
	if err != nil {
		return AvailabilityCheck{Details: "Unable to list remote destinations"}
	}
	if len(destinations) == 0 {
		return AvailabilityCheck{Details: "No remote destinations configured"}
	}
	return AvailabilityCheck{Success: true, Details: "Remote destinations configured"}
}

// IsScoped is false: commands run on the host against the destination.
func (r *RemoteClient) IsScoped() bool { return false }

// ControllerScopes lists the configured remote destinations: containers.conf
// service destinations for Podman, SSH contexts for Docker.
func (r *RemoteClient) ControllerScopes(ctx context.Context, settings Settings) ([]ControllerScope, error) {
	if r.engine == Podman {
		cfg, err := containersconf.Load(containersconf.DefaultPaths(r.env)...)
		if err != nil {
			return nil, err
		}
		var scopes []ControllerScope
		for _, dest := range cfg.RemoteDestinations() {
			scopes = append(scopes, ControllerScope{
				Name:     dest.Name,
				Usable:   true,
				Default:  dest.Default,
				URI:      dest.URI,
				Identity: dest.Identity,
			})
		}
		return scopes, nil
	}

	// Listed without the destination environment so the full list is seen.
	cmd := Command{
		Program: hostProgram(r.os, settings.ProgramPath()),
		Args:    []string{"context", "ls", "--format", "{{json .}}"},
	}
	result := r.exec.Execute(ctx, cmd)
	if !result.Success {
		return nil, &CommandError{Op: "listScopes", Result: result, Err: ErrScopeListFailed}
	}
	return parseDockerContexts(result.Stdout)
}

// ControllerDefaultScope returns the default destination.
func (r *RemoteClient) ControllerDefaultScope(ctx context.Context, settings Settings) (*ControllerScope, error) {
	scopes, err := r.ControllerScopes(ctx, settings)
	if err != nil {
		return nil, err
	}
	return defaultScope(scopes), nil
}

// StartScope is not supported.
func (r *RemoteClient) StartScope(context.Context, ControllerScope) (StartupStatus, error) {
	return StartupStatusError, ErrNotScoped
}

// StopScope is not supported.
func (r *RemoteClient) StopScope(context.Context, ControllerScope) (bool, error) {
	return false, ErrNotScoped
}

// ShouldKeepStartedScopeRunning is true.
func (r *RemoteClient) ShouldKeepStartedScopeRunning() bool { return true }

// RunScopeCommand runs on the host with the destination selected.
func (r *RemoteClient) RunScopeCommand(ctx context.Context, program string, args []string, _ string) CommandResult {
	return r.runHost(ctx, r.Settings(), program, args)
}

// hostCommandEnv selects the destination for the engine CLI. Without an
// explicit destination the CLI default is used.
func (r *RemoteClient) hostCommandEnv(settings Settings) []string {
	name := settings.Scope()
	if name == "" {
		return nil
	}
	if r.engine == Podman {
		return []string{"CONTAINER_CONNECTION=" + name}
	}
	return []string{"DOCKER_CONTEXT=" + name}
}

// APIConnection returns the local relay socket and the remote engine socket.
func (r *RemoteClient) APIConnection(ctx context.Context, settings Settings) (APIConnection, error) {
	dest, err := r.destination(ctx, settings)
	if err != nil {
		return APIConnection{}, err
	}
	userData, err := r.env.UserDataPath()
	if err != nil {
		return APIConnection{}, fmt.Errorf("resolve relay directory: %w", err)
	}
	remote := dest.URI
	if r.engine == Docker {
		remote, err = withDefaultSocket(remote, dockerSocket)
		if err != nil {
			return APIConnection{}, err
		}
	}
	return APIConnection{
		URI:   filepath.Join(userData, "relays", r.id+".sock"),
		Relay: remote,
	}, nil
}

func (r *RemoteClient) destination(ctx context.Context, settings Settings) (ControllerScope, error) {
	scopes, err := r.ControllerScopes(ctx, settings)
	if err != nil {
		return ControllerScope{}, err
	}
	if name := settings.Scope(); name != "" {
		return scopeNamed(scopes, name)
	}
	if dest := defaultScope(scopes); dest != nil {
		return *dest, nil
	}
	return ControllerScope{}, ErrNoDestination
}

func (r *RemoteClient) apiLaunch(ctx context.Context, settings Settings) (Launch, error) {
	dest, err := r.destination(ctx, settings)
	if err != nil {
		return Launch{}, err
	}
	api, err := r.APIConnection(ctx, settings)
	if err != nil {
		return Launch{}, err
	}
	target := sshexec.Destination{URI: api.Relay, Identity: dest.Identity}

	return Launch{
		Relay: func(ctx context.Context) (io.Closer, error) {
			client, err := r.dial(ctx, target)
			if err != nil {
				return nil, err
			}
			socket := target.SocketPath()
			if err := client.CheckSocket(ctx, socket); err != nil {
				_ = client.Close()
				return nil, err
			}
			ln, err := relay.ListenUnix(api.URI)
			if err != nil {
				_ = client.Close()
				return nil, err
			}
			rl := relay.Serve(ln, func(context.Context) (io.ReadWriteCloser, error) {
				return client.DialUnix(socket)
			}, relay.WithLogger(r.logger))
			return closers{rl, client}, nil
		},
		Wait: true,
	}, nil
}

// Close closes every closer in order.
func (c closers) Close() error {
	var errs []error
	for _, closer := range c {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func withDefaultSocket(uri, socket string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse destination %q: %w", uri, err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = socket
	}
	return u.String(), nil
}

// parseDockerContexts keeps the SSH endpoints of `docker context ls`.
func parseDockerContexts(stdout string) ([]ControllerScope, error) {
	var scopes []ControllerScope
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry dockerContext
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode docker context: %w", err)
		}
		if !strings.HasPrefix(entry.DockerEndpoint, "ssh://") {
			continue
		}
		scopes = append(scopes, ControllerScope{
			Name:    entry.Name,
			Usable:  true,
			Default: entry.Current,
			URI:     entry.DockerEndpoint,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read docker contexts: %w", err)
	}
	return scopes, nil
}
