// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"slices"
)

type (
	// HostConstructor builds a host client for a connection id.
	HostConstructor func(id string, opts ...Option) HostClient

	// Family groups the host clients of one engine and creates them by host.
	Family struct {
		engine Engine
		hosts  []familyHost
		opts   []Option
	}

	familyHost struct {
		host Host
		new  HostConstructor
	}
)

// NewPodman returns the Podman family. opts are applied to every client it
// creates.
func NewPodman(opts ...Option) *Family {
	return &Family{
		engine: Podman,
		opts:   opts,
		hosts: []familyHost{
			{PodmanNative, func(id string, o ...Option) HostClient { return NewPodmanNative(id, o...) }},
			{PodmanVirtualized, func(id string, o ...Option) HostClient { return NewPodmanVirtualized(id, o...) }},
			{PodmanVirtualizedVendor, func(id string, o ...Option) HostClient { return NewPodmanVirtualizedVendor(id, o...) }},
			{PodmanWSL, func(id string, o ...Option) HostClient { return NewPodmanWSL(id, o...) }},
			{PodmanLIMA, func(id string, o ...Option) HostClient { return NewPodmanLIMA(id, o...) }},
			{PodmanRemote, func(id string, o ...Option) HostClient { return NewPodmanRemote(id, o...) }},
		},
	}
}

// NewDocker returns the Docker family.
func NewDocker(opts ...Option) *Family {
	return &Family{
		engine: Docker,
		opts:   opts,
		hosts: []familyHost{
			{DockerNative, func(id string, o ...Option) HostClient { return NewDockerNative(id, o...) }},
			{DockerVirtualizedVendor, func(id string, o ...Option) HostClient { return NewDockerVirtualizedVendor(id, o...) }},
			{DockerWSL, func(id string, o ...Option) HostClient { return NewDockerWSL(id, o...) }},
			{DockerLIMA, func(id string, o ...Option) HostClient { return NewDockerLIMA(id, o...) }},
			{DockerRemote, func(id string, o ...Option) HostClient { return NewDockerRemote(id, o...) }},
		},
	}
}

// NewFamily returns the family of engine.
func NewFamily(engine Engine, opts ...Option) (*Family, error) {
	switch engine {
	case Podman:
		return NewPodman(opts...), nil
	case Docker:
		return NewDocker(opts...), nil
	default:
		return nil, &InvalidEngineError{Value: engine}
	}
}

// Engine returns the family's engine.
func (f *Family) Engine() Engine { return f.engine }

// Hosts lists the hosts this family can create clients for.
func (f *Family) Hosts() []Host {
	hosts := make([]Host, 0, len(f.hosts))
	for _, h := range f.hosts {
		hosts = append(hosts, h.host)
	}
	return hosts
}

// CreateHostClient creates the client for host. Unknown hosts return an
// *UnknownHostError.
func (f *Family) CreateHostClient(host Host, id string, opts ...Option) (HostClient, error) {
	i := slices.IndexFunc(f.hosts, func(h familyHost) bool { return h.host == host })
	if i < 0 {
		return nil, &UnknownHostError{Engine: f.engine, Host: host}
	}
	return f.hosts[i].new(id, append(slices.Clone(f.opts), opts...)...), nil
}

var (
	_ HostClient = (*NativeClient)(nil)
	_ HostClient = (*VirtualizedClient)(nil)
	_ HostClient = (*WSLClient)(nil)
	_ HostClient = (*LIMAClient)(nil)
	_ HostClient = (*RemoteClient)(nil)
)
