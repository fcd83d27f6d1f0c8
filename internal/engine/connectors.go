// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"slices"

	"github.com/enginedesk/enginedesk/pkg/platform"
)

type (
	// Connector is one selectable engine and host pair.
	Connector struct {
		Engine  Engine `json:"engine"`
		Host    Host   `json:"host"`
		Label   string `json:"label"`
		Enabled bool   `json:"enabled"`
	}

	connectorSpec struct {
		host      Host
		label     string
		platforms []platform.OperatingSystem
	}
)

var (
	allPlatforms = []platform.OperatingSystem{platform.Linux, platform.Mac, platform.Windows}

	connectorSpecs = []connectorSpec{
		{PodmanNative, "Native", []platform.OperatingSystem{platform.Linux}},
		{PodmanVirtualized, "Podman machine", allPlatforms},
		{PodmanVirtualizedVendor, "Podman Desktop", allPlatforms},
		{PodmanWSL, "WSL", []platform.OperatingSystem{platform.Windows}},
		{PodmanLIMA, "LIMA", []platform.OperatingSystem{platform.Mac}},
		{PodmanRemote, "Remote", allPlatforms},
		{DockerNative, "Native", []platform.OperatingSystem{platform.Linux}},
		{DockerVirtualizedVendor, "Docker Desktop", []platform.OperatingSystem{platform.Windows, platform.Mac}},
		{DockerWSL, "WSL", []platform.OperatingSystem{platform.Windows}},
		{DockerLIMA, "LIMA", []platform.OperatingSystem{platform.Mac}},
		{DockerRemote, "Remote", allPlatforms},
	}
)

// Connectors lists every connector with its availability on os.
func Connectors(os platform.OperatingSystem) []Connector {
	out := make([]Connector, 0, len(connectorSpecs))
	for _, spec := range connectorSpecs {
		out = append(out, Connector{
			Engine:  spec.host.Engine(),
			Host:    spec.host,
			Label:   spec.label,
			Enabled: slices.Contains(spec.platforms, os),
		})
	}
	return out
}

// EnabledConnectors lists the connectors enabled on os.
func EnabledConnectors(os platform.OperatingSystem) []Connector {
	return slices.DeleteFunc(Connectors(os), func(c Connector) bool { return !c.Enabled })
}
