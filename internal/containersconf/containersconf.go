// SPDX-License-Identifier: MPL-2.0

package containersconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/maps"

	"github.com/enginedesk/enginedesk/pkg/platform"
)

// EnvOverride names the variable that replaces the default search paths.
const EnvOverride = "CONTAINERS_CONF"

type (
	// Config is the subset of containers.conf this package understands.
	Config struct {
		Engine Engine `toml:"engine"`
	}

	// Engine is the [engine] table.
	Engine struct {
		ActiveService       string                 `toml:"active_service"`
		ServiceDestinations map[string]Destination `toml:"service_destinations"`
	}

	// Destination is one [engine.service_destinations.<name>] table.
	Destination struct {
		URI       string `toml:"uri"`
		Identity  string `toml:"identity"`
		IsMachine bool   `toml:"is_machine"`
	}

	// NamedDestination is a destination together with its table name.
	NamedDestination struct {
		Name string
		Destination
		Default bool
	}
)

// DefaultPaths returns the files read in order; later files override earlier
// ones. CONTAINERS_CONF replaces the list.
func DefaultPaths(env platform.Environment) []string {
	if override := env.Getenv(EnvOverride); override != "" {
		return []string{override}
	}
	var paths []string
	if env.OS() == platform.Linux {
		paths = append(paths, "/usr/share/containers/containers.conf", "/etc/containers/containers.conf")
	}
	if dir := env.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return append(paths, filepath.Join(dir, "containers", "containers.conf"))
	}
	if env.OS() == platform.Windows {
		if dir := env.Getenv("APPDATA"); dir != "" {
			return append(paths, filepath.Join(dir, "containers", "containers.conf"))
		}
	}
	if home, err := env.HomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "containers", "containers.conf"))
	}
	return paths
}

// Load reads and merges paths. Missing files are skipped.
func Load(paths ...string) (*Config, error) {
	cfg := &Config{Engine: Engine{ServiceDestinations: map[string]Destination{}}}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var file Config
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if file.Engine.ActiveService != "" {
			cfg.Engine.ActiveService = file.Engine.ActiveService
		}
		for name, dest := range file.Engine.ServiceDestinations {
			cfg.Engine.ServiceDestinations[name] = dest
		}
	}
	return cfg, nil
}

// RemoteDestinations lists destinations that are not podman machines, sorted
// by name. The active service is flagged as default, or the first one when no
// active service is set.
func (c *Config) RemoteDestinations() []NamedDestination {
	names := maps.Keys(c.Engine.ServiceDestinations)
	slices.Sort(names)
	out := make([]NamedDestination, 0, len(names))
	for _, name := range names {
		dest := c.Engine.ServiceDestinations[name]
		if dest.IsMachine {
			continue
		}
		out = append(out, NamedDestination{Name: name, Destination: dest, Default: name == c.Engine.ActiveService})
	}
	if len(out) > 0 && !slices.ContainsFunc(out, func(d NamedDestination) bool { return d.Default }) {
		out[0].Default = true
	}
	return out
}
