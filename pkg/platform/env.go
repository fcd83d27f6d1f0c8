// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName names the per-user data and config directories.
const AppName = "enginedesk"

type (
	// Environment is the process environment as seen by the engine runtime.
	// Tests substitute a MapEnvironment.
	Environment interface {
		OS() OperatingSystem
		Getenv(name string) string
		HomeDir() (string, error)
		UserDataPath() (string, error)
	}

	// HostEnvironment reads the real process environment.
	HostEnvironment struct{}

	// MapEnvironment is a fixed environment backed by a map.
	MapEnvironment struct {
		System OperatingSystem
		Vars   map[string]string
		Home   string
	}
)

// NewHostEnvironment returns the environment of the running process.
func NewHostEnvironment() *HostEnvironment { return &HostEnvironment{} }

// OS returns the current OS family.
func (*HostEnvironment) OS() OperatingSystem { return Current() }

// Getenv reads a process environment variable.
func (*HostEnvironment) Getenv(name string) string { return os.Getenv(name) }

// HomeDir returns the user's home directory.
func (*HostEnvironment) HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return home, nil
}

// UserDataPath returns the per-user application data directory.
func (e *HostEnvironment) UserDataPath() (string, error) {
	return userDataPath(e)
}

// OS returns the configured OS family, defaulting to Linux.
func (m *MapEnvironment) OS() OperatingSystem {
	if m.System == "" {
		return Linux
	}
	return m.System
}

// Getenv returns the mapped value or "".
func (m *MapEnvironment) Getenv(name string) string { return m.Vars[name] }

// HomeDir returns the configured home directory.
func (m *MapEnvironment) HomeDir() (string, error) {
	if m.Home == "" {
		return "", fmt.Errorf("failed to get home directory: not set")
	}
	return m.Home, nil
}

// UserDataPath derives the data directory from the mapped variables.
func (m *MapEnvironment) UserDataPath() (string, error) {
	return userDataPath(m)
}

// userDataPath uses %APPDATA% on Windows, ~/Library/Application Support on
// macOS and $XDG_DATA_HOME (default ~/.local/share) elsewhere.
func userDataPath(env Environment) (string, error) {
	var base string
	switch env.OS() {
	case Windows:
		base = env.Getenv("APPDATA")
		if base == "" {
			home, err := env.HomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, "AppData", "Roaming")
		}
	case Mac:
		home, err := env.HomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = env.Getenv("XDG_DATA_HOME")
		if base == "" {
			home, err := env.HomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".local", "share")
		}
	}
	return filepath.Join(base, AppName), nil
}
