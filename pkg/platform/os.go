// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"runtime"
)

// OS name constants for runtime.GOOS comparisons.
const (
	Windows OperatingSystem = "windows"
	Mac     OperatingSystem = "darwin"
	Linux   OperatingSystem = "linux"
)

// ErrUnsupportedOS is the sentinel error wrapped by UnsupportedOSError.
var ErrUnsupportedOS = errors.New("unsupported operating system")

type (
	// OperatingSystem is the OS family a program or scope runs on.
	// Scoped guests are always Linux regardless of the host.
	OperatingSystem string

	// UnsupportedOSError is returned when a GOOS value has no family.
	UnsupportedOSError struct {
		Value string
	}
)

// Current returns the OS family of the running process. Unknown unix-like
// systems are reported as Linux since they share the same tooling conventions.
func Current() OperatingSystem {
	family, err := Parse(runtime.GOOS)
	if err != nil {
		return Linux
	}
	return family
}

// Parse maps a GOOS value onto its OS family.
func Parse(goos string) (OperatingSystem, error) {
	switch goos {
	case "windows":
		return Windows, nil
	case "darwin":
		return Mac, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return Linux, nil
	default:
		return "", &UnsupportedOSError{Value: goos}
	}
}

// String returns the GOOS spelling.
func (o OperatingSystem) String() string { return string(o) }

// Label returns the human readable family name.
func (o OperatingSystem) Label() string {
	switch o {
	case Windows:
		return "Windows"
	case Mac:
		return "Mac"
	case Linux:
		return "Linux"
	default:
		return string(o)
	}
}

// ExecutableSuffix returns ".exe" on Windows and "" elsewhere.
func (o OperatingSystem) ExecutableSuffix() string {
	if o == Windows {
		return ".exe"
	}
	return ""
}

// Error implements the error interface.
func (e *UnsupportedOSError) Error() string {
	return fmt.Sprintf("unsupported operating system %q", e.Value)
}

// Unwrap returns ErrUnsupportedOS for errors.Is() compatibility.
func (e *UnsupportedOSError) Unwrap() error { return ErrUnsupportedOS }
