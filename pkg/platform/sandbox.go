// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"os"
	"sync"
)

const (
	// SandboxNone indicates no sandbox environment detected.
	SandboxNone SandboxType = ""
	// SandboxFlatpak indicates a Flatpak sandbox environment.
	SandboxFlatpak SandboxType = "flatpak"
	// SandboxSnap indicates a Snap sandbox environment.
	SandboxSnap SandboxType = "snap"
)

// detectOnce caches the sandbox detection result for the process lifetime.
//
// INVARIANT: detectSandboxFrom MUST NOT panic; sync.OnceValue re-panics on
// every call.
var detectOnce = sync.OnceValue(func() SandboxType {
	return detectSandboxFrom(os.Getenv, statFile)
})

// SandboxType identifies the type of application sandbox, if any.
type SandboxType string

// DetectSandbox returns the sandbox the current process runs in.
//   - Flatpak: /.flatpak-info exists
//   - Snap: SNAP_NAME is set
func DetectSandbox() SandboxType {
	return detectOnce()
}

// SpawnPrefix returns the launcher argv that must precede a host command
// when running inside st, or nil when no launcher is needed.
//
// Flatpak: flatpak-spawn --host
// Snap: snap run --shell
func SpawnPrefix(st SandboxType) []string {
	switch st {
	case SandboxFlatpak:
		return []string{"flatpak-spawn", "--host"}
	case SandboxSnap:
		return []string{"snap", "run", "--shell"}
	default:
		return nil
	}
}

// WrapHostCommand prefixes program and args with the sandbox launcher for st.
// Outside a sandbox the inputs are returned unchanged.
func WrapHostCommand(st SandboxType, program string, args []string) (string, []string) {
	prefix := SpawnPrefix(st)
	if len(prefix) == 0 {
		return program, args
	}
	wrapped := make([]string, 0, len(prefix)-1+1+len(args))
	wrapped = append(wrapped, prefix[1:]...)
	wrapped = append(wrapped, program)
	wrapped = append(wrapped, args...)
	return prefix[0], wrapped
}

func detectSandboxFrom(lookupEnv func(string) string, statFile func(string) error) SandboxType {
	// Flatpak takes precedence.
	if err := statFile("/.flatpak-info"); err == nil {
		return SandboxFlatpak
	}
	if lookupEnv("SNAP_NAME") != "" {
		return SandboxSnap
	}
	return SandboxNone
}

func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}
