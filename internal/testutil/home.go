// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// IsolateUserDirs points the home, config and data directories of the
// current platform into dir and returns a cleanup function restoring them.
//
//   - Windows: USERPROFILE and APPDATA
//   - Linux/macOS: HOME, XDG_CONFIG_HOME and XDG_DATA_HOME
//
// Usage:
//
//	t.Cleanup(testutil.IsolateUserDirs(t, t.TempDir()))
func IsolateUserDirs(t testing.TB, dir string) func() {
	t.Helper()

	var cleanups []func()
	if runtime.GOOS == "windows" {
		cleanups = append(cleanups,
			MustSetenv(t, "USERPROFILE", dir),
			MustSetenv(t, "APPDATA", filepath.Join(dir, "AppData", "Roaming")),
		)
	} else {
		cleanups = append(cleanups,
			MustSetenv(t, "HOME", dir),
			MustSetenv(t, "XDG_CONFIG_HOME", filepath.Join(dir, ".config")),
			MustSetenv(t, "XDG_DATA_HOME", filepath.Join(dir, ".local", "share")),
		)
	}
	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}
