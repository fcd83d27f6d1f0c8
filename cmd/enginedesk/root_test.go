// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"slices"
	"testing"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("fallback to dev when no build info", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		// Test binaries report Main.Version == "(devel)".
		Version = "dev"
		Commit = "unknown"
		BuildDate = "unknown"

		got := getVersionString()
		want := "dev (built from source)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestRootCommandTree(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(NewApp(Dependencies{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}))
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"api", "availability", "config", "connections", "connectors", "detect", "events", "exec", "scopes", "system"} {
		if !slices.Contains(names, want) {
			t.Errorf("root command missing %q (have %v)", want, names)
		}
	}
	for _, flag := range []string{"verbose", "config", "json"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestAPICommandHasNoStop(t *testing.T) {
	t.Parallel()

	api := newAPICommand(NewApp(Dependencies{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}))
	var names []string
	for _, c := range api.Commands() {
		names = append(names, c.Name())
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"ping", "start"}) {
		t.Errorf("api subcommands = %v, want [ping start]", names)
	}
}
