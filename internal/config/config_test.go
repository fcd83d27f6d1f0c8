// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/enginedesk/enginedesk/internal/engine"
	"github.com/enginedesk/enginedesk/internal/issue"
	"github.com/enginedesk/enginedesk/internal/testutil"
)

const sampleConfig = `
log_level: "debug"
api_timeout_ms: 1500
default_connection: "wsl"
connections: [
	{name: "native", engine: "podman", host: "podman.native"},
	{
		id: "fixed-id"
		name: "wsl"
		label: "Ubuntu podman"
		engine: "podman"
		host: "podman.subsystem.wsl"
		settings: {
			mode: "mode.manual"
			rootfull: true
			api: {uri: "\\\\.\\pipe\\enginedesk-podman-Ubuntu", relay: "/run/podman/podman.sock"}
			program: {name: "podman", path: "/usr/bin/podman", version: "5.2.1"}
			controller: {name: "wsl", path: "C:\\Windows\\System32\\wsl.exe", scope: "Ubuntu"}
		}
	},
]
`

func writeConfig(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	testutil.MustWriteFile(t, path, content)
	return dir, path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty", path)
	}
	if cfg.LogLevel != "info" || cfg.APITimeoutMs != 3000 || len(cfg.Connections) != 0 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.APITimeout() != 3*time.Second {
		t.Errorf("APITimeout() = %v", cfg.APITimeout())
	}
}

func TestLoadFile(t *testing.T) {
	dir, path := writeConfig(t, sampleConfig)

	cfg, resolved, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.LogLevel != "debug" || cfg.APITimeoutMs != 1500 || cfg.DefaultConnection != "wsl" {
		t.Errorf("scalars = %+v", cfg)
	}
	if len(cfg.Connections) != 2 {
		t.Fatalf("connections = %+v", cfg.Connections)
	}

	native := cfg.Connections[0]
	if _, err := uuid.Parse(native.ID); err != nil {
		t.Errorf("missing id should become a uuid, got %q", native.ID)
	}
	if native.Settings != nil {
		t.Errorf("native settings = %+v, want nil", native.Settings)
	}

	wsl := cfg.Connections[1]
	if wsl.ID != "fixed-id" || wsl.Host != engine.PodmanWSL || wsl.Settings == nil {
		t.Fatalf("wsl connection = %+v", wsl)
	}
	if wsl.Settings.Controller == nil || wsl.Settings.Controller.Scope != "Ubuntu" {
		t.Errorf("controller = %+v", wsl.Settings.Controller)
	}
	if wsl.Settings.API.URI != `\\.\pipe\enginedesk-podman-Ubuntu` {
		t.Errorf("api uri = %q", wsl.Settings.API.URI)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	_, path := writeConfig(t, `log_level: "warn"`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path, ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir, _ := writeConfig(t, `log_level: "warn"`)
	t.Cleanup(testutil.MustSetenv(t, "ENGINEDESK_LOG_LEVEL", "error"))
	t.Cleanup(testutil.MustSetenv(t, "ENGINEDESK_API_TIMEOUT_MS", "250"))

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "error" || cfg.APITimeoutMs != 250 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "invalid syntax",
			content: "log_level: {",
			want:    "load configuration",
		},
		{
			name:    "schema violation",
			content: `connections: [{name: "x", engine: "containerd", host: "podman.native"}]`,
			want:    "connections[0].engine",
		},
		{
			name:    "unknown field",
			content: `colour: "blue"`,
			want:    "colour",
		},
		{
			name: "duplicate names",
			content: `connections: [
				{name: "a", engine: "podman", host: "podman.native"},
				{name: "A", engine: "podman", host: "podman.remote"},
			]`,
			want: "duplicate name",
		},
		{
			name:    "host of another engine",
			content: `connections: [{name: "a", engine: "docker", host: "podman.native"}]`,
			want:    "does not belong to engine",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, _ := writeConfig(t, tt.content)
			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
			var actionable *issue.ActionableError
			if !errors.As(err, &actionable) || actionable.Issue != issue.ConfigLoadFailedId {
				t.Errorf("error should be actionable with the config issue, got %#v", err)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	var actionable *issue.ActionableError
	if !errors.As(err, &actionable) || !strings.Contains(actionable.Format(false), "config init") {
		t.Fatalf("error = %v", err)
	}
	if len(actionable.Suggestions) != 2 {
		t.Errorf("Suggestions = %q, want both load suggestions", actionable.Suggestions)
	}
}

func TestLoadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestCreateDefaultConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateDefaultConfig(dir, false)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if _, err := CreateDefaultConfig(dir, false); !errors.Is(err, ErrConfigExists) {
		t.Errorf("second call error = %v, want ErrConfigExists", err)
	}
	if _, err := CreateDefaultConfig(dir, true); err != nil {
		t.Errorf("forced call error = %v", err)
	}

	cfg, resolved, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if resolved != path || cfg.LogLevel != "info" || cfg.APITimeoutMs != 3000 {
		t.Errorf("loaded %+v from %q", cfg, resolved)
	}
}

func TestGenerateCUERoundTrip(t *testing.T) {
	in := &Config{
		LogLevel:          "debug",
		APITimeoutMs:      2000,
		DefaultConnection: "remote",
		Connections: []Connection{{
			ID:     "id-1",
			Name:   "remote",
			Engine: engine.Docker,
			Host:   engine.DockerRemote,
			Settings: &ConnectionSettings{
				Mode:       engine.ModeManual,
				API:        APIConfig{URI: "/tmp/relay.sock", Relay: "ssh://core@host/var/run/docker.sock", AutoStart: true},
				Program:    ProgramConfig{Name: "docker", Path: "/usr/bin/docker"},
				Controller: &ControllerConfig{Scope: "prod"},
			},
		}},
	}

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), GenerateCUE(in))
	out, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v\n%s", err, GenerateCUE(in))
	}
	got := out.Connections[0]
	if got.ID != "id-1" || !got.Settings.API.AutoStart || got.Settings.Controller.Scope != "prod" {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestConfigFind(t *testing.T) {
	t.Parallel()

	cfg := &Config{Connections: []Connection{{ID: "1", Name: "Native"}, {ID: "2", Name: "wsl"}}}
	if c, ok := cfg.Find("native"); !ok || c.ID != "1" {
		t.Errorf("Find(native) = %+v, %v", c, ok)
	}
	if c, ok := cfg.Find("2"); !ok || c.Name != "wsl" {
		t.Errorf("Find(2) = %+v, %v", c, ok)
	}
	if _, ok := cfg.Find(""); ok {
		t.Error("Find(\"\") without a default should fail with several connections")
	}
	cfg.DefaultConnection = "wsl"
	if c, ok := cfg.Find(""); !ok || c.ID != "2" {
		t.Errorf("Find(\"\") = %+v, want the default", c)
	}
	single := &Config{Connections: []Connection{{ID: "only"}}}
	if c, ok := single.Find(""); !ok || c.ID != "only" {
		t.Errorf("single Find(\"\") = %+v", c)
	}
}

func TestConnectionToEngine(t *testing.T) {
	t.Parallel()

	auto := Connection{ID: "a", Name: "n", Engine: engine.Podman, Host: engine.PodmanNative}.ToEngine()
	if auto.Settings.Mode != "" {
		t.Errorf("connection without settings should leave detection to the client, got %+v", auto.Settings)
	}

	manual := Connection{
		ID: "b", Engine: engine.Podman, Host: engine.PodmanVirtualized,
		Settings: &ConnectionSettings{
			API:        APIConfig{URI: "/sock"},
			Controller: &ControllerConfig{Name: "podman", Scope: "m1"},
		},
	}.ToEngine()
	if manual.Settings.Mode != engine.ModeManual {
		t.Errorf("Mode = %q, want manual", manual.Settings.Mode)
	}
	if manual.Settings.Program.Name != "podman" || manual.Settings.API.BaseURL == "" {
		t.Errorf("defaults not filled: %+v", manual.Settings)
	}
	if manual.Settings.Scope() != "m1" || manual.Settings.API.Connection.URI != "/sock" {
		t.Errorf("settings = %+v", manual.Settings)
	}
}

func TestConfigDirHonorsXDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("APPDATA layout is covered by the platform package")
	}
	home := t.TempDir()
	t.Cleanup(testutil.IsolateUserDirs(t, home))

	dir, err := ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(dir, home) || filepath.Base(dir) != "enginedesk" {
		t.Errorf("ConfigDir() = %q", dir)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"":                         nil,
		"log_level":                {"log_level"},
		"connections[0].host":      {"connections", "0", "host"},
		"connections[12].settings": {"connections", "12", "settings"},
	}
	for want, path := range tests {
		if got := formatPath(path); got != want {
			t.Errorf("formatPath(%v) = %q, want %q", path, got, want)
		}
	}
}
