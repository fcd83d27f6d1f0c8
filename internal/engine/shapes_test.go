// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"unicode/utf16"

	"github.com/enginedesk/enginedesk/pkg/platform"
)

func utf16le(s string) string {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[2*i:], u)
	}
	return string(buf)
}

const wslListOutput = "  NAME                   STATE           VERSION\r\n" +
	"* Ubuntu-22.04           Running         2\r\n" +
	"  docker-desktop         Stopped         2\r\n" +
	"  docker-desktop-data    Stopped         2\r\n" +
	"  Legacy Debian          Stopped         1\r\n"

func TestParseWSLList(t *testing.T) {
	t.Parallel()

	for name, raw := range map[string]string{
		"utf8":    wslListOutput,
		"utf16le": utf16le(wslListOutput),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := parseWSLList(decodeWSLOutput(raw))
			want := []ControllerScope{
				{Name: "Ubuntu-22.04", Usable: true, State: "running", Default: true},
				{Name: "Legacy Debian", Usable: false, State: "stopped"},
			}
			if !slices.Equal(got, want) {
				t.Errorf("parseWSLList() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestWSLScopeCommands(t *testing.T) {
	t.Parallel()

	exec := newFakeExec(map[string]CommandResult{
		"wsl.exe --distribution Ubuntu --exec podman info": okResult("{}"),
		"wsl.exe --terminate Ubuntu":                       okResult(""),
	})
	client := NewPodmanWSL("w1", testOptions(t, exec, envFor(platform.Windows))...)
	ctx := context.Background()

	if result := client.RunScopeCommand(ctx, "podman", []string{"info"}, "Ubuntu"); !result.Success {
		t.Errorf("RunScopeCommand() ran %v", exec.lines())
	}
	if stopped, err := client.StopScope(ctx, ControllerScope{Name: "Ubuntu"}); err != nil || !stopped {
		t.Errorf("StopScope() = %v, %v", stopped, err)
	}
	if _, err := client.StartScope(ctx, ControllerScope{Name: "Legacy", Usable: false}); !errors.Is(err, ErrScopeStartFailed) {
		t.Errorf("StartScope(WSL 1) error = %v, want ErrScopeStartFailed", err)
	}
	if !client.ShouldKeepStartedScopeRunning() {
		t.Error("WSL distributions should be kept running")
	}
}

func TestWSLAPIConnection(t *testing.T) {
	t.Parallel()

	exec := newFakeExec(map[string]CommandResult{
		"wsl.exe --distribution Ubuntu --exec printenv XDG_RUNTIME_DIR": failResult(1, ""),
		"wsl.exe --distribution Ubuntu --exec id -u":                    okResult("1000\n"),
	})
	client := NewPodmanWSL("w1", testOptions(t, exec, envFor(platform.Windows))...)
	settings := DefaultSettings(Podman)
	settings.Controller = &Controller{Program: Program{Name: "wsl"}, Scope: "Ubuntu"}

	got, err := client.APIConnection(context.Background(), settings)
	if err != nil {
		t.Fatalf("APIConnection() error = %v", err)
	}
	want := APIConnection{URI: `\\.\pipe\enginedesk-podman-Ubuntu`, Relay: "/run/user/1000/podman/podman.sock"}
	if got != want {
		t.Errorf("APIConnection() = %+v, want %+v", got, want)
	}

	docker := NewDockerWSL("w2", testOptions(t, newFakeExec(nil), envFor(platform.Windows))...)
	got, err = docker.APIConnection(context.Background(), settings)
	if err != nil || got.Relay != dockerSocket || got.URI != `\\.\pipe\enginedesk-docker-Ubuntu` {
		t.Errorf("docker APIConnection() = %+v, %v", got, err)
	}
}

func TestWSLAPILaunch(t *testing.T) {
	t.Parallel()

	exec := newFakeExec(map[string]CommandResult{
		"wsl.exe --list --verbose": okResult(utf16le(wslListOutput)),
	})
	client := NewPodmanWSL("w1", testOptions(t, exec, envFor(platform.Windows))...)
	settings := DefaultSettings(Podman)
	settings.Program.Path = "/usr/bin/podman"
	settings.Rootfull = true
	settings.Controller = &Controller{Program: Program{Name: "wsl"}, Scope: "Ubuntu-22.04"}

	launch, err := client.apiLaunch(context.Background(), settings)
	if err != nil {
		t.Fatalf("apiLaunch() error = %v", err)
	}
	if launch.Service == nil || launch.Relay == nil || !launch.Wait {
		t.Fatalf("launch = %+v, want service, relay and wait", launch)
	}
	want := "wsl.exe --distribution Ubuntu-22.04 --exec /usr/bin/podman system service --time=0 unix:///run/podman/podman.sock"
	if got := launch.Service.CommandLine(); got != want {
		t.Errorf("service = %q, want %q", got, want)
	}
}

func TestParseMachineList(t *testing.T) {
	t.Parallel()

	got, err := parseMachineList(machineListJSON)
	if err != nil {
		t.Fatalf("parseMachineList() error = %v", err)
	}
	want := []ControllerScope{
		{Name: "podman-machine-default", Usable: true, State: "running", Default: true},
		{Name: "build", State: "stopped"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("parseMachineList() = %+v, want %+v", got, want)
	}

	if scopes, err := parseMachineList(""); err != nil || len(scopes) != 0 {
		t.Errorf("empty output = %v, %v", scopes, err)
	}
	if _, err := parseMachineList("{"); err == nil {
		t.Error("invalid JSON should fail")
	}
}

func TestVirtualizedRunScopeCommandQuotes(t *testing.T) {
	t.Parallel()

	exec := newFakeExec(nil)
	client := NewPodmanVirtualized("v1", testOptions(t, exec, linuxEnv())...)

	client.RunScopeCommand(context.Background(), "podman", []string{"ps", "--format", "{{.Names}} {{.ID}}"}, "m1")

	cmd, ok := exec.command("podman machine ssh m1 podman ps --format '{{.Names}} {{.ID}}'")
	if !ok {
		t.Fatalf("unexpected commands %v", exec.lines())
	}
	if len(cmd.Args) != 4 {
		t.Errorf("the guest command must be a single argument, got %q", cmd.Args)
	}
}

func TestVirtualizedAPIConnection(t *testing.T) {
	t.Parallel()

	inspect := `[{"Name": "m1", "ConnectionInfo": {
		"PodmanSocket": {"Path": "/tmp/m1/podman.sock"},
		"PodmanPipe": {"Path": "\\\\.\\pipe\\podman-m1"}}}]`
	settings := DefaultSettings(Podman)
	settings.Controller = &Controller{Program: Program{Name: "podman"}, Scope: "m1"}

	tests := []struct {
		os   platform.OperatingSystem
		line string
		want string
	}{
		{os: platform.Linux, line: "podman machine inspect m1", want: "/tmp/m1/podman.sock"},
		{os: platform.Windows, line: "podman.exe machine inspect m1", want: `\\.\pipe\podman-m1`},
	}
	for _, tt := range tests {
		t.Run(string(tt.os), func(t *testing.T) {
			t.Parallel()
			exec := newFakeExec(map[string]CommandResult{tt.line: okResult(inspect)})
			client := NewPodmanVirtualized("v1", testOptions(t, exec, envFor(tt.os))...)
			got, err := client.APIConnection(context.Background(), settings)
			if err != nil {
				t.Fatalf("APIConnection() error = %v", err)
			}
			if got.URI != tt.want {
				t.Errorf("URI = %q, want %q", got.URI, tt.want)
			}
		})
	}
}

func TestParseLimaList(t *testing.T) {
	t.Parallel()

	out := `{"name":"default","status":"Stopped","dir":"/Users/me/.lima/default"}
{"name":"podman","status":"Running","dir":"/Users/me/.lima/podman"}
`
	got, err := parseLimaList(out, "podman")
	if err != nil {
		t.Fatalf("parseLimaList() error = %v", err)
	}
	want := []ControllerScope{
		{Name: "default", State: "stopped", Dir: "/Users/me/.lima/default"},
		{Name: "podman", Usable: true, State: "running", Default: true, Dir: "/Users/me/.lima/podman"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("parseLimaList() = %+v, want %+v", got, want)
	}
	if def := defaultScope(got); def == nil || def.Name != "podman" {
		t.Errorf("defaultScope() = %+v, want podman", def)
	}
}

func TestLimaHostSocket(t *testing.T) {
	t.Parallel()

	config := []byte(`
portForwards:
- guestSocket: "/run/user/{{.UID}}/podman/podman.sock"
  hostSocket: "{{.Dir}}/sock/podman.sock"
- guestSocket: "/var/run/docker.sock"
  hostSocket: "{{.Home}}/.lima/{{.Name}}/docker.sock"
`)
	data := map[string]string{"Dir": "/Users/me/.lima/podman", "Home": "/Users/me", "Name": "podman"}

	tests := []struct {
		program string
		want    string
	}{
		{program: "podman", want: "/Users/me/.lima/podman/sock/podman.sock"},
		{program: "docker", want: "/Users/me/.lima/podman/docker.sock"},
		{program: "nerdctl", want: ""},
	}
	for _, tt := range tests {
		got, err := limaHostSocket(config, tt.program, data)
		if err != nil {
			t.Fatalf("limaHostSocket(%s) error = %v", tt.program, err)
		}
		if got != tt.want {
			t.Errorf("limaHostSocket(%s) = %q, want %q", tt.program, got, tt.want)
		}
	}
}

func TestLimaAPIConnection(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	withConfig := filepath.Join(dir, "podman")
	withoutConfig := filepath.Join(dir, "other")
	for _, d := range []string{withConfig, withoutConfig} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	yaml := "portForwards:\n- guestSocket: /run/podman/podman.sock\n  hostSocket: api.sock\n"
	if err := os.WriteFile(filepath.Join(withConfig, "lima.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	list := `{"name":"podman","status":"Running","dir":"` + filepath.ToSlash(withConfig) + `"}` + "\n" +
		`{"name":"other","status":"Running","dir":"` + filepath.ToSlash(withoutConfig) + `"}` + "\n"
	exec := newFakeExec(map[string]CommandResult{"limactl list --json": okResult(list)})
	client := NewPodmanLIMA("l1", testOptions(t, exec, envFor(platform.Mac))...)

	tests := []struct {
		scope string
		want  string
	}{
		{scope: "podman", want: filepath.Join(withConfig, "api.sock")},
		{scope: "other", want: filepath.Join(withoutConfig, "sock", "podman.sock")},
	}
	for _, tt := range tests {
		settings := DefaultSettings(Podman)
		settings.Controller = &Controller{Program: Program{Name: "limactl"}, Scope: tt.scope}
		got, err := client.APIConnection(context.Background(), settings)
		if err != nil {
			t.Fatalf("APIConnection(%s) error = %v", tt.scope, err)
		}
		if got.URI != tt.want {
			t.Errorf("APIConnection(%s) = %q, want %q", tt.scope, got.URI, tt.want)
		}
	}
}

func TestNativeAPIConnection(t *testing.T) {
	t.Parallel()

	rootless := DefaultSettings(Podman)
	rootfull := DefaultSettings(Podman)
	rootfull.Rootfull = true

	tests := []struct {
		name     string
		client   HostClient
		settings Settings
		want     string
	}{
		{"podman rootless", NewPodmanNative("n", testOptions(t, newFakeExec(nil), linuxEnv())...), rootless, "/run/user/1000/podman/podman.sock"},
		{"podman rootfull", NewPodmanNative("n", testOptions(t, newFakeExec(nil), linuxEnv())...), rootfull, "/run/podman/podman.sock"},
		{"docker native", NewDockerNative("n", testOptions(t, newFakeExec(nil), linuxEnv())...), DefaultSettings(Docker), "/var/run/docker.sock"},
		{"docker desktop mac", NewDockerVirtualizedVendor("n", testOptions(t, newFakeExec(nil), envFor(platform.Mac))...), DefaultSettings(Docker), filepath.Join("/home/me", ".docker", "run", "docker.sock")},
		{"docker desktop windows", NewDockerVirtualizedVendor("n", testOptions(t, newFakeExec(nil), envFor(platform.Windows))...), DefaultSettings(Docker), `\\.\pipe\docker_engine`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.client.APIConnection(context.Background(), tt.settings)
			if err != nil {
				t.Fatalf("APIConnection() error = %v", err)
			}
			if got.URI != tt.want {
				t.Errorf("URI = %q, want %q", got.URI, tt.want)
			}
		})
	}
}

func TestRemotePodmanDestinations(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	conf := filepath.Join(dir, "containers.conf")
	content := `[engine]
active_service = "prod"
[engine.service_destinations.prod]
uri = "ssh://core@prod.example.com:22/run/podman/podman.sock"
identity = "/keys/prod"
[engine.service_destinations.machine]
uri = "ssh://core@127.0.0.1:41234/run/user/1000/podman/podman.sock"
is_machine = true
`
	if err := os.WriteFile(conf, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	env := linuxEnv()
	env.Vars["CONTAINERS_CONF"] = conf
	env.Vars["XDG_DATA_HOME"] = filepath.Join(dir, "data")
	client := NewPodmanRemote("r1", testOptions(t, newFakeExec(nil), env)...)
	ctx := context.Background()

	if check := client.IsEngineAvailable(ctx); !check.Success {
		t.Errorf("IsEngineAvailable() = %+v", check)
	}
	scopes, err := client.ControllerScopes(ctx, client.Settings())
	if err != nil || len(scopes) != 1 || scopes[0].Name != "prod" || scopes[0].Identity != "/keys/prod" {
		t.Fatalf("ControllerScopes() = %+v, %v", scopes, err)
	}

	api, err := client.APIConnection(ctx, client.Settings())
	if err != nil {
		t.Fatalf("APIConnection() error = %v", err)
	}
	wantURI := filepath.Join(dir, "data", "enginedesk", "relays", "r1.sock")
	if api.URI != wantURI || api.Relay != "ssh://core@prod.example.com:22/run/podman/podman.sock" {
		t.Errorf("APIConnection() = %+v, want uri %q", api, wantURI)
	}
	if client.IsScoped() {
		t.Error("remote connections are unscoped")
	}
}

func TestRemoteDockerContextsAndEnv(t *testing.T) {
	t.Parallel()

	contexts := `{"Current":false,"Description":"","DockerEndpoint":"unix:///var/run/docker.sock","Name":"default"}
{"Current":true,"Description":"","DockerEndpoint":"ssh://me@build.example.com","Name":"build"}
`
	exec := newFakeExec(map[string]CommandResult{
		"docker context ls --format {{json .}}": okResult(contexts),
		"docker ps":                             okResult(""),
	})
	client := NewDockerRemote("r2", testOptions(t, exec, linuxEnv())...)
	ctx := context.Background()

	api, err := client.APIConnection(ctx, client.Settings())
	if err != nil {
		t.Fatalf("APIConnection() error = %v", err)
	}
	if api.Relay != "ssh://me@build.example.com/var/run/docker.sock" {
		t.Errorf("Relay = %q", api.Relay)
	}

	settings := client.Settings()
	settings.Controller = &Controller{Scope: "build"}
	client.SetSettings(settings)
	client.RunHostCommand(ctx, "docker", "ps")
	cmd, ok := exec.command("docker ps")
	if !ok || !slices.Equal(cmd.Env, []string{"DOCKER_CONTEXT=build"}) {
		t.Errorf("host command env = %v", cmd.Env)
	}
}

func TestRemoteWithoutDestinations(t *testing.T) {
	t.Parallel()

	env := linuxEnv()
	env.Vars["CONTAINERS_CONF"] = filepath.Join(t.TempDir(), "missing.conf")
	client := NewPodmanRemote("r1", testOptions(t, newFakeExec(nil), env)...)

	if check := client.IsEngineAvailable(context.Background()); check.Success {
		t.Errorf("IsEngineAvailable() = %+v, want failure", check)
	}
	if _, err := client.APIConnection(context.Background(), client.Settings()); !errors.Is(err, ErrNoDestination) {
		t.Errorf("APIConnection() error = %v, want ErrNoDestination", err)
	}
}

func TestShellLine(t *testing.T) {
	t.Parallel()

	got, err := shellLine("printenv", []string{"HOME"})
	if err != nil || got != "printenv HOME" {
		t.Errorf("shellLine() = %q, %v", got, err)
	}
	got, err = shellLine("sh", []string{"-c", "echo $HOME; ls"})
	if err != nil || got != "sh -c 'echo $HOME; ls'" {
		t.Errorf("shellLine() = %q, %v", got, err)
	}
}
