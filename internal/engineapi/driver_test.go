// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package engineapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/events"

	"github.com/enginedesk/enginedesk/internal/engine"
	"github.com/enginedesk/enginedesk/internal/testutil"
)

func TestDockerHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri     string
		want    string
		wantErr error
	}{
		{uri: "/run/user/1000/podman/podman.sock", want: "unix:///run/user/1000/podman/podman.sock"},
		{uri: `\\.\pipe\docker_engine`, want: "npipe:////./pipe/docker_engine"},
		{uri: `\\.\pipe\enginedesk-podman-Ubuntu`, want: "npipe:////./pipe/enginedesk-podman-Ubuntu"},
		{uri: "unix:///var/run/docker.sock", want: "unix:///var/run/docker.sock"},
		{uri: "tcp://10.0.0.5:2375", want: "tcp://10.0.0.5:2375"},
		{uri: "ssh://core@host/run/podman/podman.sock", wantErr: ErrUnsupportedScheme},
		{uri: "", wantErr: ErrNoAddress},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			t.Parallel()
			got, err := DockerHost(tt.uri)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DockerHost() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("DockerHost() = %q, %v, want %q", got, err, tt.want)
			}
		})
	}
}

func TestPingAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host, baseURL, want string
	}{
		{"unix:///run/podman.sock", "http://d/v4.0.0/libpod", "http://api.moby.localhost/v4.0.0/libpod/_ping"},
		{"unix:///var/run/docker.sock", "http://localhost", "http://api.moby.localhost/_ping"},
		{"tcp://10.0.0.5:2375", "http://localhost/", "http://10.0.0.5:2375/_ping"},
	}
	for _, tt := range tests {
		got, err := pingAddress(tt.host, tt.baseURL)
		if err != nil || got != tt.want {
			t.Errorf("pingAddress(%q, %q) = %q, %v, want %q", tt.host, tt.baseURL, got, err, tt.want)
		}
	}
}

// serveEngine starts a minimal engine API on a unix socket. /_ping answers
// with body and status; /events emits evs then holds the stream open.
func serveEngine(t *testing.T, body string, status int, evs ...events.Message) string {
	t.Helper()
	path := testutil.SocketPath(t, "engine.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/_ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Api-Version", "1.45")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/events") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		for _, ev := range evs {
			_ = enc.Encode(ev)
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: time.Second}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return path
}

func newTestDriver(t *testing.T, socket string) engine.APIDriver {
	t.Helper()
	conn := engine.Connection{ID: "c1", Settings: engine.DefaultSettings(engine.Docker)}
	conn.Settings.API.Connection.URI = socket
	d, err := NewDriver(conn)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	t.Cleanup(testutil.DeferClose(t, d))
	return d
}

func TestDriverPing(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, serveEngine(t, "OK\n", http.StatusOK))
	got, err := d.Ping(context.Background())
	if err != nil || got != "OK" {
		t.Errorf("Ping() = %q, %v, want OK", got, err)
	}
}

func TestDriverPingErrors(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, serveEngine(t, "maintenance", http.StatusServiceUnavailable))
	if _, err := d.Ping(context.Background()); err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Ping() error = %v, want status error", err)
	}

	missing := newTestDriver(t, testutil.SocketPath(t, "missing.sock"))
	if _, err := missing.Ping(context.Background()); err == nil {
		t.Error("Ping() on a missing socket should fail")
	}
}

func TestDriverEvents(t *testing.T) {
	t.Parallel()

	msg := events.Message{
		Type:     events.ContainerEventType,
		Action:   events.ActionStart,
		Actor:    events.Actor{ID: "abc123", Attributes: map[string]string{"name": "web"}},
		TimeNano: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC).UnixNano(),
	}
	d := newTestDriver(t, serveEngine(t, "OK", http.StatusOK, msg))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stream, errs := d.Events(ctx)

	select {
	case ev := <-stream:
		if ev.Type != "container" || ev.Action != "start" || ev.ActorID != "abc123" || ev.Attributes["name"] != "web" {
			t.Errorf("event = %+v", ev)
		}
		if !ev.Time.Equal(time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)) {
			t.Errorf("event time = %v", ev.Time)
		}
	case err := <-errs:
		t.Fatalf("Events() error = %v", err)
	case <-ctx.Done():
		t.Fatal("no event received")
	}

	cancel()
	for range stream {
	}
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Errorf("stream error after cancel = %v, want context.Canceled", err)
	}
}

func TestToEventSecondsFallback(t *testing.T) {
	t.Parallel()

	ev := toEvent(events.Message{Type: events.ImageEventType, Action: events.ActionPull, Time: 1700000000})
	if !ev.Time.Equal(time.Unix(1700000000, 0)) || ev.Type != "image" || ev.Action != "pull" {
		t.Errorf("toEvent() = %+v", ev)
	}
}
