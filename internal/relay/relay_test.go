// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package relay

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/enginedesk/enginedesk/internal/testutil"
)

func startEchoServer(t *testing.T) string {
	t.Helper()
	path := testutil.SocketPath(t, "echo.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen echo: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()
	return path
}

func unixDialer(path string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}
}

func TestRelayForwardsBothWays(t *testing.T) {
	t.Parallel()

	upstream := startEchoServer(t)
	ln, err := ListenUnix(testutil.SocketPath(t, "relay.sock"))
	if err != nil {
		t.Fatalf("ListenUnix() error = %v", err)
	}
	r := Serve(ln, unixDialer(upstream))
	defer testutil.MustClose(t, r)

	conn, err := net.Dial("unix", r.Addr().String())
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte("ping\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "ping\n" {
		t.Errorf("echo = %q, want %q", line, "ping\n")
	}
	if served := r.served.Load(); served != 1 {
		t.Errorf("served = %d, want 1", served)
	}
}

func TestRelayDialFailureClosesClient(t *testing.T) {
	t.Parallel()

	ln, err := ListenUnix(testutil.SocketPath(t, "relay.sock"))
	if err != nil {
		t.Fatalf("ListenUnix() error = %v", err)
	}
	r := Serve(ln, func(context.Context) (io.ReadWriteCloser, error) {
		return nil, errors.New("upstream down")
	})
	defer testutil.MustClose(t, r)

	conn, err := net.Dial("unix", r.Addr().String())
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	buf := make([]byte, 1)
	if _, err := conn.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("Read() error = %v, want EOF", err)
	}
}

func TestRelayCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	ln, err := ListenUnix(testutil.SocketPath(t, "relay.sock"))
	if err != nil {
		t.Fatalf("ListenUnix() error = %v", err)
	}
	r := Serve(ln, unixDialer("/nonexistent"))
	if err := r.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := net.Dial("unix", ln.Addr().String()); err == nil {
		t.Error("dial after Close() should fail")
	}
}

func TestListenUnixReplacesStaleSocket(t *testing.T) {
	t.Parallel()

	path := filepath.Join(filepath.Dir(testutil.SocketPath(t, "x")), "nested", "api.sock")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	ln, err := ListenUnix(path)
	if err != nil {
		t.Fatalf("ListenUnix() error = %v", err)
	}
	testutil.MustClose(t, ln)
}

func TestCommandDialer(t *testing.T) {
	t.Parallel()

	if _, err := os.Stat("/bin/cat"); err != nil {
		t.Skip("cat not available")
	}
	stream, err := CommandDialer("/bin/cat")(context.Background())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := stream.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if cw, ok := stream.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			t.Fatalf("CloseWrite() error = %v", err)
		}
	}
	out, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("output = %q, want %q", out, "hello")
	}
	if err := stream.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestListenPipeUnsupported(t *testing.T) {
	t.Parallel()

	if _, err := ListenPipe(`\\.\pipe\enginedesk-test`); !errors.Is(err, ErrPipeUnsupported) {
		t.Errorf("ListenPipe() error = %v, want ErrPipeUnsupported", err)
	}
}
