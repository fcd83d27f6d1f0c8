// SPDX-License-Identifier: MPL-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

type (
	// Dialer opens one upstream stream per accepted connection.
	Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

	// Option configures a Relay.
	Option func(*Relay)

	// Relay copies bytes between accepted connections and upstream streams
	// until it is closed.
	Relay struct {
		ln     net.Listener
		dial   Dialer
		logger *log.Logger

		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup

		mu     sync.Mutex
		conns  map[net.Conn]struct{}
		closed atomic.Bool
		served atomic.Int64
	}
)

// WithLogger sets the relay logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// Serve starts relaying connections from ln through dial. The relay owns ln.
func Serve(ln net.Listener, dial Dialer, opts ...Option) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		ln:     ln,
		dial:   dial,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "relay"})
	}
	r.logger = r.logger.With("addr", ln.Addr().String())

	r.wg.Add(1)
	go r.acceptLoop()
	return r
}

// Addr returns the listening address.
func (r *Relay) Addr() net.Addr { return r.ln.Addr() }

// Close stops accepting, closes open connections and waits for the copy
// goroutines to finish. It is safe to call more than once.
func (r *Relay) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.cancel()
	err := r.ln.Close()

	r.mu.Lock()
	for conn := range r.conns {
		_ = conn.Close()
	}
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug("relay closed", "served", r.served.Load())
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close relay listener: %w", err)
	}
	return nil
}

func (r *Relay) acceptLoop() {
	defer r.wg.Done()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			if r.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Warn("accept failed", "err", err)
			continue
		}
		r.track(conn, true)
		r.wg.Add(1)
		go r.handle(conn)
	}
}

func (r *Relay) handle(conn net.Conn) {
	defer r.wg.Done()
	defer r.track(conn, false)
	defer conn.Close()

	upstream, err := r.dial(r.ctx)
	if err != nil {
		r.logger.Error("dial upstream failed", "err", err)
		return
	}
	defer upstream.Close()
	r.served.Add(1)

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(upstream, conn)
		closeWrite(upstream)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(conn, upstream)
		closeWrite(conn)
		done <- struct{}{}
	}()

	select {
	case <-done:
		<-done
	case <-r.ctx.Done():
	}
}

func (r *Relay) track(conn net.Conn, add bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if add {
		r.conns[conn] = struct{}{}
		return
	}
	delete(r.conns, conn)
}

func closeWrite(rw any) {
	if cw, ok := rw.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
}

// ListenUnix listens on a unix socket at path, replacing a stale socket file
// and creating the parent directory.
func ListenUnix(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create relay directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	return ln, nil
}
