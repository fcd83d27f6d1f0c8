// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/enginedesk/enginedesk/pkg/platform"
)

// fakeExec answers commands by their rendered command line and records every
// call. Unknown commands fail with code 127.
type fakeExec struct {
	mu        sync.Mutex
	responses map[string]CommandResult
	calls     []Command
}

func newFakeExec(responses map[string]CommandResult) *fakeExec {
	if responses == nil {
		responses = map[string]CommandResult{}
	}
	return &fakeExec{responses: responses}
}

func (f *fakeExec) Execute(_ context.Context, cmd Command) CommandResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	if result, ok := f.responses[cmd.CommandLine()]; ok {
		return result
	}
	return CommandResult{Code: 127, Stderr: "command not found: " + cmd.Program}
}

func (f *fakeExec) set(line string, result CommandResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[line] = result
}

func (f *fakeExec) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.CommandLine())
	}
	return out
}

func (f *fakeExec) called(line string) bool {
	return slices.Contains(f.lines(), line)
}

func (f *fakeExec) command(line string) (Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.CommandLine() == line {
			return c, true
		}
	}
	return Command{}, false
}

func okResult(stdout string) CommandResult {
	return CommandResult{Success: true, Stdout: stdout}
}

func failResult(code int, stderr string) CommandResult {
	return CommandResult{Code: code, Stderr: stderr}
}

// fakeDriver answers pings with a fixed body or error. With okAfter set, the
// okAfter-th and later pings succeed.
type fakeDriver struct {
	mu      sync.Mutex
	body    string
	err     error
	okAfter int32
	events  []Event
	pings   atomic.Int32
	closed  atomic.Bool
}

func (d *fakeDriver) Ping(context.Context) (string, error) {
	n := d.pings.Add(1)
	if d.okAfter > 0 && n >= d.okAfter {
		return pingOK, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.body, d.err
}

func (d *fakeDriver) setPing(body string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.body, d.err = body, err
}

func (d *fakeDriver) Events(ctx context.Context) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		for _, ev := range d.events {
			select {
			case events <- ev:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return events, errs
}

func (d *fakeDriver) Close() error {
	d.closed.Store(true)
	return nil
}

func unreachableDriver() *fakeDriver {
	return &fakeDriver{err: errors.New("dial unix /run/podman/podman.sock: connect: no such file or directory")}
}

func withDriver(d *fakeDriver) Option {
	return WithDriverFactory(func(Connection) (APIDriver, error) { return d, nil })
}

// fakeLauncher records launched commands and hands out fake processes.
// onLaunch runs after each successful launch.
type fakeLauncher struct {
	mu       sync.Mutex
	launched []Command
	procs    []*fakeProcess
	err      error
	onLaunch func()
}

func (l *fakeLauncher) Launch(_ context.Context, cmd Command) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := &fakeProcess{pid: 4242 + len(l.procs), done: make(chan struct{})}
	l.launched = append(l.launched, cmd)
	l.procs = append(l.procs, p)
	if l.onLaunch != nil {
		l.onLaunch()
	}
	return p, nil
}

type fakeProcess struct {
	pid     int
	done    chan struct{}
	stopped atomic.Int32
	once    sync.Once
}

func (p *fakeProcess) Pid() int              { return p.pid }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Stop(context.Context) error {
	p.stopped.Add(1)
	p.exit()
	return nil
}

// exit simulates the process ending on its own.
func (p *fakeProcess) exit() {
	p.once.Do(func() { close(p.done) })
}

// fakeCloser counts Close calls.
type fakeCloser struct {
	closed atomic.Int32
	err    error
}

func (c *fakeCloser) Close() error {
	c.closed.Add(1)
	return c.err
}

var _ io.Closer = (*fakeCloser)(nil)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func linuxEnv() *platform.MapEnvironment {
	return &platform.MapEnvironment{
		System: platform.Linux,
		Vars:   map[string]string{"XDG_RUNTIME_DIR": "/run/user/1000"},
		Home:   "/home/me",
	}
}

func envFor(os platform.OperatingSystem) *platform.MapEnvironment {
	env := linuxEnv()
	env.System = os
	return env
}

func existing(paths ...string) Option {
	return WithFileExists(func(p string) bool { return slices.Contains(paths, p) })
}

// testOptions wires the fakes every client test needs.
func testOptions(t *testing.T, exec *fakeExec, env platform.Environment, extra ...Option) []Option {
	t.Helper()
	opts := []Option{
		WithExecutor(exec),
		WithLauncher(&fakeLauncher{}),
		WithEnvironment(env),
		WithLogger(quietLogger()),
		WithFileExists(func(string) bool { return false }),
	}
	return append(opts, extra...)
}
