// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/enginedesk/enginedesk/internal/procutil"
	"github.com/enginedesk/enginedesk/pkg/platform"
)

type (
	// Command is one process invocation. Env entries (KEY=VALUE) are added to
	// the inherited environment.
	Command struct {
		Program string
		Args    []string
		Env     []string
	}

	// Executor runs a command to completion. It never returns an error: every
	// failure, including a missing program, is a CommandResult with Success false.
	Executor interface {
		Execute(ctx context.Context, cmd Command) CommandResult
	}

	// ExecutorFunc adapts a function to Executor.
	ExecutorFunc func(ctx context.Context, cmd Command) CommandResult

	// Launcher starts a long-running process, such as an engine API service.
	Launcher interface {
		Launch(ctx context.Context, cmd Command) (Process, error)
	}

	// Process is a launched long-running process.
	Process interface {
		Pid() int
		Done() <-chan struct{}
		Stop(ctx context.Context) error
	}

	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// Tests inject a helper-process implementation.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// HostExecutorOption configures a HostExecutor.
	HostExecutorOption func(*HostExecutor)

	// HostExecutor spawns processes on the host, routed through the sandbox
	// launcher when enginedesk itself runs inside Flatpak or Snap.
	HostExecutor struct {
		execCommand ExecCommandFunc
		sandbox     platform.SandboxType
	}

	hostProcess struct {
		cmd  *exec.Cmd
		done chan struct{}
	}
)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, cmd Command) CommandResult {
	return f(ctx, cmd)
}

// WithExecCommand overrides how exec.Cmd values are created.
func WithExecCommand(fn ExecCommandFunc) HostExecutorOption {
	return func(e *HostExecutor) {
		if fn != nil {
			e.execCommand = fn
		}
	}
}

// WithSandbox overrides sandbox detection.
func WithSandbox(st platform.SandboxType) HostExecutorOption {
	return func(e *HostExecutor) {
		e.sandbox = st
	}
}

// NewHostExecutor creates an executor for host processes.
func NewHostExecutor(opts ...HostExecutorOption) *HostExecutor {
	e := &HostExecutor{
		execCommand: exec.CommandContext,
		sandbox:     platform.DetectSandbox(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs cmd and captures its output.
func (e *HostExecutor) Execute(ctx context.Context, c Command) CommandResult {
	cmd := e.build(ctx, c)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		result.Success = true
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.Code = exitErr.ExitCode()
		return result
	}
	result.Code = -1
	if result.Stderr == "" {
		result.Stderr = err.Error()
	}
	return result
}

// Launch starts cmd detached from ctx; the process lives until Stop.
func (e *HostExecutor) Launch(_ context.Context, c Command) (Process, error) {
	// Background context: the API service must outlive the request that started it.
	cmd := e.build(context.Background(), c)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", c.Program, err)
	}
	p := &hostProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (e *HostExecutor) build(ctx context.Context, c Command) *exec.Cmd {
	program, args := platform.WrapHostCommand(e.sandbox, c.Program, c.Args)
	if e.sandbox == platform.SandboxFlatpak && len(c.Env) > 0 {
		// flatpak-spawn does not forward the caller environment.
		withEnv := make([]string, 0, len(args)+len(c.Env))
		withEnv = append(withEnv, args[0])
		for _, kv := range c.Env {
			withEnv = append(withEnv, "--env="+kv)
		}
		args = append(withEnv, args[1:]...)
	}
	cmd := e.execCommand(ctx, program, args...)
	if len(c.Env) > 0 {
		base := cmd.Env
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(base, c.Env...)
	}
	return cmd
}

func (p *hostProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *hostProcess) Done() <-chan struct{} { return p.done }

func (p *hostProcess) Stop(ctx context.Context) error {
	grace := procutil.DefaultGracePeriod
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < grace {
			grace = remaining
		}
	}
	return procutil.Stop(p.cmd.Process, p.done, grace)
}

// CommandLine renders cmd for logs.
func (c Command) CommandLine() string {
	return strings.TrimSpace(c.Program + " " + strings.Join(c.Args, " "))
}

// hostProgram appends the .exe suffix on Windows when missing.
func hostProgram(family platform.OperatingSystem, program string) string {
	suffix := family.ExecutableSuffix()
	if suffix == "" || strings.HasSuffix(strings.ToLower(program), suffix) {
		return program
	}
	return program + suffix
}
