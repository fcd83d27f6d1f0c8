// SPDX-License-Identifier: MPL-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

type commandStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	once   sync.Once
	err    error
}

// CommandDialer spawns program for every connection and relays through its
// stdin and stdout, as with `socat STDIO UNIX-CONNECT:<socket>`.
func CommandDialer(program string, args ...string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		cmd := exec.CommandContext(ctx, program, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("relay stdin: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("relay stdout: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start relay command %s: %w", program, err)
		}
		return &commandStream{cmd: cmd, stdin: stdin, stdout: stdout}, nil
	}
}

func (s *commandStream) Read(p []byte) (int, error)  { return s.stdout.Read(p) }
func (s *commandStream) Write(p []byte) (int, error) { return s.stdin.Write(p) }

// CloseWrite signals EOF to the command.
func (s *commandStream) CloseWrite() error { return s.stdin.Close() }

// Close ends the command.
func (s *commandStream) Close() error {
	s.once.Do(func() {
		_ = s.stdin.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		err := s.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			s.err = err
		}
	})
	return s.err
}
