// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package procutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// GracefulTerminate asks the process to shut down with SIGTERM.
func GracefulTerminate(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}
