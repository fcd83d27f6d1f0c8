// SPDX-License-Identifier: MPL-2.0

//go:build windows

package procutil

import "os"

// GracefulTerminate terminates the process. Process.Signal only supports
// os.Kill on Windows.
func GracefulTerminate(p *os.Process) error {
	return p.Kill()
}
