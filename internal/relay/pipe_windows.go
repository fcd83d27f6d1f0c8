// SPDX-License-Identifier: MPL-2.0

//go:build windows

package relay

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// ListenPipe listens on a Windows named pipe such as \\.\pipe\name.
func ListenPipe(path string) (net.Listener, error) {
	ln, err := winio.ListenPipe(path, &winio.PipeConfig{InputBufferSize: 65536, OutputBufferSize: 65536})
	if err != nil {
		return nil, fmt.Errorf("listen on pipe %s: %w", path, err)
	}
	return ln, nil
}
