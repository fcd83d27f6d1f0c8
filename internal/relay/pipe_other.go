// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package relay

import (
	"errors"
	"fmt"
	"net"
)

// ErrPipeUnsupported is returned by ListenPipe outside Windows.
var ErrPipeUnsupported = errors.New("named pipes are only supported on Windows")

// ListenPipe is only available on Windows.
func ListenPipe(path string) (net.Listener, error) {
	return nil, fmt.Errorf("%w: %s", ErrPipeUnsupported, path)
}
