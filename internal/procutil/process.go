// SPDX-License-Identifier: MPL-2.0

package procutil

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// DefaultGracePeriod is how long Stop waits after GracefulTerminate before
// killing the process.
const DefaultGracePeriod = 5 * time.Second

// Stop terminates p gracefully and kills it if it has not exited once grace
// elapses. done must be closed when the process has been reaped.
func Stop(p *os.Process, done <-chan struct{}, grace time.Duration) error {
	if p == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	default:
	}

	if err := GracefulTerminate(p); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("terminate pid %d: %w", p.Pid, err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(grace):
	}

	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", p.Pid, err)
	}
	<-done
	return nil
}
