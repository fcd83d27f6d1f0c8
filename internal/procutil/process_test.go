// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package procutil

import (
	"os/exec"
	"testing"
	"time"
)

func TestStopTerminatesProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}

	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep not available: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	if err := Stop(cmd.Process, done, time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("process not reaped after Stop")
	}
}

func TestStopNilProcess(t *testing.T) {
	t.Parallel()

	if err := Stop(nil, nil, time.Second); err != nil {
		t.Errorf("Stop(nil) error = %v", err)
	}
}
