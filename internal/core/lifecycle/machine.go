// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Machine tracks one start/stop cycle at a time. Unlike a single-use server
// base, a Machine returns to StateIdle after a stop and can be started again.
type Machine struct {
	state atomic.Int32

	mu      sync.Mutex
	lastErr error
}

// State returns the current state (lock-free).
func (m *Machine) State() State {
	return State(m.state.Load())
}

// IsRunning reports whether the resource is up and owned by this machine.
func (m *Machine) IsRunning() bool {
	return m.State() == StateRunning
}

// LastError returns the error recorded by the last failed start.
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// BeginStart moves Idle or Failed to Starting.
func (m *Machine) BeginStart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before start: %w", err)
	}
	for {
		current := m.State()
		switch current {
		case StateIdle, StateFailed:
			if m.state.CompareAndSwap(int32(current), int32(StateStarting)) {
				return nil
			}
		default:
			return &TransitionError{From: current, To: StateStarting}
		}
	}
}

// MarkRunning completes a start.
func (m *Machine) MarkRunning() {
	m.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
}

// MarkFailed records err and ends a start.
func (m *Machine) MarkFailed(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.state.Store(int32(StateFailed))
}

// BeginStop moves Running to Stopping. It returns false when there is nothing
// this machine started, or another stop already owns the transition.
func (m *Machine) BeginStop() bool {
	return m.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
}

// MarkStopped completes a stop.
func (m *Machine) MarkStopped() {
	m.state.Store(int32(StateIdle))
}

// AbortStop returns a failed stop to Running so it can be retried.
func (m *Machine) AbortStop(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.state.CompareAndSwap(int32(StateStopping), int32(StateRunning))
}
