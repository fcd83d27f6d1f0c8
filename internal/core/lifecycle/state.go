// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"errors"
	"fmt"
)

const (
	// StateIdle means nothing was started, or the last start was fully stopped.
	StateIdle State = iota
	// StateStarting means a start is in progress.
	StateStarting
	// StateRunning means the managed resource was started by this process.
	StateRunning
	// StateStopping means a stop is in progress.
	StateStopping
	// StateFailed means the last start failed; the next start resets it.
	StateFailed
)

// ErrInvalidTransition is the sentinel error wrapped by TransitionError.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

type (
	// State is the lifecycle state of a managed resource.
	State int32

	// TransitionError is returned when a transition is attempted from the wrong state.
	TransitionError struct {
		From State
		To   State
	}
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

// Unwrap returns ErrInvalidTransition for errors.Is() compatibility.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
