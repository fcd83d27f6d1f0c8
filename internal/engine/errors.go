// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPruneFailed is returned when `system prune` exits unsuccessfully.
	ErrPruneFailed = errors.New("unable to prune system")
	// ErrResetFailed is returned when `system reset` exits unsuccessfully.
	ErrResetFailed = errors.New("unable to reset system")
	// ErrUnknownHost is returned when an engine family has no client for a host.
	ErrUnknownHost = errors.New("unable to find specified host")
	// ErrAPIStartUnsupported is returned when a shape cannot launch its engine API.
	ErrAPIStartUnsupported = errors.New("engine API cannot be started from here")
	// ErrAPINotReachable is returned when a started API never answered its ping.
	ErrAPINotReachable = errors.New("engine API is not reachable")
	// ErrScopeNotFound is returned when a scope name matches no controller scope.
	ErrScopeNotFound = errors.New("controller scope not found")
	// ErrEventsUnsupported is returned when no API driver can stream events.
	ErrEventsUnsupported = errors.New("event stream is not available")
	// ErrScopeListFailed is returned when the controller cannot list or inspect scopes.
	ErrScopeListFailed = errors.New("unable to list controller scopes")
	// ErrScopeStartFailed is returned when the controller cannot start a scope.
	ErrScopeStartFailed = errors.New("unable to start controller scope")
	// ErrScopeStopFailed is returned when the controller cannot stop a scope.
	ErrScopeStopFailed = errors.New("unable to stop controller scope")
	// ErrNotScoped is returned by scope operations on unscoped shapes.
	ErrNotScoped = errors.New("host is not scoped")
)

type (
	// CommandError carries the result of a failed command. It wraps one of
	// the sentinel errors for errors.Is() compatibility.
	CommandError struct {
		Op     string
		Result CommandResult
		Err    error
	}

	// ScopeNotFoundError is returned when no controller scope has the given name.
	ScopeNotFoundError struct {
		Name string
	}

	// UnknownHostError is returned by CreateHostClient for unsupported hosts.
	UnknownHostError struct {
		Engine Engine
		Host   Host
	}
)

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := e.Err.Error()
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		return fmt.Sprintf("%s: exit code %d: %s", msg, e.Result.Code, stderr)
	}
	return fmt.Sprintf("%s: exit code %d", msg, e.Result.Code)
}

// Unwrap returns the sentinel error.
func (e *CommandError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *UnknownHostError) Error() string {
	return fmt.Sprintf("%s: %s has no %s client", ErrUnknownHost, e.Engine, e.Host)
}

// Unwrap returns ErrUnknownHost.
func (e *UnknownHostError) Unwrap() error { return ErrUnknownHost }

// Error implements the error interface.
func (e *ScopeNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrScopeNotFound, e.Name)
}

// Unwrap returns ErrScopeNotFound.
func (e *ScopeNotFoundError) Unwrap() error { return ErrScopeNotFound }
