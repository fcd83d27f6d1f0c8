// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/enginedesk/enginedesk/internal/core/lifecycle"
)

const (
	defaultWaitAttempts = 8
	defaultWaitBackoff  = 250 * time.Millisecond
)

type (
	// Launch describes what must come up for a shape's API to answer.
	Launch struct {
		// Scope is started first when set.
		Scope *ControllerScope
		// Service is the long-running API process, if the shape runs one.
		Service *Command
		// Relay starts a socket relay after the service.
		Relay RelayFunc
		// Wait polls the API until it answers; false skips polling.
		Wait bool
	}

	// RelayFunc starts a relay service and returns its closer.
	RelayFunc func(ctx context.Context) (io.Closer, error)

	// Runner starts and stops the engine API for one client and remembers
	// exactly what it started.
	Runner struct {
		client *Client

		machine lifecycle.Machine
		mu      sync.Mutex
		process Process
		scope   *ControllerScope
		relay   io.Closer

		waitAttempts int
		waitBackoff  time.Duration
	}
)

func newRunner(c *Client) *Runner {
	return &Runner{
		client:       c,
		waitAttempts: defaultWaitAttempts,
		waitBackoff:  defaultWaitBackoff,
	}
}

// State returns the runner lifecycle state.
func (r *Runner) State() lifecycle.State { return r.machine.State() }

// StartAPI brings up everything in launch and waits for the API described by
// settings. On failure whatever was already started is torn down again. A
// previous start whose API has gone away is cleaned up first.
func (r *Runner) StartAPI(ctx context.Context, settings Settings, launch Launch) error {
	r.reapStale(ctx, settings)
	logger := r.client.logger
	if prev := r.machine.LastError(); prev != nil && r.machine.State() == lifecycle.StateFailed {
		logger.Debug("retrying API start after failure", "previous", prev)
	}
	if err := r.machine.BeginStart(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.start(ctx, settings, launch); err != nil {
		logger.Error("starting API failed", "err", err)
		if terr := r.teardown(context.WithoutCancel(ctx)); terr != nil {
			logger.Warn("cleanup after failed start incomplete", "err", terr)
		}
		r.machine.MarkFailed(err)
		return err
	}
	r.machine.MarkRunning()
	logger.Info("API started", "pid", r.pid())
	return nil
}

// reapStale tears down a running start whose process exited or whose API no
// longer answers, so the machine can start again.
func (r *Runner) reapStale(ctx context.Context, settings Settings) {
	if !r.machine.IsRunning() {
		return
	}
	r.mu.Lock()
	exited := r.process != nil && processExited(r.process)
	r.mu.Unlock()
	if !exited && r.client.apiRunning(ctx, settings).Success {
		return
	}
	if !r.machine.BeginStop() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client.logger.Warn("API started here is gone, cleaning up", "exited", exited, "pid", r.pid())
	if exited {
		r.process = nil
	}
	if err := r.teardown(context.WithoutCancel(ctx)); err != nil {
		r.client.logger.Warn("cleanup of stale API incomplete", "err", err)
		r.process, r.relay, r.scope = nil, nil, nil
	}
	r.machine.MarkStopped()
}

func processExited(p Process) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}

func (r *Runner) start(ctx context.Context, settings Settings, launch Launch) error {
	c := r.client
	if launch.Scope != nil {
		status, err := c.shape.StartScope(ctx, *launch.Scope)
		if err != nil {
			return fmt.Errorf("start scope %s: %w", launch.Scope.Name, err)
		}
		if status == StartupStatusStarted && !c.shape.ShouldKeepStartedScopeRunning() {
			scope := *launch.Scope
			r.scope = &scope
		}
	}

	if launch.Service != nil {
		c.logger.Debug("launching API service", "command", launch.Service.CommandLine())
		process, err := c.launcher.Launch(ctx, *launch.Service)
		if err != nil {
			return err
		}
		r.process = process
	}

	if launch.Relay != nil {
		relay, err := launch.Relay(ctx)
		if err != nil {
			return fmt.Errorf("start relay: %w", err)
		}
		r.relay = relay
		c.services.Register(c.id, "api-relay", relay)
	}

	if !launch.Wait {
		return nil
	}
	return retryWithBackoff(ctx, r.waitAttempts, r.waitBackoff, func(int) (bool, error) {
		if r.process != nil && processExited(r.process) {
			return false, fmt.Errorf("%w: API process exited", ErrAPINotReachable)
		}
		if check := c.apiRunning(ctx, settings); !check.Success {
			return true, fmt.Errorf("%w: %s", ErrAPINotReachable, check.Details)
		}
		return false, nil
	})
}

// StopAPI stops what StartAPI started. It returns false when nothing was
// started or another stop is already in progress.
func (r *Runner) StopAPI(ctx context.Context) (bool, error) {
	if !r.machine.BeginStop() {
		r.client.logger.Debug("stopping API - skip(already stopped)", "state", r.machine.State())
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.teardown(ctx); err != nil {
		r.machine.AbortStop(err)
		return false, err
	}
	r.machine.MarkStopped()
	return true, nil
}

func (r *Runner) teardown(ctx context.Context) error {
	c := r.client
	var errs []error
	if r.relay != nil {
		// The relay is owned by the services registry, which may have
		// stopped it already.
		if err := c.services.StopConnectionServices(ctx, c.id); err != nil {
			errs = append(errs, fmt.Errorf("close relay: %w", err))
		}
		r.relay = nil
	}
	if r.process != nil {
		if err := r.process.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop API process: %w", err))
		} else {
			r.process = nil
		}
	}
	if r.scope != nil {
		if _, err := c.shape.StopScope(ctx, *r.scope); err != nil {
			errs = append(errs, fmt.Errorf("stop scope %s: %w", r.scope.Name, err))
		} else {
			r.scope = nil
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) pid() int {
	if r.process == nil {
		return 0
	}
	return r.process.Pid()
}

// StartAPI starts the engine API described by custom (the stored settings
// when nil) unless it already answers, which yields StartupStatusRunning.
// Only an API started here is stopped again by StopAPI.
func (c *Client) StartAPI(ctx context.Context, custom *Settings) (StartupStatus, error) {
	settings := c.resolve(custom)
	if c.apiRunning(ctx, settings).Success {
		c.logger.Debug("starting API - skip(already running)")
		return StartupStatusRunning, nil
	}
	launch, err := c.shape.apiLaunch(ctx, settings)
	if err != nil {
		return StartupStatusError, err
	}
	if err := c.runner.StartAPI(ctx, settings, launch); err != nil {
		return StartupStatusError, err
	}
	c.apiStarted.Store(true)
	return StartupStatusStarted, nil
}

// StopAPI stops connection services and then the API, if this client
// started it in this process.
func (c *Client) StopAPI(ctx context.Context) (bool, error) {
	c.logger.Debug("stopping API - begin", "services", c.services.Names(c.id))
	if err := c.services.StopConnectionServices(ctx, c.id); err != nil {
		c.logger.Warn("stopping connection services failed", "err", err)
	}
	if c.runner == nil {
		c.logger.Warn("stopping API - skip(no runner)")
		return true, nil
	}
	if !c.apiStarted.CompareAndSwap(true, false) {
		c.logger.Debug("stopping API - skip(not started here)")
		return false, nil
	}
	stopped, err := c.runner.StopAPI(ctx)
	if err != nil {
		c.apiStarted.Store(true)
	}
	c.logger.Debug("stopping API - complete", "stopped", stopped)
	return stopped, err
}
