// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

type (
	// ServiceRegistry tracks helper services (socket relays, port forwards)
	// started on behalf of a connection so they can be stopped together.
	ServiceRegistry struct {
		mu       sync.Mutex
		services map[string][]namedService
	}

	namedService struct {
		name   string
		closer io.Closer
	}
)

// NewServiceRegistry creates an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[string][]namedService)}
}

// Register records svc under connectionID.
func (r *ServiceRegistry) Register(connectionID, name string, svc io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[connectionID] = append(r.services[connectionID], namedService{name: name, closer: svc})
}

// Names lists the services registered for connectionID.
func (r *ServiceRegistry) Names(connectionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.services[connectionID]))
	for _, svc := range r.services[connectionID] {
		names = append(names, svc.name)
	}
	return names
}

// StopConnectionServices closes every service of connectionID in reverse
// registration order and forgets them.
func (r *ServiceRegistry) StopConnectionServices(ctx context.Context, connectionID string) error {
	r.mu.Lock()
	services := r.services[connectionID]
	delete(r.services, connectionID)
	r.mu.Unlock()

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := services[i].closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", services[i].name, err))
		}
	}
	return errors.Join(errs...)
}
