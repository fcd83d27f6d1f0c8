// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultProbeConcurrency = 4

type (
	// Pool keeps one host client per connection id for the process lifetime.
	Pool struct {
		mu       sync.Mutex
		clients  map[string]HostClient
		families map[Engine]*Family
		limit    int
	}

	// ProbeResult is the availability of one connection.
	ProbeResult struct {
		Connection   Connection   `json:"connection"`
		Availability Availability `json:"availability"`
	}
)

// NewPool creates a pool; opts are applied to every client it creates.
func NewPool(opts ...Option) *Pool {
	return &Pool{
		clients: make(map[string]HostClient),
		families: map[Engine]*Family{
			Podman: NewPodman(opts...),
			Docker: NewDocker(opts...),
		},
		limit: defaultProbeConcurrency,
	}
}

// Client returns the cached client of conn, creating it on first use. A
// new client takes conn.Settings when they carry a mode.
func (p *Pool) Client(conn Connection) (HostClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.clients[conn.ID]; ok {
		return client, nil
	}
	family, ok := p.families[conn.Engine]
	if !ok {
		return nil, &InvalidEngineError{Value: conn.Engine}
	}
	client, err := family.CreateHostClient(conn.Host, conn.ID)
	if err != nil {
		return nil, err
	}
	if conn.Settings.Mode != "" {
		settings := conn.Settings
		if settings.API.BaseURL == "" {
			settings.API.BaseURL = DefaultSettings(conn.Engine).API.BaseURL
		}
		client.SetSettings(settings)
	}
	p.clients[conn.ID] = client
	return client, nil
}

// ProbeAll refreshes settings and checks availability of every connection
// concurrently. Results keep the order of conns.
func (p *Pool) ProbeAll(ctx context.Context, conns []Connection) ([]ProbeResult, error) {
	results := make([]ProbeResult, len(conns))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for i, conn := range conns {
		client, err := p.Client(conn)
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", conn.ID, err)
		}
		g.Go(func() error {
			settings := EnsureSettings(ctx, client)
			results[i] = ProbeResult{
				Connection:   client.Connection(),
				Availability: client.Availability(ctx, &settings),
			}
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// StopAll stops every API this pool's clients started.
func (p *Pool) StopAll(ctx context.Context) error {
	p.mu.Lock()
	clients := make([]HostClient, 0, len(p.clients))
	for _, client := range p.clients {
		clients = append(clients, client)
	}
	p.mu.Unlock()

	var g errgroup.Group
	for _, client := range clients {
		g.Go(func() error {
			_, err := client.StopAPI(ctx)
			return err
		})
	}
	return g.Wait()
}
