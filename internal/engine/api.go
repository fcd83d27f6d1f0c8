// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"time"
)

const (
	pingOK = "OK"

	apiReachable   = "Api is reachable"
	apiUnreachable = "API is not reachable - start manually or connect"
)

type (
	// APIDriver talks HTTP to an engine API once its address is known.
	APIDriver interface {
		// Ping issues GET /_ping and returns the response body.
		Ping(ctx context.Context) (string, error)
		// Events streams /events until ctx is done.
		Events(ctx context.Context) (<-chan Event, <-chan error)
		Close() error
	}

	// DriverFactory creates an APIDriver bound to a connection's settings.
	DriverFactory func(conn Connection) (APIDriver, error)

	// Event is one engine event from the /events stream.
	Event struct {
		Type       string
		Action     string
		ActorID    string
		Attributes map[string]string
		Time       time.Time
	}
)

// Connection returns the connection this client currently represents.
func (c *Client) Connection() Connection {
	return Connection{
		ID:       c.id,
		Name:     "Current",
		Label:    c.label,
		Engine:   c.engine,
		Host:     c.host,
		Settings: c.Settings(),
	}
}

// ContainerAPIClient returns the client's API driver, creating it on first use.
func (c *Client) ContainerAPIClient() (APIDriver, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apiClient != nil {
		return c.apiClient, nil
	}
	if c.newDriver == nil {
		return nil, fmt.Errorf("no API driver configured for %s", c.host)
	}
	conn := Connection{ID: c.id, Name: "Current", Label: c.label, Engine: c.engine, Host: c.host, Settings: c.settings.Clone()}
	driver, err := c.newDriver(conn)
	if err != nil {
		return nil, fmt.Errorf("create API driver: %w", err)
	}
	c.apiClient = driver
	return driver, nil
}

// ResetContainerAPIClient drops the cached driver so the next use binds to
// the current settings.
func (c *Client) ResetContainerAPIClient() {
	c.mu.Lock()
	driver := c.apiClient
	c.apiClient = nil
	c.mu.Unlock()
	if driver != nil {
		if err := driver.Close(); err != nil {
			c.logger.Warn("closing API driver failed", "err", err)
		}
	}
}

func (c *Client) isAPIAvailable(settings Settings) AvailabilityCheck {
	if settings.API.BaseURL == "" {
		c.logger.Error("API base URL is not set")
		return AvailabilityCheck{Details: "API base URL is not set"}
	}
	if settings.API.Connection.URI == "" {
		c.logger.Error("API connection string is not set")
		return AvailabilityCheck{Details: "API connection string is not set"}
	}
	// TODO: check the named pipe on Windows with winio.DialPipe before pinging.
	return AvailabilityCheck{Success: true, Details: "API is configured"}
}

// IsAPIRunning pings the API with a bounded timeout. The body must be "OK".
func (c *Client) IsAPIRunning(ctx context.Context) AvailabilityCheck {
	return c.apiRunning(ctx, c.Settings())
}

// apiRunning pings the API described by settings.
func (c *Client) apiRunning(ctx context.Context, settings Settings) AvailabilityCheck {
	c.trace("Checking if API is running")
	available := c.isAPIAvailable(settings)
	if !available.Success {
		return available
	}

	driver, release, err := c.driverFor(settings)
	if err != nil {
		c.logger.Error("API ping failed - no driver", "operation", "isApiRunning", "err", err)
		return AvailabilityCheck{Details: apiUnreachable}
	}
	defer release()

	c.trace("Performing api health check - start")
	defer c.trace("Performing api health check - complete")

	pingCtx, cancel := context.WithTimeout(ctx, c.apiTimeout)
	defer cancel()
	body, err := driver.Ping(pingCtx)
	if err != nil {
		c.logger.Error("API ping failed - response failure", "operation", "isApiRunning", "err", err)
		return AvailabilityCheck{Details: apiUnreachable}
	}
	if body != pingOK {
		c.logger.Error("API ping failed - response error", "operation", "isApiRunning", "body", body)
		return AvailabilityCheck{Details: apiUnreachable}
	}
	return AvailabilityCheck{Success: true, Details: apiReachable}
}

// driverFor returns the cached driver when settings address the stored API,
// else a driver bound to settings that release closes.
func (c *Client) driverFor(settings Settings) (APIDriver, func(), error) {
	if settings.API == c.Settings().API {
		driver, err := c.ContainerAPIClient()
		return driver, func() {}, err
	}
	if c.newDriver == nil {
		return nil, nil, fmt.Errorf("no API driver configured for %s", c.host)
	}
	conn := Connection{ID: c.id, Name: "Current", Label: c.label, Engine: c.engine, Host: c.host, Settings: settings}
	driver, err := c.newDriver(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("create API driver: %w", err)
	}
	return driver, func() {
		if err := driver.Close(); err != nil {
			c.logger.Warn("closing API driver failed", "err", err)
		}
	}, nil
}

// EventsStream subscribes to engine events through the API driver.
func (c *Client) EventsStream(ctx context.Context) (<-chan Event, <-chan error, error) {
	c.logger.Debug("subscribing to connection events")
	driver, err := c.ContainerAPIClient()
	if err != nil {
		c.logger.Error("subscribing to connection events failed", "operation", "getEventsStream", "err", err)
		return nil, nil, fmt.Errorf("%w: %w", ErrEventsUnsupported, err)
	}
	events, errs := driver.Events(ctx)
	return events, errs, nil
}
