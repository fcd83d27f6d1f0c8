// SPDX-License-Identifier: MPL-2.0

package engineapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docker/docker/api/types/events"
	dockerclient "github.com/docker/docker/client"

	"github.com/enginedesk/enginedesk/internal/engine"
)

const (
	pipePrefix = `\\.\pipe\`

	// maxPingBody bounds how much of a /_ping response is read.
	maxPingBody = 4096
)

var (
	// ErrNoAddress is returned when a connection has no API URI yet.
	ErrNoAddress = errors.New("connection has no API address")

	// ErrUnsupportedScheme is returned for URIs the driver cannot dial.
	ErrUnsupportedScheme = errors.New("unsupported API address scheme")
)

// Driver talks to one engine API endpoint.
type Driver struct {
	cli      *dockerclient.Client
	pingURL  string
	hostAddr string
}

// NewDriver creates a driver for the API address in conn's settings. It
// matches engine.DriverFactory.
func NewDriver(conn engine.Connection) (engine.APIDriver, error) {
	host, err := DockerHost(conn.Settings.API.Connection.URI)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", conn.ID, err)
	}
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.WithHost(host),
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	pingURL, err := pingAddress(host, conn.Settings.API.BaseURL)
	if err != nil {
		_ = cli.Close()
		return nil, err
	}
	return &Driver{cli: cli, pingURL: pingURL, hostAddr: host}, nil
}

// DockerHost converts an engine API URI into the host form the Docker client
// accepts. Socket paths become unix:// and Windows pipe names npipe://.
func DockerHost(uri string) (string, error) {
	switch {
	case uri == "":
		return "", ErrNoAddress
	case strings.HasPrefix(uri, pipePrefix):
		return "npipe://" + strings.ReplaceAll(uri, `\`, "/"), nil
	case strings.HasPrefix(uri, "/"):
		return "unix://" + uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse API address %q: %w", uri, err)
	}
	switch u.Scheme {
	case "unix", "npipe", "tcp":
		return uri, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// pingAddress builds the /_ping URL under the base path of baseURL. Socket
// transports ignore the URL host, so they get the client's placeholder host.
func pingAddress(host, baseURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", baseURL, err)
	}
	target, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("parse host %q: %w", host, err)
	}
	addr := dockerclient.DummyHost
	if target.Scheme == "tcp" {
		addr = target.Host
	}
	ping := url.URL{Scheme: "http", Host: addr, Path: strings.TrimSuffix(base.Path, "/") + "/_ping"}
	return ping.String(), nil
}

// Host returns the Docker client host this driver dials.
func (d *Driver) Host() string { return d.hostAddr }

// Ping issues GET /_ping and returns the trimmed response body.
func (d *Driver) Ping(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.pingURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build ping request: %w", err)
	}
	resp, err := d.cli.HTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("ping %s: %w", d.hostAddr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPingBody))
	if err != nil {
		return "", fmt.Errorf("read ping response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ping %s: unexpected status %s", d.hostAddr, resp.Status)
	}
	return strings.TrimSpace(string(body)), nil
}

// Events streams engine events until ctx is done or the stream fails. The
// event channel is closed when streaming stops.
func (d *Driver) Events(ctx context.Context) (<-chan engine.Event, <-chan error) {
	out := make(chan engine.Event)
	errs := make(chan error, 1)
	messages, streamErrs := d.cli.Events(ctx, events.ListOptions{})

	go func() {
		defer close(out)
		for {
			select {
			case msg := <-messages:
				select {
				case out <- toEvent(msg):
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			case err := <-streamErrs:
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				if err != nil && !errors.Is(err, io.EOF) {
					errs <- err
				}
				return
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return out, errs
}

// Close releases the client's idle connections.
func (d *Driver) Close() error {
	return d.cli.Close()
}

func toEvent(msg events.Message) engine.Event {
	at := time.Unix(msg.Time, 0)
	if msg.TimeNano != 0 {
		at = time.Unix(0, msg.TimeNano)
	}
	return engine.Event{
		Type:       string(msg.Type),
		Action:     string(msg.Action),
		ActorID:    msg.Actor.ID,
		Attributes: msg.Actor.Attributes,
		Time:       at,
	}
}
