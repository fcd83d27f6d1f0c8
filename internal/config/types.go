// SPDX-License-Identifier: MPL-2.0

package config

import (
	"strings"
	"time"

	"github.com/enginedesk/enginedesk/internal/engine"
)

const (
	defaultLogLevel     = "info"
	defaultAPITimeoutMs = 3000
)

type (
	// Config is the root configuration.
	Config struct {
		LogLevel          string       `json:"log_level" mapstructure:"log_level"`
		DefaultConnection string       `json:"default_connection" mapstructure:"default_connection"`
		APITimeoutMs      int          `json:"api_timeout_ms" mapstructure:"api_timeout_ms"`
		Connections       []Connection `json:"connections" mapstructure:"connections"`
	}

	// Connection is one configured engine connection.
	Connection struct {
		// ID is assigned a random UUID at load time when omitted.
		ID       string              `json:"id" mapstructure:"id"`
		Name     string              `json:"name" mapstructure:"name"`
		Label    string              `json:"label,omitempty" mapstructure:"label"`
		Engine   engine.Engine       `json:"engine" mapstructure:"engine"`
		Host     engine.Host         `json:"host" mapstructure:"host"`
		Settings *ConnectionSettings `json:"settings,omitempty" mapstructure:"settings"`
	}

	// ConnectionSettings pins what detection would otherwise discover.
	ConnectionSettings struct {
		Mode       engine.Mode       `json:"mode,omitempty" mapstructure:"mode"`
		Rootfull   bool              `json:"rootfull,omitempty" mapstructure:"rootfull"`
		API        APIConfig         `json:"api" mapstructure:"api"`
		Program    ProgramConfig     `json:"program" mapstructure:"program"`
		Controller *ControllerConfig `json:"controller,omitempty" mapstructure:"controller"`
	}

	APIConfig struct {
		BaseURL   string `json:"base_url,omitempty" mapstructure:"base_url"`
		URI       string `json:"uri,omitempty" mapstructure:"uri"`
		Relay     string `json:"relay,omitempty" mapstructure:"relay"`
		AutoStart bool   `json:"auto_start,omitempty" mapstructure:"auto_start"`
	}

	ProgramConfig struct {
		Name    string `json:"name,omitempty" mapstructure:"name"`
		Path    string `json:"path,omitempty" mapstructure:"path"`
		Version string `json:"version,omitempty" mapstructure:"version"`
	}

	ControllerConfig struct {
		Name    string `json:"name,omitempty" mapstructure:"name"`
		Path    string `json:"path,omitempty" mapstructure:"path"`
		Version string `json:"version,omitempty" mapstructure:"version"`
		Scope   string `json:"scope,omitempty" mapstructure:"scope"`
	}
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     defaultLogLevel,
		APITimeoutMs: defaultAPITimeoutMs,
	}
}

// APITimeout returns the API ping timeout.
func (c *Config) APITimeout() time.Duration {
	if c.APITimeoutMs <= 0 {
		return defaultAPITimeoutMs * time.Millisecond
	}
	return time.Duration(c.APITimeoutMs) * time.Millisecond
}

// Find returns the connection whose id or name is ref. An empty ref selects
// default_connection, or the only connection when there is exactly one.
func (c *Config) Find(ref string) (Connection, bool) {
	if ref == "" {
		ref = c.DefaultConnection
	}
	if ref == "" && len(c.Connections) == 1 {
		return c.Connections[0], true
	}
	for _, conn := range c.Connections {
		if conn.ID == ref || strings.EqualFold(conn.Name, ref) {
			return conn, true
		}
	}
	return Connection{}, false
}

// ToEngine converts the connection into the engine model. Without settings
// the connection is left to automatic detection.
func (c Connection) ToEngine() engine.Connection {
	out := engine.Connection{
		ID:     c.ID,
		Name:   c.Name,
		Label:  c.Label,
		Engine: c.Engine,
		Host:   c.Host,
	}
	if c.Settings == nil {
		return out
	}

	s := c.Settings
	settings := engine.DefaultSettings(c.Engine)
	settings.Mode = s.Mode
	if settings.Mode == "" {
		settings.Mode = engine.ModeManual
	}
	settings.Rootfull = s.Rootfull
	if s.API.BaseURL != "" {
		settings.API.BaseURL = s.API.BaseURL
	}
	settings.API.Connection = engine.APIConnection{URI: s.API.URI, Relay: s.API.Relay}
	settings.API.AutoStart = s.API.AutoStart
	settings.Program = engine.Program{Name: s.Program.Name, Path: s.Program.Path, Version: s.Program.Version}
	if settings.Program.Name == "" {
		settings.Program.Name = string(c.Engine)
	}
	if s.Controller != nil {
		settings.Controller = &engine.Controller{
			Program: engine.Program{Name: s.Controller.Name, Path: s.Controller.Path, Version: s.Controller.Version},
			Scope:   s.Controller.Scope,
		}
	}
	out.Settings = settings
	return out
}
