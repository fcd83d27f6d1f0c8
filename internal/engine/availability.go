// SPDX-License-Identifier: MPL-2.0

package engine

import "context"

const (
	notChecked = "Not checked"
	// NotApplicable is the report for controller stages of unscoped shapes.
	NotApplicable = "Not applicable"

	reportAPIRunning    = "API is running"
	reportAPINotRunning = "API is not running"
)

type (
	// AvailabilityCheck is the result of one check. Details always carries a
	// human readable reason.
	AvailabilityCheck struct {
		Success bool   `json:"success"`
		Details string `json:"details,omitempty"`
	}

	// AvailabilityReport holds the details line of every stage.
	AvailabilityReport struct {
		Host            string `json:"host"`
		Controller      string `json:"controller"`
		ControllerScope string `json:"controllerScope"`
		Program         string `json:"program"`
		API             string `json:"api"`
	}

	// Availability is the layered availability of a connection. Stages are
	// gated host, controller, controllerScope, program; API is always checked.
	Availability struct {
		Enabled         bool               `json:"enabled"`
		Host            bool               `json:"host"`
		Controller      bool               `json:"controller"`
		ControllerScope bool               `json:"controllerScope"`
		Program         bool               `json:"program"`
		API             bool               `json:"api"`
		Report          AvailabilityReport `json:"report"`
	}
)

// Availability checks the connection stage by stage. It never fails: every
// problem is reported in the result. A nil custom uses the current settings.
func (c *Client) Availability(ctx context.Context, custom *Settings) Availability {
	c.logger.Debug(">> checking availability")
	settings := c.resolve(custom)
	availability := Availability{
		Report: AvailabilityReport{
			Host:            notChecked,
			Controller:      notChecked,
			ControllerScope: notChecked,
			Program:         notChecked,
			API:             notChecked,
		},
	}

	c.trace("Detecting host availability")
	host := c.shape.IsEngineAvailable(ctx)
	availability.Enabled = host.Success
	availability.Host = host.Success
	availability.Report.Host = host.Details

	if availability.Host {
		c.trace("Detecting host controller availability")
		controller := c.isControllerAvailable(settings)
		availability.Controller = controller.Success
		availability.Report.Controller = controller.Details
	} else {
		availability.Report.Controller = "Not checked - host not available"
	}

	if availability.Controller {
		c.trace("Detecting host controller scope availability")
		// Scope reachability has no check of its own; the controller check
		// stands in for it.
		scope := c.isControllerAvailable(settings)
		availability.ControllerScope = scope.Success
		availability.Report.ControllerScope = scope.Details
	} else {
		availability.Report.ControllerScope = "Not checked - controller not available"
	}

	if availability.ControllerScope {
		c.trace("Detecting guest program availability")
		program := c.isProgramAvailable(settings)
		availability.Program = program.Success
		availability.Report.Program = program.Details
	} else {
		availability.Report.Program = "Not checked - controller scope not available"
	}

	c.trace("Detecting guest api availability")
	if api := c.apiRunning(ctx, settings); api.Success {
		availability.API = true
		availability.Report.API = reportAPIRunning
	} else {
		availability.Report.API = reportAPINotRunning
	}

	c.trace("Availability check complete")
	c.logger.Debug("<< checking availability", "host", availability.Host, "program", availability.Program, "api", availability.API)
	return availability
}

func (c *Client) isControllerAvailable(settings Settings) AvailabilityCheck {
	if !c.shape.IsScoped() {
		return AvailabilityCheck{Success: true, Details: NotApplicable}
	}
	if settings.Controller == nil || settings.Controller.Path == "" {
		return AvailabilityCheck{Details: "Path not set"}
	}
	if !c.fileExists(settings.Controller.Path) {
		return AvailabilityCheck{Details: "Not present in path"}
	}
	return AvailabilityCheck{Success: true, Details: "Controller is available"}
}

// isProgramAvailable checks the program on disk for host programs. Guest
// programs cannot be stat'ed from the host, so a resolved path is enough.
func (c *Client) isProgramAvailable(settings Settings) AvailabilityCheck {
	programPath := settings.ProgramPath()
	if programPath == "" {
		return AvailabilityCheck{Details: "Path not set"}
	}
	if c.shape.IsScoped() {
		if settings.Program.Path == "" {
			return AvailabilityCheck{Details: "Path not set"}
		}
		return AvailabilityCheck{Success: true, Details: "Program is available"}
	}
	if !c.fileExists(programPath) {
		return AvailabilityCheck{Details: "Not present in path"}
	}
	return AvailabilityCheck{Success: true, Details: "Program is available"}
}
