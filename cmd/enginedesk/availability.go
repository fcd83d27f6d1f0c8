// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enginedesk/enginedesk/internal/engine"
	"github.com/enginedesk/enginedesk/internal/issue"
)

func newAvailabilityCommand(app *App) *cobra.Command {
	var all bool
	availabilityCmd := &cobra.Command{
		Use:   "availability [connection]",
		Short: "Check a connection stage by stage",
		Long: `Check a connection stage by stage: host support, controller, controller
scope, engine program and API. Stages after a failed one are not checked,
except the API which is always checked. The command fails with a guide for
the first unavailable stage.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return probeAll(cmd, app)
			}
			conn, client, err := app.connection(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			availability := client.Availability(cmd.Context(), nil)
			if app.jsonOutput {
				if err := app.printJSON(engine.ProbeResult{Connection: client.Connection(), Availability: availability}); err != nil {
					return err
				}
			} else {
				app.printMarkdown(availabilityMarkdown(conn.Name, client.Connection(), availability))
			}
			return availabilityError(conn.Name, availability)
		},
	}
	availabilityCmd.Flags().BoolVar(&all, "all", false, "check every configured connection concurrently")
	return availabilityCmd
}

// availabilityError returns an actionable error for the first failed gated
// stage, or nil when host, controller, scope and program are available.
func availabilityError(name string, a engine.Availability) error {
	var (
		id     issue.Id
		stage  string
		detail string
	)
	switch {
	case !a.Host:
		id, stage, detail = issue.HostNotSupportedId, "host", a.Report.Host
	case !a.Controller:
		id, stage, detail = issue.ControllerNotFoundId, "controller", a.Report.Controller
	case !a.ControllerScope:
		id, stage, detail = issue.ScopeNotFoundId, "controller scope", a.Report.ControllerScope
	case !a.Program:
		id, stage, detail = issue.ProgramNotFoundId, "program", a.Report.Program
	default:
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("check "+stage).
		WithResource(name).
		WithSuggestion("Run with --verbose to see the troubleshooting guide").
		WithIssue(id).
		Wrap(errors.New(detail)).
		BuildError()
}

func probeAll(cmd *cobra.Command, app *App) error {
	conns := make([]engine.Connection, 0, len(app.cfg.Connections))
	for _, c := range app.cfg.Connections {
		conns = append(conns, c.ToEngine())
	}
	results, err := app.pool.ProbeAll(cmd.Context(), conns)
	if err != nil {
		return err
	}
	if app.jsonOutput {
		return app.printJSON(results)
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		a := r.Availability
		rows = append(rows, []string{
			CmdStyle.Render(r.Connection.Name),
			string(r.Connection.Host),
			mark(a.Host), mark(a.Controller), mark(a.ControllerScope), mark(a.Program), mark(a.API),
		})
	}
	renderTable(app.stdout, []string{"NAME", "CONNECTOR", "HOST", "CTRL", "SCOPE", "PROGRAM", "API"}, rows)
	return nil
}

func newDetectCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "detect [connection]",
		Short: "Detect program, controller and API settings",
		Long: `Detect the settings a connection would use in automatic mode: the engine
program path and version, the controller and its default scope, and the
API address. Nothing is saved.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := app.connection(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			settings := client.AutomaticSettings(cmd.Context())
			if app.jsonOutput {
				return app.printJSON(settings)
			}
			fmt.Fprintf(app.stdout, "%s %s %s\n", TitleStyle.Render("program"), settings.ProgramPath(), SubtitleStyle.Render(settings.Program.Version))
			if c := settings.Controller; c != nil {
				fmt.Fprintf(app.stdout, "%s %s %s\n", TitleStyle.Render("controller"), c.Path, SubtitleStyle.Render(c.Version))
				fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render("scope"), c.Scope)
			}
			fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render("api"), settings.API.Connection.URI)
			if relay := settings.API.Connection.Relay; relay != "" {
				fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render("relay"), relay)
			}
			return nil
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
