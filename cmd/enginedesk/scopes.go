// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enginedesk/enginedesk/internal/engine"
)

func newScopesCommand(app *App) *cobra.Command {
	scopesCmd := &cobra.Command{
		Use:   "scopes",
		Short: "Manage controller scopes (machines, distributions, instances)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	scopesCmd.AddCommand(
		&cobra.Command{
			Use:   "list [connection]",
			Short: "List the scopes of a connection's controller",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, client, err := app.connection(cmd.Context(), firstArg(args))
				if err != nil {
					return err
				}
				scopes, err := client.ControllerScopes(cmd.Context(), client.Settings())
				if err != nil {
					return err
				}
				if app.jsonOutput {
					return app.printJSON(scopes)
				}
				current := client.Settings().Scope()
				rows := make([][]string, 0, len(scopes))
				for _, s := range scopes {
					name := s.Name
					if s.Default {
						name += " *"
					}
					if s.Name == current {
						name = CmdStyle.Render(name)
					}
					rows = append(rows, []string{mark(s.Usable), name, s.State, s.URI})
				}
				renderTable(app.stdout, []string{"", "NAME", "STATE", "URI"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "start <connection> <scope>",
			Short: "Start a scope",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, client, err := app.connection(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				status, err := client.StartScopeByName(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				msg := "started"
				if status == engine.StartupStatusRunning {
					msg = "already running"
				}
				fmt.Fprintf(app.stdout, "%s %s %s\n", mark(true), CmdStyle.Render(args[1]), msg)
				return nil
			},
		},
		&cobra.Command{
			Use:   "stop <connection> <scope>",
			Short: "Stop a scope",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, client, err := app.connection(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if _, err := client.StopScopeByName(cmd.Context(), args[1]); err != nil {
					return err
				}
				fmt.Fprintf(app.stdout, "%s %s stopped\n", mark(true), CmdStyle.Render(args[1]))
				return nil
			},
		},
	)
	return scopesCmd
}
