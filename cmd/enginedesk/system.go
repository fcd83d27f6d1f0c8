// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enginedesk/enginedesk/internal/engine"
	"github.com/enginedesk/enginedesk/internal/issue"
)

func newSystemCommand(app *App) *cobra.Command {
	systemCmd := &cobra.Command{
		Use:   "system",
		Short: "Troubleshoot the engine behind a connection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	systemCmd.AddCommand(newSystemInfoCommand(app), newSystemPruneCommand(app), newSystemResetCommand(app))
	return systemCmd
}

func newSystemInfoCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "info [connection]",
		Short: "Show the engine's system info document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := app.connection(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			return app.printJSON(client.SystemInfo(cmd.Context(), "json"))
		},
	}
}

func newSystemPruneCommand(app *App) *cobra.Command {
	opts := engine.DefaultPruneOptions()
	pruneCmd := &cobra.Command{
		Use:   "prune [connection]",
		Short: "Remove unused containers, images, networks and build cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, client, err := app.connection(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			if _, err := client.PruneSystem(cmd.Context(), &opts); err != nil {
				return issue.NewErrorContext().
					WithOperation("prune system").
					WithResource(conn.Name).
					WithSuggestion("Run with --verbose to see the engine's error output").
					Wrap(err).
					BuildError()
			}
			fmt.Fprintf(app.stdout, "%s %s pruned\n", mark(true), CmdStyle.Render(conn.Name))
			return nil
		},
	}
	flags := pruneCmd.Flags()
	flags.BoolVar(&opts.All, "all", opts.All, "remove all unused images, not just dangling ones")
	flags.BoolVar(&opts.Force, "force", opts.Force, "do not prompt for confirmation")
	flags.BoolVar(&opts.Volumes, "volumes", opts.Volumes, "also prune volumes")
	flags.StringToStringVar(&opts.Filter, "filter", nil, "only prune objects with these labels (key=value)")
	return pruneCmd
}

func newSystemResetCommand(app *App) *cobra.Command {
	var yes bool
	resetCmd := &cobra.Command{
		Use:   "reset [connection]",
		Short: "Remove all engine storage and return it to its initial state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, client, err := app.connection(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			if !yes {
				return issue.NewErrorContext().
					WithOperation("reset system").
					WithResource(conn.Name).
					WithSuggestion("Reset deletes every container, image and volume; pass --yes to confirm").
					BuildError()
			}
			report, err := client.ResetSystem(cmd.Context())
			if err != nil {
				return err
			}
			if report.NotApplicable {
				fmt.Fprintf(app.stdout, "%s %s has no reset command\n", WarningStyle.Render("!"), conn.Engine)
				return nil
			}
			if app.jsonOutput {
				return app.printJSON(report.Data)
			}
			fmt.Fprintf(app.stdout, "%s %s reset\n", mark(true), CmdStyle.Render(conn.Name))
			return nil
		},
	}
	resetCmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return resetCmd
}
