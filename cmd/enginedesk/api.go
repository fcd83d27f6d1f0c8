// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enginedesk/enginedesk/internal/engine"
)

// newAPICommand has no stop subcommand: only the process that started an API
// owns it, so `api start` stops what it started when interrupted.
func newAPICommand(app *App) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Serve and ping the engine API of a connection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var wait bool
	startCmd := &cobra.Command{
		Use:   "start [connection]",
		Short: "Start the engine API and serve it until interrupted",
		Long: `Start the engine API of a connection. Depending on the host shape this
starts the controller scope, launches the engine's API service, and serves
a local relay to a socket inside a WSL distribution or on a remote machine.

The command keeps running until interrupted, then stops what it started.
An API that is already running is left alone and the command returns.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return startAPI(cmd.Context(), app, firstArg(args), wait)
		},
	}
	startCmd.Flags().BoolVar(&wait, "wait", true, "keep serving until interrupted")

	apiCmd.AddCommand(
		startCmd,
		&cobra.Command{
			Use:   "ping [connection]",
			Short: "Ping the engine API",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, client, err := app.connection(cmd.Context(), firstArg(args))
				if err != nil {
					return err
				}
				check := client.IsAPIRunning(cmd.Context())
				fmt.Fprintf(app.stdout, "%s %s\n", mark(check.Success), check.Details)
				if !check.Success {
					return &ExitError{Code: 1}
				}
				return nil
			},
		},
	)
	return apiCmd
}

func startAPI(ctx context.Context, app *App, ref string, wait bool) error {
	conn, client, err := app.connection(ctx, ref)
	if err != nil {
		return err
	}
	status, err := client.StartAPI(ctx, nil)
	if err != nil {
		return err
	}
	uri := client.Settings().API.Connection.URI
	if status == engine.StartupStatusRunning {
		fmt.Fprintf(app.stdout, "%s API of %s already running at %s\n", mark(true), CmdStyle.Render(conn.Name), uri)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s API of %s serving at %s\n", mark(true), CmdStyle.Render(conn.Name), uri)
	if !wait {
		return nil
	}

	<-ctx.Done()
	app.logger.Info("stopping API", "connection", conn.Name)
	// ctx is already canceled; stopping needs a live context.
	_, err = client.StopAPI(context.WithoutCancel(ctx))
	return err
}
