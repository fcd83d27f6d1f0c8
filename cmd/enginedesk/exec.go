// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enginedesk/enginedesk/internal/engine"
)

func newExecCommand(app *App) *cobra.Command {
	var scope string
	var onHost bool
	execCmd := &cobra.Command{
		Use:   "exec <connection> -- <program> [args...]",
		Short: "Run a program where the connection's engine runs",
		Long: `Run a program inside the connection's controller scope (podman machine,
WSL distribution or LIMA instance), or on the host for unscoped connections.
The exit code of the program becomes the exit code of enginedesk.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := app.connection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			program, programArgs := args[1], args[2:]

			var result engine.CommandResult
			if onHost {
				result = client.RunHostCommand(cmd.Context(), program, programArgs...)
			} else {
				result = client.RunScopeCommand(cmd.Context(), program, programArgs, scope)
			}
			fmt.Fprint(app.stdout, result.Stdout)
			fmt.Fprint(app.stderr, result.Stderr)
			if !result.Success {
				return &ExitError{Code: max(result.Code, 1)}
			}
			return nil
		},
	}
	execCmd.Flags().StringVar(&scope, "scope", "", "scope to run in (default: the connection's scope)")
	execCmd.Flags().BoolVar(&onHost, "host", false, "run on the host instead of inside the scope")
	return execCmd
}
