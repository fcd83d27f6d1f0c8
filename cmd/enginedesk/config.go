// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enginedesk/enginedesk/internal/config"
	"github.com/enginedesk/enginedesk/internal/issue"
)

func newConfigCommand(app *App) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the enginedesk configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	configCmd.AddCommand(newConfigShowCommand(app), newConfigInitCommand(app), newConfigPathCommand(app))
	return configCmd
}

func newConfigShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if app.jsonOutput {
				return app.printJSON(app.cfg)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(app.cfg))
			return nil
		},
	}
}

// newConfigInitCommand skips the root setup so a broken config file can be
// replaced with --force.
func newConfigInitCommand(app *App) *cobra.Command {
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(*cobra.Command, []string) error {
			path, err := config.CreateDefaultConfig(app.configDir, force)
			if errors.Is(err, config.ErrConfigExists) {
				return issue.NewErrorContext().
					WithOperation("create config file").
					WithResource(path).
					WithSuggestion("Pass --force to overwrite the existing file").
					Wrap(err).
					BuildError()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s wrote %s\n", mark(true), CmdStyle.Render(path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return initCmd
}

func newConfigPathCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(*cobra.Command, []string) error {
			path := app.cfgFile
			if path == "" {
				var err error
				if path, err = config.FilePath(app.configDir); err != nil {
					return err
				}
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	}
}
