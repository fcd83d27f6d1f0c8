// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/enginedesk/enginedesk/internal/engine"
	"github.com/enginedesk/enginedesk/pkg/platform"
)

func newConnectionsCommand(app *App) *cobra.Command {
	connectionsCmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "Manage configured connections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	connectionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured connections",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return listConnections(app)
		},
	})
	return connectionsCmd
}

func listConnections(app *App) error {
	if app.jsonOutput {
		return app.printJSON(app.cfg.Connections)
	}
	if len(app.cfg.Connections) == 0 {
		app.logger.Info("no connections configured; add one to the config file or run 'enginedesk config init'")
		return nil
	}
	rows := make([][]string, 0, len(app.cfg.Connections))
	for _, c := range app.cfg.Connections {
		name := c.Name
		if name == app.cfg.DefaultConnection || c.ID == app.cfg.DefaultConnection {
			name += " *"
		}
		rows = append(rows, []string{CmdStyle.Render(name), string(c.Engine), string(c.Host), c.Label, c.ID})
	}
	renderTable(app.stdout, []string{"NAME", "ENGINE", "HOST", "LABEL", "ID"}, rows)
	return nil
}

func newConnectorsCommand(app *App) *cobra.Command {
	var all bool
	connectorsCmd := &cobra.Command{
		Use:   "connectors",
		Short: "List engine connectors and where they are supported",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			current := platform.Current()
			connectors := engine.EnabledConnectors(current)
			if all {
				connectors = engine.Connectors(current)
			}
			if app.jsonOutput {
				return app.printJSON(connectors)
			}
			rows := make([][]string, 0, len(connectors))
			for _, c := range connectors {
				rows = append(rows, []string{mark(c.Enabled), string(c.Engine), string(c.Host), c.Label})
			}
			renderTable(app.stdout, []string{"", "ENGINE", "HOST", "LABEL"}, rows)
			return nil
		},
	}
	connectorsCmd.Flags().BoolVar(&all, "all", false, "include connectors not supported on this OS")
	return connectorsCmd
}
