// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "events [connection]",
		Short: "Stream engine events until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, client, err := app.connection(ctx, firstArg(args))
			if err != nil {
				return err
			}
			events, errs, err := client.EventsStream(ctx)
			if err != nil {
				return err
			}
			for ev := range events {
				if app.jsonOutput {
					if err := app.printJSON(ev); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(app.stdout, "%s %s %s %s\n",
					SubtitleStyle.Render(ev.Time.Format(time.RFC3339)),
					CmdStyle.Render(ev.Type), ev.Action, shortID(ev.ActorID))
			}
			select {
			case err := <-errs:
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
			default:
			}
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
