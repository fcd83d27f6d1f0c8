// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/enginedesk/enginedesk/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "enginedesk",
		Short: "Inspect and drive Podman and Docker engine connections",
		Long: TitleStyle.Render("enginedesk") + SubtitleStyle.Render(" - container engine connections") + `

enginedesk reaches Podman and Docker wherever they run: natively, inside a
podman machine or Docker Desktop VM, in a WSL distribution, in a LIMA
instance, or on a remote machine over SSH.

` + SubtitleStyle.Render("Examples:") + `
  enginedesk connectors               List connectors enabled on this OS
  enginedesk availability             Check the default connection
  enginedesk api start wsl            Serve the API of the "wsl" connection
  enginedesk exec machine -- podman ps
  enginedesk system prune --filter env=dev`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			app.teardown()
		},
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	flags := root.PersistentFlags()
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging and progress traces")
	flags.StringVar(&app.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/enginedesk/config.cue)")
	flags.BoolVar(&app.jsonOutput, "json", false, "print machine readable JSON")

	root.AddCommand(
		newConnectionsCommand(app),
		newConnectorsCommand(app),
		newAvailabilityCommand(app),
		newDetectCommand(app),
		newAPICommand(app),
		newScopesCommand(app),
		newExecCommand(app),
		newSystemCommand(app),
		newEventsCommand(app),
		newConfigCommand(app),
	)
	return root
}

func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, app.verbose))
		}),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display. Actionable errors
// carry suggestions and, in verbose mode, the full error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return err.Error()
	}
	out := ae.Format(verbose)
	if guide := ae.Guide(); verbose && guide != nil {
		if rendered, renderErr := guide.Render("dark"); renderErr == nil {
			out += "\n" + rendered
		}
	}
	return out
}
