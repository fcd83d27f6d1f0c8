// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/enginedesk/enginedesk/internal/engine"
)

// renderTable writes rows under a styled header, each column padded to its
// widest cell.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = cellStyle.Width(widths[i] + 2).Render(style.Render(cell))
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
	}

	fmt.Fprintln(w, line(headers, TitleStyle))
	for _, row := range rows {
		fmt.Fprintln(w, line(row, lipgloss.NewStyle()))
	}
}

// availabilityMarkdown renders an availability report as a Markdown table.
func availabilityMarkdown(name string, conn engine.Connection, a engine.Availability) string {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", name)
	fmt.Fprintf(&md, "`%s` on `%s`\n\n", conn.Engine, conn.Host)
	md.WriteString("| Stage | Ready | Details |\n|---|---|---|\n")
	stages := []struct {
		name    string
		ok      bool
		details string
	}{
		{"Host", a.Host, a.Report.Host},
		{"Controller", a.Controller, a.Report.Controller},
		{"Controller scope", a.ControllerScope, a.Report.ControllerScope},
		{"Program", a.Program, a.Report.Program},
		{"API", a.API, a.Report.API},
	}
	for _, s := range stages {
		ready := "no"
		if s.ok {
			ready = "yes"
		}
		fmt.Fprintf(&md, "| %s | %s | %s |\n", s.name, ready, strings.ReplaceAll(s.details, "|", `\|`))
	}

	settings := conn.Settings
	md.WriteString("\n## Settings\n\n")
	fmt.Fprintf(&md, "- Program: `%s` %s\n", settings.ProgramPath(), settings.Program.Version)
	if settings.Controller != nil {
		fmt.Fprintf(&md, "- Controller: `%s` scope `%s`\n", settings.Controller.Path, settings.Controller.Scope)
	}
	if uri := settings.API.Connection.URI; uri != "" {
		fmt.Fprintf(&md, "- API: `%s`\n", uri)
	}
	if relay := settings.API.Connection.Relay; relay != "" {
		fmt.Fprintf(&md, "- Relay: `%s`\n", relay)
	}
	return md.String()
}
