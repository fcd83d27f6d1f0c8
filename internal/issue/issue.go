// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

// Id identifies a known failure class.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	ConnectionNotFoundId
	HostNotSupportedId
	ProgramNotFoundId
	ControllerNotFoundId
	ScopeNotFoundId
	APINotReachableId
)

type (
	MarkdownMsg string

	HttpLink string

	// Issue is the Markdown guide for one failure class.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the guide with the glamour style at stylePath.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

The configuration file is not valid CUE or does not match the schema.

## Things you can try:
- Show the effective configuration:
~~~
$ enginedesk config show
~~~
- Write a fresh default file and compare:
~~~
$ enginedesk config init --force
~~~`,
	}

	connectionNotFoundIssue = &Issue{
		id: ConnectionNotFoundId,
		mdMsg: `
# Connection not found

No configured connection has the requested id or name.

## Things you can try:
- List the configured connections:
~~~
$ enginedesk connections list
~~~
- Add a connection to the ` + "`connections`" + ` list of your config file, e.g.:
~~~cue
connections: [{name: "podman", engine: "podman", host: "podman.native"}]
~~~`,
	}

	hostNotSupportedIssue = &Issue{
		id: HostNotSupportedId,
		mdMsg: `
# Host not supported

The connection's host shape is not available on this operating system.

## Things you can try:
- List the connectors enabled here:
~~~
$ enginedesk connectors
~~~`,
	}

	programNotFoundIssue = &Issue{
		id: ProgramNotFoundId,
		mdMsg: `
# Engine program not found

The engine CLI (podman or docker) could not be found on the PATH.

## Things you can try:
- Install the engine CLI, or set ` + "`settings.program.path`" + ` for the connection
- Re-run detection:
~~~
$ enginedesk detect <connection>
~~~`,
	}

	controllerNotFoundIssue = &Issue{
		id: ControllerNotFoundId,
		mdMsg: `
# Controller not found

The program managing the engine's guest environment (podman machine, wsl or limactl)
could not be found.

## Things you can try:
- Install the controller, or set ` + "`settings.controller.path`" + ` for the connection`,
	}

	scopeNotFoundIssue = &Issue{
		id: ScopeNotFoundId,
		mdMsg: `
# Scope not found

The requested machine, distribution or instance does not exist.

## Things you can try:
- List the scopes the controller knows about:
~~~
$ enginedesk scopes list <connection>
~~~`,
	}

	apiNotReachableIssue = &Issue{
		id: APINotReachableId,
		mdMsg: `
# Engine API not reachable

Nothing answered on the connection's API socket.

## Things you can try:
- Start the API:
~~~
$ enginedesk api start <connection>
~~~
- Check the full availability report:
~~~
$ enginedesk availability <connection>
~~~`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		connectionNotFoundIssue.Id(): connectionNotFoundIssue,
		hostNotSupportedIssue.Id():   hostNotSupportedIssue,
		programNotFoundIssue.Id():    programNotFoundIssue,
		controllerNotFoundIssue.Id(): controllerNotFoundIssue,
		scopeNotFoundIssue.Id():      scopeNotFoundIssue,
		apiNotReachableIssue.Id():    apiNotReachableIssue,
	}
)

// Values returns every known issue ordered by id.
func Values() []*Issue {
	values := maps.Values(issues)
	slices.SortFunc(values, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
