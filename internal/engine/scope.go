// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// controllerPath returns the configured controller path, or its name for
// PATH lookup.
func (c *Client) controllerPath(settings Settings) string {
	if settings.Controller != nil {
		if settings.Controller.Path != "" {
			return settings.Controller.Path
		}
		if settings.Controller.Name != "" {
			return settings.Controller.Name
		}
	}
	return c.controller
}

// runController runs the controller program on the host.
func (c *Client) runController(ctx context.Context, settings Settings, args ...string) CommandResult {
	return c.runHost(ctx, settings, c.controllerPath(settings), args)
}

// defaultScope picks the scope flagged as default, else the first one.
func defaultScope(scopes []ControllerScope) *ControllerScope {
	if len(scopes) == 0 {
		return nil
	}
	for i := range scopes {
		if scopes[i].Default {
			return &scopes[i]
		}
	}
	return &scopes[0]
}

// scopeNamed finds name among scopes.
func scopeNamed(scopes []ControllerScope, name string) (ControllerScope, error) {
	for _, scope := range scopes {
		if scope.Name == name {
			return scope, nil
		}
	}
	return ControllerScope{}, &ScopeNotFoundError{Name: name}
}

// launchScope returns the scope a Launch must start, or nil when it runs.
func launchScope(scope ControllerScope) *ControllerScope {
	if scope.Usable {
		return nil
	}
	return &scope
}

// shellLine quotes program and args into one POSIX shell command line.
func shellLine(program string, args []string) (string, error) {
	words := make([]string, 0, len(args)+1)
	for _, word := range append([]string{program}, args...) {
		quoted, err := syntax.Quote(word, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote %q: %w", word, err)
		}
		words = append(words, quoted)
	}
	return strings.Join(words, " "), nil
}

// failedResult reports an error that happened before any process ran.
func failedResult(err error) CommandResult {
	return CommandResult{Code: -1, Stderr: err.Error()}
}
