// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
)

func TestActionableErrorError(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such file")
	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "start api"}, "failed to start api"},
		{"with resource", &ActionableError{Operation: "load configuration", Resource: "config.cue"}, "failed to load configuration: config.cue"},
		{"with cause", &ActionableError{Operation: "list scopes", Resource: "wsl", Cause: cause}, "failed to list scopes: wsl: no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableErrorFormat(t *testing.T) {
	t.Parallel()

	root := errors.New("connection refused")
	err := NewErrorContext().
		WithOperation("ping api").
		WithSuggestion("Start the API").
		WithSuggestion("Check the socket path").
		Wrap(fmt.Errorf("dial: %w", root)).
		Build()

	short := err.Format(false)
	if !strings.Contains(short, "\n  • Start the API\n  • Check the socket path") {
		t.Errorf("Format(false) = %q", short)
	}
	if strings.Contains(short, "Error chain") {
		t.Error("Format(false) should not include the error chain")
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "1. dial: connection refused") || !strings.Contains(verbose, "2. connection refused") {
		t.Errorf("Format(true) = %q", verbose)
	}
	if !errors.Is(err, root) {
		t.Error("errors.Is should reach the root cause")
	}
}

func TestErrorContextBuild(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without an operation should return nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() = %v, want a nil interface", err)
	}

	ctx := NewErrorContext().WithOperation("stop scope").WithIssue(ScopeNotFoundId).WithSuggestion("a")
	first := ctx.Build()
	ctx.WithSuggestion("b")
	if len(first.Suggestions) != 1 {
		t.Errorf("built error changed after reuse: %v", first.Suggestions)
	}
	if first.Guide() != Get(ScopeNotFoundId) {
		t.Error("Guide() should return the attached issue")
	}
	var target *ActionableError
	if !errors.As(ctx.BuildError(), &target) || len(target.Suggestions) != 2 {
		t.Errorf("BuildError() = %#v", target)
	}
}

func TestErrorContextWithSuggestions(t *testing.T) {
	t.Parallel()

	ae := NewErrorContext().
		WithOperation("load configuration").
		WithSuggestion("first").
		WithSuggestions("second", "third").
		WithSuggestions().
		Build()
	want := []string{"first", "second", "third"}
	if !slices.Equal(ae.Suggestions, want) {
		t.Errorf("Suggestions = %q, want %q", ae.Suggestions, want)
	}
}

func TestWrapWithContext(t *testing.T) {
	t.Parallel()

	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should be nil")
	}
	err := WrapWithContext(errors.New("boom"), "reset system", "podman")
	if err.Error() != "failed to reset system: podman: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}
