// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/enginedesk/enginedesk/pkg/platform"
)

// versionPattern matches the first dotted version in --version output, e.g.
// "podman version 5.2.1" or "Docker version 27.3.1, build ce12230".
var versionPattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?(?:[-+~][0-9A-Za-z.\-+~]*)?)`)

// ProgramDetector resolves program paths and versions through an Executor.
// The executor decides where the lookup happens: on the host, or inside a
// scope when it is a scope-bound executor.
type ProgramDetector struct {
	exec Executor
	os   platform.OperatingSystem
}

// NewProgramDetector creates a detector that searches the PATH of an os
// family using exec.
func NewProgramDetector(exec Executor, family platform.OperatingSystem) *ProgramDetector {
	return &ProgramDetector{exec: exec, os: family}
}

// Find returns a copy of program with Path and Version resolved. Failures
// leave the fields empty; Name is always preserved.
func (d *ProgramDetector) Find(ctx context.Context, program Program) Program {
	out := Program{Name: program.Name}
	out.Path = d.FindPath(ctx, program.Name)
	out.Version = d.FindVersion(ctx, out.Path)
	return out
}

// FindPath searches PATH with `which` (or `where` on Windows).
func (d *ProgramDetector) FindPath(ctx context.Context, name string) string {
	if name == "" {
		return ""
	}
	finder := "which"
	if d.os == platform.Windows {
		finder = "where"
	}
	result := d.exec.Execute(ctx, Command{Program: finder, Args: []string{name}})
	if !result.Success {
		return ""
	}
	return firstLine(result.Stdout)
}

// FindVersion runs `<path> --version` and extracts the version number.
func (d *ProgramDetector) FindVersion(ctx context.Context, path string) string {
	if path == "" {
		return ""
	}
	result := d.exec.Execute(ctx, Command{Program: path, Args: []string{"--version"}})
	if !result.Success {
		return ""
	}
	return ParseVersion(result.Stdout)
}

// ParseVersion extracts the first version number from --version output.
func ParseVersion(output string) string {
	return versionPattern.FindString(firstLine(output))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if line, _, found := strings.Cut(s, "\n"); found {
		return strings.TrimSpace(line)
	}
	return s
}
