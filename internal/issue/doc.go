// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors for the CLI: what failed, on which
// resource, and what the user can try next. Known failure classes carry a
// Markdown guide rendered with glamour.
package issue
