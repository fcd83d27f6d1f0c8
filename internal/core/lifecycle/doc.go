// SPDX-License-Identifier: MPL-2.0

// Package lifecycle provides the reusable state machine behind the engine API
// Runner: atomic state reads with compare-and-swap transitions, so two
// overlapping start or stop requests cannot both win.
package lifecycle
