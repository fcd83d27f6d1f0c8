// SPDX-License-Identifier: MPL-2.0

// Package engine is the connection runtime for Podman and Docker engines.
//
// A HostClient owns one connection's settings and knows how to reach the
// engine for one host shape: native, virtualized (podman machine or a vendor
// desktop VM), WSL, LIMA or remote. Every variant delegates the shape-agnostic
// work (the gated availability chain, automatic settings discovery, prune,
// reset, system info, events and API shutdown) to the shared Client helper and
// supplies only the shape primitives: engine availability, scope listing and
// control, scoped command execution, API connection discovery and API launch.
//
// Commands never fail with a Go error: every spawned process produces a
// CommandResult. Only prune, reset, unknown host lookups and unsupported
// operations escalate into errors.
package engine
