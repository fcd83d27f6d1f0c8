// SPDX-License-Identifier: MPL-2.0

// Package engineapi implements engine.APIDriver on top of the Docker Engine
// API client. Podman serves the same compatibility endpoints, so one driver
// covers both engine families.
package engineapi
