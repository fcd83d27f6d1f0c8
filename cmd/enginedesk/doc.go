// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the enginedesk CLI.
//
// Every command resolves a configured connection, builds its host client from
// a shared engine.Pool and calls one host client operation: availability
// checks, API start and stop, scope management, scoped command execution and
// the troubleshooting system commands.
package cmd
