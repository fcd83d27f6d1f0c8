// SPDX-License-Identifier: MPL-2.0

// Package relay forwards connections accepted on a local socket or named pipe
// to an upstream stream, such as an engine socket inside a WSL distribution
// or on a remote machine reached over SSH.
package relay
