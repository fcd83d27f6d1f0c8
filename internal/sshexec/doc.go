// SPDX-License-Identifier: MPL-2.0

// Package sshexec is a small SSH client for remote engine destinations. It
// runs commands on the destination and dials the engine's unix socket
// through the SSH connection.
package sshexec
