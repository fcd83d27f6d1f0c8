// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers that fail tests on setup errors, so test
// bodies stay focused on the behavior under test.
//
// Helpers cover environment variables (MustSetenv, MustUnsetenv, IsolateUserDirs),
// the filesystem (MustMkdirAll, MustWriteFile, SocketPath), cleanup (MustClose,
// DeferClose) and pacing of container-backed tests (ContainerSemaphore).
package testutil
