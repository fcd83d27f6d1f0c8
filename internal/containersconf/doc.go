// SPDX-License-Identifier: MPL-2.0

// Package containersconf reads the remote service destinations Podman keeps
// in containers.conf.
package containersconf
