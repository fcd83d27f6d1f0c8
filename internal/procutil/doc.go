// SPDX-License-Identifier: MPL-2.0

// Package procutil stops engine API processes started by enginedesk.
package procutil
