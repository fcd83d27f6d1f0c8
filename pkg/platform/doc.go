// SPDX-License-Identifier: MPL-2.0

// Package platform describes the machine enginedesk runs on: the operating
// system family, the environment (variables and the per-user data path), and
// whether the process is confined by an application sandbox whose host
// commands must be spawned through a launcher.
package platform
