// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"slices"

	"golang.org/x/exp/maps"
)

// PruneArgs renders the `system prune` argument vector. Label filters are
// emitted as label=<key>=<value> tokens sorted by key.
func PruneArgs(opts PruneOptions) []string {
	args := []string{"system", "prune"}
	if opts.All {
		args = append(args, "--all")
	}
	keys := maps.Keys(opts.Filter)
	slices.Sort(keys)
	for _, key := range keys {
		args = append(args, "label="+key+"="+opts.Filter[key])
	}
	if opts.Force {
		args = append(args, "--force")
	}
	if opts.Volumes {
		args = append(args, "--volumes")
	}
	return args
}
