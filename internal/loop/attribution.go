// Package loop drives the iteration cycle: select work, run the phase
// sequence, reconcile what changed, and decide whether to keep going.
package loop

import "strings"

// DetectWorkedItem resolves which work item an iteration actually worked on,
// given the set of item IDs that changed and the item the iteration targeted.
//
// Resolution is deterministic:
//   - no changes resolves to nothing
//   - a single change wins outright
//   - the explicit target, if it is among the changes, always wins
//   - otherwise the deepest ID wins, counting "." separators; ties break
//     lexicographically
//
// The depth rule encodes a bias: when the agent touched both a parent and
// one of its subtasks, the subtask is the better description of what got
// done.
func DetectWorkedItem(changed map[string]struct{}, target string) string {
	if len(changed) == 0 {
		return ""
	}
	if len(changed) == 1 {
		for id := range changed {
			return id
		}
	}
	if target != "" {
		if _, ok := changed[target]; ok {
			return target
		}
	}

	var best string
	bestDepth := -1
	for id := range changed {
		depth := strings.Count(id, ".")
		if depth > bestDepth || (depth == bestDepth && id < best) {
			best = id
			bestDepth = depth
		}
	}
	return best
}
