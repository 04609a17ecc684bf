package calculator

import "sort"

// IsCycleComplete reports whether every active member has a completed
// contribution for the cycle. Members who joined mid-cycle count as active and
// block completion until they pay.
func IsCycleComplete(activeMemberIDs, completedMemberIDs []string) bool {
	return len(OutstandingMembers(activeMemberIDs, completedMemberIDs)) == 0
}

// OutstandingMembers returns the active members without a completed
// contribution, sorted.
func OutstandingMembers(activeMemberIDs, completedMemberIDs []string) []string {
	paid := make(map[string]struct{}, len(completedMemberIDs))
	for _, id := range completedMemberIDs {
		paid[id] = struct{}{}
	}

	var outstanding []string
	seen := make(map[string]struct{}, len(activeMemberIDs))
	for _, id := range activeMemberIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := paid[id]; !ok {
			outstanding = append(outstanding, id)
		}
	}
	sort.Strings(outstanding)
	return outstanding
}
