package calculator

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRecipient means no member is assigned to the cycle.
	ErrNoRecipient = errors.New("no recipient for cycle")
	// ErrInactiveRecipient means the assigned member is no longer active.
	ErrInactiveRecipient = errors.New("recipient is not an active member")
)

// RotationMember is the minimal membership view needed to pick a recipient.
type RotationMember struct {
	MemberID string
	Position int
}

// DetermineRecipient returns the member ID that receives the payout of cycle.
//
// With a withdrawal order of length L the recipient is
// withdrawalOrder[(cycle-1) mod L]. Without one it is the active member whose
// position equals cycle. The chosen member must be among active; there is no
// fallback to another member.
func DetermineRecipient(cycle int, withdrawalOrder []string, active []RotationMember) (string, error) {
	if cycle < 1 {
		return "", fmt.Errorf("cycle must be at least 1, got %d", cycle)
	}

	if len(withdrawalOrder) > 0 {
		recipient := withdrawalOrder[(cycle-1)%len(withdrawalOrder)]
		for _, m := range active {
			if m.MemberID == recipient {
				return recipient, nil
			}
		}
		return "", fmt.Errorf("%w: %s (withdrawal order slot %d)", ErrInactiveRecipient, recipient, (cycle-1)%len(withdrawalOrder)+1)
	}

	for _, m := range active {
		if m.Position == cycle {
			return m.MemberID, nil
		}
	}
	return "", fmt.Errorf("%w: no active member at position %d", ErrNoRecipient, cycle)
}
