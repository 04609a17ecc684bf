package models

import "time"

// MaxRetries is the number of rejected charges after which a membership stops
// being collected until an administrator resets its retry count.
const MaxRetries = 3

// Membership is one member's seat in a group.
type Membership struct {
	ID       string
	GroupID  string
	MemberID string

	// Position is the member's default rotation slot, unique among the group's
	// active memberships. Cycle n pays the member at position n when the group
	// has no withdrawal order.
	Position int

	IsActive bool

	// NextDebitDate is when the next contribution is due. Nil means the
	// membership is not scheduled.
	NextDebitDate *time.Time

	// RetryCount counts consecutive rejected charges, 0 to MaxRetries.
	RetryCount int

	// InstrumentID optionally binds a payment instrument to this membership.
	InstrumentID string

	CreatedAt int64
}

// RetriesExhausted reports whether the membership is parked until a manual reset.
func (m *Membership) RetriesExhausted() bool {
	return m.RetryCount >= MaxRetries
}

// IsDue reports whether a contribution should be collected at now.
func (m *Membership) IsDue(now time.Time) bool {
	return m.IsActive && m.NextDebitDate != nil && !m.NextDebitDate.After(now) && !m.RetriesExhausted()
}
