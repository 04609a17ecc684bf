package models

import "github.com/shopspring/decimal"

// CycleType is the contribution schedule of a group.
type CycleType string

const (
	CycleDaily   CycleType = "daily"
	CycleWeekly  CycleType = "weekly"
	CycleMonthly CycleType = "monthly"
)

// Valid reports whether t is a known schedule.
func (t CycleType) Valid() bool {
	switch t {
	case CycleDaily, CycleWeekly, CycleMonthly:
		return true
	}
	return false
}

// GroupStatus is the lifecycle state of a group. Only active groups are
// collected from and paid out.
type GroupStatus string

const (
	GroupActive    GroupStatus = "active"
	GroupPaused    GroupStatus = "paused"
	GroupCompleted GroupStatus = "completed"
)

// Group represents an Ajo: a pool that collects ContributionAmount from every
// active member each cycle and pays the pool, minus the platform fee, to one
// member in rotation.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group.
	Name string

	// CreatorID is the member who owns the group.
	CreatorID string

	// ContributionAmount is what each member pays per cycle, in minor units.
	ContributionAmount int64

	// CycleType is the contribution schedule.
	CycleType CycleType

	// CurrentCycle starts at 1 and increases by exactly one per successful payout.
	CurrentCycle int

	// MaxMembers caps the number of active memberships.
	MaxMembers int

	// Status gates collection and payout.
	Status GroupStatus

	// FeePercentage is the platform fee in percent, 0 to 100.
	FeePercentage decimal.Decimal

	// WithdrawalOrder optionally overrides the position-based rotation.
	// When set it lists member IDs; cycle n pays WithdrawalOrder[(n-1) mod len].
	WithdrawalOrder []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// IsActive reports whether the engine may collect from or pay out of the group.
func (g *Group) IsActive() bool {
	return g.Status == GroupActive
}
