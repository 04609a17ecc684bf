// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/ajo/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPayoutExists is returned by ReservePayout when a pending or completed
	// payout already holds the (group, cycle) slot.
	ErrPayoutExists = errors.New("payout already recorded for group cycle")

	// ErrNotPending is returned when settling an entry that is already terminal.
	ErrNotPending = errors.New("ledger entry is not pending")

	// ErrCycleAdvanced is returned when the group's cycle no longer matches the
	// cycle being finalized.
	ErrCycleAdvanced = errors.New("group cycle already advanced")

	// ErrDuplicateReference is returned when a provider reference is reused.
	ErrDuplicateReference = errors.New("provider reference already recorded")
)

// DueFilter selects memberships the collector should charge.
type DueFilter struct {
	// Now is the cut-off: next_debit_date <= Now.
	Now time.Time
	// GroupID optionally scopes the scan to one group.
	GroupID string
	// MaxRetries excludes memberships with retry_count >= MaxRetries.
	MaxRetries int
}

// LedgerFilter narrows a ledger query. Zero values are ignored.
type LedgerFilter struct {
	GroupID      string
	MembershipID string
	MemberID     string
	Type         models.EntryType
	Status       models.EntryStatus
	Cycle        int
}

// PayoutFinalization carries everything written when the gateway accepts a
// transfer: the payout entry's new state, the fee row and the cycle advance.
type PayoutFinalization struct {
	EntryID string
	Status  models.EntryStatus
	// TransferCode is the gateway's identifier for the transfer.
	TransferCode string
	Fee          *models.PlatformFee
	// FromCycle is the cycle being paid; the group must still be on it.
	FromCycle int
}

// Store defines the interface for the engine's persistence operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the engine.
type Store interface {
	// CreateGroup persists a new group, generating ID and CreatedAt when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its withdrawal order.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListActiveGroups returns every group with status active.
	ListActiveGroups(ctx context.Context) ([]*models.Group, error)

	// SetWithdrawalOrder replaces the group's explicit rotation.
	SetWithdrawalOrder(ctx context.Context, groupID string, memberIDs []string) error

	// UpdateGroupStatus changes the group's lifecycle state.
	UpdateGroupStatus(ctx context.Context, groupID string, status models.GroupStatus) error

	// CreateMember persists a member profile.
	CreateMember(ctx context.Context, member *models.Member) error

	// GetMember retrieves a member profile.
	GetMember(ctx context.Context, memberID string) (*models.Member, error)

	// CreateMembership persists a membership.
	CreateMembership(ctx context.Context, membership *models.Membership) error

	// GetMembership retrieves a membership.
	GetMembership(ctx context.Context, membershipID string) (*models.Membership, error)

	// ListDueMemberships returns active memberships of active groups whose
	// debit date has passed and whose retries are not exhausted, oldest first.
	ListDueMemberships(ctx context.Context, filter DueFilter) ([]*models.Membership, error)

	// ListActiveMemberships returns a group's active memberships ordered by position.
	ListActiveMemberships(ctx context.Context, groupID string) ([]*models.Membership, error)

	// DeactivateMembership marks a membership inactive.
	DeactivateMembership(ctx context.Context, membershipID string) error

	// RecordChargeAccepted moves the membership's debit date to the entry's
	// NextDebitDate while the entry is still pending and the date still holds
	// the debit it pays. Retries are left alone until the charge settles.
	RecordChargeAccepted(ctx context.Context, entry *models.LedgerEntry) error

	// IncrementRetryCount bumps retry_count, capped at models.MaxRetries, and
	// returns the new value.
	IncrementRetryCount(ctx context.Context, membershipID string) (int, error)

	// ResetRetryCount sets retry_count back to zero.
	ResetRetryCount(ctx context.Context, membershipID string) error

	// CreateInstrument persists a payment instrument.
	CreateInstrument(ctx context.Context, instrument *models.PaymentInstrument) error

	// GetInstrument retrieves a payment instrument by ID.
	GetInstrument(ctx context.Context, instrumentID string) (*models.PaymentInstrument, error)

	// GetMembershipInstrument returns the active instrument bound to a membership.
	GetMembershipInstrument(ctx context.Context, membershipID string) (*models.PaymentInstrument, error)

	// GetDefaultInstrument returns the member's default active instrument.
	GetDefaultInstrument(ctx context.Context, memberID string) (*models.PaymentInstrument, error)

	// CreateLedgerEntry appends an entry. Payout entries must go through ReservePayout.
	CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error

	// GetLedgerEntryByReference looks an entry up by provider reference.
	GetLedgerEntryByReference(ctx context.Context, reference string) (*models.LedgerEntry, error)

	// ListLedgerEntries returns entries matching filter, oldest first.
	ListLedgerEntries(ctx context.Context, filter LedgerFilter) ([]*models.LedgerEntry, error)

	// CompletedContributors returns the distinct member IDs with a completed
	// contribution for the group's cycle.
	CompletedContributors(ctx context.Context, groupID string, cycle int) ([]string, error)

	// SettleCharge moves a pending contribution or deposit to completed or
	// failed. The membership follows in the same transaction: a completed
	// scheduled charge clears retries and moves a debit date that acceptance
	// never moved; a failed charge that had moved the date puts it back and,
	// when scheduled, counts against retries. A completed settlement credits
	// the member's wallet. Returns ErrNotPending if the entry is already terminal.
	SettleCharge(ctx context.Context, reference string, status models.EntryStatus) (*models.LedgerEntry, error)

	// FailLedgerEntry marks a pending entry failed after a synchronous gateway rejection.
	FailLedgerEntry(ctx context.Context, entryID string, reason string) error

	// ReservePayout atomically inserts a pending payout entry for (group, cycle).
	// Returns ErrPayoutExists when a non-failed payout already exists and
	// ErrCycleAdvanced when the group is no longer on the entry's cycle.
	ReservePayout(ctx context.Context, entry *models.LedgerEntry) error

	// FinalizePayout records gateway acceptance: updates the payout entry,
	// writes the platform fee and advances the group's cycle by one, atomically.
	FinalizePayout(ctx context.Context, fin PayoutFinalization) error

	// SettlePayout moves a pending payout to completed or failed from a
	// transfer webhook. It never touches the group's cycle.
	SettlePayout(ctx context.Context, reference string, status models.EntryStatus) (*models.LedgerEntry, error)

	// ListPlatformFees returns the fee rows for a group, by cycle.
	ListPlatformFees(ctx context.Context, groupID string) ([]*models.PlatformFee, error)

	// Close releases any resources held by the store.
	Close() error
}
