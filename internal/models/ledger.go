package models

import "fmt"

// EntryType is the kind of money movement a ledger entry records.
type EntryType string

const (
	EntryContribution EntryType = "contribution"
	EntryPayout       EntryType = "payout"
	EntryDeposit      EntryType = "deposit"
	EntryWithdrawal   EntryType = "withdrawal"
	EntryFee          EntryType = "fee"
)

// EntryStatus is the settlement state of a ledger entry.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s EntryStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// LedgerEntry is an append-only record of a single money movement.
// Once an entry is terminal it is never mutated again; a pending entry moves
// to completed or failed exactly once.
type LedgerEntry struct {
	ID           string
	MemberID     string
	GroupID      string
	MembershipID string

	Type EntryType

	// Amount is in minor units.
	Amount int64

	Status EntryStatus

	// ProviderReference is the gateway reference, unique across the ledger.
	ProviderReference string

	// Cycle is the group cycle the entry belongs to, 0 when not cycle-bound.
	Cycle int

	Metadata LedgerMetadata

	CreatedAt int64
	UpdatedAt int64
}

// LedgerMetadata carries the typed details of an entry. Exactly one of the
// pointer fields is set, chosen by the entry's Type.
type LedgerMetadata struct {
	Contribution *ContributionMetadata `json:"contribution,omitempty"`
	Payout       *PayoutMetadata       `json:"payout,omitempty"`
	Transfer     *TransferMetadata     `json:"transfer,omitempty"`
}

// ChargeType distinguishes scheduled from member-initiated charges.
type ChargeType string

const (
	ChargeScheduled ChargeType = "scheduled"
	ChargeManual    ChargeType = "manual"
)

// ContributionMetadata describes a card charge for one cycle.
type ContributionMetadata struct {
	Cycle        int        `json:"cycle"`
	ChargeType   ChargeType `json:"charge_type"`
	InstrumentID string     `json:"instrument_id,omitempty"`
	CardBrand    string     `json:"card_brand,omitempty"`
	CardLast4    string     `json:"card_last4,omitempty"`
	GatewayError string     `json:"gateway_error,omitempty"`

	// DebitDate is the scheduled debit (unix seconds) this charge pays and
	// NextDebitDate the one after it. Both are zero for charges made ahead of
	// schedule.
	DebitDate     int64 `json:"debit_date,omitempty"`
	NextDebitDate int64 `json:"next_debit_date,omitempty"`
}

// PaysDebit reports whether the charge settles a scheduled debit date.
func (m *ContributionMetadata) PaysDebit() bool {
	return m != nil && m.DebitDate != 0 && m.NextDebitDate != 0
}

// PayoutMetadata describes the pool disbursed for one cycle.
type PayoutMetadata struct {
	Cycle         int    `json:"cycle"`
	GrossAmount   int64  `json:"gross_amount"`
	FeeAmount     int64  `json:"fee_amount"`
	NetAmount     int64  `json:"net_amount"`
	FeePercentage string `json:"fee_percentage"`
	ActiveMembers int    `json:"active_members"`
	TransferCode  string `json:"transfer_code,omitempty"`
	GatewayError  string `json:"gateway_error,omitempty"`
}

// TransferMetadata describes deposits and withdrawals recorded outside the cycle.
type TransferMetadata struct {
	Reason string `json:"reason,omitempty"`
}

// Cycle returns the cycle carried by the metadata, 0 if none.
func (m LedgerMetadata) Cycle() int {
	switch {
	case m.Contribution != nil:
		return m.Contribution.Cycle
	case m.Payout != nil:
		return m.Payout.Cycle
	}
	return 0
}

// Validate checks that exactly the variant matching t is set.
func (m LedgerMetadata) Validate(t EntryType) error {
	set := 0
	for _, ok := range []bool{m.Contribution != nil, m.Payout != nil, m.Transfer != nil} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("metadata for %s entry has %d variants set", t, set)
	}

	switch t {
	case EntryContribution:
		if m.Contribution == nil {
			return fmt.Errorf("contribution entry requires contribution metadata")
		}
	case EntryPayout:
		if m.Payout == nil {
			return fmt.Errorf("payout entry requires payout metadata")
		}
	case EntryDeposit, EntryWithdrawal, EntryFee:
		if m.Contribution != nil || m.Payout != nil {
			return fmt.Errorf("%s entry cannot carry cycle metadata", t)
		}
	default:
		return fmt.Errorf("unknown entry type %q", t)
	}
	return nil
}

// PlatformFee is the fee row written exactly once per successful payout.
// GrossAmount == FeeAmount + NetAmount always holds.
type PlatformFee struct {
	ID                  string
	GroupID             string
	PayoutLedgerEntryID string
	GrossAmount         int64
	FeeAmount           int64
	NetAmount           int64
	FeePercentage       string
	Cycle               int
	CreatedAt           int64
}
