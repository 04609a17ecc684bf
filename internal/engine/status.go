package engine

import (
	"context"
	"errors"

	"github.com/mmynk/ajo/internal/calculator"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

// CycleStatus is a read-only view of a group's current cycle.
type CycleStatus struct {
	GroupID      string
	GroupStatus  models.GroupStatus
	CurrentCycle int

	ActiveMembers int
	Contributed   []string
	Outstanding   []string
	Complete      bool

	// NextRecipient is empty when RecipientError explains why no one is due.
	NextRecipient  string
	RecipientError string

	Gross int64
	Fee   int64
	Net   int64

	// PayoutStatus is the state of the cycle's live payout, empty if none.
	PayoutStatus      models.EntryStatus
	PayoutReference   string
	PayoutFailedTimes int
}

// CycleStatus reports contributions and the expected payout for the group's
// current cycle.
func (e *Engine) CycleStatus(ctx context.Context, groupID string) (*CycleStatus, error) {
	if groupID == "" {
		return nil, &ValidationError{Field: "group_id", Reason: "required"}
	}

	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storeErr(err)
	}

	memberships, err := e.store.ListActiveMemberships(ctx, groupID)
	if err != nil {
		return nil, storeErr(err)
	}
	completed, err := e.store.CompletedContributors(ctx, groupID, group.CurrentCycle)
	if err != nil {
		return nil, storeErr(err)
	}

	activeIDs := make([]string, 0, len(memberships))
	rotation := make([]calculator.RotationMember, 0, len(memberships))
	for _, m := range memberships {
		activeIDs = append(activeIDs, m.MemberID)
		rotation = append(rotation, calculator.RotationMember{MemberID: m.MemberID, Position: m.Position})
	}
	outstanding := calculator.OutstandingMembers(activeIDs, completed)

	status := &CycleStatus{
		GroupID:       group.ID,
		GroupStatus:   group.Status,
		CurrentCycle:  group.CurrentCycle,
		ActiveMembers: len(memberships),
		Contributed:   completed,
		Outstanding:   outstanding,
		Complete:      len(memberships) > 0 && len(outstanding) == 0,
	}

	recipient, err := calculator.DetermineRecipient(group.CurrentCycle, group.WithdrawalOrder, rotation)
	if err != nil {
		status.RecipientError = err.Error()
	} else {
		status.NextRecipient = recipient
	}

	if len(memberships) > 0 {
		fee, err := calculator.CalculateFee(group.ContributionAmount, len(memberships), group.FeePercentage)
		if err == nil {
			status.Gross, status.Fee, status.Net = fee.Gross, fee.Fee, fee.Net
		}
	}

	payouts, err := e.store.ListLedgerEntries(ctx, storage.LedgerFilter{
		GroupID: groupID,
		Type:    models.EntryPayout,
		Cycle:   group.CurrentCycle,
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, storeErr(err)
	}
	for _, p := range payouts {
		if p.Status == models.StatusFailed {
			status.PayoutFailedTimes++
			continue
		}
		status.PayoutStatus = p.Status
		status.PayoutReference = p.ProviderReference
	}
	return status, nil
}
