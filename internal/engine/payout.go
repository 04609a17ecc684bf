package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/ajo/internal/calculator"
	"github.com/mmynk/ajo/internal/gateway"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

// ProcessPayouts pays out every active group whose current cycle is fully
// contributed. Each group is checked, its recipient determined, the payout
// reserved and the transfer requested; acceptance advances the cycle.
func (e *Engine) ProcessPayouts(ctx context.Context, opts RunOptions) (*Summary, error) {
	e.logger.Info("Payout run started", "group_id", opts.GroupID)

	var groups []*models.Group
	if opts.GroupID != "" {
		group, err := e.store.GetGroup(ctx, opts.GroupID)
		if errors.Is(err, storage.ErrNotFound) {
			return &Summary{}, &ValidationError{Field: "group_id", Reason: "group not found"}
		}
		if err != nil {
			e.metrics.Run("payouts", true)
			return &Summary{}, &FatalError{Err: err}
		}
		groups = []*models.Group{group}
	} else {
		active, err := e.store.ListActiveGroups(ctx)
		if err != nil {
			e.metrics.Run("payouts", true)
			return &Summary{}, &FatalError{Err: err}
		}
		groups = active
	}

	summary := &Summary{}
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			e.metrics.Run("payouts", true)
			return summary, &FatalError{Err: err}
		}

		outcome := e.payoutGroup(ctx, group)
		if IsFatal(outcome.Err) {
			e.logger.Error("Payout run aborted", "group_id", group.ID, "error", outcome.Err)
			e.metrics.Run("payouts", true)
			return summary, outcome.Err
		}
		summary.Add("group", outcome)
	}

	e.metrics.Run("payouts", false)
	e.logger.Info("Payout run finished",
		"group_id", opts.GroupID,
		"processed", summary.Processed,
		"payouts_initiated", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (e *Engine) payoutGroup(ctx context.Context, group *models.Group) Outcome {
	if !group.IsActive() {
		return skipped(group.ID, nil)
	}
	cycle := group.CurrentCycle

	memberships, err := e.store.ListActiveMemberships(ctx, group.ID)
	if err != nil {
		return failed(group.ID, storeErr(err))
	}
	if len(memberships) == 0 {
		return skipped(group.ID, nil)
	}

	activeIDs := make([]string, 0, len(memberships))
	rotation := make([]calculator.RotationMember, 0, len(memberships))
	byMember := make(map[string]*models.Membership, len(memberships))
	for _, m := range memberships {
		activeIDs = append(activeIDs, m.MemberID)
		rotation = append(rotation, calculator.RotationMember{MemberID: m.MemberID, Position: m.Position})
		byMember[m.MemberID] = m
	}

	completed, err := e.store.CompletedContributors(ctx, group.ID, cycle)
	if err != nil {
		return failed(group.ID, storeErr(err))
	}
	if !calculator.IsCycleComplete(activeIDs, completed) {
		e.logger.Debug("Cycle incomplete",
			"group_id", group.ID,
			"cycle", cycle,
			"outstanding", calculator.OutstandingMembers(activeIDs, completed),
		)
		return skipped(group.ID, nil)
	}

	recipientID, err := calculator.DetermineRecipient(cycle, group.WithdrawalOrder, rotation)
	if err != nil {
		e.metrics.Payout("failed")
		return failed(group.ID, fmt.Errorf("cycle %d: %w", cycle, err))
	}

	recipient, err := e.store.GetMember(ctx, recipientID)
	if errors.Is(err, storage.ErrNotFound) {
		e.metrics.Payout("failed")
		return failed(group.ID, fmt.Errorf("%w: %s", ErrMissingProfile, recipientID))
	}
	if err != nil {
		return failed(group.ID, storeErr(err))
	}
	if recipient.RecipientCode == "" {
		e.metrics.Payout("failed")
		return failed(group.ID, fmt.Errorf("%w: %s", ErrNoBankAccount, recipientID))
	}

	fee, err := calculator.CalculateFee(group.ContributionAmount, len(memberships), group.FeePercentage)
	if err != nil {
		e.metrics.Payout("failed")
		return failed(group.ID, err)
	}

	entry := &models.LedgerEntry{
		MemberID:          recipientID,
		GroupID:           group.ID,
		MembershipID:      byMember[recipientID].ID,
		Type:              models.EntryPayout,
		Amount:            fee.Net,
		ProviderReference: payoutReference(group.ID, cycle),
		Metadata: models.LedgerMetadata{Payout: &models.PayoutMetadata{
			Cycle:         cycle,
			GrossAmount:   fee.Gross,
			FeeAmount:     fee.Fee,
			NetAmount:     fee.Net,
			FeePercentage: fee.FeePercentage.String(),
			ActiveMembers: len(memberships),
		}},
	}
	if err := e.store.ReservePayout(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrPayoutExists) || errors.Is(err, storage.ErrCycleAdvanced) {
			e.metrics.Payout("duplicate")
			e.logger.Info("Payout already reserved", "group_id", group.ID, "cycle", cycle, "reason", err)
			return skipped(group.ID, nil)
		}
		return failed(group.ID, storeErr(err))
	}

	res, err := e.transfer(ctx, gateway.TransferRequest{
		Source:    "balance",
		Amount:    fee.Net,
		Recipient: recipient.RecipientCode,
		Reason:    fmt.Sprintf("%s payout, cycle %d", group.Name, cycle),
		Reference: entry.ProviderReference,
	})
	switch {
	case errors.Is(err, gateway.ErrRejected):
		e.metrics.Payout("rejected")
		e.logger.Warn("Transfer rejected", "group_id", group.ID, "cycle", cycle, "error", err)
		if ferr := e.store.FailLedgerEntry(ctx, entry.ID, err.Error()); ferr != nil {
			return failed(group.ID, storeErr(ferr))
		}
		return failed(group.ID, gatewayErr(err, true))
	case err != nil:
		// Outcome unknown: the reservation holds the cycle until the
		// transfer webhook settles it.
		e.metrics.Payout("unknown")
		e.logger.Warn("Transfer outcome unknown",
			"group_id", group.ID,
			"cycle", cycle,
			"reference", entry.ProviderReference,
			"error", err,
		)
		return failed(group.ID, gatewayErr(err, false))
	}

	status := models.StatusPending
	if res.Status == "success" {
		status = models.StatusCompleted
	}
	if err := e.store.FinalizePayout(ctx, storage.PayoutFinalization{
		EntryID:      entry.ID,
		Status:       status,
		TransferCode: res.TransferCode,
		Fee:          platformFee(fee),
		FromCycle:    cycle,
	}); err != nil {
		return failed(group.ID, storeErr(err))
	}

	e.metrics.Payout("initiated")
	e.metrics.PlatformFee(fee.Fee)
	e.logger.Info("Payout initiated",
		"group_id", group.ID,
		"cycle", cycle,
		"recipient_id", recipientID,
		"gross", fee.Gross,
		"fee", fee.Fee,
		"net", fee.Net,
		"transfer_code", res.TransferCode,
	)
	return succeeded(group.ID, entry.ProviderReference)
}

func platformFee(fee calculator.FeeBreakdown) *models.PlatformFee {
	return &models.PlatformFee{
		GrossAmount:   fee.Gross,
		FeeAmount:     fee.Fee,
		NetAmount:     fee.Net,
		FeePercentage: fee.FeePercentage.String(),
	}
}

func payoutReference(groupID string, cycle int) string {
	return fmt.Sprintf("ajo-payout-%s-%d-%s", groupID, cycle, uuid.New().String()[:8])
}
