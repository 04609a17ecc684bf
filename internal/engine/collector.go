package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mmynk/ajo/internal/calculator"
	"github.com/mmynk/ajo/internal/gateway"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

// CollectContributions charges every due membership once. Per-membership
// failures land in the summary; the returned error is always a FatalError
// and comes with the partial summary of what ran before it.
func (e *Engine) CollectContributions(ctx context.Context, opts RunOptions) (*Summary, error) {
	now := e.now()
	e.logger.Info("Contribution run started", "group_id", opts.GroupID)

	due, err := e.store.ListDueMemberships(ctx, storage.DueFilter{
		Now:        now,
		GroupID:    opts.GroupID,
		MaxRetries: models.MaxRetries,
	})
	if err != nil {
		e.metrics.Run("contributions", true)
		return &Summary{}, &FatalError{Err: err}
	}

	summary := &Summary{}
	groups := make(map[string]*models.Group)
	for _, m := range due {
		if err := ctx.Err(); err != nil {
			e.metrics.Run("contributions", true)
			return summary, &FatalError{Err: err}
		}

		outcome := e.collectOne(ctx, groups, m)
		if IsFatal(outcome.Err) {
			e.logger.Error("Contribution run aborted", "membership_id", m.ID, "error", outcome.Err)
			e.metrics.Run("contributions", true)
			return summary, outcome.Err
		}
		summary.Add("membership", outcome)
	}

	e.metrics.Run("contributions", false)
	e.logger.Info("Contribution run finished",
		"group_id", opts.GroupID,
		"processed", summary.Processed,
		"successful", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (e *Engine) collectOne(ctx context.Context, groups map[string]*models.Group, m *models.Membership) Outcome {
	group, ok := groups[m.GroupID]
	if !ok {
		g, err := e.store.GetGroup(ctx, m.GroupID)
		if err != nil {
			return failed(m.ID, storeErr(err))
		}
		groups[m.GroupID] = g
		group = g
	}

	member, err := e.store.GetMember(ctx, m.MemberID)
	if errors.Is(err, storage.ErrNotFound) {
		return failed(m.ID, fmt.Errorf("%w: %s", ErrMissingProfile, m.MemberID))
	}
	if err != nil {
		return failed(m.ID, storeErr(err))
	}

	instrument, err := e.resolver.Resolve(ctx, m, "")
	if errors.Is(err, ErrNoPaymentInstrument) {
		// Members without a card are skipped, not penalized.
		e.metrics.Charge("skipped")
		e.logger.Warn("No payment instrument, skipping", "membership_id", m.ID, "member_id", m.MemberID)
		return skipped(m.ID, err)
	}
	if err != nil {
		return failed(m.ID, err)
	}

	key := chargeLockKey(m.ID, debitUnix(m.NextDebitDate))
	acquired, err := e.locker.Acquire(ctx, key, e.cfg.ChargeLockTTL)
	if err != nil {
		return failed(m.ID, &FatalError{Err: err})
	}
	if !acquired {
		e.logger.Info("Charge reserved by another run", "membership_id", m.ID)
		return skipped(m.ID, nil)
	}

	// The listing may be stale if another run charged this membership
	// between our scan and the reservation.
	fresh, err := e.store.GetMembership(ctx, m.ID)
	if err != nil {
		e.locker.Release(ctx, key)
		return failed(m.ID, storeErr(err))
	}
	if !fresh.IsDue(e.now()) {
		e.locker.Release(ctx, key)
		return skipped(m.ID, nil)
	}

	// A charge still awaiting its webhook, or one already paid, keeps the
	// debit date due but must not be charged again for the same cycle.
	status, err := e.cycleContribution(ctx, m.ID, group.CurrentCycle)
	if err != nil {
		e.locker.Release(ctx, key)
		return failed(m.ID, err)
	}
	if err := contributedErr(status, group.CurrentCycle); err != nil {
		e.locker.Release(ctx, key)
		e.metrics.Charge("skipped")
		e.logger.Info("Contribution already on the ledger, skipping",
			"membership_id", m.ID,
			"cycle", group.CurrentCycle,
			"status", status,
		)
		return skipped(m.ID, err)
	}

	// The reservation outlives an unanswered gateway call and expires on its own.
	return e.chargeMembership(ctx, group, member, fresh, instrument, models.ChargeScheduled)
}

// ChargeMembership charges one membership on demand, optionally with an
// explicit instrument. Validation problems are returned as errors; the
// charge itself is reported through the Outcome.
func (e *Engine) ChargeMembership(ctx context.Context, membershipID, instrumentID string) (Outcome, error) {
	if membershipID == "" {
		return Outcome{}, &ValidationError{Field: "membership_id", Reason: "required"}
	}

	m, err := e.store.GetMembership(ctx, membershipID)
	if err != nil {
		return Outcome{}, storeErr(err)
	}
	if !m.IsActive {
		return Outcome{}, &ValidationError{Field: "membership_id", Reason: "membership is not active"}
	}
	if m.RetriesExhausted() {
		return failed(m.ID, ErrMaxRetriesExceeded), nil
	}

	group, err := e.store.GetGroup(ctx, m.GroupID)
	if err != nil {
		return Outcome{}, storeErr(err)
	}
	if !group.IsActive() {
		return Outcome{}, &ValidationError{Field: "membership_id", Reason: fmt.Sprintf("group is %s", group.Status)}
	}

	status, err := e.cycleContribution(ctx, m.ID, group.CurrentCycle)
	if err != nil {
		return Outcome{}, err
	}
	if err := contributedErr(status, group.CurrentCycle); err != nil {
		return skipped(m.ID, err), nil
	}

	member, err := e.store.GetMember(ctx, m.MemberID)
	if errors.Is(err, storage.ErrNotFound) {
		return failed(m.ID, fmt.Errorf("%w: %s", ErrMissingProfile, m.MemberID)), nil
	}
	if err != nil {
		return Outcome{}, storeErr(err)
	}

	instrument, err := e.resolver.Resolve(ctx, m, instrumentID)
	if err != nil {
		if IsFatal(err) {
			return Outcome{}, err
		}
		return failed(m.ID, err), nil
	}

	key := chargeLockKey(m.ID, debitUnix(m.NextDebitDate))
	acquired, err := e.locker.Acquire(ctx, key, e.cfg.ChargeLockTTL)
	if err != nil {
		return Outcome{}, &FatalError{Err: err}
	}
	if !acquired {
		return skipped(m.ID, ErrChargeInProgress), nil
	}

	outcome := e.chargeMembership(ctx, group, member, m, instrument, models.ChargeManual)
	if IsFatal(outcome.Err) {
		return Outcome{}, outcome.Err
	}
	return outcome, nil
}

// chargeMembership records a pending contribution and asks the gateway to
// charge it. Acceptance leaves the entry pending for the webhook.
func (e *Engine) chargeMembership(ctx context.Context, group *models.Group, member *models.Member, m *models.Membership, instrument *models.PaymentInstrument, chargeType models.ChargeType) Outcome {
	now := e.now()
	meta := &models.ContributionMetadata{
		Cycle:        group.CurrentCycle,
		ChargeType:   chargeType,
		InstrumentID: instrument.ID,
		CardBrand:    instrument.Brand,
		CardLast4:    instrument.Last4,
	}
	// Manual charges ahead of schedule pay no debit date and leave the
	// schedule alone.
	if m.NextDebitDate != nil && !m.NextDebitDate.After(now) {
		meta.DebitDate = m.NextDebitDate.Unix()
		meta.NextDebitDate = calculator.NextDebitDate(*m.NextDebitDate, group.CycleType).Unix()
	}
	entry := &models.LedgerEntry{
		MemberID:          m.MemberID,
		GroupID:           group.ID,
		MembershipID:      m.ID,
		Type:              models.EntryContribution,
		Amount:            group.ContributionAmount,
		Status:            models.StatusPending,
		ProviderReference: contributionReference(group.ID, m.ID, now),
		Metadata:          models.LedgerMetadata{Contribution: meta},
	}
	if err := e.store.CreateLedgerEntry(ctx, entry); err != nil {
		return failed(m.ID, storeErr(err))
	}

	_, err := e.charge(ctx, gateway.ChargeRequest{
		AuthorizationCode: instrument.AuthorizationCode,
		Email:             member.Email,
		Amount:            group.ContributionAmount,
		Reference:         entry.ProviderReference,
		Metadata: map[string]any{
			"group_id":      group.ID,
			"membership_id": m.ID,
			"cycle":         group.CurrentCycle,
			"charge_type":   string(chargeType),
		},
	})

	switch {
	case err == nil:
		return e.chargeAccepted(ctx, group, m, entry, chargeType)
	case errors.Is(err, gateway.ErrRejected):
		return e.chargeRejected(ctx, m, entry, chargeType, err)
	default:
		// Outcome unknown: the entry stays pending so a late webhook can
		// still settle it, and the attempt counts against the retry budget.
		e.metrics.Charge("unknown")
		e.logger.Warn("Charge outcome unknown",
			"membership_id", m.ID,
			"reference", entry.ProviderReference,
			"error", err,
		)
		gerr := gatewayErr(err, false)
		if chargeType != models.ChargeScheduled {
			return failed(m.ID, gerr)
		}
		retries, rerr := e.store.IncrementRetryCount(ctx, m.ID)
		if rerr != nil {
			return failed(m.ID, storeErr(rerr))
		}
		if retries >= models.MaxRetries {
			e.logger.Error("Membership exhausted retries", "membership_id", m.ID, "retry_count", retries)
			return failed(m.ID, fmt.Errorf("%w (%w)", ErrMaxRetriesExceeded, gerr))
		}
		return failed(m.ID, gerr)
	}
}

func (e *Engine) chargeAccepted(ctx context.Context, group *models.Group, m *models.Membership, entry *models.LedgerEntry, chargeType models.ChargeType) Outcome {
	e.metrics.Charge("accepted")

	// Retries stay as they are until the webhook says the money arrived.
	if err := e.store.RecordChargeAccepted(ctx, entry); err != nil {
		return failed(m.ID, storeErr(err))
	}

	e.logger.Info("Charge accepted",
		"membership_id", m.ID,
		"group_id", group.ID,
		"cycle", group.CurrentCycle,
		"charge_type", chargeType,
		"reference", entry.ProviderReference,
	)
	return succeeded(m.ID, entry.ProviderReference)
}

func (e *Engine) chargeRejected(ctx context.Context, m *models.Membership, entry *models.LedgerEntry, chargeType models.ChargeType, cause error) Outcome {
	e.metrics.Charge("rejected")
	if err := e.store.FailLedgerEntry(ctx, entry.ID, cause.Error()); err != nil {
		return failed(m.ID, storeErr(err))
	}
	// The failed entry is on the ledger, so the debit can be tried again.
	e.locker.Release(ctx, chargeLockKey(m.ID, debitUnix(m.NextDebitDate)))

	err := gatewayErr(cause, true)
	if chargeType != models.ChargeScheduled {
		return failed(m.ID, err)
	}

	retries, rerr := e.store.IncrementRetryCount(ctx, m.ID)
	if rerr != nil {
		return failed(m.ID, storeErr(rerr))
	}
	e.logger.Warn("Charge rejected",
		"membership_id", m.ID,
		"reference", entry.ProviderReference,
		"retry_count", retries,
		"error", cause,
	)
	if retries >= models.MaxRetries {
		e.logger.Error("Membership exhausted retries", "membership_id", m.ID, "retry_count", retries)
		return failed(m.ID, fmt.Errorf("%w (%w)", ErrMaxRetriesExceeded, err))
	}
	return failed(m.ID, err)
}

// ResetRetryCount clears a membership parked after MaxRetries rejections.
func (e *Engine) ResetRetryCount(ctx context.Context, membershipID string) error {
	if membershipID == "" {
		return &ValidationError{Field: "membership_id", Reason: "required"}
	}
	if err := e.store.ResetRetryCount(ctx, membershipID); err != nil {
		return storeErr(err)
	}
	e.logger.Info("Retry count reset", "membership_id", membershipID)
	return nil
}

// cycleContribution returns the status of the membership's contribution for
// the cycle: completed if any attempt completed, pending if one is still
// awaiting settlement, empty otherwise. Failed attempts do not count.
func (e *Engine) cycleContribution(ctx context.Context, membershipID string, cycle int) (models.EntryStatus, error) {
	entries, err := e.store.ListLedgerEntries(ctx, storage.LedgerFilter{
		MembershipID: membershipID,
		Type:         models.EntryContribution,
		Cycle:        cycle,
	})
	if err != nil {
		return "", storeErr(err)
	}

	var status models.EntryStatus
	for _, entry := range entries {
		switch entry.Status {
		case models.StatusCompleted:
			return models.StatusCompleted, nil
		case models.StatusPending:
			status = models.StatusPending
		}
	}
	return status, nil
}

// contributedErr explains why a contribution in the given state blocks
// another charge, or returns nil if it does not.
func contributedErr(status models.EntryStatus, cycle int) error {
	switch status {
	case models.StatusCompleted:
		return fmt.Errorf("%w %d", ErrAlreadyContributed, cycle)
	case models.StatusPending:
		return fmt.Errorf("%w for cycle %d", ErrChargeInProgress, cycle)
	}
	return nil
}

// chargeLockKey reserves one scheduled debit of a membership. A zero debit
// means the membership has no schedule.
func chargeLockKey(membershipID string, debit int64) string {
	if debit == 0 {
		return "contribution:" + membershipID + ":unscheduled"
	}
	return "contribution:" + membershipID + ":" + strconv.FormatInt(debit, 10)
}

func debitUnix(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

func contributionReference(groupID, membershipID string, at time.Time) string {
	return fmt.Sprintf("ajo-%s-%s-%d", groupID, membershipID, at.UnixNano())
}
