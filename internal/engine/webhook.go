package engine

import (
	"context"
	"errors"

	"github.com/mmynk/ajo/internal/gateway"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

// EventResult says what a webhook event did to the ledger.
type EventResult string

const (
	EventApplied   EventResult = "applied"
	EventDuplicate EventResult = "duplicate"
	EventIgnored   EventResult = "ignored"
)

// HandleGatewayEvent settles a pending ledger entry from a verified webhook.
// Unknown references and event types are ignored so the gateway stops
// retrying them; a returned error asks the gateway to retry later.
func (e *Engine) HandleGatewayEvent(ctx context.Context, event *gateway.Event) (EventResult, error) {
	var (
		result EventResult
		err    error
	)
	status := eventStatus(event.Event)
	switch {
	case status == "":
		result = EventIgnored
	case event.IsCharge():
		result, err = e.settleCharge(ctx, event, status)
	case event.IsTransfer():
		result, err = e.settleTransfer(ctx, event, status)
	default:
		result = EventIgnored
	}

	if err != nil {
		e.metrics.WebhookEvent(event.Event, "error")
		e.logger.Error("Webhook event failed", "event", event.Event, "reference", event.Data.Reference, "error", err)
		return "", err
	}
	e.metrics.WebhookEvent(event.Event, string(result))
	e.logger.Info("Webhook event handled", "event", event.Event, "reference", event.Data.Reference, "result", result)
	return result, nil
}

func (e *Engine) settleCharge(ctx context.Context, event *gateway.Event, status models.EntryStatus) (EventResult, error) {
	entry, err := e.store.SettleCharge(ctx, event.Data.Reference, status)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return EventIgnored, nil
	case errors.Is(err, storage.ErrNotPending):
		return EventDuplicate, nil
	case err != nil:
		return "", err
	}

	if status == models.StatusCompleted {
		if event.Data.Amount != 0 && event.Data.Amount != entry.Amount {
			e.logger.Warn("Charge amount differs from ledger",
				"reference", entry.ProviderReference,
				"ledger_amount", entry.Amount,
				"event_amount", event.Data.Amount,
			)
		}
		return EventApplied, nil
	}

	meta := entry.Metadata.Contribution
	if meta.PaysDebit() {
		// The ledger now shows the attempt failed, so the debit it was
		// reserved for may be charged again.
		e.locker.Release(ctx, chargeLockKey(entry.MembershipID, meta.DebitDate))
	}
	e.logger.Warn("Charge failed at settlement",
		"membership_id", entry.MembershipID,
		"reference", entry.ProviderReference,
		"reason", event.Data.Reason,
	)
	return EventApplied, nil
}

func (e *Engine) settleTransfer(ctx context.Context, event *gateway.Event, status models.EntryStatus) (EventResult, error) {
	entry, err := e.store.GetLedgerEntryByReference(ctx, event.Data.Reference)
	if errors.Is(err, storage.ErrNotFound) {
		return EventIgnored, nil
	}
	if err != nil {
		return "", err
	}
	if entry.Type != models.EntryPayout || entry.Metadata.Payout == nil {
		return EventIgnored, nil
	}
	if entry.Status != models.StatusPending {
		if entry.Status == models.StatusCompleted && status == models.StatusFailed {
			e.logger.Error("Transfer reversed after completion, needs manual reconciliation",
				"group_id", entry.GroupID,
				"cycle", entry.Cycle,
				"reference", entry.ProviderReference,
				"event", event.Event,
			)
		}
		return EventDuplicate, nil
	}

	group, err := e.store.GetGroup(ctx, entry.GroupID)
	if err != nil {
		return "", err
	}

	// A transfer whose synchronous answer never arrived is still holding the
	// cycle. Success finalizes it now; failure releases it.
	if status == models.StatusCompleted && group.CurrentCycle == entry.Cycle {
		meta := entry.Metadata.Payout
		err := e.store.FinalizePayout(ctx, storage.PayoutFinalization{
			EntryID:      entry.ID,
			Status:       models.StatusCompleted,
			TransferCode: event.Data.TransferCode,
			Fee: &models.PlatformFee{
				GrossAmount:   meta.GrossAmount,
				FeeAmount:     meta.FeeAmount,
				NetAmount:     meta.NetAmount,
				FeePercentage: meta.FeePercentage,
			},
			FromCycle: entry.Cycle,
		})
		switch {
		case errors.Is(err, storage.ErrNotPending):
			return EventDuplicate, nil
		case err != nil:
			return "", err
		}
		e.metrics.PlatformFee(meta.FeeAmount)
		e.logger.Info("Late transfer confirmation advanced cycle", "group_id", group.ID, "cycle", entry.Cycle)
		return EventApplied, nil
	}

	if _, err := e.store.SettlePayout(ctx, entry.ProviderReference, status); err != nil {
		if errors.Is(err, storage.ErrNotPending) {
			return EventDuplicate, nil
		}
		return "", err
	}

	if status == models.StatusFailed && group.CurrentCycle != entry.Cycle {
		// The cycle already advanced on acceptance and never moves back.
		e.logger.Error("Payout failed after cycle advanced, needs manual reconciliation",
			"group_id", entry.GroupID,
			"cycle", entry.Cycle,
			"reference", entry.ProviderReference,
			"event", event.Event,
		)
	}
	return EventApplied, nil
}

// eventStatus maps a gateway event onto the ledger status it settles to, or
// empty when the event settles nothing.
func eventStatus(name string) models.EntryStatus {
	switch name {
	case gateway.EventChargeSuccess, gateway.EventTransferSuccess:
		return models.StatusCompleted
	case gateway.EventChargeFailed, gateway.EventTransferFailed, gateway.EventTransferReversed:
		return models.StatusFailed
	}
	return ""
}
