package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/ajo/internal/gateway"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

func chargeEvent(name, reference string, amount int64) *gateway.Event {
	return &gateway.Event{Event: name, Data: gateway.EventData{Reference: reference, Amount: amount}}
}

func TestHandleGatewayEvent(t *testing.T) {
	t.Run("charge success completes the entry and credits the wallet", func(t *testing.T) {
		f := newFixture(t, 1)
		outcome, err := f.engine.ChargeMembership(f.ctx, f.memberships[0].ID, "")
		require.NoError(t, err)

		result, err := f.engine.HandleGatewayEvent(f.ctx, chargeEvent(gateway.EventChargeSuccess, outcome.Reference, 100000))
		require.NoError(t, err)
		assert.Equal(t, EventApplied, result)

		entry, err := f.store.GetLedgerEntryByReference(f.ctx, outcome.Reference)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, entry.Status)
		member, err := f.store.GetMember(f.ctx, f.members[0].ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100000), member.WalletBalance)

		result, err = f.engine.HandleGatewayEvent(f.ctx, chargeEvent(gateway.EventChargeSuccess, outcome.Reference, 100000))
		require.NoError(t, err)
		assert.Equal(t, EventDuplicate, result)
		member, _ = f.store.GetMember(f.ctx, f.members[0].ID)
		assert.Equal(t, int64(100000), member.WalletBalance, "replayed event must not credit twice")

		result, err = f.engine.HandleGatewayEvent(f.ctx, chargeEvent(gateway.EventChargeFailed, outcome.Reference, 0))
		require.NoError(t, err)
		assert.Equal(t, EventDuplicate, result, "terminal entries are never mutated")
	})

	t.Run("late charge failure returns the membership to the retry loop", func(t *testing.T) {
		f := newFixture(t, 1)
		summary, err := f.engine.CollectContributions(f.ctx, RunOptions{})
		require.NoError(t, err)
		ref := summary.Outcomes[0].Reference
		require.True(t, f.membership(0).NextDebitDate.After(f.now))

		result, err := f.engine.HandleGatewayEvent(f.ctx, chargeEvent(gateway.EventChargeFailed, ref, 0))
		require.NoError(t, err)
		assert.Equal(t, EventApplied, result)

		m := f.membership(0)
		assert.Equal(t, 1, m.RetryCount)
		assert.True(t, m.NextDebitDate.Equal(f.now.Add(-time.Hour)), "back on the debit that went unpaid")
		assert.True(t, m.IsDue(f.now))

		// The failed attempt released its reservation.
		summary, err = f.engine.CollectContributions(f.ctx, RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Succeeded)
		assert.Equal(t, 2, f.gw.chargeCount())
	})

	t.Run("unknown reference and event are ignored", func(t *testing.T) {
		f := newFixture(t, 1)

		result, err := f.engine.HandleGatewayEvent(f.ctx, chargeEvent(gateway.EventChargeSuccess, "nope", 1))
		require.NoError(t, err)
		assert.Equal(t, EventIgnored, result)

		result, err = f.engine.HandleGatewayEvent(f.ctx, chargeEvent("subscription.create", "nope", 1))
		require.NoError(t, err)
		assert.Equal(t, EventIgnored, result)

		result, err = f.engine.HandleGatewayEvent(f.ctx, chargeEvent(gateway.EventTransferSuccess, "nope", 1))
		require.NoError(t, err)
		assert.Equal(t, EventIgnored, result)

		// A charge family event that carries no settlement.
		summary, err := f.engine.CollectContributions(f.ctx, RunOptions{})
		require.NoError(t, err)
		ref := summary.Outcomes[0].Reference
		result, err = f.engine.HandleGatewayEvent(f.ctx, chargeEvent("charge.dispute.create", ref, 100000))
		require.NoError(t, err)
		assert.Equal(t, EventIgnored, result)
		entry, err := f.store.GetLedgerEntryByReference(f.ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, entry.Status)
	})

	t.Run("transfer success settles an accepted payout without moving the cycle", func(t *testing.T) {
		f := newFixture(t, 2)
		f.payCycle(1)
		summary, err := f.engine.ProcessPayouts(f.ctx, RunOptions{})
		require.NoError(t, err)
		ref := summary.Outcomes[0].Reference

		result, err := f.engine.HandleGatewayEvent(f.ctx, &gateway.Event{
			Event: gateway.EventTransferSuccess, Data: gateway.EventData{Reference: ref},
		})
		require.NoError(t, err)
		assert.Equal(t, EventApplied, result)
		assert.Equal(t, 2, f.reloadGroup().CurrentCycle)

		entry, err := f.store.GetLedgerEntryByReference(f.ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, entry.Status)
	})

	t.Run("transfer reversal never rolls the cycle back", func(t *testing.T) {
		f := newFixture(t, 2)
		f.payCycle(1)
		summary, err := f.engine.ProcessPayouts(f.ctx, RunOptions{})
		require.NoError(t, err)
		ref := summary.Outcomes[0].Reference

		result, err := f.engine.HandleGatewayEvent(f.ctx, &gateway.Event{
			Event: gateway.EventTransferReversed, Data: gateway.EventData{Reference: ref},
		})
		require.NoError(t, err)
		assert.Equal(t, EventApplied, result)
		assert.Equal(t, 2, f.reloadGroup().CurrentCycle)

		entry, err := f.store.GetLedgerEntryByReference(f.ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, entry.Status)
	})

	t.Run("transfer failure before acceptance frees the cycle", func(t *testing.T) {
		f := newFixture(t, 2)
		f.payCycle(1)
		f.gw.onTransfer = hangTransfers
		_, err := f.engine.ProcessPayouts(f.ctx, RunOptions{})
		require.NoError(t, err)
		ref := f.payouts(1)[0].ProviderReference

		_, err = f.engine.HandleGatewayEvent(f.ctx, &gateway.Event{
			Event: gateway.EventTransferFailed, Data: gateway.EventData{Reference: ref},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, f.reloadGroup().CurrentCycle)

		f.gw.onTransfer = nil
		summary, err := f.engine.ProcessPayouts(f.ctx, RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Succeeded)
		assert.Equal(t, 2, f.reloadGroup().CurrentCycle)
	})
}

var errUnreachable = errors.New("database is locked")

// brokenStore fails selected calls the way an unreachable datastore would.
type brokenStore struct {
	storage.Store
	failDue    bool
	failMember bool
}

func (s *brokenStore) ListDueMemberships(ctx context.Context, filter storage.DueFilter) ([]*models.Membership, error) {
	if s.failDue {
		return nil, errUnreachable
	}
	return s.Store.ListDueMemberships(ctx, filter)
}

func (s *brokenStore) GetMember(ctx context.Context, memberID string) (*models.Member, error) {
	if s.failMember {
		return nil, errUnreachable
	}
	return s.Store.GetMember(ctx, memberID)
}

func TestFatalErrorsAbortTheRun(t *testing.T) {
	t.Run("due scan failure", func(t *testing.T) {
		f := newFixture(t, 2)
		f.engine.store = &brokenStore{Store: f.store, failDue: true}

		summary, err := f.engine.CollectContributions(f.ctx, RunOptions{})
		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.ErrorIs(t, err, errUnreachable)
		assert.Equal(t, 0, summary.Processed)
	})

	t.Run("failure mid-batch stops further charges", func(t *testing.T) {
		f := newFixture(t, 3)
		f.engine.store = &brokenStore{Store: f.store, failMember: true}

		summary, err := f.engine.CollectContributions(f.ctx, RunOptions{})
		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.Equal(t, 0, summary.Processed)
		assert.Equal(t, 0, f.gw.chargeCount())
	})

	t.Run("payout recipient lookup failure", func(t *testing.T) {
		f := newFixture(t, 2)
		f.payCycle(1)
		f.engine.store = &brokenStore{Store: f.store, failMember: true}

		_, err := f.engine.ProcessPayouts(f.ctx, RunOptions{})
		assert.True(t, IsFatal(err))
		assert.Equal(t, 0, f.gw.transferCount())
		assert.Equal(t, 1, f.reloadGroup().CurrentCycle)
	})
}
