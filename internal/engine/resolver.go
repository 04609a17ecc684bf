package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

// InstrumentResolver picks the stored card to charge for a membership.
type InstrumentResolver struct {
	store storage.Store
}

// NewInstrumentResolver creates a resolver backed by store.
func NewInstrumentResolver(store storage.Store) *InstrumentResolver {
	return &InstrumentResolver{store: store}
}

// Resolve tries, in order: the explicit instrument when it is active and
// owned by the member, the instrument bound to the membership, and the
// member's default instrument. It fails with ErrNoPaymentInstrument.
func (r *InstrumentResolver) Resolve(ctx context.Context, m *models.Membership, explicitID string) (*models.PaymentInstrument, error) {
	if explicitID != "" {
		instrument, err := r.store.GetInstrument(ctx, explicitID)
		switch {
		case err == nil && instrument.OwnedBy(m.MemberID):
			return instrument, nil
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return nil, storeErr(err)
		}
	}

	if m.InstrumentID != "" {
		instrument, err := r.store.GetInstrument(ctx, m.InstrumentID)
		switch {
		case err == nil && instrument.OwnedBy(m.MemberID):
			return instrument, nil
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return nil, storeErr(err)
		}
	}

	instrument, err := r.store.GetMembershipInstrument(ctx, m.ID)
	if err == nil && instrument.OwnedBy(m.MemberID) {
		return instrument, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, storeErr(err)
	}

	instrument, err = r.store.GetDefaultInstrument(ctx, m.MemberID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w for member %s", ErrNoPaymentInstrument, m.MemberID)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return instrument, nil
}
