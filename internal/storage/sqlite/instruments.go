package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

const instrumentColumns = `id, member_id, membership_id, authorization_code, brand, last4,
	is_default, is_active, created_at`

// CreateInstrument persists a tokenized payment instrument.
func (s *SQLiteStore) CreateInstrument(ctx context.Context, instrument *models.PaymentInstrument) error {
	if instrument.ID == "" {
		instrument.ID = uuid.New().String()
	}
	if instrument.CreatedAt == 0 {
		instrument.CreatedAt = s.now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_instruments (`+instrumentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		instrument.ID, instrument.MemberID, nullString(instrument.MembershipID),
		instrument.AuthorizationCode, instrument.Brand, instrument.Last4,
		boolToInt(instrument.IsDefault), boolToInt(instrument.IsActive), instrument.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment instrument: %w", err)
	}
	return nil
}

// GetInstrument retrieves a payment instrument by ID, active or not.
func (s *SQLiteStore) GetInstrument(ctx context.Context, instrumentID string) (*models.PaymentInstrument, error) {
	return s.getInstrument(ctx, "instrument "+instrumentID,
		`SELECT `+instrumentColumns+` FROM payment_instruments WHERE id = ?`, instrumentID)
}

// GetMembershipInstrument returns the newest active instrument bound to a membership.
func (s *SQLiteStore) GetMembershipInstrument(ctx context.Context, membershipID string) (*models.PaymentInstrument, error) {
	return s.getInstrument(ctx, "instrument for membership "+membershipID,
		`SELECT `+instrumentColumns+` FROM payment_instruments
		 WHERE membership_id = ? AND is_active = 1
		 ORDER BY created_at DESC LIMIT 1`, membershipID)
}

// GetDefaultInstrument returns the member's newest default active instrument.
func (s *SQLiteStore) GetDefaultInstrument(ctx context.Context, memberID string) (*models.PaymentInstrument, error) {
	return s.getInstrument(ctx, "default instrument for member "+memberID,
		`SELECT `+instrumentColumns+` FROM payment_instruments
		 WHERE member_id = ? AND is_default = 1 AND is_active = 1
		 ORDER BY created_at DESC LIMIT 1`, memberID)
}

func (s *SQLiteStore) getInstrument(ctx context.Context, what, query string, args ...interface{}) (*models.PaymentInstrument, error) {
	instrument := &models.PaymentInstrument{}
	var membershipID sql.NullString
	var isDefault, isActive int

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&instrument.ID, &instrument.MemberID, &membershipID, &instrument.AuthorizationCode,
		&instrument.Brand, &instrument.Last4, &isDefault, &isActive, &instrument.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment instrument: %w", err)
	}

	if membershipID.Valid {
		instrument.MembershipID = membershipID.String
	}
	instrument.IsDefault = isDefault == 1
	instrument.IsActive = isActive == 1
	return instrument, nil
}
