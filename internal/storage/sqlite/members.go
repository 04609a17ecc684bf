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

// CreateMember inserts a new member profile into the database.
func (s *SQLiteStore) CreateMember(ctx context.Context, member *models.Member) error {
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	if member.CreatedAt == 0 {
		member.CreatedAt = s.now().Unix()
	}

	query := `
		INSERT INTO members (id, email, display_name, recipient_code, wallet_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		member.ID,
		member.Email,
		member.DisplayName,
		nullString(member.RecipientCode),
		member.WalletBalance,
		member.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}

	return nil
}

// GetMember retrieves a member by ID.
func (s *SQLiteStore) GetMember(ctx context.Context, memberID string) (*models.Member, error) {
	query := `
		SELECT id, email, display_name, recipient_code, wallet_balance, created_at
		FROM members
		WHERE id = ?
	`

	member := &models.Member{}
	var recipient sql.NullString
	err := s.db.QueryRowContext(ctx, query, memberID).Scan(
		&member.ID,
		&member.Email,
		&member.DisplayName,
		&recipient,
		&member.WalletBalance,
		&member.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", memberID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	if recipient.Valid {
		member.RecipientCode = recipient.String
	}

	return member, nil
}
