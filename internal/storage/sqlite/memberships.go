package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

const membershipColumns = `m.id, m.group_id, m.member_id, m.position, m.is_active,
	m.next_debit_date, m.retry_count, m.instrument_id, m.created_at`

// CreateMembership persists a new membership.
func (s *SQLiteStore) CreateMembership(ctx context.Context, membership *models.Membership) error {
	if membership.ID == "" {
		membership.ID = uuid.New().String()
	}
	if membership.CreatedAt == 0 {
		membership.CreatedAt = s.now().Unix()
	}

	var nextDebit interface{}
	if membership.NextDebitDate != nil {
		nextDebit = membership.NextDebitDate.Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (id, group_id, member_id, position, is_active, next_debit_date, retry_count, instrument_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		membership.ID, membership.GroupID, membership.MemberID, membership.Position,
		boolToInt(membership.IsActive), nextDebit, membership.RetryCount,
		nullString(membership.InstrumentID), membership.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}

	return nil
}

// GetMembership retrieves a membership by ID.
func (s *SQLiteStore) GetMembership(ctx context.Context, membershipID string) (*models.Membership, error) {
	membership, err := scanMembership(s.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships m WHERE m.id = ?`, membershipID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership %s: %w", membershipID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return membership, nil
}

// ListDueMemberships retrieves memberships whose contribution is due.
func (s *SQLiteStore) ListDueMemberships(ctx context.Context, filter storage.DueFilter) ([]*models.Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships m
		JOIN groups g ON g.id = m.group_id
		WHERE m.is_active = 1
		  AND g.status = ?
		  AND m.next_debit_date IS NOT NULL
		  AND m.next_debit_date <= ?
		  AND m.retry_count < ?`
	args := []interface{}{string(models.GroupActive), filter.Now.Unix(), filter.MaxRetries}

	if filter.GroupID != "" {
		query += " AND m.group_id = ?"
		args = append(args, filter.GroupID)
	}
	query += " ORDER BY m.next_debit_date, m.id"

	return s.queryMemberships(ctx, query, args...)
}

// ListActiveMemberships retrieves the active memberships of a group by position.
func (s *SQLiteStore) ListActiveMemberships(ctx context.Context, groupID string) ([]*models.Membership, error) {
	return s.queryMemberships(ctx,
		`SELECT `+membershipColumns+` FROM memberships m
		 WHERE m.group_id = ? AND m.is_active = 1
		 ORDER BY m.position`,
		groupID,
	)
}

// DeactivateMembership marks a membership inactive.
func (s *SQLiteStore) DeactivateMembership(ctx context.Context, membershipID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE memberships SET is_active = 0 WHERE id = ?", membershipID)
	if err != nil {
		return fmt.Errorf("failed to deactivate membership: %w", err)
	}
	return rowsAffectedOne(res, fmt.Errorf("membership %s: %w", membershipID, storage.ErrNotFound))
}

// RecordChargeAccepted moves the debit date past the debit the entry pays.
// A webhook that already settled the entry wins, and so does anyone who moved
// the date in the meantime; both leave the statement matching no row.
func (s *SQLiteStore) RecordChargeAccepted(ctx context.Context, entry *models.LedgerEntry) error {
	meta := entry.Metadata.Contribution
	if !meta.PaysDebit() {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET next_debit_date = ?
		 WHERE id = ? AND next_debit_date = ?
		   AND EXISTS (SELECT 1 FROM ledger_entries WHERE id = ? AND status = ?)`,
		meta.NextDebitDate, entry.MembershipID, meta.DebitDate, entry.ID, string(models.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to record accepted charge: %w", err)
	}
	return nil
}

// IncrementRetryCount bumps the retry count, never past MaxRetries, and
// returns the new value.
func (s *SQLiteStore) IncrementRetryCount(ctx context.Context, membershipID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"UPDATE memberships SET retry_count = MIN(retry_count + 1, ?) WHERE id = ? RETURNING retry_count",
		models.MaxRetries, membershipID,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("membership %s: %w", membershipID, storage.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment retry count: %w", err)
	}
	return count, nil
}

// ResetRetryCount clears the retry count after an administrator intervenes.
func (s *SQLiteStore) ResetRetryCount(ctx context.Context, membershipID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE memberships SET retry_count = 0 WHERE id = ?", membershipID)
	if err != nil {
		return fmt.Errorf("failed to reset retry count: %w", err)
	}
	return rowsAffectedOne(res, fmt.Errorf("membership %s: %w", membershipID, storage.ErrNotFound))
}

func (s *SQLiteStore) queryMemberships(ctx context.Context, query string, args ...interface{}) ([]*models.Membership, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

func scanMembership(row rowScanner) (*models.Membership, error) {
	membership := &models.Membership{}
	var active int
	var nextDebit sql.NullInt64
	var instrument sql.NullString

	err := row.Scan(&membership.ID, &membership.GroupID, &membership.MemberID, &membership.Position,
		&active, &nextDebit, &membership.RetryCount, &instrument, &membership.CreatedAt)
	if err != nil {
		return nil, err
	}

	membership.IsActive = active == 1
	if nextDebit.Valid {
		t := time.Unix(nextDebit.Int64, 0).UTC()
		membership.NextDebitDate = &t
	}
	if instrument.Valid {
		membership.InstrumentID = instrument.String
	}
	return membership, nil
}
