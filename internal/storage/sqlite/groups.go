package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

const groupColumns = `id, name, creator_id, contribution_amount, cycle_type, current_cycle,
	max_members, status, fee_percentage, created_at`

// CreateGroup persists a new group and its withdrawal order.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	// Generate IDs if not set
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = s.now().Unix()
	}
	if group.CurrentCycle == 0 {
		group.CurrentCycle = 1
	}
	if group.Status == "" {
		group.Status = models.GroupActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.CreatorID, group.ContributionAmount, string(group.CycleType),
		group.CurrentCycle, group.MaxMembers, string(group.Status), group.FeePercentage.String(), group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	if err := insertWithdrawalOrder(ctx, tx, group.ID, group.WithdrawalOrder); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID, including its withdrawal order.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := scanGroup(s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = ?`, groupID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	order, err := s.withdrawalOrder(ctx, groupID)
	if err != nil {
		return nil, err
	}
	group.WithdrawalOrder = order

	return group, nil
}

// ListActiveGroups retrieves all groups the engine may pay out of.
func (s *SQLiteStore) ListActiveGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE status = ? ORDER BY created_at, id`,
		string(models.GroupActive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	rows.Close()

	// Load withdrawal orders after the cursor is released; the pool has a single connection.
	for _, group := range groups {
		order, err := s.withdrawalOrder(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		group.WithdrawalOrder = order
	}

	return groups, nil
}

// SetWithdrawalOrder replaces the explicit rotation of a group.
func (s *SQLiteStore) SetWithdrawalOrder(ctx context.Context, groupID string, memberIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check group existence: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM group_withdrawal_order WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to clear withdrawal order: %w", err)
	}
	if err := insertWithdrawalOrder(ctx, tx, groupID, memberIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateGroupStatus changes a group's lifecycle state.
func (s *SQLiteStore) UpdateGroupStatus(ctx context.Context, groupID string, status models.GroupStatus) error {
	res, err := s.db.ExecContext(ctx, "UPDATE groups SET status = ? WHERE id = ?", string(status), groupID)
	if err != nil {
		return fmt.Errorf("failed to update group status: %w", err)
	}
	return rowsAffectedOne(res, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound))
}

func insertWithdrawalOrder(ctx context.Context, tx *sql.Tx, groupID string, memberIDs []string) error {
	for i, memberID := range memberIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO group_withdrawal_order (group_id, slot, member_id) VALUES (?, ?, ?)",
			groupID, i+1, memberID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert withdrawal order slot: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) withdrawalOrder(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id FROM group_withdrawal_order WHERE group_id = ? ORDER BY slot",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal order: %w", err)
	}
	defer rows.Close()

	var order []string
	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal order: %w", err)
		}
		order = append(order, memberID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate withdrawal order: %w", err)
	}
	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*models.Group, error) {
	group := &models.Group{}
	var cycleType, status, fee string
	err := row.Scan(&group.ID, &group.Name, &group.CreatorID, &group.ContributionAmount, &cycleType,
		&group.CurrentCycle, &group.MaxMembers, &status, &fee, &group.CreatedAt)
	if err != nil {
		return nil, err
	}
	group.CycleType = models.CycleType(cycleType)
	group.Status = models.GroupStatus(status)
	group.FeePercentage, err = decimal.NewFromString(fee)
	if err != nil {
		return nil, fmt.Errorf("invalid fee percentage %q: %w", fee, err)
	}
	return group, nil
}
