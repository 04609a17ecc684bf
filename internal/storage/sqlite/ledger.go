package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

const ledgerColumns = `id, member_id, group_id, membership_id, type, amount, status,
	provider_reference, cycle, metadata, created_at, updated_at`

// CreateLedgerEntry appends a ledger entry.
func (s *SQLiteStore) CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.Type == models.EntryPayout {
		return fmt.Errorf("payout entries must be reserved with ReservePayout")
	}
	args, err := s.prepareEntry(entry)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (`+ledgerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("reference %s: %w", entry.ProviderReference, storage.ErrDuplicateReference)
	}
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// GetLedgerEntryByReference retrieves an entry by its provider reference.
func (s *SQLiteStore) GetLedgerEntryByReference(ctx context.Context, reference string) (*models.LedgerEntry, error) {
	entry, err := scanLedgerEntry(s.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE provider_reference = ?`, reference,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger entry %s: %w", reference, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return entry, nil
}

// ListLedgerEntries retrieves entries matching the filter, oldest first.
func (s *SQLiteStore) ListLedgerEntries(ctx context.Context, filter storage.LedgerFilter) ([]*models.LedgerEntry, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if filter.GroupID != "" {
		add("group_id = ?", filter.GroupID)
	}
	if filter.MembershipID != "" {
		add("membership_id = ?", filter.MembershipID)
	}
	if filter.MemberID != "" {
		add("member_id = ?", filter.MemberID)
	}
	if filter.Type != "" {
		add("type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		add("status = ?", string(filter.Status))
	}
	if filter.Cycle != 0 {
		add("cycle = ?", filter.Cycle)
	}

	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

// CompletedContributors returns who has a completed contribution for the cycle.
func (s *SQLiteStore) CompletedContributors(ctx context.Context, groupID string, cycle int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT member_id FROM ledger_entries
		 WHERE group_id = ? AND type = ? AND status = ? AND cycle = ?
		 ORDER BY member_id`,
		groupID, string(models.EntryContribution), string(models.StatusCompleted), cycle,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed contributions: %w", err)
	}
	defer rows.Close()

	var memberIDs []string
	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("failed to scan contributor: %w", err)
		}
		memberIDs = append(memberIDs, memberID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributors: %w", err)
	}
	return memberIDs, nil
}

// SettleCharge applies a charge webhook to a pending entry.
func (s *SQLiteStore) SettleCharge(ctx context.Context, reference string, status models.EntryStatus) (*models.LedgerEntry, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("cannot settle to non-terminal status %q", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := scanLedgerEntry(tx.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE provider_reference = ?`, reference,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger entry %s: %w", reference, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	if entry.Type == models.EntryPayout {
		return entry, fmt.Errorf("ledger entry %s is a payout, not a charge", reference)
	}
	if entry.Status != models.StatusPending {
		return entry, fmt.Errorf("ledger entry %s is %s: %w", reference, entry.Status, storage.ErrNotPending)
	}

	now := s.now().Unix()
	if _, err := tx.ExecContext(ctx,
		"UPDATE ledger_entries SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(status), now, entry.ID, string(models.StatusPending),
	); err != nil {
		return nil, fmt.Errorf("failed to settle ledger entry: %w", err)
	}

	if err := settleMembership(ctx, tx, entry, status); err != nil {
		return nil, err
	}

	if status == models.StatusCompleted {
		res, err := tx.ExecContext(ctx,
			"UPDATE members SET wallet_balance = wallet_balance + ? WHERE id = ?",
			entry.Amount, entry.MemberID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to credit wallet: %w", err)
		}
		if err := rowsAffectedOne(res, fmt.Errorf("member %s: %w", entry.MemberID, storage.ErrNotFound)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	entry.Status = status
	entry.UpdatedAt = now
	return entry, nil
}

// settleMembership applies a charge settlement to the schedule and retry
// count of the membership the charge was made for.
func settleMembership(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry, status models.EntryStatus) error {
	meta := entry.Metadata.Contribution
	if entry.Type != models.EntryContribution || meta == nil || entry.MembershipID == "" {
		return nil
	}
	scheduled := meta.ChargeType == models.ChargeScheduled

	switch status {
	case models.StatusCompleted:
		if scheduled {
			if _, err := tx.ExecContext(ctx,
				"UPDATE memberships SET retry_count = 0 WHERE id = ?", entry.MembershipID,
			); err != nil {
				return fmt.Errorf("failed to clear retry count: %w", err)
			}
		}
		// Still on the paid debit date: acceptance was never recorded.
		if meta.PaysDebit() {
			if _, err := tx.ExecContext(ctx,
				"UPDATE memberships SET next_debit_date = ? WHERE id = ? AND next_debit_date = ?",
				meta.NextDebitDate, entry.MembershipID, meta.DebitDate,
			); err != nil {
				return fmt.Errorf("failed to advance debit date: %w", err)
			}
		}

	case models.StatusFailed:
		// Only an accepted charge moved the date. Rejected and unanswered
		// attempts were counted when they happened and match no row here.
		if meta.PaysDebit() {
			increment := 0
			if scheduled {
				increment = 1
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE memberships SET next_debit_date = ?, retry_count = MIN(retry_count + ?, ?)
				 WHERE id = ? AND next_debit_date = ?`,
				meta.DebitDate, increment, models.MaxRetries, entry.MembershipID, meta.NextDebitDate,
			); err != nil {
				return fmt.Errorf("failed to reschedule failed charge: %w", err)
			}
		}
	}
	return nil
}

// FailLedgerEntry records a synchronous gateway rejection on a pending entry.
func (s *SQLiteStore) FailLedgerEntry(ctx context.Context, entryID string, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := scanLedgerEntry(tx.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = ?`, entryID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ledger entry %s: %w", entryID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get ledger entry: %w", err)
	}
	if entry.Status != models.StatusPending {
		return fmt.Errorf("ledger entry %s is %s: %w", entryID, entry.Status, storage.ErrNotPending)
	}

	switch {
	case entry.Metadata.Contribution != nil:
		entry.Metadata.Contribution.GatewayError = reason
	case entry.Metadata.Payout != nil:
		entry.Metadata.Payout.GatewayError = reason
	}
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode ledger metadata: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE ledger_entries SET status = ?, metadata = ?, updated_at = ? WHERE id = ?",
		string(models.StatusFailed), string(meta), s.now().Unix(), entryID,
	); err != nil {
		return fmt.Errorf("failed to mark ledger entry failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// prepareEntry fills defaults, validates metadata and returns insert args in
// ledgerColumns order.
func (s *SQLiteStore) prepareEntry(entry *models.LedgerEntry) ([]interface{}, error) {
	if err := entry.Metadata.Validate(entry.Type); err != nil {
		return nil, fmt.Errorf("invalid ledger entry: %w", err)
	}
	if entry.ProviderReference == "" {
		return nil, fmt.Errorf("invalid ledger entry: provider reference required")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = models.StatusPending
	}
	now := s.now().Unix()
	if entry.CreatedAt == 0 {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = entry.CreatedAt
	entry.Cycle = entry.Metadata.Cycle()

	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger metadata: %w", err)
	}

	return []interface{}{
		entry.ID, entry.MemberID, nullString(entry.GroupID), nullString(entry.MembershipID),
		string(entry.Type), entry.Amount, string(entry.Status), entry.ProviderReference,
		nullInt(entry.Cycle), string(meta), entry.CreatedAt, entry.UpdatedAt,
	}, nil
}

func scanLedgerEntry(row rowScanner) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{}
	var groupID, membershipID sql.NullString
	var cycle sql.NullInt64
	var entryType, status, meta string

	err := row.Scan(&entry.ID, &entry.MemberID, &groupID, &membershipID, &entryType, &entry.Amount,
		&status, &entry.ProviderReference, &cycle, &meta, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}

	entry.GroupID = groupID.String
	entry.MembershipID = membershipID.String
	entry.Type = models.EntryType(entryType)
	entry.Status = models.EntryStatus(status)
	entry.Cycle = int(cycle.Int64)
	if err := json.Unmarshal([]byte(meta), &entry.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode ledger metadata: %w", err)
	}
	return entry, nil
}
