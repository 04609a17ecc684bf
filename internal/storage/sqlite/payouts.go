package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

// ReservePayout inserts a pending payout entry in a single conditional
// statement. The insert only happens while the group is still on the entry's
// cycle, and idx_ledger_payout_cycle rejects a second live payout for the same
// (group, cycle). Failed payouts are outside that index and do not block.
func (s *SQLiteStore) ReservePayout(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.Type != models.EntryPayout {
		return fmt.Errorf("cannot reserve %s entry as payout", entry.Type)
	}
	if entry.GroupID == "" {
		return fmt.Errorf("invalid payout entry: group required")
	}
	entry.Status = models.StatusPending
	args, err := s.prepareEntry(entry)
	if err != nil {
		return err
	}
	if entry.Cycle < 1 {
		return fmt.Errorf("invalid payout entry: cycle required")
	}
	args = append(args, entry.GroupID, entry.Cycle)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (`+ledgerColumns+`)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM groups WHERE id = ? AND current_cycle = ?)`,
		args...,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("group %s cycle %d: %w", entry.GroupID, entry.Cycle, storage.ErrPayoutExists)
	}
	if err != nil {
		return fmt.Errorf("failed to reserve payout: %w", err)
	}
	return rowsAffectedOne(res, fmt.Errorf("group %s not on cycle %d: %w", entry.GroupID, entry.Cycle, storage.ErrCycleAdvanced))
}

// FinalizePayout records the gateway's acceptance of a transfer. The payout
// entry, the platform fee row and the cycle advance commit together.
func (s *SQLiteStore) FinalizePayout(ctx context.Context, fin storage.PayoutFinalization) error {
	if fin.Status != models.StatusPending && fin.Status != models.StatusCompleted {
		return fmt.Errorf("accepted payout cannot be %q", fin.Status)
	}
	if fin.Fee == nil {
		return fmt.Errorf("platform fee required")
	}
	if fin.Fee.FeeAmount+fin.Fee.NetAmount != fin.Fee.GrossAmount {
		return fmt.Errorf("fee %d + net %d != gross %d", fin.Fee.FeeAmount, fin.Fee.NetAmount, fin.Fee.GrossAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := scanLedgerEntry(tx.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = ?`, fin.EntryID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("payout entry %s: %w", fin.EntryID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get payout entry: %w", err)
	}
	if entry.Type != models.EntryPayout || entry.Metadata.Payout == nil {
		return fmt.Errorf("ledger entry %s is not a payout", fin.EntryID)
	}
	if entry.Status != models.StatusPending {
		return fmt.Errorf("payout entry %s is %s: %w", fin.EntryID, entry.Status, storage.ErrNotPending)
	}

	if fin.TransferCode != "" {
		entry.Metadata.Payout.TransferCode = fin.TransferCode
	}
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode ledger metadata: %w", err)
	}

	now := s.now().Unix()
	if _, err := tx.ExecContext(ctx,
		"UPDATE ledger_entries SET status = ?, metadata = ?, updated_at = ? WHERE id = ?",
		string(fin.Status), string(meta), now, entry.ID,
	); err != nil {
		return fmt.Errorf("failed to update payout entry: %w", err)
	}

	fee := fin.Fee
	if fee.ID == "" {
		fee.ID = uuid.New().String()
	}
	fee.GroupID = entry.GroupID
	fee.PayoutLedgerEntryID = entry.ID
	fee.Cycle = fin.FromCycle
	fee.CreatedAt = now
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO platform_fees (id, group_id, payout_ledger_entry_id, gross_amount, fee_amount, net_amount, fee_percentage, cycle, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fee.ID, fee.GroupID, fee.PayoutLedgerEntryID, fee.GrossAmount, fee.FeeAmount, fee.NetAmount,
		fee.FeePercentage, fee.Cycle, fee.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert platform fee: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE groups SET current_cycle = current_cycle + 1 WHERE id = ? AND current_cycle = ?",
		entry.GroupID, fin.FromCycle,
	)
	if err != nil {
		return fmt.Errorf("failed to advance cycle: %w", err)
	}
	if err := rowsAffectedOne(res, fmt.Errorf("group %s cycle %d: %w", entry.GroupID, fin.FromCycle, storage.ErrCycleAdvanced)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SettlePayout applies a transfer webhook to a pending payout entry.
func (s *SQLiteStore) SettlePayout(ctx context.Context, reference string, status models.EntryStatus) (*models.LedgerEntry, error) {
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
		return nil, fmt.Errorf("payout entry %s: %w", reference, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout entry: %w", err)
	}
	if entry.Type != models.EntryPayout {
		return entry, fmt.Errorf("ledger entry %s is not a payout", reference)
	}
	if entry.Status != models.StatusPending {
		return entry, fmt.Errorf("payout entry %s is %s: %w", reference, entry.Status, storage.ErrNotPending)
	}

	now := s.now().Unix()
	if _, err := tx.ExecContext(ctx,
		"UPDATE ledger_entries SET status = ?, updated_at = ? WHERE id = ?",
		string(status), now, entry.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to settle payout entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	entry.Status = status
	entry.UpdatedAt = now
	return entry, nil
}

// ListPlatformFees retrieves the fee rows of a group in cycle order.
func (s *SQLiteStore) ListPlatformFees(ctx context.Context, groupID string) ([]*models.PlatformFee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, payout_ledger_entry_id, gross_amount, fee_amount, net_amount, fee_percentage, cycle, created_at
		 FROM platform_fees WHERE group_id = ? ORDER BY cycle`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform fees: %w", err)
	}
	defer rows.Close()

	var fees []*models.PlatformFee
	for rows.Next() {
		fee := &models.PlatformFee{}
		if err := rows.Scan(&fee.ID, &fee.GroupID, &fee.PayoutLedgerEntryID, &fee.GrossAmount, &fee.FeeAmount,
			&fee.NetAmount, &fee.FeePercentage, &fee.Cycle, &fee.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan platform fee: %w", err)
		}
		fees = append(fees, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate platform fees: %w", err)
	}
	return fees, nil
}
