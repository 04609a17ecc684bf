package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: groups and members must be created BEFORE memberships due to foreign key constraints.
const schema = `
CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    creator_id TEXT NOT NULL,
    contribution_amount INTEGER NOT NULL CHECK (contribution_amount > 0),
    cycle_type TEXT NOT NULL,
    current_cycle INTEGER NOT NULL DEFAULT 1 CHECK (current_cycle >= 1),
    max_members INTEGER NOT NULL,
    status TEXT NOT NULL,
    fee_percentage TEXT NOT NULL DEFAULT '0',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_withdrawal_order (
    group_id TEXT NOT NULL,
    slot INTEGER NOT NULL,
    member_id TEXT NOT NULL,
    PRIMARY KEY (group_id, slot),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS members (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    recipient_code TEXT,
    wallet_balance INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS memberships (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    next_debit_date INTEGER,
    retry_count INTEGER NOT NULL DEFAULT 0 CHECK (retry_count BETWEEN 0 AND 3),
    instrument_id TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE,
    FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payment_instruments (
    id TEXT PRIMARY KEY,
    member_id TEXT NOT NULL,
    membership_id TEXT,
    authorization_code TEXT NOT NULL,
    brand TEXT NOT NULL DEFAULT '',
    last4 TEXT NOT NULL DEFAULT '',
    is_default INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    id TEXT PRIMARY KEY,
    member_id TEXT NOT NULL,
    group_id TEXT,
    membership_id TEXT,
    type TEXT NOT NULL,
    amount INTEGER NOT NULL,
    status TEXT NOT NULL,
    provider_reference TEXT NOT NULL UNIQUE,
    cycle INTEGER,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS platform_fees (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    payout_ledger_entry_id TEXT NOT NULL UNIQUE,
    gross_amount INTEGER NOT NULL,
    fee_amount INTEGER NOT NULL,
    net_amount INTEGER NOT NULL,
    fee_percentage TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (group_id, cycle),
    CHECK (fee_amount + net_amount = gross_amount),
    FOREIGN KEY (payout_ledger_entry_id) REFERENCES ledger_entries(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_active_position
    ON memberships(group_id, position) WHERE is_active = 1;
CREATE INDEX IF NOT EXISTS idx_memberships_due ON memberships(next_debit_date) WHERE is_active = 1;
CREATE INDEX IF NOT EXISTS idx_memberships_group_id ON memberships(group_id);
CREATE INDEX IF NOT EXISTS idx_instruments_member_id ON payment_instruments(member_id);
CREATE INDEX IF NOT EXISTS idx_instruments_membership_id ON payment_instruments(membership_id);
CREATE INDEX IF NOT EXISTS idx_ledger_group_type_cycle ON ledger_entries(group_id, type, cycle);

-- At most one live payout per (group, cycle). Failed attempts drop out of the
-- index so the cycle can be retried.
CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_payout_cycle
    ON ledger_entries(group_id, cycle) WHERE type = 'payout' AND status <> 'failed';
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
