// Package models defines the core domain models for the Ajo cycle engine.
//
// # Models
//
//   - Group: a rotating savings pool with a fixed contribution amount and schedule
//   - Membership: one member's seat in a group, with its debit schedule and retry state
//   - Member: the member profile (email for charges, transfer recipient for payouts, wallet)
//   - PaymentInstrument: a tokenized card (gateway authorization code)
//   - LedgerEntry: an append-only record of one money movement
//   - PlatformFee: the fee taken from one successful payout
//
// # Money
//
// All amounts are int64 minor currency units (kobo). Percentages are
// decimal.Decimal so that fractional fees such as 6.25% stay exact.
//
// # Relationships
//
// Models reference each other by ID strings, never by pointer.
package models
