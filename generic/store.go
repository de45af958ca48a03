/*
store.go - Persistence interface for payment events

PURPOSE:
  Defines the interface between the engine and the database for the
  payment log. The Store handles persistence while maintaining append-only
  semantics. Implementations exist for SQLite and for memory.

KEY INTERFACES:
  Store:   Core payment persistence (append, load, exists)
  TxStore: Transactional operations (atomic multi-table writes)

APPEND-ONLY CONTRACT:
  - Append(): Single event write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every write may include an idempotency key. If the key already exists,
  the write is rejected. This prevents duplicate payments from network
  retries or a cashier double-clicking.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for payment persistence (append-only)
// =============================================================================

// Store handles persistence of payment events.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete.
type Store interface {
	// Append persists an event. Returns ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, p Payment) error

	// Load returns all events for a loan, ordered by PaidAt then insertion.
	Load(ctx context.Context, loanID LoanID) ([]Payment, error)

	// LoadRange returns events with PaidAt in [from, to].
	LoadRange(ctx context.Context, loanID LoanID, from, to TimePoint) ([]Payment, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
// If fn returns error, the transaction is rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
