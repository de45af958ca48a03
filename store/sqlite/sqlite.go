/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the payment ledger store (generic.Store, generic.TxStore) and
  the record stores the service shell needs: pricing configurations, loans
  and installment waivers. In production the same patterns apply to
  PostgreSQL, with minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.Store:   Payment event persistence
  generic.TxStore: Atomic multi-statement writes

APPEND-ONLY ENFORCEMENT:
  The payments table is append-only:
  - No UPDATE statements on payments
  - No DELETE statements on payments (except Reset, for demos)
  - Corrections via reversal events only

KEY TABLES:
  pricing_configs:     Product pricing JSON (versioned)
  loans:               Loan terms; the schedule is regenerated from these
  payments:            Immutable ledger of money received
  installment_waivers: Installments that are not owed

  Schedules are never stored. They are a pure function of the loan terms
  and are regenerated on every read, then payments are replayed over them.

INDEXES:
  - idx_payments_loan_date: Replay order (hot path)
  - idx_payments_idempotency: Duplicate rejection
  - idx_payments_reverses: One reversal per payment

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/lending.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/ledger.go: Higher-level ledger using Store
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/lending-engine/amortization"
	"github.com/warp/lending-engine/generic"
)

var (
	// ErrPricingInUse is returned when deleting a pricing configuration that
	// loans still reference.
	ErrPricingInUse = errors.New("pricing configuration in use")

	ErrLoanExists = errors.New("loan already exists")
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Pricing configurations (JSON as posted, validated by the factory)
	CREATE TABLE IF NOT EXISTS pricing_configs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		mode TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Loans (terms only; schedules are regenerated)
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES pricing_configs(id),
		borrower TEXT NOT NULL,
		principal TEXT NOT NULL,
		term_months INTEGER NOT NULL,
		payment_mode TEXT NOT NULL,
		annual_rate TEXT NOT NULL,
		service_charge TEXT NOT NULL DEFAULT '0',
		start_date TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loans_product
		ON loans(product_id);

	-- Payments (append-only ledger)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL REFERENCES loans(id),
		kind TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		amount TEXT NOT NULL,
		reverses_id TEXT,
		reference TEXT,
		idempotency_key TEXT UNIQUE,
		seq INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Replay order (hot path)
	CREATE INDEX IF NOT EXISTS idx_payments_loan_date
		ON payments(loan_id, paid_at, seq);
	CREATE INDEX IF NOT EXISTS idx_payments_idempotency
		ON payments(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- A payment can be reversed once
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_reverses
		ON payments(reverses_id) WHERE reverses_id IS NOT NULL;

	-- Waived installments
	CREATE TABLE IF NOT EXISTS installment_waivers (
		loan_id TEXT NOT NULL REFERENCES loans(id),
		sequence INTEGER NOT NULL,
		reason TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (loan_id, sequence)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer and querier are satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type dbtx interface {
	execer
	querier
}

// =============================================================================
// PAYMENT STORE (generic.Store interface)
// =============================================================================

// Append adds a payment event to the ledger.
func (s *Store) Append(ctx context.Context, p generic.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendPayment(ctx, s.db, p)
}

func appendPayment(ctx context.Context, db dbtx, p generic.Payment) error {
	query := `
		INSERT INTO payments
		(id, loan_id, kind, paid_at, amount, reverses_id, reference, idempotency_key, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM payments), ?)
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, query,
		p.ID,
		p.LoanID,
		p.Kind,
		p.PaidAt.String(),
		p.Amount.Value.String(),
		nullString(string(p.ReversesID)),
		nullString(p.Reference),
		nullString(p.IdempotencyKey),
		createdAt.Format(time.RFC3339Nano),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "reverses_id") {
				return fmt.Errorf("%w: %s", generic.ErrAlreadyReversed, p.ReversesID)
			}
			return generic.ErrDuplicateIdempotencyKey
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %s", generic.ErrLoanNotFound, p.LoanID)
		}
		return fmt.Errorf("%w: %v", generic.ErrTransactionFailed, err)
	}

	return nil
}

const paymentColumns = `id, loan_id, kind, paid_at, amount, reverses_id, reference, idempotency_key, created_at`

// Load returns all events for a loan in replay order.
func (s *Store) Load(ctx context.Context, loanID generic.LoanID) ([]generic.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadPayments(ctx, s.db, loanID)
}

func loadPayments(ctx context.Context, db querier, loanID generic.LoanID) ([]generic.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE loan_id = ?
		ORDER BY paid_at ASC, seq ASC
	`
	return queryPayments(ctx, db, query, loanID)
}

// LoadRange returns events with PaidAt in [from, to].
func (s *Store) LoadRange(ctx context.Context, loanID generic.LoanID, from, to generic.TimePoint) ([]generic.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadPaymentRange(ctx, s.db, loanID, from, to)
}

func loadPaymentRange(ctx context.Context, db querier, loanID generic.LoanID, from, to generic.TimePoint) ([]generic.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE loan_id = ? AND paid_at >= ? AND paid_at <= ?
		ORDER BY paid_at ASC, seq ASC
	`
	return queryPayments(ctx, db, query, loanID, from.String(), to.String())
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return keyExists(ctx, s.db, idempotencyKey)
}

func keyExists(ctx context.Context, db querier, idempotencyKey string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// GetPayment returns a single event.
func (s *Store) GetPayment(ctx context.Context, id generic.PaymentID) (*generic.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps, err := queryPayments(ctx, s.db, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("%w: %s", generic.ErrPaymentNotFound, id)
	}
	return &ps[0], nil
}

func queryPayments(ctx context.Context, db querier, query string, args ...any) ([]generic.Payment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []generic.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

func scanPayment(rows *sql.Rows) (generic.Payment, error) {
	var (
		p              generic.Payment
		paidAt         string
		amount         string
		reversesID     sql.NullString
		reference      sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&p.ID, &p.LoanID, &p.Kind, &paidAt, &amount,
		&reversesID, &reference, &idempotencyKey, &createdAt,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan payment: %w", err)
	}

	if p.PaidAt, err = generic.ParseDate(paidAt); err != nil {
		return p, fmt.Errorf("payment %s: %w", p.ID, err)
	}
	if p.Amount, err = parseMoney(amount); err != nil {
		return p, fmt.Errorf("payment %s: %w", p.ID, err)
	}
	p.ReversesID = generic.PaymentID(reversesID.String)
	p.Reference = reference.String
	p.IdempotencyKey = idempotencyKey.String
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	return p, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. Reads inside
// fn see the transaction's own writes.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, p generic.Payment) error {
	return appendPayment(ctx, ts.tx, p)
}

func (ts *txStore) Load(ctx context.Context, loanID generic.LoanID) ([]generic.Payment, error) {
	return loadPayments(ctx, ts.tx, loanID)
}

func (ts *txStore) LoadRange(ctx context.Context, loanID generic.LoanID, from, to generic.TimePoint) ([]generic.Payment, error) {
	return loadPaymentRange(ctx, ts.tx, loanID, from, to)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return keyExists(ctx, ts.tx, idempotencyKey)
}

// =============================================================================
// PRICING STORE
// =============================================================================

// PricingRecord is a stored pricing configuration with its JSON.
type PricingRecord struct {
	ID         string
	Name       string
	Mode       string // pricing.RateReference Mode(), for listing
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SavePricing inserts a configuration or replaces it wholesale, bumping
// its version.
func (s *Store) SavePricing(ctx context.Context, p PricingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO pricing_configs (id, name, mode, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mode = excluded.mode,
			config_json = excluded.config_json,
			version = pricing_configs.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.Mode, p.ConfigJSON, now, now)
	return err
}

// GetPricing retrieves a configuration by ID.
func (s *Store) GetPricing(ctx context.Context, id string) (*PricingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p PricingRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, mode, config_json, version, created_at, updated_at FROM pricing_configs WHERE id = ?",
		id,
	).Scan(&p.ID, &p.Name, &p.Mode, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", generic.ErrPricingNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// ListPricing returns all configurations.
func (s *Store) ListPricing(ctx context.Context) ([]PricingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, mode, config_json, version, created_at, updated_at FROM pricing_configs ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PricingRecord
	for rows.Next() {
		var p PricingRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Mode, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		records = append(records, p)
	}
	return records, rows.Err()
}

// DeletePricing removes a configuration no loan references.
func (s *Store) DeletePricing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inUse int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM loans WHERE product_id = ?", id).Scan(&inUse); err != nil {
		return err
	}
	if inUse > 0 {
		return fmt.Errorf("%w: %s has %d loans", ErrPricingInUse, id, inUse)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM pricing_configs WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrPricingNotFound, id)
	}
	return nil
}

// =============================================================================
// LOAN STORE
// =============================================================================

// LoanRecord is a loan's terms as booked. The rate was resolved from the
// product when the loan was booked or last restructured, so a later
// change to the product does not reprice existing loans.
type LoanRecord struct {
	ID            generic.LoanID
	ProductID     string
	Borrower      string
	Principal     generic.Amount
	TermMonths    int
	Mode          generic.PaymentMode
	AnnualRate    generic.Amount
	ServiceCharge generic.Amount
	StartDate     generic.TimePoint
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terms returns the generator input for the loan.
func (l LoanRecord) Terms() amortization.Terms {
	return amortization.Terms{
		Principal: l.Principal,
		Term:      l.TermMonths,
		Mode:      l.Mode,
		Rate:      l.AnnualRate,
		StartDate: l.StartDate,
	}
}

// CreateLoan books a new loan.
func (s *Store) CreateLoan(ctx context.Context, l LoanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO loans (id, product_id, borrower, principal, term_months, payment_mode,
			annual_rate, service_charge, start_date, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.ProductID, l.Borrower,
		l.Principal.Value.String(), l.TermMonths, l.Mode.String(),
		l.AnnualRate.Value.String(), l.ServiceCharge.Value.String(),
		l.StartDate.String(), now, now,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %s", generic.ErrPricingNotFound, l.ProductID)
		}
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrLoanExists, l.ID)
		}
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// RestructureLoan replaces a loan's terms, bumps its version and drops its
// waivers: the schedule they referred to no longer exists. Payments stay
// and are replayed over the new schedule.
func (s *Store) RestructureLoan(ctx context.Context, l LoanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE loans SET
			principal = ?, term_months = ?, payment_mode = ?, annual_rate = ?,
			service_charge = ?, start_date = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?
	`
	res, err := tx.ExecContext(ctx, query,
		l.Principal.Value.String(), l.TermMonths, l.Mode.String(), l.AnnualRate.Value.String(),
		l.ServiceCharge.Value.String(), l.StartDate.String(),
		time.Now().UTC().Format(time.RFC3339), l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to restructure loan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrLoanNotFound, l.ID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM installment_waivers WHERE loan_id = ?", l.ID); err != nil {
		return fmt.Errorf("failed to clear waivers: %w", err)
	}

	return tx.Commit()
}

const loanColumns = `id, product_id, borrower, principal, term_months, payment_mode,
	annual_rate, service_charge, start_date, version, created_at, updated_at`

// GetLoan retrieves a loan by ID.
func (s *Store) GetLoan(ctx context.Context, id generic.LoanID) (*LoanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loans, err := s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, fmt.Errorf("%w: %s", generic.ErrLoanNotFound, id)
	}
	return &loans[0], nil
}

// ListLoans returns every loan, oldest first.
func (s *Store) ListLoans(ctx context.Context) ([]LoanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at ASC, id ASC`)
}

func (s *Store) queryLoans(ctx context.Context, query string, args ...any) ([]LoanRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []LoanRecord
	for rows.Next() {
		var (
			l                                         LoanRecord
			principal, mode, rate, charge, startDate string
			createdAt, updatedAt                      string
		)
		if err := rows.Scan(
			&l.ID, &l.ProductID, &l.Borrower, &principal, &l.TermMonths, &mode,
			&rate, &charge, &startDate, &l.Version, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}

		if l.Principal, err = parseMoney(principal); err != nil {
			return nil, fmt.Errorf("loan %s: %w", l.ID, err)
		}
		if l.ServiceCharge, err = parseMoney(charge); err != nil {
			return nil, fmt.Errorf("loan %s: %w", l.ID, err)
		}
		if l.AnnualRate, err = generic.ParseAmount(rate, generic.UnitPercent); err != nil {
			return nil, fmt.Errorf("loan %s: %w", l.ID, err)
		}
		if l.Mode, err = generic.ParsePaymentMode(mode); err != nil {
			return nil, fmt.Errorf("loan %s: %w", l.ID, err)
		}
		if l.StartDate, err = generic.ParseDate(startDate); err != nil {
			return nil, fmt.Errorf("loan %s: %w", l.ID, err)
		}
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		l.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// =============================================================================
// WAIVER STORE
// =============================================================================

// SaveWaiver records that an installment is not owed. Saving the same
// waiver twice is a no-op.
func (s *Store) SaveWaiver(ctx context.Context, loanID generic.LoanID, sequence int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO installment_waivers (loan_id, sequence, reason, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(loan_id, sequence) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, loanID, sequence, nullString(reason), time.Now().UTC().Format(time.RFC3339))
	if err != nil && isForeignKeyError(err) {
		return fmt.Errorf("%w: %s", generic.ErrLoanNotFound, loanID)
	}
	return err
}

// Waivers returns a loan's waived installment sequences in ascending order.
func (s *Store) Waivers(ctx context.Context, loanID generic.LoanID) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT sequence FROM installment_waivers WHERE loan_id = ? ORDER BY sequence",
		loanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seqs []int
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Children first: foreign keys are on.
	tables := []string{"installment_waivers", "payments", "loans", "pricing_configs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseMoney(s string) (generic.Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return generic.Money(d), nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
