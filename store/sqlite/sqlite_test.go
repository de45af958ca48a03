package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(2025, month, day)
}

// seedLoan stores a product and a 12,000.00 monthly loan on it.
func seedLoan(t *testing.T, store *sqlite.Store, id generic.LoanID) sqlite.LoanRecord {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SavePricing(ctx, sqlite.PricingRecord{
		ID: "salary", Name: "Salary Loan", Mode: "fixed_rate",
		ConfigJSON: `{"id":"salary","interest":{"fixed_rate":"12"}}`,
	}))

	l := sqlite.LoanRecord{
		ID:            id,
		ProductID:     "salary",
		Borrower:      "M-0042",
		Principal:     generic.MustMoney("12000"),
		TermMonths:    12,
		Mode:          generic.ModeMonthly,
		AnnualRate:    generic.MustPercent("12"),
		ServiceCharge: generic.MustMoney("150"),
		StartDate:     date(time.January, 1),
	}
	require.NoError(t, store.CreateLoan(ctx, l))
	return l
}

func payment(id string, loanID generic.LoanID, at generic.TimePoint, amount, key string) generic.Payment {
	return generic.Payment{
		ID:             generic.PaymentID(id),
		LoanID:         loanID,
		Kind:           generic.PaymentRegular,
		PaidAt:         at,
		Amount:         generic.MustMoney(amount),
		IdempotencyKey: key,
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestStore_PaymentsReplayOrder(t *testing.T) {
	// GIVEN: Payments appended out of date order, two on the same day
	// WHEN: Loading the loan's payments
	// THEN: Ordered by date, same-day payments in arrival order

	store := newStore(t)
	ctx := context.Background()
	seedLoan(t, store, "loan-1")

	require.NoError(t, store.Append(ctx, payment("p3", "loan-1", date(time.March, 1), "300", "")))
	require.NoError(t, store.Append(ctx, payment("p1", "loan-1", date(time.February, 1), "100", "")))
	require.NoError(t, store.Append(ctx, payment("p2", "loan-1", date(time.February, 1), "200", "")))

	ps, err := store.Load(ctx, "loan-1")
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, generic.PaymentID("p1"), ps[0].ID)
	assert.Equal(t, generic.PaymentID("p2"), ps[1].ID)
	assert.Equal(t, generic.PaymentID("p3"), ps[2].ID)
	assert.Equal(t, "200.00", ps[1].Amount.String())
	assert.Equal(t, "2025-02-01", ps[1].PaidAt.String())

	ranged, err := store.LoadRange(ctx, "loan-1", date(time.February, 15), date(time.March, 1))
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, generic.PaymentID("p3"), ranged[0].ID)
}

func TestStore_DuplicateIdempotencyKey(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	seedLoan(t, store, "loan-1")

	require.NoError(t, store.Append(ctx, payment("p1", "loan-1", date(time.February, 1), "100", "receipt-9")))
	err := store.Append(ctx, payment("p2", "loan-1", date(time.February, 1), "100", "receipt-9"))
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	exists, err := store.Exists(ctx, "receipt-9")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, "receipt-10")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_PaymentForUnknownLoan(t *testing.T) {
	store := newStore(t)

	err := store.Append(context.Background(), payment("p1", "ghost", date(time.February, 1), "100", ""))
	assert.ErrorIs(t, err, generic.ErrLoanNotFound)
}

func TestStore_LedgerReversal(t *testing.T) {
	// GIVEN: A ledger over the SQLite store with one payment
	// WHEN: Reversing it, then reversing it again
	// THEN: The first reversal lands; the second is rejected; nothing is effective

	store := newStore(t)
	ctx := context.Background()
	seedLoan(t, store, "loan-1")
	ledger := generic.NewLedger(store)

	require.NoError(t, ledger.Append(ctx, payment("p1", "loan-1", date(time.February, 1), "1000", "")))
	rev := generic.Payment{LoanID: "loan-1", Kind: generic.PaymentReversal, PaidAt: date(time.February, 2), ReversesID: "p1"}
	require.NoError(t, ledger.Append(ctx, rev))

	err := ledger.Append(ctx, rev)
	assert.ErrorIs(t, err, generic.ErrAlreadyReversed)

	total, err := ledger.TotalPaid(ctx, "loan-1", date(time.December, 31))
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	got, err := store.GetPayment(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", got.Amount.String())

	_, err = store.GetPayment(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrPaymentNotFound)
}

func TestStore_WithTxRollback(t *testing.T) {
	// GIVEN: A transaction that appends a payment and then fails
	// WHEN: It returns the error
	// THEN: The payment is not persisted; reads inside saw it

	store := newStore(t)
	ctx := context.Background()
	seedLoan(t, store, "loan-1")
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx generic.Store) error {
		if err := tx.Append(ctx, payment("p1", "loan-1", date(time.February, 1), "100", "k1")); err != nil {
			return err
		}
		ps, err := tx.Load(ctx, "loan-1")
		if err != nil {
			return err
		}
		assert.Len(t, ps, 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ps, err := store.Load(ctx, "loan-1")
	require.NoError(t, err)
	assert.Empty(t, ps)

	err = store.WithTx(ctx, func(tx generic.Store) error {
		return generic.NewLedger(tx).Append(ctx, payment("p1", "loan-1", date(time.February, 1), "100", "k1"))
	})
	require.NoError(t, err)

	ps, err = store.Load(ctx, "loan-1")
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}

// =============================================================================
// PRICING
// =============================================================================

func TestStore_PricingVersioning(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rec := sqlite.PricingRecord{ID: "p", Name: "Promo", Mode: "none", ConfigJSON: `{"id":"p"}`}
	require.NoError(t, store.SavePricing(ctx, rec))
	rec.ConfigJSON = `{"id":"p","interest":{"fixed_rate":"3"}}`
	rec.Mode = "fixed_rate"
	require.NoError(t, store.SavePricing(ctx, rec))

	got, err := store.GetPricing(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "fixed_rate", got.Mode)
	assert.Equal(t, rec.ConfigJSON, got.ConfigJSON)

	all, err := store.ListPricing(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeletePricing(ctx, "p"))
	_, err = store.GetPricing(ctx, "p")
	assert.ErrorIs(t, err, generic.ErrPricingNotFound)
	assert.ErrorIs(t, store.DeletePricing(ctx, "p"), generic.ErrPricingNotFound)
}

func TestStore_PricingInUseCannotBeDeleted(t *testing.T) {
	store := newStore(t)
	seedLoan(t, store, "loan-1")

	err := store.DeletePricing(context.Background(), "salary")
	assert.ErrorIs(t, err, sqlite.ErrPricingInUse)
}

// =============================================================================
// LOANS AND WAIVERS
// =============================================================================

func TestStore_LoanRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	want := seedLoan(t, store, "loan-1")

	got, err := store.GetLoan(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, want.Borrower, got.Borrower)
	assert.True(t, want.Principal.Equal(got.Principal))
	assert.True(t, want.AnnualRate.Equal(got.AnnualRate))
	assert.True(t, want.ServiceCharge.Equal(got.ServiceCharge))
	assert.Equal(t, generic.ModeMonthly, got.Mode)
	assert.Equal(t, "2025-01-01", got.StartDate.String())
	assert.Equal(t, 1, got.Version)

	terms := got.Terms()
	assert.Equal(t, 12, terms.Term)

	assert.ErrorIs(t, store.CreateLoan(ctx, want), sqlite.ErrLoanExists)

	_, err = store.GetLoan(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrLoanNotFound)
}

func TestStore_LoanForUnknownProduct(t *testing.T) {
	store := newStore(t)

	err := store.CreateLoan(context.Background(), sqlite.LoanRecord{
		ID: "loan-1", ProductID: "missing", Borrower: "x",
		Principal: generic.MustMoney("1"), TermMonths: 1, Mode: generic.ModeMonthly,
		AnnualRate: generic.ZeroPercent(), ServiceCharge: generic.ZeroMoney(),
		StartDate: date(time.January, 1),
	})
	assert.ErrorIs(t, err, generic.ErrPricingNotFound)
}

func TestStore_RestructureDropsWaivers(t *testing.T) {
	// GIVEN: A loan with a waived installment
	// WHEN: Restructuring it to 24 weekly-paid months
	// THEN: Version bumps, terms change, waivers are gone

	store := newStore(t)
	ctx := context.Background()
	l := seedLoan(t, store, "loan-1")

	require.NoError(t, store.SaveWaiver(ctx, "loan-1", 3, "hardship"))
	require.NoError(t, store.SaveWaiver(ctx, "loan-1", 3, "hardship"))
	require.NoError(t, store.SaveWaiver(ctx, "loan-1", 1, ""))

	waived, err := store.Waivers(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, waived)

	l.TermMonths = 24
	l.Mode = generic.ModeWeekly
	require.NoError(t, store.RestructureLoan(ctx, l))

	got, err := store.GetLoan(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 24, got.TermMonths)
	assert.Equal(t, generic.ModeWeekly, got.Mode)

	waived, err = store.Waivers(ctx, "loan-1")
	require.NoError(t, err)
	assert.Empty(t, waived)

	l.ID = "ghost"
	assert.ErrorIs(t, store.RestructureLoan(ctx, l), generic.ErrLoanNotFound)
	assert.ErrorIs(t, store.SaveWaiver(ctx, "ghost", 1, ""), generic.ErrLoanNotFound)
}

func TestStore_Reset(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	seedLoan(t, store, "loan-1")
	require.NoError(t, store.Append(ctx, payment("p1", "loan-1", date(time.February, 1), "100", "")))

	require.NoError(t, store.Reset(ctx))

	loans, err := store.ListLoans(ctx)
	require.NoError(t, err)
	assert.Empty(t, loans)
	products, err := store.ListPricing(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}
