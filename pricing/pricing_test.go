package pricing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/pricing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amountTable(t *testing.T) *generic.TierTable[decimal.Decimal, generic.Amount] {
	t.Helper()
	table, err := generic.NewAmountTiers([]generic.Interval[decimal.Decimal, generic.Amount]{
		{From: dec("0"), To: dec("100"), Value: generic.MustPercent("1")},
		{From: dec("100"), To: dec("200"), Value: generic.MustPercent("2")},
	})
	require.NoError(t, err)
	return table
}

func yearTable(t *testing.T) *generic.TierTable[int, generic.Amount] {
	t.Helper()
	table, err := generic.NewYearTiers([]generic.Interval[int, generic.Amount]{
		{From: 1, To: 2, Value: generic.MustPercent("9")},
		{From: 2, To: 6, Value: generic.MustPercent("11")},
	})
	require.NoError(t, err)
	return table
}

func cells(values ...string) []generic.Amount {
	out := make([]generic.Amount, generic.PaymentModeCount)
	for i := range out {
		out[i] = generic.ZeroMoney()
	}
	for i, v := range values {
		out[i] = generic.MustMoney(v)
	}
	return out
}

// =============================================================================
// RATE REFERENCE CONSTRUCTION
// =============================================================================

func TestNewReference_FixedRateAndFlatChargeRejected(t *testing.T) {
	// GIVEN: A fixed rate of 5% and a flat charge of 10
	// WHEN: Building the reference
	// THEN: MutuallyExclusivePricingError naming both

	_, err := pricing.NewReference(pricing.ReferenceConfig{
		FixedRate:  dec("5"),
		FlatCharge: dec("10"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, pricing.ErrMutuallyExclusivePricing)
	var mx *pricing.MutuallyExclusivePricingError
	require.ErrorAs(t, err, &mx)
	assert.Equal(t, []string{pricing.ModeFixedRate, pricing.ModeFlatCharge}, mx.Populated)
	assert.True(t, pricing.IsConfigError(err))
}

func TestNewReference_TableWithFixedRateRejected(t *testing.T) {
	_, err := pricing.NewReference(pricing.ReferenceConfig{
		FixedRate:   dec("5"),
		AmountTiers: amountTable(t),
	})
	assert.ErrorIs(t, err, pricing.ErrMutuallyExclusivePricing)

	_, err = pricing.NewReference(pricing.ReferenceConfig{
		AmountTiers: amountTable(t),
		YearTiers:   yearTable(t),
	})
	assert.ErrorIs(t, err, pricing.ErrMutuallyExclusivePricing)
}

func TestNewReference_Variants(t *testing.T) {
	tests := []struct {
		name string
		cfg  pricing.ReferenceConfig
		want string
	}{
		{"nothing set", pricing.ReferenceConfig{}, pricing.ModeNone},
		{"zero fixed and zero charge", pricing.ReferenceConfig{FixedRate: dec("0"), FlatCharge: dec("0")}, pricing.ModeNone},
		{"fixed", pricing.ReferenceConfig{FixedRate: dec("12")}, pricing.ModeFixedRate},
		{"flat", pricing.ReferenceConfig{FlatCharge: dec("250")}, pricing.ModeFlatCharge},
		{"by amount", pricing.ReferenceConfig{AmountTiers: amountTable(t)}, pricing.ModeByAmount},
		{"by year", pricing.ReferenceConfig{YearTiers: yearTable(t)}, pricing.ModeByTermYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := pricing.NewReference(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref.Mode())
		})
	}
}

func TestNewReference_NegativeRejected(t *testing.T) {
	_, err := pricing.NewReference(pricing.ReferenceConfig{FixedRate: dec("-1")})
	assert.ErrorIs(t, err, pricing.ErrNegativeValue)
}

// =============================================================================
// RESOLVE
// =============================================================================

func TestResolve_KeylessVariants(t *testing.T) {
	rate, err := pricing.Resolve(pricing.NoInterest{}, nil)
	require.NoError(t, err)
	assert.True(t, rate.IsZero())
	assert.Equal(t, generic.UnitPercent, rate.Unit)

	rate, err = pricing.Resolve(pricing.FixedRate{Rate: generic.MustPercent("12")}, pricing.DateKey{})
	require.NoError(t, err)
	assert.Equal(t, "12.0000%", rate.String())

	charge, err := pricing.Resolve(pricing.FlatCharge{Charge: generic.MustMoney("150")}, pricing.AmountKey{Amount: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, "150.00", charge.String())
}

func TestResolve_ByAmountBoundary(t *testing.T) {
	// GIVEN: [0,100) -> 1%, [100,200) -> 2%
	// WHEN: Resolving amount 100
	// THEN: 2%

	ref := pricing.ByAmount{Table: amountTable(t)}

	rate, err := pricing.Resolve(ref, pricing.AmountKey{Amount: dec("100")})
	require.NoError(t, err)
	assert.Equal(t, "2.0000%", rate.String())

	_, err = pricing.Resolve(ref, pricing.AmountKey{Amount: dec("200")})
	assert.ErrorIs(t, err, generic.ErrNoMatchingTier)
}

func TestResolve_KeyTypeMismatch(t *testing.T) {
	ref := pricing.ByAmount{Table: amountTable(t)}

	_, err := pricing.Resolve(ref, pricing.DateKey{Date: generic.NewTimePoint(2025, time.January, 1)})

	var mismatch *pricing.KeyTypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, generic.KeyAmount, mismatch.Expected)
	assert.Equal(t, generic.KeyDate, mismatch.Got)

	_, err = pricing.Resolve(pricing.ByTermYear{Table: yearTable(t)}, nil)
	assert.ErrorIs(t, err, pricing.ErrKeyTypeMismatch)
}

func TestResolve_ByDate(t *testing.T) {
	table, err := generic.NewDateTiers([]generic.Interval[generic.TimePoint, generic.Amount]{
		{From: generic.NewTimePoint(2024, time.January, 1), To: generic.NewTimePoint(2025, time.January, 1), Value: generic.MustPercent("10")},
		{From: generic.NewTimePoint(2025, time.January, 1), To: generic.NewTimePoint(2030, time.January, 1), Value: generic.MustPercent("12")},
	})
	require.NoError(t, err)

	rate, err := pricing.Resolve(pricing.ByDate{Table: table}, pricing.DateKey{Date: generic.NewTimePoint(2025, time.January, 1)})
	require.NoError(t, err)
	assert.Equal(t, "12.0000%", rate.String())
}

func TestResolveFor_ProjectsLoan(t *testing.T) {
	p := pricing.Projection{Amount: dec("150"), Date: generic.NewTimePoint(2025, time.May, 1), Year: 3}

	rate, err := pricing.ResolveFor(pricing.ByAmount{Table: amountTable(t)}, p)
	require.NoError(t, err)
	assert.Equal(t, "2.0000%", rate.String())

	rate, err = pricing.ResolveFor(pricing.ByTermYear{Table: yearTable(t)}, p)
	require.NoError(t, err)
	assert.Equal(t, "11.0000%", rate.String())

	rate, err = pricing.ResolveFor(pricing.NoInterest{}, p)
	require.NoError(t, err)
	assert.True(t, rate.IsZero())
}

// =============================================================================
// CHARGES MATRIX
// =============================================================================

func TestChargesMatrix_Lookup(t *testing.T) {
	// GIVEN: Two rows with charges for daily and monthly only
	matrix, err := pricing.BuildChargesMatrix(generic.UnitCurrency, []pricing.ChargeRow{
		{From: dec("5000"), To: dec("10000"), Cells: cells("20", "0", "0", "80")},
		{From: dec("0"), To: dec("5000"), Cells: cells("10", "0", "0", "40")},
	})
	require.NoError(t, err)

	got, err := matrix.Lookup(dec("5000"), generic.ModeMonthly)
	require.NoError(t, err)
	assert.Equal(t, "80.00", got.String())

	got, err = matrix.Lookup(dec("4999.99"), generic.ModeDaily)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.String())

	// Unset cell is zero, not an error
	got, err = matrix.Lookup(dec("100"), generic.ModeLumpSum)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
	assert.Equal(t, generic.UnitCurrency, got.Unit)
}

func TestChargesMatrix_Errors(t *testing.T) {
	matrix, err := pricing.BuildChargesMatrix(generic.UnitCurrency, []pricing.ChargeRow{
		{From: dec("0"), To: dec("5000"), Cells: cells("10")},
	})
	require.NoError(t, err)

	_, err = matrix.Lookup(dec("5000"), generic.ModeMonthly)
	assert.ErrorIs(t, err, generic.ErrNoMatchingTier)

	_, err = matrix.Lookup(dec("10"), generic.PaymentMode(generic.PaymentModeCount))
	assert.ErrorIs(t, err, generic.ErrUnknownPaymentMode)
}

func TestBuildChargesMatrix_Validation(t *testing.T) {
	t.Run("short row", func(t *testing.T) {
		_, err := pricing.BuildChargesMatrix(generic.UnitCurrency, []pricing.ChargeRow{
			{From: dec("0"), To: dec("10"), Cells: []generic.Amount{generic.MustMoney("1")}},
		})
		var cc *pricing.ColumnCountError
		require.ErrorAs(t, err, &cc)
		assert.Equal(t, 1, cc.Got)
		assert.Equal(t, generic.PaymentModeCount, cc.Want)
	})

	t.Run("overlapping rows", func(t *testing.T) {
		_, err := pricing.BuildChargesMatrix(generic.UnitCurrency, []pricing.ChargeRow{
			{From: dec("0"), To: dec("100"), Cells: cells()},
			{From: dec("50"), To: dec("150"), Cells: cells()},
		})
		assert.ErrorIs(t, err, generic.ErrOverlap)
	})

	t.Run("negative cell", func(t *testing.T) {
		_, err := pricing.BuildChargesMatrix(generic.UnitCurrency, []pricing.ChargeRow{
			{From: dec("0"), To: dec("100"), Cells: cells("0", "-1")},
		})
		assert.ErrorIs(t, err, pricing.ErrNegativeValue)
		assert.Contains(t, err.Error(), "weekly")
	})
}

func TestChargesMatrix_RowsRoundTrip(t *testing.T) {
	matrix, err := pricing.BuildChargesMatrix(generic.UnitPercent, []pricing.ChargeRow{
		{From: dec("100"), To: dec("200"), Cells: cells("2")},
		{From: dec("0"), To: dec("100"), Cells: cells("1")},
	})
	require.NoError(t, err)

	rows := matrix.Rows()
	require.Len(t, rows, 2)
	assert.True(t, rows[0].From.Equal(dec("0")))
	assert.Equal(t, generic.UnitPercent, rows[0].Cells[0].Unit)
	assert.Equal(t, generic.UnitPercent, matrix.Unit())

	row, err := matrix.LookupRow(dec("150"))
	require.NoError(t, err)
	assert.Equal(t, "2.0000%", row[generic.ModeDaily].String())
}
