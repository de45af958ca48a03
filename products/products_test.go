package products_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lending-engine/factory"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/pricing"
	"github.com/warp/lending-engine/products"
)

func parse(t *testing.T, jsonStr string) *factory.Product {
	t.Helper()
	p, err := factory.NewPricingFactory().ParsePricing(jsonStr)
	require.NoError(t, err)
	return p
}

func resolve(t *testing.T, p *factory.Product, proj pricing.Projection) string {
	t.Helper()
	v, err := pricing.ResolveFor(p.Reference, proj)
	require.NoError(t, err)
	return v.String()
}

func TestSalaryLoan(t *testing.T) {
	// GIVEN: The salary loan product
	// WHEN: Resolving principals on each side of the 50,000 boundary
	// THEN: The boundary belongs to the upper band; charges follow the mode

	p := parse(t, products.SalaryLoanJSON("salary", "Salary Loan"))
	assert.Equal(t, pricing.ModeByAmount, p.Reference.Mode())

	assert.Equal(t, "14.0000%", resolve(t, p, pricing.Projection{Amount: decimal.RequireFromString("49999.99")}))
	assert.Equal(t, "12.0000%", resolve(t, p, pricing.Projection{Amount: decimal.RequireFromString("50000")}))
	assert.Equal(t, "10.0000%", resolve(t, p, pricing.Projection{Amount: decimal.RequireFromString("500000")}))

	require.NotNil(t, p.Charges)
	charge, err := p.Charges.Lookup(decimal.RequireFromString("12000"), generic.ModeMonthly)
	require.NoError(t, err)
	assert.Equal(t, "100.00", charge.String())

	charge, err = p.Charges.Lookup(decimal.RequireFromString("120000"), generic.ModeDaily)
	require.NoError(t, err)
	assert.True(t, charge.IsZero())

	_, err = pricing.ResolveFor(p.Reference, pricing.Projection{Amount: decimal.RequireFromString("1000000")})
	assert.ErrorIs(t, err, generic.ErrNoMatchingTier)
}

func TestSeasonalPromo(t *testing.T) {
	p := parse(t, products.SeasonalPromoJSON("promo", "Q1 Promo", 2025, "6", "9"))

	assert.Equal(t, "6.0000%", resolve(t, p, pricing.Projection{Date: generic.NewTimePoint(2025, time.March, 31)}))
	assert.Equal(t, "9.0000%", resolve(t, p, pricing.Projection{Date: generic.NewTimePoint(2025, time.April, 1)}))

	_, err := pricing.ResolveFor(p.Reference, pricing.Projection{Date: generic.NewTimePoint(2026, time.January, 1)})
	assert.ErrorIs(t, err, generic.ErrNoMatchingTier)
}

func TestTermLoan(t *testing.T) {
	p := parse(t, products.TermLoanJSON("term", "Term Loan"))

	assert.Equal(t, "8.0000%", resolve(t, p, pricing.Projection{Year: 1}))
	assert.Equal(t, "9.5000%", resolve(t, p, pricing.Projection{Year: 3}))
	assert.Equal(t, "11.0000%", resolve(t, p, pricing.Projection{Year: 5}))
}

func TestFlatProducts(t *testing.T) {
	fixed := parse(t, products.FixedRateJSON("fixed", "Fixed", "7.5"))
	assert.Equal(t, "7.5000%", resolve(t, fixed, pricing.Projection{}))

	flat := parse(t, products.FlatChargeJSON("flat", "Flat", "250"))
	assert.Equal(t, pricing.ModeFlatCharge, flat.Reference.Mode())
	assert.Equal(t, "250.00", resolve(t, flat, pricing.Projection{}))

	free := parse(t, products.InterestFreeJSON("free", "Interest Free"))
	assert.Equal(t, pricing.ModeNone, free.Reference.Mode())
	assert.Nil(t, free.Charges)
	assert.Equal(t, "Interest Free", free.Name)
}
