package factory_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lending-engine/factory"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/pricing"
)

const salaryLoan = `{
  "id": "salary-loan",
  "name": "Salary Loan",
  "interest": {
    "by_amount": [
      {"from": "50000", "to": "200000", "rate": "12"},
      {"from": "0",     "to": "50000",  "rate": "14"}
    ]
  },
  "charges": {
    "unit": "currency",
    "rows": [
      {"from": "0",     "to": "50000",  "cells": {"monthly": "150", "weekly": "40"}},
      {"from": "50000", "to": "200000", "cells": {"monthly": "300"}}
    ]
  }
}`

func TestParsePricing_ByAmountWithCharges(t *testing.T) {
	// GIVEN: A product tiered by amount with a charges matrix
	// WHEN: Parsing it
	// THEN: The boundary amount takes the upper tier; unset cells are zero

	f := factory.NewPricingFactory()
	p, err := f.ParsePricing(salaryLoan)
	require.NoError(t, err)

	assert.Equal(t, generic.ProductID("salary-loan"), p.ID)
	assert.Equal(t, pricing.ModeByAmount, p.Reference.Mode())

	rate, err := pricing.ResolveFor(p.Reference, pricing.Projection{Amount: decimal.NewFromInt(50000)})
	require.NoError(t, err)
	assert.Equal(t, "12.0000%", rate.String())

	require.NotNil(t, p.Charges)
	charge, err := p.Charges.Lookup(decimal.NewFromInt(1000), generic.ModeWeekly)
	require.NoError(t, err)
	assert.Equal(t, "40.00", charge.String())

	charge, err = p.Charges.Lookup(decimal.NewFromInt(60000), generic.ModeWeekly)
	require.NoError(t, err)
	assert.True(t, charge.IsZero())
}

func TestParsePricing_NoInterest(t *testing.T) {
	p, err := factory.NewPricingFactory().ParsePricing(`{"id": "free"}`)
	require.NoError(t, err)
	assert.Equal(t, pricing.ModeNone, p.Reference.Mode())
	assert.Nil(t, p.Charges)
	assert.Equal(t, "free", p.Name)
}

func TestParsePricing_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		json   string
		target error
	}{
		{
			name:   "two pricing modes",
			json:   `{"id": "x", "interest": {"fixed_rate": "5", "flat_charge": "10"}}`,
			target: pricing.ErrMutuallyExclusivePricing,
		},
		{
			name:   "overlapping tiers",
			json:   `{"id": "x", "interest": {"by_amount": [{"from": "0", "to": "100", "rate": "1"}, {"from": "50", "to": "150", "rate": "2"}]}}`,
			target: generic.ErrOverlap,
		},
		{
			name:   "inverted tier",
			json:   `{"id": "x", "interest": {"by_term_year": [{"from": 3, "to": 1, "rate": "1"}]}}`,
			target: generic.ErrInvalidRange,
		},
		{
			name:   "negative tier rate",
			json:   `{"id": "x", "interest": {"by_amount": [{"from": "0", "to": "100", "rate": "-1"}]}}`,
			target: pricing.ErrNegativeValue,
		},
		{
			name:   "unknown payment mode",
			json:   `{"id": "x", "charges": {"rows": [{"from": "0", "to": "100", "cells": {"fortnightly": "5"}}]}}`,
			target: generic.ErrUnknownPaymentMode,
		},
		{
			name:   "negative charge",
			json:   `{"id": "x", "charges": {"rows": [{"from": "0", "to": "100", "cells": {"monthly": "-5"}}]}}`,
			target: pricing.ErrNegativeValue,
		},
		{
			name:   "flat charge finer than a cent",
			json:   `{"id": "x", "interest": {"flat_charge": "10.505"}}`,
			target: pricing.ErrScale,
		},
		{
			name:   "currency charge finer than a cent",
			json:   `{"id": "x", "charges": {"rows": [{"from": "0", "to": "100", "cells": {"monthly": "5.001"}}]}}`,
			target: pricing.ErrScale,
		},
		{
			name:   "percent charge beyond four places",
			json:   `{"id": "x", "charges": {"unit": "percent", "rows": [{"from": "0", "to": "100", "cells": {"monthly": "1.23456"}}]}}`,
			target: pricing.ErrScale,
		},
		{
			name:   "same mode under two spellings",
			json:   `{"id": "x", "charges": {"rows": [{"from": "0", "to": "100", "cells": {"semi-monthly": "5", "semi_monthly": "7"}}]}}`,
			target: pricing.ErrDuplicateColumn,
		},
	}

	f := factory.NewPricingFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParsePricing(tt.json)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestParsePricing_ScaleBoundaries(t *testing.T) {
	// GIVEN: Values at exactly their unit scale, trailing zeros included
	// THEN: They are accepted

	f := factory.NewPricingFactory()

	p, err := f.ParsePricing(`{"id": "flat", "interest": {"flat_charge": "10.500"}}`)
	require.NoError(t, err)
	assert.Equal(t, "10.50", p.Reference.(pricing.FlatCharge).Charge.String())

	p, err = f.ParsePricing(`{"id": "pct", "charges": {"unit": "percent", "rows": [{"from": "0", "to": "100", "cells": {"monthly": "1.2345"}}]}}`)
	require.NoError(t, err)
	charge, err := p.Charges.Lookup(decimal.NewFromInt(50), generic.ModeMonthly)
	require.NoError(t, err)
	assert.Equal(t, "1.2345%", charge.String())
}

func TestParsePricing_DuplicateColumnNamesBoth(t *testing.T) {
	_, err := factory.NewPricingFactory().ParsePricing(
		`{"id": "x", "charges": {"rows": [{"from": "0", "to": "100", "cells": {"Monthly": "5", "monthly": "7"}}]}}`)

	var dupErr *pricing.DuplicateColumnError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, 0, dupErr.Row)
	assert.Equal(t, generic.ModeMonthly, dupErr.Mode)
	assert.Equal(t, []string{"Monthly", "monthly"}, dupErr.Names)
}

func TestParsePricing_MalformedInput(t *testing.T) {
	f := factory.NewPricingFactory()

	_, err := f.ParsePricing(`{not json`)
	assert.Error(t, err)

	_, err = f.ParsePricing(`{"name": "no id"}`)
	assert.Error(t, err)

	_, err = f.ParsePricing(`{"id": "x", "interest": {"by_date": [{"from": "2025-13-01", "to": "2026-01-01", "rate": "1"}]}}`)
	assert.Error(t, err)

	_, err = f.ParsePricing(`{"id": "x", "charges": {"unit": "bananas", "rows": [{"from": "0", "to": "1", "cells": {}}]}}`)
	assert.Error(t, err)
}

func TestToJSON_RoundTrip(t *testing.T) {
	// GIVEN: A parsed product
	// WHEN: Converting back to JSON and parsing again
	// THEN: The second product resolves and charges exactly like the first

	f := factory.NewPricingFactory()
	first, err := f.ParsePricing(salaryLoan)
	require.NoError(t, err)

	data, err := json.Marshal(f.ToJSON(first))
	require.NoError(t, err)

	second, err := f.ParsePricing(string(data))
	require.NoError(t, err)

	for _, amount := range []int64{0, 49999, 50000, 199999} {
		proj := pricing.Projection{Amount: decimal.NewFromInt(amount)}
		a, err := pricing.ResolveFor(first.Reference, proj)
		require.NoError(t, err)
		b, err := pricing.ResolveFor(second.Reference, proj)
		require.NoError(t, err)
		assert.True(t, a.Equal(b), "amount %d", amount)

		ca, err := first.Charges.LookupRow(proj.Amount)
		require.NoError(t, err)
		cb, err := second.Charges.LookupRow(proj.Amount)
		require.NoError(t, err)
		for m := range ca {
			assert.True(t, ca[m].Value.Equal(cb[m].Value))
		}
	}
}

func TestToJSON_DateAndYearTiers(t *testing.T) {
	f := factory.NewPricingFactory()

	byDate, err := f.ParsePricing(`{"id": "promo", "interest": {"by_date": [{"from": "2025-01-01", "to": "2025-07-01", "rate": "9.5"}]}}`)
	require.NoError(t, err)
	pj := f.ToJSON(byDate)
	require.Len(t, pj.Interest.ByDate, 1)
	assert.Equal(t, "2025-01-01", pj.Interest.ByDate[0].From)
	assert.Equal(t, "2025-07-01", pj.Interest.ByDate[0].To)

	byYear, err := f.ParsePricing(`{"id": "mortgage", "interest": {"by_term_year": [{"from": 1, "to": 3, "rate": "4"}, {"from": 3, "to": 31, "rate": "6"}]}}`)
	require.NoError(t, err)
	rate, err := pricing.ResolveFor(byYear.Reference, pricing.Projection{Year: 3})
	require.NoError(t, err)
	assert.Equal(t, "6.0000%", rate.String())
	assert.Len(t, f.ToJSON(byYear).Interest.ByTermYear, 2)

	fixed, err := f.ParsePricing(`{"id": "flat", "interest": {"fixed_rate": "7.25"}}`)
	require.NoError(t, err)
	assert.Equal(t, "7.25", f.ToJSON(fixed).Interest.FixedRate.String())
}
