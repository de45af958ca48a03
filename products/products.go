/*
Package products provides ready-made loan product definitions.

PURPOSE:
  Builds the pricing JSON for common loan products, the same JSON the admin
  UI posts to /api/pricing. Demo scenarios and tests use these instead of
  hand-writing tier tables.

AVAILABLE PRODUCTS:
  SalaryLoanJSON:     Rate by principal band, service charge by payment mode
  SeasonalPromoJSON:  Rate by booking date, one promo window per year
  TermLoanJSON:       Rate by term length in years
  FixedRateJSON:      One rate for every loan
  FlatChargeJSON:     No interest, one fixed charge at booking
  InterestFreeJSON:   No interest and no charges

CUSTOMIZATION:
  These are starting points. Real products usually need:
  - Bands matching the lender's credit policy
  - A charges row per principal band
  - Percent charges instead of currency ones

USAGE:
  jsonStr := products.SalaryLoanJSON("salary", "Salary Loan")
  product, err := factory.NewPricingFactory().ParsePricing(jsonStr)

SEE ALSO:
  - factory/pricing.go: JSON schema and validation
*/
package products

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/lending-engine/factory"
)

var d = decimal.RequireFromString

// =============================================================================
// TIERED PRODUCTS
// =============================================================================

// SalaryLoanJSON returns a product priced by principal band: 14% below
// 50,000, 12% up to 200,000 and 10% up to 1,000,000. A service charge
// depends on how often the borrower pays.
func SalaryLoanJSON(id, name string) string {
	return encode(factory.PricingJSON{
		ID:   id,
		Name: name,
		Interest: &factory.InterestJSON{
			ByAmount: []factory.AmountTierJSON{
				{From: d("0"), To: d("50000"), Rate: d("14")},
				{From: d("50000"), To: d("200000"), Rate: d("12")},
				{From: d("200000"), To: d("1000000"), Rate: d("10")},
			},
		},
		Charges: &factory.ChargesJSON{
			Unit: "currency",
			Rows: []factory.ChargeRowJSON{
				{From: d("0"), To: d("50000"), Cells: map[string]decimal.Decimal{
					"weekly": d("25"), "semi_monthly": d("50"), "monthly": d("100"),
				}},
				{From: d("50000"), To: d("1000000"), Cells: map[string]decimal.Decimal{
					"weekly": d("40"), "semi_monthly": d("80"), "monthly": d("150"),
					"quarterly": d("300"),
				}},
			},
		},
	})
}

// SeasonalPromoJSON returns a product with a promotional rate for loans
// booked in the first quarter of year and the regular rate after it.
func SeasonalPromoJSON(id, name string, year int, promoRate, regularRate string) string {
	return encode(factory.PricingJSON{
		ID:   id,
		Name: name,
		Interest: &factory.InterestJSON{
			ByDate: []factory.DateTierJSON{
				{From: fmt.Sprintf("%d-01-01", year), To: fmt.Sprintf("%d-04-01", year), Rate: d(promoRate)},
				{From: fmt.Sprintf("%d-04-01", year), To: fmt.Sprintf("%d-01-01", year+1), Rate: d(regularRate)},
			},
		},
	})
}

// TermLoanJSON returns a product priced by term: 8% for one year, 9.5%
// for two or three, 11% for four or five.
func TermLoanJSON(id, name string) string {
	return encode(factory.PricingJSON{
		ID:   id,
		Name: name,
		Interest: &factory.InterestJSON{
			ByTermYear: []factory.YearTierJSON{
				{From: 1, To: 2, Rate: d("8")},
				{From: 2, To: 4, Rate: d("9.5")},
				{From: 4, To: 6, Rate: d("11")},
			},
		},
	})
}

// =============================================================================
// FLAT PRODUCTS
// =============================================================================

func FixedRateJSON(id, name, annualRate string) string {
	rate := d(annualRate)
	return encode(factory.PricingJSON{
		ID:       id,
		Name:     name,
		Interest: &factory.InterestJSON{FixedRate: &rate},
	})
}

// FlatChargeJSON returns an interest-free product with a one-time charge.
func FlatChargeJSON(id, name, charge string) string {
	c := d(charge)
	return encode(factory.PricingJSON{
		ID:       id,
		Name:     name,
		Interest: &factory.InterestJSON{FlatCharge: &c},
	})
}

func InterestFreeJSON(id, name string) string {
	return encode(factory.PricingJSON{ID: id, Name: name})
}

func encode(pj factory.PricingJSON) string {
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
