/*
Package factory provides JSON to Go pricing conversion.

PURPOSE:
  Converts JSON loan product definitions into validated engine values: a
  pricing.RateReference and an optional pricing.ChargesMatrix. Credit
  committees change rates and charge tables without code changes; the
  admin UI posts JSON, it is stored as-is, and this factory turns it into
  tier tables when it is saved and whenever it is loaded.

JSON SCHEMA:
  {
    "id": "salary-loan",
    "name": "Salary Loan",
    "interest": {
      "by_amount": [
        {"from": "0",     "to": "50000",  "rate": "14"},
        {"from": "50000", "to": "200000", "rate": "12"}
      ]
    },
    "charges": {
      "unit": "currency",
      "rows": [
        {"from": "0", "to": "200000", "cells": {"monthly": "150", "weekly": "40"}}
      ]
    }
  }

  "interest" holds at most one of fixed_rate, flat_charge, by_amount,
  by_date, by_term_year. Leaving it empty means no interest.
  Charges cells are keyed by payment mode name; a mode left out is zero.

VALIDATION:
  Everything the engine validates is checked here, at save time:
  overlapping or inverted tiers, two pricing modes at once, unknown or
  repeated payment modes, negative values, charges finer than a cent. Errors are the engine's typed errors, wrapped.

USAGE:
  f := factory.NewPricingFactory()
  product, err := f.ParsePricing(jsonString)
  rate, err := pricing.ResolveFor(product.Reference, projection)

SEE ALSO:
  - pricing/reference.go: RateReference variants
  - pricing/charges.go: Charges matrix
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/pricing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PricingJSON is the JSON representation of a loan product's pricing.
type PricingJSON struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Interest *InterestJSON `json:"interest,omitempty"`
	Charges  *ChargesJSON  `json:"charges,omitempty"`
}

// InterestJSON carries the pricing modes. At most one may be set.
type InterestJSON struct {
	FixedRate  *decimal.Decimal `json:"fixed_rate,omitempty"`
	FlatCharge *decimal.Decimal `json:"flat_charge,omitempty"`
	ByAmount   []AmountTierJSON `json:"by_amount,omitempty"`
	ByDate     []DateTierJSON   `json:"by_date,omitempty"`
	ByTermYear []YearTierJSON   `json:"by_term_year,omitempty"`
}

type AmountTierJSON struct {
	From decimal.Decimal `json:"from"`
	To   decimal.Decimal `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// DateTierJSON bounds are YYYY-MM-DD.
type DateTierJSON struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

type YearTierJSON struct {
	From int             `json:"from"`
	To   int             `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

type ChargesJSON struct {
	Unit string          `json:"unit"` // currency (default) or percent
	Rows []ChargeRowJSON `json:"rows"`
}

type ChargeRowJSON struct {
	From  decimal.Decimal            `json:"from"`
	To    decimal.Decimal            `json:"to"`
	Cells map[string]decimal.Decimal `json:"cells"`
}

// =============================================================================
// PRODUCT - Parsed pricing
// =============================================================================

// Product is a validated pricing configuration.
type Product struct {
	ID        generic.ProductID
	Name      string
	Reference pricing.RateReference
	// Charges is nil when the product has no service charges.
	Charges *pricing.ChargesMatrix
}

// =============================================================================
// PRICING FACTORY
// =============================================================================

// PricingFactory converts JSON pricing to engine values.
type PricingFactory struct{}

func NewPricingFactory() *PricingFactory {
	return &PricingFactory{}
}

// ParsePricing parses a JSON string into a Product.
func (f *PricingFactory) ParsePricing(jsonStr string) (*Product, error) {
	var pj PricingJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse pricing JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON validates pj and builds the Product.
func (f *PricingFactory) FromJSON(pj PricingJSON) (*Product, error) {
	if pj.ID == "" {
		return nil, fmt.Errorf("pricing id is required")
	}
	if pj.Name == "" {
		pj.Name = pj.ID
	}

	cfg, err := parseInterest(pj.Interest)
	if err != nil {
		return nil, fmt.Errorf("pricing %s: interest: %w", pj.ID, err)
	}
	ref, err := pricing.NewReference(cfg)
	if err != nil {
		return nil, fmt.Errorf("pricing %s: %w", pj.ID, err)
	}

	product := &Product{
		ID:        generic.ProductID(pj.ID),
		Name:      pj.Name,
		Reference: ref,
	}

	if pj.Charges != nil && len(pj.Charges.Rows) > 0 {
		product.Charges, err = parseCharges(*pj.Charges)
		if err != nil {
			return nil, fmt.Errorf("pricing %s: %w", pj.ID, err)
		}
	}
	return product, nil
}

// ToJSON converts a Product back to its JSON form.
func (f *PricingFactory) ToJSON(p *Product) PricingJSON {
	pj := PricingJSON{ID: string(p.ID), Name: p.Name}

	switch r := p.Reference.(type) {
	case pricing.FixedRate:
		v := r.Rate.Value
		pj.Interest = &InterestJSON{FixedRate: &v}
	case pricing.FlatCharge:
		v := r.Charge.Value
		pj.Interest = &InterestJSON{FlatCharge: &v}
	case pricing.ByAmount:
		ij := &InterestJSON{}
		for _, t := range r.Table.Tiers() {
			ij.ByAmount = append(ij.ByAmount, AmountTierJSON{From: t.From, To: t.To, Rate: t.Value.Value})
		}
		pj.Interest = ij
	case pricing.ByDate:
		ij := &InterestJSON{}
		for _, t := range r.Table.Tiers() {
			ij.ByDate = append(ij.ByDate, DateTierJSON{From: t.From.String(), To: t.To.String(), Rate: t.Value.Value})
		}
		pj.Interest = ij
	case pricing.ByTermYear:
		ij := &InterestJSON{}
		for _, t := range r.Table.Tiers() {
			ij.ByTermYear = append(ij.ByTermYear, YearTierJSON{From: t.From, To: t.To, Rate: t.Value.Value})
		}
		pj.Interest = ij
	}

	if p.Charges != nil {
		cj := &ChargesJSON{Unit: string(p.Charges.Unit())}
		for _, row := range p.Charges.Rows() {
			cells := make(map[string]decimal.Decimal)
			for m, cell := range row.Cells {
				if !cell.IsZero() {
					cells[generic.PaymentMode(m).String()] = cell.Value
				}
			}
			cj.Rows = append(cj.Rows, ChargeRowJSON{From: row.From, To: row.To, Cells: cells})
		}
		pj.Charges = cj
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseInterest(ij *InterestJSON) (pricing.ReferenceConfig, error) {
	var cfg pricing.ReferenceConfig
	if ij == nil {
		return cfg, nil
	}
	if ij.FixedRate != nil {
		cfg.FixedRate = *ij.FixedRate
	}
	if ij.FlatCharge != nil {
		cfg.FlatCharge = *ij.FlatCharge
	}

	if len(ij.ByAmount) > 0 {
		entries := make([]generic.Interval[decimal.Decimal, generic.Amount], len(ij.ByAmount))
		for i, t := range ij.ByAmount {
			if err := checkRate("by_amount", i, t.Rate); err != nil {
				return cfg, err
			}
			entries[i] = generic.Interval[decimal.Decimal, generic.Amount]{From: t.From, To: t.To, Value: generic.Percent(t.Rate)}
		}
		table, err := generic.NewAmountTiers(entries)
		if err != nil {
			return cfg, err
		}
		cfg.AmountTiers = table
	}

	if len(ij.ByDate) > 0 {
		entries := make([]generic.Interval[generic.TimePoint, generic.Amount], len(ij.ByDate))
		for i, t := range ij.ByDate {
			if err := checkRate("by_date", i, t.Rate); err != nil {
				return cfg, err
			}
			from, err := generic.ParseDate(t.From)
			if err != nil {
				return cfg, fmt.Errorf("by_date tier %d: %w", i, err)
			}
			to, err := generic.ParseDate(t.To)
			if err != nil {
				return cfg, fmt.Errorf("by_date tier %d: %w", i, err)
			}
			entries[i] = generic.Interval[generic.TimePoint, generic.Amount]{From: from, To: to, Value: generic.Percent(t.Rate)}
		}
		table, err := generic.NewDateTiers(entries)
		if err != nil {
			return cfg, err
		}
		cfg.DateTiers = table
	}

	if len(ij.ByTermYear) > 0 {
		entries := make([]generic.Interval[int, generic.Amount], len(ij.ByTermYear))
		for i, t := range ij.ByTermYear {
			if err := checkRate("by_term_year", i, t.Rate); err != nil {
				return cfg, err
			}
			entries[i] = generic.Interval[int, generic.Amount]{From: t.From, To: t.To, Value: generic.Percent(t.Rate)}
		}
		table, err := generic.NewYearTiers(entries)
		if err != nil {
			return cfg, err
		}
		cfg.YearTiers = table
	}

	return cfg, nil
}

func checkRate(field string, i int, rate decimal.Decimal) error {
	if rate.IsNegative() {
		return &pricing.NegativeValueError{Field: fmt.Sprintf("%s tier %d rate", field, i), Value: rate.String()}
	}
	return nil
}

func parseUnit(s string) (generic.Unit, error) {
	switch s {
	case "", "currency":
		return generic.UnitCurrency, nil
	case "percent":
		return generic.UnitPercent, nil
	default:
		return "", fmt.Errorf("unknown charges unit %q (use currency or percent)", s)
	}
}

func parseCharges(cj ChargesJSON) (*pricing.ChargesMatrix, error) {
	unit, err := parseUnit(cj.Unit)
	if err != nil {
		return nil, err
	}

	rows := make([]pricing.ChargeRow, len(cj.Rows))
	for i, rj := range cj.Rows {
		cells := make([]generic.Amount, generic.PaymentModeCount)
		for m := range cells {
			cells[m] = generic.NewAmount(decimal.Zero, unit)
		}
		names := make([]string, 0, len(rj.Cells))
		for name := range rj.Cells {
			names = append(names, name)
		}
		sort.Strings(names)

		seen := make(map[generic.PaymentMode]string, len(names))
		for _, name := range names {
			mode, err := generic.ParsePaymentMode(name)
			if err != nil {
				return nil, fmt.Errorf("charges row %d: %w", i, err)
			}
			if prev, ok := seen[mode]; ok {
				return nil, &pricing.DuplicateColumnError{Row: i, Mode: mode, Names: []string{prev, name}}
			}
			seen[mode] = name
			cells[mode] = generic.NewAmount(rj.Cells[name], unit)
		}
		rows[i] = pricing.ChargeRow{From: rj.From, To: rj.To, Cells: cells}
	}
	return pricing.BuildChargesMatrix(unit, rows)
}
