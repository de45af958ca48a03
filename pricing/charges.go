package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/lending-engine/generic"
)

// =============================================================================
// CHARGES MATRIX - Amount range x payment mode
// =============================================================================

// ChargeRow is one row of a charges matrix as supplied by configuration:
// an amount range and one cell per payment mode, in PaymentMode order.
type ChargeRow struct {
	From  decimal.Decimal
	To    decimal.Decimal
	Cells []generic.Amount
}

type chargeCells = [generic.PaymentModeCount]generic.Amount

// ChargesMatrix prices a service charge by principal amount and payment
// mode. Rows follow the tier table rules; every row has a cell for every
// mode, an unset cell being zero.
type ChargesMatrix struct {
	unit  generic.Unit
	table *generic.TierTable[decimal.Decimal, chargeCells]
}

// BuildChargesMatrix validates rows and returns the matrix. unit applies to
// every cell: UnitCurrency for flat charges, UnitPercent for charge rates.
func BuildChargesMatrix(unit generic.Unit, rows []ChargeRow) (*ChargesMatrix, error) {
	entries := make([]generic.Interval[decimal.Decimal, chargeCells], len(rows))
	for i, row := range rows {
		if len(row.Cells) != generic.PaymentModeCount {
			return nil, &ColumnCountError{Row: i, Got: len(row.Cells), Want: generic.PaymentModeCount}
		}
		var cells chargeCells
		for m, cell := range row.Cells {
			if cell.IsNegative() {
				return nil, &NegativeValueError{
					Field: fmt.Sprintf("row %d %s charge", i, generic.PaymentMode(m)),
					Value: cell.Value.String(),
				}
			}
			cells[m] = generic.NewAmount(cell.Value, unit)
			if !cells[m].InScale() {
				return nil, &ScaleError{
					Field: fmt.Sprintf("row %d %s charge", i, generic.PaymentMode(m)),
					Value: cell.Value.String(),
					Scale: unit.Scale(),
				}
			}
		}
		entries[i] = generic.Interval[decimal.Decimal, chargeCells]{From: row.From, To: row.To, Value: cells}
	}

	table, err := generic.NewAmountTiers(entries)
	if err != nil {
		return nil, fmt.Errorf("charges matrix: %w", err)
	}
	return &ChargesMatrix{unit: unit, table: table}, nil
}

// Lookup returns the charge for amount under mode.
func (m *ChargesMatrix) Lookup(amount decimal.Decimal, mode generic.PaymentMode) (generic.Amount, error) {
	if !mode.Valid() {
		return generic.Amount{}, fmt.Errorf("%w: %d", generic.ErrUnknownPaymentMode, int(mode))
	}
	cells, err := m.table.Lookup(amount)
	if err != nil {
		return generic.Amount{}, err
	}
	return cells[mode], nil
}

// LookupRow returns every mode's charge for amount.
func (m *ChargesMatrix) LookupRow(amount decimal.Decimal) ([generic.PaymentModeCount]generic.Amount, error) {
	return m.table.Lookup(amount)
}

func (m *ChargesMatrix) Unit() generic.Unit { return m.unit }

// Rows returns the matrix in ascending order, in the input format.
func (m *ChargesMatrix) Rows() []ChargeRow {
	tiers := m.table.Tiers()
	rows := make([]ChargeRow, len(tiers))
	for i, t := range tiers {
		cells := make([]generic.Amount, generic.PaymentModeCount)
		copy(cells, t.Value[:])
		rows[i] = ChargeRow{From: t.From, To: t.To, Cells: cells}
	}
	return rows
}
