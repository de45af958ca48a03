package generic

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// PAYMENT MODE - How often installments fall due
// =============================================================================

// PaymentMode is a closed enumeration. Its ordinal indexes the columns of a
// charges matrix row, so the order below is part of the stored format.
type PaymentMode int

const (
	ModeDaily PaymentMode = iota
	ModeWeekly
	ModeSemiMonthly
	ModeMonthly
	ModeQuarterly
	ModeSemiAnnual
	ModeLumpSum

	// PaymentModeCount is the number of modes, and the column count of every
	// charges matrix row.
	PaymentModeCount = int(ModeLumpSum) + 1
)

var paymentModeNames = [PaymentModeCount]string{
	ModeDaily:       "daily",
	ModeWeekly:      "weekly",
	ModeSemiMonthly: "semi_monthly",
	ModeMonthly:     "monthly",
	ModeQuarterly:   "quarterly",
	ModeSemiAnnual:  "semi_annual",
	ModeLumpSum:     "lump_sum",
}

// AllPaymentModes lists every mode in column order.
func AllPaymentModes() []PaymentMode {
	modes := make([]PaymentMode, PaymentModeCount)
	for i := range modes {
		modes[i] = PaymentMode(i)
	}
	return modes
}

func (m PaymentMode) Valid() bool {
	return m >= 0 && int(m) < PaymentModeCount
}

func (m PaymentMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("PaymentMode(%d)", int(m))
	}
	return paymentModeNames[m]
}

// PeriodsPerYear is the divisor applied to an annual rate to get the
// per-installment rate. Lump-sum has no fixed period and returns 0.
func (m PaymentMode) PeriodsPerYear() int {
	switch m {
	case ModeDaily:
		return 365
	case ModeWeekly:
		return 52
	case ModeSemiMonthly:
		return 24
	case ModeMonthly:
		return 12
	case ModeQuarterly:
		return 4
	case ModeSemiAnnual:
		return 2
	default:
		return 0
	}
}

// ParsePaymentMode accepts the canonical names ("monthly", "semi_monthly", ...),
// case-insensitive, with '-' or ' ' allowed in place of '_'.
func ParsePaymentMode(s string) (PaymentMode, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for i, name := range paymentModeNames {
		if name == norm {
			return PaymentMode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPaymentMode, s)
}

func (m PaymentMode) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPaymentMode, int(m))
	}
	return json.Marshal(m.String())
}

func (m *PaymentMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("payment mode must be a string: %w", err)
	}
	parsed, err := ParsePaymentMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
