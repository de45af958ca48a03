package amortization

import (
	"errors"
	"fmt"

	"github.com/warp/lending-engine/generic"
)

var (
	ErrInvalidPrincipal = errors.New("invalid principal")
	ErrInvalidTerm      = errors.New("invalid term")
	ErrInvalidRate      = errors.New("invalid rate")
)

type InvalidPrincipalError struct {
	Principal generic.Amount
}

func (e *InvalidPrincipalError) Error() string {
	return fmt.Sprintf("principal must be a positive currency amount in whole cents, got %s (%s)", e.Principal.Value, e.Principal.Unit)
}

func (e *InvalidPrincipalError) Unwrap() error { return ErrInvalidPrincipal }

// InvalidTermError is returned when the term yields no installments for the
// mode, e.g. a 2 month quarterly loan, or exceeds Max months.
type InvalidTermError struct {
	Term         int
	Mode         generic.PaymentMode
	Installments int
	// Max is set when the term is over MaxTermMonths.
	Max int
}

func (e *InvalidTermError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("term of %d months exceeds the maximum of %d", e.Term, e.Max)
	}
	return fmt.Sprintf("term of %d months gives %d %s installments", e.Term, e.Installments, e.Mode)
}

func (e *InvalidTermError) Unwrap() error { return ErrInvalidTerm }

type InvalidRateError struct {
	Rate   generic.Amount
	Reason string
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("invalid rate %s: %s", e.Rate.Value, e.Reason)
}

func (e *InvalidRateError) Unwrap() error { return ErrInvalidRate }

// IsInputError reports whether err rejects the generator's input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidPrincipal) ||
		errors.Is(err, ErrInvalidTerm) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, generic.ErrUnknownPaymentMode)
}
