package payment

import (
	"errors"
	"fmt"
)

// ErrMissingChargeReference means a refund was attempted against a
// transaction that was never successfully charged.
var ErrMissingChargeReference = errors.New("transaction has no vendor charge id")

// UnsupportedCurrencyError is terminal for the order: the integration
// is restricted to a single currency.
type UnsupportedCurrencyError struct {
	Currency string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("unsupported currency %q: LINE Pay only accepts TWD", e.Currency)
}
