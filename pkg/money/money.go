// Package money provides the amount-with-currency value type used by orders,
// purchase items, and fee adjustments. Amounts are stored in minor units
// (cents, pence) so arithmetic stays integral.
package money

import (
	"fmt"
	"math"
)

// DefaultCurrency is used when no currency can be detected from context.
const DefaultCurrency = "GBP"

// ErrCurrencyMismatch is returned when combining amounts of different currencies.
type ErrCurrencyMismatch struct {
	Left, Right string
}

func (e ErrCurrencyMismatch) Error() string {
	return fmt.Sprintf("currency mismatch: %s vs %s", e.Left, e.Right)
}

// Money is an immutable amount in minor units of a single currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New constructs an amount from minor units and a currency code.
func New(amount int64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: amount, Currency: currency}
}

// Zero returns the zero value for a currency.
func Zero(currency string) Money {
	return New(0, currency)
}

// IsZero reports whether the amount is zero, regardless of currency.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Add returns m + other. Both amounts must share a currency unless one side
// is zero, in which case the non-zero side's currency wins.
func (m Money) Add(other Money) (Money, error) {
	switch {
	case m.IsZero() && m.Currency == "":
		return other, nil
	case other.IsZero() && other.Currency == "":
		return m, nil
	case m.Currency != other.Currency && !m.IsZero() && !other.IsZero():
		return Money{}, ErrCurrencyMismatch{Left: m.Currency, Right: other.Currency}
	}
	currency := m.Currency
	if m.IsZero() && other.Currency != "" {
		currency = other.Currency
	}
	return New(m.Amount+other.Amount, currency), nil
}

// Sub returns m - other under the same currency rules as Add.
func (m Money) Sub(other Money) (Money, error) {
	return m.Add(other.Neg())
}

// Mul scales the amount by an integer factor.
func (m Money) Mul(n int64) Money {
	return New(m.Amount*n, m.Currency)
}

// Scale multiplies by an arbitrary factor, rounding half away from zero.
// Used for percentage discounts and tax rates.
func (m Money) Scale(factor float64) Money {
	scaled := float64(m.Amount) * factor
	return New(int64(math.Round(scaled)), m.Currency)
}

// Neg returns the amount with the opposite sign.
func (m Money) Neg() Money {
	return New(-m.Amount, m.Currency)
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency && !m.IsZero() && !other.IsZero() {
		return 0, ErrCurrencyMismatch{Left: m.Currency, Right: other.Currency}
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	}
	return 0, nil
}

// Equal reports whether both amount and currency match.
func (m Money) Equal(other Money) bool {
	if m.IsZero() && other.IsZero() {
		return true
	}
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// Sum folds a list of amounts onto a zero seed. Zero items are skipped so
// amounts in an unset currency do not poison currency detection.
func Sum(zero Money, items []Money) (Money, error) {
	total := zero
	for _, item := range items {
		if item.IsZero() {
			continue
		}
		next, err := total.Add(item)
		if err != nil {
			return Money{}, err
		}
		total = next
	}
	return total, nil
}

// String renders the amount as "12.34 GBP" style text for logs and invoices.
func (m Money) String() string {
	units := m.Amount / 100
	minor := m.Amount % 100
	if minor < 0 {
		minor = -minor
	}
	sign := ""
	if m.Amount < 0 && units == 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, units, minor, m.Currency)
}
