// Package core provides the domain types shared across housesplit.
//
// Monetary values are integer cents and percentages are integer basis
// points. Conversion to and from decimal strings happens only at the
// edges (JSON, CSV, Sheets) through shopspring/decimal.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCents is the largest amount accepted from users, one billion in
// currency units.
const MaxCents = 100_000_000_000

var maxAmount = decimal.New(MaxCents, -2)

// Money is an amount in cents.
type Money struct {
	Cents int64
}

// Cents builds a Money value.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// MoneyFromDecimal rounds d half away from zero to whole cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// ParseMoney converts a user supplied amount to cents.
//
// Currency symbols, thousands separators and surrounding spaces are stripped
// before parsing, so "$1,234.50" is accepted. Negative values are rejected.
//
// Examples:
//
//	ParseMoney("12.34")     -> 1234
//	ParseMoney("$1,000")    -> 100000
//	ParseMoney("12.345")    -> 1235 (half away from zero)
func ParseMoney(s string) (Money, error) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() || d.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d), nil
}

// Decimal returns the value in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 is for display and charting only. Use Cents for arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

// Validate accepts zero-cost expenses. Negative amounts and amounts above
// MaxCents are invalid.
func (m Money) Validate() error {
	if m.Cents < 0 || m.Cents > MaxCents {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON emits a bare JSON number such as 12.5.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts numbers and numeric strings. Magnitudes above
// MaxCents are rejected before the int64 conversion; the sign is left to
// Validate.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(strings.NewReplacer("$", "", ",", "").Replace(s))
	if err != nil || d.Abs().GreaterThan(maxAmount) {
		return ErrInvalidAmount
	}
	*m = MoneyFromDecimal(d)
	return nil
}

// SumCosts totals the cost of the given expenses.
func SumCosts(expenses []Expense) Money {
	var total int64
	for _, e := range expenses {
		total += e.Cost.Cents
	}
	return Money{Cents: total}
}
