package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Percent is a share expressed in basis points: 10000 is 100%.
type Percent int64

const (
	// FullShare is 100%.
	FullShare Percent = 10000
	// OneDecimal is the canonical rounding step of 0.1%.
	OneDecimal Percent = 10
	// TwoDecimals is the storage rounding step of 0.01%.
	TwoDecimals Percent = 1
)

// PercentFromDecimal rounds d (in percent units) half away from zero to
// basis points.
func PercentFromDecimal(d decimal.Decimal) Percent {
	return Percent(d.Shift(2).Round(0).IntPart())
}

// PercentFromFloat converts a float percentage such as 33.3.
func PercentFromFloat(f float64) Percent {
	return PercentFromDecimal(decimal.NewFromFloat(f))
}

// ParsePercent parses a decimal string such as "33.3" or "50%".
func ParsePercent(s string) (Percent, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return PercentFromDecimal(d), nil
}

func (p Percent) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

func (p Percent) Float64() float64 {
	f, _ := p.Decimal().Float64()
	return f
}

func (p Percent) String() string {
	return p.Decimal().String()
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal().String()), nil
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	v, err := ParsePercent(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// SumPercent totals the shares.
func SumPercent(shares []Share) Percent {
	var total Percent
	for _, s := range shares {
		total += s.Percent
	}
	return total
}
