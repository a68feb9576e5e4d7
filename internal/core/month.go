package core

import (
	"fmt"
	"time"
)

// MonthKey identifies a calendar month as "YYYY-MM". Keys compare
// lexicographically in chronological order.
type MonthKey string

// ParseMonthKey validates s and returns it as a MonthKey.
func ParseMonthKey(s string) (MonthKey, error) {
	if len(s) != 7 || s[4] != '-' {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	for i, r := range s {
		if i == 4 {
			continue
		}
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
		}
	}
	month := int(s[5]-'0')*10 + int(s[6]-'0')
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

// MonthKeyOf returns the month key of t.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

// Start returns the first day of the month.
func (k MonthKey) Start() time.Time {
	t, err := time.Parse("2006-01", string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Bounds returns the first and last calendar day of the month.
func (k MonthKey) Bounds() (Date, Date) {
	start := k.Start()
	return Date{Time: start}, Date{Time: start.AddDate(0, 1, -1)}
}

// Prev returns the preceding month.
func (k MonthKey) Prev() MonthKey {
	return MonthKeyOf(k.Start().AddDate(0, -1, 0))
}

// Before reports whether k is chronologically earlier than o.
func (k MonthKey) Before(o MonthKey) bool {
	return k < o
}

func (k MonthKey) String() string {
	return string(k)
}
