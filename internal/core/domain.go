package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the canonical calendar date format used in storage and JSON.
const DateLayout = "2006-01-02"

// MaxCommentLength bounds free-text comments on expenses.
const MaxCommentLength = 500

type (
	Date struct {
		time.Time
	}

	Person struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	Expense struct {
		ID          int64     `json:"id"`
		Cost        Money     `json:"cost"`
		PersonID    int64     `json:"person_id"`
		Date        Date      `json:"date"`
		Comment     string    `json:"comment"`
		CreatedAt   time.Time `json:"created_at"`
		PurchasedBy string    `json:"purchasedBy"`
	}

	// Share is one participant's percentage of a month's costs.
	Share struct {
		PersonID int64   `json:"person_id"`
		Percent  Percent `json:"percent"`
	}

	// Participant is a person together with the share they hold for a month.
	Participant struct {
		ID      int64   `json:"id"`
		Name    string  `json:"name"`
		Percent Percent `json:"percentShare"`
	}

	// Balance is derived per participant per month. A positive Net means the
	// participant is owed money, a negative Net means they owe money.
	Balance struct {
		PersonID int64  `json:"id"`
		Name     string `json:"name"`
		Paid     Money  `json:"paid"`
		Owed     Money  `json:"owed"`
		Net      Money  `json:"net"`
	}

	// Settlement is one directed payment from a debtor to a creditor.
	Settlement struct {
		FromID int64  `json:"from"`
		ToID   int64  `json:"to"`
		Amount Money  `json:"amount"`
		Key    string `json:"settlementKey"`
	}

	// PaymentRecord is the persisted paid flag for a settlement in a month.
	PaymentRecord struct {
		PaymentKey string    `json:"payment_key"`
		MonthKey   MonthKey  `json:"month_key"`
		FromID     int64     `json:"from_person_id"`
		ToID       int64     `json:"to_person_id"`
		Amount     Money     `json:"amount"`
		Paid       bool      `json:"paid"`
		CreatedAt  time.Time `json:"created_at"`
		UpdatedAt  time.Time `json:"updated_at"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidMonthKey = errors.New("invalid month key")
	ErrInvalidPerson   = errors.New("invalid person")
	ErrInvalidDate     = errors.New("invalid date")
	ErrCommentTooLong  = errors.New("comment too long (max 500 characters)")
	ErrEmptyName       = errors.New("empty name")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MonthKey returns the month the date falls in.
func (d Date) MonthKey() MonthKey {
	return MonthKeyOf(d.Time)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps as well as plain dates.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (p Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Cost.Validate(); err != nil {
		return err
	}
	if e.PersonID <= 0 {
		return ErrInvalidPerson
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(e.Comment) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// UnknownPayer is shown for expenses whose payer is not a known person.
const UnknownPayer = "Unknown"

// PersonNames indexes people by id.
func PersonNames(people []Person) map[int64]string {
	out := make(map[int64]string, len(people))
	for _, p := range people {
		out[p.ID] = p.Name
	}
	return out
}
