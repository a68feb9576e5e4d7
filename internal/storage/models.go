package storage

import (
	"database/sql"
	"time"
)

type Person struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

type Expense struct {
	ID         int64
	CostCents  int64
	PersonID   int64
	Date       string
	Comment    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	PersonName sql.NullString
}

type MonthlyShare struct {
	MonthKey  string
	PersonID  int64
	PercentBp int64
	CreatedAt time.Time
}

type Payment struct {
	PaymentKey   string
	MonthKey     string
	FromPersonID int64
	ToPersonID   int64
	AmountCents  int64
	Paid         bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
