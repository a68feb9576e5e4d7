package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"housesplit/internal/amqp"
	"housesplit/internal/core"
	"housesplit/internal/csvimport"
)

type ExpenseStore interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	ListExpensesForMonth(ctx context.Context, month core.MonthKey) ([]core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	CreateExpenses(ctx context.Context, expenses []core.Expense) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (core.Expense, error)
}

type PeopleStore interface {
	ListPeople(ctx context.Context) ([]core.Person, error)
	CreatePerson(ctx context.Context, name string) (core.Person, error)
}

type ShareStore interface {
	GetMonthlyShares(ctx context.Context, month core.MonthKey) ([]core.Share, error)
	ReplaceMonthlyShares(ctx context.Context, month core.MonthKey, shares []core.Share) error
	LatestShares(ctx context.Context) (core.MonthKey, []core.Share, error)
	AllMonthlyShares(ctx context.Context) (map[core.MonthKey][]core.Share, error)
}

type PaymentStore interface {
	ListPayments(ctx context.Context, month core.MonthKey) ([]core.PaymentRecord, error)
	UpsertPayment(ctx context.Context, p core.PaymentRecord) (core.PaymentRecord, error)
}

// Store is everything the services read and write. The SQLite repository
// satisfies it.
type Store interface {
	ExpenseStore
	PeopleStore
	ShareStore
	PaymentStore
}

// EventPublisher announces expense changes to other processes.
type EventPublisher interface {
	PublishExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

// Invalidator drops cached summaries after writes.
type Invalidator interface {
	Invalidate(months ...core.MonthKey)
	InvalidateAll()
}

var (
	ErrShareTotalOutOfTolerance = errors.New("shares must sum to 100% (within 0.1%)")
	ErrNoShares                 = errors.New("at least one share is required")
	ErrInvalidPayment           = errors.New("invalid payment")
	ErrNoValidRows              = errors.New("no valid expenses found in CSV")
)

// ImportError lists every row of a CSV import that failed validation.
type ImportError struct {
	Rows []csvimport.RowError
}

func (e *ImportError) Error() string {
	msgs := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		msgs = append(msgs, r.Error())
	}
	return fmt.Sprintf("CSV validation failed: %s", strings.Join(msgs, "; "))
}
