package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"housesplit/internal/amqp"
	"housesplit/internal/core"
	"housesplit/internal/csvimport"
)

// ExpenseService orchestrates expense writes across storage, the summary
// cache and the event publisher.
type ExpenseService struct {
	store     Store
	publisher EventPublisher
	summaries Invalidator
	now       func() time.Time
}

func NewExpenseService(store Store, publisher EventPublisher, summaries Invalidator) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		summaries: summaries,
		now:       time.Now,
	}
}

// ExpensePatch holds the fields of a partial update. Nil fields are left
// unchanged.
type ExpensePatch struct {
	Cost     *core.Money
	PersonID *int64
	Date     *core.Date
	Comment  *string
}

// List returns expenses newest first, restricted to month when it is set.
func (s *ExpenseService) List(ctx context.Context, month core.MonthKey) ([]core.Expense, error) {
	if month == "" {
		return s.store.ListExpenses(ctx)
	}
	return s.store.ListExpensesForMonth(ctx, month)
}

func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.changed(ctx, amqp.ActionCreate, []int64{created.ID}, created.Date.MonthKey())
	return created, nil
}

func (s *ExpenseService) Update(ctx context.Context, id int64, patch ExpensePatch) (core.Expense, error) {
	existing, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}

	next := existing
	if patch.Cost != nil {
		next.Cost = *patch.Cost
	}
	if patch.PersonID != nil {
		next.PersonID = *patch.PersonID
	}
	if patch.Date != nil {
		next.Date = *patch.Date
	}
	if patch.Comment != nil {
		next.Comment = *patch.Comment
	}
	if err := next.Validate(); err != nil {
		return core.Expense{}, err
	}

	updated, err := s.store.UpdateExpense(ctx, next)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.changed(ctx, amqp.ActionUpdate, []int64{id}, existing.Date.MonthKey(), updated.Date.MonthKey())
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id int64) (core.Expense, error) {
	deleted, err := s.store.DeleteExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}

	s.changed(ctx, amqp.ActionDelete, []int64{id}, deleted.Date.MonthKey())
	return deleted, nil
}

// ImportCSV stores every row of content or none of them. Row problems are
// reported together as an *ImportError.
func (s *ExpenseService) ImportCSV(ctx context.Context, content string) ([]core.Expense, error) {
	people, err := s.store.ListPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}

	rows, rowErrs, err := csvimport.Parse(content, people, s.now())
	if err != nil {
		return nil, err
	}
	if len(rowErrs) > 0 {
		slog.WarnContext(ctx, "CSV import rejected", "row_errors", len(rowErrs), "valid_rows", len(rows))
		return nil, &ImportError{Rows: rowErrs}
	}
	if len(rows) == 0 {
		return nil, ErrNoValidRows
	}

	expenses := make([]core.Expense, len(rows))
	for i, r := range rows {
		expenses[i] = r.Expense()
	}

	created, err := s.store.CreateExpenses(ctx, expenses)
	if err != nil {
		return nil, fmt.Errorf("import expenses: %w", err)
	}

	ids := make([]int64, len(created))
	months := make([]core.MonthKey, len(created))
	for i, e := range created {
		ids[i] = e.ID
		months[i] = e.Date.MonthKey()
	}
	s.changed(ctx, amqp.ActionImport, ids, months...)

	slog.InfoContext(ctx, "CSV import completed", "count", len(created))
	return created, nil
}

// changed invalidates cached summaries and publishes the change. Publish
// failures are logged; the write has already succeeded.
func (s *ExpenseService) changed(ctx context.Context, action string, ids []int64, months ...core.MonthKey) {
	msg := amqp.NewExpenseChangedMessage(action, ids, months...)

	if s.summaries != nil {
		s.summaries.Invalidate(msg.MonthKeys...)
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping expense changed message", "action", action)
		return
	}
	if err := s.publisher.PublishExpenseChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense changed message",
			"action", action,
			"month_keys", msg.MonthKeys,
			"error", err)
	}
}
