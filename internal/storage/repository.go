package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"housesplit/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a row addressed by key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("already exists")
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// dsn adds the connection pragmas every handle needs.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListPeople(ctx context.Context) ([]core.Person, error) {
	rows, err := r.queries.ListPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	people := make([]core.Person, len(rows))
	for i, p := range rows {
		people[i] = toPerson(p)
	}
	return people, nil
}

func (r *SQLiteRepository) GetPerson(ctx context.Context, id int64) (core.Person, error) {
	p, err := r.queries.GetPerson(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Person{}, fmt.Errorf("get person %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Person{}, fmt.Errorf("get person %d: %w", id, err)
	}
	return toPerson(p), nil
}

func (r *SQLiteRepository) CreatePerson(ctx context.Context, name string) (core.Person, error) {
	now := r.now()
	id, err := r.queries.CreatePerson(ctx, CreatePersonParams{Name: name, CreatedAt: now})
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return core.Person{}, fmt.Errorf("create person %q: %w", name, ErrConflict)
	}
	if err != nil {
		return core.Person{}, fmt.Errorf("create person: %w", err)
	}

	slog.InfoContext(ctx, "Person saved to SQLite", "person_id", id, "name", name)
	return core.Person{ID: id, Name: name, CreatedAt: now}, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return toExpenses(rows)
}

// ListExpensesForMonth returns the expenses dated within the calendar month.
func (r *SQLiteRepository) ListExpensesForMonth(ctx context.Context, month core.MonthKey) ([]core.Expense, error) {
	first, last := month.Bounds()
	rows, err := r.queries.ListExpensesBetween(ctx, ListExpensesBetweenParams{
		From: first.String(),
		To:   last.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses for %s: %w", month, err)
	}
	return toExpenses(rows)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return toExpense(row)
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	id, err := r.queries.CreateExpense(ctx, createParams(e, r.now()))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"person_id", e.PersonID,
		"amount_cents", e.Cost.Cents,
		"date", e.Date.String())

	return r.GetExpense(ctx, id)
}

// CreateExpenses stores every expense or none of them.
func (r *SQLiteRepository) CreateExpenses(ctx context.Context, expenses []core.Expense) ([]core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	now := r.now()
	ids := make([]int64, 0, len(expenses))
	for i, e := range expenses {
		id, err := qtx.CreateExpense(ctx, createParams(e, now))
		if err != nil {
			return nil, fmt.Errorf("create expense %d of %d: %w", i+1, len(expenses), err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit expenses: %w", err)
	}

	slog.InfoContext(ctx, "Expenses imported to SQLite", "count", len(ids))

	out := make([]core.Expense, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetExpense(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// UpdateExpense overwrites the stored fields of e.ID.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	n, err := r.queries.UpdateExpense(ctx, UpdateExpenseParams{
		CostCents: e.Cost.Cents,
		PersonID:  e.PersonID,
		Date:      e.Date.String(),
		Comment:   e.Comment,
		UpdatedAt: r.now(),
		ID:        e.ID,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	if n == 0 {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, ErrNotFound)
	}

	slog.InfoContext(ctx, "Expense updated", "id", e.ID, "amount_cents", e.Cost.Cents)
	return r.GetExpense(ctx, e.ID)
}

// DeleteExpense removes the expense and returns it as it was.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) (core.Expense, error) {
	existing, err := r.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	n, err := r.queries.DeleteExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, err)
	}
	if n == 0 {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return existing, nil
}

// GetMonthlyShares returns the shares stored for month in insertion order.
func (r *SQLiteRepository) GetMonthlyShares(ctx context.Context, month core.MonthKey) ([]core.Share, error) {
	rows, err := r.queries.ListMonthlyShares(ctx, string(month))
	if err != nil {
		return nil, fmt.Errorf("get monthly shares for %s: %w", month, err)
	}
	return toShares(rows), nil
}

// ReplaceMonthlyShares swaps the month's shares in one transaction.
func (r *SQLiteRepository) ReplaceMonthlyShares(ctx context.Context, month core.MonthKey, shares []core.Share) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	if err := qtx.DeleteMonthlyShares(ctx, string(month)); err != nil {
		return fmt.Errorf("delete monthly shares for %s: %w", month, err)
	}
	now := r.now()
	for _, s := range shares {
		if err := qtx.InsertMonthlyShare(ctx, InsertMonthlyShareParams{
			MonthKey:  string(month),
			PersonID:  s.PersonID,
			PercentBp: int64(s.Percent),
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("insert share for person %d: %w", s.PersonID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit monthly shares: %w", err)
	}

	slog.InfoContext(ctx, "Monthly shares saved", "month_key", month, "count", len(shares))
	return nil
}

// LatestShares returns the shares of the most recent month that has any.
// The month is empty when no shares are stored.
func (r *SQLiteRepository) LatestShares(ctx context.Context) (core.MonthKey, []core.Share, error) {
	month, err := r.queries.LatestShareMonth(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("get latest share month: %w", err)
	}
	if month == "" {
		return "", nil, nil
	}
	shares, err := r.GetMonthlyShares(ctx, core.MonthKey(month))
	if err != nil {
		return "", nil, err
	}
	return core.MonthKey(month), shares, nil
}

// AllMonthlyShares returns every stored month's shares.
func (r *SQLiteRepository) AllMonthlyShares(ctx context.Context) (map[core.MonthKey][]core.Share, error) {
	rows, err := r.queries.ListAllMonthlyShares(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all monthly shares: %w", err)
	}
	out := map[core.MonthKey][]core.Share{}
	for _, row := range rows {
		k := core.MonthKey(row.MonthKey)
		out[k] = append(out[k], core.Share{PersonID: row.PersonID, Percent: core.Percent(row.PercentBp)})
	}
	return out, nil
}

func (r *SQLiteRepository) ListPayments(ctx context.Context, month core.MonthKey) ([]core.PaymentRecord, error) {
	rows, err := r.queries.ListPayments(ctx, string(month))
	if err != nil {
		return nil, fmt.Errorf("list payments for %s: %w", month, err)
	}
	out := make([]core.PaymentRecord, len(rows))
	for i, p := range rows {
		out[i] = toPayment(p)
	}
	return out, nil
}

// UpsertPayment records the paid flag for a settlement. The last write wins;
// created_at survives updates.
func (r *SQLiteRepository) UpsertPayment(ctx context.Context, p core.PaymentRecord) (core.PaymentRecord, error) {
	if err := r.queries.UpsertPayment(ctx, UpsertPaymentParams{
		PaymentKey:   p.PaymentKey,
		MonthKey:     string(p.MonthKey),
		FromPersonID: p.FromID,
		ToPersonID:   p.ToID,
		AmountCents:  p.Amount.Cents,
		Paid:         p.Paid,
		Now:          r.now(),
	}); err != nil {
		return core.PaymentRecord{}, fmt.Errorf("upsert payment %s: %w", p.PaymentKey, err)
	}

	row, err := r.queries.GetPayment(ctx, GetPaymentParams{PaymentKey: p.PaymentKey, MonthKey: string(p.MonthKey)})
	if err != nil {
		return core.PaymentRecord{}, fmt.Errorf("get payment %s: %w", p.PaymentKey, err)
	}

	slog.InfoContext(ctx, "Payment status saved",
		"payment_key", p.PaymentKey,
		"month_key", p.MonthKey,
		"paid", p.Paid)
	return toPayment(row), nil
}

func createParams(e core.Expense, now time.Time) CreateExpenseParams {
	return CreateExpenseParams{
		CostCents: e.Cost.Cents,
		PersonID:  e.PersonID,
		Date:      e.Date.String(),
		Comment:   e.Comment,
		CreatedAt: now,
	}
}

func toPerson(p Person) core.Person {
	return core.Person{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt}
}

func toExpenses(rows []Expense) ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := toExpense(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func toExpense(row Expense) (core.Expense, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d has date %q: %w", row.ID, row.Date, err)
	}
	payer := core.UnknownPayer
	if row.PersonName.Valid {
		payer = row.PersonName.String
	}
	return core.Expense{
		ID:          row.ID,
		Cost:        core.Cents(row.CostCents),
		PersonID:    row.PersonID,
		Date:        date,
		Comment:     row.Comment,
		CreatedAt:   row.CreatedAt,
		PurchasedBy: payer,
	}, nil
}

func toShares(rows []MonthlyShare) []core.Share {
	out := make([]core.Share, len(rows))
	for i, row := range rows {
		out[i] = core.Share{PersonID: row.PersonID, Percent: core.Percent(row.PercentBp)}
	}
	return out
}

func toPayment(p Payment) core.PaymentRecord {
	return core.PaymentRecord{
		PaymentKey: p.PaymentKey,
		MonthKey:   core.MonthKey(p.MonthKey),
		FromID:     p.FromPersonID,
		ToID:       p.ToPersonID,
		Amount:     core.Cents(p.AmountCents),
		Paid:       p.Paid,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
