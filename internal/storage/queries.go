package storage

import (
	"context"
	"time"
)

const listPeople = `SELECT id, name, created_at FROM people ORDER BY name COLLATE NOCASE, id`

func (q *Queries) ListPeople(ctx context.Context) ([]Person, error) {
	rows, err := q.db.QueryContext(ctx, listPeople)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Person
	for rows.Next() {
		var i Person
		if err := rows.Scan(&i.ID, &i.Name, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPerson = `SELECT id, name, created_at FROM people WHERE id = ?`

func (q *Queries) GetPerson(ctx context.Context, id int64) (Person, error) {
	row := q.db.QueryRowContext(ctx, getPerson, id)
	var i Person
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt)
	return i, err
}

const createPerson = `INSERT INTO people (name, created_at) VALUES (?, ?) RETURNING id`

type CreatePersonParams struct {
	Name      string
	CreatedAt time.Time
}

func (q *Queries) CreatePerson(ctx context.Context, arg CreatePersonParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createPerson, arg.Name, arg.CreatedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const expenseColumns = `e.id, e.cost_cents, e.person_id, e.date, e.comment, e.created_at, e.updated_at, p.name`

const listExpenses = `SELECT ` + expenseColumns + `
FROM expenses e LEFT JOIN people p ON p.id = e.person_id
ORDER BY e.date DESC, e.id DESC`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	return q.queryExpenses(ctx, listExpenses)
}

const listExpensesBetween = `SELECT ` + expenseColumns + `
FROM expenses e LEFT JOIN people p ON p.id = e.person_id
WHERE e.date >= ? AND e.date <= ?
ORDER BY e.date DESC, e.id DESC`

type ListExpensesBetweenParams struct {
	From string
	To   string
}

func (q *Queries) ListExpensesBetween(ctx context.Context, arg ListExpensesBetweenParams) ([]Expense, error) {
	return q.queryExpenses(ctx, listExpensesBetween, arg.From, arg.To)
}

func (q *Queries) queryExpenses(ctx context.Context, query string, args ...interface{}) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(
			&i.ID,
			&i.CostCents,
			&i.PersonID,
			&i.Date,
			&i.Comment,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.PersonName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getExpense = `SELECT ` + expenseColumns + `
FROM expenses e LEFT JOIN people p ON p.id = e.person_id
WHERE e.id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpense, id)
	var i Expense
	err := row.Scan(
		&i.ID,
		&i.CostCents,
		&i.PersonID,
		&i.Date,
		&i.Comment,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.PersonName,
	)
	return i, err
}

const createExpense = `INSERT INTO expenses (cost_cents, person_id, date, comment, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

type CreateExpenseParams struct {
	CostCents int64
	PersonID  int64
	Date      string
	Comment   string
	CreatedAt time.Time
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.CostCents,
		arg.PersonID,
		arg.Date,
		arg.Comment,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateExpense = `UPDATE expenses
SET cost_cents = ?, person_id = ?, date = ?, comment = ?, updated_at = ?
WHERE id = ?`

type UpdateExpenseParams struct {
	CostCents int64
	PersonID  int64
	Date      string
	Comment   string
	UpdatedAt time.Time
	ID        int64
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateExpense,
		arg.CostCents,
		arg.PersonID,
		arg.Date,
		arg.Comment,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listMonthlyShares = `SELECT month_key, person_id, percent_bp, created_at
FROM monthly_shares WHERE month_key = ? ORDER BY rowid`

func (q *Queries) ListMonthlyShares(ctx context.Context, monthKey string) ([]MonthlyShare, error) {
	return q.queryShares(ctx, listMonthlyShares, monthKey)
}

const listAllMonthlyShares = `SELECT month_key, person_id, percent_bp, created_at
FROM monthly_shares ORDER BY month_key, rowid`

func (q *Queries) ListAllMonthlyShares(ctx context.Context) ([]MonthlyShare, error) {
	return q.queryShares(ctx, listAllMonthlyShares)
}

const latestShareMonth = `SELECT COALESCE(MAX(month_key), '') FROM monthly_shares`

func (q *Queries) LatestShareMonth(ctx context.Context) (string, error) {
	row := q.db.QueryRowContext(ctx, latestShareMonth)
	var month string
	err := row.Scan(&month)
	return month, err
}

func (q *Queries) queryShares(ctx context.Context, query string, args ...interface{}) ([]MonthlyShare, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthlyShare
	for rows.Next() {
		var i MonthlyShare
		if err := rows.Scan(&i.MonthKey, &i.PersonID, &i.PercentBp, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteMonthlyShares = `DELETE FROM monthly_shares WHERE month_key = ?`

func (q *Queries) DeleteMonthlyShares(ctx context.Context, monthKey string) error {
	_, err := q.db.ExecContext(ctx, deleteMonthlyShares, monthKey)
	return err
}

const insertMonthlyShare = `INSERT INTO monthly_shares (month_key, person_id, percent_bp, created_at)
VALUES (?, ?, ?, ?)`

type InsertMonthlyShareParams struct {
	MonthKey  string
	PersonID  int64
	PercentBp int64
	CreatedAt time.Time
}

func (q *Queries) InsertMonthlyShare(ctx context.Context, arg InsertMonthlyShareParams) error {
	_, err := q.db.ExecContext(ctx, insertMonthlyShare, arg.MonthKey, arg.PersonID, arg.PercentBp, arg.CreatedAt)
	return err
}

const listPayments = `SELECT payment_key, month_key, from_person_id, to_person_id, amount_cents, paid, created_at, updated_at
FROM payments WHERE month_key = ? ORDER BY payment_key`

func (q *Queries) ListPayments(ctx context.Context, monthKey string) ([]Payment, error) {
	rows, err := q.db.QueryContext(ctx, listPayments, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var i Payment
		if err := rows.Scan(
			&i.PaymentKey,
			&i.MonthKey,
			&i.FromPersonID,
			&i.ToPersonID,
			&i.AmountCents,
			&i.Paid,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPayment = `SELECT payment_key, month_key, from_person_id, to_person_id, amount_cents, paid, created_at, updated_at
FROM payments WHERE payment_key = ? AND month_key = ?`

type GetPaymentParams struct {
	PaymentKey string
	MonthKey   string
}

func (q *Queries) GetPayment(ctx context.Context, arg GetPaymentParams) (Payment, error) {
	row := q.db.QueryRowContext(ctx, getPayment, arg.PaymentKey, arg.MonthKey)
	var i Payment
	err := row.Scan(
		&i.PaymentKey,
		&i.MonthKey,
		&i.FromPersonID,
		&i.ToPersonID,
		&i.AmountCents,
		&i.Paid,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertPayment = `INSERT INTO payments (payment_key, month_key, from_person_id, to_person_id, amount_cents, paid, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (payment_key, month_key) DO UPDATE SET
    from_person_id = excluded.from_person_id,
    to_person_id   = excluded.to_person_id,
    amount_cents   = excluded.amount_cents,
    paid           = excluded.paid,
    updated_at     = excluded.updated_at`

type UpsertPaymentParams struct {
	PaymentKey   string
	MonthKey     string
	FromPersonID int64
	ToPersonID   int64
	AmountCents  int64
	Paid         bool
	Now          time.Time
}

func (q *Queries) UpsertPayment(ctx context.Context, arg UpsertPaymentParams) error {
	_, err := q.db.ExecContext(ctx, upsertPayment,
		arg.PaymentKey,
		arg.MonthKey,
		arg.FromPersonID,
		arg.ToPersonID,
		arg.AmountCents,
		arg.Paid,
		arg.Now,
		arg.Now,
	)
	return err
}
