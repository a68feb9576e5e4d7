package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housesplit/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestNewSQLiteRepository_MigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	first, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer second.Close()
	assert.NoError(t, second.Ping(context.Background()))
}

func TestPeople(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	bo, err := repo.CreatePerson(ctx, "Bo")
	require.NoError(t, err)
	_, err = repo.CreatePerson(ctx, "ada")
	require.NoError(t, err)

	_, err = repo.CreatePerson(ctx, "BO")
	assert.ErrorIs(t, err, ErrConflict, "names are unique regardless of case")

	people, err := repo.ListPeople(ctx)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "ada", people[0].Name)

	got, err := repo.GetPerson(ctx, bo.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bo", got.Name)

	_, err = repo.GetPerson(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpenses(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	ada, err := repo.CreatePerson(ctx, "Ada")
	require.NoError(t, err)

	first, err := repo.CreateExpense(ctx, core.Expense{Cost: core.Cents(1250), PersonID: ada.ID, Date: core.NewDate(2025, 5, 1), Comment: "bread"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", first.PurchasedBy)
	assert.Equal(t, core.Cents(1250), first.Cost)

	orphan, err := repo.CreateExpense(ctx, core.Expense{Cost: core.Cents(300), PersonID: 42, Date: core.NewDate(2025, 5, 20)})
	require.NoError(t, err)
	assert.Equal(t, core.UnknownPayer, orphan.PurchasedBy)

	_, err = repo.CreateExpense(ctx, core.Expense{Cost: core.Cents(99), PersonID: ada.ID, Date: core.NewDate(2025, 6, 1)})
	require.NoError(t, err)

	all, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, core.NewDate(2025, 6, 1), all[0].Date, "newest first")

	may, err := repo.ListExpensesForMonth(ctx, "2025-05")
	require.NoError(t, err)
	require.Len(t, may, 2)
	assert.Equal(t, orphan.ID, may[0].ID)

	first.Cost = core.Cents(2000)
	first.Comment = "bread and jam"
	updated, err := repo.UpdateExpense(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, core.Cents(2000), updated.Cost)
	assert.Equal(t, "bread and jam", updated.Comment)

	_, err = repo.UpdateExpense(ctx, core.Expense{ID: 999, Date: core.NewDate(2025, 1, 1), PersonID: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := repo.DeleteExpense(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, deleted.ID)

	_, err = repo.GetExpense(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.DeleteExpense(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateExpenses(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateExpenses(ctx, []core.Expense{
		{Cost: core.Cents(100), PersonID: 1, Date: core.NewDate(2025, 1, 1), Comment: "a"},
		{Cost: core.Cents(200), PersonID: 2, Date: core.NewDate(2025, 1, 2), Comment: "b"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	_, err = repo.CreateExpenses(ctx, []core.Expense{
		{Cost: core.Cents(100), PersonID: 1, Date: core.NewDate(2025, 1, 3)},
		{Cost: core.Cents(-5), PersonID: 1, Date: core.NewDate(2025, 1, 3)},
	})
	require.Error(t, err, "the negative cost violates the check constraint")

	all, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "a failed import stores nothing")
}

func TestMonthlyShares(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	month, shares, err := repo.LatestShares(ctx)
	require.NoError(t, err)
	assert.Empty(t, month)
	assert.Empty(t, shares)

	jan := []core.Share{{PersonID: 2, Percent: 6000}, {PersonID: 1, Percent: 4000}}
	require.NoError(t, repo.ReplaceMonthlyShares(ctx, "2025-01", jan))
	require.NoError(t, repo.ReplaceMonthlyShares(ctx, "2024-12", []core.Share{{PersonID: 1, Percent: 10000}}))

	got, err := repo.GetMonthlyShares(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, jan, got)

	replaced := []core.Share{{PersonID: 1, Percent: 5000}, {PersonID: 3, Percent: 5000}}
	require.NoError(t, repo.ReplaceMonthlyShares(ctx, "2025-01", replaced))
	got, err = repo.GetMonthlyShares(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, replaced, got)

	month, shares, err = repo.LatestShares(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.MonthKey("2025-01"), month)
	assert.Equal(t, replaced, shares)

	all, err := repo.AllMonthlyShares(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, []core.Share{{PersonID: 1, Percent: 10000}}, all["2024-12"])

	none, err := repo.GetMonthlyShares(ctx, "2030-01")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertPayment(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	t0 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return t0 }

	rec := core.PaymentRecord{PaymentKey: "2-1", MonthKey: "2025-05", FromID: 2, ToID: 1, Amount: core.Cents(3000), Paid: true}
	first, err := repo.UpsertPayment(ctx, rec)
	require.NoError(t, err)
	assert.True(t, first.Paid)
	assert.True(t, t0.Equal(first.CreatedAt))

	t1 := t0.Add(time.Hour)
	repo.now = func() time.Time { return t1 }
	rec.Paid = false
	second, err := repo.UpsertPayment(ctx, rec)
	require.NoError(t, err)
	assert.False(t, second.Paid)
	assert.True(t, t0.Equal(second.CreatedAt), "created_at is kept")
	assert.True(t, t1.Equal(second.UpdatedAt))

	_, err = repo.UpsertPayment(ctx, core.PaymentRecord{PaymentKey: "2-1", MonthKey: "2025-06", FromID: 2, ToID: 1, Amount: core.Cents(1), Paid: true})
	require.NoError(t, err)

	may, err := repo.ListPayments(ctx, "2025-05")
	require.NoError(t, err)
	require.Len(t, may, 1)
	assert.Equal(t, "2-1", may[0].PaymentKey)
	assert.False(t, may[0].Paid)
}
