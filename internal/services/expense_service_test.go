package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housesplit/internal/amqp"
	"housesplit/internal/core"
	"housesplit/internal/csvimport"
)

func newExpenseService(t *testing.T) (*ExpenseService, *memStore, *recordingPublisher, *recordingInvalidator) {
	t.Helper()
	store := newMemStore("Ada", "Bo")
	pub := &recordingPublisher{}
	inv := &recordingInvalidator{}
	svc := NewExpenseService(store, pub, inv)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) }
	return svc, store, pub, inv
}

func TestExpenseService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _, pub, inv := newExpenseService(t)

	created, err := svc.Create(ctx, core.Expense{Cost: core.Cents(500), PersonID: 1, Date: core.NewDate(2025, 5, 3), Comment: "milk"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, amqp.ActionCreate, pub.msgs[0].Action)
	assert.Equal(t, []core.MonthKey{"2025-05"}, pub.msgs[0].MonthKeys)
	assert.Equal(t, []core.MonthKey{"2025-05"}, inv.months)

	_, err = svc.Create(ctx, core.Expense{Cost: core.Cents(-1), PersonID: 1, Date: core.NewDate(2025, 5, 3)})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.Len(t, pub.msgs, 1, "invalid expenses publish nothing")
}

func TestExpenseService_PublishFailureIsNotReturned(t *testing.T) {
	svc, _, pub, _ := newExpenseService(t)
	pub.err = errors.New("broker down")

	_, err := svc.Create(context.Background(), core.Expense{Cost: core.Cents(1), PersonID: 1, Date: core.NewDate(2025, 5, 3)})
	assert.NoError(t, err)
}

func TestExpenseService_WithoutPublisher(t *testing.T) {
	svc := NewExpenseService(newMemStore("Ada"), nil, nil)
	_, err := svc.Create(context.Background(), core.Expense{Cost: core.Cents(1), PersonID: 1, Date: core.NewDate(2025, 5, 3)})
	assert.NoError(t, err)
}

func TestExpenseService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _, pub, inv := newExpenseService(t)

	created, err := svc.Create(ctx, core.Expense{Cost: core.Cents(500), PersonID: 1, Date: core.NewDate(2025, 4, 30), Comment: "rent"})
	require.NoError(t, err)

	cost := core.Cents(700)
	date := core.NewDate(2025, 5, 1)
	updated, err := svc.Update(ctx, created.ID, ExpensePatch{Cost: &cost, Date: &date})
	require.NoError(t, err)
	assert.Equal(t, cost, updated.Cost)
	assert.Equal(t, "rent", updated.Comment, "unset fields are kept")

	last := pub.msgs[len(pub.msgs)-1]
	assert.Equal(t, amqp.ActionUpdate, last.Action)
	assert.Equal(t, []core.MonthKey{"2025-04", "2025-05"}, last.MonthKeys, "both the old and new month change")
	assert.Contains(t, inv.months, core.MonthKey("2025-04"))

	long := string(make([]byte, core.MaxCommentLength+1))
	_, err = svc.Update(ctx, created.ID, ExpensePatch{Comment: &long})
	assert.ErrorIs(t, err, core.ErrCommentTooLong)

	_, err = svc.Update(ctx, 999, ExpensePatch{})
	assert.ErrorIs(t, err, errNotFound)
}

func TestExpenseService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, store, pub, _ := newExpenseService(t)

	created, err := svc.Create(ctx, core.Expense{Cost: core.Cents(500), PersonID: 2, Date: core.NewDate(2025, 5, 3)})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)
	assert.Empty(t, store.expenses)
	assert.Equal(t, amqp.ActionDelete, pub.msgs[len(pub.msgs)-1].Action)

	_, err = svc.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, errNotFound)
}

func TestExpenseService_List(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newExpenseService(t)
	for _, d := range []core.Date{core.NewDate(2025, 4, 1), core.NewDate(2025, 5, 1), core.NewDate(2025, 5, 9)} {
		_, err := svc.Create(ctx, core.Expense{Cost: core.Cents(1), PersonID: 1, Date: d})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, core.NewDate(2025, 5, 9), all[0].Date)

	may, err := svc.List(ctx, "2025-05")
	require.NoError(t, err)
	assert.Len(t, may, 2)
}

func TestExpenseService_ImportCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("all rows valid", func(t *testing.T) {
		svc, store, pub, _ := newExpenseService(t)
		created, err := svc.ImportCSV(ctx, "cost,person,date\n10,Ada,5/1\n20,bo,2025-04-02\n")
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Len(t, store.expenses, 2)

		require.Len(t, pub.msgs, 1)
		assert.Equal(t, amqp.ActionImport, pub.msgs[0].Action)
		assert.ElementsMatch(t, []core.MonthKey{"2025-05", "2025-04"}, pub.msgs[0].MonthKeys)
	})

	t.Run("any row error stores nothing", func(t *testing.T) {
		svc, store, pub, _ := newExpenseService(t)
		_, err := svc.ImportCSV(ctx, "cost,person,date\n10,Ada,5/1\n20,Zed,5/2\n")

		var importErr *ImportError
		require.ErrorAs(t, err, &importErr)
		require.Len(t, importErr.Rows, 1)
		assert.Equal(t, 3, importErr.Rows[0].Line)
		assert.Empty(t, store.expenses)
		assert.Empty(t, pub.msgs)
	})

	t.Run("missing header", func(t *testing.T) {
		svc, _, _, _ := newExpenseService(t)
		_, err := svc.ImportCSV(ctx, "")
		assert.ErrorIs(t, err, csvimport.ErrNoRows)
	})

	t.Run("store failure", func(t *testing.T) {
		svc, store, _, _ := newExpenseService(t)
		store.failCreate = errors.New("disk full")
		_, err := svc.ImportCSV(ctx, "cost,person,date\n10,Ada,5/1\n")
		assert.ErrorContains(t, err, "disk full")
	})
}
