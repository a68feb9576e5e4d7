package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"housesplit/internal/amqp"
	"housesplit/internal/core"
)

var errNotFound = errors.New("not found")

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	people   []core.Person
	expenses map[int64]core.Expense
	shares   map[core.MonthKey][]core.Share
	payments map[string]core.PaymentRecord

	expenseLoads atomic.Int64
	failCreate   error
}

func newMemStore(people ...string) *memStore {
	s := &memStore{
		expenses: map[int64]core.Expense{},
		shares:   map[core.MonthKey][]core.Share{},
		payments: map[string]core.PaymentRecord{},
	}
	for _, name := range people {
		s.CreatePerson(context.Background(), name)
	}
	return s
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) ListPeople(context.Context) ([]core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Person(nil), s.people...), nil
}

func (s *memStore) CreatePerson(_ context.Context, name string) (core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := core.Person{ID: s.id(), Name: name}
	s.people = append(s.people, p)
	return p, nil
}

func (s *memStore) sorted(keep func(core.Expense) bool) []core.Expense {
	out := []core.Expense{}
	for _, e := range s.expenses {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *memStore) ListExpenses(context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(core.Expense) bool { return true }), nil
}

func (s *memStore) ListExpensesForMonth(_ context.Context, month core.MonthKey) ([]core.Expense, error) {
	s.expenseLoads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(e core.Expense) bool { return e.Date.MonthKey() == month }), nil
}

func (s *memStore) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, errNotFound
	}
	return e, nil
}

func (s *memStore) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	out, err := s.CreateExpenses(ctx, []core.Expense{e})
	if err != nil {
		return core.Expense{}, err
	}
	return out[0], nil
}

func (s *memStore) CreateExpenses(_ context.Context, expenses []core.Expense) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return nil, s.failCreate
	}
	out := make([]core.Expense, len(expenses))
	for i, e := range expenses {
		e.ID = s.id()
		s.expenses[e.ID] = e
		out[i] = e
	}
	return out, nil
}

func (s *memStore) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[e.ID]; !ok {
		return core.Expense{}, errNotFound
	}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *memStore) DeleteExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, errNotFound
	}
	delete(s.expenses, id)
	return e, nil
}

func (s *memStore) GetMonthlyShares(_ context.Context, month core.MonthKey) ([]core.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Share(nil), s.shares[month]...), nil
}

func (s *memStore) ReplaceMonthlyShares(_ context.Context, month core.MonthKey, shares []core.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[month] = append([]core.Share(nil), shares...)
	return nil
}

func (s *memStore) LatestShares(context.Context) (core.MonthKey, []core.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest core.MonthKey
	for k := range s.shares {
		if k > latest {
			latest = k
		}
	}
	if latest == "" {
		return "", nil, nil
	}
	return latest, s.shares[latest], nil
}

func (s *memStore) AllMonthlyShares(context.Context) (map[core.MonthKey][]core.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[core.MonthKey][]core.Share, len(s.shares))
	for k, v := range s.shares {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) ListPayments(_ context.Context, month core.MonthKey) ([]core.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.PaymentRecord
	for _, p := range s.payments {
		if p.MonthKey == month {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) UpsertPayment(_ context.Context, p core.PaymentRecord) (core.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[string(p.MonthKey)+"/"+p.PaymentKey] = p
	return p, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ExpenseChangedMessage
	err  error
}

func (p *recordingPublisher) PublishExpenseChanged(_ context.Context, msg *amqp.ExpenseChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

type recordingInvalidator struct {
	months []core.MonthKey
	all    int
}

func (r *recordingInvalidator) Invalidate(months ...core.MonthKey) {
	r.months = append(r.months, months...)
}

func (r *recordingInvalidator) InvalidateAll() { r.all++ }
