package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"housesplit/internal/cache"
	"housesplit/internal/core"
	"housesplit/internal/metrics"
	"housesplit/internal/settlement"
)

// summaryTimeout bounds the loads behind one summary computation.
const summaryTimeout = 7 * time.Second

// SummaryService computes month summaries from a consistent snapshot of the
// store and caches them until a write touches the month.
type SummaryService struct {
	store Store
	cache cache.Cache[core.MonthSummary]
	group singleflight.Group
	now   func() time.Time

	// gen changes on every invalidation. It is part of the flight key, so
	// callers arriving after a write never join a flight started before it,
	// and a result computed across an invalidation is returned but not cached.
	mu  sync.Mutex
	gen uint64
}

// NewSummaryService returns a service backed by store. c may be nil, in which
// case every request recomputes.
func NewSummaryService(store Store, c cache.Cache[core.MonthSummary]) *SummaryService {
	return &SummaryService{store: store, cache: c, now: time.Now}
}

// Summary returns the balances and settlements for month. Concurrent calls
// for the same month share one computation.
func (s *SummaryService) Summary(ctx context.Context, month core.MonthKey) (core.MonthSummary, error) {
	if err := ctx.Err(); err != nil {
		return core.MonthSummary{}, err
	}
	key := string(month)
	if s.cache != nil {
		if sum, ok := s.cache.Get(key); ok {
			metrics.SummaryCache.WithLabelValues("hit").Inc()
			return sum, nil
		}
		metrics.SummaryCache.WithLabelValues("miss").Inc()
	}

	gen := s.generation()
	ch := s.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (interface{}, error) {
		// Detached so one caller's cancellation does not fail the others.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryTimeout)
		defer cancel()
		return s.compute(cctx, month)
	})

	select {
	case <-ctx.Done():
		return core.MonthSummary{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return core.MonthSummary{}, r.Err
		}
		sum := r.Val.(core.MonthSummary)
		s.put(key, gen, sum)
		return sum, nil
	}
}

func (s *SummaryService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// put caches sum unless an invalidation happened since gen was read.
func (s *SummaryService) put(key string, gen uint64, sum core.MonthSummary) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cache.Set(key, sum)
	}
}

func (s *SummaryService) compute(ctx context.Context, month core.MonthKey) (core.MonthSummary, error) {
	in := settlement.Input{Month: month, Now: s.now().UTC()}

	var payments []core.PaymentRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in.Expenses, err = s.store.ListExpensesForMonth(gctx, month)
		return err
	})
	g.Go(func() error {
		var err error
		in.People, err = s.store.ListPeople(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		in.Explicit, err = s.store.AllMonthlyShares(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.store.ListPayments(gctx, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.MonthSummary{}, fmt.Errorf("load month %s: %w", month, err)
	}

	in.Payments = make(map[string]core.PaymentRecord, len(payments))
	for _, p := range payments {
		in.Payments[p.PaymentKey] = p
	}

	sum, err := settlement.Summarize(in)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("summarize month %s: %w", month, err)
	}

	if len(sum.UnmatchedPayers) > 0 {
		slog.WarnContext(ctx, "Expenses paid by people without a share",
			"month_key", month,
			"person_ids", sum.UnmatchedPayers)
	}
	if sum.Warning != "" {
		slog.WarnContext(ctx, "Month summary incomplete", "month_key", month, "warning", sum.Warning)
	}

	metrics.SummariesComputed.WithLabelValues(string(sum.SharesSource)).Inc()
	metrics.SettlementsProposed.Observe(float64(len(sum.Settlements)))

	slog.InfoContext(ctx, "Month summary computed",
		"month_key", month,
		"shares_source", sum.SharesSource,
		"total_cents", sum.Total.Cents,
		"settlements", len(sum.Settlements))
	return sum, nil
}

func (s *SummaryService) Invalidate(months ...core.MonthKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cache == nil {
		return
	}
	for _, m := range months {
		s.cache.Delete(string(m))
	}
}

func (s *SummaryService) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cache != nil {
		s.cache.Purge()
	}
}
