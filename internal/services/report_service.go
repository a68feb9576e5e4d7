package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"housesplit/internal/core"
	"housesplit/internal/reports"
	"housesplit/internal/settlement"
)

// Report bundles the spending views shown on the reports page.
type Report struct {
	From        core.MonthKey         `json:"from,omitempty"`
	To          core.MonthKey         `json:"to,omitempty"`
	Monthly     []reports.MonthTotal  `json:"monthlySpending"`
	ByPerson    []reports.PersonTotal `json:"personSpending"`
	NetByPerson []reports.PersonNet   `json:"personNetSpending"`
	Growth      reports.GrowthMetrics `json:"growth"`
	Summary     reports.SummaryStats  `json:"summary"`
	// Overall is the balance across every month in the range, as if it were
	// one month split by the resolved shares.
	Overall []core.Balance `json:"overallBalances"`
}

type ReportService struct {
	store  Store
	shares *ShareService
	now    func() time.Time
}

func NewReportService(store Store, shares *ShareService) *ReportService {
	return &ReportService{store: store, shares: shares, now: time.Now}
}

// Report aggregates expenses between from and to inclusive. Either bound may
// be empty. Net spending uses the shares that apply to the last month of the
// range.
func (s *ReportService) Report(ctx context.Context, from, to core.MonthKey) (Report, error) {
	var (
		expenses []core.Expense
		people   []core.Person
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.store.ListExpenses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		people, err = s.store.ListPeople(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("load report data: %w", err)
	}

	expenses = reports.FilterRange(expenses, from, to)
	monthly := reports.MonthlySpending(expenses)

	shareMonth := to
	if shareMonth == "" {
		shareMonth = core.MonthKeyOf(s.now())
	}
	res, err := s.shares.Resolve(ctx, shareMonth)
	if err != nil {
		return Report{}, fmt.Errorf("resolve shares for %s: %w", shareMonth, err)
	}

	overall, err := settlement.ComputeBalances(expenses, res.Shares)
	if err != nil && !errors.Is(err, settlement.ErrEmptyParticipantSet) {
		return Report{}, fmt.Errorf("overall balances: %w", err)
	}

	return Report{
		From:        from,
		To:          to,
		Monthly:     monthly,
		ByPerson:    reports.PersonSpending(expenses, people),
		NetByPerson: reports.PersonNetSpending(expenses, people, settlement.Participants(res.Shares, people)),
		Growth:      reports.Growth(monthly),
		Summary:     reports.Summary(expenses, monthly),
		Overall:     settlement.WithNames(overall.Balances, people),
	}, nil
}
