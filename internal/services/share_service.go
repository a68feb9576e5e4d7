package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"housesplit/internal/core"
	"housesplit/internal/settlement"
)

type ShareService struct {
	shares    ShareStore
	people    PeopleStore
	summaries Invalidator
}

func NewShareService(shares ShareStore, people PeopleStore, summaries Invalidator) *ShareService {
	return &ShareService{shares: shares, people: people, summaries: summaries}
}

// Get returns the shares stored for month. A month with none yields an empty
// map.
func (s *ShareService) Get(ctx context.Context, month core.MonthKey) (map[int64]core.Percent, error) {
	shares, err := s.shares.GetMonthlyShares(ctx, month)
	if err != nil {
		return nil, err
	}
	return toMap(shares), nil
}

// Save replaces the month's shares. The total must be within 0.1% of 100%;
// the remaining rounding residual is moved onto the largest share before the
// shares are stored.
func (s *ShareService) Save(ctx context.Context, month core.MonthKey, shares map[int64]core.Percent) ([]core.Share, error) {
	if len(shares) == 0 {
		return nil, ErrNoShares
	}

	ids := make([]int64, 0, len(shares))
	for id, p := range shares {
		if id <= 0 {
			return nil, core.ErrInvalidPerson
		}
		if p < 0 {
			return nil, ErrShareTotalOutOfTolerance
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	list := make([]core.Share, len(ids))
	for i, id := range ids {
		list[i] = core.Share{PersonID: id, Percent: shares[id]}
	}

	total := core.SumPercent(list)
	if diff := total - core.FullShare; diff > settlement.RescaleTolerance || diff < -settlement.RescaleTolerance {
		slog.WarnContext(ctx, "Monthly shares rejected", "month_key", month, "total", total.String())
		return nil, fmt.Errorf("%w: got %s%%", ErrShareTotalOutOfTolerance, total)
	}

	corrected, err := settlement.CorrectResidual(list)
	if err != nil {
		return nil, err
	}
	if err := s.shares.ReplaceMonthlyShares(ctx, month, corrected); err != nil {
		return nil, fmt.Errorf("save monthly shares: %w", err)
	}

	// Later months may inherit these shares.
	if s.summaries != nil {
		s.summaries.InvalidateAll()
	}
	return corrected, nil
}

// Latest returns the most recent month's stored shares. With none stored it
// returns an empty month and an equal split across everyone.
func (s *ShareService) Latest(ctx context.Context) (core.MonthKey, map[int64]core.Percent, error) {
	month, shares, err := s.shares.LatestShares(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(shares) > 0 {
		return month, toMap(shares), nil
	}

	people, err := s.people.ListPeople(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("list people: %w", err)
	}
	ids := make([]int64, len(people))
	for i, p := range people {
		ids[i] = p.ID
	}
	return "", toMap(settlement.EqualShares(ids)), nil
}

// Resolve applies inheritance and the equal-split fallback for month.
func (s *ShareService) Resolve(ctx context.Context, month core.MonthKey) (settlement.Resolution, error) {
	explicit, err := s.shares.AllMonthlyShares(ctx)
	if err != nil {
		return settlement.Resolution{}, err
	}
	people, err := s.people.ListPeople(ctx)
	if err != nil {
		return settlement.Resolution{}, fmt.Errorf("list people: %w", err)
	}
	return settlement.ResolveSharesForMonth(month, explicit, participantsOf(people))
}

func toMap(shares []core.Share) map[int64]core.Percent {
	out := make(map[int64]core.Percent, len(shares))
	for _, s := range shares {
		out[s.PersonID] = s.Percent
	}
	return out
}

func participantsOf(people []core.Person) []core.Participant {
	out := make([]core.Participant, len(people))
	for i, p := range people {
		out[i] = core.Participant{ID: p.ID, Name: p.Name}
	}
	return out
}
