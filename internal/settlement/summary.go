package settlement

import (
	"errors"
	"time"

	"housesplit/internal/core"
)

// Input is a consistent snapshot of everything a month's summary needs.
type Input struct {
	Month    core.MonthKey
	Expenses []core.Expense // already scoped to Month
	Explicit map[core.MonthKey][]core.Share
	People   []core.Person
	Payments map[string]core.PaymentRecord // keyed by settlement key
	Now      time.Time
}

// Summarize resolves the month's shares, computes balances and settlements
// and merges in the persisted paid flags.
//
// An empty participant set is reported through Summary.Warning rather than
// as an error; ErrInvalidShareTotal is returned as is.
func Summarize(in Input) (core.MonthSummary, error) {
	sum := core.MonthSummary{
		MonthKey:     in.Month,
		ExpenseCount: len(in.Expenses),
		ComputedAt:   in.Now,
		Balances:     []core.Balance{},
		Settlements:  []core.SettlementView{},
	}

	participants := make([]core.Participant, len(in.People))
	for i, p := range in.People {
		participants[i] = core.Participant{ID: p.ID, Name: p.Name}
	}

	res, err := ResolveSharesForMonth(in.Month, in.Explicit, participants)
	if err != nil {
		return sum, err
	}
	sum.SharesSource = res.Source
	sum.InheritedFrom = res.InheritedFrom
	sum.Participants = Participants(res.Shares, in.People)

	bal, err := ComputeBalances(in.Expenses, res.Shares)
	sum.Total = bal.Total
	sum.UnmatchedPayers = bal.UnmatchedPayers
	if errors.Is(err, ErrEmptyParticipantSet) {
		sum.Warning = "expenses recorded but no participants to split them between"
		return sum, nil
	}
	if err != nil {
		return sum, err
	}
	sum.Balances = WithNames(bal.Balances, in.People)

	for _, st := range ComputeSettlements(sum.Balances) {
		view := core.SettlementView{Settlement: st}
		if rec, ok := in.Payments[st.Key]; ok {
			view.Paid = rec.Paid
			updated := rec.UpdatedAt
			view.PaidUpdatedAt = &updated
		}
		sum.Settlements = append(sum.Settlements, view)
	}
	return sum, nil
}
