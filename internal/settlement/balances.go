package settlement

import (
	"sort"

	"github.com/shopspring/decimal"

	"housesplit/internal/core"
)

// Result holds one month's balances and any payer ids that matched no share.
type Result struct {
	Total           core.Money
	Balances        []core.Balance
	UnmatchedPayers []int64
}

// ComputeBalances splits the total cost of expenses according to shares and
// returns, per share holder in share order, what they paid, what they owe
// and the difference.
//
// Owed amounts are allocated in whole cents by largest remainder so they add
// up to the total exactly, which keeps net balances summing to zero.
// Expenses paid by someone without a share are left out of paid and their
// payer ids are reported in UnmatchedPayers.
//
// When there are expenses but no shares, the balance list is empty and
// ErrEmptyParticipantSet is returned so callers can surface the mismatch.
func ComputeBalances(expenses []core.Expense, shares []core.Share) (Result, error) {
	res := Result{Total: core.SumCosts(expenses)}

	if len(shares) == 0 {
		res.Balances = []core.Balance{}
		if len(expenses) > 0 {
			res.UnmatchedPayers = unmatched(expenses, nil)
			return res, ErrEmptyParticipantSet
		}
		return res, nil
	}

	index := make(map[int64]int, len(shares))
	for i, s := range shares {
		if _, dup := index[s.PersonID]; !dup {
			index[s.PersonID] = i
		}
	}

	paid := make([]int64, len(shares))
	for _, e := range expenses {
		if i, ok := index[e.PersonID]; ok {
			paid[i] += e.Cost.Cents
		}
	}
	res.UnmatchedPayers = unmatched(expenses, index)

	owed := allocate(res.Total.Cents, shares)
	res.Balances = make([]core.Balance, len(shares))
	for i, s := range shares {
		res.Balances[i] = core.Balance{
			PersonID: s.PersonID,
			Paid:     core.Cents(paid[i]),
			Owed:     core.Cents(owed[i]),
			Net:      core.Cents(paid[i] - owed[i]),
		}
	}
	return res, nil
}

// allocate gives each share percent/100 of total in whole cents. Each share
// first gets the floor of its exact portion; leftover cents go one at a time
// to the largest fractional remainders, earlier shares winning ties. With
// shares summing to 100% the result adds up to total exactly. Products are
// taken in decimal so large totals cannot overflow int64.
func allocate(total int64, shares []core.Share) []int64 {
	out := make([]int64, len(shares))
	sum := int64(core.SumPercent(shares))
	if total == 0 || sum <= 0 {
		return out
	}
	full := decimal.NewFromInt(int64(core.FullShare))
	exact := decimal.NewFromInt(total)
	target := exact.Mul(decimal.NewFromInt(sum)).Div(full).Round(0).IntPart()

	rems := make([]int64, len(shares))
	var given int64
	for i, s := range shares {
		q, r := exact.Mul(decimal.NewFromInt(int64(s.Percent))).QuoRem(full, 0)
		out[i] = q.IntPart()
		rems[i] = r.IntPart()
		given += out[i]
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rems[order[a]] > rems[order[b]]
	})
	for left, k := target-given, 0; left > 0; left, k = left-1, k+1 {
		out[order[k%len(order)]]++
	}
	return out
}

func unmatched(expenses []core.Expense, index map[int64]int) []int64 {
	seen := map[int64]struct{}{}
	var out []int64
	for _, e := range expenses {
		if _, ok := index[e.PersonID]; ok {
			continue
		}
		if _, dup := seen[e.PersonID]; dup {
			continue
		}
		seen[e.PersonID] = struct{}{}
		out = append(out, e.PersonID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WithNames fills in balance names from people; unknown ids keep an empty
// name.
func WithNames(balances []core.Balance, people []core.Person) []core.Balance {
	names := core.PersonNames(people)
	for i := range balances {
		balances[i].Name = names[balances[i].PersonID]
	}
	return balances
}
