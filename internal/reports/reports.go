// Package reports aggregates expenses for trend and per-person views.
package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"housesplit/internal/core"
)

// Trend labels for Growth.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// trendThreshold is the month-over-month change, in percent, beyond which a
// trend is no longer stable.
var trendThreshold = decimal.NewFromInt(5)

type MonthTotal struct {
	MonthKey core.MonthKey `json:"monthKey"`
	Total    core.Money    `json:"total"`
	Count    int           `json:"count"`
}

type PersonTotal struct {
	PersonID   int64           `json:"id"`
	Name       string          `json:"name"`
	Total      core.Money      `json:"total"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

type PersonNet struct {
	PersonID int64        `json:"id"`
	Name     string       `json:"name"`
	Paid     core.Money   `json:"paid"`
	Owes     core.Money   `json:"owes"`
	Percent  core.Percent `json:"percentageShare"`
}

type GrowthMetrics struct {
	MonthOverMonth decimal.Decimal `json:"monthOverMonth"`
	Trend          string          `json:"trend"`
	Growth         decimal.Decimal `json:"growth"`
}

type SummaryStats struct {
	TotalSpending  core.Money  `json:"totalSpending"`
	TotalExpenses  int         `json:"totalExpenses"`
	AverageExpense core.Money  `json:"averageExpense"`
	MonthlyAverage core.Money  `json:"monthlyAverage"`
	HighestMonth   *MonthTotal `json:"highestMonth"`
	CurrentMonth   *MonthTotal `json:"currentMonth"`
}

// MonthlySpending groups expenses by month in chronological order.
func MonthlySpending(expenses []core.Expense) []MonthTotal {
	byMonth := map[core.MonthKey]*MonthTotal{}
	for _, e := range expenses {
		k := e.Date.MonthKey()
		mt, ok := byMonth[k]
		if !ok {
			mt = &MonthTotal{MonthKey: k}
			byMonth[k] = mt
		}
		mt.Total = mt.Total.Add(e.Cost)
		mt.Count++
	}

	out := make([]MonthTotal, 0, len(byMonth))
	for _, mt := range byMonth {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthKey < out[j].MonthKey })
	return out
}

// PersonSpending reports what each person paid, highest first. Every person
// is listed, including those who paid nothing.
func PersonSpending(expenses []core.Expense, people []core.Person) []PersonTotal {
	if len(expenses) == 0 || len(people) == 0 {
		return []PersonTotal{}
	}

	index := make(map[int64]int, len(people))
	out := make([]PersonTotal, len(people))
	for i, p := range people {
		index[p.ID] = i
		out[i] = PersonTotal{PersonID: p.ID, Name: p.Name, Percentage: decimal.Zero}
	}
	total := core.SumCosts(expenses)
	for _, e := range expenses {
		if i, ok := index[e.PersonID]; ok {
			out[i].Total = out[i].Total.Add(e.Cost)
			out[i].Count++
		}
	}
	if total.Cents > 0 {
		for i := range out {
			out[i].Percentage = out[i].Total.Decimal().Div(total.Decimal()).Mul(decimal.NewFromInt(100)).Round(2)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out
}

// PersonNetSpending reports what each participant paid against what their
// share makes them owe, highest owed first. Participants with a zero share
// are left out. When participants is empty everyone in people gets an equal
// share.
func PersonNetSpending(expenses []core.Expense, people []core.Person, participants []core.Participant) []PersonNet {
	if len(expenses) == 0 || len(people) == 0 {
		return []PersonNet{}
	}
	if len(participants) == 0 {
		each := core.FullShare / core.Percent(len(people))
		participants = make([]core.Participant, len(people))
		for i, p := range people {
			participants[i] = core.Participant{ID: p.ID, Name: p.Name, Percent: each}
		}
	}

	total := core.SumCosts(expenses)
	out := make([]PersonNet, 0, len(participants))
	index := map[int64]int{}
	for _, p := range participants {
		if p.Percent <= 0 {
			continue
		}
		index[p.ID] = len(out)
		owes := total.Decimal().Mul(p.Percent.Decimal()).Div(decimal.NewFromInt(100))
		out = append(out, PersonNet{
			PersonID: p.ID,
			Name:     p.Name,
			Owes:     core.MoneyFromDecimal(owes),
			Percent:  p.Percent,
		})
	}
	for _, e := range expenses {
		if i, ok := index[e.PersonID]; ok {
			out[i].Paid = out[i].Paid.Add(e.Cost)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Owes.Cents > out[j].Owes.Cents })
	return out
}

// Growth compares the last two months of a MonthlySpending series.
func Growth(months []MonthTotal) GrowthMetrics {
	stable := GrowthMetrics{MonthOverMonth: decimal.Zero, Trend: TrendStable, Growth: decimal.Zero}
	if len(months) < 2 {
		return stable
	}
	current, previous := months[len(months)-1], months[len(months)-2]
	if previous.Total.Cents <= 0 {
		return stable
	}

	change := current.Total.Decimal().Sub(previous.Total.Decimal()).
		Div(previous.Total.Decimal()).
		Mul(decimal.NewFromInt(100)).
		Round(2)

	trend := TrendStable
	switch {
	case change.GreaterThan(trendThreshold):
		trend = TrendIncreasing
	case change.LessThan(trendThreshold.Neg()):
		trend = TrendDecreasing
	}
	return GrowthMetrics{MonthOverMonth: change, Trend: trend, Growth: change.Abs()}
}

// Summary computes headline statistics. months should come from
// MonthlySpending over the same expenses and may be empty.
func Summary(expenses []core.Expense, months []MonthTotal) SummaryStats {
	stats := SummaryStats{}
	if len(expenses) == 0 {
		return stats
	}

	stats.TotalSpending = core.SumCosts(expenses)
	stats.TotalExpenses = len(expenses)
	stats.AverageExpense = average(stats.TotalSpending, len(expenses))

	if len(months) > 0 {
		var monthsTotal core.Money
		highest := months[0]
		for _, m := range months {
			monthsTotal = monthsTotal.Add(m.Total)
			if m.Total.Cents > highest.Total.Cents {
				highest = m
			}
		}
		current := months[len(months)-1]
		stats.MonthlyAverage = average(monthsTotal, len(months))
		stats.HighestMonth = &highest
		stats.CurrentMonth = &current
	}
	return stats
}

func average(total core.Money, n int) core.Money {
	return core.MoneyFromDecimal(total.Decimal().Div(decimal.NewFromInt(int64(n))))
}

// FilterRange keeps expenses whose month lies within [from, to]. Empty
// bounds are open.
func FilterRange(expenses []core.Expense, from, to core.MonthKey) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		k := e.Date.MonthKey()
		if from != "" && k < from {
			continue
		}
		if to != "" && k > to {
			continue
		}
		out = append(out, e)
	}
	return out
}
