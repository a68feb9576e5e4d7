package core

import "time"

// SharesSource records where a month's shares came from.
type SharesSource string

const (
	SourceExplicit  SharesSource = "explicit"
	SourceInherited SharesSource = "inherited"
	SourceEqual     SharesSource = "equal"
	SourceNone      SharesSource = "none"
)

// SettlementView is a settlement with its persisted paid flag merged in.
type SettlementView struct {
	Settlement
	Paid          bool       `json:"paid"`
	PaidUpdatedAt *time.Time `json:"paid_updated_at,omitempty"`
}

// MonthSummary is the full settlement picture for one month.
type MonthSummary struct {
	MonthKey        MonthKey         `json:"monthKey"`
	Total           Money            `json:"total"`
	ExpenseCount    int              `json:"expenseCount"`
	Participants    []Participant    `json:"participants"`
	SharesSource    SharesSource     `json:"sharesSource"`
	InheritedFrom   MonthKey         `json:"inheritedFrom,omitempty"`
	Balances        []Balance        `json:"balances"`
	Settlements     []SettlementView `json:"settlements"`
	UnmatchedPayers []int64          `json:"unmatchedPayers,omitempty"`
	Warning         string           `json:"warning,omitempty"`
	ComputedAt      time.Time        `json:"computedAt"`
}

// Outstanding totals the settlements that are not marked paid.
func (s MonthSummary) Outstanding() Money {
	var total Money
	for _, st := range s.Settlements {
		if !st.Paid {
			total = total.Add(st.Amount)
		}
	}
	return total
}
