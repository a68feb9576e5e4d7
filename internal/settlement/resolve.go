package settlement

import (
	"housesplit/internal/core"
)

// Resolution is the share set that applies to a month and where it came from.
type Resolution struct {
	Month         core.MonthKey
	Shares        []core.Share
	Source        core.SharesSource
	InheritedFrom core.MonthKey
}

// ResolveSharesForMonth picks the shares that apply to month.
//
// Explicit non-empty shares for the month win. Otherwise the shares of the
// latest earlier month that has any are inherited. Otherwise everyone in
// participants gets an equal split. The result is always normalized.
func ResolveSharesForMonth(month core.MonthKey, explicit map[core.MonthKey][]core.Share, participants []core.Participant) (Resolution, error) {
	res := Resolution{Month: month, Source: core.SourceNone}

	if shares := explicit[month]; len(shares) > 0 {
		normalized, err := NormalizeShares(shares)
		if err != nil {
			return res, err
		}
		res.Shares = normalized
		res.Source = core.SourceExplicit
		return res, nil
	}

	if from, ok := latestBefore(month, explicit); ok {
		normalized, err := NormalizeShares(explicit[from])
		if err != nil {
			return res, err
		}
		res.Shares = normalized
		res.Source = core.SourceInherited
		res.InheritedFrom = from
		return res, nil
	}

	if len(participants) == 0 {
		return res, nil
	}
	ids := make([]int64, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	normalized, err := NormalizeShares(EqualShares(ids))
	if err != nil {
		return res, err
	}
	res.Shares = normalized
	res.Source = core.SourceEqual
	return res, nil
}

// latestBefore finds the greatest key strictly earlier than month that has
// non-empty shares. Map iteration order does not matter since only the
// maximum is kept.
func latestBefore(month core.MonthKey, explicit map[core.MonthKey][]core.Share) (core.MonthKey, bool) {
	var (
		best  core.MonthKey
		found bool
	)
	for k, shares := range explicit {
		if len(shares) == 0 || !k.Before(month) {
			continue
		}
		if !found || best.Before(k) {
			best, found = k, true
		}
	}
	return best, found
}

// Participants joins resolved shares with people names, in share order.
// Shares for unknown people keep an empty name.
func Participants(shares []core.Share, people []core.Person) []core.Participant {
	names := core.PersonNames(people)
	out := make([]core.Participant, len(shares))
	for i, s := range shares {
		out[i] = core.Participant{ID: s.PersonID, Name: names[s.PersonID], Percent: s.Percent}
	}
	return out
}
