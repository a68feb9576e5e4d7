// Package settlement computes monthly balances and the transfers that settle
// them.
//
// Everything here is pure: callers pass in snapshots of expenses and shares
// and receive freshly allocated results. Percentages are basis points and
// money is cents, so every threshold below is an exact integer comparison.
package settlement

import (
	"errors"
	"sort"

	"housesplit/internal/core"
)

var (
	// ErrInvalidShareTotal is returned when shares cannot be rescaled to 100%
	// because their total is zero or a share is negative.
	ErrInvalidShareTotal = errors.New("invalid share total")

	// ErrEmptyParticipantSet is returned alongside an empty balance list when
	// there are expenses to split but nobody to split them between.
	ErrEmptyParticipantSet = errors.New("empty participant set")
)

const (
	// RescaleTolerance is how far from 100% a total may drift before the
	// shares are rescaled proportionally (0.1%).
	RescaleTolerance core.Percent = 10
	// ResidualTolerance is the largest rounding residual left uncorrected
	// (0.01%).
	ResidualTolerance core.Percent = 1
)

// NormalizeShares returns shares that sum to exactly 100%, each rounded to
// one decimal place. Totals more than 0.1% away from 100% are first rescaled
// proportionally. Any rounding residual is added to the largest share, the
// first one winning ties. When that would take the largest share below zero,
// which happens with well over a hundred participants, the residual is
// instead spread one step at a time across the largest shares. Input order is preserved and the input slice is
// not modified.
func NormalizeShares(shares []core.Share) ([]core.Share, error) {
	total, err := checkedTotal(shares)
	if err != nil {
		return nil, err
	}

	out := make([]core.Share, len(shares))
	copy(out, shares)

	rescale := abs(core.FullShare-total) > RescaleTolerance
	for i := range out {
		if rescale {
			out[i].Percent = roundRatio(int64(out[i].Percent)*int64(core.FullShare), int64(total), core.OneDecimal)
		} else {
			out[i].Percent = roundTo(out[i].Percent, core.OneDecimal)
		}
	}

	applyResidual(out, core.OneDecimal)
	return out, nil
}

// CorrectResidual rounds shares to two decimal places and moves the whole
// gap to 100% onto the largest share, without proportional rescaling. It is
// the correction applied when a user saves a month's shares: {33, 33, 33}
// becomes {34, 33, 33}.
func CorrectResidual(shares []core.Share) ([]core.Share, error) {
	if _, err := checkedTotal(shares); err != nil {
		return nil, err
	}

	out := make([]core.Share, len(shares))
	copy(out, shares)
	for i := range out {
		out[i].Percent = roundTo(out[i].Percent, core.TwoDecimals)
	}
	applyResidual(out, core.TwoDecimals)
	return out, nil
}

// EqualShares splits 100% evenly across the given people.
func EqualShares(personIDs []int64) []core.Share {
	if len(personIDs) == 0 {
		return nil
	}
	each := core.FullShare / core.Percent(len(personIDs))
	out := make([]core.Share, len(personIDs))
	for i, id := range personIDs {
		out[i] = core.Share{PersonID: id, Percent: each}
	}
	return out
}

func checkedTotal(shares []core.Share) (core.Percent, error) {
	var total core.Percent
	for _, s := range shares {
		if s.Percent < 0 {
			return 0, ErrInvalidShareTotal
		}
		total += s.Percent
	}
	if total <= 0 {
		return 0, ErrInvalidShareTotal
	}
	return total, nil
}

// applyResidual adds 100% minus the current total to the largest share when
// the gap exceeds ResidualTolerance. No share is left below zero.
func applyResidual(shares []core.Share, step core.Percent) {
	if len(shares) == 0 {
		return
	}
	residual := core.FullShare - core.SumPercent(shares)
	if abs(residual) <= ResidualTolerance {
		return
	}
	largest := 0
	for i := 1; i < len(shares); i++ {
		if shares[i].Percent > shares[largest].Percent {
			largest = i
		}
	}
	if shares[largest].Percent+residual >= 0 {
		shares[largest].Percent += residual
		return
	}
	spreadOvershoot(shares, -residual, step)
}

// spreadOvershoot takes excess off the shares in step sized pieces, largest
// shares first and round robin, never taking a share below zero.
func spreadOvershoot(shares []core.Share, excess, step core.Percent) {
	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return shares[order[a]].Percent > shares[order[b]].Percent
	})

	for excess > 0 {
		progressed := false
		for _, i := range order {
			take := min(step, excess, shares[i].Percent)
			if take <= 0 {
				continue
			}
			shares[i].Percent -= take
			excess -= take
			progressed = true
			if excess == 0 {
				return
			}
		}
		if !progressed {
			return
		}
	}
}

// roundRatio returns num/den rounded half up to a multiple of step.
func roundRatio(num, den int64, step core.Percent) core.Percent {
	s := int64(step)
	q := (2*num + den*s) / (2 * den * s)
	return core.Percent(q * s)
}

// roundTo rounds a non-negative p half up to a multiple of step.
func roundTo(p, step core.Percent) core.Percent {
	return (p + step/2) / step * step
}

func abs[T ~int64](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
