package settlement

import (
	"strconv"

	"housesplit/internal/core"
)

// MinTransfer is the smallest amount worth settling: one cent. A balance of
// exactly one cent is settled, not dropped as rounding noise.
const MinTransfer int64 = 1

// SettlementKey identifies the transfer from debtor to creditor. It is the
// key payment records are stored under, scoped by month by the caller.
func SettlementKey(debtorID, creditorID int64) string {
	return strconv.FormatInt(debtorID, 10) + "-" + strconv.FormatInt(creditorID, 10)
}

// ComputeSettlements derives the transfers that bring every net balance to
// zero.
//
// Creditors are visited in input order and, for each, debtors in input
// order. Every eligible pair settles the smaller of the two outstanding
// amounts, so each transfer clears at least one side and at most n-1
// transfers are produced. Because the nets of a month add up to zero in
// whole cents, one ordered pass settles everyone. The same balances in the
// same order always yield the same transfers in the same order.
func ComputeSettlements(balances []core.Balance) []core.Settlement {
	remaining := make([]int64, len(balances))
	for i, b := range balances {
		remaining[i] = b.Net.Cents
	}

	settlements := []core.Settlement{}
	for i := range balances {
		for j := range balances {
			if i == j {
				continue
			}
			if remaining[i] < MinTransfer {
				break
			}
			if -remaining[j] < MinTransfer {
				continue
			}
			amount := min(remaining[i], -remaining[j])
			debtor, creditor := balances[j].PersonID, balances[i].PersonID
			settlements = append(settlements, core.Settlement{
				FromID: debtor,
				ToID:   creditor,
				Amount: core.Cents(amount),
				Key:    SettlementKey(debtor, creditor),
			})
			remaining[i] -= amount
			remaining[j] += amount
		}
	}
	return settlements
}

// Apply returns the nets left after executing the given settlements.
func Apply(balances []core.Balance, settlements []core.Settlement) map[int64]int64 {
	left := make(map[int64]int64, len(balances))
	for _, b := range balances {
		left[b.PersonID] += b.Net.Cents
	}
	for _, s := range settlements {
		left[s.FromID] += s.Amount.Cents
		left[s.ToID] -= s.Amount.Cents
	}
	return left
}
