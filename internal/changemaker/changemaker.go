// Package changemaker implements ChangeMaker (spec component F): pure
// functions computing bill/coin breakdowns for an amount. Nothing in
// this package touches Inventory or I/O; Orchestrator reserves the
// resulting breakdowns against the live Inventory separately.
package changemaker

import "sort"

// Breakdown maps denomination to count.
type Breakdown map[int]int

// Total sums denom*count across the breakdown.
func (b Breakdown) Total() int {
	sum := 0
	for denom, n := range b {
		sum += denom * n
	}
	return sum
}

// Denoms returns the breakdown's denominations in descending order, the
// fixed dispense order Orchestrator walks (largest first).
func (b Breakdown) Denoms() []int {
	out := make([]int, 0, len(b))
	for denom := range b {
		out = append(out, denom)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// AllBillDenoms and AllCoinDenoms are the machine's full denomination
// sets, used when a caller passes a nil selection ("auto" per §4.F; see
// resolveSelection).
var (
	AllBillDenoms = []int{1000, 500, 200, 100, 50, 20}
	AllCoinDenoms = []int{20, 10, 5, 1}
)

func descending(denoms []int) []int {
	out := append([]int(nil), denoms...)
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// simulateDispense implements spec §4.F's algorithm against a mutable
// stock copy: the single-denom-with-fallback path when exactly one denom
// is selected, otherwise the multi-denom fair-distribution path.
func simulateDispense(amount int, denoms []int, allDenoms []int, stock map[int]int) (Breakdown, int) {
	out := Breakdown{}
	remaining := amount
	denoms = descending(denoms)

	if len(denoms) == 1 {
		denom := denoms[0]
		available := stock[denom]
		needed := remaining / denom
		toUse := min(available, needed)
		if toUse > 0 {
			out[denom] = toUse
			remaining -= denom * toUse
			stock[denom] -= toUse
		}

		for _, smaller := range descending(allDenoms) {
			if remaining <= 0 {
				break
			}
			if smaller >= denom {
				continue
			}
			available := stock[smaller]
			needed := remaining / smaller
			toUse := min(available, needed)
			if toUse > 0 {
				out[smaller] += toUse
				remaining -= smaller * toUse
				stock[smaller] -= toUse
			}
		}
		return out, remaining
	}

	for remaining > 0 {
		progress := false
		for _, denom := range denoms {
			if remaining <= 0 {
				break
			}
			if remaining >= denom && stock[denom] > 0 {
				out[denom]++
				remaining -= denom
				stock[denom]--
				progress = true
			}
		}
		if !progress {
			break
		}
	}
	return out, remaining
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func copyStock(stock map[int]int) map[int]int {
	out := make(map[int]int, len(stock))
	for k, v := range stock {
		out[k] = v
	}
	return out
}

// resolveSelection treats a nil selection as "auto" (the full domain),
// but a non-nil, empty selection as "caller already resolved this to
// nothing usable" and leaves it empty. Orchestrator always passes an
// already-resolved, non-nil slice (see AvailableDenoms/ResolveSelection),
// so only a direct caller passing literal nil gets the auto behavior.
func resolveSelection(selected, all []int) []int {
	if selected == nil {
		return all
	}
	return selected
}

// BillsForAmount attempts bill-only dispensing first; any non-zero
// residue is retried against coins strictly smaller than the minimum
// selected bill denomination (spec §4.F's combined-flow rule), so
// coin-only and bill-only change never compete at the same value. An
// undispensable amount returns two empty breakdowns.
func BillsForAmount(amount int, selectedBillDenoms []int, billStock, coinStock map[int]int) (Breakdown, Breakdown) {
	if amount <= 0 {
		return Breakdown{}, Breakdown{}
	}

	billDenoms := resolveSelection(selectedBillDenoms, AllBillDenoms)
	if len(billDenoms) == 0 {
		return Breakdown{}, Breakdown{}
	}

	billCopy := copyStock(billStock)
	billBreakdown, residue := simulateDispense(amount, billDenoms, AllBillDenoms, billCopy)

	if residue <= 0 {
		return billBreakdown, Breakdown{}
	}

	minBill := billDenoms[0]
	for _, d := range billDenoms {
		if d < minBill {
			minBill = d
		}
	}
	coinDenoms := make([]int, 0, len(AllCoinDenoms))
	for _, d := range AllCoinDenoms {
		if d < minBill {
			coinDenoms = append(coinDenoms, d)
		}
	}

	coinCopy := copyStock(coinStock)
	coinBreakdown, coinResidue := simulateDispense(residue, coinDenoms, AllCoinDenoms, coinCopy)
	if coinResidue > 0 {
		return Breakdown{}, Breakdown{}
	}
	return billBreakdown, coinBreakdown
}

// CoinsForAmount dispenses amount entirely in coins. If amount is exactly
// 20 and the caller selected specific coin denominations, 20-peso coins
// are excluded from the selection (spec §4.F special rule: never return
// the same-value coin the user tried to break).
func CoinsForAmount(amount int, selectedCoinDenoms []int, coinStock map[int]int) Breakdown {
	if amount <= 0 {
		return Breakdown{}
	}

	denoms := resolveSelection(selectedCoinDenoms, AllCoinDenoms)
	if amount == 20 && len(selectedCoinDenoms) > 0 {
		filtered := make([]int, 0, len(denoms))
		for _, d := range denoms {
			if d != 20 {
				filtered = append(filtered, d)
			}
		}
		denoms = filtered
	}

	coinCopy := copyStock(coinStock)
	breakdown, residue := simulateDispense(amount, denoms, AllCoinDenoms, coinCopy)
	if residue > 0 {
		return Breakdown{}
	}
	return breakdown
}
