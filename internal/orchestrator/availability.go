package orchestrator

import "sort"

// SafetyThreshold is the minimum live stock a denomination needs to be
// considered usable at all (spec §9 Open Question 4's conservative
// default).
const SafetyThreshold = 5

// StockReader is the read-only subset of Inventory availability checks
// need.
type StockReader interface {
	Get() map[int]int
}

// AvailableDenoms implements spec §4.G's "denomination selection UI
// contract": a candidate denom is available iff its value is ≤
// amountToDispense and its live stock is ≥ SafetyThreshold. Results are
// sorted descending.
func AvailableDenoms(allDenoms []int, stock map[int]int, amountToDispense int) []int {
	out := make([]int, 0, len(allDenoms))
	for _, d := range allDenoms {
		if d <= amountToDispense && stock[d] >= SafetyThreshold {
			out = append(out, d)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// ResolveSelection turns a user denom selection into the effective set to
// use: an empty selection means "auto" (all currently available denoms).
func ResolveSelection(selected, available []int) []int {
	if len(selected) == 0 {
		return available
	}
	return selected
}

// MeetsSafetyThreshold reports whether at least one denom in allDenoms
// has stock ≥ SafetyThreshold, the gate a flow checks before it may
// start (spec §9 Open Question 4).
func MeetsSafetyThreshold(allDenoms []int, stock map[int]int) bool {
	for _, d := range allDenoms {
		if stock[d] >= SafetyThreshold {
			return true
		}
	}
	return false
}
