package kiosktest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/binsoy69/money-converter/internal/changemaker"
	"github.com/binsoy69/money-converter/internal/inventory"
	"github.com/binsoy69/money-converter/internal/store"
)

// TestInventoryAddDeductRoundTrips checks the quantified round-trip
// property from spec §8: add(d,k) then deduct(d,k) leaves the snapshot
// unchanged.
func TestInventoryAddDeductRoundTrips(t *testing.T) {
	inv, err := inventory.New("bill", changemaker.AllBillDenoms,
		map[int]int{100: 10, 50: 10}, store.New(filepath.Join(t.TempDir(), "bills.json")))
	require.NoError(t, err)

	before := inv.Get()
	require.NoError(t, inv.Add(100, 4))
	ok, err := inv.Deduct(100, 4)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, before, inv.Get())
}

// TestInventoryReserveBulkRollbackRoundTrips checks spec §8's other
// round-trip law: reserve_bulk(B) then rollback(B) leaves the snapshot
// unchanged.
func TestInventoryReserveBulkRollbackRoundTrips(t *testing.T) {
	inv, err := inventory.New("coin", changemaker.AllCoinDenoms,
		map[int]int{1: 20, 5: 20, 10: 20, 20: 20}, store.New(filepath.Join(t.TempDir(), "coins.json")))
	require.NoError(t, err)

	before := inv.Get()
	breakdown := inventory.Breakdown{10: 3, 5: 2, 1: 7}

	ok, err := inv.ReserveBulk(breakdown)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, before, inv.Get())

	require.NoError(t, inv.Rollback(breakdown))
	require.Equal(t, before, inv.Get())
}

// TestInventoryReloadMatchesQuiescentSnapshot checks spec §8's
// persistence invariant: reloading the JSON store at a quiescent point
// (no mutation in flight) equals the in-memory snapshot that produced it.
func TestInventoryReloadMatchesQuiescentSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bills.json")

	inv, err := inventory.New("bill", changemaker.AllBillDenoms,
		map[int]int{100: 10, 50: 10}, store.New(path))
	require.NoError(t, err)
	require.NoError(t, inv.Add(100, 3))
	ok, err := inv.Deduct(50, 2)
	require.NoError(t, err)
	require.True(t, ok)

	want := inv.Get()

	reloaded, err := inventory.New("bill", changemaker.AllBillDenoms,
		map[int]int{100: 10, 50: 10}, store.New(path))
	require.NoError(t, err)
	require.Equal(t, want, reloaded.Get())
}

// TestChangeMakerConservationAndFeasibility checks spec §8's ChangeMaker
// laws: the breakdown's total equals the requested amount, and every
// denomination used never exceeds the stock it was drawn from.
func TestChangeMakerConservationAndFeasibility(t *testing.T) {
	billStock := map[int]int{100: 10, 50: 10, 20: 10}
	coinStock := map[int]int{10: 10, 5: 10, 1: 10}

	bills, coins := changemaker.BillsForAmount(287, nil, billStock, coinStock)
	require.NotEmpty(t, bills)
	require.Equal(t, 287, bills.Total()+coins.Total())

	for denom, count := range bills {
		require.LessOrEqual(t, count, billStock[denom])
	}
	for denom, count := range coins {
		require.LessOrEqual(t, count, coinStock[denom])
	}
}

// TestChangeMakerMonotonicity checks spec §8's monotonicity law: adding
// stock never turns a feasible amount infeasible.
func TestChangeMakerMonotonicity(t *testing.T) {
	lowStock := map[int]int{100: 1, 50: 1}
	bills, coins := changemaker.BillsForAmount(150, nil, lowStock, map[int]int{})
	require.Equal(t, 150, bills.Total()+coins.Total())

	higherStock := map[int]int{100: 5, 50: 5}
	bills2, coins2 := changemaker.BillsForAmount(150, nil, higherStock, map[int]int{})
	require.Equal(t, 150, bills2.Total()+coins2.Total())
}

// TestChangeMakerZeroAmountIsEmptyNotError checks spec §8's boundary
// case: amount 0 returns an empty breakdown, not an error.
func TestChangeMakerZeroAmountIsEmptyNotError(t *testing.T) {
	bills, coins := changemaker.BillsForAmount(0, nil, map[int]int{100: 10}, map[int]int{1: 10})
	require.Empty(t, bills)
	require.Empty(t, coins)

	coinsOnly := changemaker.CoinsForAmount(0, nil, map[int]int{1: 10})
	require.Empty(t, coinsOnly)
}

// TestChangeMakerExcludesSameValueCoinAtTwenty checks spec §8's boundary
// rule: breaking exactly 20 with a selected coin set never returns the
// 20-peso coin itself.
func TestChangeMakerExcludesSameValueCoinAtTwenty(t *testing.T) {
	coins := changemaker.CoinsForAmount(20, []int{20, 10, 5, 1}, map[int]int{20: 10, 10: 10, 5: 10, 1: 10})
	require.Equal(t, 20, coins.Total())
	require.Zero(t, coins[20])
}

// TestChangeMakerSingleDenomFallsBackToSmaller checks spec §8's boundary
// rule: a single selected denomination with insufficient stock falls
// back to strictly smaller denominations rather than failing outright.
func TestChangeMakerSingleDenomFallsBackToSmaller(t *testing.T) {
	billStock := map[int]int{100: 1, 50: 10, 20: 10}
	bills, coins := changemaker.BillsForAmount(250, []int{100}, billStock, map[int]int{})

	require.Equal(t, 250, bills.Total()+coins.Total())
	require.Equal(t, 1, bills[100])
	require.LessOrEqual(t, bills[100], billStock[100])
}
