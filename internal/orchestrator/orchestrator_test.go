package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/binsoy69/money-converter/internal/billacceptor"
	"github.com/binsoy69/money-converter/internal/inventory"
)

type fakeInventory struct {
	counts map[int]int
}

func (f *fakeInventory) Get() inventory.Breakdown {
	out := make(inventory.Breakdown, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out
}

func (f *fakeInventory) Add(denom, n int) error {
	f.counts[denom] += n
	return nil
}

func (f *fakeInventory) ReserveBulk(b inventory.Breakdown) (bool, error) {
	for d, c := range b {
		if f.counts[d] < c {
			return false, nil
		}
	}
	for d, c := range b {
		f.counts[d] -= c
	}
	return true, nil
}

func (f *fakeInventory) Rollback(b inventory.Breakdown) error {
	for d, c := range b {
		f.counts[d] += c
	}
	return nil
}

// fakeCoinSession simulates an entire coin session as already complete
// the moment Start is called: if total already meets required, onReached
// fires immediately (mirroring a customer who has already paid); other-
// wise it never fires, simulating a session that falls short and relies
// on the caller's timeout.
type fakeCoinSession struct {
	total    int
	perDenom map[int]int
}

func (f *fakeCoinSession) Start(ctx context.Context, required int, onReached func()) error {
	if onReached != nil && f.total >= required {
		onReached()
	}
	return nil
}
func (f *fakeCoinSession) Stop(ctx context.Context) error { return nil }
func (f *fakeCoinSession) Total() int                     { return f.total }
func (f *fakeCoinSession) PerDenom() map[int]int          { return f.perDenom }

type fakeCoinOut struct {
	dispensed map[int]int
}

func (f *fakeCoinOut) Dispense(ctx context.Context, denom, qty int) (bool, error) {
	if f.dispensed == nil {
		f.dispensed = map[int]int{}
	}
	f.dispensed[denom] += qty
	return true, nil
}

type fakeBillDispenser struct {
	dispensed int
}

func (f *fakeBillDispenser) Dispense(n int) (bool, string, error) {
	f.dispensed += n
	return true, "dispensed", nil
}

type fakeAcceptor struct {
	accepted bool
	denom    int
	reason   billacceptor.Reason
}

func (f *fakeAcceptor) AcceptBill(ctx context.Context, requiredDenom int) (bool, int, billacceptor.Reason, error) {
	return f.accepted, f.denom, f.reason, nil
}

// TestC2BHappyPath mirrors spec §8 scenario 1: bills {20:10,50:10,100:10},
// coins {1:50,5:50,10:50,20:50}; user picks 40 (fee 3, required 43);
// inserts 10+10+10+10+5=45. Expect amount_to_dispense=42, bills={20:2}.
func TestC2BHappyPath(t *testing.T) {
	billInv := &fakeInventory{counts: map[int]int{20: 10, 50: 10, 100: 10}}
	coinInv := &fakeInventory{counts: map[int]int{1: 50, 5: 50, 10: 50, 20: 50}}
	session := &fakeCoinSession{total: 45, perDenom: map[int]int{10: 4, 5: 1}}
	coinOut := &fakeCoinOut{}
	billDispensers := map[int]BillDispenserPort{
		20: &fakeBillDispenser{},
	}

	o := New(Config{
		BillInventory:  billInv,
		CoinInventory:  coinInv,
		CoinSession:    session,
		CoinOut:        coinOut,
		BillDispensers: billDispensers,
	})

	outcome, err := o.RunC2B(context.Background(), 40, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.AmountToDispense != 42 {
		t.Fatalf("amount_to_dispense = %d, want 42", outcome.AmountToDispense)
	}
	if outcome.BillBreakdown[20] != 2 {
		t.Fatalf("expected bill breakdown {20:2}, got %v", outcome.BillBreakdown)
	}
	if billInv.counts[20] != 8 {
		t.Fatalf("expected bills[20]=8 after dispensing 2, got %d", billInv.counts[20])
	}
}

// TestC2BTimeoutRefundsCoins mirrors spec §8 scenario 2: user picks 100
// (required 108), inserts 30, session times out short. Expect a refund
// and no bill dispensed.
func TestC2BTimeoutRefundsCoins(t *testing.T) {
	billInv := &fakeInventory{counts: map[int]int{20: 10, 50: 10, 100: 10}}
	coinInv := &fakeInventory{counts: map[int]int{1: 50, 5: 50, 10: 50, 20: 50}}
	session := &fakeCoinSession{total: 30, perDenom: map[int]int{10: 3}}
	coinOut := &fakeCoinOut{}

	o := New(Config{
		BillInventory:      billInv,
		CoinInventory:      coinInv,
		CoinSession:        session,
		CoinOut:            coinOut,
		CoinSessionTimeout: 10 * time.Millisecond,
	})

	outcome, err := o.RunC2B(context.Background(), 100, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Refunded {
		t.Fatal("expected a refund outcome")
	}
	if coinOut.dispensed[10] != 3 {
		t.Fatalf("expected 3x10 refunded, got %v", coinOut.dispensed)
	}
	if billInv.counts[20] != 10 {
		t.Fatalf("expected no bill committed, counts=%v", billInv.counts)
	}
}

// TestB2CFeeFromBill mirrors spec §8 scenario 3: bill stock {100:5}, coin
// stock {1:20,5:20,10:20,20:0}; user inserts a 100 bill and deducts the
// fee (5) from the bill. Expect amount_to_dispense=95, coins summing 95.
func TestB2CFeeFromBill(t *testing.T) {
	billInv := &fakeInventory{counts: map[int]int{100: 5}}
	coinInv := &fakeInventory{counts: map[int]int{1: 20, 5: 20, 10: 20, 20: 0}}
	acceptor := &fakeAcceptor{accepted: true, denom: 100, reason: billacceptor.ReasonAccepted}

	o := New(Config{
		BillInventory: billInv,
		CoinInventory: coinInv,
		Acceptor:      acceptor,
		CoinOut:       &fakeCoinOut{},
	})

	outcome, err := o.RunB2C(context.Background(), 100, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.AmountToDispense != 95 {
		t.Fatalf("amount_to_dispense = %d, want 95", outcome.AmountToDispense)
	}
	if outcome.CoinBreakdown.Total() != 95 {
		t.Fatalf("coin breakdown totals %d, want 95 (%v)", outcome.CoinBreakdown.Total(), outcome.CoinBreakdown)
	}
}

// fakeFailingBillDispenser fails every Dispense call with reason.
type fakeFailingBillDispenser struct {
	reason string
}

func (f *fakeFailingBillDispenser) Dispense(n int) (bool, string, error) {
	return false, f.reason, nil
}

// TestPlanAndDispenseBillsRollsBackUndispensedRemainderOnFailure mirrors
// spec §4.G's "roll back the remaining reservations only" rule: of a
// two-denom breakdown, the first (larger) denom dispenses successfully
// and must stay deducted, while the second (which never physically
// left the machine) must be rolled back.
func TestPlanAndDispenseBillsRollsBackUndispensedRemainderOnFailure(t *testing.T) {
	billInv := &fakeInventory{counts: map[int]int{100: 10, 50: 10}}
	coinInv := &fakeInventory{counts: map[int]int{1: 50, 5: 50, 10: 50, 20: 50}}
	session := &fakeCoinSession{total: 160, perDenom: map[int]int{20: 8}}
	coinOut := &fakeCoinOut{}
	billDispensers := map[int]BillDispenserPort{
		100: &fakeBillDispenser{},
		50:  &fakeFailingBillDispenser{reason: "jam"},
	}

	o := New(Config{
		BillInventory:  billInv,
		CoinInventory:  coinInv,
		CoinSession:    session,
		CoinOut:        coinOut,
		BillDispensers: billDispensers,
	})

	_, err := o.RunC2B(context.Background(), 150, []int{100, 50})
	if err == nil {
		t.Fatal("expected an error from the failing 50 dispenser")
	}
	if billInv.counts[100] != 9 {
		t.Fatalf("expected the dispensed 100 to stay deducted, counts[100]=%d", billInv.counts[100])
	}
	if billInv.counts[50] != 10 {
		t.Fatalf("expected the undispensed 50 reservation rolled back, counts[50]=%d", billInv.counts[50])
	}
}

// TestRunB2BRefusesBelowSafetyThreshold mirrors Open Question 4's gate,
// now applied to B2B's bill payout side the same way RunC2B already
// gated its bill side.
func TestRunB2BRefusesBelowSafetyThreshold(t *testing.T) {
	billInv := &fakeInventory{counts: map[int]int{500: 2, 200: 1, 100: 0, 50: 0, 20: 0}}
	coinInv := &fakeInventory{counts: map[int]int{1: 50, 5: 50, 10: 50, 20: 50}}
	acceptor := &fakeAcceptor{accepted: true, denom: 100, reason: billacceptor.ReasonAccepted}

	o := New(Config{
		BillInventory: billInv,
		CoinInventory: coinInv,
		Acceptor:      acceptor,
		CoinOut:       &fakeCoinOut{},
	})

	_, err := o.RunB2B(context.Background(), 100, nil, true)
	if err == nil {
		t.Fatal("expected ErrBelowSafetyThreshold, got nil")
	}
}

// TestRunB2CRefusesBelowSafetyThreshold is RunB2B's test above, mirrored
// for B2C's coin payout side.
func TestRunB2CRefusesBelowSafetyThreshold(t *testing.T) {
	billInv := &fakeInventory{counts: map[int]int{100: 10}}
	coinInv := &fakeInventory{counts: map[int]int{1: 2, 5: 1, 10: 0, 20: 0}}
	acceptor := &fakeAcceptor{accepted: true, denom: 100, reason: billacceptor.ReasonAccepted}

	o := New(Config{
		BillInventory: billInv,
		CoinInventory: coinInv,
		Acceptor:      acceptor,
		CoinOut:       &fakeCoinOut{},
	})

	_, err := o.RunB2C(context.Background(), 100, nil, true)
	if err == nil {
		t.Fatal("expected ErrBelowSafetyThreshold, got nil")
	}
}

func TestRunC2BRejectsConcurrentTransaction(t *testing.T) {
	billInv := &fakeInventory{counts: map[int]int{20: 10}}
	coinInv := &fakeInventory{counts: map[int]int{1: 10}}
	o := New(Config{BillInventory: billInv, CoinInventory: coinInv})
	o.mu.Lock()
	defer o.mu.Unlock()

	_, err := o.RunC2B(context.Background(), 40, nil)
	if err == nil {
		t.Fatal("expected ErrTransactionInProgress while mutex held")
	}
}
