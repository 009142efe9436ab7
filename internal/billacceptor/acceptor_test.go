package billacceptor

import (
	"context"
	"testing"
	"time"

	"github.com/binsoy69/money-converter/internal/classifier"
	"github.com/binsoy69/money-converter/internal/hw/mock"
)

type fakeSorter struct {
	ok  bool
	err error
}

func (f *fakeSorter) SortExclusive(ctx context.Context, denom int, sessionActive bool) (bool, error) {
	return f.ok, f.err
}

type fakeInventory struct {
	added map[int]int
}

func (f *fakeInventory) Add(denom, n int) error {
	if f.added == nil {
		f.added = map[int]int{}
	}
	f.added[denom] += n
	return nil
}

func fastTiming() Timing {
	return Timing{
		IRWaitTimeout:   200 * time.Millisecond,
		FeedDuration:    time.Millisecond,
		ReverseDuration: time.Millisecond,
		PushDuration:    time.Millisecond,
	}
}

func TestAcceptBillHappyPath(t *testing.T) {
	intake := &mock.Motor{}
	ir := &mock.IrSensor{Script: []bool{true}}
	cls := &classifier.Mock{
		AuthScript:  []classifier.Result{{Label: "genuine", Confidence: 0.95}},
		DenomScript: []classifier.Result{{Label: "100", Confidence: 0.9}},
	}
	sorter := &fakeSorter{ok: true}
	inv := &fakeInventory{}

	a := New(Config{
		Intake:     intake,
		IR:         ir,
		Classifier: cls,
		Sorter:     sorter,
		Inventory:  inv,
		Timing:     fastTiming(),
	})

	accepted, denom, reason, err := a.AcceptBill(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !accepted || denom != 100 || reason != ReasonAccepted {
		t.Fatalf("got accepted=%v denom=%d reason=%s", accepted, denom, reason)
	}
	if inv.added[100] != 1 {
		t.Errorf("expected inventory credited 1x100, got %v", inv.added)
	}
}

func TestAcceptBillRejectsFake(t *testing.T) {
	intake := &mock.Motor{}
	ir := &mock.IrSensor{Script: []bool{true}}
	cls := &classifier.Mock{
		AuthScript: []classifier.Result{{Label: "fake", Confidence: 0.95}},
	}
	a := New(Config{
		Intake:     intake,
		IR:         ir,
		Classifier: cls,
		Sorter:     &fakeSorter{ok: true},
		Inventory:  &fakeInventory{},
		Timing:     fastTiming(),
	})

	accepted, _, reason, err := a.AcceptBill(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted || reason != ReasonFakeBill {
		t.Fatalf("got accepted=%v reason=%s", accepted, reason)
	}
	if intake.State() != "stopped" {
		t.Errorf("expected motor stopped after reject, got %s", intake.State())
	}
}

func TestAcceptBillWrongDenomination(t *testing.T) {
	intake := &mock.Motor{}
	ir := &mock.IrSensor{Script: []bool{true}}
	cls := &classifier.Mock{
		AuthScript:  []classifier.Result{{Label: "genuine", Confidence: 0.95}},
		DenomScript: []classifier.Result{{Label: "50", Confidence: 0.9}},
	}
	a := New(Config{
		Intake:     intake,
		IR:         ir,
		Classifier: cls,
		Sorter:     &fakeSorter{ok: true},
		Inventory:  &fakeInventory{},
		Timing:     fastTiming(),
	})

	accepted, denom, reason, err := a.AcceptBill(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted || denom != 50 || reason != ReasonDenomNotReq {
		t.Fatalf("got accepted=%v denom=%d reason=%s", accepted, denom, reason)
	}
}

func TestAcceptBillTimeoutNoBill(t *testing.T) {
	intake := &mock.Motor{}
	ir := &mock.IrSensor{Script: []bool{false}}
	a := New(Config{
		Intake:     intake,
		IR:         ir,
		Classifier: &classifier.Mock{},
		Sorter:     &fakeSorter{ok: true},
		Inventory:  &fakeInventory{},
		Timing:     fastTiming(),
	})

	accepted, _, reason, err := a.AcceptBill(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted || reason != ReasonTimeoutNoBill {
		t.Fatalf("got accepted=%v reason=%s", accepted, reason)
	}
}

func TestAcceptBillSorterNoAck(t *testing.T) {
	intake := &mock.Motor{}
	ir := &mock.IrSensor{Script: []bool{true}}
	cls := &classifier.Mock{
		AuthScript:  []classifier.Result{{Label: "genuine", Confidence: 0.95}},
		DenomScript: []classifier.Result{{Label: "100", Confidence: 0.9}},
	}
	a := New(Config{
		Intake:     intake,
		IR:         ir,
		Classifier: cls,
		Sorter:     &fakeSorter{ok: false},
		Inventory:  &fakeInventory{},
		Timing:     fastTiming(),
	})

	accepted, _, reason, err := a.AcceptBill(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted || reason != ReasonSorterNoAck {
		t.Fatalf("got accepted=%v reason=%s", accepted, reason)
	}
}
