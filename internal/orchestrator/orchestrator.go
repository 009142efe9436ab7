// Package orchestrator implements Orchestrator (spec component G): the
// C2B/B2C/B2B money-accounting state machines built on top of
// BillAcceptor, CoinSession, ChangeMaker, and the per-denomination
// dispensers.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/binsoy69/money-converter/internal/billacceptor"
	"github.com/binsoy69/money-converter/internal/changemaker"
	"github.com/binsoy69/money-converter/internal/inventory"
	"github.com/binsoy69/money-converter/internal/kioskerr"
)

const (
	coinSessionTimeout  = 120 * time.Second
	dispenseDoneTimeout = 15 * time.Second
)

// Inventory is the subset of internal/inventory.Inventory the
// orchestrator needs for both the bill and coin stores.
type Inventory interface {
	Get() inventory.Breakdown
	Add(denom, n int) error
	ReserveBulk(breakdown inventory.Breakdown) (bool, error)
	Rollback(breakdown inventory.Breakdown) error
}

// BillAcceptorPort is the subset of billacceptor.Acceptor the
// orchestrator drives during bill intake.
type BillAcceptorPort interface {
	AcceptBill(ctx context.Context, requiredDenom int) (accepted bool, detectedDenom int, reason billacceptor.Reason, err error)
}

// CoinSessionPort is the subset of coinsession.Session the orchestrator
// drives during coin intake. onReached is invoked at most once, as soon
// as the session's required amount is met, so collectCoins can return
// the moment the customer finishes paying instead of always waiting out
// the full session budget.
type CoinSessionPort interface {
	Start(ctx context.Context, required int, onReached func()) error
	Stop(ctx context.Context) error
	Total() int
	PerDenom() map[int]int
}

// CoinDispenser is the coin-out half of SerialLink: each call blocks for
// its own DISPENSE_DONE.
type CoinDispenser interface {
	Dispense(ctx context.Context, denom, qty int) (bool, error)
}

// BillDispenserPort is one denomination's dispenser.
type BillDispenserPort interface {
	Dispense(n int) (success bool, reason string, err error)
}

// Config wires one Orchestrator instance to its dependencies.
type Config struct {
	BillInventory Inventory
	CoinInventory Inventory
	Acceptor      BillAcceptorPort
	CoinSession   CoinSessionPort
	CoinOut       CoinDispenser
	BillDispensers map[int]BillDispenserPort // by denomination

	// CoinSessionTimeout bounds how long a coin-insertion session stays
	// open before it's declared short. Defaults to coinSessionTimeout;
	// tests shorten it to exercise the timeout path without waiting.
	CoinSessionTimeout time.Duration
}

// Orchestrator drives a single transaction at a time (spec §5: "a kiosk
// serves one customer"). RunC2B, RunB2C and RunB2B return
// ErrTransactionInProgress if one is already active.
type Orchestrator struct {
	cfg Config
	mu  sync.Mutex
}

func New(cfg Config) *Orchestrator {
	if cfg.CoinSessionTimeout <= 0 {
		cfg.CoinSessionTimeout = coinSessionTimeout
	}
	return &Orchestrator{cfg: cfg}
}

// Outcome is the terminal result of one transaction.
type Outcome struct {
	TransactionID    string
	Flow             Flow
	AmountToDispense int
	BillBreakdown    changemaker.Breakdown
	CoinBreakdown    changemaker.Breakdown
	Refunded         bool
	RefundBreakdown  map[int]int
}

// RunC2B executes the coin-to-bill flow: the user selects selectedAmount,
// pays selectedAmount+fee in coins, and receives bills (with a coin
// residue if bills alone can't make exact change).
func (o *Orchestrator) RunC2B(ctx context.Context, selectedAmount int, selectedBillDenoms []int) (Outcome, error) {
	if !o.mu.TryLock() {
		return Outcome{}, kioskerr.ErrTransactionInProgress
	}
	defer o.mu.Unlock()

	fee, ok := FeeFor(FlowC2B, selectedAmount)
	if !ok {
		return Outcome{}, errors.Errorf("no C2B fee entry for amount %d", selectedAmount)
	}
	if !MeetsSafetyThreshold(changemaker.AllBillDenoms, o.cfg.BillInventory.Get()) {
		return Outcome{}, kioskerr.ErrBelowSafetyThreshold
	}

	required := RequiredAmount(FlowC2B, selectedAmount, fee)
	txID := uuid.New().String()
	log.Info("orchestrator: starting C2B", "tx", txID, "selected_amount", selectedAmount, "fee", fee, "required", required)

	inserted, perDenom, reached := o.collectCoins(ctx, required)
	if !reached {
		log.Warn("orchestrator: C2B coin session timed out short, refunding", "tx", txID, "inserted", inserted, "required", required)
		if err := o.refundCoins(ctx, perDenom); err != nil {
			return Outcome{}, errors.Wrap(err, "refund coins after C2B timeout")
		}
		return Outcome{TransactionID: txID, Flow: FlowC2B, Refunded: true, RefundBreakdown: perDenom}, nil
	}

	amountToDispense := AmountToDispenseC2B(selectedAmount, inserted, required)
	return o.planAndDispenseBills(ctx, txID, FlowC2B, amountToDispense, selectedBillDenoms)
}

// RunB2C executes the bill-to-coin flow: the user pays one bill and a fee
// in coins (or opts to deduct the fee from the bill), and receives coins.
func (o *Orchestrator) RunB2C(ctx context.Context, billDenom int, selectedCoinDenoms []int, deductFeeFromBill bool) (Outcome, error) {
	return o.runB2x(ctx, FlowB2C, billDenom, selectedCoinDenoms, deductFeeFromBill)
}

// RunB2B executes the bill-to-bill flow: same money-accounting shape as
// B2C (spec §4.G: "B2B | same as B2C"), but the payout is bills.
func (o *Orchestrator) RunB2B(ctx context.Context, billDenom int, selectedCoinDenoms []int, deductFeeFromBill bool) (Outcome, error) {
	return o.runB2x(ctx, FlowB2B, billDenom, selectedCoinDenoms, deductFeeFromBill)
}

func (o *Orchestrator) runB2x(ctx context.Context, flow Flow, billDenom int, selectedCoinDenoms []int, deductFeeFromBill bool) (Outcome, error) {
	if !o.mu.TryLock() {
		return Outcome{}, kioskerr.ErrTransactionInProgress
	}
	defer o.mu.Unlock()

	switch flow {
	case FlowB2C:
		if !MeetsSafetyThreshold(changemaker.AllCoinDenoms, o.cfg.CoinInventory.Get()) {
			return Outcome{}, kioskerr.ErrBelowSafetyThreshold
		}
	default: // FlowB2B
		if !MeetsSafetyThreshold(changemaker.AllBillDenoms, o.cfg.BillInventory.Get()) {
			return Outcome{}, kioskerr.ErrBelowSafetyThreshold
		}
	}

	fee, ok := FeeFor(flow, billDenom)
	if !ok {
		return Outcome{}, errors.Errorf("no %s fee entry for bill %d", flow, billDenom)
	}

	txID := uuid.New().String()
	log.Info("orchestrator: starting flow", "flow", flow, "tx", txID, "bill", billDenom, "fee", fee)

	accepted, detected, reason, err := o.cfg.Acceptor.AcceptBill(ctx, billDenom)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "accept bill")
	}
	if !accepted {
		return Outcome{}, errors.Errorf("bill not accepted: %s (detected=%d)", reason, detected)
	}

	var amountToDispense int
	if deductFeeFromBill {
		amountToDispense = AmountToDispenseB2xBillDeducted(billDenom, fee)
	} else {
		inserted, _, reached := o.collectCoins(ctx, fee)
		if reached {
			excess := inserted - fee
			amountToDispense = AmountToDispenseB2xCoinsCovered(billDenom, excess)
		} else {
			log.Warn("orchestrator: coin fee fell short, deducting from bill instead (never refunding a bill)", "flow", flow, "tx", txID, "inserted", inserted, "fee", fee)
			amountToDispense = AmountToDispenseB2xCoinsShort(billDenom, fee, inserted)
		}
	}

	switch flow {
	case FlowB2C:
		return o.planAndDispenseCoins(ctx, txID, flow, amountToDispense, selectedCoinDenoms)
	default: // FlowB2B
		return o.planAndDispenseBills(ctx, txID, flow, amountToDispense, nil)
	}
}

// collectCoins runs one bounded coin-insertion session toward required,
// returning the final total, the per-denomination counts captured (for a
// possible refund), and whether required was reached before timeout. It
// returns as soon as either happens, rather than always waiting out the
// full session budget.
func (o *Orchestrator) collectCoins(ctx context.Context, required int) (total int, perDenom map[int]int, reached bool) {
	sessionCtx, cancel := context.WithTimeout(ctx, o.cfg.CoinSessionTimeout)
	defer cancel()

	reachedCh := make(chan struct{}, 1)
	onReached := func() {
		select {
		case reachedCh <- struct{}{}:
		default:
		}
	}

	if err := o.cfg.CoinSession.Start(sessionCtx, required, onReached); err != nil {
		log.Error("orchestrator: failed to start coin session", "err", err)
		return 0, nil, false
	}

	select {
	case <-sessionCtx.Done():
	case <-reachedCh:
	}

	if stopErr := o.cfg.CoinSession.Stop(context.Background()); stopErr != nil {
		log.Warn("orchestrator: failed to stop coin session cleanly", "err", stopErr)
	}

	total = o.cfg.CoinSession.Total()
	perDenom = o.cfg.CoinSession.PerDenom()
	return total, perDenom, total >= required
}

// refundCoins dispenses back every coin captured in perDenom (spec's C2B
// timeout/refund policy: the only allowed outcome when required isn't
// reached).
func (o *Orchestrator) refundCoins(ctx context.Context, perDenom map[int]int) error {
	for _, denom := range changemaker.AllCoinDenoms {
		qty := perDenom[denom]
		if qty <= 0 {
			continue
		}
		doneCtx, cancel := context.WithTimeout(ctx, dispenseDoneTimeout)
		ok, err := o.cfg.CoinOut.Dispense(doneCtx, denom, qty)
		cancel()
		if err != nil {
			return errors.Wrapf(err, "refund dispense of %dx%d failed", denom, qty)
		}
		if !ok {
			return errors.Errorf("refund dispense of %dx%d: no confirmation", denom, qty)
		}
	}
	return nil
}

// planAndDispenseBills plans a bill(+coin residue) breakdown, reserves it
// against both inventories, and dispenses bills first, then coins — each
// denomination to completion before the next (spec §4.G sequencing). On
// any dispense failure, the remaining (not-yet-dispensed) reservation is
// rolled back; already-dispensed output is never reversed.
func (o *Orchestrator) planAndDispenseBills(ctx context.Context, txID string, flow Flow, amount int, selectedBillDenoms []int) (Outcome, error) {
	billStock := o.cfg.BillInventory.Get()
	coinStock := o.cfg.CoinInventory.Get()

	available := AvailableDenoms(changemaker.AllBillDenoms, billStock, amount)
	denoms := ResolveSelection(selectedBillDenoms, available)

	bills, coins := changemaker.BillsForAmount(amount, denoms, billStock, coinStock)
	if len(bills) == 0 && len(coins) == 0 && amount > 0 {
		return Outcome{}, kioskerr.ErrInsufficientStock
	}

	// The bill and coin reservations touch independent Inventory
	// instances, so they run concurrently; a failure in either rolls back
	// only the leg that actually succeeded.
	var billReserved, coinReserved bool
	g := new(errgroup.Group)
	g.Go(func() error {
		ok, err := o.cfg.BillInventory.ReserveBulk(inventory.Breakdown(bills))
		billReserved = ok
		if err != nil {
			return errors.Wrap(err, "reserve bills")
		}
		if !ok {
			return kioskerr.ErrInsufficientStock
		}
		return nil
	})
	g.Go(func() error {
		ok, err := o.cfg.CoinInventory.ReserveBulk(inventory.Breakdown(coins))
		coinReserved = ok
		if err != nil {
			return errors.Wrap(err, "reserve coins")
		}
		if !ok {
			return kioskerr.ErrInsufficientStock
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if billReserved {
			o.cfg.BillInventory.Rollback(inventory.Breakdown(bills))
		}
		if coinReserved {
			o.cfg.CoinInventory.Rollback(inventory.Breakdown(coins))
		}
		return Outcome{}, err
	}

	if undispensed, err := o.dispenseBillBreakdown(ctx, bills); err != nil {
		o.cfg.BillInventory.Rollback(inventory.Breakdown(undispensed))
		o.cfg.CoinInventory.Rollback(inventory.Breakdown(coins))
		return Outcome{}, err
	}
	if undispensed, err := o.dispenseCoinBreakdown(ctx, coins); err != nil {
		o.cfg.CoinInventory.Rollback(inventory.Breakdown(undispensed))
		return Outcome{}, err
	}

	log.Info("orchestrator: flow complete", "flow", flow, "tx", txID, "amount", amount, "bills", map[int]int(bills), "coins", map[int]int(coins))
	return Outcome{TransactionID: txID, Flow: flow, AmountToDispense: amount, BillBreakdown: bills, CoinBreakdown: coins}, nil
}

// planAndDispenseCoins is planAndDispenseBills' coin-only counterpart for
// B2C payouts (coins restricted to selectedCoinDenoms).
func (o *Orchestrator) planAndDispenseCoins(ctx context.Context, txID string, flow Flow, amount int, selectedCoinDenoms []int) (Outcome, error) {
	coinStock := o.cfg.CoinInventory.Get()
	available := AvailableDenoms(changemaker.AllCoinDenoms, coinStock, amount)
	denoms := ResolveSelection(selectedCoinDenoms, available)

	coins := changemaker.CoinsForAmount(amount, denoms, coinStock)
	if len(coins) == 0 && amount > 0 {
		return Outcome{}, kioskerr.ErrInsufficientStock
	}

	if ok, err := o.cfg.CoinInventory.ReserveBulk(inventory.Breakdown(coins)); err != nil {
		return Outcome{}, errors.Wrap(err, "reserve coins")
	} else if !ok {
		return Outcome{}, kioskerr.ErrInsufficientStock
	}

	if undispensed, err := o.dispenseCoinBreakdown(ctx, coins); err != nil {
		o.cfg.CoinInventory.Rollback(inventory.Breakdown(undispensed))
		return Outcome{}, err
	}

	log.Info("orchestrator: flow complete", "flow", flow, "tx", txID, "amount", amount, "coins", map[int]int(coins))
	return Outcome{TransactionID: txID, Flow: flow, AmountToDispense: amount, CoinBreakdown: coins}, nil
}

// dispenseBillBreakdown dispenses each reserved bill denomination to
// completion, in descending order, before moving to the next (spec §4.G:
// "strictly sequenced, not parallel"). On failure it returns the
// undispensed remainder of bills — the denomination that failed plus
// every denomination not yet attempted — so the caller can roll back
// exactly the reservation that never left the machine; already-dispensed
// output is never reversed.
func (o *Orchestrator) dispenseBillBreakdown(ctx context.Context, bills changemaker.Breakdown) (changemaker.Breakdown, error) {
	denoms := bills.Denoms()
	for i, denom := range denoms {
		qty := bills[denom]
		if qty <= 0 {
			continue
		}
		if ctx.Err() != nil {
			return undispensedRemainder(bills, denoms[i:]), ctx.Err()
		}
		d, ok := o.cfg.BillDispensers[denom]
		if !ok {
			return undispensedRemainder(bills, denoms[i:]), errors.Errorf("no dispenser configured for denom %d", denom)
		}
		ok2, reason, err := d.Dispense(qty)
		if err != nil {
			return undispensedRemainder(bills, denoms[i:]), errors.Wrapf(err, "dispense %dx%d", qty, denom)
		}
		if !ok2 {
			return undispensedRemainder(bills, denoms[i:]), errors.Errorf("dispense %dx%d failed: %s", qty, denom, reason)
		}
		// Inventory was already deducted at reservation time (ReserveBulk
		// above); a successful physical dispense doesn't deduct again.
	}
	return nil, nil
}

// dispenseCoinBreakdown issues one DISPENSE command per denomination,
// awaiting each DISPENSE_DONE (15s timeout) before the next. On failure
// it returns the undispensed remainder the same way dispenseBillBreakdown
// does, so the caller can roll back exactly what never left the machine.
func (o *Orchestrator) dispenseCoinBreakdown(ctx context.Context, coins changemaker.Breakdown) (changemaker.Breakdown, error) {
	denoms := coins.Denoms()
	for i, denom := range denoms {
		qty := coins[denom]
		if qty <= 0 {
			continue
		}
		doneCtx, cancel := context.WithTimeout(ctx, dispenseDoneTimeout)
		ok, err := o.cfg.CoinOut.Dispense(doneCtx, denom, qty)
		cancel()
		if err != nil {
			return undispensedRemainder(coins, denoms[i:]), errors.Wrapf(err, "dispense %dx%d", qty, denom)
		}
		if !ok {
			return undispensedRemainder(coins, denoms[i:]), errors.Errorf("dispense %dx%d: no confirmation", qty, denom)
		}
		// The link's DISPENSE_DONE handler already deducted the coin
		// inventory directly (spec §4.B); nothing further to do here.
	}
	return nil, nil
}

// undispensedRemainder builds the breakdown of denoms (a suffix of a
// Denoms() ordering) still present in full, for rollback after a
// dispense failure partway through a breakdown.
func undispensedRemainder(all changemaker.Breakdown, denoms []int) changemaker.Breakdown {
	out := changemaker.Breakdown{}
	for _, denom := range denoms {
		if qty := all[denom]; qty > 0 {
			out[denom] = qty
		}
	}
	return out
}
