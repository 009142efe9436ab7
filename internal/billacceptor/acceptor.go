// Package billacceptor implements BillAcceptor (spec component C): the
// Idle→Feeding→Authenticating→Classifying→Sorting→Pushing state machine
// for accepting one bill against a required denomination.
package billacceptor

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/binsoy69/money-converter/internal/classifier"
	"github.com/binsoy69/money-converter/internal/hw"
	"github.com/binsoy69/money-converter/internal/kioskerr"
)

// Reason is the terminal classification of one accept_bill attempt.
type Reason string

const (
	ReasonAccepted      Reason = "accepted"
	ReasonFakeBill      Reason = "fake_bill"
	ReasonDenomUnknown  Reason = "denom_unknown"
	ReasonDenomNotReq   Reason = "denom_not_required"
	ReasonSorterNoAck   Reason = "sorter_no_ack"
	ReasonTimeoutNoBill Reason = "timeout_no_bill"
)

// Sorter is the subset of SerialLink the acceptor needs: a blocking
// sort round trip, optionally muted against an active coin session.
type Sorter interface {
	SortExclusive(ctx context.Context, denom int, sessionActive bool) (bool, error)
}

// Inventory is the bill-side credit the acceptor issues on commit.
type Inventory interface {
	Add(denom, n int) error
}

// Timing holds the feed/reverse/push budgets (spec §4.C/§6).
type Timing struct {
	IRWaitTimeout time.Duration
	FeedDuration  time.Duration
	ReverseDuration time.Duration
	PushDuration  time.Duration
}

// DefaultTiming matches spec §6's stated defaults (scaled from
// pi_bill_handler.py's feed_time/reject_time/dispense_time).
func DefaultTiming() Timing {
	return Timing{
		IRWaitTimeout:   60 * time.Second,
		FeedDuration:    400 * time.Millisecond,
		ReverseDuration: 1000 * time.Millisecond,
		PushDuration:    1500 * time.Millisecond,
	}
}

// Config wires one acceptor instance to its hardware and ports.
type Config struct {
	Intake     hw.Motor
	IR         hw.IrSensor
	Classifier classifier.Port
	Sorter     Sorter
	Inventory  Inventory
	Timing     Timing

	// CoinSessionActive reports whether a coin session is currently
	// accepting coins, so a sort can mute/unmute it (spec §5). May be nil.
	CoinSessionActive func() bool
}

// Acceptor runs one accept_bill attempt at a time; concurrent invocations
// are prohibited (spec §4.C: "the acceptor is single-threaded").
type Acceptor struct {
	cfg Config
	mu  sync.Mutex
}

func New(cfg Config) *Acceptor {
	return &Acceptor{cfg: cfg}
}

// AcceptBill runs one full Idle→...→Commit/Reject cycle against
// requiredDenom (0 means accept whatever denomination is detected).
func (a *Acceptor) AcceptBill(ctx context.Context, requiredDenom int) (accepted bool, detectedDenom int, reason Reason, err error) {
	if !a.mu.TryLock() {
		return false, 0, "", kioskerr.ErrAcceptorBusy
	}
	defer a.mu.Unlock()

	log.Debug("billacceptor: waiting for bill", "required_denom", requiredDenom)
	if ok, werr := a.waitForBill(ctx); werr != nil {
		return false, 0, "", werr
	} else if !ok {
		return false, 0, ReasonTimeoutNoBill, nil
	}

	log.Info("billacceptor: bill detected, feeding")
	if err := a.runMotor(a.cfg.Intake.Forward, a.cfg.Timing.FeedDuration); err != nil {
		return false, 0, "", err
	}

	authOK, err := a.cfg.Classifier.Authenticate()
	if err != nil {
		return false, 0, "", errors.Wrap(err, "authenticate")
	}
	if !authOK {
		log.Info("billacceptor: failed authentication, rejecting")
		if rerr := a.reverse(); rerr != nil {
			return false, 0, "", rerr
		}
		return false, 0, ReasonFakeBill, nil
	}

	denom, ok, err := a.cfg.Classifier.ClassifyDenomination()
	if err != nil {
		return false, 0, "", errors.Wrap(err, "classify denomination")
	}
	if !ok {
		log.Info("billacceptor: denomination unrecognized, rejecting")
		if rerr := a.reverse(); rerr != nil {
			return false, 0, "", rerr
		}
		return false, 0, ReasonDenomUnknown, nil
	}
	if requiredDenom != 0 && denom != requiredDenom {
		log.Info("billacceptor: wrong denomination, rejecting", "got", denom, "want", requiredDenom)
		if rerr := a.reverse(); rerr != nil {
			return false, denom, "", rerr
		}
		return false, denom, ReasonDenomNotReq, nil
	}

	sessionActive := false
	if a.cfg.CoinSessionActive != nil {
		sessionActive = a.cfg.CoinSessionActive()
	}
	log.Info("billacceptor: commanding sort", "denom", denom)
	sortOK, err := a.cfg.Sorter.SortExclusive(ctx, denom, sessionActive)
	if err != nil || !sortOK {
		log.Warn("billacceptor: sort failed, rejecting", "denom", denom, "err", err)
		if rerr := a.reverse(); rerr != nil {
			return false, denom, "", rerr
		}
		return false, denom, ReasonSorterNoAck, nil
	}

	// Push to the hopper. Inventory.add happens before the final push
	// completes (the conservative choice documented for the open
	// question on crash-mid-push in DESIGN.md).
	if err := a.cfg.Inventory.Add(denom, 1); err != nil {
		return false, denom, "", errors.Wrap(err, "credit inventory")
	}
	if err := a.runMotor(a.cfg.Intake.Forward, a.cfg.Timing.PushDuration); err != nil {
		return false, denom, "", err
	}

	log.Info("billacceptor: accepted", "denom", denom)
	return true, denom, ReasonAccepted, nil
}

func (a *Acceptor) waitForBill(ctx context.Context) (bool, error) {
	deadline := time.Now().Add(a.cfg.Timing.IRWaitTimeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		active, err := a.cfg.IR.Active()
		if err != nil {
			return false, errors.Wrap(err, "poll ir sensor")
		}
		if active {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Acceptor) reverse() error {
	return a.runMotor(a.cfg.Intake.Backward, a.cfg.Timing.ReverseDuration)
}

// runMotor drives start for duration then stops the motor unconditionally,
// even on panic (spec §9 scope-guarded release).
func (a *Acceptor) runMotor(start func() error, duration time.Duration) (err error) {
	defer func() {
		if rerr := hw.Release(a.cfg.Intake); rerr != nil && err == nil {
			err = errors.Wrap(rerr, "release intake motor")
		}
	}()
	if serr := start(); serr != nil {
		return errors.Wrap(serr, "start intake motor")
	}
	time.Sleep(duration)
	return nil
}
