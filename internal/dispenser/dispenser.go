// Package dispenser implements BillDispenser (spec component D): per-
// denomination continuous-transport, pulsed-feeder bill dispensing with
// IR confirmation and bounded per-bill retry.
package dispenser

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/binsoy69/money-converter/internal/hw"
)

const maxRetriesPerBill = 5

// Timing holds the pulse/poll/separation budgets (spec §4.D).
type Timing struct {
	SpinUpDelay     time.Duration
	FeedPulse       time.Duration
	IRPollInterval  time.Duration
	IRPollTimeout   time.Duration
	SeparationDelay time.Duration
}

// DefaultTiming matches spec §4.D's stated approximate values.
func DefaultTiming() Timing {
	return Timing{
		SpinUpDelay:     500 * time.Millisecond,
		FeedPulse:       250 * time.Millisecond,
		IRPollInterval:  50 * time.Millisecond, // ~20Hz
		IRPollTimeout:   time.Second,
		SeparationDelay: 500 * time.Millisecond,
	}
}

// Dispenser drives one denomination's transport+feeder motors and output
// IR sensor.
type Dispenser struct {
	Denom     int
	Transport hw.Motor
	Feeder    hw.Motor
	IR        hw.IrSensor
	Timing    Timing
}

func New(denom int, transport, feeder hw.Motor, ir hw.IrSensor, timing Timing) *Dispenser {
	return &Dispenser{Denom: denom, Transport: transport, Feeder: feeder, IR: ir, Timing: timing}
}

// Dispense attempts to feed n bills. The transport motor is guaranteed
// stopped on every return path, including panic (spec §4.D invariant).
func (d *Dispenser) Dispense(n int) (success bool, reason string, err error) {
	defer func() {
		if rerr := hw.Release(d.Transport); rerr != nil && err == nil {
			err = errors.Wrap(rerr, "release transport motor")
		}
	}()

	if serr := d.Transport.Forward(); serr != nil {
		return false, "", errors.Wrap(serr, "start transport motor")
	}
	time.Sleep(d.Timing.SpinUpDelay)

	for i := 0; i < n; i++ {
		detected, attempts, derr := d.feedOneBill()
		if derr != nil {
			return false, "", derr
		}
		if !detected {
			reason := fmt.Sprintf("bill_%d_not_detected_after_%d_attempts", i+1, attempts)
			log.Warn("dispenser: bill not detected, aborting batch", "denom", d.Denom, "index", i, "attempts", attempts)
			return false, reason, nil
		}
		time.Sleep(d.Timing.SeparationDelay)
	}

	return true, "dispensed", nil
}

// feedOneBill pulses the feeder and polls IR, retrying up to
// maxRetriesPerBill total attempts.
func (d *Dispenser) feedOneBill() (detected bool, attempts int, err error) {
	for attempt := 1; attempt <= maxRetriesPerBill; attempt++ {
		attempts = attempt
		if serr := d.Feeder.Forward(); serr != nil {
			return false, attempts, errors.Wrap(serr, "pulse feeder motor")
		}
		time.Sleep(d.Timing.FeedPulse)
		if serr := d.Feeder.Stop(); serr != nil {
			return false, attempts, errors.Wrap(serr, "stop feeder motor")
		}

		ok, perr := d.pollIR()
		if perr != nil {
			return false, attempts, perr
		}
		if ok {
			return true, attempts, nil
		}
	}
	return false, attempts, nil
}

func (d *Dispenser) pollIR() (bool, error) {
	deadline := time.Now().Add(d.Timing.IRPollTimeout)
	for {
		active, err := d.IR.Active()
		if err != nil {
			return false, errors.Wrap(err, "poll ir sensor")
		}
		if active {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(d.Timing.IRPollInterval)
	}
}
