// Package coinsession implements CoinSession (spec component E): drives
// coin acceptance toward a required amount by registering as a
// serial.Subscriber and accumulating per-denomination counts.
package coinsession

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// validDenoms are the coin denominations the firmware can report.
var validDenoms = map[int]bool{1: true, 5: true, 10: true, 20: true}

// Linker is the subset of serial.Link a CoinSession drives.
type Linker interface {
	EnableCoin(ctx context.Context) error
	DisableCoin(ctx context.Context) error
}

// Inventory is the coin-side credit the session issues on each coin event.
type Inventory interface {
	Add(denom, n int) error
}

// OnCoin is called after each validated coin event with the per-denom
// count and running total; OnReached fires exactly once when the
// required amount is first met or exceeded.
type OnCoin func(denom, perDenomCount, total int)
type OnReached func(total int)

// Session is single-writer (only the serial reader goroutine calls
// OnCoin); Active/Total/PerDenom are safe for any goroutine to read.
type Session struct {
	mu          sync.Mutex
	link        Linker
	inv         Inventory
	required    int
	counts      map[int]int
	total       int
	reached     bool
	active      bool
	onCoin      OnCoin
	onReached   OnReached
	sessionDone func() // set per-Start, fired alongside onReached
}

func New(link Linker, inv Inventory, onCoin OnCoin, onReached OnReached) *Session {
	return &Session{
		link:      link,
		inv:       inv,
		onCoin:    onCoin,
		onReached: onReached,
		counts:    map[int]int{1: 0, 5: 0, 10: 0, 20: 0},
	}
}

// SetLink rewires the Linker after construction. It exists for callers
// that must build a Session before the serial.Link it will subscribe to
// (Link's subscriber list is fixed at its own construction): build the
// Session with a nil Linker, pass it into serial.New as a Subscriber,
// then call SetLink once the Link exists. Must not be called
// concurrently with Start/Stop/OnCoin.
func (s *Session) SetLink(link Linker) {
	s.mu.Lock()
	s.link = link
	s.mu.Unlock()
}

// Start begins a session toward required (0 = unbounded), clearing
// counters and issuing ENABLE_COIN. onReached, if non-nil, is called
// exactly once when required is first met or exceeded, letting a caller
// like Orchestrator stop waiting the moment the customer finishes paying
// instead of blocking for the whole session budget.
func (s *Session) Start(ctx context.Context, required int, onReached func()) error {
	s.mu.Lock()
	s.required = required
	s.counts = map[int]int{1: 0, 5: 0, 10: 0, 20: 0}
	s.total = 0
	s.reached = false
	s.active = true
	s.sessionDone = onReached
	s.mu.Unlock()

	return s.link.EnableCoin(ctx)
}

// Stop issues DISABLE_COIN; the serial reader keeps running so SORT/
// DISPENSE requests can still share the link (spec §4.E).
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	return s.link.DisableCoin(ctx)
}

// Active reports whether a session is currently accepting coins; used by
// billacceptor to decide whether a sort needs to mute coin events first.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// OnCoin implements serial.Subscriber: it validates the denom, credits
// Inventory, updates counters, and fires the reached callback exactly
// once per session (spec §4.E).
func (s *Session) OnCoin(denom int) {
	if !validDenoms[denom] {
		log.Warn("coinsession: ignoring coin event for unknown denomination", "denom", denom)
		return
	}
	if err := s.inv.Add(denom, 1); err != nil {
		log.Error("coinsession: failed to credit coin inventory", "denom", denom, "err", err)
	}

	s.mu.Lock()
	s.counts[denom]++
	s.total += denom
	perDenom := s.counts[denom]
	total := s.total
	justReached := s.required > 0 && !s.reached && total >= s.required
	if justReached {
		s.reached = true
	}
	sessionDone := s.sessionDone
	s.mu.Unlock()

	if s.onCoin != nil {
		s.onCoin(denom, perDenom, total)
	}
	if justReached {
		log.Info("coinsession: required amount reached", "total", total, "required", s.required)
		if s.onReached != nil {
			s.onReached(total)
		}
		if sessionDone != nil {
			sessionDone()
		}
		if err := s.link.DisableCoin(context.Background()); err != nil {
			log.Warn("coinsession: failed to disable coin after reaching target", "err", err)
		}
	}
}

// OnSerialError implements serial.Subscriber; coin sessions don't react
// to link-level errors directly (the link itself handles reconnection).
func (s *Session) OnSerialError(text string) {
	log.Debug("coinsession: serial error observed", "text", text)
}

// Total returns the running total inserted this session.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// PerDenom returns a snapshot of this session's per-denomination counts.
func (s *Session) PerDenom() map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Reached reports whether the required amount has been met this session.
func (s *Session) Reached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reached
}
