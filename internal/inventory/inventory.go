// Package inventory implements the thread-safe, persisted denomination
// counters described in spec component A: single-lock access, atomic
// bulk reserve/rollback, and a write-through JSON snapshot on every
// mutation.
package inventory

import (
	"sort"
	"sync"

	"github.com/binsoy69/money-converter/internal/kioskerr"
	"github.com/ethereum/go-ethereum/log"
)

// Persister is the subset of store.InventoryStore that Inventory depends
// on, so tests can substitute an in-memory fake.
type Persister interface {
	Load() (map[int]int, error)
	Save(map[int]int) error
}

// Breakdown is an ordered mapping of denomination to count, as described
// in spec §3. Kiosk code nearly always wants it sorted descending by
// denomination when iterating, so Denoms() returns it pre-sorted.
type Breakdown map[int]int

// Denoms returns the breakdown's keys sorted descending.
func (b Breakdown) Denoms() []int {
	out := make([]int, 0, len(b))
	for d := range b {
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// Total returns Σ denom·count.
func (b Breakdown) Total() int {
	total := 0
	for d, c := range b {
		total += d * c
	}
	return total
}

// Inventory is a thread-safe counter set for one kind (bills or coins).
// Every mutating call flushes the updated snapshot to disk before
// returning, per spec §4.A.
type Inventory struct {
	mu      sync.Mutex
	kind    string
	denoms  map[int]bool
	counts  map[int]int
	persist Persister
}

// New loads the initial snapshot from persist (seeding defaults for any
// denom missing from the file) and returns a ready Inventory. kind is
// used only for logging ("bill" or "coin").
func New(kind string, denoms []int, defaults map[int]int, persist Persister) (*Inventory, error) {
	denomSet := make(map[int]bool, len(denoms))
	for _, d := range denoms {
		denomSet[d] = true
	}

	loaded, err := persist.Load()
	if err != nil {
		return nil, err
	}

	counts := make(map[int]int, len(denoms))
	for _, d := range denoms {
		if v, ok := loaded[d]; ok {
			counts[d] = v
		} else {
			counts[d] = defaults[d]
		}
	}

	inv := &Inventory{
		kind:    kind,
		denoms:  denomSet,
		counts:  counts,
		persist: persist,
	}
	if err := persist.Save(counts); err != nil {
		return nil, err
	}
	return inv, nil
}

// Get returns a copy of the current denomination → count snapshot.
func (inv *Inventory) Get() Breakdown {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.snapshotLocked()
}

func (inv *Inventory) snapshotLocked() Breakdown {
	out := make(Breakdown, len(inv.counts))
	for d, c := range inv.counts {
		out[d] = c
	}
	return out
}

func (inv *Inventory) persistLocked() error {
	plain := make(map[int]int, len(inv.counts))
	for d, c := range inv.counts {
		plain[d] = c
	}
	return inv.persist.Save(plain)
}

// Add increases denom's count by n and persists. Add does not check the
// sign of n; callers subtract through Deduct or ReserveBulk, which check
// stock first.
func (inv *Inventory) Add(denom, n int) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if !inv.denoms[denom] {
		return kioskerr.ErrUnsupportedDenomination
	}
	inv.counts[denom] += n
	if err := inv.persistLocked(); err != nil {
		return err
	}
	log.Debug("inventory add", "kind", inv.kind, "denom", denom, "n", n, "newCount", inv.counts[denom])
	return nil
}

// Deduct decreases denom's count by n iff there's enough stock. It
// returns (true, nil) on success, (false, nil) on insufficient stock
// (never an error per spec §4.A), and a non-nil error only for an
// unsupported denomination.
func (inv *Inventory) Deduct(denom, n int) (bool, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if !inv.denoms[denom] {
		return false, kioskerr.ErrUnsupportedDenomination
	}
	if inv.counts[denom] < n {
		return false, nil
	}
	inv.counts[denom] -= n
	if err := inv.persistLocked(); err != nil {
		return false, err
	}
	log.Debug("inventory deduct", "kind", inv.kind, "denom", denom, "n", n, "newCount", inv.counts[denom])
	return true, nil
}

// ReserveBulk deducts every denomination in breakdown atomically: it
// first verifies every denom has enough stock, then deducts all of them,
// persisting once. No partial deduction is ever observable (spec §4.A,
// §8 invariants).
func (inv *Inventory) ReserveBulk(breakdown Breakdown) (bool, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for denom, count := range breakdown {
		if count == 0 {
			continue
		}
		if !inv.denoms[denom] {
			return false, kioskerr.ErrUnsupportedDenomination
		}
		if inv.counts[denom] < count {
			return false, nil
		}
	}
	for denom, count := range breakdown {
		inv.counts[denom] -= count
	}
	if err := inv.persistLocked(); err != nil {
		return false, err
	}
	log.Info("inventory reserved bulk", "kind", inv.kind, "breakdown", map[int]int(breakdown))
	return true, nil
}

// Rollback re-adds every denomination in breakdown, undoing a prior
// ReserveBulk (or a committed-but-never-dispensed reservation).
func (inv *Inventory) Rollback(breakdown Breakdown) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for denom, count := range breakdown {
		if count == 0 {
			continue
		}
		if !inv.denoms[denom] {
			return kioskerr.ErrUnsupportedDenomination
		}
		inv.counts[denom] += count
	}
	if err := inv.persistLocked(); err != nil {
		return err
	}
	log.Info("inventory rolled back", "kind", inv.kind, "breakdown", map[int]int(breakdown))
	return nil
}
