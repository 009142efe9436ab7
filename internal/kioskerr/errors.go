// Package kioskerr collects the sentinel errors shared across the kiosk
// core so callers can branch on them with errors.Is instead of parsing
// strings.
package kioskerr

import "github.com/pkg/errors"

var (
	// ErrUnsupportedDenomination is returned by Inventory operations when
	// asked about a denomination outside the configured bill/coin sets.
	ErrUnsupportedDenomination = errors.New("unsupported denomination")

	// ErrLinkNotConnected is returned by SerialLink command submission when
	// no physical connection is currently open.
	ErrLinkNotConnected = errors.New("serial link not connected")

	// ErrSortTimeout is returned when a SORT command gets no OK/Error
	// response within its timeout.
	ErrSortTimeout = errors.New("sort command timed out")

	// ErrSortInFlight names a second sort requested while one is already
	// awaiting a response. serial.Link does not return it: SendSortCommand
	// waits on the link's command mutex until the earlier command finishes.
	ErrSortInFlight = errors.New("a sort command is already in flight")

	// ErrDispenseTimeout is returned when a DISPENSE command's ACK or its
	// DISPENSE_DONE response doesn't arrive within its budget. serial.Link
	// also wraps it when ENABLE_COIN/DISABLE_COIN get no ACK in time.
	ErrDispenseTimeout = errors.New("dispense command timed out")

	// ErrAcceptorBusy is returned when AcceptBill is called while a prior
	// call on the same acceptor has not returned.
	ErrAcceptorBusy = errors.New("bill acceptor is already processing a bill")

	// ErrInsufficientStock signals a planning/reservation failure. It is
	// informational, not fatal: callers show an insufficient-storage screen.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrTransactionInProgress is returned by Orchestrator's RunC2B, RunB2C
	// and RunB2B when a transaction is already active (the kiosk serves one
	// customer).
	ErrTransactionInProgress = errors.New("a transaction is already in progress")

	// ErrBelowSafetyThreshold is returned when a flow is refused at start
	// because no selectable denomination has enough stock to be usable.
	ErrBelowSafetyThreshold = errors.New("no selectable denomination meets the safety stock threshold")
)
