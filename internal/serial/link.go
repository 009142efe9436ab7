// Package serial implements SerialLink (spec component B): a single
// process-wide, line-framed, full-duplex channel to the kiosk's
// microcontroller, shared by the coin acceptor/dispenser and the bill
// sorter. One goroutine owns the physical connection: it reads inbound
// lines, dispatches them to subscribers, and reconnects with exponential
// backoff on failure.
package serial

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/binsoy69/money-converter/internal/kioskerr"
	"github.com/binsoy69/money-converter/internal/stopwaiter"
)

// Subscriber receives inbound asynchronous events. Implementations must
// not block: do trivial state updates or hand off to a bounded queue, per
// spec §5's "must never block on arbitrary user code" rule. The
// subscriber list is built once at construction (New) and never mutated
// afterward, so the reader never iterates it concurrently with a writer.
type Subscriber interface {
	OnCoin(denom int)
	OnSerialError(text string)
}

// Deductor is the subset of Inventory that DISPENSE_DONE mutates.
type Deductor interface {
	Deduct(denom, n int) (bool, error)
}

// Config carries the physical connection parameters (spec §6).
type Config struct {
	PortName    string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultConfig matches spec §6's stated defaults.
func DefaultConfig() Config {
	return Config{PortName: "/dev/ttyACM0", Baud: 9600, ReadTimeout: time.Second}
}

const (
	ackTimeout      = 2 * time.Second
	sortTimeout     = 60 * time.Second
	dispenseAckWait = 2 * time.Second
	dispensePerItem = 10 * time.Second
)

type dispenseOutcome struct {
	ok  bool
	err error
}

// Link is the SerialLink singleton. Create one per process with New and
// call Start once; Stop shuts down the reader and reconnect loop.
type Link struct {
	stopwaiter.StopWaiter

	cfg      Config
	openPort func(Config) (io.ReadWriteCloser, error)
	coinInv  Deductor
	subs     []Subscriber

	connMu    sync.Mutex
	conn      io.ReadWriteCloser
	connected bool

	cmdMu sync.Mutex // serializes ENABLE/DISABLE/SORT/DISPENSE request-response cycles

	waitMu     sync.Mutex
	ackWaiter  chan string
	sortWaiter chan bool
	dispAck    chan struct{}
	dispDone   chan dispenseOutcome
	dispDenom  int
	dispQty    int

	sessionActive bool // whether to resend ENABLE_COIN after a reconnect; guarded by connMu
}

// New builds a Link. subs is the fixed subscriber list (see Subscriber's
// doc comment); pass the coin Inventory as coinInv so DISPENSE_DONE can
// deduct it directly, per spec §4.B.
func New(cfg Config, coinInv Deductor, subs ...Subscriber) *Link {
	return &Link{
		cfg:      cfg,
		openPort: defaultOpenPort,
		coinInv:  coinInv,
		subs:     subs,
	}
}

// Connected reports whether the physical port is currently open.
func (l *Link) Connected() bool {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	return l.connected
}

// Start launches the supervisor goroutine that owns the connection: it
// opens the port, reads lines until the connection breaks, then
// reconnects with exponential backoff (1s → ×1.5 → cap 10s) forever,
// per spec §4.B.
func (l *Link) Start(ctxIn context.Context) {
	l.StopWaiter.Start(ctxIn)
	l.LaunchThread(l.supervise)
}

// Stop cancels the supervisor and blocks until it exits, closing the port
// if open.
func (l *Link) Stop() {
	l.StopAndWait()
	l.connMu.Lock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.connected = false
	l.connMu.Unlock()
}

func (l *Link) supervise(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 1.5
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0 // retry forever

	for ctx.Err() == nil {
		conn, err := l.openPort(l.cfg)
		if err != nil {
			wait := bo.NextBackOff()
			log.Warn("serial link open failed, retrying", "port", l.cfg.PortName, "err", err, "wait", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		bo.Reset()
		l.connMu.Lock()
		l.conn = conn
		l.connected = true
		l.connMu.Unlock()
		log.Info("serial link connected", "port", l.cfg.PortName)

		l.connMu.Lock()
		resend := l.sessionActive
		l.connMu.Unlock()
		if resend {
			if err := l.EnableCoin(ctx); err != nil {
				log.Warn("failed to resend ENABLE_COIN after reconnect", "err", err)
			}
		}

		l.readUntilBroken(ctx, conn)

		l.connMu.Lock()
		l.connected = false
		l.conn = nil
		l.connMu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		log.Warn("serial link disconnected, will reconnect", "port", l.cfg.PortName)
	}
}

func (l *Link) readUntilBroken(ctx context.Context, conn io.ReadWriteCloser) {
	lr := newLineReader(conn)
	for {
		line, err := lr.ReadLine(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("serial link read error", "err", err)
			}
			return
		}
		if line == "" {
			continue
		}
		l.dispatch(line)
	}
}

func (l *Link) dispatch(line string) {
	msg := parseLine(line)
	switch msg.Kind {
	case KindCoin:
		for _, s := range l.subs {
			s.OnCoin(msg.Denom)
		}
	case KindAck:
		l.deliverAck(msg.Echo)
	case KindSortDone:
		log.Debug("serial sort done event", "denom", msg.Denom)
	case KindOk:
		l.deliverSort(true)
	case KindErr:
		l.deliverSort(false)
		l.deliverDispenseFailure(errors.New(msg.Text))
		for _, s := range l.subs {
			s.OnSerialError(msg.Text)
		}
	case KindDispenseDone:
		if l.coinInv != nil {
			if _, err := l.coinInv.Deduct(msg.Denom, msg.Qty); err != nil {
				log.Error("failed to deduct dispensed coins from inventory", "denom", msg.Denom, "qty", msg.Qty, "err", err)
			}
		}
		l.deliverDispenseDone(msg.Denom, msg.Qty)
	case KindReady, KindHoming:
		log.Info("serial firmware status", "line", msg.Raw)
	default:
		log.Debug("serial link: unknown line, ignoring", "line", line)
	}
}

func (l *Link) deliverAck(echo string) {
	l.waitMu.Lock()
	ch := l.ackWaiter
	l.waitMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- echo:
	default:
	}
}

func (l *Link) deliverSort(ok bool) {
	l.waitMu.Lock()
	ch := l.sortWaiter
	l.waitMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ok:
	default:
	}
}

func (l *Link) deliverDispenseDone(denom, qty int) {
	l.waitMu.Lock()
	ch := l.dispDone
	match := l.dispDenom == denom && l.dispQty == qty
	l.waitMu.Unlock()
	if ch == nil || !match {
		return
	}
	select {
	case ch <- dispenseOutcome{ok: true}:
	default:
	}
}

func (l *Link) deliverDispenseFailure(err error) {
	l.waitMu.Lock()
	ch := l.dispDone
	l.waitMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- dispenseOutcome{ok: false, err: err}:
	default:
	}
}

func (l *Link) writeLine(cmd string) error {
	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()
	if conn == nil {
		return kioskerr.ErrLinkNotConnected
	}
	_, err := conn.Write([]byte(cmd + "\n"))
	if err != nil {
		return errors.Wrapf(err, "write %q", cmd)
	}
	log.Debug("serial link: wrote command", "cmd", cmd)
	return nil
}

// EnableCoin issues ENABLE_COIN and waits up to 2s for its ACK.
func (l *Link) EnableCoin(ctx context.Context) error {
	err := l.sendAndAwaitAck(ctx, "ENABLE_COIN")
	if err == nil {
		l.connMu.Lock()
		l.sessionActive = true
		l.connMu.Unlock()
	}
	return err
}

// DisableCoin issues DISABLE_COIN and waits up to 2s for its ACK.
func (l *Link) DisableCoin(ctx context.Context) error {
	err := l.sendAndAwaitAck(ctx, "DISABLE_COIN")
	l.connMu.Lock()
	l.sessionActive = false
	l.connMu.Unlock()
	return err
}

func (l *Link) sendAndAwaitAck(ctx context.Context, cmd string) error {
	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()

	ch := make(chan string, 1)
	l.waitMu.Lock()
	l.ackWaiter = ch
	l.waitMu.Unlock()
	defer func() {
		l.waitMu.Lock()
		l.ackWaiter = nil
		l.waitMu.Unlock()
	}()

	if err := l.writeLine(cmd); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-time.After(ackTimeout):
		return errors.Wrapf(kioskerr.ErrDispenseTimeout, "no ACK for %s within %s", cmd, ackTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendSortCommand issues SORT:<denom> and blocks for up to 60s for an OK
// (true) or Error/ERR (false) response. Callers must serialize: at most
// one sort is in flight at a time (spec §4.B).
func (l *Link) SendSortCommand(ctx context.Context, denom int) (bool, error) {
	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()

	ch := make(chan bool, 1)
	l.waitMu.Lock()
	l.sortWaiter = ch
	l.waitMu.Unlock()
	defer func() {
		l.waitMu.Lock()
		l.sortWaiter = nil
		l.waitMu.Unlock()
	}()

	if err := l.writeLine(fmt.Sprintf("SORT:%d", denom)); err != nil {
		return false, err
	}
	select {
	case ok := <-ch:
		return ok, nil
	case <-time.After(sortTimeout):
		return false, kioskerr.ErrSortTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Dispense issues DISPENSE:<denom>:<qty>, waits for its ACK (2s), then
// waits up to 10s-per-item for DISPENSE_DONE. On success, DISPENSE_DONE's
// handling in dispatch has already deducted qty from the coin Inventory.
func (l *Link) Dispense(ctx context.Context, denom, qty int) (bool, error) {
	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()

	ackCh := make(chan string, 1)
	doneCh := make(chan dispenseOutcome, 1)
	l.waitMu.Lock()
	l.ackWaiter = ackCh
	l.dispDone = doneCh
	l.dispDenom = denom
	l.dispQty = qty
	l.waitMu.Unlock()
	defer func() {
		l.waitMu.Lock()
		l.ackWaiter = nil
		l.dispDone = nil
		l.waitMu.Unlock()
	}()

	if err := l.writeLine(fmt.Sprintf("DISPENSE:%d:%d", denom, qty)); err != nil {
		return false, err
	}

	select {
	case <-ackCh:
	case <-time.After(dispenseAckWait):
		return false, kioskerr.ErrDispenseTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}

	timeout := time.Duration(qty) * dispensePerItem
	if timeout <= 0 {
		timeout = dispensePerItem
	}
	select {
	case outcome := <-doneCh:
		if outcome.err != nil {
			return false, outcome.err
		}
		return outcome.ok, nil
	case <-time.After(timeout):
		return false, kioskerr.ErrDispenseTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// SortExclusive wraps a sort command with the coin-session mute/unmute
// dance described in spec §5: if sessionActive, DISABLE_COIN before
// sorting and re-issue ENABLE_COIN after, so firmware-side coin events
// never interleave with a sort's request/response pair.
func (l *Link) SortExclusive(ctx context.Context, denom int, sessionActive bool) (bool, error) {
	if sessionActive {
		if err := l.DisableCoin(ctx); err != nil {
			log.Warn("failed to disable coin events before sort", "err", err)
		}
	}
	ok, err := l.SendSortCommand(ctx, denom)
	if sessionActive {
		if reErr := l.EnableCoin(ctx); reErr != nil {
			log.Warn("failed to re-enable coin events after sort", "err", reErr)
		}
	}
	return ok, err
}
