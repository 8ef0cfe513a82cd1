// Package transaction implements the Transaction state machine of spec
// §4.4: the unit that owns one logical call's bidirectional message
// stream. It generalizes the teacher's internal/transaction package
// (BaseTransaction + ClientTransaction/ServerTransaction split, driven
// by a Manager holding a map[id]Transaction and a sendMessage closure)
// from SIP's retransmission-timer state machine to the bus RPC
// protocol's simpler Invoke/Return/Yield/Next/Error/Throw/Close
// exchange, which needs no retransmission timers of its own: the
// underlying stream transport is already reliable and ordered (spec
// §6).
package transaction

import (
	"sync"
	"time"

	"github.com/zurustar/busrpc/internal/logging"
	"github.com/zurustar/busrpc/internal/wire"
)

// State is a coarse phase marker for a Transaction, kept mainly for
// diagnostics and tests; the actual control flow lives in the Invoke
// and Accept functions' read loops rather than in a table of
// transitions; the protocol has far fewer states than SIP's timer
// machine did.
type State int

const (
	StateInit State = iota
	StateAwaitResponse
	StateDispatched
	StateAwaitNext
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAwaitResponse:
		return "await-response"
	case StateDispatched:
		return "dispatched"
	case StateAwaitNext:
		return "await-next"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// inboxCapacity bounds the number of undelivered messages a Transaction
// buffers. The protocol is a strict ping-pong per id (spec §4.4), so
// more than a couple of messages ever being in flight at once would
// indicate a misbehaving peer rather than a legitimate burst.
const inboxCapacity = 4

// Transaction is one logical call's state (spec §4.4): {id, connection,
// inbox, timeout, closed?}. "connection" here is the narrow Sender the
// owning Manager supplies, not the full connection package, avoiding
// any import back to it.
type Transaction struct {
	id       int64
	isClient bool
	sender   Sender
	timeout  time.Duration
	logger   logging.Logger
	onClose  func()

	mu     sync.Mutex
	state  State
	closed bool
	inbox  chan wire.Message
}

// New creates a Transaction. onClose, if non-nil, is invoked once after
// the Transaction transitions to closed (used by Manager to forget it).
func New(id int64, isClient bool, sender Sender, timeout time.Duration, logger logging.Logger, onClose func()) *Transaction {
	if logger == nil {
		logger = logging.NewConsoleLogger(logging.ErrorLevel)
	}
	return &Transaction{
		id:       id,
		isClient: isClient,
		sender:   sender,
		timeout:  timeout,
		logger:   logger,
		onClose:  onClose,
		state:    StateInit,
		inbox:    make(chan wire.Message, inboxCapacity),
	}
}

// ID returns the TransactionId.
func (t *Transaction) ID() int64 {
	return t.id
}

// IsClient reports whether this Transaction was created by the
// initiator (outgoing Invoke) rather than the acceptor (dispatched
// inbound Invoke).
func (t *Transaction) IsClient() bool {
	return t.isClient
}

// State returns the current coarse state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transaction) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// push delivers an inbound message into the Transaction's inbox (spec
// §4.5 dispatch table: "push message to its inbox"). It silently drops
// the message if the Transaction has already closed (spec §4.4 "late
// messages for this id arriving after close are ignored silently") or
// if the inbox is unexpectedly full.
func (t *Transaction) push(msg wire.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.inbox <- msg:
	default:
		t.logger.Warn("transaction inbox full, dropping message", logging.TransactionField(t.id))
	}
}

// read waits for the next inbox message, the Transaction's per-read
// timeout, or ctx cancellation. ok=false means either a timeout
// elapsed or the inbox was closed out from under the reader; both
// cases are treated identically by callers as an implicit Return(nil)
// (spec §4.4 step 3, §4.5 "unblocks any waiters with a terminal nil").
func (t *Transaction) read(ctx contextDoner) (msg wire.Message, ok bool, err error) {
	var timeoutC <-chan time.Time
	if t.timeout > 0 {
		timer := time.NewTimer(t.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case msg, chanOK := <-t.inbox:
		return msg, chanOK, nil
	case <-timeoutC:
		return wire.Message{}, false, nil
	case <-ctx.Done():
		return wire.Message{}, false, ctx.Err()
	}
}

// contextDoner is the subset of context.Context that read needs; kept
// narrow so tests can drive it without importing context themselves if
// not already doing so.
type contextDoner interface {
	Done() <-chan struct{}
	Err() error
}

// Close idempotently terminates the Transaction: it marks it closed,
// closes the inbox (unblocking any in-progress read with a nil
// message), and invokes onClose so the owning Manager can forget it
// (spec §4.4 "close() — idempotent; removes the transaction from the
// connection and closes the inbox").
func (t *Transaction) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.state = StateTerminal
	close(t.inbox)
	onClose := t.onClose
	t.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}
