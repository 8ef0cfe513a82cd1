package transaction

import (
	"context"
	"sync"
	"time"

	"github.com/zurustar/busrpc/internal/logging"
	"github.com/zurustar/busrpc/internal/wire"
)

// Manager owns the active-transactions map for one Connection (spec
// §4.5) and allocates TransactionIds two at a time: client-originated
// connections allocate odd ids starting at 1, server-originated
// connections allocate even ids starting at 2 (spec §6 initial_id
// option), generalizing the teacher's map[id]Transaction +
// sendMessage-closure Manager from per-branch SIP transaction keys to
// a simple monotonic counter.
type Manager struct {
	sender  Sender
	timeout time.Duration
	logger  logging.Logger

	mu     sync.Mutex
	nextID int64
	byID   map[int64]*Transaction
}

// NewManager creates a Manager. initialID should be 1 for
// client-originated connections and 2 for server-originated ones (spec
// §6); sender delivers outgoing protocol messages; timeout is the
// default per-read timeout applied to every Transaction it creates.
func NewManager(sender Sender, initialID int64, timeout time.Duration, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewConsoleLogger(logging.ErrorLevel)
	}
	return &Manager{
		sender:  sender,
		timeout: timeout,
		logger:  logger,
		nextID:  initialID,
		byID:    make(map[int64]*Transaction),
	}
}

// NewOutgoing allocates a fresh initiator Transaction under the next
// id in this Manager's sequence (odd or even per initial_id, spaced by
// 2 so the two peers' allocations never collide).
func (m *Manager) NewOutgoing() *Transaction {
	m.mu.Lock()
	id := m.nextID
	m.nextID += 2
	m.mu.Unlock()

	t := New(id, true, m.sender, m.timeout, m.logger, func() { m.remove(id) })

	m.mu.Lock()
	m.byID[id] = t
	m.mu.Unlock()
	return t
}

// NewIncoming registers an acceptor Transaction under the id carried by
// an inbound Invoke message (spec §4.5 dispatch table: "create acceptor
// Transaction with id from the message").
func (m *Manager) NewIncoming(id int64) *Transaction {
	t := New(id, false, m.sender, m.timeout, m.logger, func() { m.remove(id) })

	m.mu.Lock()
	m.byID[id] = t
	m.mu.Unlock()
	return t
}

func (m *Manager) remove(id int64) {
	m.mu.Lock()
	delete(m.byID, id)
	m.mu.Unlock()
}

// Dispatch routes msg to the Transaction named by msg.ID, dropping it
// silently if no such transaction is live (spec §4.5 "if none, drop
// silently (stale)"; §7 "stale messages ... dropped silently without
// logging").
func (m *Manager) Dispatch(msg wire.Message) {
	m.mu.Lock()
	t, ok := m.byID[msg.ID]
	m.mu.Unlock()
	if !ok {
		return
	}
	t.push(msg)
}

// Call allocates an outgoing Transaction, runs the initiator side of
// the protocol to completion, and closes the Transaction on every exit
// path (spec §4.5 "invoke(...) — allocates a Transaction, calls
// Transaction.invoke, closes the transaction on exit").
func (m *Manager) Call(ctx context.Context, name string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	t := m.NewOutgoing()
	defer t.Close()
	return Invoke(ctx, t, name, args, kwargs, block)
}

// Dispatched spawns the acceptor side of the protocol for an inbound
// Invoke(id, method, ...) as a concurrent task (spec §4.5 dispatch
// table: "spawn a concurrent task running Transaction.accept"),
// registering the Transaction under id first so Dispatch can route
// Next/Error/Close back to it while Accept is still running.
func (m *Manager) Dispatched(ctx context.Context, id int64, object Object, method string, args []interface{}, kwargs map[string]interface{}, hasBlock bool) {
	t := m.NewIncoming(id)
	go func() {
		defer t.Close()
		Accept(ctx, t, object, method, args, kwargs, hasBlock)
	}()
}

// Count reports the number of active transactions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// CloseAll closes every active transaction (spec §4.5 "on exit from
// run ... close every outstanding transaction, which closes their
// inboxes and unblocks any waiters with a terminal nil").
func (m *Manager) CloseAll() {
	m.mu.Lock()
	transactions := make([]*Transaction, 0, len(m.byID))
	for _, t := range m.byID {
		transactions = append(transactions, t)
	}
	m.mu.Unlock()

	for _, t := range transactions {
		t.Close()
	}
}
