package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/zurustar/busrpc/internal/wire"
)

func TestNewOutgoingAllocatesSpacedIDs(t *testing.T) {
	m := NewManager(&recordingSender{}, 1, 0, nil)

	t1 := m.NewOutgoing()
	t2 := m.NewOutgoing()

	if t1.ID() != 1 || t2.ID() != 3 {
		t.Fatalf("expected ids 1 and 3, got %d and %d", t1.ID(), t2.ID())
	}
	if m.Count() != 2 {
		t.Fatalf("expected 2 active transactions, got %d", m.Count())
	}
}

func TestServerOriginatedManagerAllocatesEvenIDs(t *testing.T) {
	m := NewManager(&recordingSender{}, 2, 0, nil)

	t1 := m.NewOutgoing()
	t2 := m.NewOutgoing()

	if t1.ID() != 2 || t2.ID() != 4 {
		t.Fatalf("expected ids 2 and 4, got %d and %d", t1.ID(), t2.ID())
	}
}

func TestDispatchRoutesToLiveTransactionAndDropsStale(t *testing.T) {
	m := NewManager(&recordingSender{}, 1, 0, nil)
	tr := m.NewOutgoing()

	m.Dispatch(wire.Return(tr.ID(), int64(1)))
	msg, ok, err := tr.read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok || msg.Result != int64(1) {
		t.Fatalf("expected routed Return(1), got ok=%v msg=%+v", ok, msg)
	}

	// A message for an id with no live transaction must be silently dropped.
	m.Dispatch(wire.Return(9999, int64(2)))
}

func TestCallClosesTransactionOnCompletion(t *testing.T) {
	sender := &recordingSender{}
	m := NewManager(sender, 1, 0, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			sent := sender.Sent()
			if len(sent) > 0 {
				m.Dispatch(wire.Return(sent[0].ID, int64(5)))
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	result, err := m.Call(context.Background(), "increment", nil, nil, nil)
	<-done

	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != int64(5) {
		t.Fatalf("expected 5, got %v", result)
	}
	if m.Count() != 0 {
		t.Fatalf("expected the transaction to be removed after Call, got %d active", m.Count())
	}
}

func TestDispatchedRunsAcceptorConcurrently(t *testing.T) {
	sender := &recordingSender{}
	m := NewManager(sender, 2, 0, nil)

	obj := funcObject{fn: func(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
		return int64(len(args)), nil
	}}

	m.Dispatched(context.Background(), 10, obj, "increment", []interface{}{int64(1)}, nil, false)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(sender.Sent()) == 0 {
		time.Sleep(time.Millisecond)
	}

	sent := sender.Sent()
	if len(sent) != 1 || sent[0].Kind != wire.TagReturn || sent[0].Result != int64(1) {
		t.Fatalf("unexpected messages: %+v", sent)
	}
	if m.Count() != 0 {
		t.Fatalf("expected the acceptor transaction to be removed after completion, got %d", m.Count())
	}
}

func TestCloseAllTerminatesEveryTransaction(t *testing.T) {
	m := NewManager(&recordingSender{}, 1, 0, nil)
	t1 := m.NewOutgoing()
	t2 := m.NewOutgoing()

	m.CloseAll()

	if t1.State() != StateTerminal || t2.State() != StateTerminal {
		t.Fatal("expected both transactions to be terminal after CloseAll")
	}
	if m.Count() != 0 {
		t.Fatalf("expected 0 active transactions after CloseAll, got %d", m.Count())
	}
}
