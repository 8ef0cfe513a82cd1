package transaction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zurustar/busrpc/internal/wire"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []wire.Message
}

func (s *recordingSender) Send(msg wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Sent() []wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.Message, len(s.sent))
	copy(out, s.sent)
	return out
}

func TestPushDeliversToInbox(t *testing.T) {
	tr := New(1, true, &recordingSender{}, 0, nil, nil)

	tr.push(wire.Return(1, int64(42)))

	msg, ok, err := tr.read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok {
		t.Fatal("expected a delivered message")
	}
	if msg.Kind != wire.TagReturn || msg.Result != int64(42) {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestPushAfterCloseIsDropped(t *testing.T) {
	tr := New(1, true, &recordingSender{}, 0, nil, nil)
	tr.Close()

	tr.push(wire.Return(1, int64(42)))

	if tr.State() != StateTerminal {
		t.Fatalf("expected terminal state, got %v", tr.State())
	}
}

func TestReadTimesOutToNotOK(t *testing.T) {
	tr := New(1, true, &recordingSender{}, 10*time.Millisecond, nil, nil)

	_, ok, err := tr.read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ok {
		t.Fatal("expected a timeout to report ok=false")
	}
}

func TestCloseIsIdempotentAndInvokesOnCloseOnce(t *testing.T) {
	calls := 0
	tr := New(1, true, &recordingSender{}, 0, nil, func() { calls++ })

	tr.Close()
	tr.Close()

	if calls != 1 {
		t.Fatalf("expected exactly one onClose call, got %d", calls)
	}
}

func TestCloseUnblocksPendingRead(t *testing.T) {
	tr := New(1, true, &recordingSender{}, 0, nil, nil)

	done := make(chan struct{})
	go func() {
		_, ok, err := tr.read(context.Background())
		if err != nil {
			t.Errorf("read: %v", err)
		}
		if ok {
			t.Error("expected closed inbox to report ok=false")
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	tr.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Close to unblock read")
	}
}
