package transaction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zurustar/busrpc/internal/wire"
)

type funcObject struct {
	fn func(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error)
}

func (f funcObject) Invoke(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	return f.fn(ctx, method, args, kwargs, block)
}

func TestAcceptSendsReturnOnSuccess(t *testing.T) {
	sender := &recordingSender{}
	tr := New(5, false, sender, 0, nil, nil)

	obj := funcObject{fn: func(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
		return int64(len(args)), nil
	}}

	Accept(context.Background(), tr, obj, "increment", []interface{}{int64(1), int64(2)}, nil, false)

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one message, got %+v", sent)
	}
	if sent[0].Kind != wire.TagReturn || sent[0].Result != int64(2) {
		t.Fatalf("unexpected message: %+v", sent[0])
	}
	if tr.State() != StateTerminal {
		t.Fatalf("expected terminal state, got %v", tr.State())
	}
}

func TestAcceptSendsErrorOnFailure(t *testing.T) {
	sender := &recordingSender{}
	tr := New(5, false, sender, 0, nil, nil)

	obj := funcObject{fn: func(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
		return nil, fmt.Errorf("boom")
	}}

	Accept(context.Background(), tr, obj, "fail", nil, nil, false)

	sent := sender.Sent()
	if len(sent) != 1 || sent[0].Kind != wire.TagError {
		t.Fatalf("expected one Error message, got %+v", sent)
	}
	if sent[0].Exception.Message != "boom" {
		t.Fatalf("unexpected exception: %+v", sent[0].Exception)
	}
}

func TestAcceptSendsThrowForThrownControl(t *testing.T) {
	sender := &recordingSender{}
	tr := New(5, false, sender, 0, nil, nil)

	obj := funcObject{fn: func(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
		return nil, &ThrownControl{Tag: "break", Value: int64(9)}
	}}

	Accept(context.Background(), tr, obj, "loop", nil, nil, false)

	sent := sender.Sent()
	if len(sent) != 1 || sent[0].Kind != wire.TagThrow {
		t.Fatalf("expected one Throw message, got %+v", sent)
	}
	if sent[0].ThrowTag != "break" || sent[0].ThrowValue != int64(9) {
		t.Fatalf("unexpected throw: %+v", sent[0])
	}
}

// TestAcceptYieldLoopDeliversNextToBlock drives a 3-round yield/next
// handshake: Accept runs on its own goroutine (it blocks waiting for
// each Next on tr's inbox), while this goroutine observes each Yield
// via the sender and supplies the paired Next.
func TestAcceptYieldLoopDeliversNextToBlock(t *testing.T) {
	sender := &recordingSender{}
	tr := New(5, false, sender, 0, nil, nil)

	var seenFromNext []interface{}
	obj := funcObject{fn: func(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
		for i := int64(0); i < 3; i++ {
			v, err := block([]interface{}{i})
			if err != nil {
				return nil, err
			}
			seenFromNext = append(seenFromNext, v)
		}
		return int64(len(seenFromNext)), nil
	}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		Accept(context.Background(), tr, obj, "each", nil, nil, true)
	}()

	for i := 0; i < 3; i++ {
		waitForSentCount(t, sender, i+1)
		tr.push(wire.Next(5, int64(i*10)))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Accept to finish")
	}

	if len(seenFromNext) != 3 || seenFromNext[0] != int64(0) || seenFromNext[2] != int64(20) {
		t.Fatalf("unexpected values observed from Next: %v", seenFromNext)
	}

	sent := sender.Sent()
	last := sent[len(sent)-1]
	if last.Kind != wire.TagReturn || last.Result != int64(3) {
		t.Fatalf("expected a final Return(3), got %+v", last)
	}
}

func waitForSentCount(t *testing.T, sender *recordingSender, count int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sender.Sent()) >= count {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent messages, got %d", count, len(sender.Sent()))
}
