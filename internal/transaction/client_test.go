package transaction

import (
	"context"
	"testing"

	"github.com/zurustar/busrpc/internal/wire"
)

func TestInvokeReturnsResultOnReturn(t *testing.T) {
	sender := &recordingSender{}
	tr := New(1, true, sender, 0, nil, nil)

	go func() {
		tr.push(wire.Return(1, int64(7)))
	}()

	result, err := Invoke(context.Background(), tr, "increment", []interface{}{int64(1)}, nil, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result != int64(7) {
		t.Fatalf("expected 7, got %v", result)
	}
	if sent := sender.Sent(); len(sent) != 1 || sent[0].Kind != wire.TagInvoke {
		t.Fatalf("expected one Invoke to have been sent, got %+v", sent)
	}
	if tr.State() != StateTerminal {
		t.Fatalf("expected terminal state, got %v", tr.State())
	}
}

func TestInvokeYieldLoopCallsBlockAndSendsNext(t *testing.T) {
	sender := &recordingSender{}
	tr := New(1, true, sender, 0, nil, nil)

	go func() {
		tr.push(wire.Yield(1, []interface{}{int64(1), int64(2)}))
		tr.push(wire.Return(1, int64(99)))
	}()

	var seen []interface{}
	block := func(values []interface{}) (interface{}, error) {
		seen = values
		return int64(3), nil
	}

	result, err := Invoke(context.Background(), tr, "each", nil, nil, block)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result != int64(99) {
		t.Fatalf("expected 99, got %v", result)
	}
	if len(seen) != 2 {
		t.Fatalf("expected block to observe 2 yielded values, got %v", seen)
	}

	sent := sender.Sent()
	foundNext := false
	for _, msg := range sent {
		if msg.Kind == wire.TagNext && msg.Result == int64(3) {
			foundNext = true
		}
	}
	if !foundNext {
		t.Fatalf("expected a Next(3) to have been sent, got %+v", sent)
	}
}

func TestInvokeErrorIsReraised(t *testing.T) {
	sender := &recordingSender{}
	tr := New(1, true, sender, 0, nil, nil)

	exc := &wire.Exception{Class: "RuntimeError", Message: "boom"}
	go func() {
		tr.push(wire.Err(1, exc))
	}()

	_, err := Invoke(context.Background(), tr, "fail", nil, nil, nil)
	if err != exc {
		t.Fatalf("expected the exact Exception to be returned, got %v", err)
	}
}

func TestInvokeThrowSurfacesRemoteThrow(t *testing.T) {
	sender := &recordingSender{}
	tr := New(1, true, sender, 0, nil, nil)

	go func() {
		tr.push(wire.Throw(1, "custom-signal", "payload"))
	}()

	_, err := Invoke(context.Background(), tr, "raise", nil, nil, nil)
	rt, ok := err.(*RemoteThrow)
	if !ok {
		t.Fatalf("expected *RemoteThrow, got %T: %v", err, err)
	}
	if rt.Tag != "custom-signal" || rt.Value != "payload" {
		t.Fatalf("unexpected RemoteThrow: %+v", rt)
	}
}

func TestInvokeTimeoutYieldsNilResult(t *testing.T) {
	sender := &recordingSender{}
	tr := New(1, true, sender, 1, nil, nil) // 1ns: fires immediately

	result, err := Invoke(context.Background(), tr, "slow", nil, nil, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result on timeout, got %v", result)
	}
}
