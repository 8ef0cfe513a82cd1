package connection

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

// counterObject is a tiny bound Object for end-to-end tests: each
// Invoke increments a counter by len(args) and returns the running
// total, independent of whatever method name the peer used.
type counterObject struct {
	total int64
}

func (c *counterObject) Invoke(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	c.total += int64(len(args))
	return c.total, nil
}

func newPipePair() (client, server *Connection) {
	c1, c2 := net.Pipe()
	client = New(c1, Options{InitialID: 1}, nil)
	server = New(c2, Options{InitialID: 2}, nil)
	return client, server
}

func TestClientInvokesObjectBoundOnServer(t *testing.T) {
	client, server := newPipePair()

	obj := &counterObject{}
	server.BindExplicit("counter", obj)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.Run(ctx)
	go client.Run(ctx)

	proxy := client.GetProxy("counter")
	result, err := proxy.Call(ctx, []interface{}{int64(1), int64(2), int64(3)}, nil, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != int64(3) {
		t.Fatalf("expected 3, got %v", result)
	}

	result, err = proxy.Call(ctx, []interface{}{int64(1)}, nil, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != int64(4) {
		t.Fatalf("expected 4, got %v", result)
	}
}

func TestInvokeAgainstUnboundNameReturnsNotFound(t *testing.T) {
	client, server := newPipePair()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.Run(ctx)
	go client.Run(ctx)

	proxy := client.GetProxy("missing")
	_, err := proxy.Call(ctx, nil, nil, nil)
	if err == nil {
		t.Fatal("expected an error for an unbound name")
	}
	if !strings.Contains(err.Error(), "Object not found: missing") {
		t.Fatalf("expected error to mention %q, got %v", "Object not found: missing", err)
	}
}

func TestYieldNextRoundTrip(t *testing.T) {
	client, server := newPipePair()

	obj := &yieldingObject{rounds: 3}
	server.BindExplicit("each", obj)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.Run(ctx)
	go client.Run(ctx)

	var seen []interface{}
	block := func(values []interface{}) (interface{}, error) {
		seen = append(seen, values[0])
		return int64(1), nil
	}

	proxy := client.GetProxy("each")
	result, err := proxy.Call(ctx, nil, nil, block)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != int64(3) {
		t.Fatalf("expected final result 3, got %v", result)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 yielded values, got %v", seen)
	}
}

type yieldingObject struct {
	rounds int64
}

func (y *yieldingObject) Invoke(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	var total int64
	for i := int64(0); i < y.rounds; i++ {
		v, err := block([]interface{}{i})
		if err != nil {
			return nil, err
		}
		n, _ := v.(int64)
		total += n
	}
	return total, nil
}

func TestRunShutsDownCleanlyOnContextCancel(t *testing.T) {
	client, server := newPipePair()

	ctx, cancel := context.WithCancel(context.Background())

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Run(ctx) }()
	go client.Run(ctx)

	cancel()

	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server Run to return after cancel")
	}
}
