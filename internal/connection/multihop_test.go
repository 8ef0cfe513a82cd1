package connection

import (
	"context"
	"net"
	"testing"

	"github.com/zurustar/busrpc/internal/proxy"
)

// workerController is X's local object, bound under "controller" on the
// X-hub connection. do_work returns a fixed marker so the test can tell
// the call really reached X and not some other stand-in.
type workerController struct{}

func (workerController) Invoke(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	if kwargs["__method__"] == "do_work" {
		return "work done by X", nil
	}
	return nil, nil
}

// hub receives X's registration call and re-advertises the forwarded
// proxy on the hub-Y connection under a fixed Name.
type hub struct {
	hubY *Connection
}

func (h *hub) Invoke(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	p, ok := args[0].(*proxy.Proxy)
	if !ok {
		return nil, nil
	}
	h.hubY.BindForeignProxyExplicit("worker-1", p)
	return true, nil
}

// TestMultiHopProxyForwarding exercises end-to-end scenario F: X
// registers a proxy to its own controller with the hub; Y asks the hub
// for "worker-1" and invokes do_work, and the call must arrive at X's
// controller, not the hub.
func TestMultiHopProxyForwarding(t *testing.T) {
	xConn, hubXConn := net.Pipe()
	yConn, hubYConn := net.Pipe()

	x := New(xConn, Options{InitialID: 1}, nil)
	hubX := New(hubXConn, Options{InitialID: 2}, nil)
	hubY := New(hubYConn, Options{InitialID: 2}, nil)
	y := New(yConn, Options{InitialID: 1}, nil)

	h := &hub{hubY: hubY}
	hubX.BindExplicit("register", h)
	x.BindExplicit("controller", workerController{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go x.Run(ctx)
	go hubX.Run(ctx)
	go hubY.Run(ctx)
	go y.Run(ctx)

	// X registers a proxy to its own "controller" binding with the hub.
	selfProxy := proxy.New(x, "controller")
	registerProxy := x.GetProxy("register")
	ok, err := registerProxy.Call(ctx, []interface{}{selfProxy}, nil, nil)
	if err != nil {
		t.Fatalf("register call: %v", err)
	}
	if ok != true {
		t.Fatalf("expected registration to report true, got %v", ok)
	}

	// Y asks the hub for worker-1 and invokes do_work.
	worker := y.GetProxy("worker-1")
	result, err := worker.Invoke(ctx, "do_work", nil, nil, nil)
	if err != nil {
		t.Fatalf("do_work: %v", err)
	}
	if result != "work done by X" {
		t.Fatalf("expected the call to reach X's controller, got %v", result)
	}
}
