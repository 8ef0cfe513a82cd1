package connection

import (
	"context"

	"github.com/zurustar/busrpc/internal/proxy"
	"github.com/zurustar/busrpc/internal/transaction"
)

// Object is what BindExplicit and registered reference-type values must
// implement to be dispatched to when a peer's Invoke names them: it is
// transaction.Object re-exported under the connection package so callers
// never need to import internal/transaction directly.
type Object = transaction.Object

// BlockFunc is the trailing block callback re-exported from the proxy
// package for the same reason.
type BlockFunc = proxy.BlockFunc

// foreignProxyAdapter lets a *proxy.Proxy owned by a different
// Connection be re-advertised under a fresh Name in this Connection's
// ObjectRegistry: an incoming Invoke against that Name dispatches here,
// which simply forwards through the wrapped Proxy's own Call, realizing
// multi-hop forwarding (spec §4.1 "a proxy owned by a different
// connection is re-advertised under a fresh implicit Name"). The
// locally-bound name the caller invoked through is dropped (the wrapped
// Proxy already has its own bound Name on the far connection); kwargs
// pass through untouched, so the `__method__` convention (proxy.go)
// survives the extra hop transparently.
type foreignProxyAdapter struct {
	target *proxy.Proxy
}

func (f foreignProxyAdapter) Invoke(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	return f.target.Call(ctx, args, kwargs, block)
}
