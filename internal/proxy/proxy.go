// Package proxy implements the object façade of spec §4.6: a Proxy
// forwards every operation invoked on it into a Transaction on its
// owning Connection. It generalizes the teacher's internal/proxy
// package, which forwarded SIP requests to a resolved target transport,
// to forwarding arbitrary method calls to a bound remote object.
package proxy

import (
	"context"
	"fmt"
)

// BlockFunc is the trailing block callback an invocation may pass: each
// time the remote method yields, BlockFunc is called with the yielded
// values and returns the value to send back as Next (spec §4.4).
type BlockFunc func(values []interface{}) (interface{}, error)

// Invoker is the narrow operational interface a Connection satisfies
// (spec §9 design note (c)): Proxy depends only on this interface, never
// on the connection package directly, so the two packages can reference
// each other without an import cycle (Connection constructs Proxies;
// Proxy calls back into its owning Connection).
//
// Invoke carries only the bound Name, args, kwargs, and block: spec
// §4.1's Invoke payload is "id, method-name, args[], kwargs{}, hasBlk"
// with a single name field, and §4.6 confirms every operation called on
// a Proxy forwards through connection.invoke(name, args, kwargs, block)
// using that same bound name. There is no independent wire-level method
// selector; a bound object that wants to expose more than one remote
// operation distinguishes them through args/kwargs convention or by
// being bound under more than one Name.
type Invoker interface {
	Invoke(ctx context.Context, name string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error)
}

// respondsToKwarg is a reserved kwargs key RespondsTo sets to the
// queried method name: there is no wire-level "introspect" message kind
// in spec §4.1 and Invoke carries only one Name, so a responds-to query
// is an ordinary Invoke against the bound Name, distinguished from a
// real call by this reserved key (analogous to Ruby's respond_to?). An
// Object implementation that wants to answer RespondsTo checks kwargs
// for this key before treating the Invoke as a normal operation.
const respondsToKwarg = "__responds_to__"

// methodKwarg is a reserved kwargs key carrying which operation a call
// selects when a single bound Name exposes more than one remote
// operation (spec §9 design note: "a proxy forwards any method name" —
// since the wire has no independent method-selector field, open
// dispatch onto one bound object is realized through this convention
// rather than a distinct wire field). Objects that expose only one
// operation under their Name may ignore this key entirely.
const methodKwarg = "__method__"

// withMethod returns a copy of kwargs with methodKwarg set to method,
// never mutating the caller's map.
func withMethod(method string, kwargs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kwargs)+1)
	for k, v := range kwargs {
		out[k] = v
	}
	out[methodKwarg] = method
	return out
}

// Proxy is the opaque handle of spec §3: {connection, name}. Equality is
// by identity of (connection, name).
type Proxy struct {
	conn Invoker
	name string
}

// New constructs a Proxy bound to name on conn.
func New(conn Invoker, name string) *Proxy {
	return &Proxy{conn: conn, name: name}
}

// Name returns the bound Name. This bypasses forwarding (spec §4.6
// reserved accessor __name__).
func (p *Proxy) Name() string {
	return p.name
}

// Connection returns the owning Invoker. This bypasses forwarding (spec
// §4.6 reserved accessor __connection__).
func (p *Proxy) Connection() Invoker {
	return p.conn
}

// ProxyName implements wire.ProxyLike.
func (p *Proxy) ProxyName() string {
	return p.name
}

// ProxyOwner implements wire.ProxyLike: it returns the owning
// Connection's identity, compared by the codec against its own identity
// to distinguish a local round-trip from a foreign (multi-hop) proxy.
func (p *Proxy) ProxyOwner() interface{} {
	return p.conn
}

// Call forwards args/kwargs/block through a Transaction against the
// bound Name on the owning Connection (spec §4.6).
func (p *Proxy) Call(ctx context.Context, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	return p.conn.Invoke(ctx, p.name, args, kwargs, block)
}

// Invoke is the open-dispatch convenience wrapper of spec §9's design
// note (c): it forwards a named operation against the bound Name,
// carrying method via methodKwarg so a multi-operation remote object can
// branch on it. Generated per-service stubs (spec §9 realization (a))
// would call this once per method with method fixed to their own name.
func (p *Proxy) Invoke(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	return p.Call(ctx, args, withMethod(method, kwargs), block)
}

// RespondsTo forwards a responds-to-method query to the remote object
// (spec §4.6 introspection helpers), tagged via respondsToKwarg since
// Invoke has no independent method selector to carry the query in.
func (p *Proxy) RespondsTo(ctx context.Context, method string) (bool, error) {
	result, err := p.Call(ctx, nil, map[string]interface{}{respondsToKwarg: method}, nil)
	if err != nil {
		return false, err
	}
	ok, _ := result.(bool)
	return ok, nil
}

// Equal reports whether other is a Proxy for the same (connection, name)
// pair (spec §3 "Equality of two proxies is by identity").
func (p *Proxy) Equal(other *Proxy) bool {
	if other == nil {
		return false
	}
	return p.conn == other.conn && p.name == other.name
}

// String renders the human-readable identity "proxy <name>" locally from
// the bound Name; it does not call the remote object.
func (p *Proxy) String() string {
	return fmt.Sprintf("proxy <%s>", p.name)
}

// Releaser is implemented by Connections that support eager, explicit
// proxy release in addition to GC-driven finalization (spec §9 "model
// Proxies as reference-counted handles with an explicit close").
type Releaser interface {
	ReleaseProxy(name string)
}

// Close eagerly sends Release(name) to the peer instead of waiting for
// garbage collection to drive it through the ProxyTable's finalizer.
// Callers that hold a Proxy only briefly should prefer Close over
// letting it become unreachable, since GC timing is not bounded.
func (p *Proxy) Close() {
	if r, ok := p.conn.(Releaser); ok {
		r.ReleaseProxy(p.name)
	}
}
