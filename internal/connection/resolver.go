package connection

import (
	"reflect"

	"github.com/zurustar/busrpc/internal/proxy"
	"github.com/zurustar/busrpc/internal/wire"
)

// Owner implements wire.Resolver: a Connection's own identity token is
// itself, compared by the codec against a ProxyLike's ProxyOwner() to
// tell a local round-trip from a foreign (multi-hop) proxy (spec §4.1).
func (c *Connection) Owner() interface{} {
	return c
}

// BindForeignProxy implements wire.Resolver: p belongs to a different
// Connection (spec §4.1's "proxy owned by a different connection"), so
// it is re-advertised here under a fresh implicit Name wrapping a
// foreignProxyAdapter, letting a later Invoke against that Name forward
// back out through p.
func (c *Connection) BindForeignProxy(p wire.ProxyLike) (string, error) {
	target, ok := p.(*proxy.Proxy)
	if !ok {
		return "", &wire.ProtocolError{Reason: "foreign proxy value was not a *proxy.Proxy"}
	}
	return c.registry.BindImplicit(foreignProxyAdapter{target: target}), nil
}

// MintImplicitName implements wire.Resolver: obj is a registered
// reference-type value encountered during encode (spec §6
// "reference_types"); it is auto-bound as an implicit Object the same
// way any other application value would be, so a later Invoke against
// the minted Name dispatches back into it.
func (c *Connection) MintImplicitName(obj interface{}) (string, error) {
	return c.registry.BindImplicit(obj), nil
}

// ReferenceTag implements wire.Resolver: it reports the registered
// extension tag for obj's runtime type, if any, per the ReferenceTypes
// configured at construction (spec §6).
func (c *Connection) ReferenceTag(obj interface{}) (wire.Tag, bool) {
	if obj == nil {
		return 0, false
	}
	tag, ok := c.tagByType[reflect.TypeOf(obj)]
	return tag, ok
}

// ResolveProxyRef implements wire.Resolver: if name is locally bound
// (round-trip identity — this Connection previously exported it), the
// original bound object is returned; otherwise a Proxy representing the
// remote object is constructed (spec §4.1).
func (c *Connection) ResolveProxyRef(name string) (interface{}, error) {
	if obj, ok := c.registry.Lookup(name); ok {
		if adapter, ok := obj.(foreignProxyAdapter); ok {
			return adapter.target, nil
		}
		return obj, nil
	}
	return c.GetProxy(name), nil
}

// NewReference implements wire.Resolver for a decoded reference-type
// tag. The tag only distinguishes the wire kind the peer used to
// auto-bind the value; resolution to an actual Go value follows the
// same round-trip-or-proxy rule as an ordinary ProxyRef, since nothing
// about a dynamically typed remote reference lets this side reconstruct
// a concrete Go type for it.
func (c *Connection) NewReference(tag wire.Tag, name string) (interface{}, error) {
	return c.ResolveProxyRef(name)
}
