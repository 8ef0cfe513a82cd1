// Package connection implements the spec §4.5 Connection: it multiplexes
// Transactions over a single framed stream, owns the ObjectRegistry,
// ProxyTable, and active-transaction map, and runs the inbound dispatch
// loop. It generalizes the teacher's EnhancedTCPTransport (listener/
// dialer, config struct, error statistics, single writer mutex, logger)
// fused with its transaction.Manager wiring, the way the teacher's
// server.go composes a transport and a transaction manager under one
// lifecycle.
package connection

import (
	"context"
	"fmt"
	"net"
	"reflect"
	"sync"

	"github.com/zurustar/busrpc/internal/logging"
	"github.com/zurustar/busrpc/internal/proxy"
	"github.com/zurustar/busrpc/internal/proxytable"
	"github.com/zurustar/busrpc/internal/registry"
	"github.com/zurustar/busrpc/internal/transaction"
	"github.com/zurustar/busrpc/internal/wire"
)

// releaseQueueCapacity bounds the multi-producer single-consumer
// finalization channel of spec §5 ("the finalization queue is a
// multi-producer single-consumer channel"): finalizer hooks are
// producers and may run concurrently from the Go runtime's GC, so the
// channel must not be unbounded, but it is large enough that a burst of
// collections does not stall finalizers waiting on the consumer.
const releaseQueueCapacity = 256

// Connection is the spec §4.5 Connection.
type Connection struct {
	logger logging.Logger
	conn   net.Conn
	codec  *wire.Codec

	registry     *registry.Registry
	proxies      *proxytable.Table
	transactions *transaction.Manager

	referenceTypes []reflect.Type
	tagByType      map[reflect.Type]wire.Tag

	releaseCh chan string

	mu       sync.Mutex
	shutdown bool
}

// New constructs a Connection over conn. logger may be nil, in which
// case an error-level console logger is used.
func New(conn net.Conn, opts Options, logger logging.Logger) *Connection {
	if logger == nil {
		logger = logging.NewConsoleLogger(logging.ErrorLevel)
	}

	c := &Connection{
		logger:         logger,
		conn:           conn,
		registry:       registry.New(logger),
		referenceTypes: make([]reflect.Type, 0, len(opts.ReferenceTypes)),
		tagByType:      make(map[reflect.Type]wire.Tag, len(opts.ReferenceTypes)),
		releaseCh:      make(chan string, releaseQueueCapacity),
	}
	for i, sample := range opts.ReferenceTypes {
		t := reflect.TypeOf(sample)
		c.referenceTypes = append(c.referenceTypes, t)
		c.tagByType[t] = wire.TagReferenceBase + wire.Tag(i)
	}

	c.codec = wire.NewCodec(conn, c)
	c.proxies = proxytable.New(c, logger)
	c.transactions = transaction.NewManager(c, opts.initialID(), opts.Timeout, logger)
	return c
}

// BindExplicit binds name to object with Explicit lifetime (spec §4.5
// bindExplicit).
func (c *Connection) BindExplicit(name string, object Object) {
	c.registry.BindExplicit(name, object)
}

// BindForeignProxyExplicit binds name, with Explicit lifetime, to a
// Proxy that lives on a different Connection entirely (spec.md §4.1
// Proxy encoding "this realizes multi-hop forwarding"). Invokes against
// name on this Connection are transparently forwarded to target; used
// by a hub-style peer that re-advertises a Name registered by one
// connection to another connection's callers (end-to-end scenario F).
// This is distinct from the wire.Resolver method BindForeignProxy,
// which mints an implicit Name automatically during codec decode rather
// than binding a caller-chosen explicit one.
func (c *Connection) BindForeignProxyExplicit(name string, target *proxy.Proxy) {
	c.registry.BindExplicit(name, foreignProxyAdapter{target: target})
}

// GetProxy returns a Proxy to a remote object of the given Name (spec
// §4.5 getProxy): the two sides of a Connection have independent
// registries, so this is always a proxy, never a round-trip to a local
// object.
func (c *Connection) GetProxy(name string) *proxy.Proxy {
	return c.proxies.GetOrCreate(name, c)
}

// Invoke implements proxy.Invoker: it allocates a Transaction, runs the
// initiator state machine, and closes the transaction on exit (spec
// §4.5 invoke).
func (c *Connection) Invoke(ctx context.Context, name string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	return c.transactions.Call(ctx, name, args, kwargs, transaction.BlockFunc(block))
}

// Send implements transaction.Sender: it serializes and flushes msg,
// propagating I/O errors to the caller (spec §4.5 write). It also backs
// the public Write method and the dispatch loop's own outbound traffic
// (Return/Error/Throw/Release), all of which share one write mutex
// inside wire.Codec.WriteAndFlush.
func (c *Connection) Send(msg wire.Message) error {
	return c.codec.WriteAndFlush(msg)
}

// Write serializes and flushes msg (spec §4.5 write). It is an alias
// for Send under the name spec.md uses, for callers that build on
// Connection directly rather than through a Transaction.
func (c *Connection) Write(msg wire.Message) error {
	return c.Send(msg)
}

// ReleaseProxy implements proxy.Releaser and proxytable.Releaser: it
// enqueues name onto the finalization channel rather than writing
// Release synchronously, since this may be called from a finalizer
// goroutine outside the Connection's own goroutines (spec §4.3, §5
// "producers are finalizer hooks which may run from outside the event
// loop"). It tolerates being called after Connection shutdown by
// dropping the name instead of blocking forever on a full or abandoned
// channel.
func (c *Connection) ReleaseProxy(name string) {
	select {
	case c.releaseCh <- name:
	default:
		c.logger.Warn("release queue full, dropping release", logging.NameField(name))
	}
}

// Stats returns the underlying codec's byte/message counters.
func (c *Connection) Stats() wire.FrameStats {
	return c.codec.Stats()
}

func (c *Connection) notFound(name string) *wire.Exception {
	return &wire.Exception{Class: "NotFound", Message: fmt.Sprintf("Object not found: %s", name)}
}
