package connection

import (
	"context"

	"github.com/zurustar/busrpc/internal/logging"
	"github.com/zurustar/busrpc/internal/wire"
)

// Run runs the inbound dispatch loop until the stream ends, fails, or
// ctx is cancelled (spec §4.5 run). It also starts the finalizer task
// that drains the ProxyTable's release queue by writing Release
// messages. On exit it closes every outstanding transaction, stops the
// finalizer task, and clears the ProxyTable (spec §4.5, §5
// Cancellation).
func (c *Connection) Run(ctx context.Context) error {
	stopFinalizer := make(chan struct{})
	finalizerDone := make(chan struct{})
	go c.runFinalizer(stopFinalizer, finalizerDone)

	loopExited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-loopExited:
		}
	}()

	var runErr error
	for {
		msg, err := c.codec.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
			} else {
				runErr = err
			}
			break
		}
		c.dispatch(ctx, msg)
	}
	close(loopExited)

	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()

	c.transactions.CloseAll()
	close(stopFinalizer)
	<-finalizerDone
	c.proxies.Shutdown()

	c.logger.Info("connection closed", logging.StringField("stats", c.Stats().String()))
	return runErr
}

// dispatch implements the spec §4.5 dispatch table.
func (c *Connection) dispatch(ctx context.Context, msg wire.Message) {
	switch msg.Kind {
	case wire.TagInvoke:
		c.dispatchInvoke(ctx, msg)
	case wire.TagReturn, wire.TagYield, wire.TagError, wire.TagNext, wire.TagThrow, wire.TagClose:
		c.transactions.Dispatch(msg)
	case wire.TagRelease:
		c.registry.Release(msg.Name)
	default:
		c.logger.Warn("dropping message of unknown kind", logging.StringField("kind", msg.Kind.String()))
	}
}

func (c *Connection) dispatchInvoke(ctx context.Context, msg wire.Message) {
	bound, ok := c.registry.Lookup(msg.Method)
	if !ok {
		if err := c.Send(wire.Err(msg.ID, c.notFound(msg.Method))); err != nil {
			c.logger.Warn("failed to write NotFound error", logging.ErrorField(err))
		}
		return
	}

	object, ok := bound.(Object)
	if !ok {
		if err := c.Send(wire.Err(msg.ID, c.notFound(msg.Method))); err != nil {
			c.logger.Warn("failed to write NotFound error", logging.ErrorField(err))
		}
		return
	}

	c.transactions.Dispatched(ctx, msg.ID, object, msg.Method, msg.Args, msg.Kwargs, msg.HasBlock)
}

// runFinalizer drains the release queue, writing Release(name) for each
// entry, until stop is closed by Run's shutdown sequence (spec §4.3, §5
// "the dedicated finalizer task" is the channel's sole consumer). The
// release channel itself is never closed, since finalizer hooks that
// fire concurrently with shutdown must always be able to send to it
// without racing a close (spec §4.3 "a shutdown race that drops a
// pending release is tolerated" covers exactly this: a send arriving
// after stop is simply never drained).
func (c *Connection) runFinalizer(stop <-chan struct{}, done chan struct{}) {
	defer close(done)
	for {
		select {
		case name := <-c.releaseCh:
			if err := c.Send(wire.Release(name)); err != nil {
				c.logger.Debug("failed to send release, connection likely closed", logging.NameField(name), logging.ErrorField(err))
			}
		case <-stop:
			return
		}
	}
}
