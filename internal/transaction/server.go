package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/zurustar/busrpc/internal/wire"
)

// ErrYieldClosed is returned from a block callback when the peer sends
// Close during a yield round-trip instead of Next or Error (spec §4.4
// acceptor "Close -> break out of the iteration (method may clean up
// and continue or terminate)"). Object implementations that iterate via
// the block callback should treat this as a request to stop iterating.
var ErrYieldClosed = errors.New("transaction: peer closed during yield")

// ThrownControl lets a bound Object's Invoke implementation request a
// tagged non-local control transfer instead of an ordinary Error (spec
// §4.4 acceptor "On non-local control transfer ... write Throw(id,
// (tag, value))"). Returning a *ThrownControl from Invoke is how an
// object signals this; any other error is serialized as Error.
type ThrownControl struct {
	Tag   string
	Value interface{}
}

func (e *ThrownControl) Error() string {
	return fmt.Sprintf("transaction: thrown control %q", e.Tag)
}

// Accept runs the acceptor side of spec §4.4: Dispatched -> {EmitYield
// -> AwaitNext}* -> Terminal. The caller is responsible for allocating
// t (via Manager.NewIncoming) and closing it afterward.
func Accept(ctx context.Context, t *Transaction, object Object, method string, args []interface{}, kwargs map[string]interface{}, hasBlock bool) {
	t.setState(StateDispatched)

	var block BlockFunc
	if hasBlock {
		block = func(values []interface{}) (interface{}, error) {
			return yieldOnce(ctx, t, values)
		}
	}

	result, err := object.Invoke(ctx, method, args, kwargs, block)
	t.setState(StateTerminal)

	var thrown *ThrownControl
	switch {
	case err == nil:
		_ = t.sender.Send(wire.Return(t.id, result))
	case errors.As(err, &thrown):
		_ = t.sender.Send(wire.Throw(t.id, thrown.Tag, thrown.Value))
	default:
		_ = t.sender.Send(wire.Err(t.id, exceptionFromError(err)))
	}
}

// yieldOnce writes one Yield(id, values) and waits for the paired
// Next, Error, or Close response (spec §4.4 "invoke object.method(...)
// with a block callback that, per yielded tuple, writes Yield(id, vs),
// then reads the paired response from the inbox").
func yieldOnce(ctx context.Context, t *Transaction, values []interface{}) (interface{}, error) {
	t.setState(StateAwaitNext)
	defer t.setState(StateDispatched)

	if err := t.sender.Send(wire.Yield(t.id, values)); err != nil {
		return nil, err
	}

	msg, ok, err := t.read(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	switch msg.Kind {
	case wire.TagNext:
		return msg.Result, nil
	case wire.TagError:
		if msg.Exception != nil {
			return nil, msg.Exception
		}
		return nil, fmt.Errorf("transaction: peer reported an error during yield with no exception payload")
	case wire.TagClose:
		return nil, ErrYieldClosed
	default:
		return nil, &wire.ProtocolError{Reason: fmt.Sprintf("unexpected message kind %s during yield loop", msg.Kind)}
	}
}
