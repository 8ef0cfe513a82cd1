package transaction

import (
	"context"
	"fmt"

	"github.com/zurustar/busrpc/internal/wire"
)

// RemoteThrow surfaces a Throw message at the initiator when the host
// runtime has no facility for re-issuing an arbitrary tagged non-local
// control transfer (spec §4.4 "surface a distinguished RemoteThrow
// error containing both", §7). Go has no generic non-local-exit
// mechanism analogous to a tagged throw/catch, so every Throw is
// surfaced this way rather than attempting to re-issue it locally.
type RemoteThrow struct {
	Tag   string
	Value interface{}
}

func (e *RemoteThrow) Error() string {
	return fmt.Sprintf("transaction: remote throw %q: %v", e.Tag, e.Value)
}

// Invoke runs the initiator side of spec §4.4's state machine: Init ->
// AwaitResponse -> {YieldLoop -> AwaitResponse}* -> Terminal. The
// caller is responsible for allocating t (via Manager.NewOutgoing) and
// closing it afterward.
func Invoke(ctx context.Context, t *Transaction, name string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error) {
	t.setState(StateAwaitResponse)

	if err := t.sender.Send(wire.Invoke(t.id, name, args, kwargs, block != nil)); err != nil {
		t.setState(StateTerminal)
		return nil, err
	}

	for {
		msg, ok, err := t.read(ctx)
		if err != nil {
			t.setState(StateTerminal)
			return nil, err
		}
		if !ok {
			// Timeout or inbox closed: implicit Return(nil) (spec §4.4 step 3).
			t.setState(StateTerminal)
			return nil, nil
		}

		switch msg.Kind {
		case wire.TagReturn:
			t.setState(StateTerminal)
			return msg.Result, nil

		case wire.TagYield:
			if block == nil {
				t.setState(StateTerminal)
				return nil, &wire.ProtocolError{Reason: "Yield received for a transaction with no block callback"}
			}
			result, berr := block(msg.Values)
			if berr != nil {
				if sendErr := t.sender.Send(wire.Err(t.id, exceptionFromError(berr))); sendErr != nil {
					t.setState(StateTerminal)
					return nil, sendErr
				}
				continue
			}
			if sendErr := t.sender.Send(wire.Next(t.id, result)); sendErr != nil {
				t.setState(StateTerminal)
				return nil, sendErr
			}
			continue

		case wire.TagError:
			t.setState(StateTerminal)
			if msg.Exception != nil {
				return nil, msg.Exception
			}
			return nil, fmt.Errorf("transaction: remote error with no exception payload")

		case wire.TagThrow:
			t.setState(StateTerminal)
			return nil, &RemoteThrow{Tag: msg.ThrowTag, Value: msg.ThrowValue}

		case wire.TagClose:
			t.setState(StateTerminal)
			return nil, nil

		default:
			t.setState(StateTerminal)
			return nil, &wire.ProtocolError{Reason: fmt.Sprintf("unexpected message kind %s for an in-flight invocation", msg.Kind)}
		}
	}
}

// exceptionFromError adapts an arbitrary Go error into the wire
// Exception shape (spec §4.1, §7 "exception reconstruction is
// best-effort and preserves class name, message, and textual
// backtrace"). An error that already round-tripped in as *wire.Exception
// is passed through unchanged so its original Class survives a second
// hop (spec scenario F, multi-hop proxy).
func exceptionFromError(err error) *wire.Exception {
	if exc, ok := err.(*wire.Exception); ok {
		return exc
	}
	return &wire.Exception{Class: fmt.Sprintf("%T", err), Message: err.Error()}
}
