package transaction

import (
	"context"

	"github.com/zurustar/busrpc/internal/proxy"
	"github.com/zurustar/busrpc/internal/wire"
)

// BlockFunc re-exports proxy.BlockFunc so callers constructing
// Transactions don't need to import the proxy package solely for the
// block-callback type.
type BlockFunc = proxy.BlockFunc

// Object is implemented by values bound in the ObjectRegistry so the
// acceptor side of a Transaction can dispatch an inbound Invoke to
// them (spec §9 design choice (c): a narrow operational interface plus
// caller-written wrappers, rather than reflection-based dynamic
// dispatch).
type Object interface {
	Invoke(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}, block BlockFunc) (interface{}, error)
}

// Sender writes a fully-formed protocol message to the connection's
// peer. Transactions never touch the socket directly; a Manager
// supplies a Sender backed by the owning Connection's codec and write
// mutex (spec §5: "writes from different tasks on the same Connection
// must be serialized at the codec boundary").
type Sender interface {
	Send(msg wire.Message) error
}
