// Package proxytable implements the per-connection ProxyTable of spec
// §4.3: a weak cache from Name to *proxy.Proxy that returns the same
// Proxy instance for repeated lookups of the same Name, and arranges
// for Release(name) to be sent to the peer once a cached Proxy becomes
// unreachable. It is grounded on the finalizer-driven release pattern
// in aghassemi-go.ref's runtimes/google/ipc/ipcjni/invoker.go, which
// frees a JNI-backed handle via runtime.SetFinalizer when its Go proxy
// is collected; this table applies the same idea to a wire Proxy.
package proxytable

import (
	"runtime"
	"sync"

	"github.com/zurustar/busrpc/internal/logging"
	"github.com/zurustar/busrpc/internal/proxy"
)

// Releaser sends a Release message for name to the connection's peer.
// It is implemented by the owning Connection and must tolerate being
// called after the connection has already closed (spec §4.3 "a
// shutdown race that drops a pending release is tolerated").
type Releaser interface {
	ReleaseProxy(name string)
}

// Table is the ProxyTable of spec §4.3. Its zero value is not usable;
// construct with New.
type Table struct {
	logger   logging.Logger
	releaser Releaser

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	proxy *proxy.Proxy
}

// New creates an empty Table that calls releaser.ReleaseProxy when a
// cached Proxy is finalized. logger may be nil, in which case an
// error-level console logger is used.
func New(releaser Releaser, logger logging.Logger) *Table {
	if logger == nil {
		logger = logging.NewConsoleLogger(logging.ErrorLevel)
	}
	return &Table{
		logger:   logger,
		releaser: releaser,
		entries:  make(map[string]*entry),
	}
}

// GetOrCreate returns the cached Proxy for name, constructing and
// caching one with conn via proxy.New if none exists yet. Repeated calls
// for the same live Name return the identical *proxy.Proxy (spec §4.3
// "returns the same Proxy instance for repeated lookups of the same
// Name"), which is what makes Proxy.Equal meaningful to callers that
// never compare Names directly.
func (t *Table) GetOrCreate(name string, conn proxy.Invoker) *proxy.Proxy {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[name]; ok {
		return e.proxy
	}

	p := proxy.New(conn, name)
	e := &entry{proxy: p}
	t.entries[name] = e

	runtime.SetFinalizer(p, t.finalize(name))
	return p
}

// finalize returns the finalizer callback bound to name: it drops the
// table's own entry and asks the Releaser to tell the peer the Name is
// no longer referenced locally (spec §4.3 "garbage-collection-driven
// Release when the last local proxy for a Name becomes unreachable").
// The finalizer fires on a dedicated goroutine from the Go runtime, so
// it must not block; ReleaseProxy implementations must be safe to call
// concurrently with the rest of the connection's traffic.
func (t *Table) finalize(name string) func(*proxy.Proxy) {
	return func(*proxy.Proxy) {
		t.mu.Lock()
		delete(t.entries, name)
		t.mu.Unlock()

		t.logger.Debug("proxy finalized, releasing", logging.NameField(name))
		t.releaser.ReleaseProxy(name)
	}
}

// Drop removes name from the table and disarms its finalizer without
// notifying the peer, so no Release is sent for that Proxy when it is
// later collected. Proxy.Close does not call Drop: a closed Proxy keeps
// its table entry and its finalizer.
func (t *Table) Drop(name string) {
	t.mu.Lock()
	e, ok := t.entries[name]
	if ok {
		delete(t.entries, name)
	}
	t.mu.Unlock()

	if ok {
		runtime.SetFinalizer(e.proxy, nil)
	}
}

// Len reports the number of live cached proxies.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Shutdown clears the table without running finalizers, for use when
// the owning Connection is closing: spec §4.3 tolerates a shutdown
// race that drops a pending release, so queued-but-not-yet-fired
// finalizations are simply abandoned rather than raced against a dead
// connection.
func (t *Table) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, e := range t.entries {
		runtime.SetFinalizer(e.proxy, nil)
		delete(t.entries, name)
	}
}
