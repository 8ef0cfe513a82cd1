// Package registry implements the per-connection ObjectRegistry: the
// mapping from Name to bound object, distinguishing explicit bindings
// (lifetime = connection) from implicit bindings (lifetime = remote
// interest), per spec §4.2. It generalizes the teacher's
// internal/registrar package (a constructor-injected, mutex-guarded map)
// from SIP address-of-record contacts to arbitrary bound Go values.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/zurustar/busrpc/internal/logging"
)

// BindingKind distinguishes the two lifetimes a Binding can have.
type BindingKind int

const (
	KindExplicit BindingKind = iota
	KindImplicit
)

func (k BindingKind) String() string {
	if k == KindExplicit {
		return "explicit"
	}
	return "implicit"
}

// Binding is the tagged record stored under a Name (spec §3).
type Binding struct {
	Object interface{}
	Kind   BindingKind
}

// Registry is the ObjectRegistry of spec §4.2.
type Registry struct {
	logger logging.Logger

	mu       sync.RWMutex
	bindings map[string]Binding
	// implicitByIdentity lets repeated BindImplicit calls for the same
	// object return the same Name for the binding's lifetime (spec §4.2),
	// keyed on the object's identity rather than its value.
	implicitByIdentity map[interface{}]string
}

// New creates an empty Registry. logger may be nil, in which case an
// error-level console logger is used.
func New(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewConsoleLogger(logging.ErrorLevel)
	}
	return &Registry{
		logger:             logger,
		bindings:           make(map[string]Binding),
		implicitByIdentity: make(map[interface{}]string),
	}
}

// BindExplicit binds name to object with Explicit lifetime. It is an
// idempotent overwrite: calling it again for a Name that is already
// bound (Explicit or Implicit) replaces the binding and retains Explicit
// kind, the last-write-wins behavior spec §9 recommends for the source's
// ambiguous overwrite semantics.
func (r *Registry) BindExplicit(name string, object interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[name] = Binding{Object: object, Kind: KindExplicit}
}

// BindImplicit generates a unique Name for obj (or reuses the Name from
// an earlier call against the same object while its binding is live)
// and creates an Implicit Binding if one is not already present. obj is
// used as a map key directly (spec §4.2 "derived from object identity");
// pointers and interfaces holding pointers compare by address, which is
// the common case for bound objects.
func (r *Registry) BindImplicit(obj interface{}) string {
	key := obj

	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.implicitByIdentity[key]; ok {
		if b, exists := r.bindings[name]; exists && b.Kind == KindImplicit {
			return name
		}
		delete(r.implicitByIdentity, key)
	}

	name := "obj-" + uuid.NewString()
	r.bindings[name] = Binding{Object: obj, Kind: KindImplicit}
	r.implicitByIdentity[key] = name
	return name
}

// Lookup returns the object bound under name, or ok=false if unbound.
func (r *Registry) Lookup(name string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[name]
	if !ok {
		return nil, false
	}
	return b.Object, true
}

// Release removes the binding for name only if it is Implicit; a
// Release for an unknown or Explicit Name is a silent no-op, matching
// the tolerance §4.2/§7 require of stale or malicious Release traffic.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[name]
	if !ok || b.Kind != KindImplicit {
		return
	}
	delete(r.bindings, name)
	delete(r.implicitByIdentity, b.Object)
	r.logger.Debug("released implicit binding", logging.NameField(name))
}

// Len reports the number of live bindings, explicit and implicit.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
