package crdt

import (
	"sort"
	"sync"
)

// TypeID identifies a nested CRDT implementation.
type TypeID string

// Registered capability identifiers.
const (
	TypeLWWRegister    TypeID = "register_lww"
	TypePNCounter      TypeID = "counter_pn"
	TypeBoundedCounter TypeID = "counter_b"
	TypeGSet           TypeID = "set_go"
)

// State is the opaque, immutable state of a nested CRDT.
type State interface{}

// Op is a local operation on a nested CRDT, before downstream translation.
type Op interface{}

// Effect is the deterministic payload produced by Downstream. Any replica can
// apply it without further context.
type Effect interface{}

// Capability is the contract a nested CRDT satisfies to be indexable.
//
// Implementations never mutate a State passed to them: Update returns a new
// State and leaves its input untouched, so states can be shared between index
// snapshots.
type Capability interface {
	// Type returns the identifier the capability is registered under.
	Type() TypeID
	// New returns the empty state.
	New() State
	// Downstream translates op into an effect against st. It has no side
	// effects and fails with ErrInvalidOperation when IsOperation rejects op.
	Downstream(op Op, st State) (Effect, error)
	// Update applies an effect and returns the resulting state.
	Update(eff Effect, st State) (State, error)
	// Value returns the semantic value of st. It fails with ErrInvalidState
	// when st was not produced by this capability.
	Value(st State) (any, error)
	// Equal reports whether two states are structurally equal.
	Equal(a, b State) bool
	// MarshalState encodes st.
	MarshalState(st State) ([]byte, error)
	// UnmarshalState decodes a state produced by MarshalState.
	UnmarshalState(data []byte) (State, error)
	// IsOperation reports whether op is well formed for this capability.
	IsOperation(op Op) bool
}

// Registry resolves capabilities by TypeID. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	caps map[TypeID]Capability
}

// NewRegistry creates a registry holding the given capabilities.
func NewRegistry(caps ...Capability) *Registry {
	r := &Registry{caps: make(map[TypeID]Capability, len(caps))}
	for _, c := range caps {
		r.caps[c.Type()] = c
	}
	return r
}

// DefaultRegistry returns a new registry holding every capability in this package.
func DefaultRegistry() *Registry {
	return NewRegistry(
		LWWRegister{},
		PNCounter{},
		BoundedCounter{},
		GSet{},
	)
}

// Register adds or replaces a capability.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[c.Type()] = c
}

// Lookup returns the capability registered for t.
func (r *Registry) Lookup(t TypeID) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[t]
	return c, ok
}

// IsType reports whether t names a registered capability.
func (r *Registry) IsType(t TypeID) bool {
	_, ok := r.Lookup(t)
	return ok
}

// Types returns the registered identifiers in sorted order.
func (r *Registry) Types() []TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]TypeID, 0, len(r.caps))
	for t := range r.caps {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
