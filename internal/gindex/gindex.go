package gindex

import (
	"maps"
	"sort"

	"github.com/pkg/errors"
	"github.com/tidwall/btree"
	"go.uber.org/zap"

	"github.com/WoelkiM/antidote/internal/crdt"
	"github.com/WoelkiM/antidote/internal/metrics"
)

// Key is a primary key.
type Key = string

// bucket is one entry of the ordered index. keys is shared between
// snapshots and must be cloned before it is modified.
type bucket struct {
	value crdt.Value
	keys  map[Key]struct{}
}

func lessBucket(a, b bucket) bool {
	return crdt.Compare(a.value, b.value) < 0
}

// Entry is a bucket as returned to readers: an extracted value and the keys
// currently indexed under it, sorted.
type Entry struct {
	Value crdt.Value
	Keys  []Key
}

func (b bucket) entry() Entry {
	keys := make([]Key, 0, len(b.keys))
	for k := range b.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Entry{Value: b.value, Keys: keys}
}

// GIndex is a grow-only index over nested CRDT values.
type GIndex struct {
	bound       crdt.TypeID
	index       *btree.BTreeG[bucket]
	indirection map[Key]crdt.State

	registry *crdt.Registry
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a GIndex.
type Option func(*GIndex)

// WithRegistry sets the capability registry. The default is crdt.DefaultRegistry().
func WithRegistry(r *crdt.Registry) Option {
	return func(g *GIndex) { g.registry = r }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(g *GIndex) { g.logger = l }
}

// WithMetrics sets the counters updated by the index.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *GIndex) { g.metrics = m }
}

// New creates an empty, unbound index.
func New(opts ...Option) *GIndex {
	g := &GIndex{
		index:       newTree(),
		indirection: make(map[Key]crdt.State),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.registry == nil {
		g.registry = crdt.DefaultRegistry()
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

// NewBound creates an empty index bound to typ.
func NewBound(typ crdt.TypeID, opts ...Option) *GIndex {
	g := New(opts...)
	g.bound = typ
	return g
}

func newTree() *btree.BTreeG[bucket] {
	return btree.NewBTreeGOptions(lessBucket, btree.Options{NoLocks: true})
}

// clone returns a snapshot that shares structure with g. The tree is copied
// lazily by the btree; bucket key sets are cloned on write by the maintainer.
func (g *GIndex) clone() *GIndex {
	return &GIndex{
		bound:       g.bound,
		index:       g.index.Copy(),
		indirection: maps.Clone(g.indirection),
		registry:    g.registry,
		logger:      g.logger,
		metrics:     g.metrics,
	}
}

// Bound returns the nested type of the most recently applied effect, or ""
// if the index is unbound.
func (g *GIndex) Bound() crdt.TypeID { return g.bound }

// Len returns the number of keys in the indirection map.
func (g *GIndex) Len() int { return len(g.indirection) }

// State returns the nested state stored for key.
func (g *GIndex) State(key Key) (crdt.State, bool) {
	st, ok := g.indirection[key]
	return st, ok
}

// Keys returns every key ever written, sorted.
func (g *GIndex) Keys() []Key {
	keys := make([]Key, 0, len(g.indirection))
	for k := range g.indirection {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns every bucket in ascending value order. Buckets that lost
// all their keys to migrations are included.
func (g *GIndex) Value() []Entry {
	entries := make([]Entry, 0, g.index.Len())
	g.index.Scan(func(b bucket) bool {
		entries = append(entries, b.entry())
		return true
	})
	return entries
}

// Registry returns the capability registry used by g.
func (g *GIndex) Registry() *crdt.Registry { return g.registry }

// ExtractValue returns the index key for key's current state, read with the
// bound type. A key whose state was written under an earlier bound type
// yields ErrWrongType.
func (g *GIndex) ExtractValue(key Key) (crdt.Value, error) {
	st, ok := g.indirection[key]
	if !ok {
		return crdt.Value{}, errors.Wrapf(ErrKeyNotFound, "key %q", key)
	}
	c, ok := g.registry.Lookup(g.bound)
	if !ok {
		return crdt.Value{}, errors.Wrapf(ErrUnknownType, "%q", g.bound)
	}
	v, err := extractValue(c, st)
	if err != nil {
		return crdt.Value{}, errors.Wrapf(err, "key %q", key)
	}
	return v, nil
}
