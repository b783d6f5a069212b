package gindex

import (
	"maps"

	"go.uber.org/zap"

	"github.com/WoelkiM/antidote/internal/crdt"
)

// maintain moves key from the bucket of oldValue to the bucket of newValue.
// oldValue is nil when key is written for the first time.
//
// If the old bucket does not hold key, every bucket is scanned and key is
// removed wherever it is found. This happens when a concurrent migration
// already moved the key, and it keeps each key in a single bucket.
func (g *GIndex) maintain(key Key, oldValue *crdt.Value, newValue crdt.Value) {
	if oldValue != nil {
		if !g.removeFrom(*oldValue, key) {
			g.repair(key)
		}
	}
	g.insert(newValue, key)
}

// removeFrom removes key from the bucket of value. It reports whether the
// bucket existed and held key. The emptied bucket is kept.
func (g *GIndex) removeFrom(value crdt.Value, key Key) bool {
	b, ok := g.index.Get(bucket{value: value})
	if !ok {
		return false
	}
	if _, ok := b.keys[key]; !ok {
		return false
	}
	g.index.Set(withoutKey(b, key))
	return true
}

// repair removes key from every bucket that holds it.
func (g *GIndex) repair(key Key) {
	g.metrics.RepairScan()

	var stale []bucket
	g.index.Scan(func(b bucket) bool {
		if _, ok := b.keys[key]; ok {
			stale = append(stale, b)
		}
		return true
	})
	for _, b := range stale {
		g.index.Set(withoutKey(b, key))
	}

	g.logger.Debug("repaired bucket membership by full scan",
		zap.String("key", key),
		zap.Int("buckets", g.index.Len()),
		zap.Int("removed", len(stale)))
}

// insert adds key to the bucket of value, creating it if needed.
func (g *GIndex) insert(value crdt.Value, key Key) {
	b, ok := g.index.Get(bucket{value: value})
	if !ok {
		g.index.Set(bucket{value: value, keys: map[Key]struct{}{key: {}}})
		return
	}
	if _, ok := b.keys[key]; ok {
		return
	}
	keys := maps.Clone(b.keys)
	keys[key] = struct{}{}
	g.index.Set(bucket{value: b.value, keys: keys})
}

func withoutKey(b bucket, key Key) bucket {
	keys := maps.Clone(b.keys)
	delete(keys, key)
	return bucket{value: b.value, keys: keys}
}
