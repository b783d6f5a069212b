package gindex

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/WoelkiM/antidote/internal/crdt"
)

// Op targets one key with a nested CRDT operation.
type Op struct {
	Type crdt.TypeID
	Key  Key
	Op   crdt.Op
}

// Effect is the downstream effect of an Op.
type Effect struct {
	Type   crdt.TypeID
	Key    Key
	Effect crdt.Effect
}

// RequiresStateForDownstream reports whether Downstream needs the current
// state. It always does: nested effects are computed against the stored state,
// so replicas must keep full state rather than operation logs.
func RequiresStateForDownstream() bool { return true }

// Downstream computes the effect of op against g. g is not modified.
func (g *GIndex) Downstream(op Op) (Effect, error) {
	c, ok := g.registry.Lookup(op.Type)
	if !ok {
		g.metrics.Reject("unknown_type")
		return Effect{}, errors.Wrapf(ErrUnknownType, "%q", op.Type)
	}
	if g.bound != "" && g.bound != op.Type {
		g.metrics.Reject("wrong_type")
		g.logger.Warn("rejected operation with wrong type",
			zap.String("bound", string(g.bound)),
			zap.String("type", string(op.Type)),
			zap.String("key", op.Key))
		return Effect{}, errors.Wrapf(ErrWrongType, "index bound to %q, operation is %q", g.bound, op.Type)
	}

	st, ok := g.indirection[op.Key]
	if !ok {
		st = c.New()
	}
	eff, err := c.Downstream(op.Op, st)
	if err != nil {
		g.metrics.Reject("nested")
		return Effect{}, errors.Wrapf(err, "key %q", op.Key)
	}
	return Effect{Type: op.Type, Key: op.Key, Effect: eff}, nil
}

// DownstreamBatch computes the effect of every op against g. The effects do
// not observe each other.
func (g *GIndex) DownstreamBatch(ops []Op) ([]Effect, error) {
	effs := make([]Effect, 0, len(ops))
	for _, op := range ops {
		eff, err := g.Downstream(op)
		if err != nil {
			return nil, err
		}
		effs = append(effs, eff)
	}
	return effs, nil
}

// Update applies eff and returns the new snapshot. The bound type of the
// result is eff.Type, whatever g was bound to before.
func (g *GIndex) Update(eff Effect) (*GIndex, error) {
	next := g.clone()
	if err := next.apply(eff); err != nil {
		return nil, err
	}
	return next, nil
}

// UpdateBatch applies effs left to right, each on the result of the previous one.
func (g *GIndex) UpdateBatch(effs []Effect) (*GIndex, error) {
	next := g.clone()
	for _, eff := range effs {
		if err := next.apply(eff); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// apply mutates g in place. It is only called on a fresh clone.
func (g *GIndex) apply(eff Effect) error {
	c, ok := g.registry.Lookup(eff.Type)
	if !ok {
		return errors.Wrapf(ErrUnknownType, "%q", eff.Type)
	}

	old, existed := g.indirection[eff.Key]
	if !existed {
		old = c.New()
	}
	st, err := c.Update(eff.Effect, old)
	if err != nil {
		return errors.Wrapf(err, "key %q", eff.Key)
	}

	newValue, err := extractValue(c, st)
	if err != nil {
		return err
	}
	var oldValue *crdt.Value
	if existed {
		v, err := extractValue(c, old)
		if err != nil {
			return err
		}
		oldValue = &v
	}

	g.indirection[eff.Key] = st
	g.maintain(eff.Key, oldValue, newValue)

	if g.bound != eff.Type {
		g.logger.Debug("index bound type changed",
			zap.String("from", string(g.bound)),
			zap.String("to", string(eff.Type)))
	}
	g.bound = eff.Type
	g.metrics.EffectApplied(string(eff.Type))
	return nil
}

// extractValue returns the index key of st. Bounded counters are indexed by
// their net value rather than their raw ledgers. A state written under
// another nested type yields ErrWrongType.
func extractValue(c crdt.Capability, st crdt.State) (crdt.Value, error) {
	raw, err := c.Value(st)
	if errors.Is(err, crdt.ErrInvalidState) {
		return crdt.Value{}, errors.Wrap(ErrWrongType, err.Error())
	}
	if err != nil {
		return crdt.Value{}, err
	}

	switch v := raw.(type) {
	case crdt.Value:
		return v, nil
	case crdt.BCounterValue:
		var net int64
		for _, n := range v.Increments {
			net += n
		}
		for _, n := range v.Decrements {
			net -= n
		}
		return crdt.Int(net), nil
	default:
		return crdt.Value{}, errors.Errorf("%s: value %T cannot be indexed", c.Type(), v)
	}
}

// Equal reports whether a and b hold the same index: the same bound type,
// the same non-empty buckets with the same keys, indirection maps of equal
// size, and for every key of a an equal nested state in b.
//
// This deliberately differs from a bucket-for-bucket comparison. Buckets
// that lost all their keys to migrations are skipped, because which of them
// exist depends on the order effects were applied in, and replicas that
// applied the same effects must compare equal. Value still reports them.
// The nested-state check is one-sided (containment plus cardinality).
func Equal(a, b *GIndex) bool {
	if a.bound != b.bound {
		return false
	}

	ai, bi := nonEmptyBuckets(a), nonEmptyBuckets(b)
	if len(ai) != len(bi) {
		return false
	}
	for i := range ai {
		if !ai[i].value.Equal(bi[i].value) || len(ai[i].keys) != len(bi[i].keys) {
			return false
		}
		for k := range ai[i].keys {
			if _, ok := bi[i].keys[k]; !ok {
				return false
			}
		}
	}

	if len(a.indirection) != len(b.indirection) {
		return false
	}
	if len(a.indirection) == 0 {
		return true
	}
	c, ok := a.registry.Lookup(a.bound)
	if !ok {
		return false
	}
	for k, sa := range a.indirection {
		sb, ok := b.indirection[k]
		if !ok || !c.Equal(sa, sb) {
			return false
		}
	}
	return true
}

func nonEmptyBuckets(g *GIndex) []bucket {
	out := make([]bucket, 0, g.index.Len())
	g.index.Scan(func(b bucket) bool {
		if len(b.keys) > 0 {
			out = append(out, b)
		}
		return true
	})
	return out
}

// Equal reports whether g and other hold the same index. See the package
// level Equal.
func (g *GIndex) Equal(other *GIndex) bool { return Equal(g, other) }

// IsOperation reports whether op names a registered type and carries an
// operation that type accepts.
func (g *GIndex) IsOperation(op Op) bool {
	c, ok := g.registry.Lookup(op.Type)
	return ok && c.IsOperation(op.Op)
}

// IsBatchOperation reports whether every op is valid and no key repeats.
func (g *GIndex) IsBatchOperation(ops []Op) bool {
	return g.ValidateBatch(ops) == nil
}

// ValidateBatch returns every problem found in ops, combined.
func (g *GIndex) ValidateBatch(ops []Op) error {
	var errs error
	seen := make(map[Key]int, len(ops))
	for i, op := range ops {
		if j, dup := seen[op.Key]; dup {
			errs = multierr.Append(errs, errors.Errorf("op %d: key %q already targeted by op %d", i, op.Key, j))
		} else {
			seen[op.Key] = i
		}
		if !g.IsOperation(op) {
			errs = multierr.Append(errs, errors.Errorf("op %d: invalid %q operation %T on key %q", i, op.Type, op.Op, op.Key))
		}
	}
	if errs != nil {
		return errors.Wrap(ErrInvalidBatch, errs.Error())
	}
	return nil
}
