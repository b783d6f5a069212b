package gindex

import (
	"github.com/pkg/errors"

	"github.com/WoelkiM/antidote/internal/crdt"
)

// PredicateKind is the comparison a range predicate stands for.
type PredicateKind uint8

const (
	Greater PredicateKind = iota + 1
	GreaterOrEqual
	Lesser
	LesserOrEqual
)

func (k PredicateKind) String() string {
	switch k {
	case Greater:
		return "greater"
	case GreaterOrEqual:
		return "greater_or_equal"
	case Lesser:
		return "lesser"
	case LesserOrEqual:
		return "lesser_or_equal"
	}
	return "unknown"
}

func (k PredicateKind) isLower() bool { return k == Greater || k == GreaterOrEqual }
func (k PredicateKind) isUpper() bool { return k == Lesser || k == LesserOrEqual }

// Predicate bounds a range query. Test decides whether a value satisfies it;
// Kind says which side of the range it bounds.
type Predicate struct {
	Kind PredicateKind
	Test func(crdt.Value) bool
}

// Gt matches values strictly greater than v.
func Gt(v crdt.Value) Predicate {
	return Predicate{Kind: Greater, Test: func(x crdt.Value) bool { return crdt.Compare(x, v) > 0 }}
}

// Gte matches values greater than or equal to v.
func Gte(v crdt.Value) Predicate {
	return Predicate{Kind: GreaterOrEqual, Test: func(x crdt.Value) bool { return crdt.Compare(x, v) >= 0 }}
}

// Lt matches values strictly less than v.
func Lt(v crdt.Value) Predicate {
	return Predicate{Kind: Lesser, Test: func(x crdt.Value) bool { return crdt.Compare(x, v) < 0 }}
}

// Lte matches values less than or equal to v.
func Lte(v crdt.Value) Predicate {
	return Predicate{Kind: LesserOrEqual, Test: func(x crdt.Value) bool { return crdt.Compare(x, v) <= 0 }}
}

// Get returns the bucket of value.
func (g *GIndex) Get(value crdt.Value) (Entry, error) {
	b, ok := g.index.Get(bucket{value: value})
	if !ok {
		return Entry{}, errors.Wrapf(ErrKeyNotFound, "value %s", value)
	}
	return b.entry(), nil
}

// Lookup returns the bucket of the value currently extracted for key.
func (g *GIndex) Lookup(key Key) (Entry, error) {
	if _, ok := g.indirection[key]; !ok {
		return Entry{}, errors.Wrapf(ErrKeyNotFound, "key %q", key)
	}
	v, err := g.ExtractValue(key)
	if err != nil {
		return Entry{}, err
	}
	return g.Get(v)
}

// Range returns, in ascending order, every bucket from the smallest value
// satisfying lower to the end of the index whose value satisfies upper.
// Entries failing upper are skipped, not treated as the end of the range.
func (g *GIndex) Range(lower, upper Predicate) ([]Entry, error) {
	if !lower.Kind.isLower() || lower.Test == nil {
		return nil, errors.Wrapf(ErrInvalidPredicate, "lower bound %s", lower.Kind)
	}
	if !upper.Kind.isUpper() || upper.Test == nil {
		return nil, errors.Wrapf(ErrInvalidPredicate, "upper bound %s", upper.Kind)
	}
	g.metrics.RangeQuery()

	start, ok := g.lowerBound(lower.Test)
	if !ok {
		return []Entry{}, nil
	}

	entries := []Entry{}
	g.index.Ascend(start, func(b bucket) bool {
		if upper.Test(b.value) {
			entries = append(entries, b.entry())
		}
		return true
	})
	return entries, nil
}

// lowerBound descends the ordered index: when test holds for the probed
// bucket it becomes the candidate and the search continues to the left,
// otherwise to the right. It returns the smallest bucket satisfying test.
func (g *GIndex) lowerBound(test func(crdt.Value) bool) (bucket, bool) {
	var best bucket
	found := false

	lo, hi := 0, g.index.Len()-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		b, _ := g.index.GetAt(mid)
		if test(b.value) {
			best, found = b, true
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return best, found
}
