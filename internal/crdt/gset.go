package crdt

import (
	"sort"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Add inserts elements into a grow-only set.
type Add struct {
	Elems []Value
}

// GSetState is the sorted, duplicate-free element list of a grow-only set.
type GSetState []Value

// GSetEffect carries the elements an Add introduced.
type GSetEffect []Value

// GSet is a grow-only set of values.
type GSet struct{}

var _ Capability = GSet{}

func (GSet) Type() TypeID { return TypeGSet }

func (GSet) New() State { return GSetState(nil) }

func (s GSetState) contains(v Value) bool {
	i := sort.Search(len(s), func(i int) bool { return Compare(s[i], v) >= 0 })
	return i < len(s) && s[i].Equal(v)
}

// Downstream emits only the elements missing from st.
func (c GSet) Downstream(op Op, st State) (Effect, error) {
	if !c.IsOperation(op) {
		return nil, errors.Wrapf(ErrInvalidOperation, "%s: malformed op %#v", c.Type(), op)
	}
	a := op.(Add)
	cur, ok := st.(GSetState)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidOperation, "%s: unexpected state %T", c.Type(), st)
	}

	eff := GSetEffect{}
	for _, v := range a.Elems {
		if !cur.contains(v) {
			eff = append(eff, v)
		}
	}
	return eff, nil
}

func (c GSet) Update(eff Effect, st State) (State, error) {
	e, ok := eff.(GSetEffect)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidEffect, "%s: unexpected effect %T", c.Type(), eff)
	}
	cur, ok := st.(GSetState)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidEffect, "%s: unexpected state %T", c.Type(), st)
	}
	return normalizeSet(append(append(GSetState(nil), cur...), e...)), nil
}

func normalizeSet(s GSetState) GSetState {
	sort.SliceStable(s, func(i, j int) bool { return Compare(s[i], s[j]) < 0 })
	out := s[:0]
	for i, v := range s {
		if i > 0 && v.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Value returns the elements as a sorted List.
func (c GSet) Value(st State) (any, error) {
	s, ok := st.(GSetState)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidState, "%s: unexpected state %T", c.Type(), st)
	}
	return List(s...), nil
}

func (GSet) Equal(a, b State) bool {
	sa, ok1 := a.(GSetState)
	sb, ok2 := b.(GSetState)
	if !ok1 || !ok2 || len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if !sa[i].Equal(sb[i]) {
			return false
		}
	}
	return true
}

func (c GSet) MarshalState(st State) ([]byte, error) {
	s, ok := st.(GSetState)
	if !ok {
		return nil, errors.Errorf("%s: unexpected state %T", c.Type(), st)
	}
	var b []byte
	for _, v := range s {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, AppendValue(nil, v))
	}
	return b, nil
}

func (GSet) UnmarshalState(data []byte) (State, error) {
	var s GSetState
	err := WalkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, field), nil
		}
		raw, n := protowire.ConsumeBytes(field)
		if n < 0 {
			return n, nil
		}
		v, err := DecodeValue(raw)
		if err != nil {
			return 0, err
		}
		s = append(s, v)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return normalizeSet(s), nil
}

func (GSet) IsOperation(op Op) bool {
	_, ok := op.(Add)
	return ok
}
