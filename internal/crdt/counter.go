package crdt

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Increment adds By to a counter. Actor is only used by the bounded counter.
type Increment struct {
	By    int64
	Actor string
}

// Decrement subtracts By from a counter. Actor is only used by the bounded counter.
type Decrement struct {
	By    int64
	Actor string
}

// PNCounter is a positive-negative counter. Its state and its effects are
// plain int64 values: the state is the counter total, an effect is a signed delta.
type PNCounter struct{}

var _ Capability = PNCounter{}

func (PNCounter) Type() TypeID { return TypePNCounter }

func (PNCounter) New() State { return int64(0) }

func (c PNCounter) Downstream(op Op, _ State) (Effect, error) {
	if !c.IsOperation(op) {
		return nil, errors.Wrapf(ErrInvalidOperation, "%s: malformed op %#v", c.Type(), op)
	}
	switch o := op.(type) {
	case Increment:
		return o.By, nil
	case Decrement:
		return -o.By, nil
	}
	return nil, errors.Wrapf(ErrInvalidOperation, "%s: unexpected op %T", c.Type(), op)
}

func (c PNCounter) Update(eff Effect, st State) (State, error) {
	delta, ok := eff.(int64)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidEffect, "%s: unexpected effect %T", c.Type(), eff)
	}
	cur, ok := st.(int64)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidEffect, "%s: unexpected state %T", c.Type(), st)
	}
	return cur + delta, nil
}

func (c PNCounter) Value(st State) (any, error) {
	x, ok := st.(int64)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidState, "%s: unexpected state %T", c.Type(), st)
	}
	return Int(x), nil
}

func (PNCounter) Equal(a, b State) bool {
	x, ok1 := a.(int64)
	y, ok2 := b.(int64)
	return ok1 && ok2 && x == y
}

func (c PNCounter) MarshalState(st State) ([]byte, error) {
	x, ok := st.(int64)
	if !ok {
		return nil, errors.Errorf("%s: unexpected state %T", c.Type(), st)
	}
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(x)), nil
}

func (PNCounter) UnmarshalState(data []byte) (State, error) {
	var x int64
	err := WalkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(field)
			x = protowire.DecodeZigZag(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, field), nil
	})
	if err != nil {
		return nil, err
	}
	return x, nil
}

func (PNCounter) IsOperation(op Op) bool {
	switch o := op.(type) {
	case Increment:
		return o.By > 0
	case Decrement:
		return o.By > 0
	}
	return false
}
