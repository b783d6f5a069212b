package crdt

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// RegisterState is the state of a last-writer-wins register.
type RegisterState struct {
	Value     Value
	Timestamp int64
}

// Assign sets the register. A zero Timestamp lets Downstream pick one
// strictly greater than the current state.
type Assign struct {
	Value     Value
	Timestamp int64
}

// RegisterEffect is the downstream effect of Assign.
type RegisterEffect struct {
	Value     Value
	Timestamp int64
}

// LWWRegister is a last-writer-wins register. Concurrent assignments with the
// same timestamp are resolved in favour of the larger value.
type LWWRegister struct{}

var _ Capability = LWWRegister{}

func (LWWRegister) Type() TypeID { return TypeLWWRegister }

func (LWWRegister) New() State { return RegisterState{} }

func (c LWWRegister) Downstream(op Op, st State) (Effect, error) {
	if !c.IsOperation(op) {
		return nil, errors.Wrapf(ErrInvalidOperation, "%s: malformed op %#v", c.Type(), op)
	}
	a := op.(Assign)
	cur, ok := st.(RegisterState)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidOperation, "%s: unexpected state %T", c.Type(), st)
	}

	ts := a.Timestamp
	if ts <= 0 {
		ts = cur.Timestamp + 1
	}
	return RegisterEffect{Value: a.Value, Timestamp: ts}, nil
}

func (c LWWRegister) Update(eff Effect, st State) (State, error) {
	e, ok := eff.(RegisterEffect)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidEffect, "%s: unexpected effect %T", c.Type(), eff)
	}
	cur, ok := st.(RegisterState)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidEffect, "%s: unexpected state %T", c.Type(), st)
	}

	if e.Timestamp > cur.Timestamp ||
		(e.Timestamp == cur.Timestamp && Compare(e.Value, cur.Value) > 0) {
		return RegisterState{Value: e.Value, Timestamp: e.Timestamp}, nil
	}
	return cur, nil
}

func (c LWWRegister) Value(st State) (any, error) {
	s, ok := st.(RegisterState)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidState, "%s: unexpected state %T", c.Type(), st)
	}
	return s.Value, nil
}

func (LWWRegister) Equal(a, b State) bool {
	sa, ok1 := a.(RegisterState)
	sb, ok2 := b.(RegisterState)
	return ok1 && ok2 && sa.Timestamp == sb.Timestamp && sa.Value.Equal(sb.Value)
}

func (c LWWRegister) MarshalState(st State) ([]byte, error) {
	s, ok := st.(RegisterState)
	if !ok {
		return nil, errors.Errorf("%s: unexpected state %T", c.Type(), st)
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, AppendValue(nil, s.Value))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(s.Timestamp))
	return b, nil
}

func (LWWRegister) UnmarshalState(data []byte) (State, error) {
	var s RegisterState
	err := WalkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(field)
			if n < 0 {
				return n, nil
			}
			v, err := DecodeValue(raw)
			if err != nil {
				return 0, err
			}
			s.Value = v
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(field)
			s.Timestamp = protowire.DecodeZigZag(x)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, field), nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (LWWRegister) IsOperation(op Op) bool {
	a, ok := op.(Assign)
	return ok && a.Timestamp >= 0
}
