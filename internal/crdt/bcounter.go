package crdt

import (
	"maps"
	"sort"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Edge keys the permission ledger of a bounded counter. From == To records
// increments made by an actor; From != To records rights transferred.
type Edge struct {
	From string
	To   string
}

// BCounterState is the state of a bounded counter.
type BCounterState struct {
	Permissions map[Edge]int64
	Decrements  map[string]int64
}

// BCounterValue is the raw value of a bounded counter: the increment and
// decrement ledgers per actor. The net value is their difference.
type BCounterValue struct {
	Increments map[string]int64
	Decrements map[string]int64
}

// Transfer moves By rights from Actor to To.
type Transfer struct {
	By    int64
	To    string
	Actor string
}

type bcounterOp uint8

const (
	bcounterIncrement bcounterOp = iota + 1
	bcounterDecrement
	bcounterTransfer
)

// BCounterEffect is the downstream effect of a bounded counter operation.
type BCounterEffect struct {
	op    bcounterOp
	By    int64
	Actor string
	To    string
}

// BoundedCounter is a counter that never goes below zero. Each actor may only
// decrement or transfer the rights it holds locally.
type BoundedCounter struct{}

var _ Capability = BoundedCounter{}

func (BoundedCounter) Type() TypeID { return TypeBoundedCounter }

func (BoundedCounter) New() State {
	return BCounterState{
		Permissions: map[Edge]int64{},
		Decrements:  map[string]int64{},
	}
}

// LocalPermissions returns the rights actor may consume.
func (s BCounterState) LocalPermissions(actor string) int64 {
	var total int64
	for e, n := range s.Permissions {
		switch {
		case e.To == actor:
			total += n
		case e.From == actor:
			total -= n
		}
	}
	return total - s.Decrements[actor]
}

func (c BoundedCounter) Downstream(op Op, st State) (Effect, error) {
	if !c.IsOperation(op) {
		return nil, errors.Wrapf(ErrInvalidOperation, "%s: malformed op %#v", c.Type(), op)
	}
	cur, ok := st.(BCounterState)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidOperation, "%s: unexpected state %T", c.Type(), st)
	}

	switch o := op.(type) {
	case Increment:
		return BCounterEffect{op: bcounterIncrement, By: o.By, Actor: o.Actor}, nil
	case Decrement:
		if cur.LocalPermissions(o.Actor) < o.By {
			return nil, errors.Wrapf(ErrNoPermissions, "%s: actor %s cannot decrement %d", c.Type(), o.Actor, o.By)
		}
		return BCounterEffect{op: bcounterDecrement, By: o.By, Actor: o.Actor}, nil
	case Transfer:
		if cur.LocalPermissions(o.Actor) < o.By {
			return nil, errors.Wrapf(ErrNoPermissions, "%s: actor %s cannot transfer %d", c.Type(), o.Actor, o.By)
		}
		return BCounterEffect{op: bcounterTransfer, By: o.By, Actor: o.Actor, To: o.To}, nil
	}
	return nil, errors.Wrapf(ErrInvalidOperation, "%s: unexpected op %T", c.Type(), op)
}

func (c BoundedCounter) Update(eff Effect, st State) (State, error) {
	e, ok := eff.(BCounterEffect)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidEffect, "%s: unexpected effect %T", c.Type(), eff)
	}
	cur, ok := st.(BCounterState)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidEffect, "%s: unexpected state %T", c.Type(), st)
	}

	next := BCounterState{
		Permissions: maps.Clone(cur.Permissions),
		Decrements:  maps.Clone(cur.Decrements),
	}
	if next.Permissions == nil {
		next.Permissions = map[Edge]int64{}
	}
	if next.Decrements == nil {
		next.Decrements = map[string]int64{}
	}

	switch e.op {
	case bcounterIncrement:
		next.Permissions[Edge{From: e.Actor, To: e.Actor}] += e.By
	case bcounterDecrement:
		next.Decrements[e.Actor] += e.By
	case bcounterTransfer:
		next.Permissions[Edge{From: e.Actor, To: e.To}] += e.By
	default:
		return nil, errors.Wrapf(ErrInvalidEffect, "%s: unknown effect kind %d", c.Type(), e.op)
	}
	return next, nil
}

// Value returns a BCounterValue, not a number.
func (c BoundedCounter) Value(st State) (any, error) {
	s, ok := st.(BCounterState)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidState, "%s: unexpected state %T", c.Type(), st)
	}
	v := BCounterValue{
		Increments: map[string]int64{},
		Decrements: maps.Clone(s.Decrements),
	}
	if v.Decrements == nil {
		v.Decrements = map[string]int64{}
	}
	for e, n := range s.Permissions {
		if e.From == e.To {
			v.Increments[e.From] += n
		}
	}
	return v, nil
}

func (BoundedCounter) Equal(a, b State) bool {
	sa, ok1 := a.(BCounterState)
	sb, ok2 := b.(BCounterState)
	if !ok1 || !ok2 {
		return false
	}
	return maps.Equal(sa.Permissions, sb.Permissions) && maps.Equal(sa.Decrements, sb.Decrements)
}

func (c BoundedCounter) MarshalState(st State) ([]byte, error) {
	s, ok := st.(BCounterState)
	if !ok {
		return nil, errors.Errorf("%s: unexpected state %T", c.Type(), st)
	}

	edges := make([]Edge, 0, len(s.Permissions))
	for e := range s.Permissions {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	var b []byte
	for _, e := range edges {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, e.From)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendString(entry, e.To)
		entry = protowire.AppendTag(entry, 3, protowire.VarintType)
		entry = protowire.AppendVarint(entry, protowire.EncodeZigZag(s.Permissions[e]))

		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}

	actors := make([]string, 0, len(s.Decrements))
	for a := range s.Decrements {
		actors = append(actors, a)
	}
	sort.Strings(actors)
	for _, a := range actors {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, a)
		entry = protowire.AppendTag(entry, 2, protowire.VarintType)
		entry = protowire.AppendVarint(entry, protowire.EncodeZigZag(s.Decrements[a]))

		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b, nil
}

func (c BoundedCounter) UnmarshalState(data []byte) (State, error) {
	s := c.New().(BCounterState)
	err := WalkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if typ != protowire.BytesType || (num != 1 && num != 2) {
			return protowire.ConsumeFieldValue(num, typ, field), nil
		}
		raw, n := protowire.ConsumeBytes(field)
		if n < 0 {
			return n, nil
		}

		var from, to string
		var amount int64
		err := WalkFields(raw, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
			switch {
			case num == 1 && typ == protowire.BytesType:
				v, m := protowire.ConsumeString(field)
				from = v
				return m, nil
			case num == 2 && typ == protowire.BytesType:
				v, m := protowire.ConsumeString(field)
				to = v
				return m, nil
			case num == 2 && typ == protowire.VarintType, num == 3 && typ == protowire.VarintType:
				v, m := protowire.ConsumeVarint(field)
				amount = protowire.DecodeZigZag(v)
				return m, nil
			}
			return protowire.ConsumeFieldValue(num, typ, field), nil
		})
		if err != nil {
			return 0, err
		}

		if num == 1 {
			s.Permissions[Edge{From: from, To: to}] = amount
		} else {
			s.Decrements[from] = amount
		}
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (BoundedCounter) IsOperation(op Op) bool {
	switch o := op.(type) {
	case Increment:
		return o.By > 0 && o.Actor != ""
	case Decrement:
		return o.By > 0 && o.Actor != ""
	case Transfer:
		return o.By > 0 && o.Actor != "" && o.To != "" && o.To != o.Actor
	}
	return false
}
