package gindex

import (
	"sort"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/WoelkiM/antidote/internal/crdt"
)

// Header of the binary encoding.
const (
	Tag     byte = 'g'
	Version byte = 1
)

// Payload fields.
const (
	boundField       protowire.Number = 1
	bucketField      protowire.Number = 2
	indirectionField protowire.Number = 3

	bucketValueField protowire.Number = 1
	bucketKeyField   protowire.Number = 2

	entryKeyField   protowire.Number = 1
	entryStateField protowire.Number = 2
)

// MarshalBinary encodes g as [Tag][Version][payload]. The payload is a
// protobuf wire message holding the bound type, the buckets and the
// indirection map.
func (g *GIndex) MarshalBinary() ([]byte, error) {
	b := []byte{Tag, Version}

	if g.bound != "" {
		b = protowire.AppendTag(b, boundField, protowire.BytesType)
		b = protowire.AppendString(b, string(g.bound))
	}

	g.index.Scan(func(bk bucket) bool {
		var msg []byte
		msg = protowire.AppendTag(msg, bucketValueField, protowire.BytesType)
		msg = protowire.AppendBytes(msg, crdt.AppendValue(nil, bk.value))
		for _, k := range bk.entry().Keys {
			msg = protowire.AppendTag(msg, bucketKeyField, protowire.BytesType)
			msg = protowire.AppendString(msg, k)
		}
		b = protowire.AppendTag(b, bucketField, protowire.BytesType)
		b = protowire.AppendBytes(b, msg)
		return true
	})

	if len(g.indirection) == 0 {
		return b, nil
	}
	c, ok := g.registry.Lookup(g.bound)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", g.bound)
	}

	keys := make([]Key, 0, len(g.indirection))
	for k := range g.indirection {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw, err := c.MarshalState(g.indirection[k])
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", k)
		}
		var msg []byte
		msg = protowire.AppendTag(msg, entryKeyField, protowire.BytesType)
		msg = protowire.AppendString(msg, k)
		msg = protowire.AppendTag(msg, entryStateField, protowire.BytesType)
		msg = protowire.AppendBytes(msg, raw)

		b = protowire.AppendTag(b, indirectionField, protowire.BytesType)
		b = protowire.AppendBytes(b, msg)
	}
	return b, nil
}

// Unmarshal decodes an index produced by MarshalBinary.
func Unmarshal(data []byte, opts ...Option) (*GIndex, error) {
	if len(data) < 2 {
		return nil, errors.Wrap(ErrDecode, "input shorter than header")
	}
	if data[0] != Tag || data[1] != Version {
		return nil, errors.Wrapf(ErrDecode, "unsupported header tag=%#x version=%d", data[0], data[1])
	}

	g := New(opts...)
	rawStates := make(map[Key][]byte)

	err := crdt.WalkFields(data[2:], func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, field), nil
		}
		switch num {
		case boundField:
			s, n := protowire.ConsumeString(field)
			g.bound = crdt.TypeID(s)
			return n, nil
		case bucketField:
			raw, n := protowire.ConsumeBytes(field)
			if n < 0 {
				return n, nil
			}
			bk, err := decodeBucket(raw)
			if err != nil {
				return 0, err
			}
			if _, dup := g.index.Get(bk); dup {
				return 0, errors.Wrapf(ErrDecode, "duplicate bucket %s", bk.value)
			}
			g.index.Set(bk)
			return n, nil
		case indirectionField:
			raw, n := protowire.ConsumeBytes(field)
			if n < 0 {
				return n, nil
			}
			k, st, err := decodeEntry(raw)
			if err != nil {
				return 0, err
			}
			rawStates[k] = st
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, field), nil
	})
	if err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}

	if len(rawStates) == 0 {
		return g, nil
	}
	c, ok := g.registry.Lookup(g.bound)
	if !ok {
		return nil, errors.Wrapf(ErrDecode, "states for unregistered type %q", g.bound)
	}
	for k, raw := range rawStates {
		st, err := c.UnmarshalState(raw)
		if err != nil {
			return nil, errors.Wrapf(ErrDecode, "key %q: %v", k, err)
		}
		g.indirection[k] = st
	}
	return g, nil
}

// UnmarshalBinary replaces g with the decoded index, keeping g's registry,
// logger and metrics.
func (g *GIndex) UnmarshalBinary(data []byte) error {
	var opts []Option
	if g.registry != nil {
		opts = append(opts, WithRegistry(g.registry))
	}
	if g.logger != nil {
		opts = append(opts, WithLogger(g.logger))
	}
	opts = append(opts, WithMetrics(g.metrics))

	decoded, err := Unmarshal(data, opts...)
	if err != nil {
		return err
	}
	*g = *decoded
	return nil
}

func decodeBucket(data []byte) (bucket, error) {
	bk := bucket{keys: map[Key]struct{}{}}
	hasValue := false
	err := crdt.WalkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case num == bucketValueField && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(field)
			if n < 0 {
				return n, nil
			}
			v, err := crdt.DecodeValue(raw)
			if err != nil {
				return 0, err
			}
			bk.value, hasValue = v, true
			return n, nil
		case num == bucketKeyField && typ == protowire.BytesType:
			k, n := protowire.ConsumeString(field)
			if n >= 0 {
				bk.keys[k] = struct{}{}
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, field), nil
	})
	if err != nil {
		return bucket{}, err
	}
	if !hasValue {
		return bucket{}, errors.Wrap(ErrDecode, "bucket without value")
	}
	return bk, nil
}

func decodeEntry(data []byte) (Key, []byte, error) {
	var (
		key      Key
		state    []byte
		hasKey   bool
		hasState bool
	)
	err := crdt.WalkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case num == entryKeyField && typ == protowire.BytesType:
			k, n := protowire.ConsumeString(field)
			key, hasKey = k, true
			return n, nil
		case num == entryStateField && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(field)
			state, hasState = append([]byte(nil), raw...), true
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, field), nil
	})
	if err != nil {
		return "", nil, err
	}
	if !hasKey || !hasState {
		return "", nil, errors.Wrap(ErrDecode, "incomplete indirection entry")
	}
	return key, state, nil
}
