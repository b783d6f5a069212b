package crdt

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Value wire fields.
const (
	valueKindField   protowire.Number = 1
	valueBoolField   protowire.Number = 2
	valueIntField    protowire.Number = 3
	valueStringField protowire.Number = 4
	valueElemField   protowire.Number = 5
)

// AppendValue appends the protobuf wire encoding of v to b.
func AppendValue(b []byte, v Value) []byte {
	b = protowire.AppendTag(b, valueKindField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.kind))
	switch v.kind {
	case KindBool:
		b = protowire.AppendTag(b, valueBoolField, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(v.b))
	case KindInt:
		b = protowire.AppendTag(b, valueIntField, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v.i))
	case KindString:
		b = protowire.AppendTag(b, valueStringField, protowire.BytesType)
		b = protowire.AppendString(b, v.s)
	case KindList:
		for _, e := range v.l {
			b = protowire.AppendTag(b, valueElemField, protowire.BytesType)
			b = protowire.AppendBytes(b, AppendValue(nil, e))
		}
	}
	return b
}

// DecodeValue decodes a Value produced by AppendValue.
func DecodeValue(data []byte) (Value, error) {
	var v Value
	err := WalkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case num == valueKindField && typ == protowire.VarintType:
			k, n := protowire.ConsumeVarint(field)
			if n < 0 {
				return n, nil
			}
			if Kind(k) > KindList {
				return 0, errors.Wrapf(ErrDecode, "unknown value kind %d", k)
			}
			v.kind = Kind(k)
			return n, nil
		case num == valueBoolField && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(field)
			v.b = protowire.DecodeBool(x)
			return n, nil
		case num == valueIntField && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(field)
			v.i = protowire.DecodeZigZag(x)
			return n, nil
		case num == valueStringField && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(field)
			v.s = s
			return n, nil
		case num == valueElemField && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(field)
			if n < 0 {
				return n, nil
			}
			elem, err := DecodeValue(raw)
			if err != nil {
				return 0, err
			}
			v.l = append(v.l, elem)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, field), nil
	})
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

// WalkFields iterates the top level fields of a protobuf wire message. fn
// receives the bytes following the tag and returns how many of them it
// consumed; a negative count is a protowire parse error.
func WalkFields(data []byte, fn func(num protowire.Number, typ protowire.Type, field []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(ErrDecode, protowire.ParseError(n).Error())
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m < 0 {
			return errors.Wrap(ErrDecode, protowire.ParseError(m).Error())
		}
		data = data[m:]
	}
	return nil
}
