package crdt

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the variant of a Value. Kinds are ordered: values of a lower kind
// sort before every value of a higher kind.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindString
	KindList
)

// Value is an extracted CRDT value. It has a total order (see Compare) so it
// can key an ordered index.
type Value struct {
	kind Kind
	b    bool
	i    int64
	s    string
	l    []Value
}

// Null returns the null value, the smallest Value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list value. The elements are copied.
func List(elems ...Value) Value {
	return Value{kind: KindList, l: append([]Value(nil), elems...)}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean payload and whether v is a KindBool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload and whether v is a KindInt.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsString returns the string payload and whether v is a KindString.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Elems returns a copy of the list elements, or nil if v is not a list.
func (v Value) Elems() []Value {
	if v.kind != KindList {
		return nil
	}
	return append([]Value(nil), v.l...)
}

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal to
// or after b.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}

	switch a.kind {
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindInt:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
		return 0
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindList:
		for i := 0; i < len(a.l) && i < len(b.l); i++ {
			if c := Compare(a.l[i], b.l[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(a.l) < len(b.l):
			return -1
		case len(a.l) > len(b.l):
			return 1
		}
		return 0
	}
	return 0
}

// Equal reports whether a and b compare equal.
func (v Value) Equal(other Value) bool { return Compare(v, other) == 0 }

// String returns a human readable representation of the value.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return strconv.Quote(v.s)
	case KindList:
		parts := make([]string, 0, len(v.l))
		for _, e := range v.l {
			parts = append(parts, e.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "null"
}

// ParseValue parses the textual form used on the command line:
// "null", "true"/"false", a base-10 integer, or anything else as a string.
// A leading and trailing double quote forces a string.
func ParseValue(s string) Value {
	switch s {
	case "null":
		return Null()
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unq, err := strconv.Unquote(s); err == nil {
			return String(unq)
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	return String(s)
}

// GoString implements fmt.GoStringer so test failures print readable values.
func (v Value) GoString() string {
	return fmt.Sprintf("crdt.Value(%s)", v.String())
}
