package crdt

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_Order(t *testing.T) {
	// Ascending order, each strictly greater than the previous one.
	ordered := []Value{
		Null(),
		Bool(false),
		Bool(true),
		Int(-5),
		Int(0),
		Int(7),
		String(""),
		String("a"),
		String("b"),
		List(),
		List(Int(1)),
		List(Int(1), Int(2)),
		List(Int(2)),
	}

	for i := range ordered {
		for j := range ordered {
			got := Compare(ordered[i], ordered[j])
			want := 0
			switch {
			case i < j:
				want = -1
			case i > j:
				want = 1
			}
			assert.Equal(t, want, got, "Compare(%s, %s)", ordered[i], ordered[j])
		}
	}
}

func TestCompare_SortIsStable(t *testing.T) {
	vals := []Value{String("z"), Int(3), Null(), Int(-1), List(String("a")), Bool(true)}
	sort.Slice(vals, func(i, j int) bool { return Compare(vals[i], vals[j]) < 0 })

	want := []Value{Null(), Bool(true), Int(-1), Int(3), String("z"), List(String("a"))}
	if diff := cmp.Diff(want, vals); diff != "" {
		t.Errorf("sorted mismatch (-want +got):\n%s", diff)
	}
}

func TestValue_Accessors(t *testing.T) {
	i, ok := Int(4).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(4), i)

	_, ok = String("4").AsInt()
	assert.False(t, ok)

	s, ok := String("x").AsString()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	b, ok := Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	assert.Nil(t, Int(1).Elems())
	assert.Len(t, List(Int(1), Int(2)).Elems(), 2)
	assert.Equal(t, KindList, List().Kind())
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "null", Null().String())
	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, `"hi"`, String("hi").String())
	assert.Equal(t, `[1, "a", true]`, List(Int(1), String("a"), Bool(true)).String())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"null", Null()},
		{"true", Bool(true)},
		{"false", Bool(false)},
		{"12", Int(12)},
		{"-3", Int(-3)},
		{"abc", String("abc")},
		{`"12"`, String("12")},
		{"", String("")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseValue(tt.in)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestValue_WireRoundTrip(t *testing.T) {
	vals := []Value{
		Null(),
		Bool(true),
		Bool(false),
		Int(0),
		Int(-1 << 40),
		String("héllo"),
		List(),
		List(Int(1), List(String("nested"), Null())),
	}
	for _, v := range vals {
		t.Run(v.String(), func(t *testing.T) {
			got, err := DecodeValue(AppendValue(nil, v))
			require.NoError(t, err)
			assert.True(t, v.Equal(got), "want %s got %s", v, got)
			assert.Equal(t, v.Kind(), got.Kind())
		})
	}
}

func TestDecodeValue_Errors(t *testing.T) {
	_, err := DecodeValue([]byte{0x08, 0x09}) // kind 9
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeValue([]byte{0x22, 0x05, 'a'}) // truncated string
	assert.ErrorIs(t, err, ErrDecode)
}
