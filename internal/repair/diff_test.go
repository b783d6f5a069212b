package repair

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WoelkiM/antidote/internal/crdt"
	"github.com/WoelkiM/antidote/internal/gindex"
)

func build(t *testing.T, ops ...gindex.Op) *gindex.GIndex {
	t.Helper()
	g := gindex.New()
	for _, op := range ops {
		eff, err := g.Downstream(op)
		require.NoError(t, err)
		g, err = g.Update(eff)
		require.NoError(t, err)
	}
	return g
}

func assignAt(key string, v, ts int64) gindex.Op {
	return gindex.Op{Type: crdt.TypeLWWRegister, Key: key, Op: crdt.Assign{Value: crdt.Int(v), Timestamp: ts}}
}

func ptr(v crdt.Value) *crdt.Value { return &v }

func kinds(ds []Divergence) []Kind {
	out := make([]Kind, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Kind)
	}
	return out
}

func TestDiff_InSync(t *testing.T) {
	a := build(t, assignAt("a", 1, 1), assignAt("b", 2, 1))
	b := build(t, assignAt("b", 2, 1), assignAt("a", 1, 1))

	assert.Empty(t, Diff(a, b))
	assert.True(t, InSync(a, b))
	assert.True(t, InSync(gindex.New(), gindex.New()))
}

func TestDiff_MissingKeys(t *testing.T) {
	a := build(t, assignAt("a", 1, 1), assignAt("b", 2, 1))
	b := build(t, assignAt("b", 2, 1), assignAt("c", 3, 1))

	want := []Divergence{
		{Kind: MissingRemote, Key: "a", Local: ptr(crdt.Int(1))},
		{Kind: MissingLocal, Key: "c", Remote: ptr(crdt.Int(3))},
	}
	if diff := cmp.Diff(want, Diff(a, b)); diff != "" {
		t.Errorf("divergences mismatch (-want +got):\n%s", diff)
	}
}

func TestDiff_ValueAndStateMismatch(t *testing.T) {
	a := build(t, assignAt("a", 1, 1), assignAt("b", 5, 2))
	b := build(t, assignAt("a", 4, 1), assignAt("b", 5, 3))

	got := Diff(a, b)
	require.Len(t, got, 2)
	assert.Equal(t, []Kind{ValueMismatch, StateMismatch}, kinds(got))
	assert.Equal(t, "a", got[0].Key)
	assert.True(t, got[0].Local.Equal(crdt.Int(1)))
	assert.True(t, got[0].Remote.Equal(crdt.Int(4)))
	assert.Equal(t, "b", got[1].Key)
}

func TestDiff_BoundMismatch(t *testing.T) {
	a := build(t, assignAt("a", 1, 1))
	b := build(t, gindex.Op{Type: crdt.TypePNCounter, Key: "a", Op: crdt.Increment{By: 1}})

	got := Diff(a, b)
	require.NotEmpty(t, got)
	assert.Equal(t, BoundMismatch, got[0].Kind)
	assert.Equal(t, "bound_mismatch", got[0].String())
	assert.False(t, InSync(a, b))
}

func TestDiff_ReportsStateUnreadableAfterRebind(t *testing.T) {
	a := build(t, gindex.Op{Type: crdt.TypePNCounter, Key: "a", Op: crdt.Increment{By: 1}})
	eff, err := gindex.New().Downstream(assignAt("b", 5, 1))
	require.NoError(t, err)
	a, err = a.Update(eff)
	require.NoError(t, err)

	b := build(t, gindex.Op{Type: crdt.TypePNCounter, Key: "a", Op: crdt.Increment{By: 1}})

	got := Diff(a, b)
	require.NotEmpty(t, got)
	assert.Equal(t, []Kind{BoundMismatch, ValueMismatch, MissingRemote}, kinds(got))
	assert.Nil(t, got[1].Local, "key a cannot be read under the register type")
}

func TestDiff_ReplicasConvergeAfterExchange(t *testing.T) {
	base := gindex.New()
	e1, err := base.Downstream(gindex.Op{Type: crdt.TypePNCounter, Key: "k", Op: crdt.Increment{By: 2}})
	require.NoError(t, err)
	e2, err := base.Downstream(gindex.Op{Type: crdt.TypePNCounter, Key: "k", Op: crdt.Increment{By: 3}})
	require.NoError(t, err)

	a, err := base.Update(e1)
	require.NoError(t, err)
	b, err := base.Update(e2)
	require.NoError(t, err)
	assert.Equal(t, []Kind{ValueMismatch}, kinds(Diff(a, b)))

	a, err = a.Update(e2)
	require.NoError(t, err)
	b, err = b.Update(e1)
	require.NoError(t, err)
	assert.Empty(t, Diff(a, b))
}

func TestDivergence_String(t *testing.T) {
	d := Divergence{Kind: MissingRemote, Key: "a", Local: ptr(crdt.Int(1))}
	assert.Equal(t, `missing_remote "a" local=1 remote=-`, d.String())
}
