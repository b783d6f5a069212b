package it

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/WoelkiM/antidote/internal/crdt"
	"github.com/WoelkiM/antidote/internal/gindex"
	"github.com/WoelkiM/antidote/internal/repair"
	"github.com/WoelkiM/antidote/internal/storage"
)

func newCluster(t *testing.T, store storage.Store) *Cluster {
	t.Helper()
	return NewCluster(store, zaptest.NewLogger(t), 42, "dc1", "dc2", "dc3")
}

func assertConverged(t *testing.T, c *Cluster) {
	t.Helper()
	states := c.States()
	for i := 1; i < len(states); i++ {
		assert.Empty(t, repair.Diff(states[0], states[i]), "replica %d diverges", i)
		assert.True(t, gindex.Equal(states[0], states[i]), "replica %d not equal", i)
	}
}

func TestSmoke_RangeQueryOnEveryReplica(t *testing.T) {
	c := newCluster(t, storage.NewInMemoryStore())

	for i := 1; i <= 6; i++ {
		id := fmt.Sprintf("dc%d", i%3+1)
		op := gindex.Op{Type: crdt.TypeLWWRegister, Key: fmt.Sprintf("col%d", i), Op: crdt.Assign{Value: crdt.Int(int64(i))}}
		require.NoError(t, c.Submit(id, op))
	}
	left, err := c.Deliver(0.3)
	require.NoError(t, err)
	require.Equal(t, 0, left)
	assertConverged(t, c)

	for _, g := range c.States() {
		got, err := g.Range(gindex.Gte(crdt.Int(3)), gindex.Lt(crdt.Int(6)))
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"col3"}, got[0].Keys)
		assert.Equal(t, []string{"col5"}, got[2].Keys)
	}
}

func TestSmoke_ToleratesOneNodeDown(t *testing.T) {
	c := newCluster(t, storage.NewInMemoryStore())
	require.NoError(t, c.KillNode("dc3"))

	for i := 0; i < 10; i++ {
		op := gindex.Op{Type: crdt.TypePNCounter, Key: fmt.Sprintf("k%d", i%4), Op: crdt.Increment{By: int64(i + 1)}}
		require.NoError(t, c.Submit([]string{"dc1", "dc2"}[i%2], op))
	}
	left, err := c.Deliver(0)
	require.NoError(t, err)
	assert.Equal(t, 10, left)

	states := c.States()
	assert.Empty(t, repair.Diff(states[0], states[1]))
	assert.NotEmpty(t, repair.Diff(states[0], states[2]))
	assert.Equal(t, []string{"dc3"}, c.Lagging())
	assert.Equal(t, uint64(5), c.Frontier().Get("dc1"))
	assert.Equal(t, uint64(5), c.Frontier().Get("dc2"))

	require.NoError(t, c.RestartNode("dc3"))
	left, err = c.Deliver(0.5)
	require.NoError(t, err)
	assert.Equal(t, 0, left)
	assert.Empty(t, c.Lagging())
	assertConverged(t, c)
}

func TestSmoke_ConcurrentBoundedCounters(t *testing.T) {
	c := newCluster(t, storage.NewInMemoryStore())
	inc := func(actor string, by int64) gindex.Op {
		return gindex.Op{Type: crdt.TypeBoundedCounter, Key: "stock", Op: crdt.Increment{By: by, Actor: actor}}
	}
	dec := func(actor string, by int64) gindex.Op {
		return gindex.Op{Type: crdt.TypeBoundedCounter, Key: "stock", Op: crdt.Decrement{By: by, Actor: actor}}
	}

	require.NoError(t, c.Submit("dc1", inc("dc1", 6)))
	require.NoError(t, c.Submit("dc2", inc("dc2", 4)))
	_, err := c.Deliver(0)
	require.NoError(t, err)

	require.NoError(t, c.Submit("dc1", dec("dc1", 2)))
	require.NoError(t, c.Submit("dc2", dec("dc2", 1)))
	// dc3 holds no permissions of its own.
	assert.ErrorIs(t, c.Submit("dc3", dec("dc3", 1)), crdt.ErrNoPermissions)

	_, err = c.Deliver(0.2)
	require.NoError(t, err)
	assertConverged(t, c)

	e, err := c.States()[2].Lookup("stock")
	require.NoError(t, err)
	assert.True(t, e.Value.Equal(crdt.Int(7)), "got %s", e.Value)
}

func TestSmoke_CheckpointAndReload(t *testing.T) {
	store := storage.NewFileStore(t.TempDir())
	c := newCluster(t, store)

	require.NoError(t, c.Submit("dc1", gindex.Op{Type: crdt.TypeGSet, Key: "tags", Op: crdt.Add{Elems: []crdt.Value{crdt.String("a")}}}))
	require.NoError(t, c.Submit("dc2", gindex.Op{Type: crdt.TypeGSet, Key: "tags", Op: crdt.Add{Elems: []crdt.Value{crdt.String("b")}}}))
	_, err := c.Deliver(0)
	require.NoError(t, err)
	require.NoError(t, c.Checkpoint())

	for i, id := range []string{"dc1", "dc2", "dc3"} {
		g, err := store.Get(id)
		require.NoError(t, err)
		assert.True(t, gindex.Equal(c.States()[i], g), "reloaded %s differs", id)
		assert.Empty(t, repair.Diff(c.States()[0], g))
	}
}
