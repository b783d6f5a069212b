package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WoelkiM/antidote/internal/crdt"
	"github.com/WoelkiM/antidote/internal/gindex"
)

func sample(t *testing.T) *gindex.GIndex {
	t.Helper()
	g := gindex.New()
	for _, op := range []gindex.Op{
		{Type: crdt.TypePNCounter, Key: "a", Op: crdt.Increment{By: 2}},
		{Type: crdt.TypePNCounter, Key: "b", Op: crdt.Increment{By: 5}},
	} {
		eff, err := g.Downstream(op)
		require.NoError(t, err)
		g, err = g.Update(eff)
		require.NoError(t, err)
	}
	return g
}

func testStore(t *testing.T, s Store) {
	_, err := s.Get("idx")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	g := sample(t)
	require.NoError(t, s.Put("idx", g))

	got, err := s.Get("idx")
	require.NoError(t, err)
	assert.True(t, gindex.Equal(g, got))
	assert.Equal(t, g.Value(), got.Value())

	// Put replaces the previous snapshot.
	require.NoError(t, s.Put("idx", gindex.NewBound(crdt.TypeGSet)))
	got, err = s.Get("idx")
	require.NoError(t, err)
	assert.Equal(t, crdt.TypeGSet, got.Bound())
	assert.Equal(t, 0, got.Len())
}

func TestInMemoryStore(t *testing.T) {
	testStore(t, NewInMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	testStore(t, s)

	_, err := os.Stat(filepath.Join(dir, "idx"))
	assert.NoError(t, err)
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad"), []byte("xx"), 0o644))

	_, err := NewFileStore(dir).Get("bad")
	assert.True(t, errors.Is(err, gindex.ErrDecode), "got %v", err)
}

func TestInMemoryStore_GetReturnsPrivateCopies(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Put("idx", sample(t)))

	a, err := s.Get("idx")
	require.NoError(t, err)
	b, err := s.Get("idx")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.True(t, gindex.Equal(a, b))
}
