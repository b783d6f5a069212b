package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/WoelkiM/antidote/internal/gindex"
)

// ErrNotFound is returned by Get when nothing is stored under a name.
var ErrNotFound = errors.New("snapshot not found")

// Store defines the interface for snapshot storage.
type Store interface {
	// Get decodes the snapshot stored under name with the given options.
	Get(name string, opts ...gindex.Option) (*gindex.GIndex, error)
	// Put encodes g and stores it under name, replacing any previous snapshot.
	Put(name string, g *gindex.GIndex) error
}

// InMemoryStore keeps encoded snapshots in a map. It is safe for concurrent use.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string][]byte)}
}

// Get decodes the snapshot stored under name.
func (s *InMemoryStore) Get(name string, opts ...gindex.Option) (*gindex.GIndex, error) {
	s.mu.RLock()
	data, ok := s.data[name]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return gindex.Unmarshal(data, opts...)
}

// Put encodes and stores g under name.
func (s *InMemoryStore) Put(name string, g *gindex.GIndex) error {
	data, err := g.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = data
	return nil
}

// FileStore keeps one snapshot per file below a directory. Writes replace
// the file atomically, so a reader never sees a partial snapshot.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. With an empty dir, names are
// used as paths.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file that holds name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Get reads and decodes the file that holds name.
func (s *FileStore) Get(name string, opts ...gindex.Option) (*gindex.GIndex, error) {
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "%s", path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}

	g, err := gindex.Unmarshal(data, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return g, nil
}

// Put encodes g and atomically replaces the file that holds name.
func (s *FileStore) Put(name string, g *gindex.GIndex) error {
	data, err := g.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if err := atomic.WriteFile(s.Path(name), bytes.NewReader(data)); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	return nil
}
