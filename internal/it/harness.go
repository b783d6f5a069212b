// Package it runs several replicas in one process and delivers their
// messages through an in-memory network that can take replicas offline.
package it

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/WoelkiM/antidote/internal/clock"
	"github.com/WoelkiM/antidote/internal/gindex"
	"github.com/WoelkiM/antidote/internal/replication"
	"github.com/WoelkiM/antidote/internal/storage"
)

// Cluster is a set of replicas connected by an in-memory network.
type Cluster struct {
	mu       sync.Mutex
	nodes    map[string]*Node
	store    storage.Store
	logger   *zap.Logger
	rng      *rand.Rand
	inflight []envelope
}

// Node is one replica of the cluster.
type Node struct {
	ID      string
	Replica *replication.Replica
	down    bool
}

type envelope struct {
	to  string
	msg replication.Message
}

// NewCluster starts one replica per id. Snapshots are saved to store by
// Checkpoint. seed fixes the delivery order.
func NewCluster(store storage.Store, logger *zap.Logger, seed int64, ids ...string) *Cluster {
	c := &Cluster{
		nodes:  make(map[string]*Node, len(ids)),
		store:  store,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
	for _, id := range ids {
		c.nodes[id] = &Node{ID: id, Replica: replication.NewReplica(id, gindex.New(), logger)}
	}
	return c
}

// GetNode returns the node with the given id, or nil.
func (c *Cluster) GetNode(id string) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes[id]
}

// Submit runs ops on node id and queues the resulting message for every
// other node.
func (c *Cluster) Submit(id string, ops ...gindex.Op) error {
	n := c.GetNode(id)
	if n == nil {
		return errors.Errorf("unknown node %s", id)
	}
	msg, err := n.Replica.Submit(ops...)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, other := range c.sortedIDs() {
		if other != id {
			c.inflight = append(c.inflight, envelope{to: other, msg: msg})
		}
	}
	return nil
}

// KillNode takes a node offline. Messages addressed to it stay queued.
func (c *Cluster) KillNode(id string) error {
	return c.setDown(id, true)
}

// RestartNode brings a node back online.
func (c *Cluster) RestartNode(id string) error {
	return c.setDown(id, false)
}

func (c *Cluster) setDown(id string, down bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return errors.Errorf("unknown node %s", id)
	}
	n.down = down
	c.logger.Info("node state changed", zap.String("node", id), zap.Bool("down", down))
	return nil
}

// Deliver hands every queued message addressed to an online node to that
// node, in random order. Duplicates are delivered with probability dup.
// It returns how many messages are still queued.
func (c *Cluster) Deliver(dup float64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rng.Shuffle(len(c.inflight), func(i, j int) {
		c.inflight[i], c.inflight[j] = c.inflight[j], c.inflight[i]
	})

	var kept []envelope
	for _, env := range c.inflight {
		n := c.nodes[env.to]
		if n.down {
			kept = append(kept, env)
			continue
		}
		times := 1
		if c.rng.Float64() < dup {
			times = 2
		}
		for i := 0; i < times; i++ {
			if _, err := n.Replica.Receive(env.msg); err != nil {
				return 0, errors.Wrapf(err, "deliver to %s", env.to)
			}
		}
	}
	c.inflight = kept
	return len(kept), nil
}

// Checkpoint saves every node's snapshot under its id.
func (c *Cluster) Checkpoint() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.sortedIDs() {
		if err := c.store.Put(id, c.nodes[id].Replica.State()); err != nil {
			return errors.Wrapf(err, "checkpoint %s", id)
		}
	}
	return nil
}

// Frontier returns the merge of every node's delivered clock.
func (c *Cluster) Frontier() clock.VectorClock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frontier()
}

func (c *Cluster) frontier() clock.VectorClock {
	f := clock.New()
	for _, n := range c.nodes {
		f.Merge(n.Replica.Clock())
	}
	return f
}

// Lagging returns, ordered by id, the nodes that have not delivered every
// batch some other node has.
func (c *Cluster) Lagging() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.frontier()
	var out []string
	for _, id := range c.sortedIDs() {
		if c.nodes[id].Replica.Clock().Compare(f) != clock.Equal {
			out = append(out, id)
		}
	}
	return out
}

// States returns the current snapshot of every node, ordered by id.
func (c *Cluster) States() []*gindex.GIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*gindex.GIndex, 0, len(c.nodes))
	for _, id := range c.sortedIDs() {
		out = append(out, c.nodes[id].Replica.State())
	}
	return out
}

func (c *Cluster) sortedIDs() []string {
	ids := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
