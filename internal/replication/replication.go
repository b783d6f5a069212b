// Package replication wraps an index snapshot with the bookkeeping a replica
// needs to exchange effects: a vector clock and a buffer that applies
// received effect batches in causal order, at most once each.
//
// Delivery itself is left to the caller; Message values can be handed to
// Receive in any order and any number of times.
package replication

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/WoelkiM/antidote/internal/clock"
	"github.com/WoelkiM/antidote/internal/gindex"
)

// Message is a batch of effects issued by one replica.
type Message struct {
	From    string
	Clock   clock.VectorClock
	Effects []gindex.Effect
}

// Replica owns one index snapshot. It is safe for concurrent use.
type Replica struct {
	mu        sync.Mutex
	id        string
	state     *gindex.GIndex
	delivered clock.VectorClock
	pending   []Message
	logger    *zap.Logger
}

// NewReplica creates a replica starting from state. A nil logger discards output.
func NewReplica(id string, state *gindex.GIndex, logger *zap.Logger) *Replica {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replica{
		id:        id,
		state:     state,
		delivered: clock.New(),
		logger:    logger.With(zap.String("replica", id)),
	}
}

// ID returns the replica identifier.
func (r *Replica) ID() string { return r.id }

// State returns the current snapshot. Snapshots are never modified, so the
// result stays valid after further updates.
func (r *Replica) State() *gindex.GIndex {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Clock returns a copy of the delivered clock.
func (r *Replica) Clock() clock.VectorClock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delivered.Copy()
}

// Pending returns the number of buffered messages waiting for their causal
// predecessors.
func (r *Replica) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Submit validates ops as one batch, computes their effects against the
// local snapshot, applies them locally and returns the message to send to
// the other replicas.
func (r *Replica) Submit(ops ...gindex.Op) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.state.ValidateBatch(ops); err != nil {
		return Message{}, err
	}
	effs, err := r.state.DownstreamBatch(ops)
	if err != nil {
		return Message{}, err
	}
	next, err := r.state.UpdateBatch(effs)
	if err != nil {
		return Message{}, errors.Wrap(err, "apply local effects")
	}

	r.state = next
	r.delivered.Tick(r.id)
	msg := Message{From: r.id, Clock: r.delivered.Copy(), Effects: effs}

	r.logger.Debug("submitted effects",
		zap.Int("effects", len(effs)),
		zap.Stringer("clock", msg.Clock))
	return msg, nil
}

// Receive buffers msg and applies every buffered message whose causal
// predecessors have been delivered. Messages already delivered, and the
// replica's own messages, are ignored. It returns how many messages were applied.
func (r *Replica) Receive(msg Message) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.From == r.id || r.delivered.Seen(msg.From, msg.Clock) {
		r.logger.Debug("dropped duplicate message",
			zap.String("from", msg.From),
			zap.Stringer("clock", msg.Clock))
		return 0, nil
	}
	if !r.delivered.Deliverable(msg.From, msg.Clock) {
		r.logger.Debug("holding back message",
			zap.String("from", msg.From),
			zap.Stringer("order", msg.Clock.Compare(r.delivered)),
			zap.Stringer("clock", msg.Clock))
	}
	r.pending = append(r.pending, msg)
	return r.drain()
}

func (r *Replica) drain() (int, error) {
	applied := 0
	for progress := true; progress; {
		progress = false

		kept := r.pending[:0]
		for i, msg := range r.pending {
			if r.delivered.Seen(msg.From, msg.Clock) {
				continue
			}
			if !r.delivered.Deliverable(msg.From, msg.Clock) {
				kept = append(kept, msg)
				continue
			}

			next, err := r.state.UpdateBatch(msg.Effects)
			if err != nil {
				kept = append(kept, r.pending[i:]...)
				r.pending = kept
				return applied, errors.Wrapf(err, "apply message from %s %s", msg.From, msg.Clock)
			}
			r.state = next
			r.delivered.Set(msg.From, msg.Clock.Get(msg.From))
			applied++
			progress = true
		}
		r.pending = kept
	}

	if len(r.pending) > 0 {
		r.logger.Debug("messages waiting for causal predecessors",
			zap.Int("pending", len(r.pending)),
			zap.Stringer("delivered", r.delivered))
	}
	return applied, nil
}

// Broadcast hands msg to every replica in to except its issuer.
func Broadcast(msg Message, to ...*Replica) error {
	for _, r := range to {
		if r.ID() == msg.From {
			continue
		}
		if _, err := r.Receive(msg); err != nil {
			return errors.Wrapf(err, "deliver to %s", r.ID())
		}
	}
	return nil
}
