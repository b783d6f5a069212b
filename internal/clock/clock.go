package clock

import (
	"fmt"
	"sort"
	"strings"
)

// VectorClock maps a replica ID to the number of effect batches issued by
// that replica. It is not safe for concurrent use.
type VectorClock map[string]uint64

// New creates an empty vector clock.
func New() VectorClock {
	return make(VectorClock)
}

// Tick advances the counter of replica and returns the new value.
func (vc VectorClock) Tick(replica string) uint64 {
	vc[replica]++
	return vc[replica]
}

// Get returns the counter of replica, or 0 if absent.
func (vc VectorClock) Get(replica string) uint64 {
	return vc[replica]
}

// Set sets the counter of replica.
func (vc VectorClock) Set(replica string, value uint64) {
	vc[replica] = value
}

// Merge raises every counter to the maximum of vc and other.
func (vc VectorClock) Merge(other VectorClock) {
	for replica, n := range other {
		if vc[replica] < n {
			vc[replica] = n
		}
	}
}

// Copy returns a deep copy.
func (vc VectorClock) Copy() VectorClock {
	out := make(VectorClock, len(vc))
	for k, v := range vc {
		out[k] = v
	}
	return out
}

// Ordering is the causal relation between two clocks.
type Ordering int

const (
	// Before means the receiver happened before the other clock.
	Before Ordering = iota
	// After means the receiver happened after the other clock.
	After
	// Concurrent means neither clock dominates.
	Concurrent
	// Equal means both clocks hold the same counters.
	Equal
)

func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	case Concurrent:
		return "concurrent"
	case Equal:
		return "equal"
	}
	return "unknown"
}

// Compare returns the causal relation of vc to other. Missing entries count as 0.
func (vc VectorClock) Compare(other VectorClock) Ordering {
	var less, greater bool
	for replica, n := range vc {
		switch m := other[replica]; {
		case n < m:
			less = true
		case n > m:
			greater = true
		}
	}
	for replica, m := range other {
		if _, seen := vc[replica]; !seen && m > 0 {
			less = true
		}
	}

	switch {
	case less && greater:
		return Concurrent
	case less:
		return Before
	case greater:
		return After
	}
	return Equal
}

// Deliverable reports whether a batch issued by from and stamped with msg
// can be applied by a replica whose delivered clock is vc: it must be the
// next batch from its issuer, and everything the issuer had seen must
// already be delivered here.
func (vc VectorClock) Deliverable(from string, msg VectorClock) bool {
	if msg[from] != vc[from]+1 {
		return false
	}
	for replica, n := range msg {
		if replica != from && n > vc[replica] {
			return false
		}
	}
	return true
}

// Seen reports whether the batch stamped msg from replica from has already
// been delivered.
func (vc VectorClock) Seen(from string, msg VectorClock) bool {
	return msg[from] <= vc[from]
}

// String returns the clock with replicas sorted, e.g. "{a:1, b:3}".
func (vc VectorClock) String() string {
	keys := make([]string, 0, len(vc))
	for k := range vc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, vc[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
