package repair

import (
	"fmt"
	"sort"

	"github.com/WoelkiM/antidote/internal/crdt"
	"github.com/WoelkiM/antidote/internal/gindex"
)

// Kind classifies a divergence.
type Kind uint8

const (
	// BoundMismatch means the replicas are bound to different nested types.
	BoundMismatch Kind = iota + 1
	// MissingLocal means the key exists only on the remote replica.
	MissingLocal
	// MissingRemote means the key exists only on the local replica.
	MissingRemote
	// ValueMismatch means the key is indexed under different values.
	ValueMismatch
	// StateMismatch means the values agree but the nested states do not.
	StateMismatch
	// BucketMismatch means a replica does not list the key in the bucket of
	// its own extracted value.
	BucketMismatch
)

func (k Kind) String() string {
	switch k {
	case BoundMismatch:
		return "bound_mismatch"
	case MissingLocal:
		return "missing_local"
	case MissingRemote:
		return "missing_remote"
	case ValueMismatch:
		return "value_mismatch"
	case StateMismatch:
		return "state_mismatch"
	case BucketMismatch:
		return "bucket_mismatch"
	}
	return "unknown"
}

// Divergence is one difference between two replicas. Key is empty for
// BoundMismatch. Local and Remote hold the extracted values where the key
// exists on that side.
type Divergence struct {
	Kind   Kind
	Key    gindex.Key
	Local  *crdt.Value
	Remote *crdt.Value
}

func (d Divergence) String() string {
	if d.Kind == BoundMismatch {
		return d.Kind.String()
	}
	return fmt.Sprintf("%s %q local=%s remote=%s", d.Kind, d.Key, show(d.Local), show(d.Remote))
}

func show(v *crdt.Value) string {
	if v == nil {
		return "-"
	}
	return v.String()
}

// Diff lists the divergences between local and remote, ordered by key.
func Diff(local, remote *gindex.GIndex) []Divergence {
	var out []Divergence
	sameBound := local.Bound() == remote.Bound()
	if !sameBound {
		out = append(out, Divergence{Kind: BoundMismatch})
	}

	var c crdt.Capability
	if sameBound {
		c, _ = local.Registry().Lookup(local.Bound())
	}

	for _, key := range unionKeys(local, remote) {
		lv, lok := extracted(local, key)
		rv, rok := extracted(remote, key)

		switch {
		case !lok:
			out = append(out, Divergence{Kind: MissingLocal, Key: key, Remote: rv})
			continue
		case !rok:
			out = append(out, Divergence{Kind: MissingRemote, Key: key, Local: lv})
			continue
		}

		switch {
		case lv == nil || rv == nil || !lv.Equal(*rv):
			out = append(out, Divergence{Kind: ValueMismatch, Key: key, Local: lv, Remote: rv})
		case c != nil && !statesEqual(c, local, remote, key):
			out = append(out, Divergence{Kind: StateMismatch, Key: key, Local: lv, Remote: rv})
		case !inOwnBucket(local, key) || !inOwnBucket(remote, key):
			out = append(out, Divergence{Kind: BucketMismatch, Key: key, Local: lv, Remote: rv})
		}
	}
	return out
}

// InSync reports whether Diff finds nothing.
func InSync(local, remote *gindex.GIndex) bool {
	return len(Diff(local, remote)) == 0
}

func unionKeys(a, b *gindex.GIndex) []gindex.Key {
	seen := make(map[gindex.Key]struct{}, a.Len()+b.Len())
	for _, k := range a.Keys() {
		seen[k] = struct{}{}
	}
	for _, k := range b.Keys() {
		seen[k] = struct{}{}
	}
	keys := make([]gindex.Key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// extracted reports whether key exists in g and its value, which is nil
// when the state cannot be read under g's bound type.
func extracted(g *gindex.GIndex, key gindex.Key) (*crdt.Value, bool) {
	if _, ok := g.State(key); !ok {
		return nil, false
	}
	v, err := g.ExtractValue(key)
	if err != nil {
		return nil, true
	}
	return &v, true
}

func statesEqual(c crdt.Capability, a, b *gindex.GIndex, key gindex.Key) bool {
	sa, _ := a.State(key)
	sb, _ := b.State(key)
	return c.Equal(sa, sb)
}

func inOwnBucket(g *gindex.GIndex, key gindex.Key) bool {
	e, err := g.Lookup(key)
	if err != nil {
		return false
	}
	i := sort.SearchStrings(e.Keys, key)
	return i < len(e.Keys) && e.Keys[i] == key
}
