package ring

import (
	"sort"
	"sync"

	"dynamokv/internal/cluster"
)

// Ring is a sorted set of member ids.
type Ring struct {
	mu  sync.RWMutex
	ids []cluster.NodeID
}

// NewRing creates a ring holding the given ids.
func NewRing(ids ...cluster.NodeID) *Ring {
	r := &Ring{}
	r.SetNodes(ids)
	return r
}

// SetNodes rebuilds the ring with the given ids. Duplicates are dropped.
func (r *Ring) SetNodes(ids []cluster.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = normalize(ids)
}

// AddNode adds an id to the ring.
func (r *Ring) AddNode(id cluster.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := sort.Search(len(r.ids), func(i int) bool {
		return r.ids[i] >= id
	})
	if idx < len(r.ids) && r.ids[idx] == id {
		return // already exists
	}
	r.ids = append(r.ids[:idx], append([]cluster.NodeID{id}, r.ids[idx:]...)...)
}

// RemoveNode removes an id from the ring.
func (r *Ring) RemoveNode(id cluster.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := sort.Search(len(r.ids), func(i int) bool {
		return r.ids[i] >= id
	})
	if idx >= len(r.ids) || r.ids[idx] != id {
		return // doesn't exist
	}
	r.ids = append(r.ids[:idx], r.ids[idx+1:]...)
}

// Len returns the number of ids on the ring.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// GetNodes returns all ids in ascending order.
func (r *Ring) GetNodes() []cluster.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]cluster.NodeID(nil), r.ids...)
}

// PreferenceList returns the first k owners of the key.
func (r *Ring) PreferenceList(key cluster.Key, k int) []cluster.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return walk(r.ids, key, k)
}

// PreferenceList computes the owners of key over an arbitrary id set. The
// ids need not be sorted or unique.
func PreferenceList(ids []cluster.NodeID, key cluster.Key, n int) []cluster.NodeID {
	return NewRing(ids...).PreferenceList(key, n)
}

// successorIndex finds the first id strictly greater than key, wrapping to 0.
func successorIndex(ids []cluster.NodeID, key cluster.Key) int {
	idx := sort.Search(len(ids), func(i int) bool {
		return int(ids[i]) > int(key)
	})
	if idx >= len(ids) {
		idx = 0
	}
	return idx
}

// walk collects up to n distinct ids clockwise from the key's successor.
// ids must be sorted.
func walk(ids []cluster.NodeID, key cluster.Key, n int) []cluster.NodeID {
	if len(ids) == 0 || n <= 0 {
		return []cluster.NodeID{}
	}

	want := n
	if len(ids) < want {
		want = len(ids)
	}

	idx := successorIndex(ids, key)
	seen := make(map[cluster.NodeID]bool, want)
	result := make([]cluster.NodeID, 0, want)

	for i := 0; i < len(ids) && len(result) < want; i++ {
		id := ids[(idx+i)%len(ids)]
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}

// normalize returns a sorted, duplicate-free copy of ids.
func normalize(ids []cluster.NodeID) []cluster.NodeID {
	out := make([]cluster.NodeID, 0, len(ids))
	seen := make(map[cluster.NodeID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return cluster.SortIDs(out)
}
