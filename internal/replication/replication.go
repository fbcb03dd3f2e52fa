package replication

import (
	"dynamokv/internal/cluster"
	"dynamokv/internal/ring"
)

// DefaultReplicationFactor is used when a non-positive factor is given.
const DefaultReplicationFactor = 3

// View is one node's picture of the cluster: the other members it knows
// about plus itself.
type View struct {
	Self    cluster.NodeID
	Members []cluster.NodeID
	N       int
}

func (v View) factor() int {
	if v.N <= 0 {
		return DefaultReplicationFactor
	}
	return v.N
}

// OwnersOf returns the replicas responsible for key. With includeSelf the
// node's own id is part of the ring; without it the answer is "who else
// should hold this key".
func (v View) OwnersOf(key cluster.Key, includeSelf bool) []cluster.NodeID {
	ids := make([]cluster.NodeID, 0, len(v.Members)+1)
	for _, id := range v.Members {
		if id != v.Self {
			ids = append(ids, id)
		}
	}
	if includeSelf {
		ids = append(ids, v.Self)
	}
	return ring.PreferenceList(ids, key, v.factor())
}

// Owns reports whether the node is among the owners of key.
func (v View) Owns(key cluster.Key) bool {
	return cluster.ContainsID(v.OwnersOf(key, true), v.Self)
}

// Evictions lists the keys the node no longer owns under this view.
func (v View) Evictions(keys []cluster.Key) []cluster.Key {
	out := make([]cluster.Key, 0)
	for _, k := range keys {
		if !v.Owns(k) {
			out = append(out, k)
		}
	}
	return out
}

// LeavePlan computes the Goodbye payload of a departing node: for each key,
// the nodes that become owners once the node is gone receive it. Members
// that gain nothing are absent from the map.
func (v View) LeavePlan(keys []cluster.Key) map[cluster.NodeID][]cluster.Key {
	plan := make(map[cluster.NodeID][]cluster.Key)
	for _, k := range keys {
		before := v.OwnersOf(k, true)
		after := v.OwnersOf(k, false)
		for _, id := range after {
			if !cluster.ContainsID(before, id) {
				plan[id] = append(plan[id], k)
			}
		}
	}
	return plan
}

// Claims returns the keys a joining node will hold once it is part of the
// ring, as seen by a donor. The key sitting exactly on the joiner's position
// is always handed over.
func (v View) Claims(joiner cluster.NodeID, keys []cluster.Key) []cluster.Key {
	joined := View{Self: joiner, Members: append(append([]cluster.NodeID{}, v.Members...), v.Self), N: v.N}

	out := make([]cluster.Key, 0)
	for _, k := range keys {
		if int(k) == int(joiner) || joined.Owns(k) {
			out = append(out, k)
		}
	}
	return out
}
