package cluster

import (
	"sort"
	"strconv"
)

// NodeID identifies a node and doubles as its position on the ring.
type NodeID int

// Key is a position in the integer keyspace.
type Key int

func (id NodeID) String() string {
	return strconv.Itoa(int(id))
}

// Valid reports whether the id can be used for a member.
func (id NodeID) Valid() bool {
	return id >= 0
}

// SortIDs sorts ids in place, ascending, and returns them.
func SortIDs(ids []NodeID) []NodeID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SortKeys sorts keys in place, ascending, and returns them.
func SortKeys(keys []Key) []Key {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ContainsID reports whether id is in ids.
func ContainsID(ids []NodeID, id NodeID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
