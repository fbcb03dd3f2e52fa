package storage

import (
	"fmt"
	"strings"
	"sync"

	"dynamokv/internal/clock"
	"dynamokv/internal/cluster"
)

// VersionedValue represents a value with the version it was written at.
// A nil Value with an Absent version stands for "not stored".
type VersionedValue struct {
	Value   *string
	Version clock.Version
}

// Absent returns the sentinel reported for a key that is not stored.
func Absent() VersionedValue {
	return VersionedValue{Version: clock.Absent}
}

// NewValue returns a present value at the given version.
func NewValue(value string, version clock.Version) VersionedValue {
	return VersionedValue{Value: &value, Version: version}
}

// IsAbsent reports whether vv is the "not stored" sentinel.
func (vv VersionedValue) IsAbsent() bool {
	return vv.Value == nil && vv.Version.IsAbsent()
}

// NewerThan reports whether vv should replace other. A present value always
// ranks above a missing one (nil).
func (vv VersionedValue) NewerThan(other *VersionedValue) bool {
	if other == nil {
		return true
	}
	return vv.Version.Dominates(other.Version)
}

// String renders the value the way the console shows it: "x (v2)".
func (vv VersionedValue) String() string {
	val := "null"
	if vv.Value != nil {
		val = *vv.Value
	}
	if vv.Version.IsAbsent() {
		return val
	}
	return fmt.Sprintf("%s (v%d)", val, vv.Version)
}

// Entry is a single key of a Snapshot.
type Entry struct {
	Key   cluster.Key
	Value VersionedValue
}

// Snapshot is a point-in-time copy of a store, sorted by key.
type Snapshot []Entry

// Get returns the value stored under key in the snapshot.
func (s Snapshot) Get(key cluster.Key) (VersionedValue, bool) {
	for _, e := range s {
		if e.Key == key {
			return e.Value, true
		}
	}
	return VersionedValue{}, false
}

// String renders one "key -> value (vN)" line per entry.
func (s Snapshot) String() string {
	lines := make([]string, 0, len(s))
	for _, e := range s {
		val := "null"
		if e.Value.Value != nil {
			val = *e.Value.Value
		}
		lines = append(lines, fmt.Sprintf("%-3d -> %-15s (v%d)", e.Key, val, e.Value.Version))
	}
	return strings.Join(lines, "\n")
}

// ChangeFunc receives the store contents after a mutation.
type ChangeFunc func(Snapshot)

// Store defines the interface for the per-node key-value storage.
type Store interface {
	// Get retrieves a value by key. Returns nil if not found.
	Get(key cluster.Key) *VersionedValue
	// Put stores the value exactly as given, regardless of the current version.
	Put(key cluster.Key, vv VersionedValue)
	// MergeAll stores the values that are strictly newer than the local ones
	// and reports how many were applied.
	MergeAll(items map[cluster.Key]VersionedValue) int
	// DeleteAll removes every listed key and reports how many were present.
	DeleteAll(keys []cluster.Key) int
	// Keys returns the stored keys in ascending order.
	Keys() []cluster.Key
	// Snapshot returns a sorted copy of the contents.
	Snapshot() Snapshot
	// Len returns the number of stored keys.
	Len() int
}

// InMemoryStore is an in-memory implementation of Store.
// Only the owning node mutates it; the lock lets observers snapshot it from
// other goroutines.
type InMemoryStore struct {
	mu       sync.RWMutex
	data     map[cluster.Key]VersionedValue
	onChange ChangeFunc
}

// NewInMemoryStore creates a new in-memory store. onChange may be nil.
func NewInMemoryStore(onChange ChangeFunc) *InMemoryStore {
	return &InMemoryStore{
		data:     make(map[cluster.Key]VersionedValue),
		onChange: onChange,
	}
}

// Get retrieves a value by key.
func (s *InMemoryStore) Get(key cluster.Key) *VersionedValue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vv, exists := s.data[key]
	if !exists {
		return nil
	}
	return copyValue(vv)
}

// Put stores a value with the exact version given (no comparison).
func (s *InMemoryStore) Put(key cluster.Key, vv VersionedValue) {
	s.mu.Lock()
	s.data[key] = *copyValue(vv)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snap)
}

// MergeAll stores each item only if it is strictly newer than the local
// value, so an equal version keeps the local copy. It emits a single change
// event and returns how many items were applied.
func (s *InMemoryStore) MergeAll(items map[cluster.Key]VersionedValue) int {
	s.mu.Lock()
	applied := 0
	for key, vv := range items {
		if s.mergeLocked(key, vv) {
			applied++
		}
	}
	if applied == 0 {
		s.mu.Unlock()
		return 0
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snap)
	return applied
}

// DeleteAll removes every listed key and emits a single change event.
func (s *InMemoryStore) DeleteAll(keys []cluster.Key) int {
	s.mu.Lock()
	removed := 0
	for _, key := range keys {
		if _, exists := s.data[key]; exists {
			delete(s.data, key)
			removed++
		}
	}
	if removed == 0 {
		s.mu.Unlock()
		return 0
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snap)
	return removed
}

// Keys returns all keys in ascending order.
func (s *InMemoryStore) Keys() []cluster.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]cluster.Key, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return cluster.SortKeys(keys)
}

// Snapshot returns a sorted copy of the store.
func (s *InMemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of stored keys.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// mergeLocked applies vv if newer (must be called with lock held).
func (s *InMemoryStore) mergeLocked(key cluster.Key, vv VersionedValue) bool {
	if existing, exists := s.data[key]; exists && !vv.NewerThan(&existing) {
		return false
	}
	s.data[key] = *copyValue(vv)
	return true
}

// snapshotLocked copies the contents (must be called with lock held).
func (s *InMemoryStore) snapshotLocked() Snapshot {
	keys := make([]cluster.Key, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	cluster.SortKeys(keys)

	snap := make(Snapshot, 0, len(keys))
	for _, key := range keys {
		snap = append(snap, Entry{Key: key, Value: *copyValue(s.data[key])})
	}
	return snap
}

func (s *InMemoryStore) changed(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// copyValue creates a copy of vv that shares no pointers with it.
func copyValue(vv VersionedValue) *VersionedValue {
	out := VersionedValue{Version: vv.Version}
	if vv.Value != nil {
		v := *vv.Value
		out.Value = &v
	}
	return &out
}
