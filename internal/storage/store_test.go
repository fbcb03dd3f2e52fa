package storage

import (
	"sync"
	"testing"

	"dynamokv/internal/clock"
	"dynamokv/internal/cluster"
)

func TestInMemoryStore_GetPut(t *testing.T) {
	store := NewInMemoryStore(nil)

	store.Put(1, NewValue("value1", 0))

	vv := store.Get(1)
	if vv == nil {
		t.Fatal("Expected non-nil value")
	}
	if *vv.Value != "value1" {
		t.Errorf("Expected 'value1', got '%s'", *vv.Value)
	}
	if vv.Version != 0 {
		t.Errorf("Expected version 0, got %d", vv.Version)
	}
}

func TestInMemoryStore_GetNotFound(t *testing.T) {
	store := NewInMemoryStore(nil)
	if vv := store.Get(42); vv != nil {
		t.Error("Expected nil for non-existent key")
	}
}

func TestInMemoryStore_PutIsUnconditional(t *testing.T) {
	store := NewInMemoryStore(nil)

	store.Put(1, NewValue("new", 5))
	store.Put(1, NewValue("old", 2))

	vv := store.Get(1)
	if *vv.Value != "old" || vv.Version != 2 {
		t.Errorf("Put must overwrite regardless of version, got %v", vv)
	}
}

func TestInMemoryStore_Merge(t *testing.T) {
	tests := []struct {
		name      string
		local     *VersionedValue
		incoming  VersionedValue
		wantApply bool
		wantValue string
	}{
		{"missing locally", nil, NewValue("a", 0), true, "a"},
		{"incoming newer", ptr(NewValue("a", 1)), NewValue("b", 2), true, "b"},
		{"incoming older", ptr(NewValue("a", 3)), NewValue("b", 2), false, "a"},
		{"equal version keeps local", ptr(NewValue("a", 2)), NewValue("b", 2), false, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryStore(nil)
			if tt.local != nil {
				store.Put(7, *tt.local)
			}

			applied := store.MergeAll(map[cluster.Key]VersionedValue{7: tt.incoming}) == 1
			if applied != tt.wantApply {
				t.Errorf("MergeAll() applied = %v, want %v", applied, tt.wantApply)
			}
			if got := *store.Get(7).Value; got != tt.wantValue {
				t.Errorf("Expected value %q, got %q", tt.wantValue, got)
			}
		})
	}
}

func TestInMemoryStore_MergeAll(t *testing.T) {
	events := 0
	store := NewInMemoryStore(func(Snapshot) { events++ })
	store.Put(1, NewValue("keep", 9))
	events = 0

	applied := store.MergeAll(map[cluster.Key]VersionedValue{
		1: NewValue("stale", 3),
		2: NewValue("two", 0),
		3: NewValue("three", 1),
	})

	if applied != 2 {
		t.Errorf("Expected 2 applied items, got %d", applied)
	}
	if events != 1 {
		t.Errorf("Expected a single change event, got %d", events)
	}
	if *store.Get(1).Value != "keep" {
		t.Error("Newer local value must not be overwritten")
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore(nil)
	store.Put(1, NewValue("value1", 0))

	if store.DeleteAll([]cluster.Key{1}) != 1 {
		t.Error("Expected DeleteAll to report a removed key")
	}
	if store.Get(1) != nil {
		t.Error("Expected key to be gone after delete")
	}
	if store.DeleteAll([]cluster.Key{1}) != 0 {
		t.Error("Deleting a missing key should remove nothing")
	}
}

func TestInMemoryStore_DeleteAll(t *testing.T) {
	store := NewInMemoryStore(nil)
	for i := 0; i < 5; i++ {
		store.Put(cluster.Key(i), NewValue("v", 0))
	}

	removed := store.DeleteAll([]cluster.Key{0, 2, 4, 9})
	if removed != 3 {
		t.Errorf("Expected 3 removed keys, got %d", removed)
	}
	keys := store.Keys()
	if len(keys) != 2 || keys[0] != 1 || keys[1] != 3 {
		t.Errorf("Expected keys [1 3], got %v", keys)
	}
}

func TestInMemoryStore_ChangeEvents(t *testing.T) {
	var snaps []Snapshot
	store := NewInMemoryStore(func(s Snapshot) { snaps = append(snaps, s) })

	store.Put(2, NewValue("b", 0))
	store.Put(1, NewValue("a", 0))
	store.MergeAll(map[cluster.Key]VersionedValue{1: NewValue("a", 0)}) // no-op, no event
	store.DeleteAll([]cluster.Key{2})
	store.DeleteAll([]cluster.Key{2}) // no-op, no event

	if len(snaps) != 3 {
		t.Fatalf("Expected 3 change events, got %d", len(snaps))
	}
	if len(snaps[1]) != 2 || snaps[1][0].Key != 1 {
		t.Errorf("Snapshot should be sorted by key, got %v", snaps[1])
	}
	if len(snaps[2]) != 1 {
		t.Errorf("Expected 1 key after delete, got %d", len(snaps[2]))
	}
}

func TestInMemoryStore_CopiesValues(t *testing.T) {
	store := NewInMemoryStore(nil)
	s := "original"
	store.Put(1, VersionedValue{Value: &s, Version: 0})
	s = "mutated"

	vv := store.Get(1)
	if *vv.Value != "original" {
		t.Errorf("Store must not alias caller memory, got %q", *vv.Value)
	}
	*vv.Value = "changed"
	if *store.Get(1).Value != "original" {
		t.Error("Get must return a copy")
	}
}

func TestInMemoryStore_ConcurrentSnapshots(t *testing.T) {
	store := NewInMemoryStore(nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			store.Put(cluster.Key(i%10), NewValue("v", clock.Version(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = store.Snapshot()
		}
	}()
	wg.Wait()

	if store.Len() != 10 {
		t.Errorf("Expected 10 keys, got %d", store.Len())
	}
}

func TestVersionedValue_NewerThan(t *testing.T) {
	if !NewValue("a", 0).NewerThan(nil) {
		t.Error("Present value should rank above missing")
	}
	abs := Absent()
	if !NewValue("a", 0).NewerThan(&abs) {
		t.Error("Version 0 should rank above absent")
	}
	older := NewValue("a", 1)
	if NewValue("b", 1).NewerThan(&older) {
		t.Error("Equal versions are not newer")
	}
}

func TestSnapshot_String(t *testing.T) {
	snap := Snapshot{
		{Key: 1, Value: NewValue("one", 0)},
		{Key: 25, Value: NewValue("x", 2)},
	}
	want := "1   -> one             (v0)\n25  -> x               (v2)"
	if got := snap.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}

	if got := NewValue("x", 2).String(); got != "x (v2)" {
		t.Errorf("Expected 'x (v2)', got %q", got)
	}
	if got := Absent().String(); got != "null" {
		t.Errorf("Expected 'null', got %q", got)
	}
}

func ptr(vv VersionedValue) *VersionedValue {
	return &vv
}
