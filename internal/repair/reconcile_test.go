package repair

import (
	"testing"

	"dynamokv/internal/cluster"
	"dynamokv/internal/storage"
)

func TestReconcile_SingleValue(t *testing.T) {
	result := Reconcile([]storage.VersionedValue{storage.NewValue("a", 1)})

	if result.WinnerIndex != 0 {
		t.Errorf("Expected winner index 0, got %d", result.WinnerIndex)
	}
	if result.HasStale() {
		t.Error("Single value should not produce stale replicas")
	}
}

func TestReconcile_NewestWins(t *testing.T) {
	values := []storage.VersionedValue{
		storage.NewValue("old", 1),
		storage.NewValue("new", 3),
		storage.Absent(),
	}
	result := Reconcile(values)

	if *result.Winner.Value != "new" {
		t.Errorf("Expected 'new' to win, got %v", result.Winner)
	}
	if len(result.Stale) != 2 {
		t.Errorf("Expected 2 stale replicas, got %v", result.Stale)
	}
}

func TestReconcile_FirstSeenWinsTies(t *testing.T) {
	values := []storage.VersionedValue{
		storage.NewValue("first", 2),
		storage.NewValue("second", 2),
	}
	result := Reconcile(values)

	if *result.Winner.Value != "first" || result.WinnerIndex != 0 {
		t.Errorf("Expected first-seen value to win a tie, got %v at %d", result.Winner, result.WinnerIndex)
	}
	if result.HasStale() {
		t.Error("Equal versions are not stale")
	}
}

func TestReconcile_AllAbsent(t *testing.T) {
	result := Reconcile([]storage.VersionedValue{storage.Absent(), storage.Absent()})
	if !result.IsNotFound() {
		t.Error("All-absent responses should reconcile to not found")
	}
}

func TestReconcile_Empty(t *testing.T) {
	result := Reconcile(nil)
	if !result.IsNotFound() || result.WinnerIndex != -1 {
		t.Errorf("Empty input should be not found, got %+v", result)
	}
	if !Freshest(nil).IsAbsent() {
		t.Error("Freshest of nothing should be absent")
	}
}

func TestNewer(t *testing.T) {
	local := map[cluster.Key]storage.VersionedValue{
		1: storage.NewValue("a", 5),
		2: storage.NewValue("b", 1),
	}
	lookup := func(k cluster.Key) *storage.VersionedValue {
		if v, ok := local[k]; ok {
			return &v
		}
		return nil
	}

	got := Newer(map[cluster.Key]storage.VersionedValue{
		1: storage.NewValue("a-old", 4),
		2: storage.NewValue("b-new", 2),
		3: storage.NewValue("c", 0),
	}, lookup)

	if len(got) != 2 {
		t.Fatalf("Expected 2 newer items, got %v", got)
	}
	if _, ok := got[1]; ok {
		t.Error("Older incoming value must be filtered out")
	}
}
