package ring

import (
	"reflect"
	"testing"

	"dynamokv/internal/cluster"
)

func TestRing_FirstOwner(t *testing.T) {
	r := NewRing(10, 20, 30)

	tests := []struct {
		key  cluster.Key
		want cluster.NodeID
	}{
		{0, 10},
		{9, 10},
		{10, 20}, // strictly greater
		{15, 20},
		{25, 30},
		{30, 10}, // key equal to the largest id wraps
		{99, 10},
	}

	for _, tt := range tests {
		got := r.PreferenceList(tt.key, 1)
		if len(got) != 1 {
			t.Fatalf("Expected one owner for key %d, got %v", tt.key, got)
		}
		if got[0] != tt.want {
			t.Errorf("first owner of %d = %d, want %d", tt.key, got[0], tt.want)
		}
	}
}

func TestRing_PreferenceList(t *testing.T) {
	tests := []struct {
		name string
		ids  []cluster.NodeID
		key  cluster.Key
		n    int
		want []cluster.NodeID
	}{
		{"wraparound", []cluster.NodeID{10, 20, 30}, 25, 3, []cluster.NodeID{30, 10, 20}},
		{"middle of ring", []cluster.NodeID{10, 20, 30, 40}, 15, 3, []cluster.NodeID{20, 30, 40}},
		{"after leave", []cluster.NodeID{10, 30, 40}, 15, 3, []cluster.NodeID{30, 40, 10}},
		{"past largest", []cluster.NodeID{10, 20, 30, 40}, 45, 3, []cluster.NodeID{10, 20, 30}},
		{"fewer members than n", []cluster.NodeID{10, 20}, 5, 3, []cluster.NodeID{10, 20}},
		{"single member", []cluster.NodeID{7}, 100, 3, []cluster.NodeID{7}},
		{"unsorted with duplicates", []cluster.NodeID{30, 10, 30, 20}, 0, 2, []cluster.NodeID{10, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PreferenceList(tt.ids, tt.key, tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PreferenceList(%v, %d, %d) = %v, want %v", tt.ids, tt.key, tt.n, got, tt.want)
			}
		})
	}
}

func TestRing_NodeRemoval(t *testing.T) {
	r := NewRing(10, 20, 30)
	r.RemoveNode(20)
	r.RemoveNode(99) // no-op

	if got := r.GetNodes(); !reflect.DeepEqual(got, []cluster.NodeID{10, 30}) {
		t.Errorf("20 should be removed from ring, got %v", got)
	}
	if got := r.PreferenceList(15, 3); !reflect.DeepEqual(got, []cluster.NodeID{30, 10}) {
		t.Errorf("Expected [30 10], got %v", got)
	}
}

func TestRing_AddNode(t *testing.T) {
	r := NewRing(30)
	r.AddNode(10)
	r.AddNode(20)
	r.AddNode(10) // duplicate

	if got := r.GetNodes(); !reflect.DeepEqual(got, []cluster.NodeID{10, 20, 30}) {
		t.Errorf("Expected sorted ids [10 20 30], got %v", got)
	}
	if r.Len() != 3 {
		t.Errorf("Expected 3 nodes, got %d", r.Len())
	}
}

func TestRing_EmptyRing(t *testing.T) {
	r := NewRing()
	if r.Len() != 0 {
		t.Error("Expected an empty ring")
	}
	if got := r.PreferenceList(1, 3); len(got) != 0 {
		t.Errorf("Expected empty preference list, got %v", got)
	}
	if got := PreferenceList([]cluster.NodeID{1, 2}, 1, 0); len(got) != 0 {
		t.Errorf("Expected empty preference list for n=0, got %v", got)
	}
}
