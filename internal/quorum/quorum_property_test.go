package quorum

import (
	"math/rand"
	"testing"

	"dynamokv/internal/clock"
	"dynamokv/internal/storage"
)

// TestQuorum_ReachedIffArrivalsGEQThreshold checks the arrival counter
// against every threshold for a fixed replica count.
func TestQuorum_ReachedIffArrivalsGEQThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		arrivals  int
		reached   bool
	}{
		{"R=2, 2 responses", 2, 2, true},
		{"R=2, 1 response", 2, 1, false},
		{"R=3, 2 responses", 3, 2, false},
		{"R=3, 3 responses", 3, 3, true},
		{"R=1, 1 response", 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker[struct{}]()
			req := tr.NewRequest(Get, struct{}{}, tt.threshold)

			reached := false
			for i := 0; i < tt.arrivals; i++ {
				r, err := tr.Record(req.ID, 0, storage.NewValue("v", clock.Version(i)))
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				reached = reached || r
			}

			if reached != tt.reached {
				t.Errorf("Expected reached=%v, got %v", tt.reached, reached)
			}
		})
	}
}

// TestQuorum_FreshestIsMaxVersion checks that resolution always returns the
// greatest version regardless of arrival order.
func TestQuorum_FreshestIsMaxVersion(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(5)
		tr := NewTracker[struct{}]()
		req := tr.NewRequest(Update, struct{}{}, n)

		want := clock.Absent
		for i := 0; i < n; i++ {
			ver := clock.Version(rng.Intn(10) - 1)
			vv := storage.Absent()
			if !ver.IsAbsent() {
				vv = storage.NewValue("v", ver)
			}
			if ver.Dominates(want) {
				want = ver
			}
			if _, err := tr.Record(req.ID, 0, vv); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		}

		_, got, ok := tr.Resolve(req.ID)
		if !ok {
			t.Fatal("Expected request to resolve")
		}
		if got.Version != want {
			t.Fatalf("Iteration %d: expected version %d, got %d", iter, want, got.Version)
		}
	}
}
