package ring

import (
	"math/rand"
	"testing"

	"dynamokv/internal/cluster"
)

const testN = 3

func randomMembership(rng *rand.Rand) []cluster.NodeID {
	count := 1 + rng.Intn(8)
	ids := make([]cluster.NodeID, 0, count)
	seen := make(map[cluster.NodeID]bool)
	for len(ids) < count {
		id := cluster.NodeID(rng.Intn(100))
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// TestRing_Property_Size tests that the preference list has min(|M|, N) distinct ids
func TestRing_Property_Size(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		ids := randomMembership(rng)
		key := cluster.Key(rng.Intn(120))

		owners := PreferenceList(ids, key, testN)
		want := testN
		if len(ids) < want {
			want = len(ids)
		}
		if len(owners) != want {
			t.Fatalf("members=%v key=%d: expected %d owners, got %v", ids, key, want, owners)
		}

		seen := make(map[cluster.NodeID]bool)
		for _, id := range owners {
			if seen[id] {
				t.Fatalf("members=%v key=%d: duplicate owner %d in %v", ids, key, id, owners)
			}
			seen[id] = true
		}
	}
}

// TestRing_Property_ContiguousFromSuccessor tests that owners are a contiguous run
// on the sorted circular list starting at the first id > key
func TestRing_Property_ContiguousFromSuccessor(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 500; i++ {
		ids := normalize(randomMembership(rng))
		key := cluster.Key(rng.Intn(120))
		owners := PreferenceList(ids, key, testN)

		start := -1
		for j, id := range ids {
			if int(id) > int(key) {
				start = j
				break
			}
		}
		if start == -1 {
			start = 0
		}

		for j, owner := range owners {
			if expected := ids[(start+j)%len(ids)]; owner != expected {
				t.Fatalf("members=%v key=%d: owner[%d]=%d, expected %d", ids, key, j, owner, expected)
			}
		}
	}
}

// TestRing_Property_Determinism tests that the same membership gives the same owners
// regardless of the order ids were learned in
func TestRing_Property_Determinism(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 200; i++ {
		ids := randomMembership(rng)
		shuffled := append([]cluster.NodeID(nil), ids...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		r := NewRing()
		for _, id := range shuffled {
			r.AddNode(id)
		}

		for key := cluster.Key(0); key < 110; key += 7 {
			a := PreferenceList(ids, key, testN)
			b := r.PreferenceList(key, testN)
			if len(a) != len(b) {
				t.Fatalf("length mismatch for key %d: %v vs %v", key, a, b)
			}
			for j := range a {
				if a[j] != b[j] {
					t.Fatalf("determinism failed for key %d: %v vs %v", key, a, b)
				}
			}
		}
	}
}
