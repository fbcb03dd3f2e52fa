package repair

import (
	"dynamokv/internal/cluster"
	"dynamokv/internal/storage"
)

// ReconcileResult represents the result of reconciling replica responses.
type ReconcileResult struct {
	// Winner is the value with the strictly greatest version. The first one
	// seen wins a tie.
	Winner storage.VersionedValue

	// WinnerIndex is the position of Winner in the input, -1 if empty.
	WinnerIndex int

	// Stale lists the indices of responses older than the winner.
	Stale []int
}

// Reconcile selects the freshest of the collected values.
func Reconcile(values []storage.VersionedValue) ReconcileResult {
	if len(values) == 0 {
		return ReconcileResult{
			Winner:      storage.Absent(),
			WinnerIndex: -1,
		}
	}

	winner := 0
	for i := 1; i < len(values); i++ {
		if values[i].Version.Dominates(values[winner].Version) {
			winner = i
		}
	}

	stale := make([]int, 0)
	for i, v := range values {
		if values[winner].Version.Dominates(v.Version) {
			stale = append(stale, i)
		}
	}

	return ReconcileResult{
		Winner:      values[winner],
		WinnerIndex: winner,
		Stale:       stale,
	}
}

// Freshest returns the value with the greatest version, first seen on ties.
// An empty input yields the absent sentinel.
func Freshest(values []storage.VersionedValue) storage.VersionedValue {
	return Reconcile(values).Winner
}

// IsNotFound returns true if no replica holds a value.
func (r *ReconcileResult) IsNotFound() bool {
	return r.WinnerIndex < 0 || r.Winner.IsAbsent()
}

// HasStale returns true if at least one replica lags behind the winner.
func (r *ReconcileResult) HasStale() bool {
	return len(r.Stale) > 0
}

// Newer filters items down to those that would replace the local copy
// according to the version rule. local may be nil for an empty store.
func Newer(items map[cluster.Key]storage.VersionedValue, local func(cluster.Key) *storage.VersionedValue) map[cluster.Key]storage.VersionedValue {
	out := make(map[cluster.Key]storage.VersionedValue)
	for key, vv := range items {
		var current *storage.VersionedValue
		if local != nil {
			current = local(key)
		}
		if vv.NewerThan(current) {
			out[key] = vv
		}
	}
	return out
}
