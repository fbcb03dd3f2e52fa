package quorum

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynamokv/internal/cluster"
	"dynamokv/internal/storage"
)

type client struct{ name string }

func TestTracker_ReachesThreshold(t *testing.T) {
	tr := NewTracker[*client]()
	req := tr.NewRequest(Get, &client{"c1"}, 2)

	reached, err := tr.Record(req.ID, 10, storage.NewValue("a", 1))
	require.NoError(t, err)
	assert.False(t, reached)

	reached, err = tr.Record(req.ID, 20, storage.NewValue("b", 2))
	require.NoError(t, err)
	assert.True(t, reached)

	got, value, ok := tr.Resolve(req.ID)
	require.True(t, ok)
	assert.Equal(t, "c1", got.Requester.name)
	assert.Equal(t, "b (v2)", value.String())
	assert.Equal(t, 0, tr.Len())
}

func TestRequest_Lagging(t *testing.T) {
	tr := NewTracker[*client]()
	req := tr.NewRequest(Get, nil, 3)

	_, err := tr.Record(req.ID, 10, storage.NewValue("a", 1))
	require.NoError(t, err)
	_, err = tr.Record(req.ID, 20, storage.NewValue("b", 3))
	require.NoError(t, err)
	_, err = tr.Record(req.ID, 30, storage.Absent())
	require.NoError(t, err)

	res := req.Reconcile()
	assert.True(t, res.HasStale())
	assert.False(t, res.IsNotFound())
	assert.Equal(t, []cluster.NodeID{10, 30}, req.Lagging())
}

func TestTracker_LateResponseIsStale(t *testing.T) {
	tr := NewTracker[*client]()
	req := tr.NewRequest(Update, nil, 1)

	reached, err := tr.Record(req.ID, 10, storage.Absent())
	require.NoError(t, err)
	require.True(t, reached)

	// Arrives before the coordinator resolved.
	_, err = tr.Record(req.ID, 20, storage.NewValue("x", 0))
	assert.True(t, errors.Is(err, ErrStaleResponse))

	tr.Resolve(req.ID)

	// Arrives after.
	_, err = tr.Record(req.ID, 30, storage.NewValue("x", 0))
	assert.True(t, errors.Is(err, ErrStaleResponse))
}

func TestTracker_UnknownRequest(t *testing.T) {
	tr := NewTracker[*client]()
	_, err := tr.Record(42, 10, storage.Absent())
	assert.ErrorIs(t, err, ErrStaleResponse)

	_, _, ok := tr.Resolve(42)
	assert.False(t, ok)
}

func TestTracker_DropThenTimeoutIsNoop(t *testing.T) {
	tr := NewTracker[*client]()
	req := tr.NewRequest(Get, nil, 3)

	dropped, ok := tr.Drop(req.ID)
	require.True(t, ok)
	assert.Equal(t, req, dropped)

	_, ok = tr.Drop(req.ID)
	assert.False(t, ok, "second drop must find nothing")
}

func TestTracker_IDsAreUnique(t *testing.T) {
	tr := NewTracker[*client]()
	seen := make(map[RequestID]bool)
	for i := 0; i < 100; i++ {
		req := tr.NewRequest(Join, nil, 1)
		require.False(t, seen[req.ID])
		seen[req.ID] = true
	}
	assert.Equal(t, 100, tr.Len())
	assert.Len(t, tr.Clear(), 100)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_ThresholdClamped(t *testing.T) {
	tr := NewTracker[*client]()
	req := tr.NewRequest(Get, nil, 0)
	assert.Equal(t, 1, req.Threshold)
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		quorum, replicas, expected int
	}{
		{2, 3, 2},
		{2, 1, 1},
		{3, 3, 3},
		{2, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Threshold(tt.quorum, tt.replicas), "quorum=%d replicas=%d", tt.quorum, tt.replicas)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "GET", Get.String())
	assert.Equal(t, "UPDATE", Update.String())
	assert.Equal(t, "JOIN", Join.String())
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Get, Update, Join} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("DELETE")
	assert.Error(t, err)
}
