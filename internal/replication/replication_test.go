package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dynamokv/internal/cluster"
)

func TestView_OwnersOf(t *testing.T) {
	v := View{Self: 20, Members: []cluster.NodeID{10, 30, 40}, N: 3}

	tests := []struct {
		name        string
		key         cluster.Key
		includeSelf bool
		expected    []cluster.NodeID
	}{
		{"with self", 15, true, []cluster.NodeID{20, 30, 40}},
		{"without self", 15, false, []cluster.NodeID{30, 40, 10}},
		{"wraparound", 45, true, []cluster.NodeID{10, 20, 30}},
		{"exact id goes to successor", 20, true, []cluster.NodeID{30, 40, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, v.OwnersOf(tt.key, tt.includeSelf))
		})
	}
}

func TestView_OwnersOfIgnoresSelfInMembers(t *testing.T) {
	v := View{Self: 10, Members: []cluster.NodeID{10, 20}, N: 3}
	assert.Equal(t, []cluster.NodeID{20}, v.OwnersOf(5, false))
}

func TestView_DefaultFactor(t *testing.T) {
	v := View{Self: 1, Members: []cluster.NodeID{2, 3, 4, 5}}
	assert.Len(t, v.OwnersOf(0, true), DefaultReplicationFactor)
}

func TestView_Evictions(t *testing.T) {
	// Node 10 in {10,20,30,40} with N=2: key 15 is owned by 20,30.
	v := View{Self: 10, Members: []cluster.NodeID{20, 30, 40}, N: 2}
	evicted := v.Evictions([]cluster.Key{5, 15, 35, 45})

	assert.Equal(t, []cluster.Key{15}, evicted)
}

func TestView_LeavePlan(t *testing.T) {
	// {10,20,30,40}, key 15 owned by 20,30,40; once 20 leaves it is 30,40,10.
	v := View{Self: 20, Members: []cluster.NodeID{10, 30, 40}, N: 3}
	plan := v.LeavePlan([]cluster.Key{15})

	assert.Equal(t, map[cluster.NodeID][]cluster.Key{10: {15}}, plan)
}

func TestView_LeavePlanSmallCluster(t *testing.T) {
	// Everyone already holds everything: nothing to hand over.
	v := View{Self: 20, Members: []cluster.NodeID{10, 30}, N: 3}
	assert.Empty(t, v.LeavePlan([]cluster.Key{5, 15, 25}))
}

func TestView_Claims(t *testing.T) {
	// Donor 30 in {10,20,30}, key 25 stored everywhere. Joiner 25 must
	// receive key 25 even though the ring puts it on 30,10,20.
	v := View{Self: 30, Members: []cluster.NodeID{10, 20}, N: 3}
	claims := v.Claims(25, []cluster.Key{25})

	assert.Equal(t, []cluster.Key{25}, claims)
}

func TestView_ClaimsByPreferenceList(t *testing.T) {
	// N=2 over {10,15,20,30,40}: 15 is second owner of 5 and first of 12.
	v := View{Self: 20, Members: []cluster.NodeID{10, 30, 40}, N: 2}
	claims := v.Claims(15, []cluster.Key{5, 12, 18, 35})

	assert.ElementsMatch(t, []cluster.Key{5, 12}, claims)
}
