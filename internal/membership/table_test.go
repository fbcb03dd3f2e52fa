package membership

import (
	"testing"

	"dynamokv/internal/cluster"
	"dynamokv/internal/message"
)

type fakePeer struct {
	id   cluster.NodeID
	sent []message.Message
}

func (p *fakePeer) ID() cluster.NodeID       { return p.id }
func (p *fakePeer) Send(msg message.Message) { p.sent = append(p.sent, msg) }

func peers(ids ...cluster.NodeID) []message.Peer {
	out := make([]message.Peer, 0, len(ids))
	for _, id := range ids {
		out = append(out, &fakePeer{id: id})
	}
	return out
}

func TestTable_NeverListsSelf(t *testing.T) {
	tbl := NewTable(20)

	if tbl.Add(&fakePeer{id: 20}) {
		t.Error("Adding self should be a no-op")
	}

	tbl.Replace(peers(10, 20, 30))
	if _, ok := tbl.Peer(20); ok {
		t.Error("Replace must drop the local node")
	}
	if tbl.Len() != 2 {
		t.Errorf("Expected 2 members, got %d", tbl.Len())
	}
}

func TestTable_AddRemove(t *testing.T) {
	tbl := NewTable(1)

	if !tbl.Add(&fakePeer{id: 5}) {
		t.Error("Expected add to change the view")
	}
	if tbl.Add(&fakePeer{id: 5}) {
		t.Error("Second add of the same member should be a no-op")
	}
	if !tbl.Remove(5) {
		t.Error("Expected remove to find the member")
	}
	if tbl.Remove(5) {
		t.Error("Second remove should find nothing")
	}
}

func TestTable_IDsSorted(t *testing.T) {
	tbl := NewTable(0)
	tbl.Replace(peers(40, 10, 30))

	ids := tbl.IDs()
	expected := []cluster.NodeID{10, 30, 40}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Fatalf("Expected %v, got %v", expected, ids)
		}
	}

	ps := tbl.Peers()
	if ps[0].ID() != 10 || ps[2].ID() != 40 {
		t.Errorf("Peers not ordered by id: %v", ps)
	}

	tbl.Replace(peers(20))
	if ids := tbl.IDs(); len(ids) != 1 || ids[0] != 20 {
		t.Errorf("Replace should discard the previous view, got %v", ids)
	}
}

func TestTable_PeerLookup(t *testing.T) {
	tbl := NewTable(0)
	tbl.Replace(peers(10))

	p, ok := tbl.Peer(10)
	if !ok || p.ID() != 10 {
		t.Errorf("Expected to find peer 10, got %v %v", p, ok)
	}
	if _, ok := tbl.Peer(99); ok {
		t.Error("Unknown peer should not be found")
	}
}

func TestTable_OnMembershipChanged(t *testing.T) {
	tbl := NewTable(0)

	var calls [][]cluster.NodeID
	tbl.SetOnMembershipChanged(func(ids []cluster.NodeID) {
		calls = append(calls, ids)
	})

	tbl.Add(&fakePeer{id: 10})
	tbl.Add(&fakePeer{id: 10}) // no change, no call
	tbl.Add(&fakePeer{id: 20})
	tbl.Remove(10)

	if len(calls) != 3 {
		t.Fatalf("Expected 3 notifications, got %d", len(calls))
	}
	last := calls[2]
	if len(last) != 1 || last[0] != 20 {
		t.Errorf("Expected final view [20], got %v", last)
	}
}
