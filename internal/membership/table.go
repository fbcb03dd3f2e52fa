package membership

import (
	"sync"

	"dynamokv/internal/cluster"
	"dynamokv/internal/message"
	"dynamokv/internal/ring"
)

// Table manages one node's membership view. Member ids are kept on a ring
// so they are always sorted.
type Table struct {
	mu      sync.RWMutex
	localID cluster.NodeID
	peers   map[cluster.NodeID]message.Peer
	ring    *ring.Ring

	onMembershipChanged func(ids []cluster.NodeID)
}

// NewTable creates an empty view for the given node.
func NewTable(localID cluster.NodeID) *Table {
	return &Table{
		localID: localID,
		peers:   make(map[cluster.NodeID]message.Peer),
		ring:    ring.NewRing(),
	}
}

// SetOnMembershipChanged sets a callback invoked with the sorted member ids
// after every change. It runs on the caller's goroutine.
func (t *Table) SetOnMembershipChanged(callback func([]cluster.NodeID)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMembershipChanged = callback
}

// Add inserts a member. Adding the local node or a known member is a no-op.
// Returns true if the view changed.
func (t *Table) Add(peer message.Peer) bool {
	t.mu.Lock()
	changed := t.addLocked(peer)
	t.mu.Unlock()

	if changed {
		t.notify()
	}
	return changed
}

// Remove drops a member. Returns true if it was known.
func (t *Table) Remove(id cluster.NodeID) bool {
	t.mu.Lock()
	_, exists := t.peers[id]
	delete(t.peers, id)
	t.ring.RemoveNode(id)
	t.mu.Unlock()

	if exists {
		t.notify()
	}
	return exists
}

// Replace discards the current view and installs peers instead. The local
// node is skipped if present.
func (t *Table) Replace(peers []message.Peer) {
	t.mu.Lock()
	t.peers = make(map[cluster.NodeID]message.Peer, len(peers))
	t.ring.SetNodes(nil)
	for _, p := range peers {
		t.addLocked(p)
	}
	t.mu.Unlock()

	t.notify()
}

// Peer returns the handle of a member.
func (t *Table) Peer(id cluster.NodeID) (message.Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[id]
	return p, ok
}

// IDs returns the member ids in ascending order.
func (t *Table) IDs() []cluster.NodeID {
	return t.ring.GetNodes()
}

// Peers returns the member handles ordered by id.
func (t *Table) Peers() []message.Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := t.ring.GetNodes()
	peers := make([]message.Peer, 0, len(ids))
	for _, id := range ids {
		peers = append(peers, t.peers[id])
	}
	return peers
}

// Len returns the number of known members.
func (t *Table) Len() int {
	return t.ring.Len()
}

// addLocked must be called with the lock held.
func (t *Table) addLocked(peer message.Peer) bool {
	if peer == nil || peer.ID() == t.localID {
		return false
	}
	if _, exists := t.peers[peer.ID()]; exists {
		return false
	}
	t.peers[peer.ID()] = peer
	t.ring.AddNode(peer.ID())
	return true
}

// notify invokes the callback if set.
func (t *Table) notify() {
	t.mu.RLock()
	cb := t.onMembershipChanged
	t.mu.RUnlock()

	if cb != nil {
		cb(t.ring.GetNodes())
	}
}
