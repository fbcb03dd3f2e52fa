package node

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dynamokv/internal/cluster"
	"dynamokv/internal/message"
	"dynamokv/internal/quorum"
	"dynamokv/internal/repair"
	"dynamokv/internal/storage"
)

// onJoin starts the join protocol through the bootstrap peer. Without a peer
// the node is the first member and is ready right away.
func (n *Node) onJoin(m message.Join) {
	if m.Peer == nil {
		n.logf("Started as the first node")
		n.hook(n.opts.OnJoined)
		return
	}

	n.joining.Store(true)
	n.logf("Joining through node %d", m.Peer.ID())
	m.Peer.Send(message.GetNodes{Requester: n})
}

// onRecovery brings a crashed node back and rejoins through the peer.
func (n *Node) onRecovery(m message.Recovery) {
	if !n.state.Transition(Crashed, Normal) {
		return
	}
	n.recovering.Store(true)

	if m.Peer == nil {
		n.logf("Recovering with no peer available")
		n.completeJoin()
		return
	}

	n.logf("Recovering through node %d", m.Peer.ID())
	m.Peer.Send(message.GetNodes{Requester: n})
}

func (n *Node) onGetNodes(m message.GetNodes) {
	m.Requester.Send(message.GetNodesResponse{
		Sender:  n,
		Members: n.table.Peers(),
	})
}

// onGetNodesResponse installs the received view and pulls the items the
// node is responsible for from the nodes that hold them.
func (n *Node) onGetNodesResponse(m message.GetNodesResponse) {
	peers := append(append([]message.Peer{}, m.Members...), m.Sender)
	n.table.Replace(peers)
	n.logf("Received membership from node %d: %v", m.Sender.ID(), n.table.IDs())

	view := n.view()
	if n.recovering.Load() {
		if evicted := view.Evictions(n.store.Keys()); len(evicted) > 0 {
			n.store.DeleteAll(evicted)
			n.event(zapcore.InfoLevel, "discarded keys no longer owned", zap.Any("keys", evicted))
		}
	}

	donors := view.OwnersOf(cluster.Key(n.id), false)
	if len(donors) == 0 {
		n.completeJoin()
		return
	}

	req := n.pending.NewRequest(quorum.Join, nil, quorum.Threshold(n.r, n.table.Len()))
	req.Owners = donors
	n.event(zapcore.InfoLevel, "requesting items",
		zap.Uint64("req", uint64(req.ID)),
		zap.Any("donors", donors),
		zap.Int("quorum", req.Threshold))

	n.multicast(message.GetItems{ReqID: req.ID, Requester: n}, donors)
	n.after(n.timeout, message.RequestTimeout{ReqID: req.ID})
}

// onGetItems hands a joining node the items it will hold.
func (n *Node) onGetItems(m message.GetItems) {
	keys := n.view().Claims(m.Requester.ID(), n.store.Keys())

	items := make(message.Items, len(keys))
	for _, k := range keys {
		if vv := n.store.Get(k); vv != nil {
			items[k] = *vv
		}
	}

	n.event(zapcore.InfoLevel, "sending items",
		zap.Int("to", int(m.Requester.ID())),
		zap.Int("items", len(items)))

	m.Requester.Send(message.GetItemsResponse{ReqID: m.ReqID, Sender: n.id, Items: items})
}

// onGetItemsResponse merges every donor's items, including the ones that
// arrive after the join quorum was reached. Only quorum counting stops.
func (n *Node) onGetItemsResponse(m message.GetItemsResponse) {
	n.merge(m.Sender, m.Items)

	if _, ok := n.pending.Get(m.ReqID); !ok {
		n.event(zapcore.DebugLevel, "late items merged",
			zap.Uint64("req", uint64(m.ReqID)),
			zap.Int("from", int(m.Sender)))
		return
	}
	n.record(m.ReqID, m.Sender, storage.Absent())
}

// completeJoin ends a join or a recovery and announces the node.
func (n *Node) completeJoin() {
	recovered := n.recovering.Swap(false)
	n.joining.Store(false)

	n.broadcast(message.Hello{Sender: n})

	if recovered {
		n.logf("Recovered, %d keys stored", n.store.Len())
		n.hook(n.opts.OnRecovered)
		return
	}
	n.logf("Joined, %d keys stored", n.store.Len())
	n.hook(n.opts.OnJoined)
}

// onHello adds the sender and drops the keys it took over.
func (n *Node) onHello(m message.Hello) {
	n.table.Add(m.Sender)
	n.logf("Hello from node %d", m.Sender.ID())

	if n.recovering.Load() {
		return
	}
	if evicted := n.view().Evictions(n.store.Keys()); len(evicted) > 0 {
		n.store.DeleteAll(evicted)
		n.event(zapcore.InfoLevel, "evicted keys", zap.Any("keys", evicted))
	}
}

// onGoodbye removes a leaving node and takes over its items.
func (n *Node) onGoodbye(m message.Goodbye) {
	n.table.Remove(m.Sender)
	n.logf("Goodbye from node %d", m.Sender)

	if len(m.Items) > 0 {
		n.merge(m.Sender, m.Items)
	}
}

// onLeave hands every key to the nodes that become its owners, tells every
// other member, then stops.
func (n *Node) onLeave() {
	plan := n.view().LeavePlan(n.store.Keys())

	for _, peer := range n.table.Peers() {
		items := make(message.Items)
		for _, k := range plan[peer.ID()] {
			if vv := n.store.Get(k); vv != nil {
				items[k] = *vv
			}
		}
		peer.Send(message.Goodbye{Sender: n.id, Items: items})
	}

	for _, req := range n.pending.Clear() {
		if req.Kind != quorum.Join {
			n.reply(req, message.Error, nil)
		}
	}

	n.state.Set(Left)
	n.logf("Left the cluster")
	n.hook(n.opts.OnLeft)
	n.shutdown()
}

// onCrash stops serving. Data and membership are kept; requests in flight
// are forgotten.
func (n *Node) onCrash() {
	n.state.Set(Crashed)
	dropped := n.pending.Clear()
	n.joining.Store(false)
	n.recovering.Store(false)

	n.event(zapcore.WarnLevel, "crashed", zap.Int("dropped", len(dropped)))
}

// merge applies received items that are newer than the local copies.
func (n *Node) merge(from cluster.NodeID, items message.Items) {
	fresh := repair.Newer(items, n.store.Get)
	applied := n.store.MergeAll(fresh)

	n.event(zapcore.InfoLevel, "merged items",
		zap.Int("from", int(from)),
		zap.Any("keys", items.Keys()),
		zap.Int("applied", applied))
}

func (n *Node) hook(fn func(cluster.NodeID)) {
	if fn != nil {
		fn(n.id)
	}
}
