package node

import (
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dynamokv/internal/cluster"
	"dynamokv/internal/message"
	"dynamokv/internal/quorum"
	"dynamokv/internal/storage"
)

// onGet coordinates a client read. The read quorum is R even when fewer
// owners exist, so such a read can only time out.
func (n *Node) onGet(m message.Get) {
	owners := n.view().OwnersOf(m.Key, true)
	req := n.pending.NewRequest(quorum.Get, m.Client, n.r)
	req.Ticket = m.Ticket
	req.Key = m.Key
	req.Owners = owners

	n.event(zapcore.InfoLevel, "GET started",
		zap.Uint64("req", uint64(req.ID)),
		zap.Int("key", int(m.Key)),
		zap.Int("quorum", req.Threshold))

	n.startRequest(req)
}

// onUpdate coordinates a client write. The new version is decided once the
// write quorum has reported what it holds.
func (n *Node) onUpdate(m message.Update) {
	owners := n.view().OwnersOf(m.Key, true)
	req := n.pending.NewRequest(quorum.Update, m.Client, n.w)
	req.Ticket = m.Ticket
	req.Key = m.Key
	req.Owners = owners
	req.NewValue = m.Value

	n.event(zapcore.InfoLevel, "UPDATE started",
		zap.Uint64("req", uint64(req.ID)),
		zap.Int("key", int(m.Key)),
		zap.String("value", m.Value),
		zap.Int("quorum", req.Threshold))

	n.startRequest(req)
}

// startRequest credits the local copy, fans out replica reads and arms the
// request timeout.
func (n *Node) startRequest(req *quorum.Request[message.Requester]) {
	if cluster.ContainsID(req.Owners, n.id) {
		local := storage.Absent()
		if vv := n.store.Get(req.Key); vv != nil {
			local = *vv
		}
		if n.record(req.ID, n.id, local) {
			return
		}
	}

	n.multicast(message.GetItem{ReqID: req.ID, Key: req.Key, Coordinator: n}, req.Owners)
	n.after(n.timeout, message.RequestTimeout{ReqID: req.ID})
}

// onGetItemResponse collects a replica read.
func (n *Node) onGetItemResponse(m message.GetItemResponse) {
	n.record(m.ReqID, m.Sender, m.Value)
}

// record adds a response and completes the request once its quorum is
// reached. Returns true if the request completed.
func (n *Node) record(id quorum.RequestID, from cluster.NodeID, value storage.VersionedValue) bool {
	reached, err := n.pending.Record(id, from, value)
	if err != nil {
		if errors.Is(err, quorum.ErrStaleResponse) {
			n.event(zapcore.DebugLevel, "late response ignored",
				zap.Uint64("req", uint64(id)),
				zap.Int("from", int(from)))
			return false
		}
		n.logger.Error("record response", zap.Error(err))
		return false
	}
	if !reached {
		return false
	}

	req, freshest, ok := n.pending.Resolve(id)
	if !ok {
		return false
	}

	switch req.Kind {
	case quorum.Get:
		n.completeGet(req, freshest)
	case quorum.Update:
		n.completeUpdate(req, freshest)
	case quorum.Join:
		n.completeJoin()
	}
	return true
}

func (n *Node) completeGet(req *quorum.Request[message.Requester], freshest storage.VersionedValue) {
	res := req.Reconcile()
	if res.HasStale() {
		n.event(zapcore.DebugLevel, "replicas behind",
			zap.Uint64("req", uint64(req.ID)),
			zap.Int("key", int(req.Key)),
			zap.Any("nodes", req.Lagging()))
	}
	if res.IsNotFound() {
		n.event(zapcore.InfoLevel, "GET ok, key absent",
			zap.Uint64("req", uint64(req.ID)),
			zap.Int("key", int(req.Key)))
		n.reply(req, message.OK, &freshest)
		return
	}

	n.event(zapcore.InfoLevel, "GET ok",
		zap.Uint64("req", uint64(req.ID)),
		zap.Int("key", int(req.Key)),
		zap.String("value", freshest.String()))

	n.reply(req, message.OK, &freshest)
}

func (n *Node) completeUpdate(req *quorum.Request[message.Requester], freshest storage.VersionedValue) {
	written := storage.NewValue(req.NewValue, freshest.Version.Next())

	if cluster.ContainsID(req.Owners, n.id) {
		n.store.Put(req.Key, written)
	}
	n.multicast(message.UpdateItem{Key: req.Key, Value: written}, req.Owners)

	n.event(zapcore.InfoLevel, "UPDATE ok",
		zap.Uint64("req", uint64(req.ID)),
		zap.Int("key", int(req.Key)),
		zap.Int64("version", int64(written.Version)))

	n.reply(req, message.OK, &written)
}

// onRequestTimeout fails a request that did not reach its quorum in time.
// A request that already completed is gone and the timeout does nothing.
func (n *Node) onRequestTimeout(m message.RequestTimeout) {
	req, ok := n.pending.Drop(m.ReqID)
	if !ok {
		return
	}

	if req.Kind == quorum.Join {
		n.event(zapcore.WarnLevel, "join quorum not reached, continuing with collected items",
			zap.Int("responses", len(req.Values)),
			zap.Int("quorum", req.Threshold))
		n.completeJoin()
		return
	}

	n.event(zapcore.WarnLevel, req.Kind.String()+" timed out",
		zap.Uint64("req", uint64(req.ID)),
		zap.Int("key", int(req.Key)),
		zap.Int("responses", len(req.Values)),
		zap.Int("quorum", req.Threshold))

	n.reply(req, message.Error, nil)
}

func (n *Node) reply(req *quorum.Request[message.Requester], status message.Status, value *storage.VersionedValue) {
	fb := message.Feedback{
		RequestID: req.ID,
		Ticket:    req.Ticket,
		Node:      n.id,
		Kind:      req.Kind,
		Status:    status,
		Value:     value,
	}
	n.observer.OnLogLine(fb.String())
	if req.Requester != nil {
		req.Requester.Deliver(fb)
	}
}
