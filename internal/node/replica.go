package node

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dynamokv/internal/message"
	"dynamokv/internal/storage"
)

// onGetItem answers a coordinator's replica read. The value is read now and
// sent after the node's response delay.
func (n *Node) onGetItem(m message.GetItem) {
	value := storage.Absent()
	if vv := n.store.Get(m.Key); vv != nil {
		value = *vv
	}

	n.event(zapcore.DebugLevel, "replica read",
		zap.Uint64("req", uint64(m.ReqID)),
		zap.Int("key", int(m.Key)),
		zap.Int64("version", int64(value.Version)))

	n.sendLater(n.delay.Load(), m.Coordinator, message.GetItemResponse{
		ReqID:  m.ReqID,
		Sender: n.id,
		Value:  value,
	})
}

// onUpdateItem overwrites the local copy with the coordinator's decision.
func (n *Node) onUpdateItem(m message.UpdateItem) {
	n.store.Put(m.Key, m.Value)

	n.event(zapcore.InfoLevel, "replica write",
		zap.Int("key", int(m.Key)),
		zap.String("value", m.Value.String()))
}
