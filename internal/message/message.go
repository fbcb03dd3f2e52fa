package message

import (
	"dynamokv/internal/cluster"
	"dynamokv/internal/quorum"
	"dynamokv/internal/storage"
)

// Message is anything that can be put in a node's mailbox.
type Message interface {
	// Name is the message type, used in logs.
	Name() string
}

// Peer addresses a node. It is only used to deliver messages.
type Peer interface {
	ID() cluster.NodeID
	Send(msg Message)
}

// Requester is the handle of an external client. It only receives Feedback.
type Requester interface {
	Deliver(fb Feedback)
}

// Items is a batch of stored values keyed by key.
type Items map[cluster.Key]storage.VersionedValue

// Keys returns the batch's keys in ascending order.
func (it Items) Keys() []cluster.Key {
	keys := make([]cluster.Key, 0, len(it))
	for k := range it {
		keys = append(keys, k)
	}
	return cluster.SortKeys(keys)
}

// Client commands.

// Get asks the receiving node to coordinate a read.
type Get struct {
	Client Requester
	Ticket uint64
	Key    cluster.Key
}

// Update asks the receiving node to coordinate a write.
type Update struct {
	Client Requester
	Ticket uint64
	Key    cluster.Key
	Value  string
}

// Leave asks the node to hand off its data and leave the cluster.
type Leave struct{}

// Crash puts the node in the crashed state.
type Crash struct{}

// Recovery brings a crashed node back using Peer to refresh its view.
type Recovery struct {
	Peer Peer
}

// Join asks a fresh node to enter the cluster through Peer. A nil Peer
// makes it the first member.
type Join struct {
	Peer Peer
}

// Node to node.

// GetNodes requests the receiver's membership table.
type GetNodes struct {
	Requester Peer
}

// GetNodesResponse carries the sender's membership table.
type GetNodesResponse struct {
	Sender  Peer
	Members []Peer
}

// GetItems requests the items the requester should hold.
type GetItems struct {
	ReqID     quorum.RequestID
	Requester Peer
}

// GetItemsResponse carries the items a donor hands to a joiner.
type GetItemsResponse struct {
	ReqID  quorum.RequestID
	Sender cluster.NodeID
	Items  Items
}

// Hello announces a node that completed its join.
type Hello struct {
	Sender Peer
}

// Goodbye announces a leaving node with the items the receiver takes over.
type Goodbye struct {
	Sender cluster.NodeID
	Items  Items
}

// GetItem is a replica read issued by a coordinator.
type GetItem struct {
	ReqID       quorum.RequestID
	Key         cluster.Key
	Coordinator Peer
}

// GetItemResponse answers a GetItem. Value is absent if the replica does not
// hold the key.
type GetItemResponse struct {
	ReqID  quorum.RequestID
	Sender cluster.NodeID
	Value  storage.VersionedValue
}

// UpdateItem overwrites a replica's value.
type UpdateItem struct {
	Key   cluster.Key
	Value storage.VersionedValue
}

// Self-addressed.

// RequestTimeout fires when a pending request has run out of time.
type RequestTimeout struct {
	ReqID quorum.RequestID
}

func (Get) Name() string              { return "Get" }
func (Update) Name() string           { return "Update" }
func (Leave) Name() string            { return "Leave" }
func (Crash) Name() string            { return "Crash" }
func (Recovery) Name() string         { return "Recovery" }
func (Join) Name() string             { return "Join" }
func (GetNodes) Name() string         { return "GetNodes" }
func (GetNodesResponse) Name() string { return "GetNodesResponse" }
func (GetItems) Name() string         { return "GetItems" }
func (GetItemsResponse) Name() string { return "GetItemsResponse" }
func (Hello) Name() string            { return "Hello" }
func (Goodbye) Name() string          { return "Goodbye" }
func (GetItem) Name() string          { return "GetItem" }
func (GetItemResponse) Name() string  { return "GetItemResponse" }
func (UpdateItem) Name() string       { return "UpdateItem" }
func (RequestTimeout) Name() string   { return "RequestTimeout" }
