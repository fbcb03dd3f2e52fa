// Package node implements a storage node: a sequential actor that owns a
// membership view, a key-value store and the requests it coordinates.
//
// All protocol state is touched only by the node's own goroutine. Other
// goroutines interact with a node by sending it messages, which never block.
package node
