// Package message defines everything nodes and clients exchange: client
// commands and their Feedback, the node-to-node replication and membership
// protocol, and the handles used to address either side.
package message
