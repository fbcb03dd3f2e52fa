// Package membership holds a node's local view of the cluster: the other
// members it knows about and the handles used to reach them.
//
// The view converges through the join, hello and goodbye exchanges of the
// node protocol. A node never lists itself.
package membership
