// Package replication decides which node should hold which key when the
// membership changes. Every function here is pure: it takes a view of the
// members and a set of keys and returns the transfers or evictions the
// membership protocol must perform.
package replication
