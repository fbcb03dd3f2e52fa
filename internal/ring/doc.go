// Package ring resolves key ownership. Node ids are used directly as ring
// coordinates: a key belongs to the first id strictly greater than it,
// wrapping to the smallest id, followed by the next distinct ids clockwise
// until the replication factor is reached.
package ring
