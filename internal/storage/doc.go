// Package storage provides the per-node key-value store. Each value carries
// the scalar version assigned by the coordinator that wrote it, and every
// mutation reports the new store contents to an optional change hook so a
// console can follow the node without polling.
package storage
