// Package cluster holds the identifiers shared by every layer of the
// simulation: node ids, which are also ring coordinates, and integer keys.
package cluster
