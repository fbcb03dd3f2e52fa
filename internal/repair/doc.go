// Package repair reconciles the replica values collected for a key. With a
// scalar version there are no siblings: the freshest value wins, and the
// replicas that returned anything older are reported as stale.
package repair
