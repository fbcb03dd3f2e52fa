// Package quorum tracks the coordination requests a node has in flight.
// A request counts arriving responses until its threshold is reached, then
// the freshest collected value decides the outcome.
package quorum
