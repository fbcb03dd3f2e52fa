package sim

import "errors"

var (
	// ErrInvalidNodeID is returned for a negative node id.
	ErrInvalidNodeID = errors.New("invalid node id")
	// ErrDuplicateNodeID is returned when the id is already a member.
	ErrDuplicateNodeID = errors.New("duplicate node id")
	// ErrNoAvailablePeer is returned when no running member can serve as
	// bootstrap or recovery peer.
	ErrNoAvailablePeer = errors.New("no available peer")
	// ErrUnknownNode is returned for a node that does not exist.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNodeCrashed is returned when a crashed node is asked to leave.
	ErrNodeCrashed = errors.New("node is crashed")
	// ErrNodeNotCrashed is returned when a running node is asked to recover.
	ErrNodeNotCrashed = errors.New("node is not crashed")
)

// ErrUnknownTicket is returned when awaiting a call the client never made.
var ErrUnknownTicket = errors.New("unknown ticket")
