package node

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a node.
type State uint64

const (
	// Serving requests. Joining and recovering are flags on top of Normal.
	Normal State = iota
	// Ignoring everything except Recovery.
	Crashed
	// Handed off its data and stopped.
	Left
)

func (s State) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Crashed:
		return "CRASHED"
	case Left:
		return "LEFT"
	default:
		return "UNKNOWN"
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for _, st := range []State{Normal, Crashed, Left} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown node state %q", s)
}

func (s *State) Transition(expected State, new State) bool {
	return atomic.CompareAndSwapUint64((*uint64)(s), uint64(expected), uint64(new))
}

func (s *State) Get() State {
	return State(atomic.LoadUint64((*uint64)(s)))
}

func (s *State) Set(val State) {
	atomic.StoreUint64((*uint64)(s), uint64(val))
}
