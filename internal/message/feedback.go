package message

import (
	"fmt"

	"dynamokv/internal/cluster"
	"dynamokv/internal/quorum"
	"dynamokv/internal/storage"
)

// Status is the outcome reported to a client.
type Status int

const (
	OK Status = iota
	Error
)

func (s Status) String() string {
	if s == OK {
		return "OK"
	}
	return "ERROR"
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "OK":
		return OK, nil
	case "ERROR":
		return Error, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Feedback is the answer to a client Get or Update.
type Feedback struct {
	RequestID quorum.RequestID
	Ticket    uint64
	Node      cluster.NodeID
	Kind      quorum.Kind
	Status    Status
	// Value is nil when the request failed.
	Value *storage.VersionedValue
	// TimedOut is set when the coordinator never answered at all and the
	// client gave up waiting.
	TimedOut bool
}

// Succeeded reports whether the request succeeded.
func (f Feedback) Succeeded() bool {
	return f.Status == OK
}

// String renders the feedback as "FEEDBACK: GET #3 [OK] | x (v2)".
func (f Feedback) String() string {
	s := fmt.Sprintf("FEEDBACK: %s #%d [%s]", f.Kind, f.RequestID, f.Status)
	if f.Value != nil {
		s += " | " + f.Value.String()
	}
	return s
}
