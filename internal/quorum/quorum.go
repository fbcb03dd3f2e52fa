package quorum

import (
	"errors"
	"fmt"
	"time"

	"dynamokv/internal/cluster"
	"dynamokv/internal/repair"
	"dynamokv/internal/storage"
)

// ErrStaleResponse is returned when a response arrives for a request that
// was already resolved, timed out, or never existed.
var ErrStaleResponse = errors.New("stale response")

// Kind is the type of a pending request.
type Kind int

const (
	Get Kind = iota
	Update
	Join
)

func (k Kind) String() string {
	switch k {
	case Get:
		return "GET"
	case Update:
		return "UPDATE"
	case Join:
		return "JOIN"
	default:
		return "UNKNOWN"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{Get, Update, Join} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown request kind %q", s)
}

// RequestID identifies a request within one coordinator.
type RequestID uint64

// Request is a coordination in progress. C is whatever the coordinator
// needs to answer the requester.
type Request[C any] struct {
	ID        RequestID
	Kind      Kind
	Requester C
	Ticket    uint64
	Threshold int
	Values    []storage.VersionedValue
	Responded []cluster.NodeID

	// Key and Owners are set for GET and UPDATE.
	Key    cluster.Key
	Owners []cluster.NodeID

	// NewValue is the value proposed by an UPDATE.
	NewValue string

	CreatedAt time.Time
	reached   bool
}

// Reached reports whether the request has collected enough responses.
func (r *Request[C]) Reached() bool {
	return len(r.Values) >= r.Threshold
}

// Freshest returns the value with the greatest version collected so far.
func (r *Request[C]) Freshest() storage.VersionedValue {
	return repair.Freshest(r.Values)
}

// Reconcile compares the collected responses.
func (r *Request[C]) Reconcile() repair.ReconcileResult {
	return repair.Reconcile(r.Values)
}

// Lagging returns the nodes whose response is older than the freshest one.
func (r *Request[C]) Lagging() []cluster.NodeID {
	res := r.Reconcile()
	out := make([]cluster.NodeID, 0, len(res.Stale))
	for _, i := range res.Stale {
		out = append(out, r.Responded[i])
	}
	return out
}

// Tracker holds the pending requests of one node. It is owned by the node's
// actor loop and is not safe for concurrent use.
type Tracker[C any] struct {
	next    RequestID
	pending map[RequestID]*Request[C]
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker[C any]() *Tracker[C] {
	return &Tracker[C]{
		pending: make(map[RequestID]*Request[C]),
		now:     time.Now,
	}
}

// NewRequest registers a request and returns it. The threshold is clamped to
// at least one response.
func (t *Tracker[C]) NewRequest(kind Kind, requester C, threshold int) *Request[C] {
	if threshold < 1 {
		threshold = 1
	}
	t.next++
	req := &Request[C]{
		ID:        t.next,
		Kind:      kind,
		Requester: requester,
		Threshold: threshold,
		Values:    make([]storage.VersionedValue, 0, threshold),
		CreatedAt: t.now(),
	}
	t.pending[req.ID] = req
	return req
}

// Record adds a response to the request and reports whether the threshold
// has just been reached. A response for a missing or already completed
// request yields ErrStaleResponse.
func (t *Tracker[C]) Record(id RequestID, from cluster.NodeID, value storage.VersionedValue) (bool, error) {
	req, ok := t.pending[id]
	if !ok || req.reached {
		return false, fmt.Errorf("request %d from node %d: %w", id, from, ErrStaleResponse)
	}

	req.Values = append(req.Values, value)
	req.Responded = append(req.Responded, from)
	if req.Reached() {
		req.reached = true
		return true, nil
	}
	return false, nil
}

// Resolve removes the request and returns its freshest value.
func (t *Tracker[C]) Resolve(id RequestID) (*Request[C], storage.VersionedValue, bool) {
	req, ok := t.pending[id]
	if !ok {
		return nil, storage.Absent(), false
	}
	delete(t.pending, id)
	return req, req.Freshest(), true
}

// Get returns a pending request.
func (t *Tracker[C]) Get(id RequestID) (*Request[C], bool) {
	req, ok := t.pending[id]
	return req, ok
}

// Drop removes a request without resolving it. Used by the timeout path.
func (t *Tracker[C]) Drop(id RequestID) (*Request[C], bool) {
	req, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return req, ok
}

// Clear forgets every pending request and returns them.
func (t *Tracker[C]) Clear() []*Request[C] {
	out := make([]*Request[C], 0, len(t.pending))
	for id, req := range t.pending {
		out = append(out, req)
		delete(t.pending, id)
	}
	return out
}

// Len returns the number of pending requests.
func (t *Tracker[C]) Len() int {
	return len(t.pending)
}

// Threshold computes the responses a join needs: the configured quorum,
// bounded by the members that can actually answer. Reads and writes use
// R and W as they are.
func Threshold(quorum, replicas int) int {
	if replicas < quorum {
		quorum = replicas
	}
	if quorum < 1 {
		return 1
	}
	return quorum
}
