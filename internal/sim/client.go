package sim

import (
	"context"
	"sync"
	"time"

	"dynamokv/internal/message"
	"dynamokv/internal/quorum"
)

// FeedbackFunc observes every feedback a client receives, including the
// ones it synthesizes after giving up.
type FeedbackFunc func(client int, fb message.Feedback)

type call struct {
	kind quorum.Kind
	ch   chan message.Feedback
}

// Client is an external client handle. Feedback is matched to calls by
// ticket.
type Client struct {
	id     int
	wait   time.Duration
	notify FeedbackFunc

	mu      sync.Mutex
	calls   map[uint64]*call
	history []message.Feedback
}

var _ message.Requester = (*Client)(nil)

func newClient(id int, wait time.Duration, notify FeedbackFunc) *Client {
	return &Client{
		id:     id,
		wait:   wait,
		notify: notify,
		calls:  make(map[uint64]*call),
	}
}

// ID returns the client id.
func (c *Client) ID() int {
	return c.id
}

// Deliver implements message.Requester. It never blocks.
func (c *Client) Deliver(fb message.Feedback) {
	c.mu.Lock()
	cl := c.calls[fb.Ticket]
	delete(c.calls, fb.Ticket)
	c.history = append(c.history, fb)
	c.mu.Unlock()

	if c.notify != nil {
		c.notify(c.id, fb)
	}
	if cl != nil {
		cl.ch <- fb
	}
}

// History returns every feedback received so far.
func (c *Client) History() []message.Feedback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message.Feedback(nil), c.history...)
}

// expect registers a call before it is sent.
func (c *Client) expect(ticket uint64, kind quorum.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[ticket] = &call{kind: kind, ch: make(chan message.Feedback, 1)}
}

func (c *Client) forget(ticket uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.calls, ticket)
}

// Await waits for the feedback of a call. A coordinator that stays silent
// past the client's wait time yields a synthesized ERROR with TimedOut set.
func (c *Client) Await(ctx context.Context, ticket uint64) (message.Feedback, error) {
	c.mu.Lock()
	cl, ok := c.calls[ticket]
	c.mu.Unlock()
	if !ok {
		// Already delivered.
		for _, fb := range c.History() {
			if fb.Ticket == ticket {
				return fb, nil
			}
		}
		return message.Feedback{}, ErrUnknownTicket
	}

	timer := time.NewTimer(c.wait)
	defer timer.Stop()

	select {
	case fb := <-cl.ch:
		return fb, nil
	case <-timer.C:
	case <-ctx.Done():
		c.forget(ticket)
		return message.Feedback{}, ctx.Err()
	}

	c.mu.Lock()
	_, still := c.calls[ticket]
	delete(c.calls, ticket)
	c.mu.Unlock()
	if !still {
		// Delivered while the timer fired.
		return <-cl.ch, nil
	}

	fb := message.Feedback{
		Ticket:   ticket,
		Kind:     cl.kind,
		Status:   message.Error,
		TimedOut: true,
	}
	c.mu.Lock()
	c.history = append(c.history, fb)
	c.mu.Unlock()
	if c.notify != nil {
		c.notify(c.id, fb)
	}
	return fb, nil
}
