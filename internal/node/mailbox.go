package node

import (
	"sync"

	"dynamokv/internal/message"
)

// mailbox is an unbounded FIFO queue. push never blocks, so two nodes
// sending to each other cannot deadlock.
type mailbox struct {
	mu     sync.Mutex
	queue  []message.Message
	notify chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{
		notify: make(chan struct{}, 1),
	}
}

// push enqueues msg. Returns false once the mailbox is closed.
func (m *mailbox) push(msg message.Message) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// drain takes every queued message.
func (m *mailbox) drain() []message.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.queue = nil
}
