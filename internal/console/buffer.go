package console

import (
	"fmt"
	"sync"
	"time"

	"dynamokv/internal/cluster"
)

// LogEntry is one line reported by a node.
type LogEntry struct {
	Seq       uint64
	Timestamp time.Time
	NodeID    cluster.NodeID
	Message   string
}

// LogBuffer keeps the last lines reported by the nodes in a fixed ring.
// Older lines are overwritten once it is full.
type LogBuffer struct {
	mu    sync.RWMutex
	ring  []LogEntry
	start int
	count int
	seq   uint64
	now   func() time.Time
}

// NewLogBuffer creates a buffer holding up to size lines.
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = 1
	}
	return &LogBuffer{
		ring: make([]LogEntry, size),
		now:  time.Now,
	}
}

// Add records a line and returns the stored entry.
func (lb *LogBuffer) Add(id cluster.NodeID, line string) LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.seq++
	entry := LogEntry{Seq: lb.seq, Timestamp: lb.now(), NodeID: id, Message: line}

	pos := (lb.start + lb.count) % len(lb.ring)
	lb.ring[pos] = entry
	if lb.count < len(lb.ring) {
		lb.count++
	} else {
		lb.start = (lb.start + 1) % len(lb.ring)
	}
	return entry
}

// Recent returns up to n of the newest lines, oldest first. A
// non-positive n returns every buffered line.
func (lb *LogBuffer) Recent(n int) []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if n <= 0 || n > lb.count {
		n = lb.count
	}
	out := make([]LogEntry, 0, n)
	for i := lb.count - n; i < lb.count; i++ {
		out = append(out, lb.ring[(lb.start+i)%len(lb.ring)])
	}
	return out
}

// ForNode returns the buffered lines of one node, oldest first.
func (lb *LogBuffer) ForNode(id cluster.NodeID) []LogEntry {
	out := make([]LogEntry, 0)
	for _, e := range lb.Recent(0) {
		if e.NodeID == id {
			out = append(out, e)
		}
	}
	return out
}

// FormatLogEntry renders an entry as "hh:mm:ss.cc: [Node_id] line".
func FormatLogEntry(entry LogEntry) string {
	return fmt.Sprintf("%s: [Node_%d] %s",
		entry.Timestamp.Format("15:04:05.00"),
		entry.NodeID,
		entry.Message,
	)
}
