package node

import "dynamokv/internal/storage"

// Observer receives a node's log lines and store contents. Both methods are
// called on the node's goroutine and must not block.
type Observer interface {
	OnLogLine(line string)
	OnStoreChanged(snapshot storage.Snapshot)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) OnLogLine(string)                 {}
func (NopObserver) OnStoreChanged(storage.Snapshot) {}
