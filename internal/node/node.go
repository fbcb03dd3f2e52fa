package node

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dynamokv/internal/cluster"
	"dynamokv/internal/membership"
	"dynamokv/internal/message"
	"dynamokv/internal/quorum"
	"dynamokv/internal/replication"
	"dynamokv/internal/storage"
)

// Options configures a node.
type Options struct {
	ID cluster.NodeID

	// N is the replication factor, R and W the read and write quorums.
	N, R, W int

	// Timeout bounds every coordinated request.
	Timeout time.Duration
	// ResponseDelay is applied before answering a replica read.
	ResponseDelay time.Duration

	Logger   *zap.Logger
	Observer Observer

	// Lifecycle hooks, called on the node's goroutine.
	OnJoined    func(cluster.NodeID)
	OnRecovered func(cluster.NodeID)
	OnLeft      func(cluster.NodeID)
}

// Node represents a single node of the cluster.
type Node struct {
	id       cluster.NodeID
	n, r, w  int
	timeout  time.Duration
	delay    *atomic.Duration
	logger   *zap.Logger
	observer Observer
	opts     Options

	state      State
	joining    *atomic.Bool
	recovering *atomic.Bool
	inflight   *atomic.Int64

	store   storage.Store
	table   *membership.Table
	pending *quorum.Tracker[message.Requester]

	mailbox  *mailbox
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup

	timersMu sync.Mutex
	timers   map[uint64]*time.Timer
	timerSeq uint64
}

var _ message.Peer = (*Node)(nil)

// New creates a node. It does nothing until Start.
func New(opts Options) *Node {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.N <= 0 {
		opts.N = replication.DefaultReplicationFactor
	}

	n := &Node{
		id:         opts.ID,
		n:          opts.N,
		r:          opts.R,
		w:          opts.W,
		timeout:    opts.Timeout,
		delay:      atomic.NewDuration(opts.ResponseDelay),
		logger:     opts.Logger.With(zap.Int("node", int(opts.ID))),
		observer:   opts.Observer,
		opts:       opts,
		joining:    atomic.NewBool(false),
		recovering: atomic.NewBool(false),
		inflight:   atomic.NewInt64(0),
		table:      membership.NewTable(opts.ID),
		pending:    quorum.NewTracker[message.Requester](),
		mailbox:    newMailbox(),
		quit:       make(chan struct{}),
		timers:     make(map[uint64]*time.Timer),
	}
	n.store = storage.NewInMemoryStore(opts.Observer.OnStoreChanged)
	n.table.SetOnMembershipChanged(func(ids []cluster.NodeID) {
		n.logger.Debug("membership changed", zap.Any("members", ids))
	})
	return n
}

// ID returns the node's id.
func (n *Node) ID() cluster.NodeID {
	return n.id
}

// Send enqueues a message for the node. It never blocks. Messages sent to a
// stopped node are dropped.
func (n *Node) Send(msg message.Message) {
	n.mailbox.push(msg)
}

// Start launches the node's message loop.
func (n *Node) Start() {
	n.wg.Add(1)
	go n.loop()
}

// Stop terminates the message loop, cancels outstanding timers and waits
// for the loop to exit. It is safe to call more than once.
func (n *Node) Stop() {
	n.shutdown()
	n.wg.Wait()
}

// State returns the node's lifecycle state.
func (n *Node) State() State {
	return n.state.Get()
}

// Joining reports whether the node is still pulling data to join.
func (n *Node) Joining() bool {
	return n.joining.Load()
}

// Recovering reports whether the node is rejoining after a crash.
func (n *Node) Recovering() bool {
	return n.recovering.Load()
}

// Members returns the ids of the other nodes in this node's view.
func (n *Node) Members() []cluster.NodeID {
	return n.table.IDs()
}

// Snapshot returns a copy of the node's store.
func (n *Node) Snapshot() storage.Snapshot {
	return n.store.Snapshot()
}

// Pending returns the number of requests in flight, as of the last message
// the node handled.
func (n *Node) Pending() int {
	return int(n.inflight.Load())
}

// SetDelay changes the delay applied before answering replica reads.
func (n *Node) SetDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	n.delay.Store(d)
}

// Delay returns the current replica response delay.
func (n *Node) Delay() time.Duration {
	return n.delay.Load()
}

func (n *Node) shutdown() {
	n.quitOnce.Do(func() {
		close(n.quit)
		n.mailbox.close()

		n.timersMu.Lock()
		for id, t := range n.timers {
			t.Stop()
			delete(n.timers, id)
		}
		n.timersMu.Unlock()
	})
}

func (n *Node) loop() {
	defer n.wg.Done()

	for {
		select {
		case <-n.mailbox.notify:
			for _, msg := range n.mailbox.drain() {
				select {
				case <-n.quit:
					return
				default:
				}
				n.handle(msg)
				n.inflight.Store(int64(n.pending.Len()))
			}
		case <-n.quit:
			return
		}
	}
}

// handle dispatches a message according to the node's state.
func (n *Node) handle(msg message.Message) {
	switch n.state.Get() {
	case Left:
		return
	case Crashed:
		if m, ok := msg.(message.Recovery); ok {
			n.onRecovery(m)
			return
		}
		n.logger.Debug("crashed, ignoring message", zap.String("msg", msg.Name()))
		return
	}

	switch m := msg.(type) {
	// client
	case message.Get:
		n.onGet(m)
	case message.Update:
		n.onUpdate(m)
	case message.Join:
		n.onJoin(m)
	case message.Leave:
		n.onLeave()
	case message.Crash:
		n.onCrash()
	case message.Recovery:
		n.logf("Recovery ignored: node is not crashed")

	// membership
	case message.GetNodes:
		n.onGetNodes(m)
	case message.GetNodesResponse:
		n.onGetNodesResponse(m)
	case message.GetItems:
		n.onGetItems(m)
	case message.GetItemsResponse:
		n.onGetItemsResponse(m)
	case message.Hello:
		n.onHello(m)
	case message.Goodbye:
		n.onGoodbye(m)

	// replication
	case message.GetItem:
		n.onGetItem(m)
	case message.GetItemResponse:
		n.onGetItemResponse(m)
	case message.UpdateItem:
		n.onUpdateItem(m)

	// self
	case message.RequestTimeout:
		n.onRequestTimeout(m)
	case deferred:
		m.to.Send(m.msg)

	default:
		n.logger.Warn("unexpected message type", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// deferred is a send scheduled for later. It goes through the mailbox so a
// node that crashed in the meantime never sends it.
type deferred struct {
	to  message.Peer
	msg message.Message
}

func (deferred) Name() string { return "deferred" }

// after delivers msg to the node itself once d has elapsed.
func (n *Node) after(d time.Duration, msg message.Message) {
	n.timersMu.Lock()
	defer n.timersMu.Unlock()

	select {
	case <-n.quit:
		return
	default:
	}

	n.timerSeq++
	id := n.timerSeq
	n.timers[id] = time.AfterFunc(d, func() {
		n.timersMu.Lock()
		delete(n.timers, id)
		n.timersMu.Unlock()
		n.mailbox.push(msg)
	})
}

// sendLater delivers msg to peer after d, or right away if d is zero.
func (n *Node) sendLater(d time.Duration, to message.Peer, msg message.Message) {
	if d <= 0 {
		to.Send(msg)
		return
	}
	n.after(d, deferred{to: to, msg: msg})
}

// view is the ownership view built from the current membership table.
func (n *Node) view() replication.View {
	return replication.View{Self: n.id, Members: n.table.IDs(), N: n.n}
}

// multicast sends msg to the listed nodes that are in the membership table.
// The node itself is never in its table and so never receives it.
func (n *Node) multicast(msg message.Message, ids []cluster.NodeID) {
	for _, id := range ids {
		if peer, ok := n.table.Peer(id); ok {
			peer.Send(msg)
		}
	}
}

// broadcast sends msg to every member.
func (n *Node) broadcast(msg message.Message) {
	for _, peer := range n.table.Peers() {
		peer.Send(msg)
	}
}

// logf logs a protocol event and hands the same line to the observer.
func (n *Node) logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	n.logger.Info(line)
	n.observer.OnLogLine(line)
}

// event logs msg with structured fields. The observer gets the fields
// rendered as key=value pairs.
func (n *Node) event(level zapcore.Level, msg string, fields ...zap.Field) {
	if ce := n.logger.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
	n.observer.OnLogLine(msg + formatFields(fields))
}

func formatFields(fields []zap.Field) string {
	var b strings.Builder
	for _, f := range fields {
		enc := zapcore.NewMapObjectEncoder()
		f.AddTo(enc)
		for k, v := range enc.Fields {
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}
	return b.String()
}
