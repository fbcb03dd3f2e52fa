package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zhangyunhao116/skipmap"
	"github.com/zhangyunhao116/skipset"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"dynamokv/internal/cluster"
	"dynamokv/internal/config"
	"dynamokv/internal/message"
	"dynamokv/internal/node"
	"dynamokv/internal/quorum"
	"dynamokv/internal/storage"
)

// Options configures a System.
type Options struct {
	Config config.Config
	Logger *zap.Logger
	// Observer returns the observer of a new node. Nil means no observer.
	Observer func(id cluster.NodeID) node.Observer
	// OnFeedback sees every client feedback.
	OnFeedback FeedbackFunc
}

// NodeStatus is the administrative view of one node.
type NodeStatus struct {
	ID         cluster.NodeID
	State      node.State
	Crashed    bool
	Joining    bool
	Recovering bool
	Members    []cluster.NodeID
	Keys       int
	Delay      time.Duration
}

// System owns every node of a simulated cluster.
type System struct {
	cfg      config.Config
	logger   *zap.Logger
	observer func(cluster.NodeID) node.Observer
	feedback FeedbackFunc

	// mu serializes membership operations.
	mu      sync.Mutex
	nodes   *skipmap.IntMap[*node.Node]
	crashed *skipset.IntSet
	stopped []*node.Node

	waitMu  sync.Mutex
	waiters map[cluster.NodeID]chan struct{}

	tickets *atomic.Uint64
	clients *atomic.Int64
}

// New creates an empty system.
func New(opts Options) (*System, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &System{
		cfg:      opts.Config,
		logger:   opts.Logger,
		observer: opts.Observer,
		feedback: opts.OnFeedback,
		nodes:    skipmap.NewInt[*node.Node](),
		crashed:  skipset.NewInt(),
		waiters:  make(map[cluster.NodeID]chan struct{}),
		tickets:  atomic.NewUint64(0),
		clients:  atomic.NewInt64(0),
	}, nil
}

// Config returns the configuration the system runs with.
func (s *System) Config() config.Config {
	return s.cfg
}

// CreateNode adds a node and waits until it has joined. The node joins
// through boot; if boot is not a running member, the lowest running member
// is used instead. The first node of an empty system needs no peer.
func (s *System) CreateNode(ctx context.Context, id, boot cluster.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !id.Valid() {
		return fmt.Errorf("create node %d: %w", id, ErrInvalidNodeID)
	}
	if _, exists := s.nodes.Load(int(id)); exists {
		return fmt.Errorf("create node %d: %w", id, ErrDuplicateNodeID)
	}

	var peer message.Peer
	if s.nodes.Len() > 0 {
		p, err := s.pickPeer(boot, id)
		if err != nil {
			return fmt.Errorf("create node %d: %w", id, err)
		}
		peer = p
	}

	n := node.New(node.Options{
		ID:            id,
		N:             s.cfg.N,
		R:             s.cfg.R,
		W:             s.cfg.W,
		Timeout:       s.cfg.Timeout,
		ResponseDelay: s.cfg.ResponseDelay,
		Logger:        s.logger,
		Observer:      s.observerFor(id),
		OnJoined:      s.onJoined,
		OnRecovered:   s.onRecovered,
		OnLeft:        s.onLeft,
	})
	n.Start()
	s.nodes.Store(int(id), n)

	done := s.expect(id)
	n.Send(message.Join{Peer: peer})

	if peer != nil {
		s.logger.Info("node joining", zap.Int("node", int(id)), zap.Int("boot", int(peer.ID())))
	} else {
		s.logger.Info("first node", zap.Int("node", int(id)))
	}
	return s.await(ctx, done, "create", id)
}

// Bootstrap creates the nodes listed in the configuration in order, each
// joining through the first one, and applies their response delays.
func (s *System) Bootstrap(ctx context.Context) error {
	if len(s.cfg.Nodes) == 0 {
		return nil
	}
	boot := s.cfg.Nodes[0].ID
	for _, spec := range s.cfg.Nodes {
		if err := s.CreateNode(ctx, spec.ID, boot); err != nil {
			return err
		}
		if spec.Delay > 0 {
			if err := s.SetDelay(spec.ID, spec.Delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// NodeLeaves makes a node hand off its data and leave. It returns once the
// node has stopped.
func (s *System) NodeLeaves(ctx context.Context, id cluster.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return fmt.Errorf("leave: %w", err)
	}
	if s.crashed.Contains(int(id)) {
		return fmt.Errorf("leave node %d: %w", id, ErrNodeCrashed)
	}

	done := s.expect(id)
	n.Send(message.Leave{})
	if err := s.await(ctx, done, "leave", id); err != nil {
		return err
	}

	n.Stop()
	s.stopped = append(s.stopped, n)
	return nil
}

// CrashNode crashes a node. Crashing a crashed node does nothing.
func (s *System) CrashNode(id cluster.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return fmt.Errorf("crash: %w", err)
	}
	if !s.crashed.Add(int(id)) {
		return nil
	}

	n.Send(message.Crash{})
	s.logger.Info("node crashed", zap.Int("node", int(id)))
	return nil
}

// RecoverNode brings a crashed node back through peer, or through the
// lowest running member if peer is not usable, and waits until it is done.
func (s *System) RecoverNode(ctx context.Context, id, peer cluster.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	if !s.crashed.Contains(int(id)) {
		return fmt.Errorf("recover node %d: %w", id, ErrNodeNotCrashed)
	}

	p, err := s.pickPeer(peer, id)
	if err != nil {
		return fmt.Errorf("recover node %d: %w", id, err)
	}

	done := s.expect(id)
	n.Send(message.Recovery{Peer: p})
	s.logger.Info("node recovering", zap.Int("node", int(id)), zap.Int("peer", int(p.ID())))

	return s.await(ctx, done, "recover", id)
}

// NewClient returns a new client handle.
func (s *System) NewClient() *Client {
	id := int(s.clients.Inc())
	return newClient(id, s.cfg.ClientWait(), s.feedback)
}

// Get sends a read for key to the coordinator on behalf of client and
// returns the call's ticket.
func (s *System) Get(client *Client, coordinator cluster.NodeID, key cluster.Key) (uint64, error) {
	n, err := s.lookup(coordinator)
	if err != nil {
		return 0, fmt.Errorf("get: %w", err)
	}

	ticket := s.tickets.Inc()
	client.expect(ticket, quorum.Get)
	n.Send(message.Get{Client: client, Ticket: ticket, Key: key})
	return ticket, nil
}

// Update sends a write for key to the coordinator on behalf of client and
// returns the call's ticket.
func (s *System) Update(client *Client, coordinator cluster.NodeID, key cluster.Key, value string) (uint64, error) {
	n, err := s.lookup(coordinator)
	if err != nil {
		return 0, fmt.Errorf("update: %w", err)
	}

	ticket := s.tickets.Inc()
	client.expect(ticket, quorum.Update)
	n.Send(message.Update{Client: client, Ticket: ticket, Key: key, Value: value})
	return ticket, nil
}

// GetSync is Get followed by Await.
func (s *System) GetSync(ctx context.Context, client *Client, coordinator cluster.NodeID, key cluster.Key) (message.Feedback, error) {
	ticket, err := s.Get(client, coordinator, key)
	if err != nil {
		return message.Feedback{}, err
	}
	return client.Await(ctx, ticket)
}

// UpdateSync is Update followed by Await.
func (s *System) UpdateSync(ctx context.Context, client *Client, coordinator cluster.NodeID, key cluster.Key, value string) (message.Feedback, error) {
	ticket, err := s.Update(client, coordinator, key, value)
	if err != nil {
		return message.Feedback{}, err
	}
	return client.Await(ctx, ticket)
}

// SetDelay changes the replica response delay of a node.
func (s *System) SetDelay(id cluster.NodeID, d time.Duration) error {
	n, err := s.lookup(id)
	if err != nil {
		return fmt.Errorf("set delay: %w", err)
	}
	n.SetDelay(d)
	return nil
}

// Nodes returns the ids of every member, crashed ones included, ascending.
func (s *System) Nodes() []cluster.NodeID {
	ids := make([]cluster.NodeID, 0, s.nodes.Len())
	s.nodes.Range(func(id int, _ *node.Node) bool {
		ids = append(ids, cluster.NodeID(id))
		return true
	})
	return ids
}

// Store returns a copy of a node's store.
func (s *System) Store(id cluster.NodeID) (storage.Snapshot, error) {
	n, err := s.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return n.Snapshot(), nil
}

// IsCrashed reports whether a node is crashed or still recovering.
func (s *System) IsCrashed(id cluster.NodeID) bool {
	return s.crashed.Contains(int(id))
}

// Status returns the administrative view of every member.
func (s *System) Status() []NodeStatus {
	out := make([]NodeStatus, 0, s.nodes.Len())
	s.nodes.Range(func(id int, n *node.Node) bool {
		out = append(out, NodeStatus{
			ID:         cluster.NodeID(id),
			State:      n.State(),
			Crashed:    s.crashed.Contains(id),
			Joining:    n.Joining(),
			Recovering: n.Recovering(),
			Members:    n.Members(),
			Keys:       len(n.Snapshot()),
			Delay:      n.Delay(),
		})
		return true
	})
	return out
}

// Shutdown stops every node.
func (s *System) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes.Range(func(id int, n *node.Node) bool {
		n.Stop()
		s.nodes.Delete(id)
		return true
	})
	for _, n := range s.stopped {
		n.Stop()
	}
	s.stopped = nil
	s.logger.Info("system stopped")
}

func (s *System) lookup(id cluster.NodeID) (*node.Node, error) {
	n, ok := s.nodes.Load(int(id))
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	return n, nil
}

// pickPeer returns want if it is a running member other than exclude, else
// the running member with the lowest id.
func (s *System) pickPeer(want, exclude cluster.NodeID) (message.Peer, error) {
	usable := func(id int) bool {
		return id != int(exclude) && !s.crashed.Contains(id)
	}

	if want.Valid() && usable(int(want)) {
		if n, ok := s.nodes.Load(int(want)); ok {
			return n, nil
		}
	}

	var found *node.Node
	s.nodes.Range(func(id int, n *node.Node) bool {
		if usable(id) {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil, ErrNoAvailablePeer
	}
	if want.Valid() && want != found.ID() {
		s.logger.Warn("requested peer unavailable, using fallback",
			zap.Int("requested", int(want)),
			zap.Int("peer", int(found.ID())))
	}
	return found, nil
}

func (s *System) observerFor(id cluster.NodeID) node.Observer {
	if s.observer == nil {
		return nil
	}
	return s.observer(id)
}

func (s *System) expect(id cluster.NodeID) <-chan struct{} {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	ch := make(chan struct{})
	s.waiters[id] = ch
	return ch
}

func (s *System) signal(id cluster.NodeID) {
	s.waitMu.Lock()
	ch, ok := s.waiters[id]
	delete(s.waiters, id)
	s.waitMu.Unlock()

	if ok {
		close(ch)
	}
}

func (s *System) await(ctx context.Context, done <-chan struct{}, op string, id cluster.NodeID) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s node %d: %w", op, id, ctx.Err())
	}
}

func (s *System) onJoined(id cluster.NodeID) {
	s.signal(id)
}

func (s *System) onRecovered(id cluster.NodeID) {
	s.crashed.Remove(int(id))
	s.signal(id)
}

func (s *System) onLeft(id cluster.NodeID) {
	s.nodes.Delete(int(id))
	s.signal(id)
}
