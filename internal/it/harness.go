package it

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"dynamokv/internal/adminrpc"
	"dynamokv/internal/cluster"
	"dynamokv/internal/config"
	"dynamokv/internal/message"
	"dynamokv/internal/sim"
	"dynamokv/internal/storage"
)

const bufSize = 1 << 20

// Cluster represents a test cluster driven through the admin service
type Cluster struct {
	sys    *sim.System
	srv    *grpc.Server
	conn   *grpc.ClientConn
	admin  *adminrpc.Client
	served chan struct{}

	nodes []*Node
	mu    sync.Mutex
}

// Node represents a single node in the test cluster
type Node struct {
	ID     cluster.NodeID
	admin  *adminrpc.Client
	client int
}

// NewCluster creates a new test cluster harness
func NewCluster(cfg config.Config, logger *zap.Logger) (*Cluster, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sys, err := sim.New(sim.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create system: %w", err)
	}

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(adminrpc.LoggingInterceptor(logger)),
		grpc.WaitForHandlers(true),
	)
	adminrpc.RegisterAdminServer(srv, adminrpc.NewServer(sys, logger))

	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = srv.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		srv.Stop()
		<-served
		sys.Shutdown()
		return nil, fmt.Errorf("failed to dial admin service: %w", err)
	}

	return &Cluster{
		sys:    sys,
		srv:    srv,
		conn:   conn,
		admin:  adminrpc.NewClient(conn),
		served: served,
		nodes:  make([]*Node, 0),
	}, nil
}

// StartNode starts a single node that joins through peer
func (c *Cluster) StartNode(ctx context.Context, id, peer cluster.NodeID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.admin.CreateNode(ctx, id, peer); err != nil {
		return fmt.Errorf("failed to start node %d: %w", id, err)
	}
	c.nodes = append(c.nodes, &Node{ID: id, admin: c.admin, client: 1})
	return nil
}

// StartCluster starts the given nodes in order, each joining through the
// first one
func (c *Cluster) StartCluster(ctx context.Context, ids ...cluster.NodeID) error {
	for i, id := range ids {
		peer := adminrpc.NoPeer
		if i > 0 {
			peer = ids[0]
		}
		if err := c.StartNode(ctx, id, peer); err != nil {
			return err
		}
	}
	return nil
}

// GetNode returns a node by ID
func (c *Cluster) GetNode(id cluster.NodeID) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// KillNode crashes a specific node
func (c *Cluster) KillNode(ctx context.Context, id cluster.NodeID) error {
	if _, err := c.admin.CrashNode(ctx, id); err != nil {
		return fmt.Errorf("failed to kill node %d: %w", id, err)
	}
	return nil
}

// RestartNode recovers a crashed node through peer
func (c *Cluster) RestartNode(ctx context.Context, id, peer cluster.NodeID) error {
	if _, err := c.admin.RecoverNode(ctx, id, peer); err != nil {
		return fmt.Errorf("failed to restart node %d: %w", id, err)
	}
	return nil
}

// LeaveNode makes a node leave the cluster
func (c *Cluster) LeaveNode(ctx context.Context, id cluster.NodeID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.admin.NodeLeaves(ctx, id); err != nil {
		return fmt.Errorf("failed to remove node %d: %w", id, err)
	}
	for i, n := range c.nodes {
		if n.ID == id {
			c.nodes = append(c.nodes[:i], c.nodes[i+1:]...)
			break
		}
	}
	return nil
}

// SetDelay changes the response delay of every started node
func (c *Cluster) SetDelay(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		if _, err := c.admin.SetDelay(ctx, n.ID, d); err != nil {
			return fmt.Errorf("failed to set delay of node %d: %w", n.ID, err)
		}
	}
	return nil
}

// Status returns the status of every node
func (c *Cluster) Status(ctx context.Context) ([]sim.NodeStatus, error) {
	return c.admin.Status(ctx)
}

// Stop stops all nodes in the cluster
func (c *Cluster) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.Close()
	c.srv.Stop()
	<-c.served
	c.sys.Shutdown()
	c.nodes = nil
}

// As returns a handle that issues requests on behalf of another client
func (n *Node) As(client int) *Node {
	return &Node{ID: n.ID, admin: n.admin, client: client}
}

// Put writes key through this node
func (n *Node) Put(ctx context.Context, key cluster.Key, value string) (message.Feedback, error) {
	return n.admin.Update(ctx, n.client, n.ID, key, value)
}

// Get reads key through this node
func (n *Node) Get(ctx context.Context, key cluster.Key) (message.Feedback, error) {
	return n.admin.Get(ctx, n.client, n.ID, key)
}

// Store returns the local contents of this node
func (n *Node) Store(ctx context.Context) (storage.Snapshot, error) {
	return n.admin.Store(ctx, n.ID)
}
