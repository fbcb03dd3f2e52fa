package adminrpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"dynamokv/internal/cluster"
	"dynamokv/internal/message"
	"dynamokv/internal/sim"
	"dynamokv/internal/storage"
)

// Client is a typed client of the Admin service. Errors are gRPC status
// errors.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// NoPeer lets the server pick the boot or recovery peer.
const NoPeer cluster.NodeID = -1

func (c *Client) CreateNode(ctx context.Context, id, peer cluster.NodeID) ([]sim.NodeStatus, error) {
	return c.statusCall(ctx, MethodCreateNode, map[string]any{fieldID: int(id), fieldPeer: int(peer)})
}

func (c *Client) NodeLeaves(ctx context.Context, id cluster.NodeID) ([]sim.NodeStatus, error) {
	return c.statusCall(ctx, MethodNodeLeaves, map[string]any{fieldID: int(id)})
}

func (c *Client) CrashNode(ctx context.Context, id cluster.NodeID) ([]sim.NodeStatus, error) {
	return c.statusCall(ctx, MethodCrashNode, map[string]any{fieldID: int(id)})
}

func (c *Client) RecoverNode(ctx context.Context, id, peer cluster.NodeID) ([]sim.NodeStatus, error) {
	return c.statusCall(ctx, MethodRecoverNode, map[string]any{fieldID: int(id), fieldPeer: int(peer)})
}

func (c *Client) SetDelay(ctx context.Context, id cluster.NodeID, d time.Duration) ([]sim.NodeStatus, error) {
	return c.statusCall(ctx, MethodSetDelay, map[string]any{fieldID: int(id), fieldDelay: d.String()})
}

func (c *Client) Status(ctx context.Context) ([]sim.NodeStatus, error) {
	return c.statusCall(ctx, MethodStatus, map[string]any{})
}

// Get reads key through coordinator on behalf of the numbered client.
func (c *Client) Get(ctx context.Context, client int, coordinator cluster.NodeID, key cluster.Key) (message.Feedback, error) {
	out, err := c.invoke(ctx, MethodGet, map[string]any{
		fieldClient: client,
		fieldNode:   int(coordinator),
		fieldKey:    int(key),
	})
	if err != nil {
		return message.Feedback{}, err
	}
	return decodeFeedback(out)
}

// Update writes key through coordinator on behalf of the numbered client.
func (c *Client) Update(ctx context.Context, client int, coordinator cluster.NodeID, key cluster.Key, value string) (message.Feedback, error) {
	out, err := c.invoke(ctx, MethodUpdate, map[string]any{
		fieldClient: client,
		fieldNode:   int(coordinator),
		fieldKey:    int(key),
		fieldValue:  value,
	})
	if err != nil {
		return message.Feedback{}, err
	}
	return decodeFeedback(out)
}

// Store returns the contents of a node's store.
func (c *Client) Store(ctx context.Context, id cluster.NodeID) (storage.Snapshot, error) {
	out, err := c.invoke(ctx, MethodStore, map[string]any{fieldID: int(id)})
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(out)
}

func (c *Client) statusCall(ctx context.Context, method string, in map[string]any) ([]sim.NodeStatus, error) {
	out, err := c.invoke(ctx, method, in)
	if err != nil {
		return nil, err
	}
	return decodeStatus(out)
}

func (c *Client) invoke(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), req, out); err != nil {
		return nil, err
	}
	return out, nil
}
