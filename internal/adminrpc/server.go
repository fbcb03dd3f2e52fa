package adminrpc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"dynamokv/internal/cluster"
	"dynamokv/internal/message"
	"dynamokv/internal/sim"
)

const defaultClient = 1

// Server implements the Admin service on top of a simulated cluster.
type Server struct {
	sys    *sim.System
	logger *zap.Logger

	mu      sync.Mutex
	clients map[int]*sim.Client
}

var _ AdminServer = (*Server)(nil)

// NewServer creates a new Admin server for sys.
func NewServer(sys *sim.System, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sys:     sys,
		logger:  logger,
		clients: make(map[int]*sim.Client),
	}
}

// LoggingInterceptor logs every admin call with its outcome.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("admin call",
			zap.String("method", info.FullMethod),
			zap.Duration("took", time.Since(start)),
			zap.Stringer("code", status.Code(err)))
		return resp, err
	}
}

func (s *Server) CreateNode(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(in, fieldID)
	if err != nil {
		return nil, invalidArgument(err)
	}
	peer, err := optionalInt(in, fieldPeer, -1)
	if err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.sys.CreateNode(ctx, cluster.NodeID(id), cluster.NodeID(peer)); err != nil {
		return nil, toStatus(err)
	}
	return s.status()
}

func (s *Server) NodeLeaves(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(in, fieldID)
	if err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.sys.NodeLeaves(ctx, cluster.NodeID(id)); err != nil {
		return nil, toStatus(err)
	}
	return s.status()
}

func (s *Server) CrashNode(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(in, fieldID)
	if err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.sys.CrashNode(cluster.NodeID(id)); err != nil {
		return nil, toStatus(err)
	}
	return s.status()
}

func (s *Server) RecoverNode(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(in, fieldID)
	if err != nil {
		return nil, invalidArgument(err)
	}
	peer, err := optionalInt(in, fieldPeer, -1)
	if err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.sys.RecoverNode(ctx, cluster.NodeID(id), cluster.NodeID(peer)); err != nil {
		return nil, toStatus(err)
	}
	return s.status()
}

func (s *Server) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	client, coordinator, key, err := clientCall(in)
	if err != nil {
		return nil, invalidArgument(err)
	}
	fb, err := s.sys.GetSync(ctx, s.client(client), coordinator, key)
	if err != nil {
		return nil, toStatus(err)
	}
	return feedbackResponse(fb)
}

func (s *Server) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	client, coordinator, key, err := clientCall(in)
	if err != nil {
		return nil, invalidArgument(err)
	}
	value, err := stringField(in, fieldValue)
	if err != nil {
		return nil, invalidArgument(err)
	}
	fb, err := s.sys.UpdateSync(ctx, s.client(client), coordinator, key, value)
	if err != nil {
		return nil, toStatus(err)
	}
	return feedbackResponse(fb)
}

func (s *Server) SetDelay(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(in, fieldID)
	if err != nil {
		return nil, invalidArgument(err)
	}
	delay, err := durationField(in, fieldDelay)
	if err != nil {
		return nil, invalidArgument(err)
	}
	if delay < 0 {
		return nil, invalidArgument(errNegativeDelay)
	}
	if err := s.sys.SetDelay(cluster.NodeID(id), delay); err != nil {
		return nil, toStatus(err)
	}
	return s.status()
}

func (s *Server) Status(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return s.status()
}

func (s *Server) Store(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(in, fieldID)
	if err != nil {
		return nil, invalidArgument(err)
	}
	snap, err := s.sys.Store(cluster.NodeID(id))
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(encodeSnapshot(snap))
}

func (s *Server) status() (*structpb.Struct, error) {
	return newStruct(encodeStatus(s.sys.Status()))
}

// client returns the handle of an admin-side client, created on first use.
func (s *Server) client(id int) *sim.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[id]; ok {
		return c
	}
	c := s.sys.NewClient()
	s.clients[id] = c
	s.logger.Debug("new client", zap.Int("client", id), zap.Int("handle", c.ID()))
	return c
}

func clientCall(in *structpb.Struct) (int, cluster.NodeID, cluster.Key, error) {
	client, err := optionalInt(in, fieldClient, defaultClient)
	if err != nil {
		return 0, 0, 0, err
	}
	coordinator, err := intField(in, fieldNode)
	if err != nil {
		return 0, 0, 0, err
	}
	key, err := intField(in, fieldKey)
	if err != nil {
		return 0, 0, 0, err
	}
	if key < 0 {
		return 0, 0, 0, errNegativeKey
	}
	return client, cluster.NodeID(coordinator), cluster.Key(key), nil
}

func feedbackResponse(fb message.Feedback) (*structpb.Struct, error) {
	return newStruct(encodeFeedback(fb))
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}
