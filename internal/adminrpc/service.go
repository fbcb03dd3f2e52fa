package adminrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dynamokv.admin.v1.Admin"

const (
	MethodCreateNode  = "CreateNode"
	MethodNodeLeaves  = "NodeLeaves"
	MethodCrashNode   = "CrashNode"
	MethodRecoverNode = "RecoverNode"
	MethodGet         = "Get"
	MethodUpdate      = "Update"
	MethodSetDelay    = "SetDelay"
	MethodStatus      = "Status"
	MethodStore       = "Store"
)

// AdminServer is the server API for the Admin service.
type AdminServer interface {
	CreateNode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NodeLeaves(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CrashNode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecoverNode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetDelay(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Store(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(AdminServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// ServiceDesc is the grpc.ServiceDesc for the Admin service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreateNode, AdminServer.CreateNode),
		unary(MethodNodeLeaves, AdminServer.NodeLeaves),
		unary(MethodCrashNode, AdminServer.CrashNode),
		unary(MethodRecoverNode, AdminServer.RecoverNode),
		unary(MethodGet, AdminServer.Get),
		unary(MethodUpdate, AdminServer.Update),
		unary(MethodSetDelay, AdminServer.SetDelay),
		unary(MethodStatus, AdminServer.Status),
		unary(MethodStore, AdminServer.Store),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dynamokv/admin/v1/admin.proto",
}

// RegisterAdminServer registers srv on s.
func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary(name string, call unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
