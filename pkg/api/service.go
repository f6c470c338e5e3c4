package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "confsync.v1.SyncService"

// Full method names
const (
	MethodTriggerSync          = "/" + ServiceName + "/TriggerSync"
	MethodGetStatus            = "/" + ServiceName + "/GetStatus"
	MethodListConfigurations   = "/" + ServiceName + "/ListConfigurations"
	MethodSaveConfiguration    = "/" + ServiceName + "/SaveConfiguration"
	MethodDeleteConfiguration  = "/" + ServiceName + "/DeleteConfiguration"
	MethodToggleConfiguration  = "/" + ServiceName + "/ToggleConfiguration"
	MethodPublishConfiguration = "/" + ServiceName + "/PublishConfiguration"
	MethodStreamEvents         = "/" + ServiceName + "/StreamEvents"
)

// SyncServiceServer is the server side of confsync.v1.SyncService. Messages
// are protobuf well-known types; structured payloads travel as Struct.
type SyncServiceServer interface {
	TriggerSync(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListConfigurations(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SaveConfiguration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteConfiguration(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ToggleConfiguration(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	PublishConfiguration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamEvents(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterSyncServiceServer registers srv on s
func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncServiceDesc, srv)
}

// unary adapts a typed handler to grpc.MethodHandler
func unary[Req any](fullMethod string, call func(SyncServiceServer, context.Context, *Req) (interface{}, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SyncServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(SyncServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamEventsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SyncServiceServer).StreamEvents(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// SyncServiceDesc describes confsync.v1.SyncService
var SyncServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "TriggerSync",
			Handler: unary(MethodTriggerSync, func(s SyncServiceServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
				return s.TriggerSync(ctx, in)
			}),
		},
		{
			MethodName: "GetStatus",
			Handler: unary(MethodGetStatus, func(s SyncServiceServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
				return s.GetStatus(ctx, in)
			}),
		},
		{
			MethodName: "ListConfigurations",
			Handler: unary(MethodListConfigurations, func(s SyncServiceServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
				return s.ListConfigurations(ctx, in)
			}),
		},
		{
			MethodName: "SaveConfiguration",
			Handler: unary(MethodSaveConfiguration, func(s SyncServiceServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
				return s.SaveConfiguration(ctx, in)
			}),
		},
		{
			MethodName: "DeleteConfiguration",
			Handler: unary(MethodDeleteConfiguration, func(s SyncServiceServer, ctx context.Context, in *wrapperspb.StringValue) (interface{}, error) {
				return s.DeleteConfiguration(ctx, in)
			}),
		},
		{
			MethodName: "ToggleConfiguration",
			Handler: unary(MethodToggleConfiguration, func(s SyncServiceServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
				return s.ToggleConfiguration(ctx, in)
			}),
		},
		{
			MethodName: "PublishConfiguration",
			Handler: unary(MethodPublishConfiguration, func(s SyncServiceServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
				return s.PublishConfiguration(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamEvents",
			Handler:       streamEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "confsync/v1/sync.proto",
}
