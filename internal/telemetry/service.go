package telemetry

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "fcw.telemetry.v1.Telemetry"

const streamSnapshotsMethod = "/" + ServiceName + "/StreamSnapshots"

// TelemetryServer is the server API for the telemetry service:
//
//	service Telemetry {
//	  rpc StreamSnapshots(google.protobuf.Empty) returns (stream google.protobuf.Struct);
//	}
type TelemetryServer interface {
	StreamSnapshots(*emptypb.Empty, grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TelemetryServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamSnapshots",
			Handler:       streamSnapshotsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "fcw/telemetry/v1/telemetry.proto",
}

// RegisterTelemetryServer registers srv on s.
func RegisterTelemetryServer(s grpc.ServiceRegistrar, srv TelemetryServer) {
	s.RegisterService(&serviceDesc, srv)
}

func streamSnapshotsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TelemetryServer).StreamSnapshots(in, stream)
}

// Stream receives snapshots from a telemetry server.
type Stream struct {
	stream grpc.ClientStream
}

// Subscribe opens a snapshot stream on conn. Cancel ctx to end it.
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface) (*Stream, error) {
	stream, err := conn.NewStream(ctx, &serviceDesc.Streams[0], streamSnapshotsMethod)
	if err != nil {
		return nil, fmt.Errorf("open snapshot stream: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, fmt.Errorf("send stream request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close send: %w", err)
	}
	return &Stream{stream: stream}, nil
}

// Recv blocks for the next snapshot. It returns io.EOF when the server ends
// the stream.
func (s *Stream) Recv() (Snapshot, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return Snapshot{}, err
	}
	return FromStruct(msg)
}
