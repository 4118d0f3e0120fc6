package grpc

import (
	"encoding/json"
	"fmt"

	"github.com/example/drivethru/pkg/board"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName     = "kiosk.v1.OrderStream"
	subscribeMethod = "/kiosk.v1.OrderStream/Subscribe"

	// DiscoveryName is the etcd service name of the order stream.
	DiscoveryName = "kiosk-orders"
)

// OrderStreamServer streams board events, snapshot first. Events travel as
// google.protobuf.Struct with the same shape as the WebSocket JSON frames.
type OrderStreamServer interface {
	Subscribe(*emptypb.Empty, OrderStream_SubscribeServer) error
}

type OrderStream_SubscribeServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type orderStreamSubscribeServer struct {
	grpc.ServerStream
}

func (x *orderStreamSubscribeServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(OrderStreamServer).Subscribe(m, &orderStreamSubscribeServer{stream})
}

var OrderStreamServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "kiosk/v1/order_stream.proto",
}

func RegisterOrderStreamServer(s grpc.ServiceRegistrar, srv OrderStreamServer) {
	s.RegisterService(&OrderStreamServiceDesc, srv)
}

func eventToStruct(ev board.Event) (*structpb.Struct, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

func structToEvent(s *structpb.Struct) (board.Event, error) {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return board.Event{}, err
	}
	var ev board.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return board.Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return ev, nil
}
