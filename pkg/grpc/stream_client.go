package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// StreamClient tails the order stream of a kiosk.
type StreamClient struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// Dial connects to the order stream, preferring an instance found through
// discovery over the fallback address.
func Dial(fallback string, disc *discovery.ServiceDiscovery, logger *zap.Logger) (*StreamClient, error) {
	target := fallback

	// Try to use service discovery if available
	if disc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		instances, err := disc.Discover(ctx, DiscoveryName)
		if err == nil && len(instances) > 0 {
			target = instances[0].Addr()
			logger.Info("Discovered order stream", zap.String("address", target))
		} else {
			logger.Info("Using default address for order stream", zap.String("address", target))
		}
	}

	if target == "" {
		return nil, errors.New("no order stream address")
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to order stream: %w", err)
	}
	return NewStreamClient(conn, logger), nil
}

func NewStreamClient(conn *grpc.ClientConn, logger *zap.Logger) *StreamClient {
	return &StreamClient{conn: conn, logger: logger}
}

// Check asks the server's health service about the order stream.
func (c *StreamClient) Check(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("order stream is %s", resp.GetStatus())
	}
	return nil
}

// Tail calls fn for every event until the stream ends, ctx is done or fn fails.
// The first event is always the snapshot.
func (c *StreamClient) Tail(ctx context.Context, fn func(board.Event) error) error {
	stream, err := c.conn.NewStream(ctx, &OrderStreamServiceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		ev, err := structToEvent(msg)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

func (c *StreamClient) Close() error {
	return c.conn.Close()
}
