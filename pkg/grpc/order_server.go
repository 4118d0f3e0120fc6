package grpc

import (
	"fmt"
	"net"
	"time"

	"github.com/example/drivethru/pkg/board"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

const gracefulStopTimeout = 5 * time.Second

type OrderServer struct {
	board  *board.Board
	srv    *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func NewOrderServer(b *board.Board, logger *zap.Logger) *OrderServer {
	s := &OrderServer{
		board:  b,
		srv:    grpc.NewServer(),
		health: health.NewServer(),
		logger: logger,
	}

	RegisterOrderStreamServer(s.srv, s)
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

func (s *OrderServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

func (s *OrderServer) Serve(lis net.Listener) error {
	s.logger.Info("Order stream service started", zap.String("address", lis.Addr().String()))
	return s.srv.Serve(lis)
}

// Stop drains open streams and forces them closed after a short grace period.
func (s *OrderServer) Stop() {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(gracefulStopTimeout):
		s.logger.Warn("Order stream service did not drain, forcing stop")
		s.srv.Stop()
	}
}

func (s *OrderServer) Subscribe(_ *emptypb.Empty, stream OrderStream_SubscribeServer) error {
	ctx := stream.Context()

	name := "grpc"
	if p, ok := peer.FromContext(ctx); ok {
		name = "grpc:" + p.Addr.String()
	}

	sub, err := s.board.Subscribe(ctx, name)
	if err != nil {
		return status.Errorf(codes.Unavailable, "subscribe: %v", err)
	}
	defer s.board.Unsubscribe(sub.ID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events:
			if !ok {
				return status.Error(codes.Unavailable, "subscription dropped, resubscribe for a fresh snapshot")
			}
			msg, err := eventToStruct(ev)
			if err != nil {
				s.logger.Error("Failed to encode event", zap.Uint64("seq", ev.Seq), zap.Error(err))
				return status.Error(codes.Internal, "failed to encode event")
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}
