package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/drivethru/gateway"
	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/config"
	"github.com/example/drivethru/pkg/discovery"
	"github.com/example/drivethru/pkg/events"
	"github.com/example/drivethru/pkg/grpc"
	"github.com/example/drivethru/pkg/logging"
	"github.com/example/drivethru/pkg/orders"
	"github.com/example/drivethru/pkg/repository"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/kiosk.yaml", "path to the config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting kiosk",
		zap.String("name", cfg.Server.Name),
		zap.Int("gateway_port", cfg.Gateway.Port),
		zap.Bool("grpc", cfg.GRPC.Enabled))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Archive targets for orders leaving the board
	var archivers board.Archivers
	var gatewayOpts []gateway.Option

	if cfg.Archive.Enabled {
		archive, err := repository.NewArchiveRepository(&cfg.Archive)
		if err != nil {
			logger.Fatal("Failed to open order archive", zap.Error(err))
		}
		defer archive.Close()
		archivers = append(archivers, archive)
		gatewayOpts = append(gatewayOpts, gateway.WithHistory(archive))
		logger.Info("Order archive connected", zap.String("driver", cfg.Archive.Driver))
	}

	var auditTrail *repository.AuditTrail
	if cfg.MongoDB.Enabled {
		mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer mongoRepo.Close(context.Background())
		if err := mongoRepo.Ping(ctx); err != nil {
			logger.Warn("MongoDB connection failed", zap.Error(err))
		} else {
			logger.Info("MongoDB connected successfully")
		}
		auditTrail = repository.NewAuditTrail(mongoRepo, cfg.Server.Name)
		archivers = append(archivers, auditTrail)
		gatewayOpts = append(gatewayOpts, gateway.WithAudit(mongoRepo))
	}

	// Order board
	system := actor.NewActorSystem()
	store := orders.NewStore(storeOptions(cfg)...)

	var boardOpts []board.Option
	if len(archivers) > 0 {
		boardOpts = append(boardOpts, board.WithArchiver(archivers))
	}
	b, err := board.New(system, store, board.Config{
		UndoWindow:       cfg.Orders.UndoWindow,
		SweepInterval:    cfg.Orders.SweepInterval,
		RequestTimeout:   cfg.Board.RequestTimeout,
		SubscriberBuffer: cfg.Board.SubscriberBuffer,
	}, logger.Named("board"), boardOpts...)
	if err != nil {
		logger.Fatal("Failed to start order board", zap.Error(err))
	}

	// Feed sinks
	if auditTrail != nil {
		go board.RunSink(ctx, b, auditTrail, logger)
	}

	if cfg.Redis.Enabled {
		redisRepo := repository.NewRedisRepository(&cfg.Redis)
		defer redisRepo.Close()
		if err := redisRepo.Ping(ctx); err != nil {
			logger.Warn("Redis connection failed", zap.Error(err))
		} else {
			logger.Info("Redis connected successfully")
		}
		go board.RunSink(ctx, b, repository.NewOrderMirror(redisRepo, cfg.Redis.TTL), logger)
	}

	if cfg.NATS.Enabled {
		pub, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.Server.Name)
		if err != nil {
			logger.Warn("NATS connection failed, board events will not be published", zap.Error(err))
		} else {
			defer pub.Close()
			go board.RunSink(ctx, b, events.NewBoardPublisher(pub, cfg.NATS.SubjectPrefix), logger)
		}
	}

	errCh := make(chan error, 2)

	// gRPC order stream
	var grpcServer *grpc.OrderServer
	if cfg.GRPC.Enabled {
		grpcServer = grpc.NewOrderServer(b, logger.Named("grpc"))
		go func() {
			if err := grpcServer.Start(cfg.GRPC.ListenAddr()); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	// Register the order stream in etcd
	var sd *discovery.ServiceDiscovery
	instance := &discovery.ServiceInstance{
		Name: grpc.DiscoveryName,
		Host: cfg.Server.Host,
		Port: cfg.GRPC.Port,
	}
	if cfg.Etcd.Enabled && cfg.GRPC.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger.Named("discovery"))
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else {
			defer sd.Close()
			if err := sd.Register(ctx, instance); err != nil {
				logger.Error("Failed to register service", zap.Error(err))
			} else {
				logger.Info("Service registered in etcd",
					zap.String("name", instance.Name),
					zap.String("address", instance.Addr()))
			}
		}
	}

	// HTTP gateway
	gw := gateway.NewGateway(&cfg.Gateway, b, logger.Named("gateway"), gatewayOpts...)
	gw.SetupRoutes()
	go func() {
		if err := gw.Start(); err != nil {
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		logger.Error("Server error", zap.Error(err))
	}

	if sd != nil {
		if err := sd.Deregister(context.Background(), instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Gateway.ShutdownTimeout)
	defer shutdownCancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Gateway shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}

	cancel()
	if err := b.Stop(); err != nil {
		logger.Warn("Board stop", zap.Error(err))
	}

	logger.Info("Kiosk stopped")
}

func storeOptions(cfg *config.Config) []orders.Option {
	opts := []orders.Option{orders.WithRetention(cfg.Orders.Retention)}
	if cfg.Orders.StrictTransitions {
		opts = append(opts, orders.WithStrictTransitions())
	}

	var validators []orders.Validator
	v := cfg.Orders.Validation
	if v.RejectNegative {
		validators = append(validators, orders.RejectNegative())
	}
	if v.MaxItems > 0 {
		validators = append(validators, orders.MaxItems(v.MaxItems))
	}
	if v.TotalCheck {
		validators = append(validators, orders.TotalMatchesItems(v.Epsilon))
	}
	if len(validators) > 0 {
		opts = append(opts, orders.WithValidator(orders.Chain(validators...)))
	}
	return opts
}
