// Command boardtail follows a running kiosk's order board from the terminal.
//
//	boardtail                      tail the gRPC order stream
//	boardtail -source nats         tail board events published on NATS
//	boardtail -lookup <sessionId>  print the order mirrored in Redis
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/config"
	"github.com/example/drivethru/pkg/discovery"
	"github.com/example/drivethru/pkg/events"
	"github.com/example/drivethru/pkg/grpc"
	"github.com/example/drivethru/pkg/logging"
	"github.com/example/drivethru/pkg/repository"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/kiosk.yaml", "path to the config file")
	source := flag.String("source", "grpc", "event source: grpc or nats")
	lookup := flag.String("lookup", "", "print the mirrored order for this session and exit")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *lookup != "":
		err = lookupOrder(ctx, cfg, *lookup)
	case *source == "nats":
		err = tailNATS(ctx, cfg, logger)
	case *source == "grpc":
		err = tailGRPC(ctx, cfg, logger)
	default:
		err = fmt.Errorf("unknown source %q", *source)
	}
	// Interrupted runs end quietly.
	if err != nil && ctx.Err() == nil {
		logger.Fatal("boardtail failed", zap.Error(err))
	}
}

func tailGRPC(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var sd *discovery.ServiceDiscovery
	if cfg.Etcd.Enabled {
		var err error
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, using configured address", zap.Error(err))
		} else {
			defer sd.Close()
		}
	}

	client, err := grpc.Dial(cfg.GRPC.Addr, sd, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Check(checkCtx); err != nil {
		return fmt.Errorf("order stream not serving: %w", err)
	}

	return client.Tail(ctx, func(ev board.Event) error {
		logEvent(logger, ev)
		return nil
	})
}

func tailNATS(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	sub, err := events.NewNATSSubscriber(cfg.NATS.URL, "boardtail")
	if err != nil {
		return err
	}
	defer sub.Close()

	subject := events.Wildcard(cfg.NATS.SubjectPrefix)
	err = sub.Subscribe(ctx, subject, func(_ context.Context, _ string, data []byte) error {
		var ev board.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		logEvent(logger, ev)
		return nil
	}, func(err error) {
		logger.Warn("Undecodable board event", zap.Error(err))
	})
	if err != nil {
		return err
	}

	logger.Info("Tailing board events", zap.String("subject", subject))
	<-ctx.Done()
	return ctx.Err()
}

func lookupOrder(ctx context.Context, cfg *config.Config, sessionID string) error {
	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()

	order, err := repository.NewOrderMirror(redisRepo, cfg.Redis.TTL).Lookup(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", sessionID, err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(order)
}

func logEvent(logger *zap.Logger, ev board.Event) {
	fields := []zap.Field{
		zap.String("type", string(ev.Type)),
		zap.Uint64("seq", ev.Seq),
	}
	switch {
	case ev.Type == board.EventInit:
		fields = append(fields, zap.Int("orders", len(ev.Orders)))
	case ev.Order != nil:
		fields = append(fields,
			zap.String("session_id", ev.Order.ID),
			zap.Int("order_number", ev.Order.OrderNumber),
			zap.String("kitchen_status", string(ev.Order.KitchenStatus)),
			zap.Int("items", len(ev.Order.Items)),
			zap.Float64("total", ev.Order.Total))
	default:
		fields = append(fields, zap.String("session_id", ev.SessionID()))
	}
	logger.Info("Board event", fields...)
}
