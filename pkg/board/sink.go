package board

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sink consumes the board feed inside the process: mirrors, audit logs, publishers.
type Sink interface {
	Name() string
	HandleEvent(ctx context.Context, ev Event) error
}

const (
	sinkRetryMin = 500 * time.Millisecond
	sinkRetryMax = 10 * time.Second
)

// RunSink feeds every board event to sink until ctx is done. When the board drops
// the subscription the sink resubscribes and receives a fresh snapshot.
func RunSink(ctx context.Context, b *Board, sink Sink, logger *zap.Logger) {
	logger = logger.With(zap.String("sink", sink.Name()))
	retry := sinkRetryMin

	for {
		sub, err := b.Subscribe(ctx, sink.Name())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("Sink subscribe failed", zap.Error(err), zap.Duration("retry_in", retry))
			if !sleepCtx(ctx, retry) {
				return
			}
			retry = nextRetry(retry)
			continue
		}
		retry = sinkRetryMin

		if !drain(ctx, sub, sink, logger) {
			b.Unsubscribe(sub.ID)
			return
		}
		logger.Warn("Sink subscription ended, resubscribing")
	}
}

// drain returns false when ctx is done and true when the feed was closed.
func drain(ctx context.Context, sub *Subscription, sink Sink, logger *zap.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events:
			if !ok {
				return ctx.Err() == nil
			}
			if err := sink.HandleEvent(ctx, ev); err != nil {
				logger.Error("Sink failed to handle event",
					zap.String("type", string(ev.Type)),
					zap.Uint64("seq", ev.Seq),
					zap.Error(err))
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextRetry(d time.Duration) time.Duration {
	d *= 2
	if d > sinkRetryMax {
		return sinkRetryMax
	}
	return d
}
