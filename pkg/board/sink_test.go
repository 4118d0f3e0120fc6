package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	seen   chan EventType
	fail   bool
}

func (s *recordingSink) Name() string { return "recorder" }

func (s *recordingSink) HandleEvent(ctx context.Context, ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.seen <- ev.Type
	if s.fail {
		return errors.New("sink unavailable")
	}
	return nil
}

func TestRunSinkDeliversFeed(t *testing.T) {
	tb := newTestBoard(t, Config{})
	sink := &recordingSink{seen: make(chan EventType, 16), fail: true}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunSink(ctx, tb.Board, sink, zap.NewNop())
		close(done)
	}()

	expect := func(want EventType) {
		t.Helper()
		select {
		case got := <-sink.seen:
			if got != want {
				t.Fatalf("sink got %s, want %s", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	expect(EventInit)
	tb.StartSession(context.Background(), "s1")
	expect(EventNew)
	tb.Delete(context.Background(), "s1")
	expect(EventDelete)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunSink did not return after cancel")
	}
}

func TestNextRetry(t *testing.T) {
	if got := nextRetry(sinkRetryMin); got != 2*sinkRetryMin {
		t.Errorf("nextRetry(min) = %v", got)
	}
	if got := nextRetry(sinkRetryMax); got != sinkRetryMax {
		t.Errorf("nextRetry(max) = %v, want cap %v", got, sinkRetryMax)
	}
}
