// Package board runs the kitchen order board: an actor that owns the order store
// and fans every mutation out to subscribed displays.
package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/example/drivethru/pkg/models"
	"github.com/example/drivethru/pkg/orders"
	"go.uber.org/zap"
)

const (
	DefaultUndoWindow     = 5 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

var (
	ErrNothingToUndo = errors.New("no pending deletion for session")
	ErrUnavailable   = errors.New("order board unavailable")
)

// Timers schedules one-shot and repeating messages to the board actor.
// *scheduler.TimerScheduler satisfies it.
type Timers interface {
	SendOnce(delay time.Duration, pid *actor.PID, message interface{}) scheduler.CancelFunc
	SendRepeatedly(initial, interval time.Duration, pid *actor.PID, message interface{}) scheduler.CancelFunc
}

// Archiver receives orders that leave the board for good.
type Archiver interface {
	Archive(ctx context.Context, order models.Order, reason string) error
}

// Archivers hands each order to every archiver in turn.
type Archivers []Archiver

func (as Archivers) Archive(ctx context.Context, order models.Order, reason string) error {
	var errs []error
	for _, a := range as {
		if err := a.Archive(ctx, order, reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Config struct {
	UndoWindow       time.Duration
	SweepInterval    time.Duration
	RequestTimeout   time.Duration
	SubscriberBuffer int
}

type Option func(*boardActor)

func WithTimers(t Timers) Option {
	return func(a *boardActor) { a.timers = t }
}

func WithArchiver(ar Archiver) Option {
	return func(a *boardActor) { a.archiver = ar }
}

// WithClock sets the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *boardActor) {
		if now != nil {
			a.now = now
		}
	}
}

// Board is the goroutine-safe entry point to the board actor.
type Board struct {
	system     *actor.ActorSystem
	pid        *actor.PID
	timeout    time.Duration
	undoWindow time.Duration
	logger     *zap.Logger
}

func New(system *actor.ActorSystem, store *orders.Store, cfg Config, logger *zap.Logger, opts ...Option) (*Board, error) {
	if store == nil {
		return nil, errors.New("board: store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UndoWindow <= 0 {
		cfg.UndoWindow = DefaultUndoWindow
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	a := &boardActor{
		store:         store,
		hub:           newHub(cfg.SubscriberBuffer, logger.Named("hub")),
		pending:       make(map[string]*pendingDeletion),
		undoWindow:    cfg.UndoWindow,
		sweepInterval: cfg.SweepInterval,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.timers == nil {
		a.timers = scheduler.NewTimerScheduler(system.Root)
	}

	props := actor.PropsFromProducer(func() actor.Actor { return a })
	pid, err := system.Root.SpawnNamed(props, "order-board")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn board actor: %w", err)
	}

	return &Board{
		system:     system,
		pid:        pid,
		timeout:    cfg.RequestTimeout,
		undoWindow: cfg.UndoWindow,
		logger:     logger,
	}, nil
}

func (b *Board) UndoWindow() time.Duration {
	return b.undoWindow
}

// StartSession opens the order for a new conversation and announces it.
func (b *Board) StartSession(ctx context.Context, sessionID string) (models.Order, error) {
	r, err := b.request(ctx, &startSession{sessionID: sessionID})
	if err != nil {
		return models.Order{}, err
	}
	return r.order, nil
}

// ApplyAgentUpdate replaces the order content with the agent's full current state.
// orders.ErrNotFound means the session is gone; callers should log and move on.
func (b *Board) ApplyAgentUpdate(ctx context.Context, sessionID string, state orders.OrderState) (models.Order, error) {
	r, err := b.request(ctx, &applyUpdate{sessionID: sessionID, state: state})
	if err != nil {
		return models.Order{}, err
	}
	return r.order, nil
}

func (b *Board) SetKitchenStatus(ctx context.Context, sessionID string, status models.KitchenStatus) (models.Order, error) {
	r, err := b.request(ctx, &setKitchenStatus{sessionID: sessionID, status: status})
	if err != nil {
		return models.Order{}, err
	}
	return r.order, nil
}

// Delete removes the order from the board and keeps it restorable for UndoWindow.
func (b *Board) Delete(ctx context.Context, sessionID string) (models.Order, error) {
	r, err := b.request(ctx, &deleteOrder{sessionID: sessionID})
	if err != nil {
		return models.Order{}, err
	}
	return r.order, nil
}

// Undo restores an order deleted within the undo window.
func (b *Board) Undo(ctx context.Context, sessionID string) (models.Order, error) {
	r, err := b.request(ctx, &undoDelete{sessionID: sessionID})
	if err != nil {
		return models.Order{}, err
	}
	return r.order, nil
}

func (b *Board) Get(ctx context.Context, sessionID string) (models.Order, bool, error) {
	r, err := b.request(ctx, &getOrder{sessionID: sessionID})
	if err != nil {
		return models.Order{}, false, err
	}
	return r.order, r.found, nil
}

func (b *Board) Active(ctx context.Context) ([]models.Order, error) {
	r, err := b.request(ctx, &listActive{})
	if err != nil {
		return nil, err
	}
	return r.orders, nil
}

func (b *Board) Latest(ctx context.Context) (models.Order, bool, error) {
	r, err := b.request(ctx, &latestOrder{})
	if err != nil {
		return models.Order{}, false, err
	}
	return r.order, r.found, nil
}

// Subscribe returns a feed that starts with the current active orders followed
// by every later mutation, in order.
func (b *Board) Subscribe(ctx context.Context, name string) (*Subscription, error) {
	r, err := b.request(ctx, &subscribe{name: name})
	if err != nil {
		return nil, err
	}
	return r.sub, nil
}

func (b *Board) Unsubscribe(id string) {
	b.system.Root.Send(b.pid, &unsubscribe{id: id})
}

// Stop stops the actor and closes every subscription.
func (b *Board) Stop() error {
	return b.system.Root.StopFuture(b.pid).Wait()
}

func (b *Board) request(ctx context.Context, msg interface{}) (*reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := b.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	res, err := b.system.Root.RequestFuture(b.pid, msg, timeout).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %T: %v", ErrUnavailable, msg, err)
	}
	r, ok := res.(*reply)
	if !ok {
		return nil, fmt.Errorf("board request %T: unexpected response %T", msg, res)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r, nil
}
