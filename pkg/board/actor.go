package board

import (
	"context"
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/example/drivethru/pkg/models"
	"github.com/example/drivethru/pkg/orders"
	"go.uber.org/zap"
)

// Messages
type startSession struct {
	sessionID string
}

type applyUpdate struct {
	sessionID string
	state     orders.OrderState
}

type setKitchenStatus struct {
	sessionID string
	status    models.KitchenStatus
}

type deleteOrder struct {
	sessionID string
}

type undoDelete struct {
	sessionID string
}

type getOrder struct {
	sessionID string
}

type listActive struct{}

type latestOrder struct{}

type subscribe struct {
	name string
}

type unsubscribe struct {
	id string
}

type purgeDeletion struct {
	sessionID  string
	generation uint64
}

type sweep struct{}

type reply struct {
	order  models.Order
	orders []models.Order
	found  bool
	sub    *Subscription
	err    error
}

type pendingDeletion struct {
	order      models.Order
	generation uint64
	cancel     scheduler.CancelFunc
}

// boardActor is the single owner of the order store, the subscriber hub and
// the pending deletions. The same instance survives supervisor restarts.
type boardActor struct {
	store   *orders.Store
	hub     *hub
	pending map[string]*pendingDeletion

	timers        Timers
	archiver      Archiver
	undoWindow    time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *zap.Logger

	seq         uint64
	generation  uint64
	sweepCancel scheduler.CancelFunc
}

func (a *boardActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *startSession:
		a.onStartSession(ctx, msg)

	case *applyUpdate:
		order, err := a.store.Update(msg.sessionID, msg.state)
		if err != nil {
			a.logMutationError("Agent update ignored", msg.sessionID, err)
			ctx.Respond(&reply{err: err})
			return
		}
		a.broadcast(EventUpdate, &order, "")
		ctx.Respond(&reply{order: order, found: true})

	case *setKitchenStatus:
		order, err := a.store.SetKitchenStatus(msg.sessionID, msg.status)
		if err != nil {
			a.logMutationError("Kitchen status change rejected", msg.sessionID, err)
			ctx.Respond(&reply{err: err})
			return
		}
		a.logger.Info("Kitchen status changed",
			zap.String("session_id", msg.sessionID),
			zap.Int("order_number", order.OrderNumber),
			zap.String("status", string(order.KitchenStatus)))
		a.broadcast(EventUpdate, &order, "")
		ctx.Respond(&reply{order: order, found: true})

	case *deleteOrder:
		a.onDelete(ctx, msg)

	case *undoDelete:
		a.onUndo(ctx, msg)

	case *getOrder:
		order, found := a.store.Get(msg.sessionID)
		ctx.Respond(&reply{order: order, found: found})

	case *listActive:
		ctx.Respond(&reply{orders: a.store.ListActive()})

	case *latestOrder:
		order, found := a.store.Latest()
		ctx.Respond(&reply{order: order, found: found})

	case *subscribe:
		// Snapshot and registration happen in the same turn, so no mutation can
		// slip between them.
		snapshot := Event{Type: EventInit, Seq: a.seq, OccurredAt: a.now(), Orders: a.store.ListActive()}
		sub := a.hub.add(msg.name, snapshot)
		ctx.Respond(&reply{sub: sub})

	case *unsubscribe:
		a.hub.remove(msg.id)

	case *purgeDeletion:
		p, ok := a.pending[msg.sessionID]
		if !ok || p.generation != msg.generation {
			return
		}
		a.finalize(msg.sessionID, p, "undo window expired")

	case *sweep:
		for _, order := range a.store.Evict() {
			a.logger.Info("Order retired from board",
				zap.String("session_id", order.ID),
				zap.Int("order_number", order.OrderNumber))
			a.broadcast(EventDelete, nil, order.ID)
			a.archive(order, "retention expired")
		}

	case *actor.Started:
		a.logger.Info("Board actor started",
			zap.Duration("undo_window", a.undoWindow),
			zap.Duration("retention", a.store.Retention()))
		// Started is delivered again after a supervisor restart.
		if a.sweepCancel != nil {
			a.sweepCancel()
			a.sweepCancel = nil
		}
		if a.sweepInterval > 0 {
			a.sweepCancel = a.timers.SendRepeatedly(a.sweepInterval, a.sweepInterval, ctx.Self(), &sweep{})
		}

	case *actor.Stopping:
		a.logger.Info("Board actor stopping", zap.Int("subscribers", a.hub.len()))
		if a.sweepCancel != nil {
			a.sweepCancel()
			a.sweepCancel = nil
		}
		for _, p := range a.pending {
			p.cancel()
		}
		a.hub.closeAll()

	case *actor.Stopped:
		a.logger.Info("Board actor stopped")
	}
}

func (a *boardActor) onStartSession(ctx actor.Context, msg *startSession) {
	if p, ok := a.pending[msg.sessionID]; ok {
		a.finalize(msg.sessionID, p, "session restarted")
	}

	order, err := a.store.Create(msg.sessionID)
	if err != nil {
		a.logger.Error("Failed to create order",
			zap.String("session_id", msg.sessionID),
			zap.Error(err))
		ctx.Respond(&reply{err: err})
		return
	}

	a.logger.Info("Order created",
		zap.String("session_id", order.ID),
		zap.Int("order_number", order.OrderNumber))
	a.broadcast(EventNew, &order, "")
	ctx.Respond(&reply{order: order, found: true})
}

func (a *boardActor) onDelete(ctx actor.Context, msg *deleteOrder) {
	a.generation++

	if p, ok := a.pending[msg.sessionID]; ok {
		// Already staged: restart the window instead of stacking timers.
		p.cancel()
		p.generation = a.generation
		p.cancel = a.timers.SendOnce(a.undoWindow, ctx.Self(), &purgeDeletion{sessionID: msg.sessionID, generation: p.generation})
		a.logger.Info("Pending deletion extended", zap.String("session_id", msg.sessionID))
		ctx.Respond(&reply{order: p.order, found: true})
		return
	}

	order, found := a.store.Delete(msg.sessionID)
	if !found {
		ctx.Respond(&reply{err: orders.ErrNotFound})
		return
	}

	p := &pendingDeletion{order: order, generation: a.generation}
	p.cancel = a.timers.SendOnce(a.undoWindow, ctx.Self(), &purgeDeletion{sessionID: msg.sessionID, generation: p.generation})
	a.pending[msg.sessionID] = p

	a.logger.Info("Order deleted, undo available",
		zap.String("session_id", order.ID),
		zap.Int("order_number", order.OrderNumber),
		zap.Duration("undo_window", a.undoWindow))
	a.broadcast(EventDelete, nil, order.ID)
	ctx.Respond(&reply{order: order, found: true})
}

func (a *boardActor) onUndo(ctx actor.Context, msg *undoDelete) {
	p, ok := a.pending[msg.sessionID]
	if !ok {
		ctx.Respond(&reply{err: ErrNothingToUndo})
		return
	}
	if err := a.store.Restore(p.order); err != nil {
		ctx.Respond(&reply{err: err})
		return
	}
	p.cancel()
	delete(a.pending, msg.sessionID)

	order, _ := a.store.Get(msg.sessionID)
	a.logger.Info("Order deletion undone",
		zap.String("session_id", order.ID),
		zap.Int("order_number", order.OrderNumber))
	a.broadcast(EventNew, &order, "")
	ctx.Respond(&reply{order: order, found: true})
}

func (a *boardActor) finalize(sessionID string, p *pendingDeletion, reason string) {
	p.cancel()
	delete(a.pending, sessionID)
	a.store.Forget(sessionID)
	a.logger.Info("Order deletion finalized",
		zap.String("session_id", sessionID),
		zap.Int("order_number", p.order.OrderNumber),
		zap.String("reason", reason))
	a.archive(p.order, reason)
}

func (a *boardActor) broadcast(eventType EventType, order *models.Order, id string) {
	a.seq++
	a.hub.publish(Event{
		Type:       eventType,
		Seq:        a.seq,
		OccurredAt: a.now(),
		Order:      order,
		ID:         id,
	})
}

func (a *boardActor) archive(order models.Order, reason string) {
	if a.archiver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.archiver.Archive(ctx, order, reason); err != nil {
			a.logger.Warn("Failed to archive order",
				zap.String("session_id", order.ID),
				zap.Error(err))
		}
	}()
}

func (a *boardActor) logMutationError(msg, sessionID string, err error) {
	if errors.Is(err, orders.ErrNotFound) {
		a.logger.Warn(msg, zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	a.logger.Error(msg, zap.String("session_id", sessionID), zap.Error(err))
}
