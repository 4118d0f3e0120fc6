package board

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultSubscriberBuffer = 256

// Subscription is a live feed of board events. The first event is always
// EventInit. Events is closed when the subscription ends; the holder should
// subscribe again to resynchronize.
type Subscription struct {
	ID     string
	Name   string
	Events <-chan Event
}

type subscriber struct {
	id   string
	name string
	ch   chan Event
}

// hub fans events out to subscribers. Only the board actor touches it.
type hub struct {
	subs   map[string]*subscriber
	buffer int
	logger *zap.Logger
}

func newHub(buffer int, logger *zap.Logger) *hub {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	return &hub{
		subs:   make(map[string]*subscriber),
		buffer: buffer,
		logger: logger,
	}
}

// add registers a subscriber with snapshot queued ahead of any later event.
func (h *hub) add(name string, snapshot Event) *Subscription {
	sub := &subscriber{
		id:   uuid.New().String(),
		name: name,
		ch:   make(chan Event, h.buffer),
	}
	sub.ch <- snapshot
	h.subs[sub.id] = sub

	h.logger.Info("Subscriber added",
		zap.String("subscriber_id", sub.id),
		zap.String("name", name),
		zap.Int("snapshot", len(snapshot.Orders)),
		zap.Int("subscribers", len(h.subs)))

	return &Subscription{ID: sub.id, Name: name, Events: sub.ch}
}

func (h *hub) remove(id string) bool {
	sub, ok := h.subs[id]
	if !ok {
		return false
	}
	delete(h.subs, id)
	close(sub.ch)
	h.logger.Info("Subscriber removed",
		zap.String("subscriber_id", id),
		zap.String("name", sub.name),
		zap.Int("subscribers", len(h.subs)))
	return true
}

// publish queues ev for every subscriber. A subscriber whose buffer is full is
// dropped rather than skipped, so a live feed never has gaps.
func (h *hub) publish(ev Event) {
	for id, sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("Subscriber too slow, dropping subscription",
				zap.String("subscriber_id", id),
				zap.String("name", sub.name),
				zap.Uint64("seq", ev.Seq))
			delete(h.subs, id)
			close(sub.ch)
		}
	}
}

func (h *hub) closeAll() {
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *hub) len() int {
	return len(h.subs)
}
