// Package events forwards board events to a message bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/drivethru/pkg/board"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, msg []byte) error
}

// BoardPublisher is a board.Sink that publishes every mutation as JSON on
// <prefix>.new, <prefix>.update and <prefix>.delete. Snapshots are per
// subscriber and are not published.
type BoardPublisher struct {
	pub    Publisher
	prefix string
}

func NewBoardPublisher(pub Publisher, prefix string) *BoardPublisher {
	return &BoardPublisher{pub: pub, prefix: strings.TrimSuffix(prefix, ".")}
}

func (p *BoardPublisher) Name() string { return "nats-publisher" }

func (p *BoardPublisher) HandleEvent(ctx context.Context, ev board.Event) error {
	if ev.Type == board.EventInit {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	return p.pub.Publish(ctx, Subject(p.prefix, ev.Type), data)
}

// Subject maps an event type to its bus subject, e.g. order:update -> kiosk.orders.update.
func Subject(prefix string, t board.EventType) string {
	name := string(t)
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	return prefix + "." + name
}

// Wildcard matches every subject published under prefix.
func Wildcard(prefix string) string {
	return strings.TrimSuffix(prefix, ".") + ".*"
}
