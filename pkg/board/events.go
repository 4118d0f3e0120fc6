package board

import (
	"encoding/json"
	"time"

	"github.com/example/drivethru/pkg/models"
)

type EventType string

const (
	EventInit   EventType = "orders:init"
	EventNew    EventType = "order:new"
	EventUpdate EventType = "order:update"
	EventDelete EventType = "order:delete"
)

// Event is one message on the board feed. Seq increases with every mutation;
// an init event carries the Seq of the last mutation included in its snapshot.
// Events are shared between subscribers and must be treated as read-only.
type Event struct {
	Type       EventType      `json:"type"`
	Seq        uint64         `json:"seq"`
	OccurredAt time.Time      `json:"occurredAt"`
	Order      *models.Order  `json:"order,omitempty"`
	Orders     []models.Order `json:"orders,omitempty"`
	ID         string         `json:"id,omitempty"`
}

// SessionID returns the id of the order the event refers to.
func (e Event) SessionID() string {
	if e.Order != nil {
		return e.Order.ID
	}
	return e.ID
}

// MarshalJSON always emits the orders array on init events, even when the board is empty.
func (e Event) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type       EventType       `json:"type"`
		Seq        uint64          `json:"seq"`
		OccurredAt time.Time       `json:"occurredAt"`
		Order      *models.Order   `json:"order,omitempty"`
		Orders     *[]models.Order `json:"orders,omitempty"`
		ID         string          `json:"id,omitempty"`
	}
	out := wire{
		Type:       e.Type,
		Seq:        e.Seq,
		OccurredAt: e.OccurredAt,
		Order:      e.Order,
		ID:         e.ID,
	}
	if e.Type == EventInit {
		list := e.Orders
		if list == nil {
			list = []models.Order{}
		}
		out.Orders = &list
	}
	return json.Marshal(out)
}
