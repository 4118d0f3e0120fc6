package models

import (
	"time"
)

type ConversationStatus string

const (
	ConversationInProgress ConversationStatus = "in_progress"
	ConversationComplete   ConversationStatus = "complete"
)

func (s ConversationStatus) Valid() bool {
	return s == ConversationInProgress || s == ConversationComplete
}

type KitchenStatus string

const (
	KitchenWaiting   KitchenStatus = "waiting"
	KitchenPreparing KitchenStatus = "preparing"
	KitchenReady     KitchenStatus = "ready"
	KitchenCompleted KitchenStatus = "completed"
)

// KitchenStatuses lists the fulfillment stages in pipeline order.
var KitchenStatuses = []KitchenStatus{
	KitchenWaiting,
	KitchenPreparing,
	KitchenReady,
	KitchenCompleted,
}

func (s KitchenStatus) Valid() bool {
	for _, known := range KitchenStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Order is one customer session as shown on the kitchen board.
// Items and Total are always replaced as a whole by the agent.
type Order struct {
	ID                 string             `json:"id"`
	OrderNumber        int                `json:"orderNumber"`
	Items              []LineItem         `json:"items"`
	Total              float64            `json:"total"`
	ConversationStatus ConversationStatus `json:"conversationStatus"`
	KitchenStatus      KitchenStatus      `json:"kitchenStatus"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	CompletedAt        *time.Time         `json:"completedAt,omitempty"`
	KitchenCompletedAt *time.Time         `json:"kitchenCompletedAt,omitempty"`
}

type LineItem struct {
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	UnitPrice float64  `json:"unitPrice"`
	Size      *string  `json:"size,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// Clone returns a deep copy so callers never share slices or timestamps with the store.
func (o Order) Clone() Order {
	out := o
	out.Items = CloneItems(o.Items)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		out.CompletedAt = &t
	}
	if o.KitchenCompletedAt != nil {
		t := *o.KitchenCompletedAt
		out.KitchenCompletedAt = &t
	}
	return out
}

func CloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item
		if item.Size != nil {
			size := *item.Size
			out[i].Size = &size
		}
		if item.Modifiers != nil {
			out[i].Modifiers = append([]string(nil), item.Modifiers...)
		}
	}
	return out
}

// ItemsTotal sums quantity * unit price over the line items.
func ItemsTotal(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		total += float64(item.Quantity) * item.UnitPrice
	}
	return total
}
