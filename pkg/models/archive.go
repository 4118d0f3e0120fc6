package models

import (
	"time"
)

// ArchivedOrder is the row kept for an order after it leaves the board.
type ArchivedOrder struct {
	ID                 uint       `gorm:"primaryKey" json:"-"`
	SessionID          string     `gorm:"type:varchar(64);not null;index" json:"id"`
	OrderNumber        int        `gorm:"not null" json:"orderNumber"`
	Items              string     `gorm:"type:text" json:"items"` // JSON string
	Total              float64    `gorm:"type:decimal(10,2)" json:"total"`
	ConversationStatus string     `gorm:"type:varchar(20)" json:"conversationStatus"`
	KitchenStatus      string     `gorm:"type:varchar(20)" json:"kitchenStatus"`
	Reason             string     `gorm:"type:varchar(64)" json:"reason"`
	OrderCreatedAt     time.Time  `json:"createdAt"`
	OrderUpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	KitchenCompletedAt *time.Time `json:"kitchenCompletedAt,omitempty"`
	ArchivedAt         time.Time  `gorm:"index" json:"archivedAt"`
}

func (ArchivedOrder) TableName() string {
	return "archived_orders"
}
