package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the dedup record for provider events. The unique event_id
// is the sole idempotency mechanism for webhook processing.
type WebhookEvent struct {
	ID        string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID   string         `gorm:"column:event_id;type:varchar(255);not null;uniqueIndex" json:"event_id"`
	EventType string         `gorm:"column:event_type;type:varchar(64);not null" json:"event_type"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Processed bool           `gorm:"column:processed;not null;default:false" json:"processed"`
	// Error holds the last handler failure; the event is still acked.
	Error     *string   `gorm:"column:error;type:text" json:"error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_event"
}
