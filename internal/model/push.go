package model

import (
	"time"

	"gorm.io/datatypes"
)

// PushSubscription browser Web Push subscription (push_subscriptions)
type PushSubscription struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()" json:"subscription_id"`
	UserID    string    `gorm:"type:uuid;not null;index"                                 json:"user_id"`
	Endpoint  string    `gorm:"type:text;not null;uniqueIndex"                           json:"endpoint"`
	P256dh    string    `gorm:"column:p256dh;type:varchar(255);not null"                 json:"p256dh"`
	Auth      string    `gorm:"type:varchar(255);not null"                               json:"auth"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                       json:"created_at"`
}

// TableName table name
func (PushSubscription) TableName() string { return "push_subscriptions" }

// Delivery statuses
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
	DeliveryGone   = "gone" // 404/410, subscription pruned
)

// PushDelivery outcome of one push to one subscription (push_deliveries)
type PushDelivery struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()" json:"delivery_id"`
	RunID          string         `gorm:"type:uuid;not null;index"                                 json:"run_id"`
	SubscriptionID string         `gorm:"type:uuid;not null"                                       json:"subscription_id"`
	UserID         string         `gorm:"type:uuid;not null"                                       json:"user_id"`
	ScheduleID     string         `gorm:"type:uuid;not null"                                       json:"schedule_id"`
	Status         string         `gorm:"type:varchar(20);not null"                                json:"status"`
	Error          string         `gorm:"type:text;not null;default:''"                            json:"error,omitempty"`
	Payload        datatypes.JSON `gorm:"type:jsonb"                                               json:"payload,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"                       json:"created_at"`
}

// TableName table name
func (PushDelivery) TableName() string { return "push_deliveries" }
