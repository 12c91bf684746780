package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DeliveryKindAuto = "auto"
	DeliveryKindBulk = "bulk"
)

// WebhookDelivery is a best-effort audit row for every outbound dispatch to the
// scoring webhook. Deliveries are never retried; failures live here and in the
// logs only.
type WebhookDelivery struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID    string         `gorm:"index;column:thread_id" json:"thread_id,omitempty"`
	Kind        string         `gorm:"not null;column:kind" json:"kind"`
	Success     bool           `gorm:"not null;column:success" json:"success"`
	HTTPStatus  int            `gorm:"column:http_status" json:"http_status"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	ThreadCount int            `gorm:"not null;column:thread_count" json:"thread_count"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
