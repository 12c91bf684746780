package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Message is an append-only chat log entry. Rows are never updated or deleted.
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID  string    `gorm:"not null;index;column:thread_id" json:"thread_id"`
	Operator  string    `gorm:"not null;column:operator" json:"operator"`
	Model     string    `gorm:"not null;column:model" json:"model"`
	Direction string    `gorm:"not null;column:direction" json:"direction"`
	Text      string    `gorm:"not null;column:text" json:"text"`
	CreatedAt time.Time `gorm:"not null;index;autoCreateTime" json:"timestamp"`
}

func (Message) TableName() string {
	return "messages"
}

func ValidDirection(direction string) bool {
	return direction == DirectionIncoming || direction == DirectionOutgoing
}
