package types

import (
	"time"
)

const (
	RespondedYes = "Yes"
	RespondedNo  = "No"

	ConvertedYes = "Yes"
)

// ScoreFields are the thread columns written by the external scoring callback.
// Order matters nowhere; the set does.
var ScoreFields = []string{
	"acknowledgment_score",
	"engagement_score",
	"conversion_score",
}

// Thread is the mutable per-conversation summary. Every field except the three
// scores is a pure function of the thread's message set at last recomputation;
// the scores arrive later from the external scorer and are reset to null on
// every new message.
type Thread struct {
	ThreadID               string     `gorm:"primaryKey;column:thread_id" json:"thread_id"`
	Operator               string     `gorm:"not null;index;column:operator" json:"operator"`
	Model                  string     `gorm:"not null;index;column:model" json:"model"`
	Converted              *string    `gorm:"column:converted" json:"converted"`
	LastMessageAt          *time.Time `gorm:"index;column:last_message_at" json:"last_message_at"`
	AvgResponseTimeSeconds *float64   `gorm:"column:avg_response_time_seconds" json:"avg_response_time"`
	Responded              string     `gorm:"not null;default:'No';column:responded" json:"responded"`
	IncomingCount          int        `gorm:"not null;default:0;column:incoming_count" json:"incoming_count"`
	OutgoingCount          int        `gorm:"not null;default:0;column:outgoing_count" json:"outgoing_count"`
	AcknowledgmentScore    *int       `gorm:"column:acknowledgment_score" json:"acknowledgment_score"`
	EngagementScore        *int       `gorm:"column:engagement_score" json:"engagement_score"`
	ConversionScore        *int       `gorm:"column:conversion_score" json:"conversion_score"`
	LastDispatchedAt       *time.Time `gorm:"column:last_dispatched_at" json:"last_dispatched_at"`
	CreatedAt              time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`

	// Populated only when the caller asks for the chat view.
	Messages []*Message `gorm:"-" json:"messages,omitempty"`
}

func (Thread) TableName() string {
	return "threads"
}

// Analyzed reports whether every score field has been filled in by the scorer.
func (t *Thread) Analyzed() bool {
	return t.AcknowledgmentScore != nil && t.EngagementScore != nil && t.ConversionScore != nil
}

// ThreadFilter is a conjunction of optional predicates over threads. Zero-value
// fields do not restrict the result.
type ThreadFilter struct {
	Operators       []string
	Models          []string
	Start           *time.Time
	End             *time.Time
	Since           time.Duration // relative last_message_at cutoff; 0 means all
	AnalyzedOnly    bool
	LastMessageType string // "incoming" or "outgoing"; "" means any
}

// FilterValues are the distinct operator/model values currently present,
// served to the dashboard's filter dropdowns.
type FilterValues struct {
	Operators []string `json:"operators"`
	Models    []string `json:"models"`
}

// ThreadStats are the aggregate metrics computed over a filtered thread set.
type ThreadStats struct {
	TotalThreads           int      `json:"total_threads"`
	Responded              int      `json:"responded"`
	AwaitingReply          int      `json:"awaiting_reply"`
	Converted              int      `json:"converted"`
	Analyzed               int      `json:"analyzed"`
	AvgResponseTimeSeconds *float64 `json:"avg_response_time"`
	TotalMessages          int      `json:"total_messages"`
}
