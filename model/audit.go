package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records completion attempts and other challenge actions.
type AuditLog struct {
	ID                  int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID             string         `gorm:"index:idx_audit_trace;size:64" json:"trace_id"`
	UserID              string         `gorm:"index:idx_audit_user;size:64" json:"user_id"`
	ChallengeInstanceID *int64         `json:"challenge_instance_id"`
	QuestID             string         `gorm:"size:64" json:"quest_id"`
	Action              string         `gorm:"size:64;not null" json:"action"`
	Outcome             string         `gorm:"size:32" json:"outcome"`
	Request             datatypes.JSON `json:"request"`
	Response            datatypes.JSON `json:"response"`
	Error               string         `gorm:"type:text" json:"error"`
	DurationMs          int            `json:"duration_ms"`
	CreatedAt           time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
