package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuestCompletion is an immutable ledger entry recording that a user finished a quest.
type QuestCompletion struct {
	ID                  int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              string         `gorm:"index:idx_completion_user_quest,priority:1;size:64;not null" json:"user_id"`
	ChallengeInstanceID int64          `gorm:"index:idx_completion_instance_quest,priority:1;not null" json:"challenge_instance_id"`
	QuestID             string         `gorm:"index:idx_completion_user_quest,priority:2;index:idx_completion_instance_quest,priority:2;size:64;not null" json:"quest_id"`
	Category            string         `gorm:"size:32;not null" json:"category"`
	Type                string         `gorm:"size:32" json:"type"`
	PointsEarned        int            `gorm:"not null" json:"points_earned"`
	ChallengeDay        int            `json:"challenge_day"`
	CompletedAt         time.Time      `gorm:"index:idx_completion_completed;not null" json:"completed_at"`
	Payload             datatypes.JSON `json:"payload"`
	// DedupeKey makes the ledger insert an "insert if not exists".
	DedupeKey string `gorm:"uniqueIndex:idx_completion_dedupe;size:191;not null" json:"-"`
}
