package model

import (
	"time"

	"gorm.io/datatypes"
)

// SubflowRecord stores the structured output of a dedicated sub-flow
// (conversation log, milestone, flow compass, groan reflection).
type SubflowRecord struct {
	ID                  int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              string         `gorm:"index:idx_subflow_user_kind,priority:1;size:64;not null" json:"user_id"`
	Kind                string         `gorm:"index:idx_subflow_user_kind,priority:2;size:32;not null" json:"kind"`
	ChallengeInstanceID int64          `json:"challenge_instance_id"`
	QuestID             string         `gorm:"size:64" json:"quest_id"`
	Data                datatypes.JSON `json:"data"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// FeatureFlag marks a feature a user has finished; quests can be gated on it.
type FeatureFlag struct {
	UserID      string    `gorm:"primaryKey;size:64" json:"user_id"`
	Feature     string    `gorm:"primaryKey;size:64" json:"feature"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
}
