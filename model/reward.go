package model

import "time"

// ArtifactUnlock is the persisted, one-way unlocked flag of an artifact.
type ArtifactUnlock struct {
	ChallengeInstanceID int64     `gorm:"primaryKey" json:"challenge_instance_id"`
	ArtifactID          string    `gorm:"primaryKey;size:64" json:"artifact_id"`
	UnlockedAt          time.Time `gorm:"not null" json:"unlocked_at"`
}

// BonusAward records the one-time tab completion bonus of a category.
type BonusAward struct {
	ChallengeInstanceID int64     `gorm:"primaryKey" json:"challenge_instance_id"`
	Category            string    `gorm:"primaryKey;size:32" json:"category"`
	Points              int       `gorm:"not null" json:"points"`
	AwardedAt           time.Time `gorm:"not null" json:"awarded_at"`
}
