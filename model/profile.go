package model

import "time"

// Profile holds the public display name of a user.
type Profile struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	Name      string    `gorm:"size:128" json:"name"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
