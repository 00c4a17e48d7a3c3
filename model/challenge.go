package model

import "time"

// Category groups quests on the challenge board.
type Category = string

const (
	CategoryFlowFinder Category = "flow_finder"
	CategoryDaily      Category = "daily"
	CategoryWeekly     Category = "weekly"
	CategoryBonus      Category = "bonus"
	CategoryTracker    Category = "tracker"
)

// Categories lists every quest category in board order.
var Categories = []Category{
	CategoryFlowFinder,
	CategoryDaily,
	CategoryWeekly,
	CategoryBonus,
	CategoryTracker,
}

// Pillar is one of the four canonical types of Daily/Weekly quests.
type Pillar = string

const (
	PillarRecognise Pillar = "recognise"
	PillarRelease   Pillar = "release"
	PillarRewire    Pillar = "rewire"
	PillarReconnect Pillar = "reconnect"
)

// Pillars lists the four canonical pillars.
var Pillars = []Pillar{PillarRecognise, PillarRelease, PillarRewire, PillarReconnect}

// IsPillar reports whether p names a canonical pillar.
func IsPillar(p string) bool {
	for _, v := range Pillars {
		if v == p {
			return true
		}
	}
	return false
}

// IsPillarCategory reports whether quests of cat keep per-pillar counters.
func IsPillarCategory(cat string) bool {
	return cat == CategoryDaily || cat == CategoryWeekly
}

// ChallengeStatus is the lifecycle state of a challenge instance.
type ChallengeStatus = string

const (
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
)

// ChallengeInstance is one user's run through the 7-day challenge.
type ChallengeInstance struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             string     `gorm:"index:idx_challenge_user;size:64;not null" json:"user_id"`
	GroupID            *string    `gorm:"index:idx_challenge_group;size:64" json:"group_id"`
	Status             string     `gorm:"index:idx_challenge_status;size:16;not null" json:"status"`
	CurrentDay         int        `gorm:"default:0" json:"current_day"`
	ChallengeStartDate time.Time  `gorm:"not null" json:"challenge_start_date"`
	LastActiveDate     time.Time  `gorm:"not null" json:"last_active_date"`
	TotalPoints        int        `gorm:"default:0" json:"total_points"`
	StreakCount        int        `gorm:"default:0" json:"streak_count"`
	LastStreakDate     *time.Time `json:"last_streak_date"`
	Persona            string     `gorm:"size:64" json:"persona"`
	CurrentStage       string     `gorm:"size:64" json:"current_stage"`

	RecogniseDailyPoints  int `gorm:"default:0" json:"recognise_daily_points"`
	RecogniseWeeklyPoints int `gorm:"default:0" json:"recognise_weekly_points"`
	ReleaseDailyPoints    int `gorm:"default:0" json:"release_daily_points"`
	ReleaseWeeklyPoints   int `gorm:"default:0" json:"release_weekly_points"`
	RewireDailyPoints     int `gorm:"default:0" json:"rewire_daily_points"`
	RewireWeeklyPoints    int `gorm:"default:0" json:"rewire_weekly_points"`
	ReconnectDailyPoints  int `gorm:"default:0" json:"reconnect_daily_points"`
	ReconnectWeeklyPoints int `gorm:"default:0" json:"reconnect_weekly_points"`

	// Version guards updates: writers match on it and bump it.
	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ci *ChallengeInstance) counter(pillar Pillar, cat Category) *int {
	weekly := cat == CategoryWeekly
	switch pillar {
	case PillarRecognise:
		if weekly {
			return &ci.RecogniseWeeklyPoints
		}
		return &ci.RecogniseDailyPoints
	case PillarRelease:
		if weekly {
			return &ci.ReleaseWeeklyPoints
		}
		return &ci.ReleaseDailyPoints
	case PillarRewire:
		if weekly {
			return &ci.RewireWeeklyPoints
		}
		return &ci.RewireDailyPoints
	case PillarReconnect:
		if weekly {
			return &ci.ReconnectWeeklyPoints
		}
		return &ci.ReconnectDailyPoints
	}
	return nil
}

// PillarPoints returns the stored counter for pillar within cat (daily or weekly).
func (ci *ChallengeInstance) PillarPoints(pillar Pillar, cat Category) int {
	if !IsPillarCategory(cat) {
		return 0
	}
	if p := ci.counter(pillar, cat); p != nil {
		return *p
	}
	return 0
}

// AddPillarPoints bumps the pillar counter. It reports false when
// pillar/cat do not name a counter.
func (ci *ChallengeInstance) AddPillarPoints(pillar Pillar, cat Category, pts int) bool {
	if !IsPillarCategory(cat) {
		return false
	}
	p := ci.counter(pillar, cat)
	if p == nil {
		return false
	}
	*p += pts
	return true
}

// Columns returns the mutable columns written on every instance update.
func (ci *ChallengeInstance) Columns() map[string]interface{} {
	return map[string]interface{}{
		"group_id":                ci.GroupID,
		"status":                  ci.Status,
		"current_day":             ci.CurrentDay,
		"last_active_date":        ci.LastActiveDate,
		"total_points":            ci.TotalPoints,
		"streak_count":            ci.StreakCount,
		"last_streak_date":        ci.LastStreakDate,
		"persona":                 ci.Persona,
		"current_stage":           ci.CurrentStage,
		"recognise_daily_points":  ci.RecogniseDailyPoints,
		"recognise_weekly_points": ci.RecogniseWeeklyPoints,
		"release_daily_points":    ci.ReleaseDailyPoints,
		"release_weekly_points":   ci.ReleaseWeeklyPoints,
		"rewire_daily_points":     ci.RewireDailyPoints,
		"rewire_weekly_points":    ci.RewireWeeklyPoints,
		"reconnect_daily_points":  ci.ReconnectDailyPoints,
		"reconnect_weekly_points": ci.ReconnectWeeklyPoints,
		"version":                 ci.Version,
	}
}
