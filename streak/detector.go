// Package streak detects broken daily-activity streaks.
package streak

import (
	"context"
	"errors"
	"time"

	"github.com/sevenday/challenge/server/calendar"
	"github.com/sevenday/challenge/server/challenge"
	"github.com/sevenday/challenge/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Detector breaks a streak once a full calendar day passed without an
// accepted completion.
type Detector struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDetector creates a Detector.
func NewDetector(db *gorm.DB, logger *zap.Logger) *Detector {
	return &Detector{db: db, logger: logger}
}

// Broken reports whether a streak last extended at last is broken at now.
func Broken(count int, last *time.Time, now time.Time) bool {
	if count <= 0 || last == nil {
		return false
	}
	return calendar.DaysBetween(*last, now) >= 2
}

// CheckStreakBreak resets the stored streak of instanceID when it is broken.
func (d *Detector) CheckStreakBreak(ctx context.Context, userID string, instanceID int64, now time.Time) (challenge.StreakResult, error) {
	inst, err := challenge.Find(ctx, d.db, instanceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return challenge.StreakResult{}, nil
	}
	if err != nil {
		return challenge.StreakResult{}, err
	}
	if !Broken(inst.StreakCount, inst.LastStreakDate, now) {
		return challenge.StreakResult{}, nil
	}

	res := d.db.WithContext(ctx).Model(&model.ChallengeInstance{}).
		Where("id = ? AND version = ?", inst.ID, inst.Version).
		Updates(map[string]interface{}{
			"streak_count": 0,
			"version":      inst.Version + 1,
		})
	if res.Error != nil {
		return challenge.StreakResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		return challenge.StreakResult{}, challenge.ErrConflict
	}
	d.logger.Info("streak broken",
		zap.String("user_id", userID),
		zap.Int64("instance_id", instanceID),
		zap.Int("streak", inst.StreakCount))
	return challenge.StreakResult{StreakBroken: true}, nil
}
