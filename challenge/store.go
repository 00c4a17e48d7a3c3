package challenge

import (
	"context"
	"errors"

	"github.com/sevenday/challenge/server/model"
	"gorm.io/gorm"
)

var (
	// ErrNoActiveChallenge is returned when the user has no active instance.
	ErrNoActiveChallenge = errors.New("challenge: no active challenge")
	// ErrConflict is returned when the instance changed since it was read.
	// Callers re-read and retry.
	ErrConflict = errors.New("challenge: instance was modified concurrently")
)

// Save writes inst's mutable columns if its version still matches the stored
// one, and bumps the version. On error inst.Version is left unchanged.
func Save(ctx context.Context, db *gorm.DB, inst *model.ChallengeInstance) error {
	prev := inst.Version
	inst.Version = prev + 1
	res := db.WithContext(ctx).Model(&model.ChallengeInstance{}).
		Where("id = ? AND version = ?", inst.ID, prev).
		Updates(inst.Columns())
	if res.Error != nil {
		inst.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		inst.Version = prev
		return ErrConflict
	}
	return nil
}

// Find loads an instance by id.
func Find(ctx context.Context, db *gorm.DB, id int64) (*model.ChallengeInstance, error) {
	var inst model.ChallengeInstance
	if err := db.WithContext(ctx).First(&inst, id).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func findActive(ctx context.Context, db *gorm.DB, userID string) (*model.ChallengeInstance, error) {
	var inst model.ChallengeInstance
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.ChallengeActive).
		Order("id DESC").First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveChallenge
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
