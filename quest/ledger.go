package quest

import (
	"context"
	"errors"
	"time"

	"github.com/sevenday/challenge/server/model"
	"gorm.io/gorm"
)

// ErrDuplicateEntry is returned by Append when the dedupe key already exists.
var ErrDuplicateEntry = errors.New("quest: ledger entry already exists")

// Ledger is the append-only record of quest completions.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a Ledger over db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx returns a Ledger bound to tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// Append inserts c. It never updates an existing entry.
func (l *Ledger) Append(ctx context.Context, c *model.QuestCompletion) error {
	if err := l.db.WithContext(ctx).Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEntry
		}
		return err
	}
	return nil
}

// HasCompleted reports whether userID ever completed questID, in any instance.
func (l *Ledger) HasCompleted(ctx context.Context, userID, questID string) (bool, error) {
	var rows []model.QuestCompletion
	err := l.db.WithContext(ctx).Select("id").
		Where("user_id = ? AND quest_id = ?", userID, questID).
		Limit(1).Find(&rows).Error
	return len(rows) > 0, err
}

// CountBetween counts entries of questID in instanceID with completed_at in [from, to).
func (l *Ledger) CountBetween(ctx context.Context, instanceID int64, questID string, from, to time.Time) (int, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&model.QuestCompletion{}).
		Where("challenge_instance_id = ? AND quest_id = ? AND completed_at >= ? AND completed_at < ?",
			instanceID, questID, from.UTC(), to.UTC()).
		Count(&n).Error
	return int(n), err
}

// CountForInstance counts all entries of questID in instanceID.
func (l *Ledger) CountForInstance(ctx context.Context, instanceID int64, questID string) (int, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&model.QuestCompletion{}).
		Where("challenge_instance_id = ? AND quest_id = ?", instanceID, questID).
		Count(&n).Error
	return int(n), err
}

// ForInstance returns every entry of instanceID, oldest first. An empty
// category returns all categories.
func (l *Ledger) ForInstance(ctx context.Context, instanceID int64, category string) ([]model.QuestCompletion, error) {
	q := l.db.WithContext(ctx).Where("challenge_instance_id = ?", instanceID)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var rows []model.QuestCompletion
	err := q.Order("completed_at ASC, id ASC").Find(&rows).Error
	return rows, err
}

// CompletedQuestIDs returns the distinct quest ids with at least one entry in instanceID.
func (l *Ledger) CompletedQuestIDs(ctx context.Context, instanceID int64) (map[string]bool, error) {
	var ids []string
	err := l.db.WithContext(ctx).Model(&model.QuestCompletion{}).
		Where("challenge_instance_id = ?", instanceID).
		Distinct().Pluck("quest_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// CompletedQuestIDsBetween returns the quest ids completed in instanceID within [from, to).
func (l *Ledger) CompletedQuestIDsBetween(ctx context.Context, instanceID int64, from, to time.Time) (map[string]bool, error) {
	var ids []string
	err := l.db.WithContext(ctx).Model(&model.QuestCompletion{}).
		Where("challenge_instance_id = ? AND completed_at >= ? AND completed_at < ?", instanceID, from.UTC(), to.UTC()).
		Distinct().Pluck("quest_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// UserQuestIDs returns every quest id userID has ever completed.
func (l *Ledger) UserQuestIDs(ctx context.Context, userID string) (map[string]bool, error) {
	var ids []string
	err := l.db.WithContext(ctx).Model(&model.QuestCompletion{}).
		Where("user_id = ?", userID).
		Distinct().Pluck("quest_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
