// Package reward derives category points, evaluates artifact unlocks and
// awards the one-time tab completion bonus.
package reward

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/sevenday/challenge/server/challenge"
	"github.com/sevenday/challenge/server/hook"
	"github.com/sevenday/challenge/server/model"
	"github.com/sevenday/challenge/server/quest"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultBonusRate is the share of a category's eligible points paid as bonus.
const DefaultBonusRate = 0.05

const bonusRetries = 3

// Accountant answers point and artifact questions about an instance.
type Accountant struct {
	db          *gorm.DB
	catalog     *quest.Catalog
	eligibility *quest.Eligibility
	ledger      *quest.Ledger
	rate        float64
	hooks       *hook.Center
	logger      *zap.Logger
}

// NewAccountant creates an Accountant. A non-positive rate uses DefaultBonusRate.
func NewAccountant(db *gorm.DB, catalog *quest.Catalog, eligibility *quest.Eligibility, rate float64, logger *zap.Logger) *Accountant {
	if rate <= 0 {
		rate = DefaultBonusRate
	}
	return &Accountant{
		db:          db,
		catalog:     catalog,
		eligibility: eligibility,
		ledger:      quest.NewLedger(db),
		rate:        rate,
		logger:      logger,
	}
}

// SetHooks attaches the event center.
func (a *Accountant) SetHooks(h *hook.Center) { a.hooks = h }

// CategoryPoints returns the current points of inst in category. Daily and
// Weekly read the stored pillar counters; other categories sum the ledger
// entries of quests that are eligible right now.
func (a *Accountant) CategoryPoints(ctx context.Context, inst *model.ChallengeInstance, category string) (int, error) {
	if model.IsPillarCategory(category) {
		total := 0
		for _, p := range model.Pillars {
			total += inst.PillarPoints(p, category)
		}
		return total, nil
	}
	entries, err := a.ledger.ForInstance(ctx, inst.ID, category)
	if err != nil {
		return 0, err
	}
	valid := a.eligibility.ValidQuestIDs(category, inst.Persona, inst.CurrentStage)
	total := 0
	for _, e := range entries {
		if _, ok := valid[e.QuestID]; ok {
			total += e.PointsEarned
		}
	}
	return total, nil
}

// EligiblePoints sums the points of every quest currently eligible in category.
func (a *Accountant) EligiblePoints(inst *model.ChallengeInstance, category string) int {
	total := 0
	for _, q := range a.eligibility.Quests(category, inst.Persona, inst.CurrentStage) {
		total += q.Points
	}
	return total
}

// PillarProgress is one pillar row of a Daily/Weekly artifact.
type PillarProgress struct {
	Pillar         string `json:"pillar"`
	Daily          int    `json:"daily"`
	DailyRequired  int    `json:"daily_required"`
	Weekly         int    `json:"weekly"`
	WeeklyRequired int    `json:"weekly_required"`
}

// Met reports whether both thresholds are reached; the bounds are inclusive.
func (p PillarProgress) Met() bool {
	return p.Daily >= p.DailyRequired && p.Weekly >= p.WeeklyRequired
}

// Progress is the live state of one artifact.
type Progress struct {
	ArtifactID string           `json:"artifact_id"`
	Name       string           `json:"name,omitempty"`
	Category   string           `json:"category"`
	Points     int              `json:"points,omitempty"`
	Required   int              `json:"required,omitempty"`
	Pillars    []PillarProgress `json:"pillars,omitempty"`
	Met        bool             `json:"met"`
	Unlocked   bool             `json:"unlocked"`
}

// Evaluate computes the live progress of art. Unlocked is left false.
func (a *Accountant) Evaluate(ctx context.Context, inst *model.ChallengeInstance, art *quest.Artifact) (*Progress, error) {
	p := &Progress{ArtifactID: art.ID, Name: art.Name, Category: art.Category}

	if model.IsPillarCategory(art.Category) {
		pillars := make([]string, 0, len(art.Pillars))
		for name := range art.Pillars {
			pillars = append(pillars, name)
		}
		sort.Strings(pillars)
		p.Met = len(pillars) > 0
		for _, name := range pillars {
			req := art.Pillars[name]
			row := PillarProgress{
				Pillar:         name,
				Daily:          inst.PillarPoints(name, model.CategoryDaily),
				DailyRequired:  req.DailyPointsRequired,
				Weekly:         inst.PillarPoints(name, model.CategoryWeekly),
				WeeklyRequired: req.WeeklyPointsRequired,
			}
			p.Pillars = append(p.Pillars, row)
			if !row.Met() {
				p.Met = false
			}
		}
		return p, nil
	}

	points, err := a.CategoryPoints(ctx, inst, art.Category)
	if err != nil {
		return nil, err
	}
	p.Points = points
	if art.Category == model.CategoryFlowFinder {
		p.Required = a.EligiblePoints(inst, art.Category)
	} else {
		p.Required = art.PointsRequired
	}
	p.Met = p.Required > 0 && p.Points >= p.Required
	return p, nil
}

// IsUnlocked reports whether art is unlocked for inst. Unlock is one-way:
// the first time the threshold is met the flag is persisted and later
// eligibility changes never relock it.
func (a *Accountant) IsUnlocked(ctx context.Context, inst *model.ChallengeInstance, art *quest.Artifact) (bool, error) {
	p, err := a.progress(ctx, inst, art, nil)
	if err != nil {
		return false, err
	}
	return p.Unlocked, nil
}

// Artifacts returns the state of every catalog artifact for inst.
func (a *Accountant) Artifacts(ctx context.Context, inst *model.ChallengeInstance) ([]*Progress, error) {
	unlocked, err := a.Unlocks(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*Progress, 0, len(a.catalog.Artifacts()))
	for _, art := range a.catalog.Artifacts() {
		p, err := a.progress(ctx, inst, art, unlocked)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (a *Accountant) progress(ctx context.Context, inst *model.ChallengeInstance, art *quest.Artifact, unlocked map[string]time.Time) (*Progress, error) {
	p, err := a.Evaluate(ctx, inst, art)
	if err != nil {
		return nil, err
	}
	if unlocked == nil {
		var n int64
		if err := a.db.WithContext(ctx).Model(&model.ArtifactUnlock{}).
			Where("challenge_instance_id = ? AND artifact_id = ?", inst.ID, art.ID).
			Count(&n).Error; err != nil {
			return nil, err
		}
		if n > 0 {
			p.Unlocked = true
			return p, nil
		}
	} else if _, ok := unlocked[art.ID]; ok {
		p.Unlocked = true
		return p, nil
	}
	if !p.Met {
		return p, nil
	}
	if err := a.unlock(ctx, inst, art.ID); err != nil {
		return nil, err
	}
	p.Unlocked = true
	return p, nil
}

func (a *Accountant) unlock(ctx context.Context, inst *model.ChallengeInstance, artifactID string) error {
	res := a.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.ArtifactUnlock{
		ChallengeInstanceID: inst.ID,
		ArtifactID:          artifactID,
		UnlockedAt:          time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	a.logger.Info("artifact unlocked",
		zap.String("user_id", inst.UserID),
		zap.Int64("instance_id", inst.ID),
		zap.String("artifact_id", artifactID))
	if _, err := a.hooks.Trigger(ctx, hook.OnArtifactUnlocked, hook.ArtifactUnlocked{
		UserID: inst.UserID, InstanceID: inst.ID, ArtifactID: artifactID,
	}); err != nil {
		a.logger.Warn("hook failed", zap.String("event", hook.OnArtifactUnlocked), zap.Error(err))
	}
	return nil
}

// Unlocks returns the persisted unlock times of instanceID by artifact id.
func (a *Accountant) Unlocks(ctx context.Context, instanceID int64) (map[string]time.Time, error) {
	var rows []model.ArtifactUnlock
	if err := a.db.WithContext(ctx).Where("challenge_instance_id = ?", instanceID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		out[r.ArtifactID] = r.UnlockedAt
	}
	return out, nil
}

// BonusAwards returns the awarded bonus points of instanceID by category.
func (a *Accountant) BonusAwards(ctx context.Context, instanceID int64) (map[string]int, error) {
	var rows []model.BonusAward
	if err := a.db.WithContext(ctx).Where("challenge_instance_id = ?", instanceID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Category] = r.Points
	}
	return out, nil
}

// BonusResult is the outcome of CheckAndAwardBonus.
type BonusResult struct {
	Category string                   `json:"category"`
	Awarded  bool                     `json:"awarded"`
	Points   int                      `json:"points"`
	Instance *model.ChallengeInstance `json:"-"`
}

// CheckAndAwardBonus awards category's tab completion bonus to instanceID
// once every currently eligible quest of the category has at least one
// completion in the instance. The bonus is paid at most once per instance
// and category; later calls report Awarded false.
func (a *Accountant) CheckAndAwardBonus(ctx context.Context, instanceID int64, category string) (*BonusResult, error) {
	var (
		res *BonusResult
		err error
	)
	for i := 0; i < bonusRetries; i++ {
		res, err = a.tryAward(ctx, instanceID, category)
		if !errors.Is(err, challenge.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	if res.Awarded {
		inst := res.Instance
		a.logger.Info("bonus awarded",
			zap.String("user_id", inst.UserID),
			zap.Int64("instance_id", inst.ID),
			zap.String("category", category),
			zap.Int("points", res.Points))
		if _, err := a.hooks.Trigger(ctx, hook.OnBonusAwarded, hook.BonusAwarded{
			UserID:      inst.UserID,
			InstanceID:  inst.ID,
			GroupID:     inst.GroupID,
			Category:    category,
			Points:      res.Points,
			TotalPoints: inst.TotalPoints,
		}); err != nil {
			a.logger.Warn("hook failed", zap.String("event", hook.OnBonusAwarded), zap.Error(err))
		}
	}
	return res, nil
}

func (a *Accountant) tryAward(ctx context.Context, instanceID int64, category string) (*BonusResult, error) {
	res := &BonusResult{Category: category}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := challenge.Find(ctx, tx, instanceID)
		if err != nil {
			return err
		}
		res.Instance = inst

		var awarded int64
		if err := tx.Model(&model.BonusAward{}).
			Where("challenge_instance_id = ? AND category = ?", instanceID, category).
			Count(&awarded).Error; err != nil {
			return err
		}
		if awarded > 0 {
			return nil
		}

		eligible := a.eligibility.Quests(category, inst.Persona, inst.CurrentStage)
		if len(eligible) == 0 {
			return nil
		}
		// Milestones are lifetime-locked, so completions from earlier
		// instances of the same user count.
		done, err := a.ledger.WithTx(tx).UserQuestIDs(ctx, inst.UserID)
		if err != nil {
			return err
		}
		sum := 0
		for _, q := range eligible {
			if !done[q.ID] {
				return nil
			}
			sum += q.Points
		}

		bonus := int(math.Round(a.rate * float64(sum)))
		if err := tx.Create(&model.BonusAward{
			ChallengeInstanceID: instanceID,
			Category:            category,
			Points:              bonus,
			AwardedAt:           time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		inst.TotalPoints += bonus
		if err := challenge.Save(ctx, tx, inst); err != nil {
			return err
		}
		res.Awarded = true
		res.Points = bonus
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Settle runs the post-completion evaluation of category: the tab bonus
// first, then every artifact so new unlocks are persisted.
func (a *Accountant) Settle(ctx context.Context, instanceID int64, category string) (*BonusResult, error) {
	res, err := a.CheckAndAwardBonus(ctx, instanceID, category)
	if err != nil {
		return nil, err
	}
	if _, err := a.Artifacts(ctx, res.Instance); err != nil {
		return nil, err
	}
	return res, nil
}
