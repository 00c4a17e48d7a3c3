// Package challenge runs a user's 7-day challenge: starting and restarting
// instances, lazy day advancement on load, and the completion protocol that
// validates an attempt and applies it to the ledger and the instance.
package challenge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sevenday/challenge/server/hook"
	"github.com/sevenday/challenge/server/model"
	"github.com/sevenday/challenge/server/notify"
	"github.com/sevenday/challenge/server/quest"
	"github.com/sevenday/challenge/server/subflow"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StreakResult is the verdict of a StreakDetector.
type StreakResult struct {
	StreakBroken bool
}

// StreakDetector decides whether a user's streak broke. When it reports a
// break it has already reset the stored streak; the engine only reloads.
type StreakDetector interface {
	CheckStreakBreak(ctx context.Context, userID string, instanceID int64, now time.Time) (StreakResult, error)
}

// Notifier delivers a user-facing notification. Failures are not fatal.
type Notifier interface {
	Notify(ctx context.Context, userID string, n notify.Notification) error
}

// StartOptions configures a new instance. Empty persona and stage are
// carried over from the superseded instance.
type StartOptions struct {
	GroupID *string
	Persona string
	Stage   string
}

// Loaded is the result of Load.
type Loaded struct {
	Instance     *model.ChallengeInstance
	StreakBroken bool
	UnlockedDays []int
}

// Completed is the result of an accepted completion attempt.
type Completed struct {
	Completion *model.QuestCompletion
	Instance   *model.ChallengeInstance
}

// Service orchestrates challenge instances.
type Service struct {
	db        *gorm.DB
	catalog   *quest.Catalog
	ledger    *quest.Ledger
	validator *quest.Validator
	streaks   StreakDetector
	notifier  Notifier
	subflows  *subflow.Registry
	hooks     *hook.Center
	logger    *zap.Logger
}

// NewService creates a Service. Collaborators are attached with the Set methods.
func NewService(db *gorm.DB, catalog *quest.Catalog, logger *zap.Logger) *Service {
	ledger := quest.NewLedger(db)
	return &Service{
		db:        db,
		catalog:   catalog,
		ledger:    ledger,
		validator: quest.NewValidator(ledger, nil),
		logger:    logger,
	}
}

// SetStreakDetector attaches the streak-break detector.
func (svc *Service) SetStreakDetector(d StreakDetector) { svc.streaks = d }

// SetNotifier attaches the notifier used for day-unlock messages.
func (svc *Service) SetNotifier(n Notifier) { svc.notifier = n }

// SetSubflows attaches the sub-flow writers of structured input kinds.
func (svc *Service) SetSubflows(r *subflow.Registry) { svc.subflows = r }

// SetGates attaches the feature-gate lookup.
func (svc *Service) SetGates(g quest.Gate) { svc.validator = quest.NewValidator(svc.ledger, g) }

// SetHooks attaches the event center.
func (svc *Service) SetHooks(h *hook.Center) { svc.hooks = h }

// Ledger returns the completion ledger.
func (svc *Service) Ledger() *quest.Ledger { return svc.ledger }

// Validator returns the completion validator.
func (svc *Service) Validator() *quest.Validator { return svc.validator }

// Start supersedes the user's active instance, if any, and creates a new one
// at day 0.
func (svc *Service) Start(ctx context.Context, userID string, opts StartOptions, now time.Time) (*model.ChallengeInstance, error) {
	inst := &model.ChallengeInstance{
		UserID:             userID,
		GroupID:            opts.GroupID,
		Status:             model.ChallengeActive,
		CurrentDay:         0,
		ChallengeStartDate: now.UTC(),
		LastActiveDate:     now.UTC(),
		Persona:            strings.TrimSpace(opts.Persona),
		CurrentStage:       strings.TrimSpace(opts.Stage),
		Version:            1,
	}
	var superseded []int64
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active []model.ChallengeInstance
		if err := tx.Where("user_id = ? AND status = ?", userID, model.ChallengeActive).
			Order("id DESC").Find(&active).Error; err != nil {
			return err
		}
		for i := range active {
			old := &active[i]
			if i == 0 {
				if inst.Persona == "" {
					inst.Persona = old.Persona
				}
				if inst.CurrentStage == "" {
					inst.CurrentStage = old.CurrentStage
				}
			}
			old.Status = model.ChallengeCompleted
			if err := Save(ctx, tx, old); err != nil {
				return err
			}
			superseded = append(superseded, old.ID)
		}
		return tx.Create(inst).Error
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, &quest.StoreError{Op: "start challenge", Err: err}
	}

	svc.logger.Info("challenge started",
		zap.String("user_id", userID),
		zap.Int64("instance_id", inst.ID),
		zap.Int64s("superseded", superseded))
	svc.trigger(ctx, hook.OnChallengeStart, hook.ChallengeStarted{
		UserID:     userID,
		InstanceID: inst.ID,
		GroupID:    inst.GroupID,
		Superseded: superseded,
		At:         now,
	})
	return inst, nil
}

// Active returns the user's active instance without advancing it.
func (svc *Service) Active(ctx context.Context, userID string) (*model.ChallengeInstance, error) {
	inst, err := findActive(ctx, svc.db, userID)
	if err != nil && !errors.Is(err, ErrNoActiveChallenge) {
		return nil, &quest.StoreError{Op: "load instance", Err: err}
	}
	return inst, err
}

// Instance returns any instance by id.
func (svc *Service) Instance(ctx context.Context, id int64) (*model.ChallengeInstance, error) {
	return Find(ctx, svc.db, id)
}

// Load returns the user's active instance after the streak check and day
// advancement. now must carry the caller's location. Each newly unlocked
// day is announced through the notifier.
func (svc *Service) Load(ctx context.Context, userID string, now time.Time) (*Loaded, error) {
	inst, err := svc.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &Loaded{Instance: inst}

	if svc.streaks != nil {
		res, err := svc.streaks.CheckStreakBreak(ctx, userID, inst.ID, now)
		if err != nil {
			return nil, &quest.StoreError{Op: "streak check", Err: err}
		}
		if res.StreakBroken {
			out.StreakBroken = true
			if inst, err = Find(ctx, svc.db, inst.ID); err != nil {
				return nil, &quest.StoreError{Op: "reload instance", Err: err}
			}
			out.Instance = inst
		}
	}

	next := *inst
	days := Advance(&next, now)
	if len(days) == 0 {
		return out, nil
	}
	if err := Save(ctx, svc.db, &next); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, &quest.StoreError{Op: "advance day", Err: err}
	}
	*inst = next
	out.UnlockedDays = days

	svc.logger.Info("challenge days unlocked",
		zap.String("user_id", userID),
		zap.Int64("instance_id", inst.ID),
		zap.Ints("days", days))
	for _, d := range days {
		if svc.notifier != nil {
			if err := svc.notifier.Notify(ctx, userID, notify.DayUnlocked(d)); err != nil {
				svc.logger.Warn("day unlock notification failed",
					zap.String("user_id", userID), zap.Int("day", d), zap.Error(err))
			}
		}
		svc.trigger(ctx, hook.OnDayUnlocked, hook.DayUnlocked{UserID: userID, InstanceID: inst.ID, Day: d})
	}
	return out, nil
}

// AttemptCompletion runs the completion protocol for questID. Rejections are
// the quest.Err* sentinels; a failed sub-flow is a *quest.CollaboratorError;
// persistence failures are *quest.StoreError; ErrConflict means the instance
// moved underneath and the whole attempt may be retried.
func (svc *Service) AttemptCompletion(ctx context.Context, userID, questID string, in quest.Input, now time.Time) (*Completed, error) {
	def, ok := svc.catalog.Quest(questID)
	if !ok {
		return nil, quest.ErrUnknownQuest
	}
	loaded, err := svc.Load(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	inst := loaded.Instance

	c, err := svc.validator.Check(ctx, quest.Attempt{Instance: inst, Quest: def, Input: in, At: now})
	if err != nil {
		return nil, err
	}

	if def.InputKind.Structured() {
		if w, ok := svc.subflows.Writer(string(def.InputKind)); ok {
			res, err := w.Write(ctx, subflow.Request{
				Kind:       string(def.InputKind),
				UserID:     userID,
				InstanceID: inst.ID,
				QuestID:    def.ID,
				Data:       in.Data,
				At:         now,
			})
			if err != nil {
				return nil, &quest.StoreError{Op: "subflow write", Err: err}
			}
			if !res.Success {
				return nil, &quest.CollaboratorError{
					Kind:             string(def.InputKind),
					Message:          res.Error,
					AlreadyCompleted: res.AlreadyCompleted,
				}
			}
			if len(res.Payload) > 0 {
				c.Payload = datatypes.JSON(res.Payload)
			}
		}
	}

	next := *inst
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := svc.ledger.WithTx(tx).Append(ctx, c); err != nil {
			return err
		}
		ApplyCompletion(&next, c, now)
		return Save(ctx, tx, &next)
	})
	switch {
	case errors.Is(err, quest.ErrDuplicateEntry):
		if def.MilestoneType != "" {
			return nil, quest.ErrAlreadyCompletedLifetime
		}
		return nil, quest.ErrAlreadyCompletedToday
	case errors.Is(err, ErrConflict):
		return nil, err
	case err != nil:
		return nil, &quest.StoreError{Op: "accept completion", Err: err}
	}
	*inst = next

	svc.logger.Info("quest completed",
		zap.String("user_id", userID),
		zap.Int64("instance_id", inst.ID),
		zap.String("quest_id", def.ID),
		zap.Int("points", c.PointsEarned),
		zap.Int("total_points", inst.TotalPoints))
	svc.trigger(ctx, hook.OnQuestComplete, hook.QuestCompleted{
		UserID:      userID,
		InstanceID:  inst.ID,
		GroupID:     inst.GroupID,
		QuestID:     def.ID,
		Category:    def.Category,
		Points:      c.PointsEarned,
		TotalPoints: inst.TotalPoints,
		At:          now,
	})
	return &Completed{Completion: c, Instance: inst}, nil
}

// SetPersonaStage updates the persona and stage of the user's active
// instance; nil leaves a field unchanged. Eligibility follows immediately
// and the ledger is untouched.
func (svc *Service) SetPersonaStage(ctx context.Context, userID string, persona, stage *string) (*model.ChallengeInstance, error) {
	inst, err := svc.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := *inst
	if persona != nil {
		next.Persona = strings.TrimSpace(*persona)
	}
	if stage != nil {
		next.CurrentStage = strings.TrimSpace(*stage)
	}
	if err := Save(ctx, svc.db, &next); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, &quest.StoreError{Op: "update persona", Err: err}
	}
	return &next, nil
}

func (svc *Service) trigger(ctx context.Context, event string, data interface{}) {
	if _, err := svc.hooks.Trigger(ctx, event, data); err != nil {
		svc.logger.Warn("hook failed", zap.String("event", event), zap.Error(err))
	}
}
