// Package board assembles the quest board a user sees: eligible quests per
// category with lock and completion state, category points, bonus flags and
// artifact progress.
package board

import (
	"context"
	"errors"
	"time"

	"github.com/sevenday/challenge/server/calendar"
	"github.com/sevenday/challenge/server/model"
	"github.com/sevenday/challenge/server/quest"
	"github.com/sevenday/challenge/server/reward"
)

// Lock reasons.
const (
	LockDayZero      = "day_zero"
	LockPrerequisite = "prerequisite"
	LockFeatureGate  = "feature_gate"
)

// QuestView is one quest on the board.
type QuestView struct {
	ID             string          `json:"id"`
	Title          string          `json:"title,omitempty"`
	Type           string          `json:"type,omitempty"`
	Points         int             `json:"points"`
	InputKind      quest.InputKind `json:"input_kind"`
	Milestone      bool            `json:"milestone,omitempty"`
	Locked         bool            `json:"locked"`
	LockReason     string          `json:"lock_reason,omitempty"`
	CompletedToday bool            `json:"completed_today"`
	Completed      bool            `json:"completed"`
}

// CategoryView is one tab of the board.
type CategoryView struct {
	Category       string      `json:"category"`
	Points         int         `json:"points"`
	EligiblePoints int         `json:"eligible_points"`
	BonusAwarded   bool        `json:"bonus_awarded"`
	BonusPoints    int         `json:"bonus_points,omitempty"`
	Quests         []QuestView `json:"quests"`
}

// Board is the full view of an instance.
type Board struct {
	Instance   *model.ChallengeInstance `json:"instance"`
	Categories []CategoryView           `json:"categories"`
	Artifacts  []*reward.Progress       `json:"artifacts"`
}

// Builder builds boards.
type Builder struct {
	eligibility *quest.Eligibility
	validator   *quest.Validator
	ledger      *quest.Ledger
	accountant  *reward.Accountant
}

// NewBuilder creates a Builder.
func NewBuilder(eligibility *quest.Eligibility, validator *quest.Validator, ledger *quest.Ledger, accountant *reward.Accountant) *Builder {
	return &Builder{eligibility: eligibility, validator: validator, ledger: ledger, accountant: accountant}
}

// LockReason maps a lock rejection to its board code, or "" if err is not a lock.
func LockReason(err error) string {
	switch {
	case errors.Is(err, quest.ErrDayZeroLocked):
		return LockDayZero
	case errors.Is(err, quest.ErrPrerequisiteNotMet):
		return LockPrerequisite
	case errors.Is(err, quest.ErrFeatureGateNotMet):
		return LockFeatureGate
	}
	return ""
}

// Build returns the board of inst. now carries the caller's location and
// decides which completions count as today.
func (b *Builder) Build(ctx context.Context, inst *model.ChallengeInstance, now time.Time) (*Board, error) {
	from, to := calendar.DayBounds(now)
	today, err := b.ledger.CompletedQuestIDsBetween(ctx, inst.ID, from, to)
	if err != nil {
		return nil, err
	}
	done, err := b.ledger.CompletedQuestIDs(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	ever, err := b.ledger.UserQuestIDs(ctx, inst.UserID)
	if err != nil {
		return nil, err
	}
	bonuses, err := b.accountant.BonusAwards(ctx, inst.ID)
	if err != nil {
		return nil, err
	}

	out := &Board{Instance: inst, Categories: make([]CategoryView, 0, len(model.Categories))}
	for _, cat := range model.Categories {
		pts, err := b.accountant.CategoryPoints(ctx, inst, cat)
		if err != nil {
			return nil, err
		}
		view := CategoryView{
			Category:       cat,
			Points:         pts,
			EligiblePoints: b.accountant.EligiblePoints(inst, cat),
			Quests:         []QuestView{},
		}
		if bonus, ok := bonuses[cat]; ok {
			view.BonusAwarded = true
			view.BonusPoints = bonus
		}
		for _, q := range b.eligibility.Quests(cat, inst.Persona, inst.CurrentStage) {
			qv := QuestView{
				ID:             q.ID,
				Title:          q.Title,
				Type:           q.Type,
				Points:         q.Points,
				InputKind:      q.InputKind,
				Milestone:      q.MilestoneType != "",
				CompletedToday: today[q.ID],
				Completed:      done[q.ID],
			}
			if qv.Milestone {
				qv.Completed = ever[q.ID]
			}
			if err := b.validator.Locked(ctx, inst, q); err != nil {
				reason := LockReason(err)
				if reason == "" {
					return nil, err
				}
				qv.Locked = true
				qv.LockReason = reason
			}
			view.Quests = append(view.Quests, qv)
		}
		out.Categories = append(out.Categories, view)
	}

	arts, err := b.accountant.Artifacts(ctx, inst)
	if err != nil {
		return nil, err
	}
	out.Artifacts = arts
	return out, nil
}
