package quest

import (
	"context"
	"fmt"
	"time"

	"github.com/sevenday/challenge/server/calendar"
	"github.com/sevenday/challenge/server/model"
)

// Gate answers whether a user has finished a gated feature.
type Gate interface {
	Done(ctx context.Context, userID, feature string) (bool, error)
}

// Attempt is one completion attempt. At is the caller's local time; the
// calendar day used for duplicate checks is taken from its location.
type Attempt struct {
	Instance *model.ChallengeInstance
	Quest    *Definition
	Input    Input
	At       time.Time
}

// Validator runs the ordered completion checks: locks, input, duplicates.
// The first failing check wins.
type Validator struct {
	ledger *Ledger
	gate   Gate
}

// NewValidator creates a Validator. A nil gate treats every feature gate as open.
func NewValidator(ledger *Ledger, gate Gate) *Validator {
	return &Validator{ledger: ledger, gate: gate}
}

// LifetimeKey is the dedupe key of a milestone quest: once per user, ever.
func LifetimeKey(userID, questID string) string {
	return fmt.Sprintf("m:%s:%s", userID, questID)
}

// DailyKey is the dedupe key of the slot-th completion of questID on at's calendar day.
func DailyKey(instanceID int64, questID string, at time.Time, slot int) string {
	return fmt.Sprintf("d:%d:%s:%s:%d", instanceID, questID, calendar.DateKey(at), slot)
}

// Locked runs the lock checks only. It returns nil when the quest is open.
func (v *Validator) Locked(ctx context.Context, inst *model.ChallengeInstance, q *Definition) error {
	if q.Category == model.CategoryDaily && inst.CurrentDay == 0 {
		return ErrDayZeroLocked
	}
	if q.RequiresQuest != "" {
		done, err := v.ledger.HasCompleted(ctx, inst.UserID, q.RequiresQuest)
		if err != nil {
			return storeErr("prerequisite lookup", err)
		}
		if !done {
			return ErrPrerequisiteNotMet
		}
	}
	if q.FeatureGate != "" && v.gate != nil {
		done, err := v.gate.Done(ctx, inst.UserID, q.FeatureGate)
		if err != nil {
			return storeErr("feature gate lookup", err)
		}
		if !done {
			return ErrFeatureGateNotMet
		}
	}
	return nil
}

// Check validates a and returns the completion to append. Category, type and
// points are copied from the definition now and never recomputed.
func (v *Validator) Check(ctx context.Context, a Attempt) (*model.QuestCompletion, error) {
	inst, q := a.Instance, a.Quest
	if err := v.Locked(ctx, inst, q); err != nil {
		return nil, err
	}

	payload, err := q.InputKind.Payload(a.Input)
	if err != nil {
		return nil, err
	}

	key, err := v.dedupeKey(ctx, a)
	if err != nil {
		return nil, err
	}

	return &model.QuestCompletion{
		UserID:              inst.UserID,
		ChallengeInstanceID: inst.ID,
		QuestID:             q.ID,
		Category:            q.Category,
		Type:                q.Type,
		PointsEarned:        q.Points,
		ChallengeDay:        inst.CurrentDay,
		CompletedAt:         a.At.UTC(),
		Payload:             payload,
		DedupeKey:           key,
	}, nil
}

func (v *Validator) dedupeKey(ctx context.Context, a Attempt) (string, error) {
	inst, q := a.Instance, a.Quest
	if q.MilestoneType != "" {
		done, err := v.ledger.HasCompleted(ctx, inst.UserID, q.ID)
		if err != nil {
			return "", storeErr("lifetime lookup", err)
		}
		if done {
			return "", ErrAlreadyCompletedLifetime
		}
		return LifetimeKey(inst.UserID, q.ID), nil
	}

	from, to := calendar.DayBounds(a.At)
	today, err := v.ledger.CountBetween(ctx, inst.ID, q.ID, from, to)
	if err != nil {
		return "", storeErr("daily lookup", err)
	}
	if today >= q.PerDay() {
		return "", ErrAlreadyCompletedToday
	}
	if q.MaxCompletions > 0 {
		total, err := v.ledger.CountForInstance(ctx, inst.ID, q.ID)
		if err != nil {
			return "", storeErr("cap lookup", err)
		}
		if total >= q.MaxCompletions {
			return "", ErrMaxCompletionsReached
		}
	}
	return DailyKey(inst.ID, q.ID, a.At, today+1), nil
}
