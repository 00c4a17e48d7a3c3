package challenge

import (
	"time"

	"github.com/sevenday/challenge/server/calendar"
	"github.com/sevenday/challenge/server/model"
)

// FinalDay is the last day of a challenge.
const FinalDay = 7

// Advance moves inst forward by the calendar days elapsed since its last
// activity, capped at FinalDay. It returns the days newly unlocked, in order;
// inst is untouched when nothing is due.
func Advance(inst *model.ChallengeInstance, now time.Time) []int {
	if inst.Status != model.ChallengeActive || inst.CurrentDay >= FinalDay {
		return nil
	}
	elapsed := calendar.DaysBetween(inst.LastActiveDate, now)
	if elapsed < 1 {
		return nil
	}
	prev := inst.CurrentDay
	next := prev + elapsed
	if next > FinalDay {
		next = FinalDay
	}
	inst.CurrentDay = next
	inst.LastActiveDate = now.UTC()

	unlocked := make([]int, 0, next-prev)
	for d := prev + 1; d <= next; d++ {
		unlocked = append(unlocked, d)
	}
	return unlocked
}

// ApplyCompletion folds an accepted completion into inst: total points, the
// matching pillar counter, last activity and the streak.
func ApplyCompletion(inst *model.ChallengeInstance, c *model.QuestCompletion, now time.Time) {
	inst.TotalPoints += c.PointsEarned
	if model.IsPillar(c.Type) {
		inst.AddPillarPoints(c.Type, c.Category, c.PointsEarned)
	}
	inst.LastActiveDate = now.UTC()
	extendStreak(inst, now)
}

func extendStreak(inst *model.ChallengeInstance, now time.Time) {
	days := -1
	if inst.LastStreakDate != nil {
		days = calendar.DaysBetween(*inst.LastStreakDate, now)
	}
	switch days {
	case 0:
		if inst.StreakCount < 1 {
			inst.StreakCount = 1
		}
	case 1:
		inst.StreakCount++
	default:
		inst.StreakCount = 1
	}
	at := now.UTC()
	inst.LastStreakDate = &at
}
