package rest_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sevenday/challenge/server/board"
	"github.com/sevenday/challenge/server/model"
	"github.com/sevenday/challenge/server/quest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loadResponse struct {
	Board        board.Board `json:"board"`
	StreakBroken bool        `json:"streak_broken"`
	UnlockedDays []int       `json:"unlocked_days"`
}

type completeResponse struct {
	Completion model.QuestCompletion  `json:"completion"`
	Instance   model.ChallengeInstance `json:"instance"`
	Bonus      *struct {
		Category string `json:"category"`
		Awarded  bool   `json:"awarded"`
		Points   int    `json:"points"`
	} `json:"bonus"`
}

func TestChallenge_RequiresToken(t *testing.T) {
	h := newHarness(t, 0)
	w := h.do(t, http.MethodGet, "/api/challenge", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChallenge_LoadWithoutStart(t *testing.T) {
	h := newHarness(t, 0)
	w := h.do(t, http.MethodGet, "/api/challenge", "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NoActiveChallenge", errCode(t, w))
}

func TestChallenge_StartAndLoadBoard(t *testing.T) {
	h := newHarness(t, 0)
	id := h.start(t, "u1", map[string]string{"persona": "Builder"})

	w := h.do(t, http.MethodGet, "/api/challenge", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp loadResponse
	decode(t, w, &resp)

	assert.Equal(t, id, resp.Board.Instance.ID)
	assert.Equal(t, 0, resp.Board.Instance.CurrentDay)
	assert.Empty(t, resp.UnlockedDays)
	require.Len(t, resp.Board.Categories, len(model.Categories))

	for _, cv := range resp.Board.Categories {
		if cv.Category != model.CategoryDaily {
			continue
		}
		require.NotEmpty(t, cv.Quests)
		for _, q := range cv.Quests {
			assert.True(t, q.Locked, q.ID)
			assert.Equal(t, board.LockDayZero, q.LockReason, q.ID)
		}
	}
}

func TestChallenge_StartRejectsBadBody(t *testing.T) {
	h := newHarness(t, 0)
	w := h.do(t, http.MethodPost, "/api/challenge/start", "u1", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComplete_Rejections(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, "u1", nil)

	w := h.complete(t, "u1", "nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "UnknownQuest", errCode(t, w))

	w = h.complete(t, "u1", "d_recognise", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DayZeroLocked", errCode(t, w))

	w = h.complete(t, "u1", "ff_intro", quest.Input{Text: "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "InputMissing", errCode(t, w))

	w = h.complete(t, "u1", "t_after", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PrerequisiteNotMet", errCode(t, w))
}

func TestComplete_AcceptedThenDuplicate(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, "u1", nil)

	w := h.complete(t, "u1", "ff_intro", quest.Input{Text: "I want calmer mornings"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp completeResponse
	decode(t, w, &resp)
	assert.Equal(t, 10, resp.Completion.PointsEarned)
	assert.Equal(t, 10, resp.Instance.TotalPoints)

	w = h.complete(t, "u1", "ff_intro", quest.Input{Text: "again"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "AlreadyCompletedToday", errCode(t, w))
}

func TestComplete_DailyAfterDayAdvance(t *testing.T) {
	h := newHarness(t, 0)
	id := h.start(t, "u1", nil)
	h.rewind(t, id, 1)

	w := h.do(t, http.MethodGet, "/api/challenge", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var loaded loadResponse
	decode(t, w, &loaded)
	assert.Equal(t, []int{1}, loaded.UnlockedDays)
	assert.Equal(t, 1, loaded.Board.Instance.CurrentDay)

	w = h.complete(t, "u1", "d_recognise", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp completeResponse
	decode(t, w, &resp)
	assert.Equal(t, 1, resp.Completion.ChallengeDay)
	assert.Equal(t, 10, resp.Instance.RecogniseDailyPoints)
}

func TestComplete_MilestoneSubflow(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, "u1", nil)

	w := h.complete(t, "u1", "t_milestone", map[string]interface{}{"data": map[string]string{"shared_with": "friend"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.complete(t, "u1", "t_after", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A restart keeps milestones locked for the lifetime of the user.
	h.start(t, "u1", nil)
	w = h.complete(t, "u1", "t_milestone", map[string]interface{}{"data": map[string]string{"shared_with": "friend"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "AlreadyCompletedLifetime", errCode(t, w))
}

func TestComplete_InlineBonus(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, "u1", nil)

	var resp completeResponse
	for _, id := range []string{"b1", "b2", "b3", "b4", "b5"} {
		w := h.complete(t, "u1", id, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp = completeResponse{}
		decode(t, w, &resp)
	}
	require.NotNil(t, resp.Bonus)
	assert.True(t, resp.Bonus.Awarded)
	assert.Equal(t, 5, resp.Bonus.Points)
	assert.Equal(t, 105, resp.Instance.TotalPoints)

	// An explicit check afterwards never awards again.
	w := h.do(t, http.MethodPost, "/api/challenge/bonus/bonus", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bonus struct {
		Bonus struct {
			Awarded bool `json:"awarded"`
		} `json:"bonus"`
		TotalPoints int `json:"total_points"`
	}
	decode(t, w, &bonus)
	assert.False(t, bonus.Bonus.Awarded)
	assert.Equal(t, 105, bonus.TotalPoints)
}

func TestComplete_DelayedBonus(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	id := h.start(t, "u1", nil)

	for _, q := range []string{"b1", "b2", "b3", "b4", "b5"} {
		w := h.complete(t, "u1", q, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp completeResponse
		decode(t, w, &resp)
		assert.Nil(t, resp.Bonus)
	}

	require.Eventually(t, func() bool {
		awards, err := h.acc.BonusAwards(context.Background(), id)
		return err == nil && awards[model.CategoryBonus] == 5
	}, 2*time.Second, 10*time.Millisecond)

	inst, err := h.svc.Instance(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 105, inst.TotalPoints)
}

func TestComplete_PendingBonusSettledOnShutdown(t *testing.T) {
	h := newHarness(t, time.Hour)
	id := h.start(t, "u1", nil)

	for _, q := range []string{"b1", "b2", "b3", "b4", "b5"} {
		require.Equal(t, http.StatusOK, h.complete(t, "u1", q, nil).Code)
	}
	awards, err := h.acc.BonusAwards(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, awards)

	h.sched.Stop()

	awards, err = h.acc.BonusAwards(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 5, awards[model.CategoryBonus])
	inst, err := h.svc.Instance(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 105, inst.TotalPoints)
}

func TestBonus_UnknownCategory(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, "u1", nil)
	w := h.do(t, http.MethodPost, "/api/challenge/bonus/sidequests", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArtifacts(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, "u1", nil)
	for _, q := range []string{"b1", "b2", "b3"} {
		require.Equal(t, http.StatusOK, h.complete(t, "u1", q, nil).Code)
	}

	w := h.do(t, http.MethodGet, "/api/challenge/artifacts", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Artifacts []struct {
			ArtifactID string `json:"artifact_id"`
			Points     int    `json:"points"`
			Required   int    `json:"required"`
			Met        bool   `json:"met"`
			Unlocked   bool   `json:"unlocked"`
		} `json:"artifacts"`
	}
	decode(t, w, &resp)

	found := false
	for _, a := range resp.Artifacts {
		if a.ArtifactID == "trophy" {
			found = true
			assert.Equal(t, 60, a.Points)
			assert.Equal(t, 60, a.Required)
			assert.True(t, a.Met)
			assert.True(t, a.Unlocked)
		}
	}
	assert.True(t, found)
}

func TestComplete_Audited(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, "u1", nil)
	require.Equal(t, http.StatusOK, h.complete(t, "u1", "b1", nil).Code)
	require.Equal(t, http.StatusConflict, h.complete(t, "u1", "b1", nil).Code)

	h.audit.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, h.db.Where("action = ?", "quest.complete").Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, "accepted", logs[0].Outcome)
	assert.NotNil(t, logs[0].ChallengeInstanceID)
	assert.Equal(t, "rejected", logs[1].Outcome)
	assert.NotEmpty(t, logs[1].TraceID)
}
