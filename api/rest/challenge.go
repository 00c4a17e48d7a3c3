package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sevenday/challenge/server/audit"
	"github.com/sevenday/challenge/server/board"
	"github.com/sevenday/challenge/server/challenge"
	mw "github.com/sevenday/challenge/server/middleware"
	"github.com/sevenday/challenge/server/model"
	"github.com/sevenday/challenge/server/quest"
	"github.com/sevenday/challenge/server/reward"
	"github.com/sevenday/challenge/server/scheduler"
	"go.uber.org/zap"
)

// ChallengeHandler handles the challenge and quest completion endpoints.
type ChallengeHandler struct {
	svc        *challenge.Service
	board      *board.Builder
	accountant *reward.Accountant
	sched      *scheduler.Scheduler
	audit      *audit.Service
	bonusDelay time.Duration
	logger     *zap.Logger
}

// NewChallengeHandler creates a ChallengeHandler. With a nil scheduler or a
// zero bonusDelay the post-completion evaluation runs inline. auditSvc may be nil.
func NewChallengeHandler(
	svc *challenge.Service,
	b *board.Builder,
	accountant *reward.Accountant,
	sched *scheduler.Scheduler,
	auditSvc *audit.Service,
	bonusDelay time.Duration,
	logger *zap.Logger,
) *ChallengeHandler {
	return &ChallengeHandler{
		svc:        svc,
		board:      b,
		accountant: accountant,
		sched:      sched,
		audit:      auditSvc,
		bonusDelay: bonusDelay,
		logger:     logger,
	}
}

type startRequest struct {
	GroupID *string `json:"group_id"`
	Persona string  `json:"persona"`
	Stage   string  `json:"stage"`
}

// bindOptional binds a JSON body that may be absent.
func bindOptional(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Start begins a new challenge, superseding the active one.
// POST /api/challenge/start
func (h *ChallengeHandler) Start(c *gin.Context) {
	var req startRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	if req.GroupID != nil && *req.GroupID == "" {
		req.GroupID = nil
	}
	inst, err := h.svc.Start(c.Request.Context(), mw.GetUserID(c), challenge.StartOptions{
		GroupID: req.GroupID,
		Persona: req.Persona,
		Stage:   req.Stage,
	}, mw.Now(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"instance": inst})
}

// Load runs the streak check and day advance and returns the board.
// GET /api/challenge
func (h *ChallengeHandler) Load(c *gin.Context) {
	ctx := c.Request.Context()
	now := mw.Now(c)
	loaded, err := h.svc.Load(ctx, mw.GetUserID(c), now)
	if err != nil {
		respondError(c, err)
		return
	}
	b, err := h.board.Build(ctx, loaded.Instance, now)
	if err != nil {
		respondError(c, err)
		return
	}
	unlocked := loaded.UnlockedDays
	if unlocked == nil {
		unlocked = []int{}
	}
	c.JSON(http.StatusOK, gin.H{
		"board":         b,
		"streak_broken": loaded.StreakBroken,
		"unlocked_days": unlocked,
	})
}

// Complete attempts a quest completion.
// POST /api/quests/:id/complete
func (h *ChallengeHandler) Complete(c *gin.Context) {
	start := time.Now()
	userID := mw.GetUserID(c)
	questID := c.Param("id")

	var in quest.Input
	if err := bindOptional(c, &in); err != nil {
		badRequest(c, "invalid body")
		return
	}

	ctx := c.Request.Context()
	res, err := h.svc.AttemptCompletion(ctx, userID, questID, in, mw.Now(c))
	entry := audit.Entry{
		TraceID:  mw.GetTraceID(c),
		UserID:   userID,
		QuestID:  questID,
		Action:   "quest.complete",
		Request:  in,
		Duration: time.Since(start),
	}
	if err != nil {
		status, code := statusOf(err)
		entry.Outcome = audit.OutcomeFailed
		if status < http.StatusInternalServerError && code != CodeConflict {
			entry.Outcome = audit.OutcomeRejected
		}
		entry.Error = err.Error()
		entry.Response = gin.H{"code": code}
		h.record(entry)
		respondError(c, err)
		return
	}

	body := gin.H{"completion": res.Completion, "instance": res.Instance}
	if bonus := h.settle(ctx, userID, res.Instance.ID, res.Completion.Category); bonus != nil {
		body["bonus"] = bonus
		if bonus.Instance != nil {
			body["instance"] = bonus.Instance
		}
	}
	entry.InstanceID = &res.Instance.ID
	entry.Outcome = audit.OutcomeAccepted
	entry.Response = gin.H{"points": res.Completion.PointsEarned, "total_points": res.Instance.TotalPoints}
	h.record(entry)
	c.JSON(http.StatusOK, body)
}

// settle evaluates the category bonus and artifacts after an accepted
// completion. When deferred it returns nil.
func (h *ChallengeHandler) settle(ctx context.Context, userID string, instanceID int64, category string) *reward.BonusResult {
	fields := []zap.Field{
		zap.String("trace_id", mw.TraceIDFrom(ctx)),
		zap.String("user_id", userID),
		zap.Int64("instance_id", instanceID),
		zap.String("category", category),
	}
	if h.sched == nil || h.bonusDelay <= 0 {
		res, err := h.accountant.Settle(ctx, instanceID, category)
		if err != nil {
			h.logger.Warn("bonus evaluation failed", append(fields, zap.Error(err))...)
			return nil
		}
		return res
	}
	name := fmt.Sprintf("bonus:%d:%s", instanceID, category)
	ok := h.sched.AddDelay(name, h.bonusDelay, func(ctx context.Context) {
		if _, err := h.accountant.Settle(ctx, instanceID, category); err != nil {
			h.logger.Warn("delayed bonus evaluation failed", append(fields, zap.Error(err))...)
		}
	})
	if !ok {
		h.logger.Warn("scheduler stopped, bonus evaluation skipped", fields...)
	}
	return nil
}

func (h *ChallengeHandler) record(e audit.Entry) {
	if h.audit != nil {
		h.audit.Log(e)
	}
}

// Artifacts returns the artifact state of the active challenge.
// GET /api/challenge/artifacts
func (h *ChallengeHandler) Artifacts(c *gin.Context) {
	ctx := c.Request.Context()
	inst, err := h.svc.Active(ctx, mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	arts, err := h.accountant.Artifacts(ctx, inst)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance_id": inst.ID, "artifacts": arts})
}

// Bonus runs the tab completion bonus check for one category.
// POST /api/challenge/bonus/:category
func (h *ChallengeHandler) Bonus(c *gin.Context) {
	category := c.Param("category")
	if !knownCategory(category) {
		badRequest(c, "unknown category")
		return
	}
	ctx := c.Request.Context()
	userID := mw.GetUserID(c)
	inst, err := h.svc.Active(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.accountant.Settle(ctx, inst.ID, category)
	if err != nil {
		respondError(c, err)
		return
	}
	h.record(audit.Entry{
		TraceID:    mw.GetTraceID(c),
		UserID:     userID,
		InstanceID: &inst.ID,
		Action:     "bonus.check",
		Outcome:    audit.OutcomeAccepted,
		Request:    gin.H{"category": category},
		Response:   res,
	})
	c.JSON(http.StatusOK, gin.H{"bonus": res, "total_points": res.Instance.TotalPoints})
}

func knownCategory(cat string) bool {
	for _, c := range model.Categories {
		if c == cat {
			return true
		}
	}
	return false
}
