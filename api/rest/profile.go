package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sevenday/challenge/server/challenge"
	"github.com/sevenday/challenge/server/hook"
	"github.com/sevenday/challenge/server/leaderboard"
	mw "github.com/sevenday/challenge/server/middleware"
	"github.com/sevenday/challenge/server/model"
	"go.uber.org/zap"
)

const maxNameLen = 128

// ProfileHandler handles profile updates.
type ProfileHandler struct {
	svc       *challenge.Service
	projector *leaderboard.Projector
	hooks     *hook.Center
	logger    *zap.Logger
}

// NewProfileHandler creates a ProfileHandler. hooks may be nil.
func NewProfileHandler(svc *challenge.Service, p *leaderboard.Projector, hooks *hook.Center, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{svc: svc, projector: p, hooks: hooks, logger: logger}
}

type profileRequest struct {
	Name    *string `json:"name"`
	Persona *string `json:"persona"`
	Stage   *string `json:"stage"`
}

// Update changes the display name and the persona/stage of the active
// challenge. Omitted fields are left unchanged.
// PUT /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	if req.Name == nil && req.Persona == nil && req.Stage == nil {
		badRequest(c, "nothing to update")
		return
	}
	if req.Name != nil && len(strings.TrimSpace(*req.Name)) > maxNameLen {
		badRequest(c, "name too long")
		return
	}

	ctx := c.Request.Context()
	userID := mw.GetUserID(c)
	body := gin.H{}
	if req.Name != nil {
		if err := h.projector.SetName(ctx, userID, *req.Name); err != nil {
			h.logger.Error("profile name update failed", zap.String("user_id", userID), zap.Error(err))
			respondError(c, err)
			return
		}
		body["profile"] = model.Profile{UserID: userID, Name: strings.TrimSpace(*req.Name)}
	}
	if req.Persona != nil || req.Stage != nil {
		inst, err := h.svc.SetPersonaStage(ctx, userID, req.Persona, req.Stage)
		if err != nil && !(errors.Is(err, challenge.ErrNoActiveChallenge) && req.Name != nil) {
			respondError(c, err)
			return
		}
		if inst != nil {
			body["instance"] = inst
		}
	}

	if _, err := h.hooks.Trigger(ctx, hook.OnProfileChanged, hook.ProfileChanged{UserID: userID}); err != nil {
		h.logger.Warn("hook failed", zap.String("event", hook.OnProfileChanged), zap.Error(err))
	}
	c.JSON(http.StatusOK, body)
}
