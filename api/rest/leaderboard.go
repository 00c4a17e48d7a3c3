package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sevenday/challenge/server/challenge"
	"github.com/sevenday/challenge/server/leaderboard"
	mw "github.com/sevenday/challenge/server/middleware"
)

// LeaderboardHandler handles the leaderboard endpoint.
type LeaderboardHandler struct {
	svc       *challenge.Service
	projector *leaderboard.Projector
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(svc *challenge.Service, p *leaderboard.Projector) *LeaderboardHandler {
	return &LeaderboardHandler{svc: svc, projector: p}
}

// Get returns the caller's leaderboard.
// GET /api/leaderboard?view=weekly|alltime
func (h *LeaderboardHandler) Get(c *gin.Context) {
	view, err := leaderboard.ParseView(c.Query("view"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	viewer, err := h.svc.Active(ctx, mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.projector.Leaderboard(ctx, viewer, view, mw.GetLocation(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
