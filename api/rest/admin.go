package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sevenday/challenge/server/reward"
	"github.com/sevenday/challenge/server/scheduler"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	accountant *reward.Accountant
	sched      *scheduler.Scheduler
	logger     *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(accountant *reward.Accountant, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{accountant: accountant, sched: sched, logger: logger}
}

// Reconcile recomputes an instance's totals from the ledger and reports drift.
// GET /api/admin/challenges/:id/reconcile
func (h *AdminHandler) Reconcile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return
	}
	rec, err := h.accountant.Reconcile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !rec.Consistent() {
		h.logger.Warn("challenge drift detected",
			zap.Int64("instance_id", id),
			zap.Int("stored_total", rec.StoredTotal),
			zap.Int("expected_total", rec.ExpectedTotal),
			zap.Int("counter_drift", len(rec.Drift)))
	}
	c.JSON(http.StatusOK, gin.H{"reconciliation": rec, "consistent": rec.Consistent()})
}

// ListSchedulerTasks returns the tickers and pending delayed tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tasks":   h.sched.Tasks(),
		"pending": h.sched.Pending(),
	})
}

// AdminAuth rejects requests without the configured X-Admin-Key.
// An empty key disables the admin endpoints.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		if c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
