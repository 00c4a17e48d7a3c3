package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	mw "github.com/sevenday/challenge/server/middleware"
	"github.com/sevenday/challenge/server/notify"
)

// NotificationHandler serves the notification inbox.
type NotificationHandler struct {
	inbox *notify.Inbox
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(inbox *notify.Inbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// List returns the caller's notifications, newest first.
// GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	items, err := h.inbox.List(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// Clear empties the caller's inbox.
// DELETE /api/notifications
func (h *NotificationHandler) Clear(c *gin.Context) {
	if err := h.inbox.Clear(c.Request.Context(), mw.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
