package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sevenday/challenge/server/cache"
	"github.com/sevenday/challenge/server/config"
	mw "github.com/sevenday/challenge/server/middleware"
	"github.com/sevenday/challenge/server/notify"
	"go.uber.org/zap"
)

const keepaliveInterval = 30 * time.Second

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub    cache.PubSub
	sec       config.SecurityConfig
	logger    *zap.Logger
	keepalive time.Duration
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, sec: sec, logger: logger, keepalive: keepaliveInterval}
}

// ServeSSE handles GET /sse?token=<jwt>.
// It streams leaderboard change events and the caller's notifications.
// EventSource cannot set headers, so the bearer token comes in the query.
func (h *Handler) ServeSSE(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := mw.ParseToken(tokenStr, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := claims.UserID()
	c.Set(mw.UserIDKey, userID)

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	notifyCh := notify.Channel(userID)
	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, LeaderboardChannel, notifyCh)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("user_id", userID), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			event := "leaderboard"
			if msg.Channel == notifyCh {
				event = "notification"
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
