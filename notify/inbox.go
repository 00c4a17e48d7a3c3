// Package notify delivers user-facing notifications: each one is kept in a
// capped per-user inbox and published for live listeners.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sevenday/challenge/server/cache"
	"go.uber.org/zap"
)

// Notification is one inbox entry. Tag lets clients collapse repeats.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tag       string    `json:"tag,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DayUnlocked builds the notification sent when a challenge day opens.
func DayUnlocked(day int) Notification {
	return Notification{
		Title: fmt.Sprintf("Day %d is unlocked", day),
		Body:  fmt.Sprintf("Your Day %d quests are ready.", day),
		Tag:   fmt.Sprintf("day-%d", day),
	}
}

// Channel is the pub/sub channel carrying userID's notifications.
func Channel(userID string) string {
	return "notify:" + userID
}

// inboxTTL outlives a full challenge run with a week to spare.
const inboxTTL = 14 * 24 * time.Hour

func inboxKey(userID string) string {
	return "inbox:" + userID
}

// Inbox stores and publishes notifications.
type Inbox struct {
	cache  cache.Cache
	pubsub cache.PubSub
	size   int64
	logger *zap.Logger
}

// NewInbox creates an Inbox keeping at most size entries per user.
func NewInbox(c cache.Cache, ps cache.PubSub, size int, logger *zap.Logger) *Inbox {
	if size <= 0 {
		size = 50
	}
	return &Inbox{cache: c, pubsub: ps, size: int64(size), logger: logger}
}

// Notify stores n for userID and publishes it. ID and CreatedAt are filled
// in when empty. A publish failure is logged; the stored entry stays.
func (in *Inbox) Notify(ctx context.Context, userID string, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := inboxKey(userID)
	if err := in.cache.PushCapped(ctx, key, string(b), in.size, inboxTTL); err != nil {
		return fmt.Errorf("notify: push: %w", err)
	}
	if in.pubsub != nil {
		if err := in.pubsub.Publish(ctx, Channel(userID), string(b)); err != nil {
			in.logger.Warn("notify: publish failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return nil
}

// List returns userID's notifications, newest first.
func (in *Inbox) List(ctx context.Context, userID string) ([]Notification, error) {
	raw, err := in.cache.LRange(ctx, inboxKey(userID), 0, -1)
	if err != nil {
		if cache.IsNotFound(err) {
			return []Notification{}, nil
		}
		return nil, err
	}
	out := make([]Notification, 0, len(raw))
	for _, s := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			in.logger.Warn("notify: skip corrupt entry", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Clear empties userID's inbox.
func (in *Inbox) Clear(ctx context.Context, userID string) error {
	return in.cache.Del(ctx, inboxKey(userID))
}
