package sse

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sevenday/challenge/server/cache"
	"github.com/sevenday/challenge/server/hook"
	"go.uber.org/zap"
)

// LeaderboardChannel carries leaderboard change events.
const LeaderboardChannel = "leaderboard"

const publisherHook = "leaderboard_fanout"

// Change is published on LeaderboardChannel whenever a ranking input
// changes. Clients refetch the leaderboard; the event is only a hint.
type Change struct {
	Event       string    `json:"event"`
	UserID      string    `json:"user_id,omitempty"`
	InstanceID  int64     `json:"instance_id,omitempty"`
	GroupID     *string   `json:"group_id,omitempty"`
	TotalPoints int       `json:"total_points,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher turns engine events into leaderboard change messages.
type Publisher struct {
	pubsub cache.PubSub
	logger *zap.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(ps cache.PubSub, logger *zap.Logger) *Publisher {
	return &Publisher{pubsub: ps, logger: logger}
}

// Register subscribes the publisher to the events that move rankings.
func (p *Publisher) Register(h *hook.Center) {
	for _, event := range []string{
		hook.OnChallengeStart,
		hook.OnQuestComplete,
		hook.OnBonusAwarded,
		hook.OnProfileChanged,
	} {
		h.Register(event, 100, publisherHook, p.onEvent)
	}
}

func (p *Publisher) onEvent(ctx context.Context, event string, data interface{}) (interface{}, error) {
	ch := Change{Event: event, At: time.Now().UTC()}
	switch ev := data.(type) {
	case hook.ChallengeStarted:
		ch.UserID, ch.InstanceID, ch.GroupID = ev.UserID, ev.InstanceID, ev.GroupID
	case hook.QuestCompleted:
		ch.UserID, ch.InstanceID, ch.GroupID, ch.TotalPoints = ev.UserID, ev.InstanceID, ev.GroupID, ev.TotalPoints
	case hook.BonusAwarded:
		ch.UserID, ch.InstanceID, ch.GroupID, ch.TotalPoints = ev.UserID, ev.InstanceID, ev.GroupID, ev.TotalPoints
	case hook.ProfileChanged:
		ch.UserID = ev.UserID
	}
	if err := p.Publish(ctx, ch); err != nil {
		p.logger.Warn("leaderboard fan-out failed", zap.String("event", event), zap.Error(err))
	}
	return data, nil
}

// Publish sends ch on LeaderboardChannel.
func (p *Publisher) Publish(ctx context.Context, ch Change) error {
	b, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return p.pubsub.Publish(ctx, LeaderboardChannel, string(b))
}

// Ping publishes a periodic refresh hint.
func (p *Publisher) Ping(ctx context.Context) {
	if err := p.Publish(ctx, Change{Event: "refresh", At: time.Now().UTC()}); err != nil {
		p.logger.Warn("leaderboard refresh ping failed", zap.Error(err))
	}
}
