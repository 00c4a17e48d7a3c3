package notify

import (
	"context"
	"fmt"

	"github.com/sevenday/challenge/server/hook"
	"go.uber.org/zap"
)

const hookName = "notify"

// ArtifactUnlocked builds the notification sent when an artifact unlocks.
func ArtifactUnlocked(artifactID string) Notification {
	return Notification{
		Title: "Artifact unlocked",
		Body:  fmt.Sprintf("You unlocked %s.", artifactID),
		Tag:   "artifact-" + artifactID,
	}
}

// BonusAwarded builds the notification sent for a tab completion bonus.
func BonusAwarded(category string, points int) Notification {
	return Notification{
		Title: "Tab complete",
		Body:  fmt.Sprintf("Every %s quest done: +%d bonus points.", category, points),
		Tag:   "bonus-" + category,
	}
}

// Register subscribes the inbox to artifact unlocks and bonus awards.
// Delivery failures are logged and never reach the triggering write.
func (in *Inbox) Register(h *hook.Center) {
	h.Register(hook.OnArtifactUnlocked, 50, hookName, func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if ev, ok := data.(hook.ArtifactUnlocked); ok {
			in.deliver(ctx, ev.UserID, ArtifactUnlocked(ev.ArtifactID))
		}
		return data, nil
	})
	h.Register(hook.OnBonusAwarded, 50, hookName, func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if ev, ok := data.(hook.BonusAwarded); ok {
			in.deliver(ctx, ev.UserID, BonusAwarded(ev.Category, ev.Points))
		}
		return data, nil
	})
}

func (in *Inbox) deliver(ctx context.Context, userID string, n Notification) {
	if err := in.Notify(ctx, userID, n); err != nil {
		in.logger.Warn("notify: delivery failed",
			zap.String("user_id", userID), zap.String("tag", n.Tag), zap.Error(err))
	}
}
