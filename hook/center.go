// Package hook is the in-process event bus of the challenge engine.
// Handlers run synchronously in priority order after the triggering write
// has committed; they observe state and never change it.
package hook

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrInterrupt stops the remaining handlers of one Trigger call.
var ErrInterrupt = errors.New("hook interrupted")

// Fn handles one event. It returns the (possibly replaced) payload.
type Fn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type entry struct {
	priority int
	fn       Fn
	name     string
}

// Center holds event registrations.
type Center struct {
	mu    sync.RWMutex
	hooks map[string][]*entry
}

// NewCenter creates an empty Center.
func NewCenter() *Center {
	return &Center{hooks: make(map[string][]*entry)}
}

// Register adds fn for event. Lower priority runs first; equal priorities
// keep registration order.
func (c *Center) Register(event string, priority int, name string, fn Fn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := append(c.hooks[event], &entry{priority: priority, fn: fn, name: name})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	c.hooks[event] = entries
}

// Unregister removes the handlers registered under name for event.
func (c *Center) Unregister(event, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks[event] = without(c.hooks[event], name)
}

// UnregisterAll removes every handler registered under name.
func (c *Center) UnregisterAll(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for event, entries := range c.hooks {
		c.hooks[event] = without(entries, name)
	}
}

func without(entries []*entry, name string) []*entry {
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	return entries[:n]
}

// Trigger runs the handlers of event in order, threading data through them.
// Handler errors other than ErrInterrupt are collected and returned joined
// after every handler ran. A nil Center is a no-op.
func (c *Center) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	if c == nil {
		return data, nil
	}
	c.mu.RLock()
	entries := make([]*entry, len(c.hooks[event]))
	copy(entries, c.hooks[event])
	c.mu.RUnlock()

	var errs []error
	for _, e := range entries {
		out, err := e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		data = out
	}
	return data, errors.Join(errs...)
}

// Challenge events.
const (
	OnChallengeStart   = "on_challenge_start"
	OnDayUnlocked      = "on_day_unlocked"
	OnQuestComplete    = "on_quest_complete"
	OnBonusAwarded     = "on_bonus_awarded"
	OnArtifactUnlocked = "on_artifact_unlocked"
	OnProfileChanged   = "on_profile_changed"
)

// ChallengeStarted is the payload of OnChallengeStart.
type ChallengeStarted struct {
	UserID     string
	InstanceID int64
	GroupID    *string
	Superseded []int64
	At         time.Time
}

// DayUnlocked is the payload of OnDayUnlocked.
type DayUnlocked struct {
	UserID     string
	InstanceID int64
	Day        int
}

// QuestCompleted is the payload of OnQuestComplete.
type QuestCompleted struct {
	UserID      string
	InstanceID  int64
	GroupID     *string
	QuestID     string
	Category    string
	Points      int
	TotalPoints int
	At          time.Time
}

// BonusAwarded is the payload of OnBonusAwarded.
type BonusAwarded struct {
	UserID      string
	InstanceID  int64
	GroupID     *string
	Category    string
	Points      int
	TotalPoints int
}

// ArtifactUnlocked is the payload of OnArtifactUnlocked.
type ArtifactUnlocked struct {
	UserID     string
	InstanceID int64
	ArtifactID string
}

// ProfileChanged is the payload of OnProfileChanged.
type ProfileChanged struct {
	UserID string
}
