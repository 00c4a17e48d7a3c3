// Package leaderboard ranks active challenge instances by total points
// within the viewer's cohort.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sevenday/challenge/server/cache"
	"github.com/sevenday/challenge/server/calendar"
	"github.com/sevenday/challenge/server/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// View selects the time scope of an ungrouped leaderboard.
type View string

const (
	Weekly  View = "weekly"
	AllTime View = "alltime"
)

// ParseView parses a view name; empty means weekly.
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case "", Weekly:
		return Weekly, nil
	case AllTime:
		return AllTime, nil
	}
	return "", fmt.Errorf("leaderboard: unknown view %q", s)
}

// Scope kinds.
const (
	ScopeGroup  = "group"
	ScopeWeekly = "weekly"
	ScopeAll    = "all"
)

// Scope is the cohort a leaderboard is computed over.
type Scope struct {
	Kind    string     `json:"kind"`
	GroupID string     `json:"group_id,omitempty"`
	From    *time.Time `json:"from,omitempty"`
	To      *time.Time `json:"to,omitempty"`
}

// Key identifies the scope for request coalescing.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeGroup:
		return "group:" + s.GroupID
	case ScopeWeekly:
		return "weekly:" + s.From.UTC().Format(time.RFC3339)
	}
	return "all"
}

// Contains reports whether inst belongs to the scope.
func (s Scope) Contains(inst *model.ChallengeInstance) bool {
	switch s.Kind {
	case ScopeGroup:
		return inst.GroupID != nil && *inst.GroupID == s.GroupID
	case ScopeWeekly:
		return !inst.ChallengeStartDate.Before(*s.From) && inst.ChallengeStartDate.Before(*s.To)
	}
	return true
}

// ScopeFor returns the viewer's cohort. A group overrides the view; the
// weekly window is the Monday-aligned week, in loc, containing the viewer's
// own start date.
func ScopeFor(viewer *model.ChallengeInstance, view View, loc *time.Location) Scope {
	if viewer.GroupID != nil && *viewer.GroupID != "" {
		return Scope{Kind: ScopeGroup, GroupID: *viewer.GroupID}
	}
	if view == AllTime {
		return Scope{Kind: ScopeAll}
	}
	if loc == nil {
		loc = time.UTC
	}
	from, to := calendar.WeekBounds(viewer.ChallengeStartDate.In(loc))
	return Scope{Kind: ScopeWeekly, From: &from, To: &to}
}

// Entry is one ranked row.
type Entry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	InstanceID  int64  `json:"instance_id"`
	DisplayName string `json:"display_name"`
	TotalPoints int    `json:"total_points"`
	IsViewer    bool   `json:"is_viewer,omitempty"`
}

// Result is a projected leaderboard.
type Result struct {
	View       View    `json:"view"`
	Scope      Scope   `json:"scope"`
	Entries    []Entry `json:"entries"`
	ViewerRank int     `json:"viewer_rank"`
}

// DisplayName returns the first token of a profile name, or "Anonymous".
func DisplayName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "Anonymous"
	}
	return fields[0]
}

// Project ranks the active instances of scope by total points, descending.
// Ties keep input order. ViewerRank is 0 when the viewer is not ranked.
func Project(viewerUserID string, view View, scope Scope, instances []model.ChallengeInstance, names map[string]string) *Result {
	rows := make([]*model.ChallengeInstance, 0, len(instances))
	for i := range instances {
		inst := &instances[i]
		if inst.Status == model.ChallengeActive && scope.Contains(inst) {
			rows = append(rows, inst)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalPoints > rows[j].TotalPoints
	})

	res := &Result{View: view, Scope: scope, Entries: make([]Entry, 0, len(rows))}
	for i, inst := range rows {
		e := Entry{
			Rank:        i + 1,
			UserID:      inst.UserID,
			InstanceID:  inst.ID,
			DisplayName: DisplayName(names[inst.UserID]),
			TotalPoints: inst.TotalPoints,
			IsViewer:    inst.UserID == viewerUserID,
		}
		if e.IsViewer && res.ViewerRank == 0 {
			res.ViewerRank = e.Rank
		}
		res.Entries = append(res.Entries, e)
	}
	return res
}

// Projector serves leaderboards from the store, with display names cached.
type Projector struct {
	db      *gorm.DB
	cache   cache.Cache
	nameTTL time.Duration
	sf      singleflight.Group
	logger  *zap.Logger
}

// NewProjector creates a Projector. nameTTL bounds how stale a cached
// display name may be.
func NewProjector(db *gorm.DB, c cache.Cache, nameTTL time.Duration, logger *zap.Logger) *Projector {
	if nameTTL <= 0 {
		nameTTL = 10 * time.Minute
	}
	return &Projector{db: db, cache: c, nameTTL: nameTTL, logger: logger}
}

type snapshot struct {
	instances []model.ChallengeInstance
	names     map[string]string
}

// Leaderboard returns the leaderboard seen by viewer. Concurrent requests
// for the same cohort share one store read, which is not tied to the
// cancellation of whichever request started it.
func (p *Projector) Leaderboard(ctx context.Context, viewer *model.ChallengeInstance, view View, loc *time.Location) (*Result, error) {
	scope := ScopeFor(viewer, view, loc)
	v, err, _ := p.sf.Do(scope.Key(), func() (interface{}, error) {
		shared := context.WithoutCancel(ctx)
		instances, err := p.fetch(shared, scope)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(instances))
		for _, inst := range instances {
			ids = append(ids, inst.UserID)
		}
		names, err := p.Names(shared, ids)
		if err != nil {
			return nil, err
		}
		return &snapshot{instances: instances, names: names}, nil
	})
	if err != nil {
		return nil, err
	}
	snap := v.(*snapshot)
	return Project(viewer.UserID, view, scope, snap.instances, snap.names), nil
}

func (p *Projector) fetch(ctx context.Context, scope Scope) ([]model.ChallengeInstance, error) {
	q := p.db.WithContext(ctx).Where("status = ?", model.ChallengeActive)
	switch scope.Kind {
	case ScopeGroup:
		q = q.Where("group_id = ?", scope.GroupID)
	case ScopeWeekly:
		q = q.Where("challenge_start_date >= ? AND challenge_start_date < ?", scope.From.UTC(), scope.To.UTC())
	}
	var rows []model.ChallengeInstance
	err := q.Order("id ASC").Find(&rows).Error
	return rows, err
}

func nameKey(userID string) string {
	return "profile:name:" + userID
}

// Names returns the profile names of userIDs. Cached names are served from
// the cache; the rest are loaded in one query and cached. Users without a
// profile map to "".
func (p *Projector) Names(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	var missing []string
	for _, id := range userIDs {
		if _, seen := out[id]; seen {
			continue
		}
		name, err := p.cache.Get(ctx, nameKey(id))
		if err == nil {
			out[id] = name
			continue
		}
		if !cache.IsNotFound(err) {
			p.logger.Warn("leaderboard: name cache read failed", zap.String("user_id", id), zap.Error(err))
		}
		out[id] = ""
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var profiles []model.Profile
	if err := p.db.WithContext(ctx).Where("user_id IN ?", missing).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, pr := range profiles {
		out[pr.UserID] = pr.Name
	}
	for _, id := range missing {
		if err := p.cache.Set(ctx, nameKey(id), out[id], p.nameTTL); err != nil {
			p.logger.Warn("leaderboard: name cache write failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	return out, nil
}

// SetName stores the profile name of userID and drops its cached copy.
func (p *Projector) SetName(ctx context.Context, userID, name string) error {
	profile := &model.Profile{UserID: userID, Name: strings.TrimSpace(name)}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(profile).Error
	if err != nil {
		return err
	}
	return p.ForgetName(ctx, userID)
}

// ForgetName drops the cached name of userID.
func (p *Projector) ForgetName(ctx context.Context, userID string) error {
	return p.cache.Del(ctx, nameKey(userID))
}
