// Package subflow persists the structured output of dedicated sub-flows
// (conversation logs, milestones, flow compass, groan reflections) and
// answers feature-gate lookups.
package subflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sevenday/challenge/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Request is one sub-flow write on behalf of a completion attempt.
type Request struct {
	Kind       string
	UserID     string
	InstanceID int64
	QuestID    string
	Data       json.RawMessage
	At         time.Time
}

// Result is the writer's verdict. Success false means the attempt must not
// reach the ledger; Error is shown to the user as-is.
type Result struct {
	Success          bool
	Payload          json.RawMessage
	Error            string
	AlreadyCompleted bool
}

// Writer writes one kind of sub-flow record.
type Writer interface {
	Write(ctx context.Context, req Request) (Result, error)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, req Request) (Result, error)

// Write calls f.
func (f WriterFunc) Write(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// Registry maps input kinds to writers.
type Registry struct {
	writers map[string]Writer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{writers: make(map[string]Writer)}
}

// Register binds kind to w, replacing any earlier writer.
func (r *Registry) Register(kind string, w Writer) {
	r.writers[kind] = w
}

// Writer returns the writer for kind.
func (r *Registry) Writer(kind string) (Writer, bool) {
	if r == nil {
		return nil, false
	}
	w, ok := r.writers[kind]
	return w, ok
}

// Kinds that are written by dedicated sub-flows.
var Kinds = []string{"conversation_log", "milestone", "flow_compass", "groan"}

// Default returns a registry with a StoreWriter bound to every structured kind.
func Default(db *gorm.DB, logger *zap.Logger) *Registry {
	r := NewRegistry()
	w := NewStoreWriter(db, logger)
	for _, k := range Kinds {
		r.Register(k, w)
	}
	return r
}

// StoreWriter persists sub-flow records and marks the matching feature done.
type StoreWriter struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStoreWriter creates a StoreWriter.
func NewStoreWriter(db *gorm.DB, logger *zap.Logger) *StoreWriter {
	return &StoreWriter{db: db, logger: logger}
}

// Write stores req. A milestone already recorded for the same user and quest
// is reported as AlreadyCompleted instead of being written twice.
func (w *StoreWriter) Write(ctx context.Context, req Request) (Result, error) {
	if len(req.Data) == 0 {
		return Result{Error: fmt.Sprintf("%s: empty submission", req.Kind)}, nil
	}
	if !json.Valid(req.Data) {
		return Result{Error: fmt.Sprintf("%s: submission is not valid JSON", req.Kind)}, nil
	}

	if req.Kind == "milestone" {
		var existing model.SubflowRecord
		err := w.db.WithContext(ctx).
			Where("user_id = ? AND kind = ? AND quest_id = ?", req.UserID, req.Kind, req.QuestID).
			First(&existing).Error
		if err == nil {
			return Result{Error: "milestone already recorded", AlreadyCompleted: true}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, err
		}
	}

	rec := &model.SubflowRecord{
		UserID:              req.UserID,
		Kind:                req.Kind,
		ChallengeInstanceID: req.InstanceID,
		QuestID:             req.QuestID,
		Data:                datatypes.JSON(req.Data),
	}
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return markDone(tx, req.UserID, req.Kind, req.At)
	})
	if err != nil {
		return Result{}, err
	}
	w.logger.Debug("subflow recorded",
		zap.String("user_id", req.UserID),
		zap.String("kind", req.Kind),
		zap.String("quest_id", req.QuestID),
		zap.Int64("record_id", rec.ID))
	return Result{Success: true, Payload: req.Data}, nil
}

func markDone(tx *gorm.DB, userID, feature string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	flag := &model.FeatureFlag{UserID: userID, Feature: feature, CompletedAt: at.UTC()}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(flag).Error
}

// Gates answers feature-gate lookups from the feature_flags table.
type Gates struct {
	db *gorm.DB
}

// NewGates creates Gates over db.
func NewGates(db *gorm.DB) *Gates {
	return &Gates{db: db}
}

// Done reports whether userID has finished feature.
func (g *Gates) Done(ctx context.Context, userID, feature string) (bool, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(&model.FeatureFlag{}).
		Where("user_id = ? AND feature = ?", userID, feature).
		Count(&n).Error
	return n > 0, err
}

// MarkDone records feature as finished for userID. It is idempotent.
func (g *Gates) MarkDone(ctx context.Context, userID, feature string, at time.Time) error {
	return markDone(g.db.WithContext(ctx), userID, feature, at)
}
