package quest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sevenday/challenge/server/model"
	"gopkg.in/yaml.v3"
)

// InputKind is the closed set of ways a quest collects its completion input.
type InputKind string

const (
	InputText            InputKind = "text"
	InputDropdown        InputKind = "dropdown"
	InputCheckbox        InputKind = "checkbox"
	InputFlow            InputKind = "flow"
	InputConversationLog InputKind = "conversation_log"
	InputMilestone       InputKind = "milestone"
	InputFlowCompass     InputKind = "flow_compass"
	InputGroan           InputKind = "groan"
)

// Valid reports whether k is a known input kind.
func (k InputKind) Valid() bool {
	switch k {
	case InputText, InputDropdown, InputCheckbox, InputFlow,
		InputConversationLog, InputMilestone, InputFlowCompass, InputGroan:
		return true
	}
	return false
}

// Structured reports whether the payload is produced by a dedicated sub-flow.
func (k InputKind) Structured() bool {
	switch k {
	case InputConversationLog, InputMilestone, InputFlowCompass, InputGroan:
		return true
	}
	return false
}

// Definition is an immutable quest from the catalog.
type Definition struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title,omitempty" yaml:"title,omitempty"`
	Category        string    `json:"category" yaml:"category"`
	Type            string    `json:"type,omitempty" yaml:"type,omitempty"`
	Points          int       `json:"points" yaml:"points"`
	InputKind       InputKind `json:"inputKind" yaml:"inputKind"`
	PersonaSpecific []string  `json:"personaSpecific,omitempty" yaml:"personaSpecific,omitempty"`
	StageRequired   string    `json:"stageRequired,omitempty" yaml:"stageRequired,omitempty"`
	RequiresQuest   string    `json:"requiresQuest,omitempty" yaml:"requiresQuest,omitempty"`
	FeatureGate     string    `json:"featureGate,omitempty" yaml:"featureGate,omitempty"`
	MaxCompletions  int       `json:"maxCompletions,omitempty" yaml:"maxCompletions,omitempty"`
	MaxPerDay       int       `json:"maxPerDay,omitempty" yaml:"maxPerDay,omitempty"`
	MilestoneType   string    `json:"milestoneType,omitempty" yaml:"milestoneType,omitempty"`
}

// PerDay returns the effective per-day cap (1 when unset).
func (d *Definition) PerDay() int {
	if d.MaxPerDay > 0 {
		return d.MaxPerDay
	}
	return 1
}

// PillarRequirement is the per-pillar threshold of a Daily/Weekly artifact.
type PillarRequirement struct {
	DailyPointsRequired  int `json:"dailyPointsRequired" yaml:"dailyPointsRequired"`
	WeeklyPointsRequired int `json:"weeklyPointsRequired" yaml:"weeklyPointsRequired"`
}

// Artifact is a reward unlocked by point thresholds in one category.
// Flow Finder artifacts ignore PointsRequired: their bar is the sum of all
// currently eligible Flow Finder quests.
type Artifact struct {
	ID             string                       `json:"id" yaml:"id"`
	Name           string                       `json:"name,omitempty" yaml:"name,omitempty"`
	Category       string                       `json:"category" yaml:"category"`
	PointsRequired int                          `json:"pointsRequired,omitempty" yaml:"pointsRequired,omitempty"`
	Pillars        map[string]PillarRequirement `json:"pillars,omitempty" yaml:"pillars,omitempty"`
}

// Catalog is the read-only set of quest and artifact definitions.
type Catalog struct {
	quests    []*Definition
	byID      map[string]*Definition
	artifacts []*Artifact
	artByID   map[string]*Artifact
}

type catalogFile struct {
	Quests    []*Definition `json:"quests" yaml:"quests"`
	Artifacts []*Artifact   `json:"artifacts" yaml:"artifacts"`
}

// NewCatalog builds and validates a catalog.
func NewCatalog(quests []*Definition, artifacts []*Artifact) (*Catalog, error) {
	c := &Catalog{
		quests:    quests,
		byID:      make(map[string]*Definition, len(quests)),
		artifacts: artifacts,
		artByID:   make(map[string]*Artifact, len(artifacts)),
	}
	for _, q := range quests {
		if q != nil {
			if _, dup := c.byID[q.ID]; !dup {
				c.byID[q.ID] = q
			}
		}
	}
	for _, a := range artifacts {
		if a != nil {
			c.artByID[a.ID] = a
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCatalog reads a YAML (.yaml/.yml) or JSON catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var f catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return NewCatalog(f.Quests, f.Artifacts)
}

// Validate checks the catalog's internal consistency.
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.quests))
	for i, q := range c.quests {
		if q == nil {
			errs = append(errs, fmt.Errorf("quest #%d: empty entry", i))
			continue
		}
		if q.ID == "" {
			errs = append(errs, fmt.Errorf("quest #%d: missing id", i))
			continue
		}
		if seen[q.ID] {
			errs = append(errs, fmt.Errorf("quest %s: duplicate id", q.ID))
		}
		seen[q.ID] = true
		if !validCategory(q.Category) {
			errs = append(errs, fmt.Errorf("quest %s: unknown category %q", q.ID, q.Category))
		}
		if model.IsPillarCategory(q.Category) && !model.IsPillar(q.Type) {
			errs = append(errs, fmt.Errorf("quest %s: %s quests need a pillar type, got %q", q.ID, q.Category, q.Type))
		}
		if q.Points <= 0 {
			errs = append(errs, fmt.Errorf("quest %s: points must be positive", q.ID))
		}
		if !q.InputKind.Valid() {
			errs = append(errs, fmt.Errorf("quest %s: unknown input kind %q", q.ID, q.InputKind))
		}
		if q.MaxPerDay < 0 || q.MaxCompletions < 0 {
			errs = append(errs, fmt.Errorf("quest %s: negative cap", q.ID))
		}
	}
	for _, q := range c.quests {
		if q == nil || q.RequiresQuest == "" {
			continue
		}
		if _, ok := c.byID[q.RequiresQuest]; !ok {
			errs = append(errs, fmt.Errorf("quest %s: requires unknown quest %q", q.ID, q.RequiresQuest))
		}
	}

	seenArt := make(map[string]bool, len(c.artifacts))
	for i, a := range c.artifacts {
		if a == nil || a.ID == "" {
			errs = append(errs, fmt.Errorf("artifact #%d: missing id", i))
			continue
		}
		if seenArt[a.ID] {
			errs = append(errs, fmt.Errorf("artifact %s: duplicate id", a.ID))
		}
		seenArt[a.ID] = true
		switch {
		case !validCategory(a.Category):
			errs = append(errs, fmt.Errorf("artifact %s: unknown category %q", a.ID, a.Category))
		case model.IsPillarCategory(a.Category):
			if len(a.Pillars) == 0 {
				errs = append(errs, fmt.Errorf("artifact %s: pillar mapping required", a.ID))
			}
			for p := range a.Pillars {
				if !model.IsPillar(p) {
					errs = append(errs, fmt.Errorf("artifact %s: unknown pillar %q", a.ID, p))
				}
			}
		case a.Category == model.CategoryBonus, a.Category == model.CategoryTracker:
			if a.PointsRequired <= 0 {
				errs = append(errs, fmt.Errorf("artifact %s: pointsRequired must be positive", a.ID))
			}
		}
	}
	return errors.Join(errs...)
}

func validCategory(cat string) bool {
	for _, c := range model.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Quest returns the definition with the given id.
func (c *Catalog) Quest(id string) (*Definition, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// Quests returns every definition in catalog order.
func (c *Catalog) Quests() []*Definition {
	return c.quests
}

// ByCategory returns the definitions of one category in catalog order.
func (c *Catalog) ByCategory(cat string) []*Definition {
	var out []*Definition
	for _, q := range c.quests {
		if q.Category == cat {
			out = append(out, q)
		}
	}
	return out
}

// Artifacts returns every artifact in catalog order.
func (c *Catalog) Artifacts() []*Artifact {
	return c.artifacts
}

// Artifact returns the artifact with the given id.
func (c *Catalog) Artifact(id string) (*Artifact, bool) {
	a, ok := c.artByID[id]
	return a, ok
}
