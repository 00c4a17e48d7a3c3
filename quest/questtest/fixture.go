// Package questtest provides a small catalog shared by engine tests.
package questtest

import (
	"testing"

	"github.com/sevenday/challenge/server/model"
	"github.com/sevenday/challenge/server/quest"
	"github.com/stretchr/testify/require"
)

// Quests returns fresh definitions for the fixture catalog:
//
//   - flow_finder: ff_intro (text, 10), ff_builder (builder, 10),
//     ff_explorer (explorer, 15), ff_stage (stage "integrate", 5)
//   - daily: one checkbox quest per pillar (10 each) plus d_breath
//     (recognise, 5, maxPerDay 2)
//   - weekly: w_recognise (10), w_reconnect (10)
//   - bonus: b1..b5 (20 each)
//   - tracker: t_groan (groan, maxCompletions 3), t_log, t_compass,
//     t_milestone (milestone), t_after (requires t_milestone),
//     t_gated (feature gate flow_compass)
func Quests() []*quest.Definition {
	return []*quest.Definition{
		{ID: "ff_intro", Category: model.CategoryFlowFinder, Points: 10, InputKind: quest.InputText},
		{ID: "ff_builder", Category: model.CategoryFlowFinder, Points: 10, InputKind: quest.InputCheckbox, PersonaSpecific: []string{"builder"}},
		{ID: "ff_explorer", Category: model.CategoryFlowFinder, Points: 15, InputKind: quest.InputCheckbox, PersonaSpecific: []string{"Explorer"}},
		{ID: "ff_stage", Category: model.CategoryFlowFinder, Points: 5, InputKind: quest.InputFlow, StageRequired: "integrate"},

		{ID: "d_recognise", Category: model.CategoryDaily, Type: model.PillarRecognise, Points: 10, InputKind: quest.InputCheckbox},
		{ID: "d_release", Category: model.CategoryDaily, Type: model.PillarRelease, Points: 10, InputKind: quest.InputText},
		{ID: "d_rewire", Category: model.CategoryDaily, Type: model.PillarRewire, Points: 10, InputKind: quest.InputDropdown},
		{ID: "d_reconnect", Category: model.CategoryDaily, Type: model.PillarReconnect, Points: 10, InputKind: quest.InputCheckbox},
		{ID: "d_breath", Category: model.CategoryDaily, Type: model.PillarRecognise, Points: 5, InputKind: quest.InputCheckbox, MaxPerDay: 2},

		{ID: "w_recognise", Category: model.CategoryWeekly, Type: model.PillarRecognise, Points: 10, InputKind: quest.InputCheckbox},
		{ID: "w_reconnect", Category: model.CategoryWeekly, Type: model.PillarReconnect, Points: 10, InputKind: quest.InputCheckbox},

		{ID: "b1", Category: model.CategoryBonus, Points: 20, InputKind: quest.InputCheckbox},
		{ID: "b2", Category: model.CategoryBonus, Points: 20, InputKind: quest.InputCheckbox},
		{ID: "b3", Category: model.CategoryBonus, Points: 20, InputKind: quest.InputCheckbox},
		{ID: "b4", Category: model.CategoryBonus, Points: 20, InputKind: quest.InputCheckbox},
		{ID: "b5", Category: model.CategoryBonus, Points: 20, InputKind: quest.InputCheckbox},

		{ID: "t_groan", Category: model.CategoryTracker, Points: 5, InputKind: quest.InputGroan, MaxCompletions: 3},
		{ID: "t_log", Category: model.CategoryTracker, Points: 10, InputKind: quest.InputConversationLog},
		{ID: "t_compass", Category: model.CategoryTracker, Points: 10, InputKind: quest.InputFlowCompass},
		{ID: "t_milestone", Category: model.CategoryTracker, Points: 50, InputKind: quest.InputMilestone, MilestoneType: "first_share"},
		{ID: "t_after", Category: model.CategoryTracker, Points: 5, InputKind: quest.InputCheckbox, RequiresQuest: "t_milestone"},
		{ID: "t_gated", Category: model.CategoryTracker, Points: 5, InputKind: quest.InputCheckbox, FeatureGate: string(quest.InputFlowCompass)},
	}
}

// Artifacts returns fresh artifact definitions for the fixture catalog.
func Artifacts() []*quest.Artifact {
	return []*quest.Artifact{
		{ID: "compass", Category: model.CategoryFlowFinder},
		{ID: "lantern", Category: model.CategoryDaily, Pillars: map[string]quest.PillarRequirement{
			model.PillarRecognise: {DailyPointsRequired: 20, WeeklyPointsRequired: 10},
		}},
		{ID: "anchor", Category: model.CategoryWeekly, Pillars: map[string]quest.PillarRequirement{
			model.PillarReconnect: {DailyPointsRequired: 10, WeeklyPointsRequired: 10},
		}},
		{ID: "trophy", Category: model.CategoryBonus, PointsRequired: 60},
		{ID: "journal", Category: model.CategoryTracker, PointsRequired: 15},
	}
}

// Catalog builds the fixture catalog.
func Catalog(t testing.TB) *quest.Catalog {
	t.Helper()
	c, err := quest.NewCatalog(Quests(), Artifacts())
	require.NoError(t, err)
	return c
}
