package reward

import (
	"context"

	"github.com/sevenday/challenge/server/challenge"
	"github.com/sevenday/challenge/server/model"
)

// CounterDrift is a pillar counter that disagrees with the ledger.
type CounterDrift struct {
	Pillar   string `json:"pillar"`
	Category string `json:"category"`
	Stored   int    `json:"stored"`
	Ledger   int    `json:"ledger"`
}

// Reconciliation compares an instance's stored totals with the fold of its
// ledger entries and bonus awards.
type Reconciliation struct {
	InstanceID    int64          `json:"instance_id"`
	StoredTotal   int            `json:"stored_total"`
	ExpectedTotal int            `json:"expected_total"`
	LedgerPoints  int            `json:"ledger_points"`
	BonusPoints   int            `json:"bonus_points"`
	Entries       int            `json:"entries"`
	Drift         []CounterDrift `json:"drift,omitempty"`
}

// Consistent reports whether the stored state matches the ledger.
func (r *Reconciliation) Consistent() bool {
	return r.StoredTotal == r.ExpectedTotal && len(r.Drift) == 0
}

// Reconcile recomputes total points and pillar counters of instanceID from
// the ledger and bonus awards and reports every mismatch. It never writes.
func (a *Accountant) Reconcile(ctx context.Context, instanceID int64) (*Reconciliation, error) {
	inst, err := challenge.Find(ctx, a.db, instanceID)
	if err != nil {
		return nil, err
	}
	entries, err := a.ledger.ForInstance(ctx, instanceID, "")
	if err != nil {
		return nil, err
	}
	bonuses, err := a.BonusAwards(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	r := &Reconciliation{InstanceID: instanceID, StoredTotal: inst.TotalPoints, Entries: len(entries)}
	var fold model.ChallengeInstance
	for _, e := range entries {
		r.LedgerPoints += e.PointsEarned
		if model.IsPillar(e.Type) {
			fold.AddPillarPoints(e.Type, e.Category, e.PointsEarned)
		}
	}
	for _, pts := range bonuses {
		r.BonusPoints += pts
	}
	r.ExpectedTotal = r.LedgerPoints + r.BonusPoints

	for _, cat := range []string{model.CategoryDaily, model.CategoryWeekly} {
		for _, p := range model.Pillars {
			stored, want := inst.PillarPoints(p, cat), fold.PillarPoints(p, cat)
			if stored != want {
				r.Drift = append(r.Drift, CounterDrift{Pillar: p, Category: cat, Stored: stored, Ledger: want})
			}
		}
	}
	return r, nil
}
