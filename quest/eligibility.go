package quest

// Normalizer maps a persona tag to its canonical form.
type Normalizer interface {
	Normalize(tag string) string
}

// Eligibility narrows the catalog to the quests that currently count for a
// persona/stage pair. It is recomputed on every call.
type Eligibility struct {
	catalog *Catalog
	norm    Normalizer
}

// NewEligibility creates an Eligibility filter. A nil normalizer compares tags verbatim.
func NewEligibility(catalog *Catalog, norm Normalizer) *Eligibility {
	return &Eligibility{catalog: catalog, norm: norm}
}

func (e *Eligibility) normalize(tag string) string {
	if e.norm == nil {
		return tag
	}
	return e.norm.Normalize(tag)
}

// Eligible reports whether q counts for persona and stage.
func (e *Eligibility) Eligible(q *Definition, persona, stage string) bool {
	if len(q.PersonaSpecific) > 0 {
		p := e.normalize(persona)
		if p == "" {
			return false
		}
		match := false
		for _, tag := range q.PersonaSpecific {
			if e.normalize(tag) == p {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return q.StageRequired == "" || q.StageRequired == stage
}

// Quests returns the eligible definitions of category in catalog order.
func (e *Eligibility) Quests(category, persona, stage string) []*Definition {
	var out []*Definition
	for _, q := range e.catalog.ByCategory(category) {
		if e.Eligible(q, persona, stage) {
			out = append(out, q)
		}
	}
	return out
}

// ValidQuestIDs returns the set of eligible quest ids in category.
func (e *Eligibility) ValidQuestIDs(category, persona, stage string) map[string]struct{} {
	qs := e.Quests(category, persona, stage)
	ids := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		ids[q.ID] = struct{}{}
	}
	return ids
}
