package actor

import (
	"math"

	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
)

// Choice is a selected interaction that has not happened yet.
type Choice struct {
	Def          *catalogs.Definition
	Participants []model.ActorID
	Chance       float64
	Reasons      []kernel.ID
}

// ChooseInteraction picks an interaction and its participants from pool. It
// draws from the shared generator but does not change any state. ok is false
// when the actor does nothing this tick: no definition passes its
// requirement, or some participant slot has no viable candidate.
func (a *Actor) ChooseInteraction(pool []*Actor, ctx model.ContextType, day int) (c Choice, ok bool) {
	cat := a.env.Catalog
	if cat == nil || cat.Len() == 0 {
		model.Violate("actor %d chose from an empty catalog", a.id)
	}

	var candidates []*catalogs.Definition
	for i := range cat.Defs {
		if d := &cat.Defs[i]; a.meetsRequirement(d, len(pool), ctx, day) {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return Choice{}, false
	}

	chances := make([]float64, len(candidates))
	tendencyReasons := make([]kernel.ID, len(candidates))
	goalReasons := make([]kernel.ID, len(candidates))
	zeroes := 0
	for i, d := range candidates {
		base, tr := a.baseChance(&d.Tendency, ctx)
		chance, gr := a.reshapeForGoal(base, d)
		if chance <= 0 {
			zeroes++
		}
		chances[i], tendencyReasons[i], goalReasons[i] = chance, tr, gr
	}
	idx := a.env.Rand.PickIndex(chances, zeroes == len(chances))

	def := candidates[idx]
	c = Choice{
		Def:          def,
		Participants: []model.ActorID{a.id},
		Chance:       chances[idx],
	}
	if tendencyReasons[idx] != kernel.None {
		c.Reasons = append(c.Reasons, tendencyReasons[idx])
	}
	if goalReasons[idx] != kernel.None {
		c.Reasons = append(c.Reasons, goalReasons[idx])
	}

	for slot := 1; slot < def.ParticipantCount(); slot++ {
		weights := make([]float64, len(pool))
		reasons := make([]kernel.ID, len(pool))
		viable := false
		for j, cand := range pool {
			w, r := a.participantChance(cand, slot, def)
			if contains(c.Participants, cand.id) {
				w = 0
			}
			if w > 0 {
				viable = true
			}
			weights[j], reasons[j] = w, r
		}
		if !viable {
			return Choice{}, false
		}
		j := a.env.Rand.PickIndex(weights, false)
		c.Participants = append(c.Participants, pool[j].id)
		if reasons[j] != kernel.None {
			c.Reasons = append(c.Reasons, reasons[j])
		}
	}
	return c, true
}

func (a *Actor) meetsRequirement(d *catalogs.Definition, poolSize int, ctx model.ContextType, day int) bool {
	r := &d.Requirement
	if r.Context != model.ContextAny && r.Context != ctx {
		return false
	}
	if d.ParticipantCount() > poolSize {
		return false
	}
	if r.Goal != model.GoalAny {
		if g, ok := a.Goal(); !ok || g != r.Goal {
			return false
		}
	}
	if r.Day > day {
		return false
	}
	for e := 0; e < model.EmotionCount; e++ {
		if !catalogs.MeetsThreshold(a.Emotion(model.EmotionType(e)), r.Emotions[0][e]) {
			return false
		}
	}
	for slot := 1; slot < d.ParticipantCount(); slot++ {
		if r.HasRelationshipRequirement(slot) && !a.anyKnownMeets(&r.Relationships[slot-1]) {
			return false
		}
	}
	return true
}

// anyKnownMeets scans the ranking for one known actor satisfying every
// threshold.
func (a *Actor) anyKnownMeets(thresholds *[model.RelationshipCount]float64) bool {
	for _, other := range a.known {
		if meetsRelationship(a.relationships[other], thresholds) {
			return true
		}
	}
	return false
}

func meetsRelationship(rel *relationshipSet, thresholds *[model.RelationshipCount]float64) bool {
	for t, th := range thresholds {
		if !catalogs.MeetsThreshold(valueOf(rel[t]), th) {
			return false
		}
	}
	return true
}

// baseChance maps the tendency's signed context, wealth and emotion terms into
// [0,1]. The reason is the wealth or emotion kernel with the largest positive
// term; the first wins ties.
func (a *Actor) baseChance(t *catalogs.Tendency, ctx model.ContextType) (float64, kernel.ID) {
	var sum float64
	parts := 0
	for i, w := range t.Contexts {
		if model.ContextType(i) == ctx {
			sum += w
		} else {
			sum -= w
		}
		parts++
	}

	best, reason := 0.0, kernel.None
	consider := func(inc float64, k *kernel.Kernel) {
		sum += inc
		parts++
		if inc > best && k != nil {
			best, reason = inc, k.ID()
		}
	}
	consider(t.Wealth*a.Wealth(), a.wealth)
	for e, w := range t.Emotions {
		consider(w*a.Emotion(model.EmotionType(e)), a.emotions[e])
	}
	return (sum + float64(parts)) / float64(2*parts), reason
}

// reshapeForGoal raises chance to 1-effect, where effect is what the
// definition does for the actor's goal. A helpful definition cites the goal.
func (a *Actor) reshapeForGoal(chance float64, d *catalogs.Definition) (float64, kernel.ID) {
	g, ok := a.Goal()
	if !ok {
		return chance, kernel.None
	}
	effect := model.Clamp(goalEffect(g, &d.Prototype))
	reason := kernel.None
	if effect > 0 {
		reason = a.goal.ID()
	}
	return math.Pow(chance, 1-effect), reason
}

func goalEffect(g model.GoalType, p *catalogs.Prototype) float64 {
	effects := p.Relationships
	var effect float64
	switch g {
	case model.GoalWealth:
		effect = p.Wealth[0]
	case model.GoalAcceptance:
		for i := 1; i < len(effects); i++ {
			if toActor, ok := effects[i][0]; ok {
				effect += toActor[model.Friendship]
			}
		}
	case model.GoalRelationship:
		for i := 1; i < len(effects); i++ {
			toActor, ok := effects[i][0]
			fromActor, ok2 := effects[0][i]
			if ok && ok2 {
				effect += toActor[model.Love] + fromActor[model.Love]
			}
		}
	case model.GoalHedonism:
		effect = p.Emotions[0][model.Satisfied]
	case model.GoalPower:
		n := 0
		for i := 1; i < len(effects); i++ {
			if toActor, ok := effects[i][0]; ok {
				effect -= toActor[model.Protective]
				n++
			}
		}
		if n > 0 {
			effect /= float64(n)
		}
	}
	return effect
}

// participantChance scores cand for slot. With history the score blends the
// slot's relationship weights and fails on any unmet threshold; without it
// the score is neutral unless the slot demands a relationship.
func (a *Actor) participantChance(cand *Actor, slot int, d *catalogs.Definition) (float64, kernel.ID) {
	rel, ok := a.relationships[cand.id]
	if !ok {
		if d.Requirement.HasRelationshipRequirement(slot) {
			return 0, kernel.None
		}
		return 0.5, kernel.None
	}

	weights := &d.Tendency.Relationships[slot-1]
	if !meetsRelationship(rel, &d.Requirement.Relationships[slot-1]) {
		return 0, kernel.None
	}
	for e := 0; e < model.EmotionCount; e++ {
		if !catalogs.MeetsThreshold(cand.Emotion(model.EmotionType(e)), d.Requirement.Emotions[slot][e]) {
			return 0, kernel.None
		}
	}

	var sum, best float64
	reason := kernel.None
	for t, w := range weights {
		inc := valueOf(rel[t]) * w
		sum += inc
		if inc > best && rel[t] != nil {
			best, reason = inc, rel[t].ID()
		}
	}
	const parts = float64(model.RelationshipCount)
	return (sum + parts) / (2 * parts), reason
}

func contains(ids []model.ActorID, id model.ActorID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
