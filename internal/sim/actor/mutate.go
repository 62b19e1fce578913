package actor

import (
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
)

// ApplyWealthChange records wealth+delta, clamped, citing reasons and the
// previous wealth. A zero delta does nothing.
func (a *Actor) ApplyWealthChange(reasons []kernel.ID, tick int, delta float64) {
	if delta == 0 {
		return
	}
	all, prev := withPrevious(reasons, a.wealth)
	a.wealth = a.env.Chronicle.CreateResource(tick, a.id, all, model.Clamp(prev+delta))
}

func (a *Actor) ApplyEmotionChange(reasons []kernel.ID, tick int, t model.EmotionType, delta float64) {
	if delta == 0 {
		return
	}
	all, prev := withPrevious(reasons, a.emotions[t])
	a.emotions[t] = a.env.Chronicle.CreateEmotion(t, tick, a.id, all, model.Clamp(prev+delta))
}

// ApplyRelationshipChange applies one delta per relationship type toward
// other. An all-zero change does nothing. A first contact creates every type
// starting from 0; afterwards only the non-zero types get new kernels. The
// known-actor ranking is updated either way.
func (a *Actor) ApplyRelationshipChange(reasons []kernel.ID, tick int, other model.ActorID, change [model.RelationshipCount]float64) {
	if change == ([model.RelationshipCount]float64{}) {
		return
	}
	var next relationshipSet
	cur, known := a.relationships[other]
	if known {
		next = *cur
	}
	for t, delta := range change {
		if known && delta == 0 {
			continue
		}
		var prevKernel *kernel.Kernel
		if known {
			prevKernel = cur[t]
		}
		all, prev := withPrevious(reasons, prevKernel)
		next[t] = a.env.Chronicle.CreateRelationship(model.RelationshipType(t), tick, a.id, other, all, model.Clamp(prev+delta))
	}
	a.setRelationships(other, &next)
}

func withPrevious(reasons []kernel.ID, prev *kernel.Kernel) ([]kernel.ID, float64) {
	all := make([]kernel.ID, 0, len(reasons)+1)
	all = append(all, reasons...)
	if prev == nil {
		return all, 0
	}
	v, _ := prev.Value()
	return append(all, prev.ID()), v
}

// setRelationships stores the set and ranks other before the first known
// actor whose strength is at most its own. Other's current entry counts as a
// match, so a known actor can move up the ranking but never down.
func (a *Actor) setRelationships(other model.ActorID, rel *relationshipSet) {
	if other == a.id {
		model.Violate("actor %d cannot know itself", a.id)
	}
	a.relationships[other] = rel
	strength := a.RelationshipStrength(other)
	at, cur := len(a.known), -1
	for i, id := range a.known {
		if id == other {
			cur = i
			if at == len(a.known) {
				at = i
			}
			break
		}
		if at == len(a.known) && a.RelationshipStrength(id) <= strength {
			at = i
		}
	}
	if cur >= 0 {
		if at >= cur {
			return
		}
		copy(a.known[at+1:cur+1], a.known[at:cur])
		a.known[at] = other
		return
	}
	a.known = append(a.known, 0)
	copy(a.known[at+1:], a.known[at:])
	a.known[at] = other
}
