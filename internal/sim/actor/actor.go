// Package actor holds per-actor live state, the interaction decision engine
// and the mutation API that turns interaction effects into new kernels.
package actor

import (
	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/chronicle"
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
	"tattletale/internal/sim/random"
)

// Options are the population-wide knobs an actor consults.
type Options struct {
	// Length of the frequent-contacts prefix of the known-actor ranking.
	FreetimeActorCount int

	MinStartRelationships        int
	MaxStartRelationships        int
	DesiredMaxStartRelationships int
}

// Env is shared by every actor of a run. All fields are required.
type Env struct {
	Chronicle *chronicle.Chronicle
	Catalog   *catalogs.Catalog
	Rand      *random.Random
	Options   Options
}

type relationshipSet [model.RelationshipCount]*kernel.Kernel

// Actor points at its current value kernels in the chronicle.
type Actor struct {
	id  model.ActorID
	env *Env

	wealth        *kernel.Kernel
	emotions      [model.EmotionCount]*kernel.Kernel
	relationships map[model.ActorID]*relationshipSet
	goal          *kernel.Kernel
	traits        []*kernel.Kernel

	// Ordered by descending relationship strength.
	known []model.ActorID
}

func newActor(env *Env, id model.ActorID) *Actor {
	return &Actor{
		id:            id,
		env:           env,
		relationships: map[model.ActorID]*relationshipSet{},
	}
}

func (a *Actor) ID() model.ActorID { return a.id }
func (a *Actor) Name() string      { return a.env.Chronicle.ActorName(a.id) }

// Wealth is the current wealth, 0 before initialisation.
func (a *Actor) Wealth() float64 { return valueOf(a.wealth) }

func (a *Actor) Emotion(t model.EmotionType) float64 { return valueOf(a.emotions[t]) }

// Relationship returns the current value toward other and whether other is
// known at all.
func (a *Actor) Relationship(other model.ActorID, t model.RelationshipType) (float64, bool) {
	rel, ok := a.relationships[other]
	if !ok {
		return 0, false
	}
	return valueOf(rel[t]), true
}

// Goal reports the current goal; ok is false before one is set.
func (a *Actor) Goal() (g model.GoalType, ok bool) {
	if a.goal == nil {
		return 0, false
	}
	return a.goal.Payload().(*kernel.Goal).Type, true
}

func (a *Actor) WealthKernel() *kernel.Kernel                     { return a.wealth }
func (a *Actor) EmotionKernel(t model.EmotionType) *kernel.Kernel { return a.emotions[t] }
func (a *Actor) GoalKernel() *kernel.Kernel                       { return a.goal }
func (a *Actor) Traits() []*kernel.Kernel                         { return a.traits }

func (a *Actor) RelationshipKernel(other model.ActorID, t model.RelationshipType) *kernel.Kernel {
	if rel, ok := a.relationships[other]; ok {
		return rel[t]
	}
	return nil
}

func (a *Actor) Knows(other model.ActorID) bool {
	_, ok := a.relationships[other]
	return ok
}

// KnownActors is the ranking by descending relationship strength.
func (a *Actor) KnownActors() []model.ActorID {
	return append([]model.ActorID(nil), a.known...)
}

// FrequentContacts is the prefix of KnownActors used as the free-time pool.
func (a *Actor) FrequentContacts() []model.ActorID {
	n := a.env.Options.FreetimeActorCount
	if n > len(a.known) {
		n = len(a.known)
	}
	if n < 0 {
		n = 0
	}
	return append([]model.ActorID(nil), a.known[:n]...)
}

// RelationshipStrength sums the absolute relationship values toward other.
func (a *Actor) RelationshipStrength(other model.ActorID) float64 {
	rel, ok := a.relationships[other]
	if !ok {
		return 0
	}
	var s float64
	for _, k := range rel {
		v := valueOf(k)
		if v < 0 {
			v = -v
		}
		s += v
	}
	return s
}

// InitWealth sets the starting wealth without reasons.
func (a *Actor) InitWealth(tick int, value float64) {
	a.wealth = a.env.Chronicle.CreateResource(tick, a.id, nil, value)
}

func (a *Actor) InitEmotion(tick int, t model.EmotionType, value float64) {
	a.emotions[t] = a.env.Chronicle.CreateEmotion(t, tick, a.id, nil, value)
}

func (a *Actor) InitGoal(tick int, g model.GoalType) {
	a.goal = a.env.Chronicle.CreateGoal(g, tick, a.id, nil)
}

// InitRelationship creates every relationship type toward other without
// reasons and ranks other.
func (a *Actor) InitRelationship(tick int, other model.ActorID, values [model.RelationshipCount]float64) {
	var rel relationshipSet
	for t := range values {
		rel[t] = a.env.Chronicle.CreateRelationship(model.RelationshipType(t), tick, a.id, other, nil, values[t])
	}
	a.setRelationships(other, &rel)
}

func (a *Actor) AddTrait(tick int, name string) *kernel.Kernel {
	k := a.env.Chronicle.CreateTrait(name, tick, a.id, nil)
	a.traits = append(a.traits, k)
	return k
}

func valueOf(k *kernel.Kernel) float64 {
	if k == nil {
		return 0
	}
	v, _ := k.Value()
	return v
}
