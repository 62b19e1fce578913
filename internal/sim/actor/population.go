package actor

import (
	"sort"

	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
)

// Population owns the actors of a run, indexed by id.
type Population struct {
	env    *Env
	actors []*Actor
}

func NewPopulation(env *Env) *Population {
	if env == nil || env.Chronicle == nil || env.Rand == nil {
		model.Violate("population needs a chronicle and a random source")
	}
	return &Population{env: env}
}

// Add registers a new actor in the chronicle.
func (p *Population) Add(name string) *Actor {
	id := p.env.Chronicle.AddActor(name)
	if int(id) != len(p.actors) {
		model.Violate("actor %d registered out of order (have %d)", id, len(p.actors))
	}
	a := newActor(p.env, id)
	p.actors = append(p.actors, a)
	return a
}

func (p *Population) Len() int { return len(p.actors) }

func (p *Population) Get(id model.ActorID) *Actor {
	if id < 0 || int(id) >= len(p.actors) {
		model.Violate("actor %d out of range [0,%d)", id, len(p.actors))
	}
	return p.actors[id]
}

func (p *Population) All() []*Actor { return p.actors }

// Resolve maps ids to actors.
func (p *Population) Resolve(ids []model.ActorID) []*Actor {
	out := make([]*Actor, len(ids))
	for i, id := range ids {
		out[i] = p.Get(id)
	}
	return out
}

// SetupRandomValues draws a's wealth, emotions, starting relationships and
// goal, in that order.
func (p *Population) SetupRandomValues(a *Actor, tick int) {
	rng := p.env.Rand
	a.InitWealth(tick, rng.Float(-1, 1))
	for e := 0; e < model.EmotionCount; e++ {
		a.InitEmotion(tick, model.EmotionType(e), rng.Float(-1, 1))
	}
	p.setupRandomRelationships(a, tick)
	a.InitGoal(tick, model.GoalType(rng.Int(0, model.GoalCount-1)))
}

// setupRandomRelationships links a to random others in both directions.
// Candidates are probed forward from a random id, skipping a itself, actors
// already known, and actors that already know more than the desired maximum.
func (p *Population) setupRandomRelationships(a *Actor, tick int) {
	rng := p.env.Rand
	opts := p.env.Options
	n := len(p.actors)
	if n < 2 {
		return
	}
	want := int(rng.UInt(uint32(opts.MinStartRelationships), uint32(opts.MaxStartRelationships)))
	for i := len(a.known); i < want; i++ {
		other := rng.Int(0, n-1)
		tries := 0
		for tries < n && (model.ActorID(other) == a.id ||
			a.Knows(model.ActorID(other)) ||
			len(p.actors[other].known) > opts.DesiredMaxStartRelationships) {
			tries++
			other = (other + 1) % n
		}
		if tries == n {
			return
		}
		b := p.actors[other]
		var mine, theirs relationshipSet
		for t := 0; t < model.RelationshipCount; t++ {
			rt := model.RelationshipType(t)
			mine[t] = p.env.Chronicle.CreateRelationship(rt, tick, a.id, b.id, nil, rng.Float(-1, 1))
			theirs[t] = p.env.Chronicle.CreateRelationship(rt, tick, b.id, a.id, nil, rng.Float(-1, 1))
		}
		a.setRelationships(b.id, &mine)
		b.setRelationships(a.id, &theirs)
	}
}

// Materialize records a chosen interaction in the chronicle and applies its
// effects to every participant.
func (p *Population) Materialize(c Choice, tick int) *kernel.Kernel {
	k := p.env.Chronicle.CreateInteraction(c.Def, c.Chance, tick, c.Reasons, c.Participants)
	p.Apply(k)
	return k
}

// Apply runs the prototype effects of interaction k. Per participant: wealth,
// then emotions in type order, then relationships toward other slots in slot
// order. Every new kernel cites k.
func (p *Population) Apply(k *kernel.Kernel) {
	in, ok := k.AsInteraction()
	if !ok {
		model.Violate("kernel %d is not an interaction", k.ID())
	}
	proto := &in.Def.Prototype
	reasons := []kernel.ID{k.ID()}
	tick := k.Tick()
	for i, id := range in.Participants {
		a := p.Get(id)
		a.ApplyWealthChange(reasons, tick, proto.Wealth[i])
		for e := 0; e < model.EmotionCount; e++ {
			a.ApplyEmotionChange(reasons, tick, model.EmotionType(e), proto.Emotions[i][e])
		}
		effects := proto.Relationships[i]
		slots := make([]int, 0, len(effects))
		for other := range effects {
			slots = append(slots, other)
		}
		sort.Ints(slots)
		for _, other := range slots {
			a.ApplyRelationshipChange(reasons, tick, in.Participants[other], effects[other])
		}
	}
}
