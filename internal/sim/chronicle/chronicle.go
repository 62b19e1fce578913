// Package chronicle is the append-only store of every kernel of a run. It is
// the only kernel factory: ids are assigned in creation order, consequence
// edges are mirrored on creation, and per-actor indices are kept alongside.
package chronicle

import (
	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
)

type Chronicle struct {
	kernels      []*kernel.Kernel
	interactions []kernel.ID

	names               []string
	kernelsByActor      [][]kernel.ID
	interactionsByActor [][]kernel.ID
	wealthByActor       [][]kernel.ID
	emotionsByActor     [][]kernel.ID
}

func New() *Chronicle {
	return &Chronicle{}
}

// Reset discards all kernels and actors.
func (c *Chronicle) Reset() {
	*c = Chronicle{}
}

// AddActor grows the dense actor id space by one.
func (c *Chronicle) AddActor(name string) model.ActorID {
	id := model.ActorID(len(c.names))
	c.names = append(c.names, name)
	c.kernelsByActor = append(c.kernelsByActor, nil)
	c.interactionsByActor = append(c.interactionsByActor, nil)
	c.wealthByActor = append(c.wealthByActor, nil)
	c.emotionsByActor = append(c.emotionsByActor, nil)
	return id
}

func (c *Chronicle) ActorCount() int { return len(c.names) }

func (c *Chronicle) ActorName(id model.ActorID) string {
	c.checkActor(id)
	return c.names[id]
}

func (c *Chronicle) ActorNames() []string {
	return append([]string(nil), c.names...)
}

// Len is the number of kernels created so far.
func (c *Chronicle) Len() int { return len(c.kernels) }

func (c *Chronicle) Get(id kernel.ID) *kernel.Kernel {
	if id < 0 || int(id) >= len(c.kernels) {
		model.Violate("kernel %d does not exist (have %d)", id, len(c.kernels))
	}
	return c.kernels[id]
}

// Kernels returns every kernel in creation order. The slice must not be
// modified.
func (c *Chronicle) Kernels() []*kernel.Kernel { return c.kernels }

func (c *Chronicle) InteractionCount() int { return len(c.interactions) }

// Since returns the kernels created at or after id.
func (c *Chronicle) Since(id kernel.ID) []*kernel.Kernel {
	if id < 0 {
		id = 0
	}
	if int(id) >= len(c.kernels) {
		return nil
	}
	return c.kernels[id:]
}

// CreateResource records a new wealth value for owner.
func (c *Chronicle) CreateResource(tick int, owner model.ActorID, reasons []kernel.ID, value float64) *kernel.Kernel {
	k := c.create(tick, owner, reasons, &kernel.Resource{Value: model.Clamp(value)})
	c.wealthByActor[owner] = append(c.wealthByActor[owner], k.ID())
	return k
}

func (c *Chronicle) CreateEmotion(t model.EmotionType, tick int, owner model.ActorID, reasons []kernel.ID, value float64) *kernel.Kernel {
	if t < 0 || int(t) >= model.EmotionCount {
		model.Violate("emotion type %d out of range", t)
	}
	k := c.create(tick, owner, reasons, &kernel.Emotion{Type: t, Value: model.Clamp(value)})
	c.emotionsByActor[owner] = append(c.emotionsByActor[owner], k.ID())
	return k
}

func (c *Chronicle) CreateRelationship(t model.RelationshipType, tick int, owner, target model.ActorID, reasons []kernel.ID, value float64) *kernel.Kernel {
	if t < 0 || int(t) >= model.RelationshipCount {
		model.Violate("relationship type %d out of range", t)
	}
	c.checkActor(target)
	if target == owner {
		model.Violate("actor %d cannot hold a relationship with itself", owner)
	}
	return c.create(tick, owner, reasons, &kernel.Relationship{Type: t, Target: target, Value: model.Clamp(value)})
}

func (c *Chronicle) CreateGoal(t model.GoalType, tick int, owner model.ActorID, reasons []kernel.ID) *kernel.Kernel {
	if t < 0 || int(t) >= model.GoalCount {
		model.Violate("goal type %d is not an actor goal", t)
	}
	return c.create(tick, owner, reasons, &kernel.Goal{Type: t})
}

func (c *Chronicle) CreateTrait(name string, tick int, owner model.ActorID, reasons []kernel.ID) *kernel.Kernel {
	return c.create(tick, owner, reasons, &kernel.Trait{Name: name})
}

// CreateInteraction records a performed interaction. It is indexed under every
// participant; participants[0] owns it.
func (c *Chronicle) CreateInteraction(def *catalogs.Definition, chance float64, tick int, reasons []kernel.ID, participants []model.ActorID) *kernel.Kernel {
	if def == nil {
		model.Violate("interaction without a definition")
	}
	if len(participants) != def.ParticipantCount() {
		model.Violate("%s takes %d participants, got %d", def.Name(), def.ParticipantCount(), len(participants))
	}
	for i, p := range participants {
		c.checkActor(p)
		for _, q := range participants[:i] {
			if p == q {
				model.Violate("actor %d enrolled twice in %s", p, def.Name())
			}
		}
	}
	k := c.create(tick, participants[0], reasons, &kernel.Interaction{
		Def:          def,
		Chance:       chance,
		Participants: append([]model.ActorID(nil), participants...),
	})
	c.interactions = append(c.interactions, k.ID())
	c.interactionsByActor[participants[0]] = append(c.interactionsByActor[participants[0]], k.ID())
	for _, p := range participants[1:] {
		c.kernelsByActor[p] = append(c.kernelsByActor[p], k.ID())
		c.interactionsByActor[p] = append(c.interactionsByActor[p], k.ID())
	}
	return k
}

func (c *Chronicle) create(tick int, owner model.ActorID, reasons []kernel.ID, payload kernel.Payload) *kernel.Kernel {
	c.checkActor(owner)
	c.kernels = kernel.Append(c.kernels, tick, owner, reasons, payload)
	k := c.kernels[len(c.kernels)-1]
	id := k.ID()
	c.kernelsByActor[owner] = append(c.kernelsByActor[owner], id)
	return k
}

func (c *Chronicle) checkActor(id model.ActorID) {
	if id < 0 || int(id) >= len(c.names) {
		model.Violate("actor %d out of range [0,%d)", id, len(c.names))
	}
}
