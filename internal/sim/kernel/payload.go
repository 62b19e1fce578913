package kernel

import (
	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/model"
)

// Payload is the closed set of kind-specific kernel contents.
type Payload interface {
	Kind() Kind
	name() string
}

// Resource is an actor's wealth.
type Resource struct {
	Value float64
}

type Emotion struct {
	Type  model.EmotionType
	Value float64
}

// Relationship is directional: owner toward Target.
type Relationship struct {
	Type   model.RelationshipType
	Target model.ActorID
	Value  float64
}

type Goal struct {
	Type model.GoalType
}

type Trait struct {
	Name string
}

// Interaction is a performed catalog definition. Participants[0] initiated it.
type Interaction struct {
	Def          *catalogs.Definition
	Chance       float64
	Participants []model.ActorID
}

func (*Resource) Kind() Kind     { return KindResource }
func (*Emotion) Kind() Kind      { return KindEmotion }
func (*Relationship) Kind() Kind { return KindRelationship }
func (*Goal) Kind() Kind         { return KindGoal }
func (*Trait) Kind() Kind        { return KindTrait }
func (*Interaction) Kind() Kind  { return KindInteraction }

func (*Resource) name() string       { return "wealth" }
func (p *Emotion) name() string      { return p.Type.String() }
func (p *Relationship) name() string { return p.Type.String() }
func (p *Goal) name() string         { return p.Type.String() }
func (p *Trait) name() string        { return p.Name }
func (p *Interaction) name() string  { return p.Def.Name() }

// Slot returns the participant slot of actor, or -1.
func (p *Interaction) Slot(actor model.ActorID) int {
	for i, a := range p.Participants {
		if a == actor {
			return i
		}
	}
	return -1
}
