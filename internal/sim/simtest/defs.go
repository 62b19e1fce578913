// Package simtest holds builders shared by simulation tests.
package simtest

import (
	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/model"
)

// DefBuilder assembles one catalog definition. Requirement context and goal
// default to the wildcards.
type DefBuilder struct {
	d catalogs.Definition
}

func Def(name string, participants int) *DefBuilder {
	b := &DefBuilder{}
	b.d.Prototype = catalogs.Prototype{
		Name:             name,
		Description:      "{} did " + name,
		ParticipantCount: participants,
		Wealth:           make([]float64, participants),
		Emotions:         make([][model.EmotionCount]float64, participants),
		Relationships:    make([]map[int][model.RelationshipCount]float64, participants),
	}
	b.d.Requirement = catalogs.Requirement{
		Context:  model.ContextAny,
		Goal:     model.GoalAny,
		Emotions: make([][model.EmotionCount]float64, participants),
	}
	if participants > 1 {
		b.d.Requirement.Relationships = make([][model.RelationshipCount]float64, participants-1)
		b.d.Tendency.Relationships = make([][model.RelationshipCount]float64, participants-1)
	}
	return b
}

func (b *DefBuilder) Describe(tmpl string) *DefBuilder {
	b.d.Prototype.Description = tmpl
	return b
}

func (b *DefBuilder) Context(c model.ContextType) *DefBuilder {
	b.d.Requirement.Context = c
	return b
}

func (b *DefBuilder) Goal(g model.GoalType) *DefBuilder {
	b.d.Requirement.Goal = g
	return b
}

func (b *DefBuilder) Day(day int) *DefBuilder {
	b.d.Requirement.Day = day
	return b
}

// Wealth sets the wealth delta applied to slot.
func (b *DefBuilder) Wealth(slot int, v float64) *DefBuilder {
	b.d.Prototype.Wealth[slot] = v
	return b
}

func (b *DefBuilder) Emotion(slot int, t model.EmotionType, v float64) *DefBuilder {
	b.d.Prototype.Emotions[slot][t] = v
	return b
}

// Relationship sets the delta slot applies toward other.
func (b *DefBuilder) Relationship(slot, other int, t model.RelationshipType, v float64) *DefBuilder {
	m := b.d.Prototype.Relationships[slot]
	if m == nil {
		m = map[int][model.RelationshipCount]float64{}
		b.d.Prototype.Relationships[slot] = m
	}
	vec := m[other]
	vec[t] = v
	m[other] = vec
	return b
}

func (b *DefBuilder) RequireEmotion(slot int, t model.EmotionType, threshold float64) *DefBuilder {
	b.d.Requirement.Emotions[slot][t] = threshold
	return b
}

// RequireRelationship sets the initiator's threshold toward slot (>= 1).
func (b *DefBuilder) RequireRelationship(slot int, t model.RelationshipType, threshold float64) *DefBuilder {
	b.d.Requirement.Relationships[slot-1][t] = threshold
	return b
}

func (b *DefBuilder) TendContext(c model.ContextType, w float64) *DefBuilder {
	b.d.Tendency.Contexts[c] = w
	return b
}

func (b *DefBuilder) TendWealth(w float64) *DefBuilder {
	b.d.Tendency.Wealth = w
	return b
}

func (b *DefBuilder) TendEmotion(t model.EmotionType, w float64) *DefBuilder {
	b.d.Tendency.Emotions[t] = w
	return b
}

func (b *DefBuilder) TendRelationship(slot int, t model.RelationshipType, w float64) *DefBuilder {
	b.d.Tendency.Relationships[slot-1][t] = w
	return b
}

func (b *DefBuilder) Build() catalogs.Definition { return b.d }

// Catalog binds the builders in order; ids follow argument order.
func Catalog(defs ...*DefBuilder) *catalogs.Catalog {
	out := make([]catalogs.Definition, len(defs))
	for i, b := range defs {
		out[i] = b.Build()
	}
	return catalogs.New(out)
}

// SmallCatalog is a three-definition catalog that exercises every context and
// effect kind.
func SmallCatalog() *catalogs.Catalog {
	return Catalog(
		Def("study", 1).
			Describe("{} studied").
			Context(model.ContextCourse).
			Wealth(0, 0.05).Emotion(0, model.Calm, -0.05).
			TendContext(model.ContextCourse, 0.5).TendWealth(0.3),
		Def("chat", 2).
			Describe("{} chatted with {}").
			Emotion(0, model.Happy, 0.1).Emotion(1, model.Happy, 0.1).
			Relationship(0, 1, model.Friendship, 0.1).Relationship(1, 0, model.Friendship, 0.1).
			TendContext(model.ContextFreetime, 0.5).TendEmotion(model.Extroverted, 0.5).
			TendRelationship(1, model.Friendship, 1),
		Def("argue", 2).
			Describe("{} argued with {}").
			Emotion(0, model.Calm, -0.2).Emotion(1, model.Calm, -0.2).
			Relationship(0, 1, model.Anger, 0.2).Relationship(1, 0, model.Anger, 0.2).
			Relationship(1, 0, model.Friendship, -0.1).
			TendEmotion(model.Calm, -0.5).TendRelationship(1, model.Anger, 1),
	)
}
