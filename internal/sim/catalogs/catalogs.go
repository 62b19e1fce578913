package catalogs

import (
	"fmt"

	"tattletale/internal/sim/model"
)

// Catalog is the immutable set of interaction definitions. A definition's ID is
// its index in Defs.
type Catalog struct {
	Defs   []Definition
	Digest string
}

// Definition binds the prototype, requirement and tendency of one interaction.
type Definition struct {
	ID          int
	Prototype   Prototype
	Requirement Requirement
	Tendency    Tendency
}

type Prototype struct {
	Name               string
	Description        string
	PassiveDescription string
	ActiveDescription  string
	AbsoluteInterest   int
	Tags               []string

	ParticipantCount int

	// Per participant slot.
	Wealth   []float64
	Emotions [][model.EmotionCount]float64
	// Per participant slot: other slot -> delta per relationship type.
	Relationships []map[int][model.RelationshipCount]float64
}

// Requirement is the hard gate. Thresholds are signed: negative means "at most",
// positive "at least", zero unconstrained.
type Requirement struct {
	Context model.ContextType
	Day     int
	Goal    model.GoalType

	// Per participant slot.
	Emotions [][model.EmotionCount]float64
	// Indexed by slot-1: the initiator's relationship to that slot.
	Relationships [][model.RelationshipCount]float64
}

// Tendency is the soft score.
type Tendency struct {
	Contexts [model.ContextCount]float64
	Wealth   float64
	Emotions [model.EmotionCount]float64
	// Indexed by slot-1.
	Relationships [][model.RelationshipCount]float64
}

func (d *Definition) Name() string          { return d.Prototype.Name }
func (d *Definition) ParticipantCount() int { return d.Prototype.ParticipantCount }

// HasRelationshipRequirement reports whether slot (>= 1) carries any non-zero
// relationship threshold.
func (r *Requirement) HasRelationshipRequirement(slot int) bool {
	i := slot - 1
	if i < 0 || i >= len(r.Relationships) {
		return false
	}
	for _, v := range r.Relationships[i] {
		if v != 0 {
			return true
		}
	}
	return false
}

// MeetsThreshold applies the signed threshold convention to a single value.
func MeetsThreshold(value, threshold float64) bool {
	if threshold < 0 {
		return value <= threshold
	}
	if threshold > 0 {
		return value >= threshold
	}
	return true
}

// New builds a catalog from already-bound definitions, assigning ids by
// position. Shape errors are caller misuse.
func New(defs []Definition) *Catalog {
	c := &Catalog{Defs: make([]Definition, len(defs))}
	for i := range defs {
		d := defs[i]
		d.ID = i
		d.normalize()
		if err := d.validate(); err != nil {
			model.Violate("definition %d: %v", i, err)
		}
		c.Defs[i] = d
	}
	return c
}

// Bind merges three position-aligned tables into definitions. Misaligned
// tables are caller misuse.
func Bind(prototypes []Prototype, requirements []Requirement, tendencies []Tendency) *Catalog {
	if len(prototypes) != len(requirements) || len(prototypes) != len(tendencies) {
		model.Violate("catalog tables misaligned: %d prototypes, %d requirements, %d tendencies",
			len(prototypes), len(requirements), len(tendencies))
	}
	defs := make([]Definition, len(prototypes))
	for i := range prototypes {
		defs[i] = Definition{Prototype: prototypes[i], Requirement: requirements[i], Tendency: tendencies[i]}
	}
	return New(defs)
}

func (c *Catalog) Len() int { return len(c.Defs) }

// Get returns the definition with id; an unknown id is caller misuse.
func (c *Catalog) Get(id int) *Definition {
	if id < 0 || id >= len(c.Defs) {
		model.Violate("interaction definition %d does not exist", id)
	}
	return &c.Defs[id]
}

// ByName returns the first definition named name.
func (c *Catalog) ByName(name string) (*Definition, bool) {
	for i := range c.Defs {
		if c.Defs[i].Prototype.Name == name {
			return &c.Defs[i], true
		}
	}
	return nil, false
}

// normalize pads every per-slot table to the participant count.
func (d *Definition) normalize() {
	n := d.Prototype.ParticipantCount
	p := &d.Prototype
	for len(p.Wealth) < n {
		p.Wealth = append(p.Wealth, 0)
	}
	for len(p.Emotions) < n {
		p.Emotions = append(p.Emotions, [model.EmotionCount]float64{})
	}
	for len(p.Relationships) < n {
		p.Relationships = append(p.Relationships, nil)
	}
	r := &d.Requirement
	for len(r.Emotions) < n {
		r.Emotions = append(r.Emotions, [model.EmotionCount]float64{})
	}
	for len(r.Relationships) < n-1 {
		r.Relationships = append(r.Relationships, [model.RelationshipCount]float64{})
	}
	t := &d.Tendency
	for len(t.Relationships) < n-1 {
		t.Relationships = append(t.Relationships, [model.RelationshipCount]float64{})
	}
}

func (d *Definition) validate() error {
	p := d.Prototype
	n := p.ParticipantCount
	if p.Name == "" {
		return fmt.Errorf("empty name")
	}
	if n < 1 {
		return fmt.Errorf("%s: participant_count %d < 1", p.Name, n)
	}
	if len(p.Wealth) != n || len(p.Emotions) != n || len(p.Relationships) != n {
		return fmt.Errorf("%s: prototype effects do not cover %d participants", p.Name, n)
	}
	if len(d.Requirement.Emotions) != n || len(d.Requirement.Relationships) != n-1 || len(d.Tendency.Relationships) != n-1 {
		return fmt.Errorf("%s: requirement/tendency do not cover %d participants", p.Name, n)
	}
	for slot, effects := range p.Relationships {
		for other := range effects {
			if other < 0 || other >= n {
				return fmt.Errorf("%s: participant %d targets slot %d outside [0,%d)", p.Name, slot, other, n)
			}
			if other == slot {
				return fmt.Errorf("%s: participant %d targets itself", p.Name, slot)
			}
		}
	}
	return nil
}
