package kernel

import (
	"fmt"

	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/model"
)

// Record is the flat serialisable form of a kernel. Consequences are not
// stored; they are rebuilt from reasons.
type Record struct {
	ID      int    `json:"id"`
	Tick    int    `json:"tick"`
	Kind    string `json:"kind"`
	Owner   int    `json:"owner"`
	Reasons []int  `json:"reasons,omitempty"`

	// Sub-tag: emotion, relationship or goal type name, trait name, or
	// interaction definition name.
	Tag   string  `json:"tag,omitempty"`
	Value float64 `json:"value,omitempty"`

	Target       int     `json:"target,omitempty"`
	Definition   int     `json:"definition,omitempty"`
	Chance       float64 `json:"chance,omitempty"`
	Participants []int   `json:"participants,omitempty"`
}

func (k *Kernel) Record() Record {
	r := Record{
		ID:    int(k.id),
		Tick:  k.tick,
		Kind:  k.Kind().String(),
		Owner: int(k.owner),
		Tag:   k.Name(),
	}
	for _, id := range k.reasons {
		r.Reasons = append(r.Reasons, int(id))
	}
	switch p := k.payload.(type) {
	case *Resource:
		r.Value = p.Value
	case *Emotion:
		r.Value = p.Value
	case *Relationship:
		r.Value = p.Value
		r.Target = int(p.Target)
	case *Interaction:
		r.Definition = p.Def.ID
		r.Chance = p.Chance
		for _, a := range p.Participants {
			r.Participants = append(r.Participants, int(a))
		}
	}
	return r
}

// PayloadFromRecord rebuilds the payload of r. Interaction definitions are
// resolved by id in cat and must carry the recorded name.
func PayloadFromRecord(r Record, cat *catalogs.Catalog) (Payload, error) {
	kind, ok := ParseKind(r.Kind)
	if !ok {
		return nil, fmt.Errorf("kernel %d: unknown kind %q", r.ID, r.Kind)
	}
	switch kind {
	case KindResource:
		return &Resource{Value: r.Value}, nil
	case KindEmotion:
		t, err := model.ParseEmotionType(r.Tag)
		if err != nil {
			return nil, fmt.Errorf("kernel %d: %w", r.ID, err)
		}
		return &Emotion{Type: t, Value: r.Value}, nil
	case KindRelationship:
		t, err := model.ParseRelationshipType(r.Tag)
		if err != nil {
			return nil, fmt.Errorf("kernel %d: %w", r.ID, err)
		}
		return &Relationship{Type: t, Target: model.ActorID(r.Target), Value: r.Value}, nil
	case KindGoal:
		t, err := model.ParseGoalType(r.Tag)
		if err != nil || t == model.GoalAny {
			return nil, fmt.Errorf("kernel %d: bad goal %q", r.ID, r.Tag)
		}
		return &Goal{Type: t}, nil
	case KindTrait:
		return &Trait{Name: r.Tag}, nil
	case KindInteraction:
		if cat == nil || r.Definition < 0 || r.Definition >= cat.Len() {
			return nil, fmt.Errorf("kernel %d: definition %d not in catalog", r.ID, r.Definition)
		}
		def := cat.Get(r.Definition)
		if def.Name() != r.Tag {
			return nil, fmt.Errorf("kernel %d: definition %d is %q, recorded %q", r.ID, r.Definition, def.Name(), r.Tag)
		}
		in := &Interaction{Def: def, Chance: r.Chance}
		for _, a := range r.Participants {
			in.Participants = append(in.Participants, model.ActorID(a))
		}
		return in, nil
	}
	return nil, fmt.Errorf("kernel %d: unhandled kind %s", r.ID, kind)
}
