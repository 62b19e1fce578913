// Package kernel defines the immutable provenance nodes of a run. Every kernel
// records the reasons that justify it; consequences are the mirrored edges
// appended as later kernels cite it.
package kernel

import (
	"tattletale/internal/sim/model"
)

// ID is a kernel's position in the chronicle arena.
type ID int

// None marks an absent kernel reference.
const None ID = -1

type Kind int

const (
	KindResource Kind = iota
	KindEmotion
	KindRelationship
	KindGoal
	KindTrait
	KindInteraction

	kindCount
)

var kindNames = [kindCount]string{"resource", "emotion", "relationship", "goal", "trait", "interaction"}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

func ParseKind(s string) (Kind, bool) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// Kernel is one fact of simulated history. Only the chronicle constructs
// kernels and appends consequences; everything else reads.
type Kernel struct {
	id           ID
	tick         int
	owner        model.ActorID
	reasons      []ID
	consequences []ID
	payload      Payload
}

// New builds a detached kernel. Its reasons get no consequence edges; use
// Append to add a kernel to an arena.
func New(id ID, tick int, owner model.ActorID, reasons []ID, payload Payload) *Kernel {
	if payload == nil {
		model.Violate("kernel %d has no payload", id)
	}
	return &Kernel{
		id:      id,
		tick:    tick,
		owner:   owner,
		reasons: append([]ID(nil), reasons...),
		payload: payload,
	}
}

func (k *Kernel) ID() ID                 { return k.id }
func (k *Kernel) Tick() int              { return k.tick }
func (k *Kernel) Owner() model.ActorID   { return k.owner }
func (k *Kernel) Payload() Payload       { return k.payload }
func (k *Kernel) Kind() Kind             { return k.payload.Kind() }
func (k *Kernel) Reasons() []ID          { return k.reasons }
func (k *Kernel) Consequences() []ID     { return k.consequences }
func (k *Kernel) HasReasons() bool       { return len(k.reasons) > 0 }
func (k *Kernel) Name() string           { return k.payload.name() }

func (k *Kernel) addConsequence(c ID) { k.consequences = append(k.consequences, c) }

// Append builds the kernel at position len(arena), records it as a consequence
// of each of its reasons and returns the grown arena. Reasons must already be
// in the arena and must not come from a later tick.
func Append(arena []*Kernel, tick int, owner model.ActorID, reasons []ID, payload Payload) []*Kernel {
	id := ID(len(arena))
	for _, r := range reasons {
		if r < 0 || r >= id {
			model.Violate("kernel %d cites unknown reason %d", id, r)
		}
		if rt := arena[r].tick; rt > tick {
			model.Violate("kernel %d at tick %d cites reason %d from tick %d", id, tick, r, rt)
		}
	}
	k := New(id, tick, owner, reasons, payload)
	for _, r := range reasons {
		arena[r].addConsequence(id)
	}
	return append(arena, k)
}

// Chance is the selection chance of an interaction and 1 for every other kind.
func (k *Kernel) Chance() float64 {
	if in, ok := k.payload.(*Interaction); ok {
		return in.Chance
	}
	return 1
}

// Value returns the scalar of a value kernel.
func (k *Kernel) Value() (float64, bool) {
	switch p := k.payload.(type) {
	case *Resource:
		return p.Value, true
	case *Emotion:
		return p.Value, true
	case *Relationship:
		return p.Value, true
	}
	return 0, false
}

// AsInteraction returns the interaction payload, if any.
func (k *Kernel) AsInteraction() (*Interaction, bool) {
	in, ok := k.payload.(*Interaction)
	return in, ok
}

func (k *Kernel) SameKind(other *Kernel) bool {
	return other != nil && k.Kind() == other.Kind()
}

// SameSpecificType compares kind and sub-tag: emotion type, relationship type,
// goal type, trait name or interaction definition name.
func (k *Kernel) SameSpecificType(other *Kernel) bool {
	if !k.SameKind(other) {
		return false
	}
	switch p := k.payload.(type) {
	case *Resource:
		return true
	case *Emotion:
		return p.Type == other.payload.(*Emotion).Type
	case *Relationship:
		return p.Type == other.payload.(*Relationship).Type
	case *Goal:
		return p.Type == other.payload.(*Goal).Type
	case *Trait:
		return p.Name == other.payload.(*Trait).Name
	case *Interaction:
		return p.Def.Name() == other.payload.(*Interaction).Def.Name()
	}
	return false
}

// ChanceInfluence returns the signed amount this kernel contributed to the
// selection score of interaction. Only value kernels owned by the initiator
// feed a tendency.
func (k *Kernel) ChanceInfluence(interaction *Kernel) float64 {
	in, ok := interaction.AsInteraction()
	if !ok || len(in.Participants) == 0 || k.owner != in.Participants[0] {
		return 0
	}
	t := &in.Def.Tendency
	switch p := k.payload.(type) {
	case *Resource:
		return t.Wealth * p.Value
	case *Emotion:
		return t.Emotions[p.Type] * p.Value
	case *Relationship:
		slot := in.Slot(p.Target)
		if slot <= 0 || slot-1 >= len(t.Relationships) {
			return 0
		}
		return t.Relationships[slot-1][p.Type] * p.Value
	}
	return 0
}

// IsNegativeReason reports whether reason lowered the chance of interaction.
func IsNegativeReason(interaction, reason *Kernel) bool {
	return reason.ChanceInfluence(interaction) < 0
}
