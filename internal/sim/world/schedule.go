package world

import (
	"tattletale/internal/sim/model"
	"tattletale/internal/sim/random"
)

// Schedule assigns every actor to one course group per weekly slot.
// Groups are fixed for the whole run.
type Schedule struct {
	slots    [][][]model.ActorID // slot -> group -> members
	enrolled []map[model.ActorID]bool
}

func newSchedule(slotCount int) *Schedule {
	s := &Schedule{
		slots:    make([][][]model.ActorID, slotCount),
		enrolled: make([]map[model.ActorID]bool, slotCount),
	}
	for i := range s.enrolled {
		s.enrolled[i] = map[model.ActorID]bool{}
	}
	return s
}

// BuildSchedule shuffles the actors once per slot and cuts the order into
// groups of groupSize. The last group of a slot may be smaller.
func BuildSchedule(rng *random.Random, actorCount, slotCount, groupSize int) *Schedule {
	if groupSize <= 0 {
		model.Violate("course group size %d", groupSize)
	}
	s := newSchedule(slotCount)
	order := make([]model.ActorID, actorCount)
	for slot := 0; slot < slotCount; slot++ {
		for i := range order {
			order[i] = model.ActorID(i)
		}
		for i := actorCount - 1; i > 0; i-- {
			j := rng.Int(0, i)
			order[i], order[j] = order[j], order[i]
		}
		for start := 0; start < actorCount; start += groupSize {
			end := min(start+groupSize, actorCount)
			s.AddGroup(slot, order[start:end])
		}
	}
	return s
}

// AddGroup enrolls members together in slot. Enrolling an actor twice in the
// same slot is a violation.
func (s *Schedule) AddGroup(slot int, members []model.ActorID) {
	if slot < 0 || slot >= len(s.slots) {
		model.Violate("slot %d out of range [0,%d)", slot, len(s.slots))
	}
	group := make([]model.ActorID, 0, len(members))
	for _, id := range members {
		if s.enrolled[slot][id] {
			model.Violate("actor %d enrolled twice in slot %d", id, slot)
		}
		s.enrolled[slot][id] = true
		group = append(group, id)
	}
	s.slots[slot] = append(s.slots[slot], group)
}

func (s *Schedule) SlotCount() int { return len(s.slots) }

// Groups returns the course groups meeting in slot.
func (s *Schedule) Groups(slot int) [][]model.ActorID {
	if slot < 0 || slot >= len(s.slots) {
		model.Violate("slot %d out of range [0,%d)", slot, len(s.slots))
	}
	return s.slots[slot]
}

// Enrolled reports whether id has a course in slot.
func (s *Schedule) Enrolled(slot int, id model.ActorID) bool {
	return s.enrolled[slot][id]
}
