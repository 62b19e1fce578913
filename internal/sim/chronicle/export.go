package chronicle

import (
	"fmt"

	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
)

// Export is the flat form of a chronicle: actor names and kernel records in
// creation order.
type Export struct {
	Actors  []string
	Kernels []kernel.Record
}

func (c *Chronicle) Export() Export {
	out := Export{
		Actors:  c.ActorNames(),
		Kernels: make([]kernel.Record, 0, len(c.kernels)),
	}
	for _, k := range c.kernels {
		out.Kernels = append(out.Kernels, k.Record())
	}
	return out
}

// Import rebuilds a chronicle from an export. Records must be dense and in
// creation order; interaction definitions are resolved in cat.
func Import(e Export, cat *catalogs.Catalog) (*Chronicle, error) {
	c := New()
	for _, name := range e.Actors {
		c.AddActor(name)
	}
	for i, r := range e.Kernels {
		if r.ID != i {
			return nil, fmt.Errorf("kernel record %d carries id %d", i, r.ID)
		}
		if err := c.importRecord(r, cat); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Chronicle) importRecord(r kernel.Record, cat *catalogs.Catalog) (err error) {
	if r.Owner < 0 || r.Owner >= len(c.names) {
		return fmt.Errorf("kernel %d: owner %d out of range", r.ID, r.Owner)
	}
	reasons := make([]kernel.ID, 0, len(r.Reasons))
	for _, id := range r.Reasons {
		if id < 0 || id >= r.ID || c.kernels[id].Tick() > r.Tick {
			return fmt.Errorf("kernel %d: reason %d breaks causal order", r.ID, id)
		}
		reasons = append(reasons, kernel.ID(id))
	}
	p, err := kernel.PayloadFromRecord(r, cat)
	if err != nil {
		return err
	}

	// Remaining shape checks are the factory's; surface them as errors here.
	defer func() {
		if rec := recover(); rec != nil {
			ie, ok := rec.(*model.InvariantError)
			if !ok {
				panic(rec)
			}
			err = fmt.Errorf("kernel %d: %w", r.ID, ie)
		}
	}()
	owner := model.ActorID(r.Owner)
	switch p := p.(type) {
	case *kernel.Resource:
		c.CreateResource(r.Tick, owner, reasons, p.Value)
	case *kernel.Emotion:
		c.CreateEmotion(p.Type, r.Tick, owner, reasons, p.Value)
	case *kernel.Relationship:
		c.CreateRelationship(p.Type, r.Tick, owner, p.Target, reasons, p.Value)
	case *kernel.Goal:
		c.CreateGoal(p.Type, r.Tick, owner, reasons)
	case *kernel.Trait:
		c.CreateTrait(p.Name, r.Tick, owner, reasons)
	case *kernel.Interaction:
		if len(p.Participants) == 0 || p.Participants[0] != owner {
			return fmt.Errorf("kernel %d: interaction owner is not its first participant", r.ID)
		}
		c.CreateInteraction(p.Def, p.Chance, r.Tick, reasons, p.Participants)
	}
	return nil
}
