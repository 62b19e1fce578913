package actor

import (
	"fmt"
	"strings"

	"tattletale/internal/sim/model"
)

// KnownActorsDescription lists the ranking with each strength, one per line.
func (a *Actor) KnownActorsDescription() string {
	var b strings.Builder
	for _, other := range a.known {
		fmt.Fprintf(&b, "%s known with value %.2f\n", a.env.Chronicle.ActorName(other), a.RelationshipStrength(other))
	}
	return b.String()
}

// DetailedDescription dumps the actor's current kernels.
func (a *Actor) DetailedDescription() string {
	c := a.env.Chronicle
	var b strings.Builder
	b.WriteString(a.Name() + ":")
	if a.wealth != nil {
		b.WriteString("\n\t" + a.wealth.DetailedDescription(c))
	}
	for _, e := range a.emotions {
		if e != nil {
			b.WriteString("\n\t" + e.DetailedDescription(c))
		}
	}
	for _, other := range a.known {
		fmt.Fprintf(&b, "\n\tWith #%d %s:", other, c.ActorName(other))
		for t := 0; t < model.RelationshipCount; t++ {
			if k := a.relationships[other][t]; k != nil {
				b.WriteString("\n\t\t" + k.DetailedDescription(c))
			}
		}
	}
	if a.goal != nil {
		b.WriteString("\n\t" + a.goal.DetailedDescription(c))
	}
	for _, t := range a.traits {
		b.WriteString("\n\t" + t.DetailedDescription(c))
	}
	return b.String()
}
