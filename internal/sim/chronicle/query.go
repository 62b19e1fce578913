package chronicle

import (
	"fmt"
	"strings"

	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
	"tattletale/internal/sim/random"
)

// LastEmotionOfType returns the actor's latest emotion of type t created
// strictly before tick, or nil.
func (c *Chronicle) LastEmotionOfType(tick int, actor model.ActorID, t model.EmotionType) *kernel.Kernel {
	c.checkActor(actor)
	var last *kernel.Kernel
	for _, id := range c.emotionsByActor[actor] {
		k := c.kernels[id]
		if k.Payload().(*kernel.Emotion).Type != t {
			continue
		}
		if k.Tick() >= tick {
			break
		}
		last = k
	}
	return last
}

// LastWealth returns the actor's latest wealth created strictly before tick,
// or nil.
func (c *Chronicle) LastWealth(tick int, actor model.ActorID) *kernel.Kernel {
	c.checkActor(actor)
	var last *kernel.Kernel
	for _, id := range c.wealthByActor[actor] {
		k := c.kernels[id]
		if k.Tick() >= tick {
			break
		}
		last = k
	}
	return last
}

// FindUnlikeliestInteraction returns the interaction with the lowest chance
// among those created at or before cutoff that have at least one reason. The
// earliest wins ties.
func (c *Chronicle) FindUnlikeliestInteraction(cutoff int) *kernel.Kernel {
	var best *kernel.Kernel
	for _, id := range c.interactions {
		k := c.kernels[id]
		if k.Tick() > cutoff {
			break
		}
		if !k.HasReasons() {
			continue
		}
		if best == nil || k.Chance() < best.Chance() {
			best = k
		}
	}
	return best
}

// FindMostOccurringInteraction returns the actor's earliest interaction of
// the definition it took part in most often. The lowest definition id wins
// ties. Nil when the actor has no interactions.
func (c *Chronicle) FindMostOccurringInteraction(actor model.ActorID) *kernel.Kernel {
	c.checkActor(actor)
	ids := c.interactionsByActor[actor]
	if len(ids) == 0 {
		return nil
	}
	counts := map[int]int{}
	for _, id := range ids {
		in, _ := c.kernels[id].AsInteraction()
		counts[in.Def.ID]++
	}
	best, bestCount := -1, 0
	for def, n := range counts {
		if n > bestCount || (n == bestCount && def < best) {
			best, bestCount = def, n
		}
	}
	for _, id := range ids {
		if in, _ := c.kernels[id].AsInteraction(); in.Def.ID == best {
			return c.kernels[id]
		}
	}
	return nil
}

// ActorInteractions returns every interaction the actor took part in, in
// creation order.
func (c *Chronicle) ActorInteractions(actor model.ActorID) []*kernel.Kernel {
	c.checkActor(actor)
	out := make([]*kernel.Kernel, 0, len(c.interactionsByActor[actor]))
	for _, id := range c.interactionsByActor[actor] {
		out = append(out, c.kernels[id])
	}
	return out
}

// ActorKernels returns every kernel owned by the actor plus every interaction
// it joined.
func (c *Chronicle) ActorKernels(actor model.ActorID) []*kernel.Kernel {
	c.checkActor(actor)
	out := make([]*kernel.Kernel, 0, len(c.kernelsByActor[actor]))
	for _, id := range c.kernelsByActor[actor] {
		out = append(out, c.kernels[id])
	}
	return out
}

func (c *Chronicle) ActorInteractionsDescription(actor model.ActorID) string {
	ks := c.ActorInteractions(actor)
	if len(ks) == 0 {
		return fmt.Sprintf("No interactions for %s.", c.names[actor])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Interactions for %s", c.names[actor])
	for _, k := range ks {
		b.WriteString("\n")
		b.WriteString(k.Description(c))
	}
	return b.String()
}

func (c *Chronicle) FindInteractionsByName(name string) []*kernel.Kernel {
	var out []*kernel.Kernel
	for _, id := range c.interactions {
		if k := c.kernels[id]; k.Name() == name {
			out = append(out, k)
		}
	}
	return out
}

// LastTick is the tick of the newest kernel, or -1 for an empty chronicle.
func (c *Chronicle) LastTick() int {
	if len(c.kernels) == 0 {
		return -1
	}
	return c.kernels[len(c.kernels)-1].Tick()
}

// AverageInteractionChance is 0 when nothing has happened yet.
func (c *Chronicle) AverageInteractionChance() float64 {
	if len(c.interactions) == 0 {
		return 0
	}
	var sum float64
	for _, id := range c.interactions {
		sum += c.kernels[id].Chance()
	}
	return sum / float64(len(c.interactions))
}

func (c *Chronicle) AverageInteractionReasonCount() float64 {
	if len(c.interactions) == 0 {
		return 0
	}
	var sum int
	for _, id := range c.interactions {
		sum += len(c.kernels[id].Reasons())
	}
	return float64(sum) / float64(len(c.interactions))
}

// RandomCausalityChain describes the ancestry of a uniformly drawn kernel.
func (c *Chronicle) RandomCausalityChain(rng *random.Random, depth int) string {
	if len(c.kernels) == 0 {
		return ""
	}
	id := kernel.ID(rng.Int(0, len(c.kernels)-1))
	return c.DescribeCausality(id, depth)
}

// GoalCausalityChain describes the ancestry of a drawn kernel that cites a
// goal among its reasons.
func (c *Chronicle) GoalCausalityChain(rng *random.Random, depth int) string {
	if len(c.kernels) == 0 {
		return ""
	}
	var candidates []kernel.ID
	for _, k := range c.kernels {
		for _, r := range k.Reasons() {
			if c.kernels[r].Kind() == kernel.KindGoal {
				candidates = append(candidates, k.ID())
				break
			}
		}
	}
	if len(candidates) == 0 {
		return "Did not find a kernel with a goal as reason."
	}
	return c.DescribeCausality(candidates[rng.Int(0, len(candidates)-1)], depth)
}
