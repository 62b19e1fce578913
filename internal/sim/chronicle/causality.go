package chronicle

import (
	"fmt"
	"strings"

	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
)

// DescribeCausality renders the ancestry of id down to depth levels:
//
//	D0:<description> (T<tick>)
//	   Because:
//	D1-:<description> (T<tick>)
//	    For no reason.
func (c *Chronicle) DescribeCausality(id kernel.ID, depth int) string {
	var b strings.Builder
	c.describe(&b, c.Get(id), 0, depth)
	return b.String()
}

func (c *Chronicle) describe(b *strings.Builder, k *kernel.Kernel, level, depth int) {
	fmt.Fprintf(b, "D%d%s:%s (T%d)\n", level, strings.Repeat("-", level), k.Description(c), k.Tick())
	b.WriteString(strings.Repeat(" ", level))
	if level >= depth || !k.HasReasons() {
		b.WriteString("   For no reason.\n")
		return
	}
	b.WriteString("   Because:\n")
	for _, r := range k.Reasons() {
		c.describe(b, c.kernels[r], level+1, depth)
	}
}

// UnlikeliestReason returns the kernel with the lowest chance among id and
// its full ancestry. The first encountered in depth-first order wins ties.
func (c *Chronicle) UnlikeliestReason(id kernel.ID) *kernel.Kernel {
	return c.unlikeliestReason(c.Get(id), nil)
}

func (c *Chronicle) unlikeliestReason(k, best *kernel.Kernel) *kernel.Kernel {
	if best == nil || k.Chance() < best.Chance() {
		best = k
	}
	for _, r := range k.Reasons() {
		best = c.unlikeliestReason(c.kernels[r], best)
	}
	return best
}

// UnlikeliestConsequence is UnlikeliestReason walking consequences, bounded
// by depth.
func (c *Chronicle) UnlikeliestConsequence(id kernel.ID, depth int) *kernel.Kernel {
	return c.unlikeliestConsequence(c.Get(id), nil, depth)
}

func (c *Chronicle) unlikeliestConsequence(k, best *kernel.Kernel, depth int) *kernel.Kernel {
	if best == nil || k.Chance() < best.Chance() {
		best = k
	}
	if depth <= 0 {
		return best
	}
	for _, n := range k.Consequences() {
		best = c.unlikeliestConsequence(c.kernels[n], best, depth-1)
	}
	return best
}

// HasCausalConnection reports whether cause is an ancestor of effect. Kernels
// older than cause are not expanded.
func (c *Chronicle) HasCausalConnection(cause, effect kernel.ID) bool {
	from, to := c.Get(effect), c.Get(cause)
	seen := map[kernel.ID]bool{from.ID(): true}
	queue := []*kernel.Kernel{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, r := range cur.Reasons() {
			if r == to.ID() {
				return true
			}
			if seen[r] {
				continue
			}
			seen[r] = true
			if rk := c.kernels[r]; rk.Tick() >= to.Tick() {
				queue = append(queue, rk)
			}
		}
	}
	return false
}

// FindCausalConnection returns one reason chain from cause to effect, both
// included, or nil. Reasons are tried in order.
func (c *Chronicle) FindCausalConnection(cause, effect kernel.ID) []*kernel.Kernel {
	var chain []*kernel.Kernel
	if c.findBackwards(c.Get(effect), c.Get(cause), &chain) {
		return chain
	}
	return nil
}

func (c *Chronicle) findBackwards(root, start *kernel.Kernel, chain *[]*kernel.Kernel) bool {
	if root.ID() == start.ID() {
		*chain = append(*chain, root)
		return true
	}
	if root.Tick() < start.Tick() || root.ID() < start.ID() {
		return false
	}
	for _, r := range root.Reasons() {
		if c.findBackwards(c.kernels[r], start, chain) {
			*chain = append(*chain, root)
			return true
		}
	}
	return false
}

// FindBlockingResource returns the initiator's emotion or wealth, in force
// before the interaction, that pulled its chance down the most. Nil when no
// weighted resource had a negative influence or the kernel is not an
// interaction.
func (c *Chronicle) FindBlockingResource(id kernel.ID) *kernel.Kernel {
	k := c.Get(id)
	in, ok := k.AsInteraction()
	if !ok {
		return nil
	}
	t := &in.Def.Tendency
	lowest := 0.0
	var blocking *kernel.Kernel
	consider := func(r *kernel.Kernel, weight float64) {
		if r == nil {
			return
		}
		v, _ := r.Value()
		if inf := v * weight; inf < lowest {
			lowest, blocking = inf, r
		}
	}
	for e := 0; e < model.EmotionCount; e++ {
		if t.Emotions[e] == 0 {
			continue
		}
		consider(c.LastEmotionOfType(k.Tick(), k.Owner(), model.EmotionType(e)), t.Emotions[e])
	}
	if t.Wealth != 0 {
		consider(c.LastWealth(k.Tick(), k.Owner()), t.Wealth)
	}
	return blocking
}

// Verify checks that every reason is older than or as old as the kernel that
// cites it and that every reason edge is mirrored by a consequence edge.
func (c *Chronicle) Verify() error {
	mirrored := make(map[[2]kernel.ID]int)
	for _, k := range c.kernels {
		for _, n := range k.Consequences() {
			mirrored[[2]kernel.ID{k.ID(), n}]++
		}
	}
	for _, k := range c.kernels {
		for _, r := range k.Reasons() {
			if r < 0 || r >= k.ID() {
				return fmt.Errorf("kernel %d: reason %d is not older", k.ID(), r)
			}
			if c.kernels[r].Tick() > k.Tick() {
				return fmt.Errorf("kernel %d: reason %d is from a later tick", k.ID(), r)
			}
			edge := [2]kernel.ID{r, k.ID()}
			if mirrored[edge] == 0 {
				return fmt.Errorf("kernel %d: reason %d lacks the consequence edge", k.ID(), r)
			}
			mirrored[edge]--
		}
	}
	for edge, n := range mirrored {
		if n != 0 {
			return fmt.Errorf("kernel %d: consequence %d has no reason edge", edge[0], edge[1])
		}
	}
	return nil
}
