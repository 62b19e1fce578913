package chronicle

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
	"tattletale/internal/sim/random"
	"tattletale/internal/sim/simtest"
)

const (
	ada model.ActorID = iota
	ben
	cleo
)

func newChronicle(t *testing.T) (*Chronicle, *catalogs.Catalog) {
	t.Helper()
	c := New()
	for _, n := range []string{"Ada", "Ben", "Cleo"} {
		c.AddActor(n)
	}
	return c, simtest.SmallCatalog()
}

func chat(t *testing.T, cat *catalogs.Catalog) *catalogs.Definition {
	t.Helper()
	d, ok := cat.ByName("chat")
	require.True(t, ok)
	return d
}

func TestCreate_AssignsIDsAndMirrorsEdges(t *testing.T) {
	c, cat := newChronicle(t)
	w := c.CreateResource(0, ada, nil, 0.2)
	e := c.CreateEmotion(model.Happy, 0, ada, []kernel.ID{w.ID()}, 0.5)
	in := c.CreateInteraction(chat(t, cat), 0.4, 1, []kernel.ID{w.ID(), e.ID()}, []model.ActorID{ada, ben})
	r := c.CreateRelationship(model.Friendship, 1, ben, ada, []kernel.ID{in.ID()}, 0.1)

	assert.Equal(t, []kernel.ID{0, 1, 2, 3}, []kernel.ID{w.ID(), e.ID(), in.ID(), r.ID()})
	assert.Equal(t, []kernel.ID{1, 2}, w.Consequences())
	assert.Equal(t, []kernel.ID{2}, e.Consequences())
	assert.Equal(t, []kernel.ID{3}, in.Consequences())
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 1, c.LastTick())
	require.NoError(t, c.Verify())

	// Interactions are indexed under every participant.
	assert.Equal(t, []*kernel.Kernel{in}, c.ActorInteractions(ben))
	assert.Contains(t, c.ActorKernels(ben), in)
	assert.Contains(t, c.ActorKernels(ben), r)
	assert.Empty(t, c.ActorInteractions(cleo))
}

func TestCreate_ClampsValues(t *testing.T) {
	c, _ := newChronicle(t)
	v, _ := c.CreateResource(0, ada, nil, 1.4).Value()
	assert.Equal(t, 1.0, v)
	v, _ = c.CreateEmotion(model.Calm, 0, ada, nil, -2).Value()
	assert.Equal(t, -1.0, v)
}

func TestCreate_MisusePanics(t *testing.T) {
	c, cat := newChronicle(t)
	late := c.CreateResource(5, ada, nil, 0)

	var ie *model.InvariantError
	cases := map[string]func(){
		"owner out of range":    func() { c.CreateResource(0, 7, nil, 0) },
		"reason from the future": func() { c.CreateEmotion(model.Happy, 4, ada, []kernel.ID{late.ID()}, 0.1) },
		"unknown reason":        func() { c.CreateGoal(model.GoalPower, 5, ada, []kernel.ID{9}) },
		"participant count":     func() { c.CreateInteraction(chat(t, cat), 1, 5, nil, []model.ActorID{ada}) },
		"enrolled twice":        func() { c.CreateInteraction(chat(t, cat), 1, 5, nil, []model.ActorID{ada, ada}) },
		"self relationship":     func() { c.CreateRelationship(model.Love, 5, ada, ada, nil, 0.1) },
		"wildcard goal":         func() { c.CreateGoal(model.GoalAny, 5, ada, nil) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				rec := recover()
				require.NotNil(t, rec)
				assert.IsType(t, ie, rec)
			}()
			fn()
		})
	}
	assert.Equal(t, 1, c.Len())
}

func TestLastValues_StrictlyBeforeTick(t *testing.T) {
	c, _ := newChronicle(t)
	assert.Nil(t, c.LastWealth(10, ada))

	w0 := c.CreateResource(0, ada, nil, 0.1)
	w1 := c.CreateResource(3, ada, []kernel.ID{w0.ID()}, 0.2)
	h0 := c.CreateEmotion(model.Happy, 1, ada, nil, 0.3)
	c.CreateEmotion(model.Calm, 2, ada, nil, 0.3)
	c.CreateEmotion(model.Happy, 3, ada, []kernel.ID{h0.ID()}, 0.4)

	assert.Equal(t, w0, c.LastWealth(3, ada))
	assert.Equal(t, w1, c.LastWealth(4, ada))
	assert.Nil(t, c.LastWealth(0, ada))
	assert.Equal(t, h0, c.LastEmotionOfType(3, ada, model.Happy))
	assert.Nil(t, c.LastEmotionOfType(1, ada, model.Happy))
	assert.Nil(t, c.LastEmotionOfType(10, ada, model.Brave))
	assert.Nil(t, c.LastEmotionOfType(10, ben, model.Happy))
}

func TestFindUnlikeliestInteraction(t *testing.T) {
	c, cat := newChronicle(t)
	d := chat(t, cat)
	seed := c.CreateTrait("curious", 0, ada, nil)
	reasons := []kernel.ID{seed.ID()}

	c.CreateInteraction(d, 0.05, 1, nil, []model.ActorID{ada, ben}) // no reason, ignored
	first := c.CreateInteraction(d, 0.2, 1, reasons, []model.ActorID{ada, ben})
	c.CreateInteraction(d, 0.2, 2, reasons, []model.ActorID{ben, cleo})
	later := c.CreateInteraction(d, 0.1, 5, reasons, []model.ActorID{cleo, ada})

	assert.Equal(t, first, c.FindUnlikeliestInteraction(4))
	assert.Equal(t, later, c.FindUnlikeliestInteraction(5))
	assert.Nil(t, c.FindUnlikeliestInteraction(0))
}

func TestFindMostOccurringInteraction(t *testing.T) {
	c, cat := newChronicle(t)
	chatDef := chat(t, cat)
	argue, _ := cat.ByName("argue")
	study, _ := cat.ByName("study")

	assert.Nil(t, c.FindMostOccurringInteraction(ada))

	firstArgue := c.CreateInteraction(argue, 1, 0, nil, []model.ActorID{ben, ada})
	firstChat := c.CreateInteraction(chatDef, 1, 1, nil, []model.ActorID{ada, ben})
	c.CreateInteraction(argue, 1, 2, nil, []model.ActorID{ada, cleo})
	c.CreateInteraction(chatDef, 1, 3, nil, []model.ActorID{cleo, ada})
	c.CreateInteraction(study, 1, 4, nil, []model.ActorID{ada})

	// chat (id 1) and argue (id 2) tie for Ada; the lower id wins.
	assert.Equal(t, firstChat, c.FindMostOccurringInteraction(ada))
	c.CreateInteraction(argue, 1, 5, nil, []model.ActorID{ada, ben})
	assert.Equal(t, firstArgue, c.FindMostOccurringInteraction(ada))
}

func TestDescribeCausality(t *testing.T) {
	c, cat := newChronicle(t)
	happy := c.CreateEmotion(model.Happy, 0, ada, nil, 0.5)
	in := c.CreateInteraction(chat(t, cat), 0.4, 1, []kernel.ID{happy.ID()}, []model.ActorID{ada, ben})

	want := "D0:Ada chatted with Ben (T1)\n" +
		"   Because:\n" +
		"D1-:Ada was happy (T0)\n" +
		"    For no reason.\n"
	assert.Equal(t, want, c.DescribeCausality(in.ID(), 3))
	assert.Equal(t, "D0:Ada chatted with Ben (T1)\n   For no reason.\n", c.DescribeCausality(in.ID(), 0))

	rng := random.New(1)
	assert.NotEmpty(t, c.RandomCausalityChain(rng, 2))
	assert.Equal(t, "Did not find a kernel with a goal as reason.", c.GoalCausalityChain(rng, 2))

	goal := c.CreateGoal(model.GoalAcceptance, 1, ada, nil)
	c.CreateTrait("pushy", 2, ada, []kernel.ID{goal.ID()})
	assert.Contains(t, c.GoalCausalityChain(rng, 1), "D0:Ada was pushy (T2)")
}

func TestAverages(t *testing.T) {
	c, cat := newChronicle(t)
	assert.Zero(t, c.AverageInteractionChance())
	assert.Zero(t, c.AverageInteractionReasonCount())

	seed := c.CreateTrait("curious", 0, ada, nil)
	c.CreateInteraction(chat(t, cat), 0.2, 1, []kernel.ID{seed.ID()}, []model.ActorID{ada, ben})
	c.CreateInteraction(chat(t, cat), 0.6, 1, nil, []model.ActorID{ben, ada})
	assert.InDelta(t, 0.4, c.AverageInteractionChance(), 1e-9)
	assert.InDelta(t, 0.5, c.AverageInteractionReasonCount(), 1e-9)
	assert.Len(t, c.FindInteractionsByName("chat"), 2)
}

func TestCausalSearches(t *testing.T) {
	c, cat := newChronicle(t)
	d := chat(t, cat)
	root := c.CreateTrait("curious", 0, ada, nil)
	a := c.CreateInteraction(d, 0.5, 1, []kernel.ID{root.ID()}, []model.ActorID{ada, ben})
	b := c.CreateInteraction(d, 0.1, 2, []kernel.ID{a.ID()}, []model.ActorID{ben, cleo})
	other := c.CreateInteraction(d, 0.3, 2, nil, []model.ActorID{cleo, ada})
	tail := c.CreateInteraction(d, 0.7, 3, []kernel.ID{b.ID()}, []model.ActorID{cleo, ben})

	assert.True(t, c.HasCausalConnection(root.ID(), tail.ID()))
	assert.False(t, c.HasCausalConnection(other.ID(), tail.ID()))
	assert.False(t, c.HasCausalConnection(tail.ID(), root.ID()))

	chain := c.FindCausalConnection(root.ID(), tail.ID())
	assert.Equal(t, []*kernel.Kernel{root, a, b, tail}, chain)
	assert.Nil(t, c.FindCausalConnection(other.ID(), tail.ID()))

	assert.Equal(t, b, c.UnlikeliestReason(tail.ID()))
	assert.Equal(t, a, c.UnlikeliestConsequence(root.ID(), 1))
	assert.Equal(t, b, c.UnlikeliestConsequence(root.ID(), 2))
}

func TestFindBlockingResource(t *testing.T) {
	c, cat := newChronicle(t)
	argue, _ := cat.ByName("argue") // calm weight -0.5
	calm := c.CreateEmotion(model.Calm, 0, ada, nil, 0.8)
	in := c.CreateInteraction(argue, 0.3, 1, nil, []model.ActorID{ada, ben})
	assert.Equal(t, calm, c.FindBlockingResource(in.ID()))
	assert.Nil(t, c.FindBlockingResource(calm.ID()))

	c.CreateEmotion(model.Calm, 1, ben, nil, -0.8)
	in2 := c.CreateInteraction(argue, 0.3, 2, nil, []model.ActorID{ben, ada})
	assert.Nil(t, c.FindBlockingResource(in2.ID()))
}

func TestExportImport_RoundTrip(t *testing.T) {
	c, cat := newChronicle(t)
	w := c.CreateResource(0, ada, nil, 0.2)
	g := c.CreateGoal(model.GoalWealth, 0, ada, nil)
	in := c.CreateInteraction(chat(t, cat), 0.4, 1, []kernel.ID{w.ID(), g.ID()}, []model.ActorID{ada, ben})
	c.CreateRelationship(model.Friendship, 1, ben, ada, []kernel.ID{in.ID()}, 0.1)
	c.CreateEmotion(model.Happy, 1, ada, []kernel.ID{in.ID()}, 0.1)

	exp := c.Export()
	back, err := Import(exp, cat)
	require.NoError(t, err)
	if diff := cmp.Diff(exp, back.Export()); diff != "" {
		t.Fatalf("export mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, back.Verify())
	assert.Equal(t, c.DescribeCausality(4, 3), back.DescribeCausality(4, 3))
	assert.Equal(t, c.Get(0).Consequences(), back.Get(0).Consequences())
}

func TestImport_RejectsBrokenHistory(t *testing.T) {
	c, cat := newChronicle(t)
	c.CreateResource(2, ada, nil, 0.2)
	c.CreateResource(3, ada, []kernel.ID{0}, 0.3)

	exp := c.Export()
	exp.Kernels[1].Tick = 1
	_, err := Import(exp, cat)
	assert.Error(t, err)

	exp = c.Export()
	exp.Kernels[1].ID = 5
	_, err = Import(exp, cat)
	assert.Error(t, err)

	exp = c.Export()
	exp.Kernels[0].Owner = 9
	_, err = Import(exp, cat)
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	c, _ := newChronicle(t)
	c.CreateResource(0, ada, nil, 0.2)
	c.Reset()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.ActorCount())
	assert.Equal(t, -1, c.LastTick())
}
