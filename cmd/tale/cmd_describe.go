package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"tattletale/internal/persistence/indexdb"
	"tattletale/internal/sim/chronicle"
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
	"tattletale/internal/sim/random"
)

type describeOptions struct {
	kernel    int
	actor     int
	name      string
	depth     int
	chainSeed int64
	ancestors bool
}

func newDescribeCmd(a *app) *cobra.Command {
	var opts describeOptions
	cmd := &cobra.Command{
		Use:   "describe <run-dir>",
		Short: "Explain what happened in a recorded run",
		Long: `Load the latest snapshot of a run and print its story.

Without selectors this prints run statistics, the unlikeliest interaction
with its causes and two sampled causality chains. --kernel explains one
kernel, --actor lists what one actor did and --name lists every interaction
of one definition.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, cat, err := a.loadRun(args[0])
			if err != nil {
				return err
			}
			chron, err := chronicle.Import(snap.History, cat)
			if err != nil {
				return fmt.Errorf("import history: %w", err)
			}
			out := cmd.OutOrStdout()
			switch {
			case cmd.Flags().Changed("kernel"):
				if err := describeKernel(out, chron, opts); err != nil {
					return err
				}
				if opts.ancestors {
					return a.describeIndexedAncestors(cmd.Context(), out, snap.Header.RunID, opts)
				}
				return nil
			case cmd.Flags().Changed("actor"):
				return describeActor(out, chron, opts)
			case opts.name != "":
				return describeByName(out, chron, opts)
			}
			fmt.Fprintf(out, "run %s tick=%d seed=%d digest=%s\n", snap.Header.RunID, snap.Header.Tick, snap.Header.Seed, snap.Header.Digest)
			describeSummary(out, chron, opts)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.kernel, "kernel", 0, "Explain the kernel with this id")
	cmd.Flags().IntVar(&opts.actor, "actor", 0, "List the interactions of the actor with this id")
	cmd.Flags().StringVar(&opts.name, "name", "", "List every interaction of this definition")
	cmd.Flags().IntVar(&opts.depth, "depth", 4, "Levels of reasons to follow")
	cmd.Flags().Int64Var(&opts.chainSeed, "chain-seed", 1, "Seed for sampling causality chains")
	cmd.Flags().BoolVar(&opts.ancestors, "ancestors", false, "With --kernel, also list indexed ancestors from index.sqlite")
	return cmd
}

func describeSummary(out io.Writer, chron *chronicle.Chronicle, opts describeOptions) {
	fmt.Fprintf(out, "actors=%d kernels=%d interactions=%d last_tick=%d\n",
		chron.ActorCount(), chron.Len(), chron.InteractionCount(), chron.LastTick())
	fmt.Fprintf(out, "average interaction chance: %.4f\n", chron.AverageInteractionChance())
	fmt.Fprintf(out, "average interaction reasons: %.2f\n", chron.AverageInteractionReasonCount())

	if k := chron.FindUnlikeliestInteraction(chron.LastTick()); k != nil {
		fmt.Fprintf(out, "\nunlikeliest interaction (chance %.4f):\n", k.Chance())
		fmt.Fprint(out, chron.DescribeCausality(k.ID(), opts.depth))
	}
	rng := random.New(opts.chainSeed)
	fmt.Fprintln(out, "\nrandom causality chain:")
	fmt.Fprint(out, chron.RandomCausalityChain(rng, opts.depth))
	fmt.Fprintln(out, "\ngoal causality chain:")
	fmt.Fprintln(out, chron.GoalCausalityChain(rng, opts.depth))
}

func describeKernel(out io.Writer, chron *chronicle.Chronicle, opts describeOptions) error {
	if opts.kernel < 0 || opts.kernel >= chron.Len() {
		return fmt.Errorf("kernel %d out of range [0,%d)", opts.kernel, chron.Len())
	}
	k := chron.Get(kernel.ID(opts.kernel))
	fmt.Fprintln(out, k.DetailedDescription(chron))
	fmt.Fprint(out, chron.DescribeCausality(k.ID(), opts.depth))
	if k.Kind() != kernel.KindInteraction {
		return nil
	}
	if b := chron.FindBlockingResource(k.ID()); b != nil {
		fmt.Fprintf(out, "held back by: %s (influence %.4f)\n", b.Description(chron), b.ChanceInfluence(k))
	}
	if c := chron.UnlikeliestConsequence(k.ID(), opts.depth); c != nil && c.ID() != k.ID() {
		fmt.Fprintf(out, "unlikeliest consequence: %s (chance %.4f)\n", c.Description(chron), c.Chance())
	}
	return nil
}

func describeActor(out io.Writer, chron *chronicle.Chronicle, opts describeOptions) error {
	if opts.actor < 0 || opts.actor >= chron.ActorCount() {
		return fmt.Errorf("actor %d out of range [0,%d)", opts.actor, chron.ActorCount())
	}
	id := model.ActorID(opts.actor)
	fmt.Fprintln(out, chron.ActorInteractionsDescription(id))
	if k := chron.FindMostOccurringInteraction(id); k != nil {
		fmt.Fprintf(out, "most often: %s\n", k.Name())
	}
	return nil
}

func describeByName(out io.Writer, chron *chronicle.Chronicle, opts describeOptions) error {
	found := chron.FindInteractionsByName(opts.name)
	if len(found) == 0 {
		return fmt.Errorf("no interaction named %q", opts.name)
	}
	for _, k := range found {
		fmt.Fprintf(out, "#%d tick %d: %s\n", k.ID(), k.Tick(), k.Description(chron))
	}
	return nil
}

func (a *app) describeIndexedAncestors(ctx context.Context, out io.Writer, runID string, opts describeOptions) error {
	idx, err := indexdb.OpenSQLite(filepath.Join(a.dataDir, "index.sqlite"), runID, indexdb.Options{Logger: a.log.Named("index")})
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer idx.Close()
	rows, err := idx.Ancestors(ctx, opts.kernel, opts.depth)
	if err != nil {
		return fmt.Errorf("query ancestors: %w", err)
	}
	fmt.Fprintf(out, "indexed ancestors (%d):\n", len(rows))
	for _, r := range rows {
		fmt.Fprintf(out, "  depth %d: #%d tick %d %s %s owner=%d\n", r.Depth, r.ID, r.Tick, r.Kind, r.Tag, r.Owner)
	}
	return nil
}
