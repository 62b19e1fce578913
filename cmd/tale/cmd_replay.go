package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	persistlog "tattletale/internal/persistence/log"
	"tattletale/internal/persistence/snapshot"
	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/world"
)

func newReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <run-dir>",
		Short: "Re-simulate a recorded run and check every tick digest",
		Long: `Re-simulate a recorded run from its setting and compare the digest of
every tick against the tick log. The catalog in --configs must be the one
the run was recorded with.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checked, err := a.replay(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replay ok: checked=%d ticks\n", checked)
			return nil
		},
	}
}

// loadRun reads the latest snapshot of a run and the catalog it was
// recorded with.
func (a *app) loadRun(runDir string) (snapshot.SnapshotV1, *catalogs.Catalog, error) {
	path := snapshot.Latest(runDir)
	if path == "" {
		return snapshot.SnapshotV1{}, nil, fmt.Errorf("no snapshot in %s", runDir)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return snap, nil, fmt.Errorf("read snapshot: %w", err)
	}
	cat, err := catalogs.Load(a.configDir)
	if err != nil {
		return snap, nil, fmt.Errorf("load catalogs: %w", err)
	}
	if cat.Digest != snap.Header.CatalogDigest {
		return snap, nil, fmt.Errorf("catalog digest mismatch: run recorded %s, %s has %s",
			snap.Header.CatalogDigest, a.configDir, cat.Digest)
	}
	return snap, cat, nil
}

func (a *app) replay(ctx context.Context, runDir string) (int, error) {
	snap, cat, err := a.loadRun(runDir)
	if err != nil {
		return 0, err
	}
	tale, err := world.New(snap.Setting, cat, a.log.Named("replay"))
	if err != nil {
		return 0, err
	}

	checked := 0
	err = persistlog.ReadTickDir(persistlog.TickDir(runDir), func(e world.TickLogEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Tick != tale.Tick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", tale.Tick(), e.Tick)
		}
		if e.Tick == 0 {
			tale.Begin()
		} else {
			if tale.Done() {
				return fmt.Errorf("tick %d is past the last simulated day", e.Tick)
			}
			tale.Step()
		}
		if got := tale.Digest(); got != e.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", e.Tick, got, e.Digest)
		}
		checked++
		return nil
	})
	if err != nil {
		return checked, fmt.Errorf("replay: %w", err)
	}
	if tale.LastTick() == snap.Header.Tick && tale.Digest() != snap.Header.Digest {
		return checked, fmt.Errorf("snapshot %d digest mismatch: got=%s want=%s", snap.Header.Tick, tale.Digest(), snap.Header.Digest)
	}
	a.log.Info("replay finished", zap.String("run_id", snap.Header.RunID), zap.Int("checked", checked), zap.String("digest", tale.Digest()))
	return checked, nil
}
