package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tattletale/internal/persistence/archive"
	"tattletale/internal/persistence/indexdb"
	persistlog "tattletale/internal/persistence/log"
	"tattletale/internal/persistence/snapshot"
	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/tuning"
	"tattletale/internal/sim/world"
)

type runOptions struct {
	settingFlags
	snapshotEvery int
	noIndex       bool
}

// runResult summarizes a finished or interrupted run.
type runResult struct {
	RunID        string
	Dir          string
	Ticks        int
	Kernels      int
	Interactions int
	Digest       string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate a tale and record it under the data directory",
		Long: `Simulate a tale from tuning.yaml and interactions.json.

The run is written to <data>/runs/<run-id>: the tick log under ticks/ and
chronicle snapshots under snapshots/. Kernels and their reasons are also
indexed into <data>/index.sqlite unless --no-index is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cat, err := a.loadInputs()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, &s); err != nil {
				return err
			}
			res, err := a.runTale(cmd.Context(), s, cat, opts)
			if res.RunID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: ticks=%d kernels=%d interactions=%d digest=%s\n",
					res.RunID, res.Ticks, res.Kernels, res.Interactions, res.Digest)
				fmt.Fprintln(cmd.OutOrStdout(), res.Dir)
			}
			return err
		},
	}
	opts.register(cmd)
	cmd.Flags().IntVar(&opts.snapshotEvery, "snapshot-every", 0, "Write a chronicle snapshot every N ticks (0 for the final snapshot only)")
	cmd.Flags().BoolVar(&opts.noIndex, "no-index", false, "Do not index the run into the SQLite read model")
	return cmd
}

func (a *app) runTale(ctx context.Context, s tuning.Setting, cat *catalogs.Catalog, opts runOptions) (runResult, error) {
	res := runResult{RunID: uuid.NewString()}
	res.Dir = filepath.Join(a.dataDir, "runs", res.RunID)
	if err := os.MkdirAll(res.Dir, 0o755); err != nil {
		return runResult{}, err
	}
	logger := a.log.With(zap.String("run_id", res.RunID))

	tale, err := world.New(s, cat, logger.Named("tale"))
	if err != nil {
		return runResult{}, err
	}

	ticks := persistlog.NewTickLogger(res.Dir)
	tale.AddTickLogger(ticks)

	var idx *indexdb.SQLiteIndex
	if !opts.noIndex {
		idx, err = indexdb.OpenSQLite(filepath.Join(a.dataDir, "index.sqlite"), res.RunID, indexdb.Options{Logger: logger.Named("index")})
		if err != nil {
			_ = ticks.Close()
			return runResult{}, fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		if err := idx.RecordRun(ctx, indexdb.RunInfo{
			Seed:    s.Seed,
			Setting: s,
			Catalog: cat,
			Actors:  tale.Chronicle().ActorNames(),
		}); err != nil {
			logger.Warn("index run failed", zap.Error(err))
		}
		tale.AddTickLogger(idx)
	}

	logger.Info("run started",
		zap.String("dir", res.Dir),
		zap.Int64("seed", s.Seed),
		zap.Int("actors", s.ActorCount),
		zap.Int("days", s.Days),
	)

	snaps := make(chan world.Snapshot, 4)
	if opts.snapshotEvery > 0 {
		tale.SetSnapshotSink(snaps, opts.snapshotEvery)
	}
	w := snapshotWriter{runID: res.RunID, dir: res.Dir, setting: s, catalog: cat, idx: idx, log: logger}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for snap := range snaps {
			if err := w.write(snap); err != nil {
				return err
			}
		}
		return nil
	})

	runErr := tale.Run(gctx, 0)
	close(snaps)
	if err := g.Wait(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if tale.LastTick() >= 0 {
		if err := w.write(tale.ExportSnapshot()); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if err := ticks.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("close tick log: %w", err))
	}
	if idx != nil {
		fctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := idx.Flush(fctx); err != nil {
			logger.Warn("index flush failed", zap.Error(err))
		}
		cancel()
		if st := idx.Stats(); st.DropTickTotal > 0 || st.DropSnapshotTotal > 0 {
			logger.Warn("index dropped requests", zap.Uint64("ticks", st.DropTickTotal), zap.Uint64("snapshots", st.DropSnapshotTotal))
		}
	}

	res.Ticks = tale.Tick()
	res.Kernels = tale.Chronicle().Len()
	res.Interactions = tale.Chronicle().InteractionCount()
	res.Digest = tale.Digest()
	return res, runErr
}

type snapshotWriter struct {
	runID   string
	dir     string
	setting tuning.Setting
	catalog *catalogs.Catalog
	idx     *indexdb.SQLiteIndex
	log     *zap.Logger
}

func (w snapshotWriter) write(snap world.Snapshot) error {
	path := snapshot.Path(w.dir, snap.Tick)
	v1 := snapshot.SnapshotV1{
		Header: snapshot.Header{
			RunID:         w.runID,
			Tick:          snap.Tick,
			Seed:          w.setting.Seed,
			CatalogDigest: w.catalog.Digest,
			Digest:        snap.Digest,
		},
		Setting: w.setting,
		History: snap.History,
	}
	if err := snapshot.WriteSnapshot(path, v1); err != nil {
		return fmt.Errorf("write snapshot %d: %w", snap.Tick, err)
	}
	w.idx.RecordSnapshot(path, snap.Tick, snap.Digest)

	week, archived, ok, err := archive.ArchiveWeekSnapshot(w.dir, path, v1)
	if err != nil {
		w.log.Warn("week archive failed", zap.Int("tick", snap.Tick), zap.Error(err))
	} else if ok {
		w.log.Info("week archived", zap.Int("week", week), zap.String("path", archived))
	}
	return nil
}
