package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/simtest"
	"tattletale/internal/sim/tuning"
	"tattletale/internal/sim/world"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"), uuid.NewString(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// chain: 0,1 -> 2 -> 3 -> 4
func chainEntries() []world.TickLogEntry {
	return []world.TickLogEntry{
		{Tick: 0, Digest: "d0", Kernels: []kernel.Record{
			{ID: 0, Kind: "resource", Owner: 0, Tag: "wealth", Value: 0.5},
			{ID: 1, Kind: "emotion", Owner: 1, Tag: "happy", Value: -0.2},
		}},
		{Tick: 1, Digest: "d1", Kernels: []kernel.Record{
			{ID: 2, Tick: 1, Kind: "interaction", Owner: 0, Tag: "chat", Reasons: []int{0, 1}, Participants: []int{0, 1}, Chance: 0.4, Definition: 1},
			{ID: 3, Tick: 1, Kind: "emotion", Owner: 1, Tag: "happy", Value: 0.1, Reasons: []int{2}},
		}},
		{Tick: 2, Day: 0, Digest: "d2", Kernels: []kernel.Record{
			{ID: 4, Tick: 2, Kind: "interaction", Owner: 1, Tag: "chat", Reasons: []int{3}, Participants: []int{1, 0}, Chance: 0.2, Definition: 1},
		}},
		{Tick: 3, Digest: "d3"},
	}
}

func ids(rows []KernelRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestSQLiteIndex_CausalWalks(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t)
	for _, e := range chainEntries() {
		require.NoError(t, idx.WriteTick(e))
	}
	require.NoError(t, idx.Flush(ctx))

	anc, err := idx.Ancestors(ctx, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 0, 1}, ids(anc))
	assert.Equal(t, 3, anc[3].Depth)

	anc, err = idx.Ancestors(ctx, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, ids(anc))

	desc, err := idx.Descendants(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, ids(desc))

	none, err := idx.Ancestors(ctx, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	counts, err := idx.ActorInteractionCounts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []InteractionCount{{Tag: "chat", Count: 2}}, counts)

	k, err := idx.Kernel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, KernelRow{ID: 1, Kind: "emotion", Owner: 1, Tag: "happy", Value: -0.2}, k)
	_, err = idx.Kernel(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	d, err := idx.TickDigest(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "d3", d)
}

func TestSQLiteIndex_IndexesWholeTale(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t)

	s := tuning.Defaults()
	s.Seed = 8
	s.ActorCount = 10
	s.Days = 2
	s.ActorsPerCourse = 5
	tale, err := world.New(s, simtest.SmallCatalog(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, idx.RecordRun(ctx, RunInfo{
		Seed:    s.Seed,
		Setting: s,
		Catalog: tale.Catalog(),
		Actors:  tale.Chronicle().ActorNames(),
	}))
	tale.AddTickLogger(idx)
	require.NoError(t, tale.Run(ctx, 0))
	require.NoError(t, idx.Flush(ctx))

	var kernels int
	require.NoError(t, idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kernels WHERE run_id=?`, idx.RunID()).Scan(&kernels))
	assert.Equal(t, tale.Chronicle().Len(), kernels)

	d, err := idx.TickDigest(ctx, tale.LastTick())
	require.NoError(t, err)
	assert.Equal(t, tale.Digest(), d)

	runs, err := idx.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, idx.RunID(), runs[0].RunID)
	assert.Equal(t, tale.Catalog().Digest, runs[0].CatalogDigest)

	// Every indexed reason edge points backwards in time.
	var acausal int
	require.NoError(t, idx.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reasons r
		JOIN kernels k ON k.run_id=r.run_id AND k.id=r.kernel_id
		JOIN kernels c ON c.run_id=r.run_id AND c.id=r.reason_id
		WHERE r.run_id=? AND c.tick > k.tick`, idx.RunID()).Scan(&acausal))
	assert.Zero(t, acausal)
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", 2, "x")

	st := s.Stats()
	assert.Equal(t, uint64(1), st.DropTickTotal)
	assert.Equal(t, uint64(1), st.DropSnapshotTotal)
	assert.Equal(t, 1, st.QueueDepth)
	assert.Equal(t, 1, st.QueueCapacity)
}

func TestSQLiteIndex_WritesAfterCloseAreIgnored(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"), "run-1", Options{})
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	assert.NoError(t, idx.WriteTick(world.TickLogEntry{Tick: 1}))
	assert.NoError(t, idx.Flush(context.Background()))
}

func TestOpenSQLite_RejectsEmptyArgs(t *testing.T) {
	_, err := OpenSQLite("", "run", Options{})
	assert.Error(t, err)
	_, err = OpenSQLite(filepath.Join(t.TempDir(), "x.sqlite"), "", Options{})
	assert.Error(t, err)
}
