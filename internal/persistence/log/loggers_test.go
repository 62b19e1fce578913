package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/world"
)

func TestTickLogger_RoundTripAcrossRotation(t *testing.T) {
	runDir := t.TempDir()
	l := NewTickLogger(runDir)
	clock := time.Date(2024, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	want := []world.TickLogEntry{
		{Tick: 0, Digest: "a", Kernels: []kernel.Record{{ID: 0, Kind: "resource", Tag: "wealth", Value: 0.25}}},
		{Tick: 1, Digest: "b"},
		{Tick: 2, Day: 1, Digest: "c", Kernels: []kernel.Record{{ID: 1, Tick: 2, Kind: "interaction", Tag: "chat", Reasons: []int{0}, Participants: []int{0, 1}, Chance: 0.5}}},
	}
	require.NoError(t, l.WriteTick(want[0]))
	require.NoError(t, l.WriteTick(want[1]))
	clock = clock.Add(2 * time.Minute)
	require.NoError(t, l.WriteTick(want[2]))
	require.NoError(t, l.Close())

	files, err := ListTickFiles(TickDir(runDir))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "ticks-2024-03-01-10.jsonl.zst", filepath.Base(files[0]))
	assert.Equal(t, "ticks-2024-03-01-11.jsonl.zst", filepath.Base(files[1]))

	var got []world.TickLogEntry
	require.NoError(t, ReadTickDir(TickDir(runDir), func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	}))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries differ (-want +got):\n%s", diff)
	}
}

func TestListTickFiles_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ticks-2024-01-01-00.jsonl.zst", "notes.txt", "audit-2024-01-01-00.jsonl.zst"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "ticks-dir.jsonl.zst"), 0o755))

	files, err := ListTickFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "ticks-2024-01-01-00.jsonl.zst")}, files)
}

func TestReadTickDir_Empty(t *testing.T) {
	err := ReadTickDir(t.TempDir(), func(world.TickLogEntry) error { return nil })
	assert.ErrorContains(t, err, "no tick log files")
}
