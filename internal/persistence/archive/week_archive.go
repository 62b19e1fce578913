package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"tattletale/internal/persistence/snapshot"
	"tattletale/internal/sim/tuning"
)

type WeekArchiveMeta struct {
	Week        int    `json:"week"`
	EndTick     int    `json:"end_tick"`
	RunID       string `json:"run_id"`
	Seed        int64  `json:"seed"`
	Digest      string `json:"digest"`
	Snapshot    string `json:"snapshot"`
	CreatedAt   string `json:"created_at"`
	TicksPerDay int    `json:"ticks_per_day"`
}

// ArchiveWeekSnapshot copies a week-end snapshot into `runDir/archives/week_<NNN>/`.
// It returns (week, archivedPath, archived=true) when the snapshot closes a week.
func ArchiveWeekSnapshot(runDir, snapshotPath string, snap snapshot.SnapshotV1) (week int, archivedPath string, archived bool, err error) {
	weekTicks := snap.Setting.TicksPerDay() * tuning.DaysPerWeek
	if weekTicks <= 0 {
		return 0, "", false, nil
	}
	// Tick 0 holds the starting values, so week k ends at tick weekTicks*k.
	tick := snap.Header.Tick
	if tick <= 0 || tick%weekTicks != 0 {
		return 0, "", false, nil
	}
	week = tick / weekTicks

	archiveDir := filepath.Join(runDir, "archives", fmt.Sprintf("week_%03d", week))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := WeekArchiveMeta{
		Week:        week,
		EndTick:     tick,
		RunID:       snap.Header.RunID,
		Seed:        snap.Header.Seed,
		Digest:      snap.Header.Digest,
		Snapshot:    filepath.Base(dst),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		TicksPerDay: snap.Setting.TicksPerDay(),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return week, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
