package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KernelRow is the indexed summary of one kernel.
type KernelRow struct {
	ID    int
	Tick  int
	Kind  string
	Owner int
	Tag   string
	Value float64
	Depth int
}

type RunRow struct {
	RunID         string
	Seed          int64
	CatalogDigest string
	StartedAt     string
}

var ErrNotFound = errors.New("not found")

// Runs lists every indexed run, newest first.
func (s *SQLiteIndex) Runs(ctx context.Context) ([]RunRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, seed, catalog_digest, started_at FROM runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.Seed, &r.CatalogDigest, &r.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Kernel(ctx context.Context, id int) (KernelRow, error) {
	var k KernelRow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tick, kind, owner, tag, value FROM kernels WHERE run_id=? AND id=?`, s.runID, id,
	).Scan(&k.ID, &k.Tick, &k.Kind, &k.Owner, &k.Tag, &k.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return k, fmt.Errorf("kernel %d: %w", id, ErrNotFound)
	}
	return k, err
}

// Ancestors walks reason edges back from id up to depth levels. Each kernel is
// reported once at its shortest distance.
func (s *SQLiteIndex) Ancestors(ctx context.Context, id, depth int) ([]KernelRow, error) {
	return s.walk(ctx, `
		WITH RECURSIVE walk(id, depth) AS (
			SELECT reason_id, 1 FROM reasons WHERE run_id=?1 AND kernel_id=?2
			UNION
			SELECT r.reason_id, w.depth+1 FROM reasons r JOIN walk w ON r.kernel_id=w.id
			WHERE r.run_id=?1 AND w.depth < ?3
		)
		SELECT k.id, k.tick, k.kind, k.owner, k.tag, k.value, MIN(w.depth) AS d
		FROM walk w JOIN kernels k ON k.run_id=?1 AND k.id=w.id
		GROUP BY k.id ORDER BY d, k.id`, id, depth)
}

// Descendants walks consequence edges forward from id up to depth levels.
func (s *SQLiteIndex) Descendants(ctx context.Context, id, depth int) ([]KernelRow, error) {
	return s.walk(ctx, `
		WITH RECURSIVE walk(id, depth) AS (
			SELECT kernel_id, 1 FROM reasons WHERE run_id=?1 AND reason_id=?2
			UNION
			SELECT r.kernel_id, w.depth+1 FROM reasons r JOIN walk w ON r.reason_id=w.id
			WHERE r.run_id=?1 AND w.depth < ?3
		)
		SELECT k.id, k.tick, k.kind, k.owner, k.tag, k.value, MIN(w.depth) AS d
		FROM walk w JOIN kernels k ON k.run_id=?1 AND k.id=w.id
		GROUP BY k.id ORDER BY d, k.id`, id, depth)
}

func (s *SQLiteIndex) walk(ctx context.Context, query string, id, depth int) ([]KernelRow, error) {
	if depth <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, query, s.runID, id, depth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []KernelRow
	for rows.Next() {
		var k KernelRow
		if err := rows.Scan(&k.ID, &k.Tick, &k.Kind, &k.Owner, &k.Tag, &k.Value, &k.Depth); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// InteractionCount is how often one actor took part in one interaction.
type InteractionCount struct {
	Tag   string
	Count int
}

// ActorInteractionCounts groups the actor's interactions by definition name,
// most frequent first.
func (s *SQLiteIndex) ActorInteractionCounts(ctx context.Context, actor int) ([]InteractionCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT k.tag, COUNT(*) AS n
		FROM participants p JOIN kernels k ON k.run_id=p.run_id AND k.id=p.kernel_id
		WHERE p.run_id=? AND p.actor_id=?
		GROUP BY k.tag ORDER BY n DESC, MIN(k.definition)`, s.runID, actor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InteractionCount
	for rows.Next() {
		var c InteractionCount
		if err := rows.Scan(&c.Tag, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TickDigest returns the digest indexed for tick.
func (s *SQLiteIndex) TickDigest(ctx context.Context, tick int) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM ticks WHERE run_id=? AND tick=?`, s.runID, tick).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("tick %d: %w", tick, ErrNotFound)
	}
	return d, err
}
