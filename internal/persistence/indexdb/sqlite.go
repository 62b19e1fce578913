package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/tuning"
	"tattletale/internal/sim/world"
)

// SQLiteIndex is a queryable read model of one run's kernels and their reason
// edges. Writes are queued and applied by a single goroutine in batched
// transactions; the tick log stays the source of truth.
type SQLiteIndex struct {
	db    *sql.DB
	runID string
	log   *zap.Logger
	opts  Options

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
}

type Options struct {
	QueueSize     int
	CommitEvery   int
	CommitMaxWait time.Duration
	Logger        *zap.Logger
}

func (o *Options) applyDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 65536
	}
	if o.CommitEvery <= 0 {
		o.CommitEvery = 2000
	}
	if o.CommitMaxWait <= 0 {
		o.CommitMaxWait = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick   int
	Path   string
	Digest string
}

// Stats reports queue pressure. Dropped requests are never retried.
type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropTickTotal     uint64
	DropSnapshotTotal uint64
}

// OpenSQLite opens (or creates) the index at path. Every row written through
// the returned handle is tagged with runID.
func OpenSQLite(path, runID string, opts Options) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if runID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	opts.applyDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:    db,
		runID: runID,
		log:   opts.Logger,
		opts:  opts,
		ch:    make(chan req, opts.QueueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			catalog_digest TEXT NOT NULL,
			setting_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS definitions (
			catalog_digest TEXT NOT NULL,
			id INTEGER NOT NULL,
			name TEXT NOT NULL,
			participants INTEGER NOT NULL,
			PRIMARY KEY (catalog_digest, id)
		);`,
		`CREATE TABLE IF NOT EXISTS actors (
			run_id TEXT NOT NULL,
			actor_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (run_id, actor_id)
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			day INTEGER NOT NULL,
			digest TEXT NOT NULL,
			kernels INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS kernels (
			run_id TEXT NOT NULL,
			id INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			owner INTEGER NOT NULL,
			tag TEXT NOT NULL,
			value REAL NOT NULL,
			target INTEGER NOT NULL,
			definition INTEGER NOT NULL,
			chance REAL NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_kernels_owner_tick ON kernels(run_id, owner, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_kernels_kind_tag ON kernels(run_id, kind, tag);`,
		`CREATE TABLE IF NOT EXISTS reasons (
			run_id TEXT NOT NULL,
			kernel_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			reason_id INTEGER NOT NULL,
			PRIMARY KEY (run_id, kernel_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reasons_reason ON reasons(run_id, reason_id);`,
		`CREATE TABLE IF NOT EXISTS participants (
			run_id TEXT NOT NULL,
			kernel_id INTEGER NOT NULL,
			slot INTEGER NOT NULL,
			actor_id INTEGER NOT NULL,
			PRIMARY KEY (run_id, kernel_id, slot)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_participants_actor ON participants(run_id, actor_id);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) RunID() string { return s.runID }

// Close drains the queue, commits and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, tick int, digest string) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: snapshotRow{Tick: tick, Path: path, Digest: digest}}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// Flush blocks until every request queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunInfo describes a run at its start.
type RunInfo struct {
	Seed    int64
	Setting tuning.Setting
	Catalog *catalogs.Catalog
	Actors  []string
}

// RecordRun stores the run header, its catalog definitions and actor names
// synchronously.
func (s *SQLiteIndex) RecordRun(ctx context.Context, info RunInfo) error {
	if info.Catalog == nil {
		return fmt.Errorf("run %s: nil catalog", s.runID)
	}
	setting, err := json.Marshal(info.Setting)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs(run_id,seed,catalog_digest,setting_json,started_at) VALUES(?,?,?,?,?)`,
		s.runID, info.Seed, info.Catalog.Digest, string(setting), now); err != nil {
		return err
	}
	defStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO definitions(catalog_digest,id,name,participants) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer defStmt.Close()
	for i := range info.Catalog.Defs {
		d := &info.Catalog.Defs[i]
		if _, err := defStmt.ExecContext(ctx, info.Catalog.Digest, d.ID, d.Name(), d.ParticipantCount()); err != nil {
			return err
		}
	}
	actorStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO actors(run_id,actor_id,name) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer actorStmt.Close()
	for id, name := range info.Actors {
		if _, err := actorStmt.ExecContext(ctx, s.runID, id, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,day,digest,kernels) VALUES(?,?,?,?,?)`)
	insertKernel, _ := s.db.Prepare(`INSERT OR REPLACE INTO kernels(run_id,id,tick,kind,owner,tag,value,target,definition,chance,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertReason, _ := s.db.Prepare(`INSERT OR REPLACE INTO reasons(run_id,kernel_id,seq,reason_id) VALUES(?,?,?,?)`)
	insertParticipant, _ := s.db.Prepare(`INSERT OR REPLACE INTO participants(run_id,kernel_id,slot,actor_id) VALUES(?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(run_id,tick,path,digest) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertKernel, insertReason, insertParticipant, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx         *sql.Tx
		opCount    int
		lastCommit = time.Now()
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.Warn("index begin failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.Warn("index commit failed", zap.Error(err))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.log.Warn("index write failed", zap.Error(err))
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback(err)
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			if !exec(insertTick, s.runID, e.Tick, e.Day, e.Digest, len(e.Kernels)) {
				continue
			}
		kernels:
			for _, k := range e.Kernels {
				raw, _ := json.Marshal(k)
				if !exec(insertKernel, s.runID, k.ID, k.Tick, k.Kind, k.Owner, k.Tag, k.Value, k.Target, k.Definition, k.Chance, string(raw)) {
					break
				}
				for seq, reason := range k.Reasons {
					if !exec(insertReason, s.runID, k.ID, seq, reason) {
						break kernels
					}
				}
				for slot, actor := range k.Participants {
					if !exec(insertParticipant, s.runID, k.ID, slot, actor) {
						break kernels
					}
				}
			}

		case reqSnapshot:
			sn := r.snapshot
			if !exec(insertSnapshot, s.runID, sn.Tick, sn.Path, sn.Digest) {
				continue
			}
		}
		if tx != nil && (opCount >= s.opts.CommitEvery || time.Since(lastCommit) >= s.opts.CommitMaxWait) {
			commit()
		}
	}

	commit()
}
