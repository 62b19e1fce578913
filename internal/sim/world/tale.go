// Package world drives a tale: it builds the actors of a setting, keeps the
// weekly course schedule and steps the simulation tick by tick.
package world

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tattletale/internal/sim/actor"
	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/chronicle"
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/model"
	"tattletale/internal/sim/random"
	"tattletale/internal/sim/tuning"
)

// TickLogEntry is everything that happened during one tick.
type TickLogEntry struct {
	Tick    int             `json:"tick"`
	Day     int             `json:"day"`
	Kernels []kernel.Record `json:"kernels,omitempty"`
	Digest  string          `json:"digest"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// Snapshot is a full chronicle export taken at the end of a tick.
type Snapshot struct {
	Tick    int
	Digest  string
	History chronicle.Export
}

// Tale is a single-threaded simulation run. All state must be accessed from
// the goroutine that steps it.
type Tale struct {
	setting tuning.Setting
	catalog *catalogs.Catalog
	log     *zap.Logger

	rng      *random.Random
	chron    *chronicle.Chronicle
	pop      *actor.Population
	schedule *Schedule

	tick    int
	day     int
	dayTick int
	started bool

	// First kernel not yet published in a tick entry.
	published kernel.ID
	digest    string

	tickLoggers   []TickLogger
	snapshotSink  chan<- Snapshot
	snapshotEvery int
}

// New builds the actors of s, draws their starting values at tick 0 and lays
// out the course schedule. Every draw comes from one generator seeded with
// s.Seed.
func New(s tuning.Setting, cat *catalogs.Catalog, logger *zap.Logger) (*Tale, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if cat == nil || cat.Len() == 0 {
		return nil, fmt.Errorf("catalog has no interactions")
	}
	if len(s.FirstNames) == 0 || len(s.LastNames) == 0 {
		return nil, fmt.Errorf("name lists must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tale{
		setting: s,
		catalog: cat,
		log:     logger,
		rng:     random.New(s.Seed),
		chron:   chronicle.New(),
	}
	env := &actor.Env{
		Chronicle: t.chron,
		Catalog:   cat,
		Rand:      t.rng,
		Options: actor.Options{
			FreetimeActorCount:           s.FreetimeActorCount,
			MinStartRelationships:        s.MinStartRelationships,
			MaxStartRelationships:        s.MaxStartRelationships,
			DesiredMaxStartRelationships: s.DesiredMaxStartRelationships,
		},
	}
	t.pop = actor.NewPopulation(env)

	firsts := t.randomNames(s.FirstNames, s.ActorCount)
	lasts := t.randomNames(s.LastNames, s.ActorCount)
	for i := 0; i < s.ActorCount; i++ {
		t.pop.Add(firsts[i] + " " + lasts[i])
	}
	// Relationships need every actor to exist first.
	for _, a := range t.pop.All() {
		t.pop.SetupRandomValues(a, 0)
	}
	t.schedule = BuildSchedule(t.rng, s.ActorCount, s.SlotsPerWeek(), s.ActorsPerCourse)

	t.log.Debug("tale created",
		zap.Int64("seed", s.Seed),
		zap.Int("actors", s.ActorCount),
		zap.Int("kernels", t.chron.Len()),
		zap.Int("slots_per_week", s.SlotsPerWeek()),
		zap.String("catalog_digest", cat.Digest),
	)
	if t.log.Core().Enabled(zap.DebugLevel) {
		for _, a := range t.pop.All() {
			t.log.Debug("actor", zap.String("name", a.Name()), zap.String("details", a.DetailedDescription()), zap.String("knows", a.KnownActorsDescription()))
		}
	}
	return t, nil
}

func (t *Tale) randomNames(pool []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = pool[t.rng.Int(0, len(pool)-1)]
	}
	return out
}

// AddTickLogger registers a sink that receives every tick entry, starting with
// the tick 0 entry holding the starting values.
func (t *Tale) AddTickLogger(l TickLogger) { t.tickLoggers = append(t.tickLoggers, l) }

// SetSnapshotSink sends a snapshot every n ticks, starting after tick 0.
// Snapshots are dropped when the sink is backed up.
func (t *Tale) SetSnapshotSink(ch chan<- Snapshot, n int) {
	t.snapshotSink = ch
	t.snapshotEvery = n
}

func (t *Tale) Setting() tuning.Setting           { return t.setting }
func (t *Tale) Catalog() *catalogs.Catalog        { return t.catalog }
func (t *Tale) Chronicle() *chronicle.Chronicle   { return t.chron }
func (t *Tale) Population() *actor.Population     { return t.pop }
func (t *Tale) Schedule() *Schedule               { return t.schedule }
func (t *Tale) Rand() *random.Random              { return t.rng }
func (t *Tale) Tick() int                         { return t.tick }
func (t *Tale) Day() int                          { return t.day }
func (t *Tale) Digest() string                    { return t.digest }
func (t *Tale) Done() bool                        { return t.day >= t.setting.Days }
func (t *Tale) Weekday() int                      { return t.day % tuning.DaysPerWeek }
func (t *Tale) IsWorkday() bool                   { return t.Weekday() < t.setting.WorkdaysPerWeek }
func (t *Tale) LastTick() int                     { return t.tick - 1 }
func (t *Tale) ActorName(id model.ActorID) string { return t.chron.ActorName(id) }

// ExportSnapshot copies the history up to the last published tick.
func (t *Tale) ExportSnapshot() Snapshot {
	return Snapshot{Tick: t.LastTick(), Digest: t.digest, History: t.chron.Export()}
}

// Begin publishes the tick 0 entry with the starting values. Step calls it
// on first use.
func (t *Tale) Begin() {
	if t.started {
		return
	}
	t.started = true
	t.publish(0)
	t.tick = 1
}

// Step runs one tick. On workdays the first courses_per_day ticks are course
// ticks and the last is free time; other days are free time throughout.
func (t *Tale) Step() {
	t.Begin()

	if t.IsWorkday() && t.dayTick < t.setting.CoursesPerDay {
		t.courseTick(t.Weekday()*t.setting.CoursesPerDay + t.dayTick)
	} else {
		t.freetimeTick()
	}
	t.publish(t.tick)

	t.tick++
	t.dayTick++
	if t.dayTick == t.setting.TicksPerDay() {
		t.log.Debug("day finished", zap.Int("day", t.day), zap.Int("weekday", t.Weekday()), zap.Int("kernels", t.chron.Len()))
		t.dayTick = 0
		t.day++
	}
	t.maybeSnapshot()
}

// StepDay runs the remaining ticks of the current day.
func (t *Tale) StepDay() {
	day := t.day
	for t.day == day {
		t.Step()
	}
}

// Run steps until the configured number of days is simulated. A positive
// pace waits that long between ticks.
func (t *Tale) Run(ctx context.Context, pace time.Duration) error {
	var tickC <-chan time.Time
	if pace > 0 {
		ticker := time.NewTicker(pace)
		defer ticker.Stop()
		tickC = ticker.C
	}
	for !t.Done() {
		if tickC != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tickC:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		t.Step()
	}
	t.logSummary()
	return nil
}

func (t *Tale) courseTick(slot int) {
	for _, group := range t.schedule.Groups(slot) {
		pool := t.pop.Resolve(group)
		for _, a := range pool {
			t.letActorInteract(a, pool, model.ContextCourse)
		}
	}
}

func (t *Tale) freetimeTick() {
	for _, a := range t.pop.All() {
		t.letActorInteract(a, t.pop.Resolve(a.FrequentContacts()), model.ContextFreetime)
	}
}

func (t *Tale) letActorInteract(a *actor.Actor, pool []*actor.Actor, ctx model.ContextType) {
	choice, ok := a.ChooseInteraction(pool, ctx, t.day)
	if !ok {
		if ce := t.log.Check(zap.DebugLevel, "turn"); ce != nil {
			ce.Write(zap.Int("tick", t.tick), zap.String("context", ctx.String()), zap.String("actor", a.Name()), zap.String("did", "nothing"))
		}
		return
	}
	k := t.pop.Materialize(choice, t.tick)
	if ce := t.log.Check(zap.DebugLevel, "turn"); ce != nil {
		ce.Write(zap.Int("tick", t.tick), zap.String("context", ctx.String()), zap.String("actor", a.Name()), zap.String("did", k.Description(t.chron)))
	}
}

func (t *Tale) publish(tick int) {
	fresh := t.chron.Since(t.published)
	records := make([]kernel.Record, len(fresh))
	for i, k := range fresh {
		records[i] = k.Record()
	}
	t.published = kernel.ID(t.chron.Len())
	t.digest = chainDigest(t.digest, tick, records)

	entry := TickLogEntry{Tick: tick, Day: t.day, Kernels: records, Digest: t.digest}
	for _, l := range t.tickLoggers {
		if err := l.WriteTick(entry); err != nil {
			t.log.Warn("tick log write failed", zap.Int("tick", tick), zap.Error(err))
		}
	}
}

func (t *Tale) maybeSnapshot() {
	if t.snapshotSink == nil || t.snapshotEvery <= 0 || t.LastTick()%t.snapshotEvery != 0 {
		return
	}
	select {
	case t.snapshotSink <- t.ExportSnapshot():
	default:
		t.log.Warn("snapshot dropped", zap.Int("tick", t.LastTick()))
	}
}

func (t *Tale) logSummary() {
	t.log.Info("tale finished",
		zap.Int("days", t.day),
		zap.Int("ticks", t.tick),
		zap.Int("kernels", t.chron.Len()),
		zap.Int("interactions", t.chron.InteractionCount()),
		zap.Float64("avg_interaction_chance", t.chron.AverageInteractionChance()),
		zap.Float64("avg_reason_count", t.chron.AverageInteractionReasonCount()),
		zap.String("digest", t.digest),
	)
}
