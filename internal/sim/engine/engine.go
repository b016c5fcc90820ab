// Package engine drives the tick loop: dispatch every player's script, wait for all of them,
// resolve their actions against the world, then persist.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"creepworld.ai/internal/persistence/archive"
	"creepworld.ai/internal/persistence/scripts"
	"creepworld.ai/internal/persistence/snapshot"
	"creepworld.ai/internal/sim/bridge"
	"creepworld.ai/internal/sim/script"
	"creepworld.ai/internal/sim/world"
)

var (
	ErrHalted        = errors.New("engine halted")
	ErrPlayerExists  = errors.New("player already registered")
	ErrUnknownPlayer = errors.New("unknown player")
)

type TickLog interface {
	WriteTick(world.TickLogEntry) error
}

type ResetLog interface {
	WriteReset(world.ResetEntry) error
}

type Index interface {
	WriteTick(world.TickLogEntry) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordReset(world.ResetEntry)
}

type Config struct {
	// DataDir receives world.snap.zst and archives; empty disables snapshots.
	DataDir      string
	ArchiveEvery uint64
	Gen          world.GenParams
	Script       script.Config
}

// Deps are the engine's collaborators. Only Store is required.
type Deps struct {
	Store    script.Store
	TickLog  TickLog
	ResetLog ResetLog
	Index    Index
	Visible  bridge.Visibility
}

type opKind int

const (
	opRegister opKind = iota + 1
	opSetScript
	opReset
)

type op struct {
	kind   opKind
	player string
	src    string
	seed   string
	done   chan error
}

type Engine struct {
	log    *zap.Logger
	cfg    Config
	deps   Deps
	runner *script.Runner

	// mu guards w. Dispatch and admin reads hold it shared; resolution and tick-boundary
	// operations hold it exclusively.
	mu deadlock.RWMutex
	w  *world.World

	state atomic.Int32

	opsMu sync.Mutex
	ops   []op

	lastMu sync.Mutex
	last   lastStep

	stopOnce sync.Once
	stop     chan struct{}
}

func New(w *world.World, cfg Config, deps Deps, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:    log,
		cfg:    cfg,
		deps:   deps,
		runner: script.NewRunner(deps.Store, log.Named("script"), cfg.Script),
		w:      w,
		stop:   make(chan struct{}),
	}
}

func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) {
	for {
		cur := e.state.Load()
		if State(cur) == Halted {
			return
		}
		if e.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (e *Engine) Time() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.w.Time()
}

func (e *Engine) Digest() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.w.Digest()
}

func (e *Engine) Interval() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return time.Duration(e.w.IntervalMs()) * time.Millisecond
}

func (e *Engine) RoomData(room string) (world.RoomData, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.w.RoomData(room)
}

func (e *Engine) HasPlayer(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.w.Player(name) != nil
}

func (e *Engine) PlayerNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.w.PlayerNames()
}

// View runs fn with shared access to the world. fn must not keep w.
func (e *Engine) View(fn func(w *world.World)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.w)
}

func (e *Engine) Script(player string) (string, error) {
	if !e.HasPlayer(player) {
		return "", ErrUnknownPlayer
	}
	return e.deps.Store.LoadScript(player)
}

// Register queues a new player; it joins with a starter spawn at the next tick boundary.
// The returned channel yields the outcome once applied.
func (e *Engine) Register(player, src string) <-chan error {
	if !scripts.ValidPlayerName(player) {
		return failed(scripts.ErrBadPlayerName)
	}
	return e.enqueue(op{kind: opRegister, player: player, src: src})
}

// SetScript queues a script replacement, applied at the next tick boundary.
func (e *Engine) SetScript(player, src string) <-chan error {
	if !e.HasPlayer(player) {
		return failed(ErrUnknownPlayer)
	}
	return e.enqueue(op{kind: opSetScript, player: player, src: src})
}

// Reset queues a world reset from seed. Registered players are re-placed.
func (e *Engine) Reset(seed string) <-chan error {
	return e.enqueue(op{kind: opReset, seed: seed})
}

func failed(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}

func (e *Engine) enqueue(o op) <-chan error {
	o.done = make(chan error, 1)
	e.opsMu.Lock()
	defer e.opsMu.Unlock()
	if e.State() == Halted {
		o.done <- ErrHalted
		return o.done
	}
	e.ops = append(e.ops, o)
	return o.done
}

func (e *Engine) applyOps() {
	e.opsMu.Lock()
	ops := e.ops
	e.ops = nil
	e.opsMu.Unlock()
	if len(ops) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range ops {
		var err error
		switch o.kind {
		case opRegister:
			err = e.register(o.player, o.src)
		case opSetScript:
			err = e.deps.Store.SaveScript(o.player, o.src)
		case opReset:
			err = e.reset(o.seed)
		}
		o.done <- err
	}
}

func (e *Engine) register(player, src string) error {
	if e.w.Player(player) != nil {
		return ErrPlayerExists
	}
	sp, err := e.w.PlaceSpawn(player, world.SpawnNameFor(player))
	if err != nil {
		return err
	}
	e.w.AddPlayer(player)
	if src != "" {
		if err := e.deps.Store.SaveScript(player, src); err != nil {
			return fmt.Errorf("save script: %w", err)
		}
	}
	e.log.Info("player registered",
		zap.String("player", player),
		zap.String("room", sp.Pos.Room.String()),
		zap.Uint64("tick", e.w.Time()),
	)
	return nil
}

func (e *Engine) reset(seed string) error {
	if dir := e.cfg.DataDir; dir != "" {
		prev := e.w.Export()
		prev.Header = snapshot.Header{Version: snapshot.Version, Seed: prev.Seed, Tick: prev.Time}
		era, path, err := archive.ArchiveEra(dir, prev, seed)
		if err != nil {
			return fmt.Errorf("archive before reset: %w", err)
		}
		e.log.Info("era archived", zap.Int("era", era), zap.String("path", path))
	}
	unplaced, err := e.w.Reset(seed, e.cfg.Gen)
	if err != nil {
		return err
	}
	entry := world.ResetEntry{
		Tick:     e.w.Time(),
		Seed:     seed,
		Rooms:    len(e.w.RoomNames()),
		Unplaced: unplaced,
	}
	e.log.Info("world reset",
		zap.String("seed", seed),
		zap.Int("rooms", entry.Rooms),
		zap.Strings("unplaced", unplaced),
	)
	if e.deps.ResetLog != nil {
		if err := e.deps.ResetLog.WriteReset(entry); err != nil {
			e.log.Warn("reset log", zap.Error(err))
		}
	}
	if e.deps.Index != nil {
		e.deps.Index.RecordReset(entry)
	}
	return nil
}

// Step runs one full tick synchronously and returns its log entry.
func (e *Engine) Step(ctx context.Context) (world.TickLogEntry, error) {
	if e.State() == Halted {
		return world.TickLogEntry{}, ErrHalted
	}
	start := time.Now()
	e.applyOps()

	e.setState(TickRunning)
	runs, intents := e.dispatch(ctx)

	e.setState(Resolving)
	e.mu.Lock()
	rep := e.w.Resolve(intents...)
	for _, r := range runs {
		if !r.Ran {
			continue
		}
		p := e.w.Player(r.Player)
		if p == nil {
			continue
		}
		p.LastRunMs = float64(r.Duration.Microseconds()) / 1000
		if r.Fault != nil {
			p.Faults++
		}
	}
	e.w.Advance()
	snap := e.w.Export()
	digest := e.w.Digest()
	e.mu.Unlock()

	e.setState(Persisted)
	entry := rep.TickEntry(snap.Time, digest, playerRuns(runs))
	e.persist(snap, entry)
	e.debugView()

	e.lastMu.Lock()
	e.last = lastStep{dur: time.Since(start), entry: entry}
	e.lastMu.Unlock()
	return entry, nil
}

// dispatch runs every player's script concurrently against the frozen world and waits for
// all of them. Scripts only read the world, so the shared lock is held throughout.
func (e *Engine) dispatch(ctx context.Context) ([]script.RunResult, []*world.Intents) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	players := e.w.PlayerNames()
	views := bridge.BuildViews(e.w)
	runs := make([]script.RunResult, len(players))
	intents := make([]*world.Intents, len(players))
	b := NewBarrier(len(players))

	for i, player := range players {
		in := world.NewIntents(player)
		intents[i] = in
		api := bridge.New(e.w, views, in, e.deps.Visible)
		go func(i int) {
			defer b.Signal()
			defer func() {
				if r := recover(); r != nil {
					runs[i] = script.RunResult{
						Player: api.Player(),
						Tick:   api.Time(),
						Ran:    true,
						Fault: &script.Fault{
							Player: api.Player(),
							Tick:   api.Time(),
							Kind:   script.FaultException,
							Err:    fmt.Errorf("panic: %v", r),
						},
					}
				}
			}()
			runs[i] = e.runner.Run(ctx, api)
		}(i)
	}
	// Runs end on their own budget or when ctx is canceled, so no timeout here.
	_ = b.Wait(context.Background())

	for _, r := range runs {
		if r.Fault != nil {
			e.log.Warn("script fault",
				zap.String("player", r.Player),
				zap.Uint64("tick", r.Tick),
				zap.String("kind", string(r.Fault.Kind)),
				zap.Error(r.Fault.Err),
			)
		}
	}
	return runs, intents
}

func playerRuns(runs []script.RunResult) []world.PlayerRun {
	out := make([]world.PlayerRun, 0, len(runs))
	for _, r := range runs {
		if !r.Ran {
			continue
		}
		pr := world.PlayerRun{
			Player:     r.Player,
			DurationMs: float64(r.Duration.Microseconds()) / 1000,
			Actions:    r.Actions,
		}
		if r.Fault != nil {
			pr.Fault = r.Fault.Err.Error()
			pr.FaultKind = string(r.Fault.Kind)
		}
		out = append(out, pr)
	}
	return out
}

// persist writes the snapshot, the tick log and the index rows. Failures are logged; the
// next tick still runs.
func (e *Engine) persist(snap snapshot.SnapshotV1, entry world.TickLogEntry) {
	snap.Header = snapshot.Header{Version: snapshot.Version, Seed: snap.Seed, Tick: snap.Time}
	if dir := e.cfg.DataDir; dir != "" {
		if err := snapshot.WriteSnapshot(snapshot.CurrentPath(dir), snap); err != nil {
			e.log.Error("write snapshot", zap.Uint64("tick", snap.Time), zap.Error(err))
		}
		if e.cfg.ArchiveEvery > 0 && snap.Time%e.cfg.ArchiveEvery == 0 {
			path := snapshot.ArchivePath(dir, snap.Time)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				e.log.Error("archive snapshot", zap.Uint64("tick", snap.Time), zap.Error(err))
			} else if e.deps.Index != nil {
				e.deps.Index.RecordSnapshot(path, snap)
			}
		}
	}
	if e.deps.TickLog != nil {
		if err := e.deps.TickLog.WriteTick(entry); err != nil {
			e.log.Warn("tick log", zap.Error(err))
		}
	}
	if e.deps.Index != nil {
		_ = e.deps.Index.WriteTick(entry)
	}
}

// debugView logs a text rendering of every room that holds creeps.
func (e *Engine) debugView() {
	if ce := e.log.Check(zap.DebugLevel, "tick"); ce != nil {
		e.mu.RLock()
		defer e.mu.RUnlock()
		fields := []zap.Field{zap.Uint64("tick", e.w.Time())}
		for _, rn := range e.w.RoomNames() {
			r := e.w.Room(rn)
			if len(r.Creeps) == 0 {
				continue
			}
			fields = append(fields, zap.String(rn.String(), r.Render()))
		}
		ce.Write(fields...)
	}
}

// NextDelay is how long to wait before the next tick: never negative, zero when the tick
// overran the interval.
func NextDelay(interval, elapsed time.Duration) time.Duration {
	return max(0, interval-elapsed)
}

// Run ticks until ctx ends or Stop is called.
func (e *Engine) Run(ctx context.Context) error {
	for {
		start := time.Now()
		if _, err := e.Step(ctx); err != nil {
			if errors.Is(err, ErrHalted) {
				return nil
			}
			return err
		}
		t := time.NewTimer(NextDelay(e.Interval(), time.Since(start)))
		select {
		case <-ctx.Done():
			t.Stop()
			e.Stop()
			return ctx.Err()
		case <-e.stop:
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// Stop halts the engine. Queued operations that have not been applied fail with ErrHalted.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.state.Store(int32(Halted))
		close(e.stop)

		e.opsMu.Lock()
		ops := e.ops
		e.ops = nil
		e.opsMu.Unlock()
		for _, o := range ops {
			o.done <- ErrHalted
		}
	})
}
