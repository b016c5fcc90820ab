package engine

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"creepworld.ai/internal/persistence/archive"
	"creepworld.ai/internal/persistence/scripts"
	"creepworld.ai/internal/persistence/snapshot"
	"creepworld.ai/internal/sim/script"
	"creepworld.ai/internal/sim/world"
	"creepworld.ai/internal/sim/world/model"
)

// twoRooms builds a world with two claimable plain rooms.
func twoRooms(t *testing.T) *world.World {
	t.Helper()
	w := world.New("engine")
	for i, rn := range []model.RoomName{{X: 0, Y: 0}, {X: 1, Y: 0}} {
		r := model.NewRoom(rn, model.NewTerrain(model.Plain))
		r.AddStructure(&model.Controller{ObjectBase: model.ObjectBase{ID: "ctrl" + rn.String(), Pos: model.Position{X: 40, Y: 40, Room: rn}}})
		r.AddStructure(model.NewSource("src"+string(rune('a'+i)), model.Position{X: 10, Y: 10, Room: rn}))
		w.AddRoom(r)
	}
	return w
}

func newEngine(t *testing.T, w *world.World, cfg Config) (*Engine, *scripts.MemStore) {
	t.Helper()
	store := scripts.NewMemStore()
	if cfg.Script == (script.Config{}) {
		cfg.Script = script.DefaultConfig()
	}
	return New(w, cfg, Deps{Store: store}, zap.NewNop()), store
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("operation never applied")
		return nil
	}
}

func step(t *testing.T, e *Engine) world.TickLogEntry {
	t.Helper()
	entry, err := e.Step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	return entry
}

const spawner = `
for (const name in Game.spawns) {
	Game.spawns[name].spawnCreep([WORK, CARRY, MOVE], "w_" + Game.time);
}
for (const name in Game.creeps) {
	const dirs = [TOP, RIGHT, BOTTOM, LEFT];
	Game.creeps[name].move(dirs[Math.floor(Math.random() * dirs.length)]);
}
`

func TestBarrierReleasesAfterExactlyN(t *testing.T) {
	b := NewBarrier(3)
	b.Signal()
	b.Signal()
	select {
	case <-b.Done():
		t.Fatalf("released after two signals")
	default:
	}
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); b.Signal() }()
	}
	wg.Wait()
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if b.Count() != 3 {
		t.Fatalf("count: %d", b.Count())
	}
}

func TestBarrierZeroIsOpen(t *testing.T) {
	if err := NewBarrier(0).Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestBarrierWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewBarrier(1).Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestNextDelay(t *testing.T) {
	cases := []struct{ interval, elapsed, want time.Duration }{
		{time.Second, 200 * time.Millisecond, 800 * time.Millisecond},
		{time.Second, time.Second, 0},
		{time.Second, 3 * time.Second, 0},
	}
	for _, c := range cases {
		if got := NextDelay(c.interval, c.elapsed); got != c.want {
			t.Fatalf("NextDelay(%v, %v) = %v, want %v", c.interval, c.elapsed, got, c.want)
		}
	}
}

func TestRegisterAppliesAtTickBoundary(t *testing.T) {
	e, _ := newEngine(t, twoRooms(t), Config{})
	done := e.Register("alice", spawner)
	if e.HasPlayer("alice") {
		t.Fatalf("registered before the tick boundary")
	}
	entry := step(t, e)
	if err := wait(t, done); err != nil {
		t.Fatalf("register: %v", err)
	}
	if entry.Tick != 1 || e.Time() != 1 {
		t.Fatalf("tick: entry=%d engine=%d", entry.Tick, e.Time())
	}
	if len(entry.Spawned) != 1 || entry.Spawned[0] != "w_0" {
		t.Fatalf("spawned: %v", entry.Spawned)
	}
	e.View(func(w *world.World) {
		if w.CreepByName("w_0") == nil {
			t.Fatalf("creep missing")
		}
	})

	dup := e.Register("alice", "")
	step(t, e)
	if err := wait(t, dup); !errors.Is(err, ErrPlayerExists) {
		t.Fatalf("expected ErrPlayerExists, got %v", err)
	}
}

func TestRegisterRejectsBadNameAndFullWorld(t *testing.T) {
	e, _ := newEngine(t, twoRooms(t), Config{})
	if err := wait(t, e.Register("../x", "")); !errors.Is(err, scripts.ErrBadPlayerName) {
		t.Fatalf("expected ErrBadPlayerName, got %v", err)
	}
	a, b, c := e.Register("a", ""), e.Register("b", ""), e.Register("c", "")
	step(t, e)
	if wait(t, a) != nil || wait(t, b) != nil {
		t.Fatalf("first two registrations should succeed")
	}
	if err := wait(t, c); !errors.Is(err, world.ErrNoClaimableRoom) {
		t.Fatalf("expected ErrNoClaimableRoom, got %v", err)
	}
	if e.HasPlayer("c") {
		t.Fatalf("unplaced player was registered")
	}
}

func TestSetScriptQueued(t *testing.T) {
	e, store := newEngine(t, twoRooms(t), Config{})
	if err := wait(t, e.SetScript("ghost", "x")); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
	reg := e.Register("alice", "")
	step(t, e)
	_ = wait(t, reg)

	done := e.SetScript("alice", "Memory.v = 1;")
	if src, _ := store.LoadScript("alice"); src != "" {
		t.Fatalf("script replaced before the tick boundary")
	}
	step(t, e)
	if err := wait(t, done); err != nil {
		t.Fatalf("set script: %v", err)
	}
	if src, err := e.Script("alice"); err != nil || src != "Memory.v = 1;" {
		t.Fatalf("script: %q %v", src, err)
	}
	if mem, _ := store.LoadMemory("alice"); mem != `{"v":1}` {
		t.Fatalf("script did not run this tick: %q", mem)
	}
}

func TestFaultOnlyAffectsOffender(t *testing.T) {
	cfg := Config{Script: script.DefaultConfig()}
	cfg.Script.Budget = 20 * time.Millisecond
	e, _ := newEngine(t, twoRooms(t), cfg)
	a := e.Register("alice", spawner)
	b := e.Register("bob", `while (true) {}`)
	entry := step(t, e)
	if wait(t, a) != nil || wait(t, b) != nil {
		t.Fatalf("registration failed")
	}
	if entry.Faults() != 1 {
		t.Fatalf("faults: %+v", entry.Runs)
	}
	for _, r := range entry.Runs {
		if r.Player == "bob" && r.FaultKind != string(script.FaultBudget) {
			t.Fatalf("bob fault kind: %q", r.FaultKind)
		}
		if r.Player == "alice" && r.Fault != "" {
			t.Fatalf("alice faulted: %s", r.Fault)
		}
	}
	e.View(func(w *world.World) {
		if w.CreepByName("w_0") == nil {
			t.Fatalf("alice's spawn did not resolve")
		}
		if w.Player("bob").Faults != 1 || w.Player("alice").Faults != 0 {
			t.Fatalf("fault counters: bob=%d alice=%d", w.Player("bob").Faults, w.Player("alice").Faults)
		}
	})
}

func TestSameSeedSameScriptsSameDigest(t *testing.T) {
	run := func() []string {
		e, _ := newEngine(t, twoRooms(t), Config{})
		a, b := e.Register("alice", spawner), e.Register("bob", spawner)
		var digests []string
		for i := 0; i < 6; i++ {
			digests = append(digests, step(t, e).Digest)
		}
		if wait(t, a) != nil || wait(t, b) != nil {
			t.Fatalf("registration failed")
		}
		return digests
	}
	x, y := run(), run()
	for i := range x {
		if x[i] != y[i] {
			t.Fatalf("tick %d diverged: %s vs %s", i+1, x[i], y[i])
		}
	}
}

func TestSnapshotsAndBoot(t *testing.T) {
	dir := t.TempDir()
	e, _ := newEngine(t, twoRooms(t), Config{DataDir: dir, ArchiveEvery: 2})
	_ = e.Register("alice", spawner)
	step(t, e)
	step(t, e)

	if _, err := os.Stat(snapshot.ArchivePath(dir, 2)); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := os.Stat(snapshot.ArchivePath(dir, 1)); !os.IsNotExist(err) {
		t.Fatalf("tick 1 should not be archived: %v", err)
	}

	w, resumed, err := Boot(dir, "ignored", world.DefaultGenParams())
	if err != nil || !resumed {
		t.Fatalf("boot: resumed=%v err=%v", resumed, err)
	}
	if w.Time() != 2 || w.Digest() != e.Digest() {
		t.Fatalf("resumed world differs: time=%d", w.Time())
	}
}

func TestBootWithoutSnapshotGenerates(t *testing.T) {
	w, resumed, err := Boot(t.TempDir(), "fresh", world.DefaultGenParams())
	if err != nil || resumed {
		t.Fatalf("boot: resumed=%v err=%v", resumed, err)
	}
	if len(w.RoomNames()) != 9 {
		t.Fatalf("rooms: %d", len(w.RoomNames()))
	}
}

func TestResetKeepsClockAndPlayers(t *testing.T) {
	e, _ := newEngine(t, twoRooms(t), Config{Gen: world.DefaultGenParams()})
	_ = e.Register("alice", "")
	step(t, e)
	done := e.Reset("again")
	step(t, e)
	if err := wait(t, done); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if e.Time() != 2 {
		t.Fatalf("time: %d", e.Time())
	}
	if !e.HasPlayer("alice") {
		t.Fatalf("player lost in reset")
	}
	e.View(func(w *world.World) {
		if len(w.RoomNames()) != 9 || w.Seed() != "again" {
			t.Fatalf("world not regenerated: rooms=%d seed=%s", len(w.RoomNames()), w.Seed())
		}
	})
}

func TestResetArchivesPreviousEra(t *testing.T) {
	dir := t.TempDir()
	e, _ := newEngine(t, twoRooms(t), Config{DataDir: dir, Gen: world.DefaultGenParams()})
	_ = e.Register("alice", "")
	step(t, e)
	done := e.Reset("next")
	step(t, e)
	if err := wait(t, done); err != nil {
		t.Fatalf("reset: %v", err)
	}
	m, err := archive.ReadMeta(dir, 1)
	if err != nil {
		t.Fatalf("era meta: %v", err)
	}
	if m.Seed != "engine" || m.NextSeed != "next" || m.EndTick != 1 || m.Rooms != 2 || m.Players != 1 {
		t.Fatalf("meta: %+v", m)
	}
}

func TestStopHalts(t *testing.T) {
	e, _ := newEngine(t, twoRooms(t), Config{})
	pending := e.Register("alice", "")
	e.Stop()
	if e.State() != Halted {
		t.Fatalf("state: %v", e.State())
	}
	if err := wait(t, pending); !errors.Is(err, ErrHalted) {
		t.Fatalf("queued op: %v", err)
	}
	if _, err := e.Step(context.Background()); !errors.Is(err, ErrHalted) {
		t.Fatalf("step after stop: %v", err)
	}
	if err := wait(t, e.Reset("x")); !errors.Is(err, ErrHalted) {
		t.Fatalf("reset after stop: %v", err)
	}
}

func TestRunUntilCanceled(t *testing.T) {
	w := twoRooms(t)
	w.SetIntervalMs(5)
	e, _ := newEngine(t, w, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run: %v", err)
	}
	if e.State() != Halted || e.Time() < 2 {
		t.Fatalf("state=%v time=%d", e.State(), e.Time())
	}
}
