package script

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"creepworld.ai/internal/persistence/scripts"
	"creepworld.ai/internal/sim/bridge"
	"creepworld.ai/internal/sim/world"
	"creepworld.ai/internal/sim/world/model"
)

var east = model.RoomName{X: 0, Y: 0}

func pos(x, y int) model.Position { return model.Position{X: x, Y: y, Room: east} }

func newWorld(t *testing.T) *world.World {
	t.Helper()
	w := world.New("script")
	r := model.NewRoom(east, model.NewTerrain(model.Plain))
	r.AddCreep(model.NewCreep("a1", "worker", "alice", []model.BodyPart{model.PartWork, model.PartCarry, model.PartMove}, pos(10, 10)))
	r.AddStructure(model.NewSpawn("sp", "Spawn1", "alice", pos(25, 25)))
	r.AddStructure(model.NewSource("src", pos(11, 11)))
	w.AddRoom(r)
	w.AddPlayer("alice")
	return w
}

func run(t *testing.T, w *world.World, store Store, cfg Config) (RunResult, *world.Intents) {
	t.Helper()
	in := world.NewIntents("alice")
	api := bridge.New(w, bridge.BuildViews(w), in, nil)
	res := NewRunner(store, zap.NewNop(), cfg).Run(context.Background(), api)
	return res, in
}

func withScript(t *testing.T, src string) *scripts.MemStore {
	t.Helper()
	s := scripts.NewMemStore()
	if err := s.SaveScript("alice", src); err != nil {
		t.Fatalf("save: %v", err)
	}
	return s
}

func memory(t *testing.T, s *scripts.MemStore) map[string]any {
	t.Helper()
	raw, _ := s.LoadMemory("alice")
	out := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("memory %q: %v", raw, err)
	}
	return out
}

func TestRunRecordsActions(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `for (const name in Game.creeps) { Game.creeps[name].move(RIGHT); }`)
	res, in := run(t, w, store, DefaultConfig())
	if res.Fault != nil {
		t.Fatalf("fault: %v", res.Fault)
	}
	if !res.Ran || res.Actions != 1 {
		t.Fatalf("result: %+v", res)
	}
	w.Resolve(in)
	if c := w.Creep("a1"); c.Pos != pos(11, 10) {
		t.Fatalf("position: %v", c.Pos)
	}
}

func TestMemoryPersistsAcrossRuns(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `Memory.count = (Memory.count || 0) + 1;`)
	run(t, w, store, DefaultConfig())
	run(t, w, store, DefaultConfig())
	if got := memory(t, store)["count"]; got != float64(2) {
		t.Fatalf("count: %v", got)
	}
}

func TestFaultKeepsEarlierActionsAndMemory(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `
Game.creeps.worker.move(RIGHT);
Memory.before = true;
throw new Error("boom");
`)
	res, in := run(t, w, store, DefaultConfig())
	if res.Fault == nil || res.Fault.Kind != FaultException {
		t.Fatalf("expected exception fault, got %+v", res.Fault)
	}
	if in.Len() != 1 {
		t.Fatalf("actions before the throw were dropped")
	}
	if memory(t, store)["before"] != true {
		t.Fatalf("memory not saved after fault")
	}
}

func TestBudgetInterruptsRunawayScript(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `Memory.started = 1; while (true) {}`)
	cfg := DefaultConfig()
	cfg.Budget = 20 * time.Millisecond
	res, _ := run(t, w, store, cfg)
	if res.Fault == nil || res.Fault.Kind != FaultBudget {
		t.Fatalf("expected budget fault, got %+v", res.Fault)
	}
	if !errors.Is(res.Fault, ErrBudgetExceeded) {
		t.Fatalf("fault does not wrap ErrBudgetExceeded: %v", res.Fault)
	}
	if memory(t, store)["started"] != float64(1) {
		t.Fatalf("memory not saved after interrupt")
	}
}

func TestCanceledContextInterrupts(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `while (true) {}`)
	cfg := DefaultConfig()
	cfg.Budget = 0
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	api := bridge.New(w, bridge.BuildViews(w), world.NewIntents("alice"), nil)
	res := NewRunner(store, nil, cfg).Run(ctx, api)
	if res.Fault == nil || res.Fault.Kind != FaultCanceled {
		t.Fatalf("expected canceled fault, got %+v", res.Fault)
	}
}

func TestSyntaxErrorIsFault(t *testing.T) {
	w := newWorld(t)
	res, _ := run(t, w, withScript(t, `function (`), DefaultConfig())
	if res.Fault == nil || res.Fault.Kind != FaultSyntax {
		t.Fatalf("expected syntax fault, got %+v", res.Fault)
	}
}

func TestMissingScriptDoesNotRun(t *testing.T) {
	w := newWorld(t)
	res, _ := run(t, w, scripts.NewMemStore(), DefaultConfig())
	if res.Ran || res.Fault != nil {
		t.Fatalf("result: %+v", res)
	}
}

func TestMathRandomIsSeededPerPlayerAndTick(t *testing.T) {
	w := newWorld(t)
	src := `Memory.r = Math.random();`
	a, b := withScript(t, src), withScript(t, src)
	run(t, w, a, DefaultConfig())
	run(t, w, b, DefaultConfig())
	ra, rb := memory(t, a)["r"], memory(t, b)["r"]
	if ra != rb {
		t.Fatalf("same player and tick drew %v and %v", ra, rb)
	}
	w.Advance()
	run(t, w, b, DefaultConfig())
	if memory(t, b)["r"] == ra {
		t.Fatalf("next tick repeated the draw")
	}
}

func TestOnlyWhitelistedGlobals(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `Memory.t = [typeof require, typeof process, typeof setTimeout, typeof Game, typeof PathFinder].join(",");`)
	run(t, w, store, DefaultConfig())
	if got := memory(t, store)["t"]; got != "undefined,undefined,undefined,object,object" {
		t.Fatalf("globals: %v", got)
	}
}

func TestCorruptMemoryStartsEmpty(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `Memory.fresh = Object.keys(Memory).length === 0;`)
	_ = store.SaveMemory("alice", "{not json")
	run(t, w, store, DefaultConfig())
	if memory(t, store)["fresh"] != true {
		t.Fatalf("memory was not reset")
	}
}

func TestScriptCommands(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `
const c = Game.creeps.worker;
const src = c.room.find(FIND_SOURCES)[0];
Memory.harvest = c.harvest(src);
Memory.spawn = Game.spawns.Spawn1.spawnCreep([WORK, CARRY, MOVE], "h2");
Memory.dup = Game.spawns.Spawn1.spawnCreep([MOVE], "worker");
Memory.same = Game.getObjectById(src.id) === src;
Memory.missing = Game.getObjectById("nope");
`)
	res, in := run(t, w, store, DefaultConfig())
	if res.Fault != nil {
		t.Fatalf("fault: %v", res.Fault)
	}
	m := memory(t, store)
	if m["harvest"] != float64(model.OK) || m["spawn"] != float64(model.OK) || m["dup"] != float64(model.ErrNameExists) {
		t.Fatalf("codes: %+v", m)
	}
	if m["same"] != true || m["missing"] != nil {
		t.Fatalf("lookups: %+v", m)
	}
	w.Resolve(in)
	if w.Creep("a1").Store.UsedOf(model.Energy) != 2 || w.CreepByName("h2") == nil {
		t.Fatalf("commands did not resolve")
	}
}

func TestMoveToCachesInCreepMemory(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `Memory.code = Game.creeps.worker.moveTo(20, 10);`)
	run(t, w, store, DefaultConfig())
	m := memory(t, store)
	if m["code"] != float64(model.OK) {
		t.Fatalf("moveTo: %v", m["code"])
	}
	creeps, _ := m["creeps"].(map[string]any)
	entry, _ := creeps["worker"].(map[string]any)
	mv, _ := entry["_move"].(map[string]any)
	path, _ := mv["path"].(string)
	if len(path) != bridge.DefaultReusePath-1 {
		t.Fatalf("cached path: %+v", mv)
	}
}

func TestPathFinderSearch(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `
const r = PathFinder.search(new RoomPosition(0, 0, "E0S0"), {pos: new RoomPosition(3, 0, "E0S0"), range: 0});
Memory.len = r.path.length;
Memory.cost = r.cost;
Memory.incomplete = r.incomplete;
`)
	res, _ := run(t, w, store, DefaultConfig())
	if res.Fault != nil {
		t.Fatalf("fault: %v", res.Fault)
	}
	m := memory(t, store)
	if m["len"] != float64(3) || m["cost"] != float64(6) || m["incomplete"] != false {
		t.Fatalf("search: %+v", m)
	}
}

func TestPathFinderSearchIgnoresUnusableCosts(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `
const from = new RoomPosition(0, 0, "E0S0"), to = {pos: new RoomPosition(3, 0, "E0S0"), range: 0};
Memory.neg = PathFinder.search(from, to, {plainCost: -1, maxOps: 50}).cost;
Memory.nan = PathFinder.search(from, to, {plainCost: NaN, swampCost: -5}).cost;
Memory.big = PathFinder.search(from, to, {maxOps: 1e12}).path.length;
`)
	done := make(chan RunResult, 1)
	go func() {
		res, _ := run(t, w, store, DefaultConfig())
		done <- res
	}()
	var res RunResult
	select {
	case res = <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("script run still going after 3s")
	}
	if res.Fault != nil {
		t.Fatalf("fault: %v", res.Fault)
	}
	m := memory(t, store)
	if m["neg"] != float64(6) || m["nan"] != float64(6) || m["big"] != float64(3) {
		t.Fatalf("search: %+v", m)
	}
}

func TestRejectedCommandLogsCategory(t *testing.T) {
	w := newWorld(t)
	store := withScript(t, `Game.spawns.Spawn1.spawnCreep([MOVE], "worker");`)
	core, logs := observer.New(zapcore.DebugLevel)
	in := world.NewIntents("alice")
	api := bridge.New(w, bridge.BuildViews(w), in, nil)
	res := NewRunner(store, zap.New(core), DefaultConfig()).Run(context.Background(), api)
	if res.Fault != nil {
		t.Fatalf("fault: %v", res.Fault)
	}
	entries := logs.FilterMessage("command rejected").All()
	if len(entries) != 1 {
		t.Fatalf("rejected entries: %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["code"] != model.ErrNameExists.String() || fields["category"] != string(model.IdentityError) {
		t.Fatalf("fields: %+v", fields)
	}
	if fields["player"] != "alice" {
		t.Fatalf("player field: %+v", fields)
	}
}
