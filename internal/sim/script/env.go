package script

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"creepworld.ai/internal/sim/bridge"
	"creepworld.ai/internal/sim/world/model"
	"creepworld.ai/internal/sim/world/pathfind"
)

const (
	maxConsoleLines = 100
	maxConsoleLine  = 512
)

// env is the set of globals one run sees. Wrappers are cached by object id so the same game
// object is the same JS object wherever the script meets it.
type env struct {
	vm  *goja.Runtime
	api *bridge.API
	log *zap.Logger

	parse     goja.Callable
	stringify goja.Callable

	objects    map[string]*goja.Object
	rooms      map[model.RoomName]*goja.Object
	creepNames map[string]string
	lines      int
}

func newEnv(vm *goja.Runtime, api *bridge.API, log *zap.Logger) *env {
	e := &env{
		vm:         vm,
		api:        api,
		log:        log,
		objects:    map[string]*goja.Object{},
		rooms:      map[model.RoomName]*goja.Object{},
		creepNames: map[string]string{},
	}
	json := vm.Get("JSON").ToObject(vm)
	e.parse, _ = goja.AssertFunction(json.Get("parse"))
	e.stringify, _ = goja.AssertFunction(json.Get("stringify"))
	return e
}

func set(o *goja.Object, k string, v any) { _ = o.Set(k, v) }

func defined(v goja.Value) bool { return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) }

func (e *env) loadMemory(s string) {
	if strings.TrimSpace(s) == "" {
		s = "{}"
	}
	var mem *goja.Object
	v, err := e.parse(goja.Undefined(), e.vm.ToValue(s))
	if err != nil {
		e.log.Warn("memory is not valid JSON, starting empty", zap.Error(err))
	} else if o, ok := v.(*goja.Object); ok {
		mem = o
	}
	if mem == nil {
		mem = e.vm.NewObject()
	}
	_ = e.vm.Set("Memory", mem)
}

// dumpMemory serializes whatever the script left in the Memory global.
func (e *env) dumpMemory(limit int) (string, bool) {
	v := e.vm.Get("Memory")
	if !defined(v) {
		return "{}", true
	}
	out, err := e.stringify(goja.Undefined(), v)
	if err != nil {
		e.log.Warn("memory not serializable, keeping previous", zap.Error(err))
		return "", false
	}
	if !defined(out) {
		return "{}", true
	}
	s := out.String()
	if limit > 0 && len(s) > limit {
		e.log.Warn("memory over limit, keeping previous", zap.Int("bytes", len(s)), zap.Int("limit", limit))
		return "", false
	}
	return s, true
}

func (e *env) install() {
	vm := e.vm
	for name, code := range model.Codes() {
		_ = vm.Set(name, int(code))
	}
	for name, ft := range bridge.FindConstants {
		_ = vm.Set(name, int(ft))
	}
	dirs := []string{"TOP", "TOP_RIGHT", "RIGHT", "BOTTOM_RIGHT", "BOTTOM", "BOTTOM_LEFT", "LEFT", "TOP_LEFT"}
	for i, name := range dirs {
		_ = vm.Set(name, int(model.AllDirections[i]))
	}
	cost := vm.NewObject()
	for p, c := range model.PartCost {
		_ = vm.Set(strings.ToUpper(string(p)), string(p))
		set(cost, string(p), c)
	}
	_ = vm.Set("BODYPART_COST", cost)
	_ = vm.Set("RESOURCE_ENERGY", string(model.Energy))
	_ = vm.Set("STRUCTURE_SPAWN", string(model.StructureSpawn))
	_ = vm.Set("STRUCTURE_CONTROLLER", string(model.StructureController))
	_ = vm.Set("STRUCTURE_SOURCE", string(model.StructureSource))

	console := vm.NewObject()
	set(console, "log", func(call goja.FunctionCall) goja.Value {
		e.lines++
		if e.lines > maxConsoleLines {
			return goja.Undefined()
		}
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		e.log.Info("console", zap.String("line", summarize(strings.Join(parts, " "), maxConsoleLine)))
		return goja.Undefined()
	})
	_ = vm.Set("console", console)

	_ = vm.Set("RoomPosition", func(call goja.ConstructorCall) *goja.Object {
		set(call.This, "x", call.Argument(0).ToInteger())
		set(call.This, "y", call.Argument(1).ToInteger())
		set(call.This, "roomName", call.Argument(2).String())
		return nil
	})

	_ = vm.Set("Game", e.game())
	pf := vm.NewObject()
	set(pf, "search", e.search)
	_ = vm.Set("PathFinder", pf)
}

func (e *env) game() *goja.Object {
	g := e.vm.NewObject()
	set(g, "time", e.api.Time())

	creeps := e.vm.NewObject()
	my := e.api.MyCreeps()
	for _, name := range sortedKeys(my) {
		set(creeps, name, e.wrapCreep(my[name]))
	}
	set(g, "creeps", creeps)

	spawns := e.vm.NewObject()
	sp := e.api.MySpawns()
	for _, name := range sortedKeys(sp) {
		set(spawns, name, e.wrapStructure(sp[name]))
	}
	set(g, "spawns", spawns)

	rooms := e.vm.NewObject()
	for _, rn := range e.api.Rooms() {
		set(rooms, rn.String(), e.room(rn))
	}
	set(g, "rooms", rooms)

	set(g, "getObjectById", func(call goja.FunctionCall) goja.Value {
		o, ok := e.api.GetObjectByID(call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return e.wrap(o)
	})
	return g
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *env) wrap(o any) goja.Value {
	switch v := o.(type) {
	case bridge.CreepView:
		return e.wrapCreep(v)
	case bridge.StructureView:
		return e.wrapStructure(v)
	case model.Position:
		return e.pos(v)
	}
	return goja.Null()
}

func (e *env) pos(p model.Position) *goja.Object {
	o := e.vm.NewObject()
	set(o, "x", p.X)
	set(o, "y", p.Y)
	set(o, "roomName", p.Room.String())
	return o
}

func (e *env) code(c model.Code) goja.Value {
	if c != model.OK {
		e.log.Debug("command rejected",
			zap.Stringer("code", c),
			zap.String("category", string(c.Category())),
		)
	}
	return e.vm.ToValue(int(c))
}

func (e *env) room(rn model.RoomName) *goja.Object {
	if o, ok := e.rooms[rn]; ok {
		return o
	}
	o := e.vm.NewObject()
	e.rooms[rn] = o
	set(o, "name", rn.String())
	set(o, "find", func(call goja.FunctionCall) goja.Value {
		found, ok := e.api.Find(rn, bridge.FindType(call.Argument(0).ToInteger()))
		if !ok {
			return e.vm.NewArray()
		}
		items := make([]any, len(found))
		for i, f := range found {
			items[i] = e.wrap(f)
		}
		return e.vm.NewArray(items...)
	})
	if rv, ok := e.api.Room(rn); ok {
		for _, s := range rv.Structures {
			if s.Type == model.StructureController {
				set(o, "controller", e.wrapStructure(s))
				break
			}
		}
	}
	return o
}

func (e *env) wrapCreep(c bridge.CreepView) *goja.Object {
	if o, ok := e.objects[c.ID]; ok {
		return o
	}
	o := e.vm.NewObject()
	e.objects[c.ID] = o
	e.creepNames[c.ID] = c.Name

	set(o, "id", c.ID)
	set(o, "name", c.Name)
	set(o, "owner", c.Owner)
	set(o, "my", c.Owner == e.api.Player())
	set(o, "pos", e.pos(c.Pos))
	body := make([]any, len(c.Body))
	for i, p := range c.Body {
		part := e.vm.NewObject()
		set(part, "type", string(p))
		set(part, "hits", model.PartHits)
		body[i] = part
	}
	set(o, "body", e.vm.NewArray(body...))
	set(o, "fatigue", c.Fatigue)
	set(o, "hits", c.Hits)
	set(o, "hitsMax", c.HitsMax)
	store := e.vm.NewObject()
	set(store, string(model.Energy), c.Energy)
	set(o, "store", store)
	set(o, "carryCapacity", c.EnergyCapacity)
	set(o, "room", e.room(c.Pos.Room))

	if c.Owner == e.api.Player() {
		getter := e.vm.ToValue(func(goja.FunctionCall) goja.Value {
			if m := e.creepMemory(c.Name, true); m != nil {
				return m
			}
			return goja.Undefined()
		})
		_ = o.DefineAccessorProperty("memory", getter, nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	}

	id := c.ID
	set(o, "move", func(call goja.FunctionCall) goja.Value {
		return e.code(e.api.Move(id, model.Direction(call.Argument(0).ToInteger())))
	})
	set(o, "harvest", func(call goja.FunctionCall) goja.Value {
		return e.code(e.api.Harvest(id, targetID(call.Argument(0))))
	})
	set(o, "upgradeController", func(call goja.FunctionCall) goja.Value {
		return e.code(e.api.UpgradeController(id, targetID(call.Argument(0))))
	})
	set(o, "moveTo", func(call goja.FunctionCall) goja.Value {
		var target model.Position
		var optsArg goja.Value
		if isNumber(call.Argument(0)) {
			target = model.Position{
				X:    int(call.Argument(0).ToInteger()),
				Y:    int(call.Argument(1).ToInteger()),
				Room: c.Pos.Room,
			}
			optsArg = call.Argument(2)
		} else {
			p, ok := posArg(call.Argument(0))
			if !ok {
				return e.code(model.ErrInvalidArgs)
			}
			target, optsArg = p, call.Argument(1)
		}
		return e.code(e.api.MoveTo(id, target, moveToOpts(optsArg), pathMemory{e}))
	})
	return o
}

func (e *env) wrapStructure(s bridge.StructureView) *goja.Object {
	if o, ok := e.objects[s.ID]; ok {
		return o
	}
	o := e.vm.NewObject()
	e.objects[s.ID] = o

	set(o, "id", s.ID)
	set(o, "structureType", string(s.Type))
	set(o, "pos", e.pos(s.Pos))
	set(o, "hits", s.Hits)
	set(o, "hitsMax", s.HitsMax)
	if s.Owner != "" {
		owner := e.vm.NewObject()
		set(owner, "username", s.Owner)
		set(o, "owner", owner)
	}
	set(o, "my", s.Owner != "" && s.Owner == e.api.Player())
	set(o, "room", e.room(s.Pos.Room))

	switch s.Type {
	case model.StructureController:
		set(o, "level", s.Level)
		set(o, "progress", s.Progress)
		set(o, "progressTotal", s.ProgressTotal)
	case model.StructureSource:
		set(o, "energy", s.Energy)
		set(o, "energyCapacity", s.EnergyCapacity)
		set(o, "ticksToRegeneration", s.TicksToRegeneration)
	case model.StructureSpawn:
		set(o, "name", s.Name)
		set(o, "energy", s.Energy)
		set(o, "energyCapacity", s.EnergyCapacity)
		store := e.vm.NewObject()
		set(store, string(model.Energy), s.Energy)
		set(o, "store", store)
		id := s.ID
		set(o, "spawnCreep", func(call goja.FunctionCall) goja.Value {
			body, ok := e.bodyArg(call.Argument(0))
			if !ok {
				return e.code(model.ErrInvalidArgs)
			}
			name := ""
			if defined(call.Argument(1)) {
				name = call.Argument(1).String()
			}
			return e.code(e.api.SpawnCreep(id, body, name))
		})
	}
	return o
}

// search backs PathFinder.search(origin, goal | goal[], opts).
func (e *env) search(call goja.FunctionCall) goja.Value {
	origin, ok := posArg(call.Argument(0))
	if !ok {
		return goja.Null()
	}
	var goals []pathfind.Goal
	addGoal := func(v goja.Value) {
		p, ok := posArg(v)
		if !ok {
			return
		}
		g := pathfind.Goal{Pos: p}
		if o, isObj := v.(*goja.Object); isObj {
			if r := o.Get("range"); defined(r) {
				g.Range = int(r.ToInteger())
			}
		}
		goals = append(goals, g)
	}
	if items, isArray := e.arrayArg(call.Argument(1)); isArray {
		for _, it := range items {
			addGoal(it)
		}
	} else {
		addGoal(call.Argument(1))
	}

	opts := pathfind.Options{}
	if o, isObj := call.Argument(2).(*goja.Object); isObj {
		if v := o.Get("maxOps"); defined(v) {
			opts.MaxOps = int(v.ToInteger())
		}
		if v := o.Get("heuristicWeight"); defined(v) {
			opts.Weight = v.ToFloat()
		}
		plain, swamp := o.Get("plainCost"), o.Get("swampCost")
		if defined(plain) || defined(swamp) {
			opts.Costs = pathfind.DefaultCosts()
			if defined(plain) {
				opts.Costs[model.Plain] = plain.ToFloat()
			}
			if defined(swamp) {
				opts.Costs[model.Swamp] = swamp.ToFloat()
			}
		}
	}

	res := e.api.Search(origin, goals, opts)
	steps := make([]any, 0, len(res.Path))
	at := origin
	for _, d := range res.Path {
		at = at.Step(d)
		steps = append(steps, e.pos(at))
	}
	out := e.vm.NewObject()
	set(out, "path", e.vm.NewArray(steps...))
	set(out, "ops", res.Ops)
	set(out, "cost", res.Cost)
	set(out, "incomplete", res.Incomplete)
	return out
}

func (e *env) arrayArg(v goja.Value) ([]goja.Value, bool) {
	o, ok := v.(*goja.Object)
	if !ok || o.ClassName() != "Array" {
		return nil, false
	}
	n := int(o.Get("length").ToInteger())
	out := make([]goja.Value, n)
	for i := 0; i < n; i++ {
		out[i] = o.Get(strconv.Itoa(i))
	}
	return out, true
}

func (e *env) bodyArg(v goja.Value) ([]model.BodyPart, bool) {
	items, ok := e.arrayArg(v)
	if !ok {
		return nil, false
	}
	body := make([]model.BodyPart, len(items))
	for i, it := range items {
		body[i] = model.BodyPart(it.String())
	}
	return body, true
}

func isNumber(v goja.Value) bool {
	if !defined(v) {
		return false
	}
	switch v.Export().(type) {
	case int64, float64:
		return true
	}
	return false
}

// targetID accepts a game object or a bare id string.
func targetID(v goja.Value) string {
	if o, ok := v.(*goja.Object); ok {
		if id := o.Get("id"); defined(id) {
			return id.String()
		}
		return ""
	}
	if defined(v) {
		return v.String()
	}
	return ""
}

// posArg accepts a position-like object or anything with a pos property.
func posArg(v goja.Value) (model.Position, bool) {
	o, ok := v.(*goja.Object)
	if !ok {
		return model.Position{}, false
	}
	if p, ok := o.Get("pos").(*goja.Object); ok {
		o = p
	}
	x, y, room := o.Get("x"), o.Get("y"), o.Get("roomName")
	if !defined(x) || !defined(y) || !defined(room) {
		return model.Position{}, false
	}
	rn, err := model.ParseRoomName(room.String())
	if err != nil {
		return model.Position{}, false
	}
	p := model.Position{X: int(x.ToInteger()), Y: int(y.ToInteger()), Room: rn}
	return p, p.InBounds()
}

func moveToOpts(v goja.Value) bridge.MoveToOpts {
	opts := bridge.DefaultMoveToOpts()
	o, ok := v.(*goja.Object)
	if !ok {
		return opts
	}
	if r := o.Get("reusePath"); defined(r) {
		opts.ReusePath = int(r.ToInteger())
	}
	if s := o.Get("serializeMemory"); defined(s) {
		opts.SerializeMemory = s.ToBoolean()
	}
	if n := o.Get("noPathFinding"); defined(n) {
		opts.NoPathFinding = n.ToBoolean()
	}
	if r := o.Get("range"); defined(r) {
		opts.Range = int(r.ToInteger())
	}
	return opts
}
