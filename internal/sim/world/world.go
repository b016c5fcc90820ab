package world

import (
	"sort"

	"creepworld.ai/internal/sim/rng"
	"creepworld.ai/internal/sim/world/model"
)

const DefaultIntervalMs = 1000

type Player struct {
	Name         string
	RegisteredAt uint64
	Faults       int
	LastRunMs    float64
}

// World is the single source of truth for rooms, players and the canonical PRNG.
//
// Reads (lookups, verb validation) are safe from any number of goroutines as long as no
// mutation runs concurrently; mutations (Resolve, Generate, PlaceSpawn, AddPlayer) happen on
// the engine goroutine only, between dispatch phases.
type World struct {
	seed       string
	time       uint64
	intervalMs int
	rng        *rng.RNG

	rooms   map[model.RoomName]*model.Room
	players map[string]*Player

	// index maps object id -> room; names maps creep name -> id.
	index map[string]model.RoomName
	names map[string]string
}

func New(seed string) *World {
	return &World{
		seed:       seed,
		intervalMs: DefaultIntervalMs,
		rng:        rng.From(seed),
		rooms:      map[model.RoomName]*model.Room{},
		players:    map[string]*Player{},
		index:      map[string]model.RoomName{},
		names:      map[string]string{},
	}
}

func (w *World) Seed() string        { return w.seed }
func (w *World) Time() uint64        { return w.time }
func (w *World) IntervalMs() int     { return w.intervalMs }
func (w *World) RNGState() rng.State { return w.rng.State() }

func (w *World) SetIntervalMs(ms int) {
	if ms > 0 {
		w.intervalMs = ms
	}
}

// Advance moves the clock forward one tick.
func (w *World) Advance() { w.time++ }

func (w *World) Room(name model.RoomName) *model.Room { return w.rooms[name] }

// RoomNames is sorted by text name, the resolution order.
func (w *World) RoomNames() []model.RoomName {
	out := make([]model.RoomName, 0, len(w.rooms))
	for n := range w.rooms {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (w *World) AddRoom(r *model.Room) {
	w.rooms[r.Name] = r
	for id := range r.Creeps {
		w.index[id] = r.Name
		w.names[r.Creeps[id].Name] = id
	}
	for id := range r.Structures {
		w.index[id] = r.Name
	}
}

// Object finds any creep or structure by id.
func (w *World) Object(id string) (model.RoomObject, bool) {
	rn, ok := w.index[id]
	if !ok {
		return nil, false
	}
	r := w.rooms[rn]
	if r == nil {
		return nil, false
	}
	return r.Object(id)
}

func (w *World) Creep(id string) *model.Creep {
	o, ok := w.Object(id)
	if !ok {
		return nil
	}
	c, _ := o.(*model.Creep)
	return c
}

func (w *World) Structure(id string) model.Structure {
	o, ok := w.Object(id)
	if !ok {
		return nil
	}
	s, _ := o.(model.Structure)
	return s
}

// CreepByName resolves a player-chosen creep name to its creep.
func (w *World) CreepByName(name string) *model.Creep {
	id, ok := w.names[name]
	if !ok {
		return nil
	}
	return w.Creep(id)
}

func (w *World) NameInUse(name string) bool {
	_, ok := w.names[name]
	return ok
}

func (w *World) Player(name string) *Player { return w.players[name] }

// AddPlayer registers name at the current tick; registering twice is a no-op.
func (w *World) AddPlayer(name string) (*Player, bool) {
	if p, ok := w.players[name]; ok {
		return p, false
	}
	p := &Player{Name: name, RegisteredAt: w.time}
	w.players[name] = p
	return p, true
}

func (w *World) PlayerNames() []string {
	out := make([]string, 0, len(w.players))
	for n := range w.players {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Terrain implements pathfind.Map.
func (w *World) Terrain(room model.RoomName) (*model.Terrain, bool) {
	r := w.rooms[room]
	if r == nil {
		return nil, false
	}
	return r.Terrain, true
}

// Obstacles implements pathfind.Map: structures and creeps both block movement.
func (w *World) Obstacles(room model.RoomName) []model.Position {
	r := w.rooms[room]
	if r == nil {
		return nil
	}
	out := make([]model.Position, 0, len(r.Structures)+len(r.Creeps))
	for _, id := range r.StructureIDs() {
		out = append(out, r.Structures[id].Position())
	}
	for _, id := range r.CreepIDs() {
		out = append(out, r.Creeps[id].Pos)
	}
	return out
}

// newID draws a fresh object id from the canonical PRNG.
func (w *World) newID() string {
	for {
		id := w.rng.Hex64()
		if _, taken := w.index[id]; !taken {
			return id
		}
	}
}

func (w *World) placeCreep(r *model.Room, c *model.Creep) {
	r.AddCreep(c)
	w.index[c.ID] = r.Name
	w.names[c.Name] = c.ID
}

func (w *World) placeStructure(r *model.Room, s model.Structure) {
	r.AddStructure(s)
	w.index[s.ObjectID()] = r.Name
}

// relocate moves a creep across a room boundary.
func (w *World) relocate(c *model.Creep, to model.Position) {
	if to.Room != c.Pos.Room {
		if from := w.rooms[c.Pos.Room]; from != nil {
			from.RemoveCreep(c.ID)
		}
		w.rooms[to.Room].AddCreep(c)
		w.index[c.ID] = to.Room
	}
	c.Pos = to
}
