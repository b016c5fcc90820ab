package model

import (
	"sort"
	"strings"
)

// Room owns its terrain and the id-keyed object tables. The tables are the authoritative
// location index; position lookups scan them.
type Room struct {
	Name       RoomName
	Terrain    *Terrain
	Creeps     map[string]*Creep
	Structures map[string]Structure
}

func NewRoom(name RoomName, t *Terrain) *Room {
	if t == nil {
		t = NewTerrain(Plain)
	}
	return &Room{
		Name:       name,
		Terrain:    t,
		Creeps:     map[string]*Creep{},
		Structures: map[string]Structure{},
	}
}

func (r *Room) AddCreep(c *Creep) {
	c.Pos.Room = r.Name
	r.Creeps[c.ID] = c
}

func (r *Room) RemoveCreep(id string) { delete(r.Creeps, id) }

func (r *Room) AddStructure(s Structure) { r.Structures[s.ObjectID()] = s }

func (r *Room) CreepAt(x, y int) *Creep {
	for _, c := range r.Creeps {
		if c.Pos.X == x && c.Pos.Y == y {
			return c
		}
	}
	return nil
}

func (r *Room) StructureAt(x, y int) Structure {
	for _, s := range r.Structures {
		p := s.Position()
		if p.X == x && p.Y == y {
			return s
		}
	}
	return nil
}

// Object returns a creep or structure by id.
func (r *Room) Object(id string) (RoomObject, bool) {
	if c, ok := r.Creeps[id]; ok {
		return c, true
	}
	if s, ok := r.Structures[id]; ok {
		return s, true
	}
	return nil, false
}

// IsOpen reports whether a creep could stand at x,y right now.
func (r *Room) IsOpen(x, y int) bool {
	if !r.Terrain.Walkable(x, y) {
		return false
	}
	return r.StructureAt(x, y) == nil && r.CreepAt(x, y) == nil
}

func (r *Room) CreepIDs() []string {
	ids := make([]string, 0, len(r.Creeps))
	for id := range r.Creeps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) StructureIDs() []string {
	ids := make([]string, 0, len(r.Structures))
	for id := range r.Structures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) Controller() *Controller {
	for _, id := range r.StructureIDs() {
		if c, ok := r.Structures[id].(*Controller); ok {
			return c
		}
	}
	return nil
}

func (r *Room) Sources() []*Source {
	var out []*Source
	for _, id := range r.StructureIDs() {
		if s, ok := r.Structures[id].(*Source); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *Room) Spawns() []*Spawn {
	var out []*Spawn
	for _, id := range r.StructureIDs() {
		if s, ok := r.Structures[id].(*Spawn); ok {
			out = append(out, s)
		}
	}
	return out
}

// Render draws the room as glyph rows; objects take precedence over terrain.
func (r *Room) Render() string {
	grid := make([][]byte, RoomHeight)
	for y := range grid {
		grid[y] = make([]byte, RoomWidth)
		for x := range grid[y] {
			grid[y][x] = r.Terrain.At(x, y).Glyph()
		}
	}
	for _, s := range r.Structures {
		p := s.Position()
		grid[p.Y][p.X] = s.Glyph()
	}
	for _, c := range r.Creeps {
		grid[c.Pos.Y][c.Pos.X] = c.Glyph()
	}
	var sb strings.Builder
	for y, row := range grid {
		if y > 0 {
			sb.WriteByte('\n')
		}
		sb.Write(row)
	}
	return sb.String()
}
