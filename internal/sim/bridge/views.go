// Package bridge is the only path from player scripts to the world: per-tick read-only views
// plus a command surface that records deferred actions.
package bridge

import (
	"creepworld.ai/internal/sim/world"
	"creepworld.ai/internal/sim/world/model"
)

type CreepView struct {
	ID             string
	Name           string
	Owner          string
	Pos            model.Position
	Body           []model.BodyPart
	Fatigue        int
	Hits           int
	HitsMax        int
	Energy         int
	EnergyCapacity int
}

func (c CreepView) Parts(p model.BodyPart) int { return model.CountParts(c.Body, p) }

type StructureView struct {
	ID                  string
	Type                model.StructureType
	Pos                 model.Position
	Hits                int
	HitsMax             int
	Owner               string
	Name                string
	Level               int
	Progress            int
	ProgressTotal       int
	Energy              int
	EnergyCapacity      int
	TicksToRegeneration int
}

type RoomView struct {
	Name       model.RoomName
	Creeps     []CreepView
	Structures []StructureView

	terrain *model.Terrain
}

// TerrainAt reads the room's terrain; terrain never changes during a tick.
func (r *RoomView) TerrainAt(x, y int) model.TerrainKind { return r.terrain.At(x, y) }

type objectRef struct {
	room      model.RoomName
	creep     int
	structure int
}

// Views is an immutable projection of the world taken at the start of a tick. It holds
// copies, so nothing reachable from it aliases world state.
type Views struct {
	Time  uint64
	Rooms map[model.RoomName]*RoomView
	order []model.RoomName
	byID  map[string]objectRef
}

func BuildViews(w *world.World) *Views {
	v := &Views{
		Time:  w.Time(),
		Rooms: map[model.RoomName]*RoomView{},
		order: w.RoomNames(),
		byID:  map[string]objectRef{},
	}
	for _, rn := range v.order {
		r := w.Room(rn)
		rv := &RoomView{Name: rn, terrain: r.Terrain}
		for _, id := range r.CreepIDs() {
			v.byID[id] = objectRef{room: rn, creep: len(rv.Creeps), structure: -1}
			rv.Creeps = append(rv.Creeps, creepView(r.Creeps[id]))
		}
		for _, id := range r.StructureIDs() {
			v.byID[id] = objectRef{room: rn, creep: -1, structure: len(rv.Structures)}
			rv.Structures = append(rv.Structures, structureView(r.Structures[id]))
		}
		v.Rooms[rn] = rv
	}
	return v
}

func creepView(c *model.Creep) CreepView {
	return CreepView{
		ID:             c.ID,
		Name:           c.Name,
		Owner:          c.Owner,
		Pos:            c.Pos,
		Body:           append([]model.BodyPart(nil), c.Body...),
		Fatigue:        c.Fatigue,
		Hits:           c.Hits,
		HitsMax:        c.HitsMax,
		Energy:         c.Store.UsedOf(model.Energy),
		EnergyCapacity: c.Store.CapacityOf(model.Energy),
	}
}

func structureView(s model.Structure) StructureView {
	hits, hitsMax := s.HitPoints()
	out := StructureView{
		ID:      s.ObjectID(),
		Type:    s.StructureType(),
		Pos:     s.Position(),
		Hits:    hits,
		HitsMax: hitsMax,
		Owner:   s.OwnerName(),
	}
	switch v := s.(type) {
	case *model.Controller:
		out.Level = v.Level
		out.Progress = v.Progress
		out.ProgressTotal = v.ProgressTotal()
	case *model.Source:
		out.Energy = v.Store.UsedOf(model.Energy)
		out.EnergyCapacity = v.Store.CapacityOf(model.Energy)
		out.TicksToRegeneration = v.TicksToRegeneration
	case *model.Spawn:
		out.Name = v.Name
		out.Energy = v.Store.UsedOf(model.Energy)
		out.EnergyCapacity = v.Store.CapacityOf(model.Energy)
	}
	return out
}

// RoomNames is in resolution order.
func (v *Views) RoomNames() []model.RoomName { return append([]model.RoomName(nil), v.order...) }

// Object returns a CreepView or StructureView by id.
func (v *Views) Object(id string) (any, model.RoomName, bool) {
	ref, ok := v.byID[id]
	if !ok {
		return nil, model.RoomName{}, false
	}
	rv := v.Rooms[ref.room]
	if ref.creep >= 0 {
		return rv.Creeps[ref.creep], ref.room, true
	}
	return rv.Structures[ref.structure], ref.room, true
}

func (v *Views) Creep(id string) (CreepView, bool) {
	o, _, ok := v.Object(id)
	if !ok {
		return CreepView{}, false
	}
	c, ok := o.(CreepView)
	return c, ok
}
