package world

import (
	"sort"

	"creepworld.ai/internal/sim/rng"
	"creepworld.ai/internal/sim/world/model"
)

// fatigueFactor is the fatigue each weighted part adds per step onto a terrain kind.
var fatigueFactor = map[model.TerrainKind]int{
	model.Plain: 2,
	model.Swamp: 10,
	model.Lava:  2,
}

type Report struct {
	Applied map[model.Verb]int
	Failed  map[model.Verb]int
	Spawned []string
}

func (r Report) AppliedTotal() int {
	n := 0
	for _, v := range r.Applied {
		n += v
	}
	return n
}

type pendingRef struct {
	room model.RoomName
	id   string
}

// Resolve attaches every buffered intent to its entity and applies them once each, rooms in
// name order and objects in id order within a room. Passive per-tick updates run afterwards.
// Intents for objects that no longer exist or changed owner are dropped.
func (w *World) Resolve(intents ...*Intents) Report {
	rep := Report{Applied: map[model.Verb]int{}, Failed: map[model.Verb]int{}}

	for _, in := range intents {
		if in == nil {
			continue
		}
		for _, id := range in.IDs() {
			a := in.actions[id]
			o, ok := w.Object(id)
			if !ok {
				continue
			}
			switch v := o.(type) {
			case *model.Creep:
				if v.Owner == in.Player {
					v.Pending = &a
				}
			case *model.Spawn:
				if v.Owner == in.Player {
					v.Pending = &a
				}
			}
		}
	}

	var order []pendingRef
	for _, rn := range w.RoomNames() {
		r := w.rooms[rn]
		ids := append(r.CreepIDs(), r.StructureIDs()...)
		sort.Strings(ids)
		for _, id := range ids {
			order = append(order, pendingRef{room: rn, id: id})
		}
	}

	for _, ref := range order {
		o, ok := w.Object(ref.id)
		if !ok {
			continue
		}
		var a *model.Action
		var applied bool
		switch v := o.(type) {
		case *model.Creep:
			a, v.Pending = v.Pending, nil
			if a != nil {
				applied = w.applyCreep(v, *a)
			}
		case *model.Spawn:
			a, v.Pending = v.Pending, nil
			if a != nil {
				applied = w.applySpawn(v, *a, &rep)
			}
		}
		if a == nil {
			continue
		}
		if applied {
			rep.Applied[a.Verb]++
		} else {
			rep.Failed[a.Verb]++
		}
	}

	w.passive()
	return rep
}

func (w *World) applyCreep(c *model.Creep, a model.Action) bool {
	switch a.Verb {
	case model.VerbMove:
		return w.applyMove(c, a.Dir)
	case model.VerbHarvest:
		return w.applyHarvest(c, a.Target)
	case model.VerbUpgrade:
		return w.applyUpgrade(c, a.Target)
	}
	return false
}

func (w *World) applyMove(c *model.Creep, dir model.Direction) bool {
	if c.Fatigue > 0 || c.Parts(model.PartMove) == 0 {
		return false
	}
	to := c.Pos.Step(dir)
	r := w.rooms[to.Room]
	if r == nil || !r.IsOpen(to.X, to.Y) {
		return false
	}
	c.Fatigue += c.Weight() * fatigueFactor[r.Terrain.At(to.X, to.Y)]
	c.Head = dir
	w.relocate(c, to)
	return true
}

func (w *World) applyHarvest(c *model.Creep, sourceID string) bool {
	src, ok := w.Structure(sourceID).(*model.Source)
	if !ok || !inRange(c.Pos, src.Pos, model.HarvestRange) {
		return false
	}
	n := min(c.Parts(model.PartWork)*model.HarvestPower, c.Store.Free(model.Energy), src.Store.UsedOf(model.Energy))
	if n <= 0 {
		return false
	}
	n = src.Store.Remove(model.Energy, n)
	c.Store.Add(model.Energy, n)
	if src.TicksToRegeneration == 0 {
		src.TicksToRegeneration = model.SourceRegenTicks
	}
	return true
}

func (w *World) applyUpgrade(c *model.Creep, controllerID string) bool {
	ctrl, ok := w.Structure(controllerID).(*model.Controller)
	if !ok || !inRange(c.Pos, ctrl.Pos, model.UpgradeRange) {
		return false
	}
	if ctrl.Owner != "" && ctrl.Owner != c.Owner {
		return false
	}
	n := min(c.Parts(model.PartWork)*model.UpgradePower, c.Store.UsedOf(model.Energy), model.UpgradeTickCap, ctrl.Remaining())
	if n <= 0 {
		return false
	}
	if ctrl.Owner == "" {
		ctrl.Owner = c.Owner
	}
	n = c.Store.Remove(model.Energy, n)
	ctrl.AddProgress(n)
	return true
}

func (w *World) applySpawn(sp *model.Spawn, a model.Action, rep *Report) bool {
	if a.Verb != model.VerbSpawn || validBody(a.Body) != model.OK || a.Name == "" {
		return false
	}
	if w.NameInUse(a.Name) {
		return false
	}
	cost := model.BodyCost(a.Body)
	if sp.Store.UsedOf(model.Energy) < cost {
		return false
	}
	open := w.openNeighbours(sp.Pos)
	at, ok := rng.Pick(w.rng, &open)
	if !ok {
		return false
	}
	c := model.NewCreep(w.newID(), a.Name, sp.Owner, a.Body, at)
	c.Head = sp.Pos.DirectionTo(at)
	w.placeCreep(w.rooms[at.Room], c)
	sp.Store.Remove(model.Energy, cost)
	rep.Spawned = append(rep.Spawned, c.Name)
	return true
}

// passive runs the per-tick updates that need no action: fatigue decay and energy refill.
func (w *World) passive() {
	for _, rn := range w.RoomNames() {
		r := w.rooms[rn]
		for _, id := range r.CreepIDs() {
			c := r.Creeps[id]
			if c.Fatigue > 0 {
				c.Fatigue = max(0, c.Fatigue-model.MoveDecay*c.Parts(model.PartMove))
			}
		}
		for _, id := range r.StructureIDs() {
			switch s := r.Structures[id].(type) {
			case *model.Source:
				s.Regenerate()
			case *model.Spawn:
				s.Regenerate()
			}
		}
	}
}
