package world

import (
	"sort"

	"creepworld.ai/internal/sim/world/model"
)

// Intents buffers one player's validated actions for the current tick. Each player gets its
// own buffer, so scripts can record concurrently without touching shared state; Resolve
// attaches the buffers to entities once every script has finished.
type Intents struct {
	Player  string
	actions map[string]model.Action
}

func NewIntents(player string) *Intents {
	return &Intents{Player: player, actions: map[string]model.Action{}}
}

// Set records a for objectID, replacing any earlier action for the same object.
func (in *Intents) Set(objectID string, a model.Action) { in.actions[objectID] = a }

func (in *Intents) Get(objectID string) (model.Action, bool) {
	a, ok := in.actions[objectID]
	return a, ok
}

func (in *Intents) Len() int { return len(in.actions) }

// IDs is sorted.
func (in *Intents) IDs() []string {
	out := make([]string, 0, len(in.actions))
	for id := range in.actions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// reservesName reports whether another object already holds a spawn intent for name.
func (in *Intents) reservesName(name, except string) bool {
	for id, a := range in.actions {
		if id != except && a.Verb == model.VerbSpawn && a.Name == name {
			return true
		}
	}
	return false
}

func (w *World) ownCreep(in *Intents, id string) (*model.Creep, model.Code) {
	c := w.Creep(id)
	if c == nil {
		return nil, model.ErrNotFound
	}
	if c.Owner != in.Player {
		return nil, model.ErrNotOwner
	}
	return c, model.OK
}

// Move validates a one-step move. Occupancy is checked at resolution, where it reflects moves
// already applied this tick.
func (w *World) Move(in *Intents, creepID string, dir model.Direction) model.Code {
	c, code := w.ownCreep(in, creepID)
	if code != model.OK {
		return code
	}
	if !dir.Valid() {
		return model.ErrInvalidArgs
	}
	if c.Parts(model.PartMove) == 0 {
		return model.ErrNoBodypart
	}
	if c.Fatigue > 0 {
		return model.ErrTired
	}
	to := c.Pos.Step(dir)
	r := w.rooms[to.Room]
	if r == nil || !r.Terrain.Walkable(to.X, to.Y) {
		return model.ErrNoPath
	}
	in.Set(c.ID, model.Action{Verb: model.VerbMove, Dir: dir})
	return model.OK
}

func (w *World) Harvest(in *Intents, creepID, sourceID string) model.Code {
	c, code := w.ownCreep(in, creepID)
	if code != model.OK {
		return code
	}
	if c.Parts(model.PartWork) == 0 {
		return model.ErrNoBodypart
	}
	src, ok := w.Structure(sourceID).(*model.Source)
	if !ok {
		return model.ErrInvalidTarget
	}
	if !inRange(c.Pos, src.Pos, model.HarvestRange) {
		return model.ErrNotInRange
	}
	if c.Store.Free(model.Energy) <= 0 {
		return model.ErrFull
	}
	if src.Store.UsedOf(model.Energy) <= 0 {
		return model.ErrNotEnoughEnergy
	}
	in.Set(c.ID, model.Action{Verb: model.VerbHarvest, Target: src.ID})
	return model.OK
}

func (w *World) UpgradeController(in *Intents, creepID, controllerID string) model.Code {
	c, code := w.ownCreep(in, creepID)
	if code != model.OK {
		return code
	}
	if c.Parts(model.PartWork) == 0 {
		return model.ErrNoBodypart
	}
	ctrl, ok := w.Structure(controllerID).(*model.Controller)
	if !ok {
		return model.ErrInvalidTarget
	}
	if ctrl.Owner != "" && ctrl.Owner != in.Player {
		return model.ErrNotOwner
	}
	if !inRange(c.Pos, ctrl.Pos, model.UpgradeRange) {
		return model.ErrNotInRange
	}
	if c.Store.UsedOf(model.Energy) <= 0 {
		return model.ErrNotEnoughEnergy
	}
	if ctrl.Level >= model.ControllerMaxLevel {
		return model.ErrFull
	}
	in.Set(c.ID, model.Action{Verb: model.VerbUpgrade, Target: ctrl.ID})
	return model.OK
}

func (w *World) SpawnCreep(in *Intents, spawnID string, body []model.BodyPart, name string) model.Code {
	sp, ok := w.Structure(spawnID).(*model.Spawn)
	if !ok {
		return model.ErrInvalidTarget
	}
	if sp.Owner != in.Player {
		return model.ErrNotOwner
	}
	if code := validBody(body); code != model.OK {
		return code
	}
	if name == "" {
		return model.ErrInvalidArgs
	}
	if w.NameInUse(name) || in.reservesName(name, sp.ID) {
		return model.ErrNameExists
	}
	if sp.Store.UsedOf(model.Energy) < model.BodyCost(body) {
		return model.ErrNotEnoughEnergy
	}
	if len(w.openNeighbours(sp.Pos)) == 0 {
		return model.ErrNoPath
	}
	in.Set(sp.ID, model.Action{Verb: model.VerbSpawn, Body: append([]model.BodyPart(nil), body...), Name: name})
	return model.OK
}

func validBody(body []model.BodyPart) model.Code {
	if len(body) == 0 || len(body) > model.MaxCreepSize {
		return model.ErrInvalidArgs
	}
	for _, p := range body {
		if !p.Valid() {
			return model.ErrInvalidArgs
		}
	}
	return model.OK
}

// inRange requires both positions in the same room.
func inRange(a, b model.Position, r int) bool {
	return a.Room == b.Room && a.Range(b) <= r
}

// openNeighbours lists the cells around p a creep could occupy, in direction order.
func (w *World) openNeighbours(p model.Position) []model.Position {
	var out []model.Position
	for _, d := range model.AllDirections {
		n := p.Step(d)
		if n.Room != p.Room {
			continue
		}
		r := w.rooms[n.Room]
		if r != nil && r.IsOpen(n.X, n.Y) {
			out = append(out, n)
		}
	}
	return out
}
