package bridge

import (
	"creepworld.ai/internal/sim/world"
	"creepworld.ai/internal/sim/world/model"
	"creepworld.ai/internal/sim/world/pathfind"
)

// Visibility decides which rooms a player can see.
type Visibility func(player string, room model.RoomName) bool

// AllVisible shows every room to every player.
func AllVisible(string, model.RoomName) bool { return true }

// API is one player's command surface for one tick. Reads come from the shared Views;
// commands are validated against the world and buffered in the player's Intents.
type API struct {
	world   *world.World
	views   *Views
	intents *world.Intents
	visible Visibility
}

func New(w *world.World, v *Views, in *world.Intents, vis Visibility) *API {
	if vis == nil {
		vis = AllVisible
	}
	return &API{world: w, views: v, intents: in, visible: vis}
}

func (a *API) Player() string          { return a.intents.Player }
func (a *API) Time() uint64            { return a.views.Time }
func (a *API) Intents() *world.Intents { return a.intents }

// Rooms lists the visible rooms in resolution order.
func (a *API) Rooms() []model.RoomName {
	var out []model.RoomName
	for _, rn := range a.views.order {
		if a.visible(a.Player(), rn) {
			out = append(out, rn)
		}
	}
	return out
}

func (a *API) Room(name model.RoomName) (*RoomView, bool) {
	rv, ok := a.views.Rooms[name]
	if !ok || !a.visible(a.Player(), name) {
		return nil, false
	}
	return rv, true
}

// GetObjectByID returns a CreepView or StructureView, or false when the object does not
// exist or sits in a room the player cannot see.
func (a *API) GetObjectByID(id string) (any, bool) {
	o, rn, ok := a.views.Object(id)
	if !ok || !a.visible(a.Player(), rn) {
		return nil, false
	}
	return o, true
}

// MyCreeps is keyed by creep name, like Game.creeps.
func (a *API) MyCreeps() map[string]CreepView {
	out := map[string]CreepView{}
	for _, rn := range a.Rooms() {
		for _, c := range a.views.Rooms[rn].Creeps {
			if c.Owner == a.Player() {
				out[c.Name] = c
			}
		}
	}
	return out
}

// MySpawns is keyed by spawn name, like Game.spawns.
func (a *API) MySpawns() map[string]StructureView {
	out := map[string]StructureView{}
	for _, rn := range a.Rooms() {
		for _, s := range a.views.Rooms[rn].Structures {
			if s.Type == model.StructureSpawn && s.Owner == a.Player() {
				out[s.Name] = s
			}
		}
	}
	return out
}

func (a *API) Move(creepID string, dir model.Direction) model.Code {
	return a.world.Move(a.intents, creepID, dir)
}

func (a *API) Harvest(creepID, sourceID string) model.Code {
	return a.world.Harvest(a.intents, creepID, sourceID)
}

func (a *API) UpgradeController(creepID, controllerID string) model.Code {
	return a.world.UpgradeController(a.intents, creepID, controllerID)
}

func (a *API) SpawnCreep(spawnID string, body []model.BodyPart, name string) model.Code {
	return a.world.SpawnCreep(a.intents, spawnID, body, name)
}

// Search runs the pathfinder against the live terrain and pre-tick obstacles.
func (a *API) Search(origin model.Position, goals []pathfind.Goal, opts pathfind.Options) pathfind.Result {
	return pathfind.Search(a.world, origin, goals, opts)
}
