package bridge

import (
	"creepworld.ai/internal/sim/world/model"
)

type FindType int

const (
	FindExitTop           FindType = 1
	FindExitRight         FindType = 3
	FindExitBottom        FindType = 5
	FindExitLeft          FindType = 7
	FindExit              FindType = 10
	FindCreeps            FindType = 101
	FindMyCreeps          FindType = 102
	FindHostileCreeps     FindType = 103
	FindSourcesActive     FindType = 104
	FindSources           FindType = 105
	FindStructures        FindType = 107
	FindMyStructures      FindType = 108
	FindHostileStructures FindType = 109
	FindMySpawns          FindType = 112
)

// FindConstants are exported to scripts as FIND_* globals.
var FindConstants = map[string]FindType{
	"FIND_EXIT_TOP":           FindExitTop,
	"FIND_EXIT_RIGHT":         FindExitRight,
	"FIND_EXIT_BOTTOM":        FindExitBottom,
	"FIND_EXIT_LEFT":          FindExitLeft,
	"FIND_EXIT":               FindExit,
	"FIND_CREEPS":             FindCreeps,
	"FIND_MY_CREEPS":          FindMyCreeps,
	"FIND_HOSTILE_CREEPS":     FindHostileCreeps,
	"FIND_SOURCES_ACTIVE":     FindSourcesActive,
	"FIND_SOURCES":            FindSources,
	"FIND_STRUCTURES":         FindStructures,
	"FIND_MY_STRUCTURES":      FindMyStructures,
	"FIND_HOSTILE_STRUCTURES": FindHostileStructures,
	"FIND_MY_SPAWNS":          FindMySpawns,
}

// Find returns positions for the exit types and CreepView/StructureView values otherwise, in
// id order. An unknown type or an invisible room yields nil and false.
func (a *API) Find(room model.RoomName, ft FindType) ([]any, bool) {
	rv, ok := a.Room(room)
	if !ok {
		return nil, false
	}
	me := a.Player()
	var out []any
	switch ft {
	case FindExitTop, FindExitRight, FindExitBottom, FindExitLeft, FindExit:
		for _, p := range a.exits(rv, ft) {
			out = append(out, p)
		}
	case FindCreeps, FindMyCreeps, FindHostileCreeps:
		for _, c := range rv.Creeps {
			if ft == FindCreeps || (ft == FindMyCreeps) == (c.Owner == me) {
				out = append(out, c)
			}
		}
	case FindSources, FindSourcesActive:
		for _, s := range rv.Structures {
			if s.Type == model.StructureSource && (ft == FindSources || s.Energy > 0) {
				out = append(out, s)
			}
		}
	case FindStructures:
		for _, s := range rv.Structures {
			if s.Type != model.StructureSource {
				out = append(out, s)
			}
		}
	case FindMyStructures, FindHostileStructures:
		for _, s := range rv.Structures {
			if s.Owner == "" {
				continue
			}
			if (ft == FindMyStructures) == (s.Owner == me) {
				out = append(out, s)
			}
		}
	case FindMySpawns:
		for _, s := range rv.Structures {
			if s.Type == model.StructureSpawn && s.Owner == me {
				out = append(out, s)
			}
		}
	default:
		return nil, false
	}
	return out, true
}

// exits lists walkable edge cells that lead into an existing room.
func (a *API) exits(rv *RoomView, ft FindType) []model.Position {
	var out []model.Position
	seen := map[model.Position]bool{}
	edge := func(want FindType, x, y int, d model.Direction) {
		if ft != FindExit && ft != want {
			return
		}
		if rv.TerrainAt(x, y) == model.Wall {
			return
		}
		p := model.Position{X: x, Y: y, Room: rv.Name}
		if seen[p] {
			return
		}
		next := p.Step(d)
		if _, ok := a.views.Rooms[next.Room]; !ok {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for x := 0; x < model.RoomWidth; x++ {
		edge(FindExitTop, x, 0, model.Top)
	}
	for y := 0; y < model.RoomHeight; y++ {
		edge(FindExitRight, model.RoomWidth-1, y, model.Right)
	}
	for x := 0; x < model.RoomWidth; x++ {
		edge(FindExitBottom, x, model.RoomHeight-1, model.Bottom)
	}
	for y := 0; y < model.RoomHeight; y++ {
		edge(FindExitLeft, 0, y, model.Left)
	}
	return out
}
