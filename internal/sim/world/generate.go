package world

import (
	"errors"
	"fmt"
	"math"

	"creepworld.ai/internal/sim/rng"
	"creepworld.ai/internal/sim/world/model"
	"creepworld.ai/internal/sim/world/terrain/maze"
)

var ErrNoClaimableRoom = errors.New("no claimable room left")

type GenParams struct {
	Maze       maze.Params
	IntervalMs int
}

func DefaultGenParams() GenParams {
	return GenParams{Maze: maze.DefaultParams(), IntervalMs: DefaultIntervalMs}
}

// Fertility maps a uniform draw onto a source count. The cubic flattens the middle of the
// range, so most rooms get one to three sources and the extremes are rare.
func Fertility(u float64) int {
	d := u - 0.5
	n := int(math.Floor((d*d*d + 0.1) * 20))
	return max(0, n)
}

// Generate builds a fresh world from seed: maze terrain, sources by fertility, and one
// controller in each room that realized two or three sources.
func Generate(seed string, p GenParams) (*World, error) {
	if err := p.Maze.Validate(); err != nil {
		return nil, fmt.Errorf("maze params: %w", err)
	}
	w := New(seed)
	w.SetIntervalMs(p.IntervalMs)

	grid, err := maze.Generate(w.rng, p.Maze)
	if err != nil {
		return nil, err
	}
	for name, t := range grid.Tile(maze.Origin(p.Maze.RoomsX, p.Maze.RoomsY)) {
		w.AddRoom(model.NewRoom(name, t))
	}

	for _, rn := range w.RoomNames() {
		r := w.rooms[rn]
		want := Fertility(w.rng.Uniform())
		cells := candidateCells(r, 1)
		placed := 0
		for ; placed < want; placed++ {
			at, ok := rng.Pick(w.rng, &cells)
			if !ok {
				break
			}
			w.placeStructure(r, model.NewSource(w.newID(), at))
		}
		if placed != 2 && placed != 3 {
			continue
		}
		cells = candidateCells(r, 1)
		if at, ok := rng.Pick(w.rng, &cells); ok {
			w.placeStructure(r, &model.Controller{ObjectBase: model.ObjectBase{ID: w.newID(), Pos: at}})
		}
	}
	return w, nil
}

// candidateCells lists open interior cells with at least minOpen open neighbours, row-major.
func candidateCells(r *model.Room, minOpen int) []model.Position {
	var out []model.Position
	for y := 1; y < model.RoomHeight-1; y++ {
		for x := 1; x < model.RoomWidth-1; x++ {
			if !r.IsOpen(x, y) {
				continue
			}
			n := 0
			for _, d := range model.AllDirections {
				dx, dy := d.Delta()
				if r.IsOpen(x+dx, y+dy) {
					n++
				}
			}
			if n >= minOpen {
				out = append(out, model.Position{X: x, Y: y, Room: r.Name})
			}
		}
	}
	return out
}

// claimable rooms have an unowned controller and no spawn.
func (w *World) claimableRooms() []model.RoomName {
	var out []model.RoomName
	for _, rn := range w.RoomNames() {
		r := w.rooms[rn]
		ctrl := r.Controller()
		if ctrl == nil || ctrl.Owner != "" || len(r.Spawns()) > 0 {
			continue
		}
		out = append(out, rn)
	}
	return out
}

// PlaceSpawn gives player a starter spawn in a random claimable room and claims that room's
// controller. The spawn is placed with room to spawn creeps around it.
func (w *World) PlaceSpawn(player, spawnName string) (*model.Spawn, error) {
	rooms := w.claimableRooms()
	for len(rooms) > 0 {
		rn, _ := rng.Pick(w.rng, &rooms)
		r := w.rooms[rn]
		cells := candidateCells(r, 3)
		at, ok := rng.Pick(w.rng, &cells)
		if !ok {
			continue
		}
		sp := model.NewSpawn(w.newID(), spawnName, player, at)
		w.placeStructure(r, sp)
		ctrl := r.Controller()
		ctrl.Owner = player
		if ctrl.Level == 0 {
			ctrl.Level = 1
		}
		return sp, nil
	}
	return nil, ErrNoClaimableRoom
}

// Reset regenerates the world from seed and re-registers every existing player with a new
// starter spawn. The clock carries over.
func (w *World) Reset(seed string, p GenParams) ([]string, error) {
	fresh, err := Generate(seed, p)
	if err != nil {
		return nil, err
	}
	fresh.time = w.time
	var unplaced []string
	for _, name := range w.PlayerNames() {
		old := w.players[name]
		cp := *old
		fresh.players[name] = &cp
		if _, err := fresh.PlaceSpawn(name, SpawnNameFor(name)); err != nil {
			unplaced = append(unplaced, name)
		}
	}
	*w = *fresh
	return unplaced, nil
}

func SpawnNameFor(player string) string { return "Spawn_" + player }
