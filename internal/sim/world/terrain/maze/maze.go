// Package maze generates world terrain: a coarse spanning-tree maze of junctions, then a fine
// tile grid carved from it and smoothed by erosion and growth passes.
package maze

import (
	"fmt"

	"creepworld.ai/internal/sim/rng"
	"creepworld.ai/internal/sim/world/model"
)

type Params struct {
	RoomsX int
	RoomsY int

	// CellsPerRoom coarse junctions per room edge; must divide the room size.
	CellsPerRoom int

	LossRate      float64 // extra coarse links opened after the spanning tree
	CarveRate     float64 // random fine-grid openings before smoothing
	ErosionRounds int
	GrowthRounds  int
	PunchRate     float64 // second loss pass on the fine grid
	SwampRate     float64
	LavaRate      float64
}

func DefaultParams() Params {
	return Params{
		RoomsX:        3,
		RoomsY:        3,
		CellsPerRoom:  5,
		LossRate:      0.1,
		CarveRate:     0.15,
		ErosionRounds: 2,
		GrowthRounds:  2,
		PunchRate:     0.02,
		SwampRate:     0.08,
	}
}

func (p Params) Validate() error {
	if p.RoomsX <= 0 || p.RoomsY <= 0 {
		return fmt.Errorf("maze: rooms must be positive, got %dx%d", p.RoomsX, p.RoomsY)
	}
	if p.CellsPerRoom <= 0 || model.RoomWidth%p.CellsPerRoom != 0 || model.RoomHeight%p.CellsPerRoom != 0 {
		return fmt.Errorf("maze: cells_per_room %d must divide the room size", p.CellsPerRoom)
	}
	if model.RoomWidth/p.CellsPerRoom < 4 {
		return fmt.Errorf("maze: cells_per_room %d leaves junctions too small", p.CellsPerRoom)
	}
	return nil
}

// Coarse is the junction maze. East[i] links cell i to its right neighbour, South[i] to the
// one below.
type Coarse struct {
	W, H  int
	East  []bool
	South []bool
}

func (c *Coarse) idx(x, y int) int { return y*c.W + x }

type frontierEntry struct {
	x, y   int
	fx, fy int // tree cell it was discovered from
}

// GenerateCoarse carves a spanning tree by randomized frontier growth, then punches extra
// openings at LossRate.
func GenerateCoarse(r *rng.RNG, w, h int, lossRate float64) *Coarse {
	c := &Coarse{W: w, H: h, East: make([]bool, w*h), South: make([]bool, w*h)}
	inTree := make([]bool, w*h)

	var frontier []frontierEntry
	grow := func(x, y int) {
		inTree[c.idx(x, y)] = true
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h || inTree[c.idx(nx, ny)] {
				continue
			}
			frontier = append(frontier, frontierEntry{x: nx, y: ny, fx: x, fy: y})
		}
	}

	grow(r.Intn(w), r.Intn(h))
	for len(frontier) > 0 {
		f, _ := rng.Pick(r, &frontier)
		if inTree[c.idx(f.x, f.y)] {
			continue
		}
		c.link(f.x, f.y, f.fx, f.fy)
		grow(f.x, f.y)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := c.idx(x, y)
			if x+1 < w && !c.East[i] && r.Uniform() < lossRate {
				c.East[i] = true
			}
			if y+1 < h && !c.South[i] && r.Uniform() < lossRate {
				c.South[i] = true
			}
		}
	}
	return c
}

func (c *Coarse) link(ax, ay, bx, by int) {
	switch {
	case bx == ax+1:
		c.East[c.idx(ax, ay)] = true
	case bx == ax-1:
		c.East[c.idx(bx, by)] = true
	case by == ay+1:
		c.South[c.idx(ax, ay)] = true
	case by == ay-1:
		c.South[c.idx(bx, by)] = true
	}
}

// Grid is the fine world-wide tile grid.
type Grid struct {
	W, H  int
	Cells []model.TerrainKind
}

func (g *Grid) At(x, y int) model.TerrainKind {
	if x < 0 || y < 0 || x >= g.W || y >= g.H {
		return model.Wall
	}
	return g.Cells[y*g.W+x]
}

func (g *Grid) open(x, y int) bool { return g.At(x, y) != model.Wall }

func (g *Grid) edge(x, y int) bool { return x == 0 || y == 0 || x == g.W-1 || y == g.H-1 }

// Generate runs both phases. Identical seed state and params give identical grids.
func Generate(r *rng.RNG, p Params) (*Grid, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	cw, ch := p.RoomsX*p.CellsPerRoom, p.RoomsY*p.CellsPerRoom
	coarse := GenerateCoarse(r, cw, ch, p.LossRate)

	g := &Grid{W: p.RoomsX * model.RoomWidth, H: p.RoomsY * model.RoomHeight}
	g.Cells = make([]model.TerrainKind, g.W*g.H)
	for i := range g.Cells {
		g.Cells[i] = model.Wall
	}

	cs := model.RoomWidth / p.CellsPerRoom
	lo, hi := cs/4, cs/4+cs/2-1
	carve := func(x0, y0, x1, y1 int) {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				g.Cells[y*g.W+x] = model.Plain
			}
		}
	}
	for cy := 0; cy < ch; cy++ {
		for cx := 0; cx < cw; cx++ {
			bx, by := cx*cs, cy*cs
			carve(bx+lo, by+lo, bx+hi, by+hi)
			i := coarse.idx(cx, cy)
			if coarse.East[i] {
				carve(bx+lo, by+lo, bx+cs+hi, by+hi)
			}
			if coarse.South[i] {
				carve(bx+lo, by+lo, bx+hi, by+cs+hi)
			}
		}
	}

	g.punch(r, p.CarveRate)
	for i := 0; i < p.ErosionRounds; i++ {
		g.erode()
	}
	for i := 0; i < p.GrowthRounds; i++ {
		g.growth()
	}
	g.punch(r, p.PunchRate)
	g.sprinkle(r, p.SwampRate, p.LavaRate)
	g.sealEdges()
	return g, nil
}

func (g *Grid) punch(r *rng.RNG, rate float64) {
	if rate <= 0 {
		return
	}
	for y := 1; y < g.H-1; y++ {
		for x := 1; x < g.W-1; x++ {
			if g.Cells[y*g.W+x] == model.Wall && r.Uniform() < rate {
				g.Cells[y*g.W+x] = model.Plain
			}
		}
	}
}

// erode closes open cells with fewer than two open 4-neighbours.
func (g *Grid) erode() {
	next := append([]model.TerrainKind(nil), g.Cells...)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			if !g.open(x, y) {
				continue
			}
			n := 0
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				if g.open(x+d[0], y+d[1]) {
					n++
				}
			}
			if n < 2 {
				next[y*g.W+x] = model.Wall
			}
		}
	}
	g.Cells = next
}

// growth opens interior wall cells surrounded by at least four open cells.
func (g *Grid) growth() {
	next := append([]model.TerrainKind(nil), g.Cells...)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			if g.open(x, y) || g.edge(x, y) {
				continue
			}
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if (dx != 0 || dy != 0) && g.open(x+dx, y+dy) {
						n++
					}
				}
			}
			if n >= 4 {
				next[y*g.W+x] = model.Plain
			}
		}
	}
	g.Cells = next
}

func (g *Grid) sprinkle(r *rng.RNG, swamp, lava float64) {
	if swamp <= 0 && lava <= 0 {
		return
	}
	for i, k := range g.Cells {
		if k != model.Plain {
			continue
		}
		u := r.Uniform()
		switch {
		case u < swamp:
			g.Cells[i] = model.Swamp
		case u < swamp+lava:
			g.Cells[i] = model.Lava
		}
	}
}

func (g *Grid) sealEdges() {
	for x := 0; x < g.W; x++ {
		g.Cells[x] = model.Wall
		g.Cells[(g.H-1)*g.W+x] = model.Wall
	}
	for y := 0; y < g.H; y++ {
		g.Cells[y*g.W] = model.Wall
		g.Cells[y*g.W+g.W-1] = model.Wall
	}
}

// Origin is the room name of the grid's top-left room; the layout is centred on E0S0.
func Origin(roomsX, roomsY int) model.RoomName {
	return model.RoomName{X: -(roomsX / 2), Y: -(roomsY / 2)}
}

// Tile cuts the grid into per-room terrains.
func (g *Grid) Tile(origin model.RoomName) map[model.RoomName]*model.Terrain {
	out := map[model.RoomName]*model.Terrain{}
	for ry := 0; ry < g.H/model.RoomHeight; ry++ {
		for rx := 0; rx < g.W/model.RoomWidth; rx++ {
			t := model.NewTerrain(model.Wall)
			for y := 0; y < model.RoomHeight; y++ {
				for x := 0; x < model.RoomWidth; x++ {
					t.Set(x, y, g.At(rx*model.RoomWidth+x, ry*model.RoomHeight+y))
				}
			}
			out[model.RoomName{X: origin.X + rx, Y: origin.Y + ry}] = t
		}
	}
	return out
}
