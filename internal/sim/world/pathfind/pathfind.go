// Package pathfind is a bounded weighted A* over the multi-room grid.
package pathfind

import (
	"fmt"
	"math"

	"creepworld.ai/internal/sim/pqueue"
	"creepworld.ai/internal/sim/world/logic/mathx"
	"creepworld.ai/internal/sim/world/model"
)

// Map is the read-only world the search runs over.
type Map interface {
	// Terrain returns false for rooms that do not exist; they are impassable.
	Terrain(room model.RoomName) (*model.Terrain, bool)
	// Obstacles lists cells blocked by objects (structures, creeps).
	Obstacles(room model.RoomName) []model.Position
}

// Goal is reached at any cell within Range (Chebyshev) of Pos.
type Goal struct {
	Pos   model.Position
	Range int
}

type Options struct {
	Costs  map[model.TerrainKind]float64
	MaxOps int
	Weight float64
}

const (
	DefaultMaxOps = 1000
	// MaxOpsLimit caps caller-supplied MaxOps.
	MaxOpsLimit   = 10 * DefaultMaxOps
	DefaultWeight = 1.2
)

var Inf = math.Inf(1)

func DefaultCosts() map[model.TerrainKind]float64 {
	return map[model.TerrainKind]float64{
		model.Plain: 2,
		model.Swamp: 10,
		model.Lava:  Inf,
		model.Wall:  Inf,
	}
}

// withDefaults returns a copy with every unusable knob replaced. Costs must be
// non-negative numbers; NaN or negative entries fall back to the default cost for that kind.
func (o Options) withDefaults() Options {
	def := DefaultCosts()
	costs := make(map[model.TerrainKind]float64, len(def))
	for k, c := range def {
		costs[k] = c
	}
	for k, c := range o.Costs {
		if math.IsNaN(c) || c < 0 {
			continue
		}
		costs[k] = c
	}
	o.Costs = costs
	if o.MaxOps <= 0 {
		o.MaxOps = DefaultMaxOps
	}
	if o.MaxOps > MaxOpsLimit {
		o.MaxOps = MaxOpsLimit
	}
	if !(o.Weight > 0) || math.IsInf(o.Weight, 1) {
		o.Weight = DefaultWeight
	}
	return o
}

type Result struct {
	Path       []model.Direction
	End        model.Position
	Ops        int
	Cost       float64
	Incomplete bool
}

type point struct{ x, y int }

type node struct {
	p   point
	g   float64
	f   float64
	seq uint64
}

type roomGrid struct {
	cost    [model.RoomWidth * model.RoomHeight]float64
	blocked [model.RoomWidth * model.RoomHeight]bool
}

type search struct {
	m     Map
	opts  Options
	goals []Goal

	minCost float64
	grids   map[model.RoomName]*roomGrid
	hcache  map[point]float64
}

// Search finds a path from origin to the nearest goal. When MaxOps expansions are spent
// without reaching a goal, the path to the closest position seen is returned with
// Incomplete set.
func Search(m Map, origin model.Position, goals []Goal, opts Options) Result {
	opts = opts.withDefaults()
	s := &search{
		m:       m,
		opts:    opts,
		goals:   goals,
		minCost: Inf,
		grids:   map[model.RoomName]*roomGrid{},
		hcache:  map[point]float64{},
	}
	for _, c := range opts.Costs {
		if c > 0 && c < s.minCost {
			s.minCost = c
		}
	}
	if math.IsInf(s.minCost, 1) {
		s.minCost = 1
	}

	ox, oy := origin.Global()
	start := point{ox, oy}
	if len(goals) == 0 {
		return Result{End: origin, Incomplete: true}
	}
	if s.isGoal(start) {
		return Result{End: origin}
	}

	gScore := map[point]float64{start: 0}
	parent := map[point]point{}

	var seq uint64
	open := pqueue.New(func(a, b node) bool {
		if a.f != b.f {
			return a.f < b.f
		}
		return a.seq < b.seq
	})
	open.Push(node{p: start, f: s.opts.Weight * s.h(start)})

	best := start
	bestH := s.h(start)
	ops := 0
	found := false
	end := start

	for !open.IsEmpty() {
		cur, _ := open.Pop()
		if g, ok := gScore[cur.p]; ok && g < cur.g {
			continue
		}
		if s.isGoal(cur.p) {
			found = true
			end = cur.p
			break
		}
		if ops >= s.opts.MaxOps {
			break
		}
		ops++

		if h := s.h(cur.p); h < bestH || (h == bestH && cur.g < gScore[best]) {
			best, bestH = cur.p, h
		}

		for _, d := range model.AllDirections {
			dx, dy := d.Delta()
			np := point{cur.p.x + dx, cur.p.y + dy}
			c := s.cost(np)
			if math.IsInf(c, 1) {
				continue
			}
			ng := cur.g + c
			if old, ok := gScore[np]; ok && old <= ng {
				continue
			}
			gScore[np] = ng
			parent[np] = cur.p
			seq++
			open.Push(node{p: np, g: ng, f: ng + s.opts.Weight*s.h(np), seq: seq})
		}
	}

	if !found {
		end = best
	}
	path := make([]model.Direction, 0, 16)
	for p := end; p != start; {
		pp, ok := parent[p]
		if !ok || len(path) > len(parent) {
			// Broken parent chain; report nothing rather than loop.
			return Result{End: origin, Ops: ops, Incomplete: true}
		}
		path = append(path, model.DirectionOf(p.x-pp.x, p.y-pp.y))
		p = pp
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return Result{
		Path:       path,
		End:        model.FromGlobal(end.x, end.y),
		Ops:        ops,
		Cost:       gScore[end],
		Incomplete: !found,
	}
}

func (s *search) isGoal(p point) bool {
	for _, g := range s.goals {
		gx, gy := g.Pos.Global()
		if mathx.Chebyshev(p.x, p.y, gx, gy) <= g.Range {
			return true
		}
	}
	return false
}

// h is the Chebyshev step distance to the nearest goal range, scaled by the cheapest step so
// it never overestimates.
func (s *search) h(p point) float64 {
	if v, ok := s.hcache[p]; ok {
		return v
	}
	best := math.MaxInt
	for _, g := range s.goals {
		gx, gy := g.Pos.Global()
		d := mathx.Chebyshev(p.x, p.y, gx, gy) - g.Range
		if d < best {
			best = d
		}
	}
	v := float64(max(best, 0)) * s.minCost
	s.hcache[p] = v
	return v
}

func (s *search) cost(p point) float64 {
	pos := model.FromGlobal(p.x, p.y)
	g := s.grid(pos.Room)
	if g == nil {
		return Inf
	}
	i := pos.Y*model.RoomWidth + pos.X
	if g.blocked[i] && !s.isGoal(p) {
		return Inf
	}
	return g.cost[i]
}

// grid builds the room's cost grid on first touch.
func (s *search) grid(room model.RoomName) *roomGrid {
	if g, ok := s.grids[room]; ok {
		return g
	}
	t, ok := s.m.Terrain(room)
	if !ok || t == nil {
		s.grids[room] = nil
		return nil
	}
	g := &roomGrid{}
	for y := 0; y < model.RoomHeight; y++ {
		for x := 0; x < model.RoomWidth; x++ {
			c, ok := s.opts.Costs[t.At(x, y)]
			if !ok {
				c = Inf
			}
			g.cost[y*model.RoomWidth+x] = c
		}
	}
	for _, p := range s.m.Obstacles(room) {
		if p.InBounds() {
			g.blocked[p.Y*model.RoomWidth+p.X] = true
		}
	}
	s.grids[room] = g
	return g
}

// EncodePath packs directions as one digit per step.
func EncodePath(path []model.Direction) string {
	b := make([]byte, len(path))
	for i, d := range path {
		b[i] = byte('0' + d)
	}
	return string(b)
}

func DecodePath(s string) ([]model.Direction, error) {
	out := make([]model.Direction, len(s))
	for i := 0; i < len(s); i++ {
		d := model.Direction(s[i] - '0')
		if !d.Valid() {
			return nil, fmt.Errorf("bad path step %q at %d", s[i], i)
		}
		out[i] = d
	}
	return out, nil
}
