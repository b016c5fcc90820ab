package bridge

import (
	"creepworld.ai/internal/sim/world/model"
	"creepworld.ai/internal/sim/world/pathfind"
)

const DefaultReusePath = 5

type MoveToOpts struct {
	// ReusePath caps how many steps of a computed path are cached; 0 disables caching.
	ReusePath int
	// SerializeMemory stores the cached path as a digit string instead of a list.
	SerializeMemory bool
	NoPathFinding   bool
	// Range stops the path this close to the target.
	Range int
}

func DefaultMoveToOpts() MoveToOpts {
	return MoveToOpts{ReusePath: DefaultReusePath, SerializeMemory: true}
}

// CachedPath is what moveTo keeps between ticks: the remaining steps towards Dest, valid while
// the creep still stands at From.
type CachedPath struct {
	Dest model.Position
	From model.Position
	Path string
}

// PathMemory persists cached paths, normally inside the player's Memory.
type PathMemory interface {
	LoadPath(creepID string) (CachedPath, bool)
	StorePath(creepID string, p CachedPath, serialize bool)
	ClearPath(creepID string)
}

// MoveTo issues one step towards target, reusing a cached path when it is still valid and
// searching for a new one otherwise.
func (a *API) MoveTo(creepID string, target model.Position, opts MoveToOpts, mem PathMemory) model.Code {
	c, ok := a.views.Creep(creepID)
	if !ok {
		return model.ErrNotFound
	}
	if c.Owner != a.Player() {
		return model.ErrNotOwner
	}
	if !target.InBounds() {
		return model.ErrInvalidArgs
	}
	within := opts.Range
	if within == 0 && a.blocked(target) {
		within = 1
	}
	if c.Pos.Range(target) <= within {
		mem.ClearPath(creepID)
		return model.OK
	}
	if c.Fatigue > 0 {
		return model.ErrTired
	}

	var steps []model.Direction
	if cached, ok := mem.LoadPath(creepID); ok && cached.Dest == target && cached.From == c.Pos {
		if d, err := pathfind.DecodePath(cached.Path); err == nil {
			steps = d
		}
	}
	if len(steps) == 0 {
		if opts.NoPathFinding {
			return model.ErrNoPath
		}
		res := a.Search(c.Pos, []pathfind.Goal{{Pos: target, Range: within}}, pathfind.Options{})
		if len(res.Path) == 0 {
			mem.ClearPath(creepID)
			return model.ErrNoPath
		}
		steps = res.Path
		if opts.ReusePath > 0 && len(steps) > opts.ReusePath {
			steps = steps[:opts.ReusePath]
		}
	}

	code := a.Move(creepID, steps[0])
	if code != model.OK {
		return code
	}
	rest := steps[1:]
	if len(rest) == 0 || opts.ReusePath <= 0 {
		mem.ClearPath(creepID)
		return model.OK
	}
	mem.StorePath(creepID, CachedPath{
		Dest: target,
		From: c.Pos.Step(steps[0]),
		Path: pathfind.EncodePath(rest),
	}, opts.SerializeMemory)
	return model.OK
}

// blocked reports whether a creep could never stand on p (wall, structure or missing room).
func (a *API) blocked(p model.Position) bool {
	rv, ok := a.views.Rooms[p.Room]
	if !ok || rv.TerrainAt(p.X, p.Y) == model.Wall {
		return true
	}
	for _, s := range rv.Structures {
		if s.Pos == p {
			return true
		}
	}
	return false
}

// MapPathMemory is an in-process PathMemory.
type MapPathMemory map[string]CachedPath

func (m MapPathMemory) LoadPath(id string) (CachedPath, bool) {
	p, ok := m[id]
	return p, ok
}

func (m MapPathMemory) StorePath(id string, p CachedPath, _ bool) { m[id] = p }
func (m MapPathMemory) ClearPath(id string)                       { delete(m, id) }
